package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\xEF\xBB\xBF"

// DefaultSheet xlsx 默认工作表名
const DefaultSheet = "诊断报告"

// WriterFunc 把报告行写入 w
type WriterFunc func(w io.Writer, sheet string, rows []Row) error

var writers = map[Format]WriterFunc{}

// Register 注册导出格式，重复注册以最后一次为准
func Register(format Format, fn WriterFunc) {
	writers[format] = fn
}

func init() {
	Register(FormatCSV, writeCSV)
	Register(FormatXLSX, writeXLSX)
}

// Export 按格式写出报告
func Export(w io.Writer, format Format, sheet string, rows []Row) error {
	fn, ok := writers[format]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	return fn(w, sheet, rows)
}

// writeCSV 带 BOM，方便 Excel 直接打开中文
func writeCSV(w io.Writer, _ string, rows []Row) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("写入CSV标题失败: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write(r.cells()); err != nil {
			return fmt.Errorf("写入CSV数据失败: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV写入失败: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, sheet string, rows []Row) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("设置工作表失败: %w", err)
	}
	if err := setRow(f, sheet, 1, Header); err != nil {
		return err
	}
	for i, r := range rows {
		if err := setRow(f, sheet, i+2, r.cells()); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "B", 24)
	_ = f.SetColWidth(sheet, "C", "C", 80)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("写入xlsx失败: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []string) error {
	axis, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, axis, &values); err != nil {
		return fmt.Errorf("写入第 %d 行失败: %w", row, err)
	}
	return nil
}
