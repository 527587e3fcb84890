package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Parse 读取导出的报告，用于核对导出结果
func Parse(r io.Reader, format Format, sheet string) ([]Row, error) {
	switch format {
	case FormatCSV:
		return parseCSV(r)
	case FormatXLSX:
		return parseXLSX(r, sheet)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func parseCSV(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte(utf8BOM))

	reader := csv.NewReader(bytes.NewReader(data))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析CSV失败: %w", err)
	}
	return fromRecords(records)
}

func parseXLSX(r io.Reader, sheet string) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("打开xlsx失败: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("读取工作表失败: %w", err)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("报告为空")
	}
	header := records[0]
	if len(header) < len(Header) {
		return nil, fmt.Errorf("报告表头不完整: %v", header)
	}
	for i, name := range Header {
		if header[i] != name {
			return nil, fmt.Errorf("报告表头不匹配: 第 %d 列为 %q", i+1, header[i])
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		cell := func(i int) string {
			if i < len(rec) {
				return rec[i]
			}
			return ""
		}
		rows = append(rows, Row{PatientLabel: cell(0), PrimaryDisease: cell(1), AdviceText: cell(2)})
	}
	return rows, nil
}
