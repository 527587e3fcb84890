package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format 数据集文件格式
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var ErrNoFilenameColumns = errors.New("数据集缺少文件名列")

// DetectFormat 根据文件名或地址推断格式，无法识别时按 xlsx 处理
func DetectFormat(name string) Format {
	ext := strings.ToLower(filepath.Ext(stripQuery(name)))
	if ext == ".csv" {
		return FormatCSV
	}
	return FormatXLSX
}

func stripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}

// Parse 按格式解析数据集
func Parse(data []byte, format Format, sheet string) ([]Row, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(bytes.NewReader(data))
	case FormatXLSX:
		return ParseXLSX(bytes.NewReader(data), sheet)
	default:
		return nil, fmt.Errorf("不支持的数据集格式: %s", format)
	}
}

// ParseXLSX 解析 Excel 工作簿，sheet 为空时使用第一个工作表
func ParseXLSX(r io.Reader, sheet string) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("打开Excel失败: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("Excel中没有工作表")
		}
		sheet = sheets[0]
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("读取工作表 %s 失败: %w", sheet, err)
	}
	return RowsFromRecords(records)
}

// ParseCSV 解析CSV，兼容 UTF-8 BOM
func ParseCSV(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取CSV失败: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析CSV失败: %w", err)
	}
	return RowsFromRecords(records)
}

// RowsFromRecords 把表头 + 数据行转换为 Row
//
// 表头两端空白会被去掉；缺少 Left-Fundus/Right-Fundus 时使用旧版的 left/right 列。
// 空行被跳过，缺失的病种列视为 0。
func RowsFromRecords(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return []Row{}, nil
	}

	header := make(map[string]int, len(records[0]))
	lowerHeader := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		if _, dup := header[h]; !dup {
			header[h] = i
		}
		if _, dup := lowerHeader[strings.ToLower(h)]; !dup {
			lowerHeader[strings.ToLower(h)] = i
		}
	}

	leftCol, okL := header[ColumnLeftFundus]
	rightCol, okR := header[ColumnRightFundus]
	if !okL || !okR {
		leftCol, okL = lowerHeader[columnLegacyLeft]
		rightCol, okR = lowerHeader[columnLegacyRight]
	}
	if !okL || !okR {
		return nil, ErrNoFilenameColumns
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := Row{
			LeftFilename:  cell(rec, leftCol),
			RightFilename: cell(rec, rightCol),
			Flags:         make(map[string]int, len(Conditions)),
		}
		for _, c := range Conditions {
			col, ok := header[c]
			if !ok {
				row.Flags[c] = 0
				continue
			}
			row.Flags[c] = NormalizeFlag(cell(rec, col))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
