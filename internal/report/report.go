package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fundus-go/internal/diagnosis"
)

// 报告列名
const (
	ColumnPatient = "患者编号"
	ColumnDisease = "综合诊断结果"
	ColumnAdvice  = "诊疗建议"
)

// Header 报告表头，顺序固定
var Header = []string{ColumnPatient, ColumnDisease, ColumnAdvice}

// Format 导出格式
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var ErrUnknownFormat = errors.New("不支持的导出格式")

// ParseFormat 解析格式字符串，空串返回 def
func ParseFormat(s string, def Format) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def, nil
	}
	f := Format(s)
	if _, ok := writers[f]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, s)
	}
	return f, nil
}

// ContentType 下载时使用的 MIME 类型
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Row 报告中的一行
type Row struct {
	PatientLabel   string `json:"patient_label"`
	PrimaryDisease string `json:"primary_disease"`
	AdviceText     string `json:"advice_text"`
}

func (r Row) cells() []string {
	return []string{r.PatientLabel, r.PrimaryDisease, r.AdviceText}
}

// Rows 按记录顺序生成报告行，只读取 records
func Rows(records []diagnosis.PatientRecord) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = Row{
			PatientLabel:   rec.DisplayName,
			PrimaryDisease: rec.CombinedDiagnosis.PrimaryDisease,
			AdviceText:     rec.TreatmentSuggestion.Suggestions,
		}
	}
	return rows
}

// Filename 生成下载文件名：{prefix}_{YYYYMMDD_HHMMSS}.{ext}
func Filename(prefix string, format Format, now time.Time) string {
	if prefix == "" {
		prefix = "report"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), format)
}
