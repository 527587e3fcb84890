package dataset

import (
	"math"
	"strconv"
	"strings"
)

// 固定的病种列，顺序即诊断结果中病种的拼接顺序
const (
	ConditionNormal       = "正常"
	ConditionDiabetes     = "糖尿病"
	ConditionGlaucoma     = "青光眼"
	ConditionCataract     = "白内障"
	ConditionAMD          = "AMD"
	ConditionHypertension = "高血压"
	ConditionMyopia       = "近视"
	ConditionOther        = "其他疾病/异常"
)

// Conditions 全部病种列
var Conditions = []string{
	ConditionNormal,
	ConditionDiabetes,
	ConditionGlaucoma,
	ConditionCataract,
	ConditionAMD,
	ConditionHypertension,
	ConditionMyopia,
	ConditionOther,
}

// 文件名列
const (
	ColumnLeftFundus  = "Left-Fundus"
	ColumnRightFundus = "Right-Fundus"
	columnLegacyLeft  = "left"
	columnLegacyRight = "right"
)

// Row 参考数据集中的一行，加载后不再修改
type Row struct {
	LeftFilename  string         `json:"left_filename"`
	RightFilename string         `json:"right_filename"`
	Flags         map[string]int `json:"flags"`
}

// Flag 病种标记，缺失视为 0
func (r Row) Flag(condition string) int {
	return r.Flags[condition]
}

// Active 标记为 1 的病种，按 Conditions 顺序
func (r Row) Active() []string {
	var out []string
	for _, c := range Conditions {
		if r.Flags[c] == 1 {
			out = append(out, c)
		}
	}
	return out
}

// NormalizeFlag 把单元格原始内容归一化为 0 或 1
//
// 只有数值等于 1 的单元格（"1"、"1.0"、" 1 "、"TRUE"）记为 1，其余一律为 0。
func NormalizeFlag(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	if b, err := strconv.ParseBool(s); err == nil && !isDigits(s) {
		if b {
			return 1
		}
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	if math.Trunc(f) == 1 {
		return 1
	}
	return 0
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
