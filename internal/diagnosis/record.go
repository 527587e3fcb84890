package diagnosis

import (
	"fmt"

	"fundus-go/internal/intake"
)

// Unknown 未匹配或没有任何病种标记时的诊断
const Unknown = "未知"

// EyeAnalysis 单眼分析结果
type EyeAnalysis struct {
	Image   intake.Payload `json:"image"`
	Name    string         `json:"name"`
	Disease string         `json:"disease"`
}

// CombinedDiagnosis 综合诊断
type CombinedDiagnosis struct {
	PrimaryDisease string `json:"primary_disease"`
}

// TreatmentSuggestion 诊疗建议
type TreatmentSuggestion struct {
	PrimaryDisease string `json:"primary_disease"`
	Suggestions    string `json:"suggestions"`
}

// PatientRecord 一位患者的完整记录
type PatientRecord struct {
	ID                  int                 `json:"id"`
	LeftEye             EyeAnalysis         `json:"left_eye"`
	RightEye            EyeAnalysis         `json:"right_eye"`
	CombinedDiagnosis   CombinedDiagnosis   `json:"combined_diagnosis"`
	TreatmentSuggestion TreatmentSuggestion `json:"treatment_suggestion"`
	DisplayName         string              `json:"display_name"`
}

// DisplayName 患者展示名，编号从 1 开始
func DisplayName(id int) string {
	return fmt.Sprintf("患者 %d", id+1)
}
