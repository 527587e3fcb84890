package diagnosis

import "fundus-go/internal/intake"

// Assemble 按位置把左右眼图片、匹配结果和建议组装成患者记录
//
// 四个序列长度必须一致；id 即位置，综合诊断取左眼诊断。
func Assemble(left, right []intake.IndexedImage, matches []Match, advice []string) ([]PatientRecord, error) {
	n := len(left)
	if len(right) != n || len(matches) != n || len(advice) != n {
		return nil, ErrCountMismatch
	}

	records := make([]PatientRecord, n)
	for i := 0; i < n; i++ {
		disease := matches[i].Disease
		records[i] = PatientRecord{
			ID:                  i,
			LeftEye:             EyeAnalysis{Image: left[i].Payload, Name: left[i].Name, Disease: disease},
			RightEye:            EyeAnalysis{Image: right[i].Payload, Name: right[i].Name, Disease: disease},
			CombinedDiagnosis:   CombinedDiagnosis{PrimaryDisease: disease},
			TreatmentSuggestion: TreatmentSuggestion{PrimaryDisease: disease, Suggestions: advice[i]},
			DisplayName:         DisplayName(i),
		}
	}
	return records, nil
}
