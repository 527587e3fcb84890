package dto

// DatasetStatusResponse 当前参考数据集
type DatasetStatusResponse struct {
	Source     string   `json:"source"`
	Rows       int      `json:"rows"`
	LoadedAt   string   `json:"loaded_at"`
	Conditions []string `json:"conditions"`
}

// DatasetImportResponse 导入结果
type DatasetImportResponse struct {
	ImportID uint   `json:"import_id"`
	Source   string `json:"source"`
	Rows     int    `json:"rows"`
	Reloaded bool   `json:"reloaded"`
}

// LookupQuery 单张图片查找参数
type LookupQuery struct {
	Name string `form:"name" binding:"required"`
	Side string `form:"side" binding:"required"`
}

// LookupResponse 单张图片查找结果
type LookupResponse struct {
	Name    string `json:"name"`
	Side    string `json:"side"`
	Found   bool   `json:"found"`
	Disease string `json:"disease"`
	Advice  string `json:"advice"`
}

// AdviceQuery 诊疗建议参数
type AdviceQuery struct {
	Disease string `form:"disease" binding:"required"`
}

// AdviceResponse 诊疗建议
type AdviceResponse struct {
	Disease     string `json:"disease"`
	Suggestions string `json:"suggestions"`
}
