package dto

import "fundus-go/internal/diagnosis"

// 进度事件类型
const (
	EventState    = "state"    // 状态迁移
	EventProgress = "progress" // 解码或匹配进度
	EventError    = "error"    // 当前阶段失败
	EventFinished = "finished" // 分析完成，结果可用
	EventReset    = "reset"    // 会话已重置
)

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type    string  `json:"type"`
	State   string  `json:"state,omitempty"`
	Phase   string  `json:"phase,omitempty"` // left, right, analysis
	Done    *int    `json:"done,omitempty"`
	Total   *int    `json:"total,omitempty"`
	Percent float64 `json:"percent,omitempty"`
	Message string  `json:"message,omitempty"`
	Epoch   uint64  `json:"epoch"`
}

// SessionResponse 会话状态
type SessionResponse struct {
	SessionID     string `json:"session_id"`
	State         string `json:"state"`
	Epoch         uint64 `json:"epoch"`
	Busy          bool   `json:"busy"`
	LeftCount     int    `json:"left_count"`
	RightCount    int    `json:"right_count"`
	RecordCount   int    `json:"record_count"`
	LastError     string `json:"last_error,omitempty"`
	DatasetSource string `json:"dataset_source,omitempty"`
	DatasetRows   int    `json:"dataset_rows"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// SessionListResponse 会话列表
type SessionListResponse struct {
	Success  bool              `json:"success"`
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

// UploadResponse 单个阶段上传结果
type UploadResponse struct {
	Session  SessionResponse `json:"session"`
	Accepted int             `json:"accepted"`
	Indices  []int           `json:"indices"`
}

// RecordsResponse 患者记录列表
type RecordsResponse struct {
	SessionID string                    `json:"session_id"`
	Records   []diagnosis.PatientRecord `json:"records"`
	Total     int                       `json:"total"`
}

// ExportQuery 导出参数
type ExportQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=xlsx csv"`
}
