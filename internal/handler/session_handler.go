package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"time"

	"fundus-go/internal/config"
	"fundus-go/internal/dto"
	"fundus-go/internal/intake"
	"fundus-go/internal/middleware"
	"fundus-go/internal/report"
	"fundus-go/internal/service"
	"fundus-go/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// uploadField 上传批次使用的 multipart 字段名
const uploadField = "files"

// SessionHandler 会话处理器
type SessionHandler struct {
	manager *service.SessionManager
	export  config.ExportConfig
	logger  *logrus.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(manager *service.SessionManager, export config.ExportConfig, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		export:  export,
		logger:  logger,
	}
}

// session 取路径中的会话，不存在时已写入响应
func (h *SessionHandler) session(c *gin.Context) (*service.Session, bool) {
	s, err := h.manager.Get(c.Param(middleware.SessionIDParam))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return s, true
}

// Create 创建会话
func (h *SessionHandler) Create(c *gin.Context) {
	s := h.manager.Create()
	utils.SuccessWithMessage(c, "会话已创建", s.Snapshot())
}

// List 会话列表
func (h *SessionHandler) List(c *gin.Context) {
	sessions := h.manager.List()
	utils.SuccessResponse(c, dto.SessionListResponse{
		Success:  true,
		Sessions: sessions,
		Total:    len(sessions),
	})
}

// Get 会话状态
func (h *SessionHandler) Get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, s.Snapshot())
}

// Start 开始上传左眼图片
func (h *SessionHandler) Start(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Start(); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, s.Snapshot())
}

// UploadLeft 上传左眼批次
func (h *SessionHandler) UploadLeft(c *gin.Context) {
	h.upload(c, intake.SideLeft)
}

// UploadRight 上传右眼批次，成功后在后台开始分析
func (h *SessionHandler) UploadRight(c *gin.Context) {
	h.upload(c, intake.SideRight)
}

func (h *SessionHandler) upload(c *gin.Context, side intake.Side) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.CanSubmit(side); err != nil {
		respondError(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequest(c, "文件上传失败: "+err.Error())
		return
	}
	headers := form.File[uploadField]

	// 文件名不合规时整批拒绝，不读取任何文件内容
	for _, fh := range headers {
		if err := utils.ValidateFilename(fh.Filename, side); err != nil {
			s.RejectBatch(side, err)
			respondError(c, err)
			return
		}
	}

	files, err := readFiles(headers)
	if err != nil {
		utils.BadRequest(c, "读取文件失败: "+err.Error())
		return
	}

	var images []intake.IndexedImage
	if side == intake.SideLeft {
		images, err = s.SubmitLeft(c.Request.Context(), files)
	} else {
		images, err = h.manager.SubmitRight(c.Request.Context(), s, files)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	indices := make([]int, len(images))
	for i, img := range images {
		indices[i] = img.Index
	}
	utils.SuccessWithMessage(c, fmt.Sprintf("%s上传成功", side.Label()), dto.UploadResponse{
		Session:  s.Snapshot(),
		Accepted: len(images),
		Indices:  indices,
	})
}

func readFiles(headers []*multipart.FileHeader) ([]intake.RawFile, error) {
	files := make([]intake.RawFile, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, intake.RawFile{Name: fh.Filename, Content: content})
	}
	return files, nil
}

// Analyze 重新尝试开始分析，用于分析槽位等待超时之后
func (h *SessionHandler) Analyze(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.manager.StartAnalysis(c.Request.Context(), s); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "分析已开始", s.Snapshot())
}

// GetProgress 会话进度(SSE)
func (h *SessionHandler) GetProgress(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	progressChan := s.Subscribe()
	defer s.Unsubscribe(progressChan) // 确保断开连接时取消订阅
	history := s.GetEventHistory()

	// 设置SSE响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 发送初始连接成功事件
	writeEvent(c, map[string]interface{}{
		"type":       "connected",
		"message":    "SSE连接已建立",
		"session_id": s.ID,
	})

	// 先发送历史事件
	for _, event := range history {
		writeEvent(c, event)
		if event.Type == dto.EventFinished {
			return
		}
	}

	// 使用 context 来处理客户端断开连接
	ctx := c.Request.Context()
	log := h.logger.WithField("session_id", s.ID)

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE 客户端断开连接")
			return
		case event, ok := <-progressChan:
			if !ok {
				return
			}
			writeEvent(c, event)
			if event.Type == dto.EventFinished {
				return
			}
		}
	}
}

func writeEvent(c *gin.Context, event interface{}) {
	data, _ := json.Marshal(event)
	fmt.Fprintf(c.Writer, "data: %s\n\n", string(data))
	c.Writer.Flush()
}

// Records 患者记录，仅分析完成后可用
func (h *SessionHandler) Records(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	records, err := s.Records()
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, dto.RecordsResponse{
		SessionID: s.ID,
		Records:   records,
		Total:     len(records),
	})
}

// Export 下载诊断报告
func (h *SessionHandler) Export(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, utils.BindingMessage(err))
		return
	}
	def, err := report.ParseFormat(h.export.DefaultFormat, report.FormatXLSX)
	if err != nil {
		def = report.FormatXLSX
	}
	format, err := report.ParseFormat(query.Format, def)
	if err != nil {
		respondError(c, err)
		return
	}

	records, err := s.Records()
	if err != nil {
		respondError(c, err)
		return
	}

	sheet := h.export.SheetName
	if sheet == "" {
		sheet = report.DefaultSheet
	}
	var buf bytes.Buffer
	if err := report.Export(&buf, format, sheet, report.Rows(records)); err != nil {
		h.logger.WithField("session_id", s.ID).WithError(err).Error("生成报告失败")
		utils.InternalError(c, "生成报告失败: "+err.Error())
		return
	}

	filename := report.Filename(h.export.FilenamePrefix, format, time.Now())
	// 设置正确的 Content-Disposition，支持 UTF-8 编码
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"; filename*=UTF-8''"+encodedFilename)
	c.Data(200, format.ContentType(), buf.Bytes())
}

// Reset 重置会话到初始状态
func (h *SessionHandler) Reset(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Reset(c.Request.Context())
	utils.SuccessWithMessage(c, "会话已重置", s.Snapshot())
}

// Delete 删除会话
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.manager.Delete(c.Request.Context(), c.Param(middleware.SessionIDParam)); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "会话已删除", nil)
}
