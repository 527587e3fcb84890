package handler

import (
	"fundus-go/internal/diagnosis"
	"fundus-go/internal/dto"
	"fundus-go/internal/utils"

	"github.com/gin-gonic/gin"
)

// AdviceHandler 诊疗建议处理器
type AdviceHandler struct{}

// NewAdviceHandler 创建诊疗建议处理器
func NewAdviceHandler() *AdviceHandler {
	return &AdviceHandler{}
}

// Get 按诊断文本返回建议，多个诊断用逗号分隔
func (h *AdviceHandler) Get(c *gin.Context) {
	var query dto.AdviceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, utils.BindingMessage(err))
		return
	}
	utils.SuccessResponse(c, dto.AdviceResponse{
		Disease:     query.Disease,
		Suggestions: diagnosis.Advise(query.Disease),
	})
}
