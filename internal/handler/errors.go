package handler

import (
	"errors"
	"net/http"

	"fundus-go/internal/diagnosis"
	"fundus-go/internal/intake"
	"fundus-go/internal/report"
	"fundus-go/internal/service"
	"fundus-go/internal/utils"

	"github.com/gin-gonic/gin"
)

// statusFor 业务错误对应的 HTTP 状态码
func statusFor(err error) int {
	var batchErr *intake.BatchError
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrBusy),
		errors.Is(err, service.ErrStaleSession):
		return http.StatusConflict
	case errors.Is(err, service.ErrAnalysisUnavailable),
		errors.Is(err, service.ErrNoDatabase):
		return http.StatusServiceUnavailable
	case errors.As(err, &batchErr),
		errors.Is(err, intake.ErrEmptyBatch),
		errors.Is(err, diagnosis.ErrCountMismatch),
		errors.Is(err, service.ErrInvalidDataset),
		errors.Is(err, report.ErrUnknownFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError 按错误类型写入统一的错误响应
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	msg := err.Error()
	switch statusFor(err) {
	case http.StatusBadRequest:
		utils.BadRequest(c, msg)
	case http.StatusNotFound:
		utils.NotFound(c, msg)
	case http.StatusConflict:
		utils.Conflict(c, msg)
	case http.StatusServiceUnavailable:
		utils.ServiceUnavailable(c, msg)
	default:
		utils.InternalError(c, msg)
	}
}
