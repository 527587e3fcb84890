package handler

import (
	"io"

	"fundus-go/internal/dto"
	"fundus-go/internal/intake"
	"fundus-go/internal/service"
	"fundus-go/internal/utils"

	"github.com/gin-gonic/gin"
)

// DatasetHandler 参考数据集处理器
type DatasetHandler struct {
	datasetService *service.DatasetService
}

// NewDatasetHandler 创建参考数据集处理器
func NewDatasetHandler(datasetService *service.DatasetService) *DatasetHandler {
	return &DatasetHandler{
		datasetService: datasetService,
	}
}

// Status 当前参考数据集概况
func (h *DatasetHandler) Status(c *gin.Context) {
	utils.SuccessResponse(c, h.datasetService.Status())
}

// Reload 从配置的来源重新加载
func (h *DatasetHandler) Reload(c *gin.Context) {
	h.datasetService.Reload(c.Request.Context())
	utils.SuccessWithMessage(c, "参考数据集已重新加载", h.datasetService.Status())
}

// Import 上传 xlsx/csv 替换数据库中的参考数据
func (h *DatasetHandler) Import(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		utils.BadRequest(c, "文件上传失败: "+err.Error())
		return
	}

	// 读取文件内容
	src, err := file.Open()
	if err != nil {
		utils.BadRequest(c, "打开文件失败: "+err.Error())
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		utils.BadRequest(c, "读取文件失败: "+err.Error())
		return
	}

	resp, err := h.datasetService.Import(c.Request.Context(), file.Filename, content)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "参考数据集导入成功", resp)
}

// Lookup 按单个文件名查找诊断
func (h *DatasetHandler) Lookup(c *gin.Context) {
	var query dto.LookupQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, utils.BindingMessage(err))
		return
	}
	side, err := intake.ParseSide(query.Side)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	utils.SuccessResponse(c, h.datasetService.Lookup(query.Name, side))
}
