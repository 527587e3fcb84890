package router

import (
	"fundus-go/internal/config"
	"fundus-go/internal/handler"
	"fundus-go/internal/middleware"
	"fundus-go/internal/service"
	"fundus-go/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// multipartOverhead 单次上传中表单边界等额外开销
const multipartOverhead = 1 << 20

// SetupRouter 设置路由
func SetupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	sessionManager *service.SessionManager,
	datasetService *service.DatasetService,
) *gin.Engine {
	// 设置Gin模式
	if cfg.Server.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.InitValidator()

	r := gin.New()

	// 全局中间件
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg))

	// 健康检查
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "眼底图像批量诊断系统 API",
			"version": "1.0.0",
		})
	})

	// 初始化Handler
	sessionHandler := handler.NewSessionHandler(sessionManager, cfg.Export, logger)
	datasetHandler := handler.NewDatasetHandler(datasetService)
	adviceHandler := handler.NewAdviceHandler()

	batchLimit := int64(cfg.Upload.MaxFilesPerPhase)*cfg.Upload.GetMaxFileSize() + multipartOverhead

	// API路由组
	api := r.Group("/api")
	{
		// 会话
		api.POST("/sessions", sessionHandler.Create)
		api.GET("/sessions", sessionHandler.List)

		sessions := api.Group("/sessions/:" + middleware.SessionIDParam)
		{
			sessions.GET("", sessionHandler.Get)
			sessions.DELETE("", sessionHandler.Delete)
			sessions.POST("/start", sessionHandler.Start)
			sessions.POST("/left", middleware.MaxBodySize(batchLimit), sessionHandler.UploadLeft)
			sessions.POST("/right", middleware.MaxBodySize(batchLimit), sessionHandler.UploadRight)
			sessions.POST("/analyze", sessionHandler.Analyze)
			sessions.GET("/progress", sessionHandler.GetProgress)
			sessions.GET("/records", sessionHandler.Records)
			sessions.GET("/export", sessionHandler.Export)
			sessions.POST("/reset", sessionHandler.Reset)
		}

		// 参考数据集
		api.GET("/dataset", datasetHandler.Status)
		api.POST("/dataset/reload", datasetHandler.Reload)
		api.POST("/dataset/import", middleware.MaxBodySize(cfg.Upload.GetMaxFileSize()+multipartOverhead), datasetHandler.Import)
		api.GET("/dataset/lookup", datasetHandler.Lookup)

		// 诊疗建议
		api.GET("/advice", adviceHandler.Get)
	}

	return r
}
