package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fundus-go/internal/config"
	"fundus-go/internal/dataset"
	"fundus-go/internal/diagnosis"
	"fundus-go/internal/intake"
	"fundus-go/internal/models"
	"fundus-go/internal/repository"
	"fundus-go/internal/router"
	"fundus-go/internal/service"
	"fundus-go/pkg/redis_limiter"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// shutdownTimeout 优雅退出的最长等待时间
const shutdownTimeout = 15 * time.Second

func main() {
	// 加载配置（从项目根目录读取）
	cfg, err := config.LoadConfig("./config/config.yaml")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化日志
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// 初始化数据库
	if err := models.InitDB(cfg); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	datasetRepo := repository.NewDatasetRepository(models.GetDB())

	// 初始化参考数据集
	source := dataset.SourceFor(cfg.Dataset.Source, cfg.Dataset.Sheet, cfg.Dataset.GetFetchTimeout(), datasetRepo)
	datasetService := service.NewDatasetService(source, datasetRepo, cfg.Dataset.Sheet, logger)
	table := datasetService.Reload(context.Background())
	logger.WithFields(logrus.Fields{"source": table.Source(), "rows": table.Len()}).Info("参考数据集已加载")

	// 初始化会话管理
	pipeline := &service.Pipeline{
		Images: intake.NewLoader(
			intake.WithConcurrency(cfg.Upload.DecodeConcurrency),
			intake.WithLimits(cfg.Upload.MaxFilesPerPhase, cfg.Upload.GetMaxFileSize()),
			intake.WithLogger(logger),
		),
		Datasets:      datasetService,
		Advice:        diagnosis.NewAdviceGenerator(cfg.Analysis.GetAdviceDelay()),
		MatchDelay:    cfg.Analysis.GetMatchDelay(),
		ReloadOnReset: cfg.Dataset.ReloadOnReset,
		Logger:        logger,
	}
	opts := service.ManagerOptions{
		IdleTimeout:     cfg.Session.GetIdleTimeout(),
		JanitorInterval: cfg.Session.GetJanitorInterval(),
		LimiterMaxWait:  cfg.Redis.GetMaxWaitDuration(),
	}

	// 初始化Redis，未配置时不限制跨实例并发
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddress(),
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).Warn("Redis 连接失败，分析槽位等待可能超时")
		}
		opts.Limiter = redis_limiter.NewRedisLimiter(
			redisClient,
			cfg.Redis.MaxConcurrentAnalyses,
			"fundus:limiter:",
			10*time.Minute,
			logger,
		)
		logger.Infof("分析并发限制: %d", cfg.Redis.MaxConcurrentAnalyses)
	}

	sessionManager := service.NewSessionManager(pipeline, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sessionManager.RunJanitor(ctx)

	// 设置路由
	r := router.SetupRouter(cfg, logger, sessionManager, datasetService)

	// 启动服务器
	addr := cfg.Server.GetAddress()
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("服务器启动在 %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("启动服务器失败: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("正在关闭服务器")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("关闭HTTP服务失败")
	}
	if err := sessionManager.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("等待后台分析退出超时")
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logger.Info("服务器已退出")
}
