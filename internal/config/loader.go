package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 FUNDUS_SERVER_PORT
const EnvPrefix = "FUNDUS"

// LoadConfig 加载配置文件
//
// configFile 为空时在 . 和 ./config 下查找 config.yaml；找不到配置文件时使用默认值。
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	// 设置配置文件路径
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// 读取环境变量
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); configFile != "" || !notFound {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 设置默认值
	setDefaults(&cfg)

	// 验证配置
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// Default 返回全部使用默认值的配置（CLI 未指定配置文件时使用）
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// bindEnvKeys AutomaticEnv 只对已知 key 生效，Unmarshal 前需要显式绑定
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port", "server.production_mode",
		"database.path",
		"redis_service.host", "redis_service.port", "redis_service.db", "redis_service.password",
		"redis_service.max_wait_time", "redis_service.max_concurrent_analyses",
		"dataset.source", "dataset.sheet", "dataset.fetch_timeout", "dataset.reload_on_reset",
		"upload.max_files_per_phase", "upload.max_file_size_mb", "upload.decode_concurrency",
		"analysis.advice_delay_ms", "analysis.match_delay_ms",
		"session.idle_timeout_minutes", "session.janitor_interval_seconds",
		"export.default_format", "export.sheet_name", "export.filename_prefix",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 18080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./database/fundus.db"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379 // 标准 Redis 端口
	}
	if cfg.Redis.MaxWaitTime == 0 {
		cfg.Redis.MaxWaitTime = 30
	}
	if cfg.Redis.MaxConcurrentAnalyses == 0 {
		cfg.Redis.MaxConcurrentAnalyses = 8
	}
	if cfg.CORS.AllowMethods == nil {
		cfg.CORS.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if cfg.CORS.AllowHeaders == nil {
		cfg.CORS.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	}
	if cfg.Dataset.Source == "" {
		cfg.Dataset.Source = "./store/data.xlsx"
	}
	if cfg.Dataset.FetchTimeout == 0 {
		cfg.Dataset.FetchTimeout = 15
	}
	if cfg.Upload.MaxFilesPerPhase == 0 {
		cfg.Upload.MaxFilesPerPhase = 500
	}
	if cfg.Upload.MaxFileSizeMB == 0 {
		cfg.Upload.MaxFileSizeMB = 20
	}
	if cfg.Upload.DecodeConcurrency == 0 {
		cfg.Upload.DecodeConcurrency = 8
	}
	if cfg.Session.IdleTimeoutMinutes == 0 {
		cfg.Session.IdleTimeoutMinutes = 60
	}
	if cfg.Session.JanitorIntervalSeconds == 0 {
		cfg.Session.JanitorIntervalSeconds = 60
	}
	if cfg.Export.DefaultFormat == "" {
		cfg.Export.DefaultFormat = "xlsx"
	}
	if cfg.Export.SheetName == "" {
		cfg.Export.SheetName = "诊断报告"
	}
	if cfg.Export.FilenamePrefix == "" {
		cfg.Export.FilenamePrefix = "批量诊断报告"
	}
}

// validateConfig 验证配置
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("无效的服务器端口: %d", cfg.Server.Port)
	}

	if cfg.Upload.MaxFilesPerPhase < 0 || cfg.Upload.MaxFileSizeMB < 0 || cfg.Upload.DecodeConcurrency < 0 {
		return fmt.Errorf("上传限制不能为负数")
	}

	if cfg.Analysis.AdviceDelayMS < 0 || cfg.Analysis.MatchDelayMS < 0 {
		return fmt.Errorf("分析延迟不能为负数")
	}

	switch cfg.Export.DefaultFormat {
	case "xlsx", "csv":
	default:
		return fmt.Errorf("不支持的导出格式: %s", cfg.Export.DefaultFormat)
	}

	// 检查数据库目录是否存在
	dbDir := filepath.Dir(cfg.Database.Path)
	if _, err := os.Stat(dbDir); os.IsNotExist(err) {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	return nil
}
