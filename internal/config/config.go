package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis_service"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Session  SessionConfig  `mapstructure:"session"`
	Export   ExportConfig   `mapstructure:"export"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	ProductionMode bool   `mapstructure:"production_mode"`
}

// GetAddress 获取服务器地址
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig Redis配置，Host 为空时不启用 Redis
type RedisConfig struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	DB                    int    `mapstructure:"db"`
	Password              string `mapstructure:"password"`
	MaxWaitTime           int    `mapstructure:"max_wait_time"`
	MaxConcurrentAnalyses int    `mapstructure:"max_concurrent_analyses"`
}

// Enabled 是否配置了 Redis
func (r *RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Host) != ""
}

// GetAddress 获取Redis地址
func (r *RedisConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GetMaxWaitDuration 获取最大等待时间
func (r *RedisConfig) GetMaxWaitDuration() time.Duration {
	return time.Duration(r.MaxWaitTime) * time.Second
}

// CORSConfig CORS配置
type CORSConfig struct {
	Origins          []string `mapstructure:"origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
}

// DatasetConfig 参考数据集配置
//
// Source 可以是本地文件路径（.xlsx/.csv）、http(s) 地址，或者 "db"（使用数据库中导入的数据）。
type DatasetConfig struct {
	Source        string `mapstructure:"source"`
	Sheet         string `mapstructure:"sheet"`
	FetchTimeout  int    `mapstructure:"fetch_timeout"`
	ReloadOnReset bool   `mapstructure:"reload_on_reset"`
}

// GetFetchTimeout 获取远程数据集拉取超时
func (d *DatasetConfig) GetFetchTimeout() time.Duration {
	return time.Duration(d.FetchTimeout) * time.Second
}

// UploadConfig 上传限制
type UploadConfig struct {
	MaxFilesPerPhase  int `mapstructure:"max_files_per_phase"`
	MaxFileSizeMB     int `mapstructure:"max_file_size_mb"`
	DecodeConcurrency int `mapstructure:"decode_concurrency"`
}

// GetMaxFileSize 单个文件最大字节数
func (u *UploadConfig) GetMaxFileSize() int64 {
	return int64(u.MaxFileSizeMB) << 20
}

// AnalysisConfig 分析阶段配置，延迟仅用于展示效果，不影响结果
type AnalysisConfig struct {
	AdviceDelayMS int `mapstructure:"advice_delay_ms"`
	MatchDelayMS  int `mapstructure:"match_delay_ms"`
}

// GetAdviceDelay 诊疗建议生成的展示延迟
func (a *AnalysisConfig) GetAdviceDelay() time.Duration {
	return time.Duration(a.AdviceDelayMS) * time.Millisecond
}

// GetMatchDelay 匹配阶段的展示延迟
func (a *AnalysisConfig) GetMatchDelay() time.Duration {
	return time.Duration(a.MatchDelayMS) * time.Millisecond
}

// SessionConfig 会话配置
type SessionConfig struct {
	IdleTimeoutMinutes     int `mapstructure:"idle_timeout_minutes"`
	JanitorIntervalSeconds int `mapstructure:"janitor_interval_seconds"`
}

// GetIdleTimeout 会话空闲过期时间
func (s *SessionConfig) GetIdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutMinutes) * time.Minute
}

// GetJanitorInterval 清理间隔
func (s *SessionConfig) GetJanitorInterval() time.Duration {
	return time.Duration(s.JanitorIntervalSeconds) * time.Second
}

// ExportConfig 报告导出配置
type ExportConfig struct {
	DefaultFormat  string `mapstructure:"default_format"`
	SheetName      string `mapstructure:"sheet_name"`
	FilenamePrefix string `mapstructure:"filename_prefix"`
}
