package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fundus-go/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// 全局参数
	configFile string
	verbose    bool

	cfg    *config.Config
	logger *logrus.Logger
)

// rootCmd 命令行入口
var rootCmd = &cobra.Command{
	Use:   "fundusctl",
	Short: "眼底图像批量诊断工具",
	Long: `fundusctl 在本地离线运行与服务端相同的处理流程：
按编号配对左右眼图片，查找参考数据集中的诊断，生成诊疗建议并导出报告。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.InfoLevel)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}

		if configFile == "" {
			cfg = config.Default()
			return nil
		}
		var err error
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径（默认使用内置默认值）")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")

	rootCmd.AddCommand(analyzeCmd, adviseCmd, datasetCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
