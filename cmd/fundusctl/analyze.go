package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fundus-go/internal/dataset"
	"fundus-go/internal/diagnosis"
	"fundus-go/internal/intake"
	"fundus-go/internal/models"
	"fundus-go/internal/report"
	"fundus-go/internal/repository"
	"fundus-go/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	leftDir       string
	rightDir      string
	datasetSource string
	outFile       string
	outFormat     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "分析一批左右眼图片并导出诊断报告",
	Example: `  fundusctl analyze --left ./left --right ./right --dataset ./store/data.xlsx --out report.xlsx
  fundusctl analyze --left ./left --right ./right --out report.csv --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd.Context())
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&leftDir, "left", "", "左眼图片目录，文件名形如 0_left.jpg")
	analyzeCmd.Flags().StringVar(&rightDir, "right", "", "右眼图片目录，文件名形如 0_right.jpg")
	analyzeCmd.Flags().StringVar(&datasetSource, "dataset", "", "参考数据集：.xlsx/.csv 路径、http(s) 地址或 db（默认取配置）")
	analyzeCmd.Flags().StringVarP(&outFile, "out", "o", "", "报告输出路径（默认按时间生成文件名）")
	analyzeCmd.Flags().StringVar(&outFormat, "format", "", "报告格式 xlsx|csv（默认按输出文件扩展名或配置）")
	_ = analyzeCmd.MarkFlagRequired("left")
	_ = analyzeCmd.MarkFlagRequired("right")
}

func runAnalyze(ctx context.Context) error {
	format, err := reportFormat()
	if err != nil {
		return err
	}

	left, err := readDir(leftDir)
	if err != nil {
		return err
	}
	right, err := readDir(rightDir)
	if err != nil {
		return err
	}

	datasets, err := openDatasets(ctx, datasetSource)
	if err != nil {
		return err
	}

	pipeline := &service.Pipeline{
		Images: intake.NewLoader(
			intake.WithConcurrency(cfg.Upload.DecodeConcurrency),
			intake.WithLimits(cfg.Upload.MaxFilesPerPhase, cfg.Upload.GetMaxFileSize()),
			intake.WithLogger(logger),
		),
		Datasets: datasets,
		Advice:   diagnosis.NewAdviceGenerator(0),
		Logger:   logger,
	}
	s := service.NewSession("cli", pipeline)

	if err := s.Start(); err != nil {
		return err
	}
	if _, err := s.SubmitLeft(ctx, left); err != nil {
		return err
	}
	if _, err := s.SubmitRight(ctx, right); err != nil {
		return err
	}
	records, err := s.Analyze(ctx)
	if err != nil {
		return err
	}

	path := outFile
	if path == "" {
		path = report.Filename(cfg.Export.FilenamePrefix, format, time.Now())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建报告文件失败: %w", err)
	}
	if err := report.Export(f, format, cfg.Export.SheetName, report.Rows(records)); err != nil {
		f.Close()
		return fmt.Errorf("写入报告失败: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	matched := 0
	for _, rec := range records {
		if rec.CombinedDiagnosis.PrimaryDisease != diagnosis.Unknown {
			matched++
		}
	}
	logger.WithFields(logrus.Fields{
		"patients": len(records),
		"matched":  matched,
		"out":      path,
	}).Info("报告已生成")
	return nil
}

// reportFormat --format 优先，其次输出文件扩展名，最后取配置
func reportFormat() (report.Format, error) {
	def, err := report.ParseFormat(cfg.Export.DefaultFormat, report.FormatXLSX)
	if err != nil {
		return "", err
	}
	if outFormat == "" && outFile != "" {
		if ext := strings.TrimPrefix(filepath.Ext(outFile), "."); ext != "" {
			return report.ParseFormat(ext, def)
		}
	}
	return report.ParseFormat(outFormat, def)
}

// readDir 读取目录下的全部文件（跳过子目录和隐藏文件），按文件名排序
func readDir(dir string) ([]intake.RawFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var files []intake.RawFile
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("读取文件失败: %w", err)
		}
		files = append(files, intake.RawFile{Name: e.Name(), Content: content})
	}
	return files, nil
}

// openDatasets 按来源加载参考数据集，来源为 db 时打开配置中的数据库
func openDatasets(ctx context.Context, location string) (*service.DatasetService, error) {
	if location == "" {
		location = cfg.Dataset.Source
	}

	var repo *repository.DatasetRepository
	var source dataset.Source
	if location == "db" {
		db, err := models.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("打开数据库失败: %w", err)
		}
		repo = repository.NewDatasetRepository(db)
		source = dataset.StoreSource{Store: repo}
	} else {
		source = dataset.SourceFor(location, cfg.Dataset.Sheet, cfg.Dataset.GetFetchTimeout(), nil)
	}

	svc := service.NewDatasetService(source, repo, cfg.Dataset.Sheet, logger)
	table := svc.Reload(ctx)
	logger.WithFields(logrus.Fields{"source": table.Source(), "rows": table.Len()}).Info("参考数据集已加载")
	return svc, nil
}
