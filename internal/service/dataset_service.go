package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"fundus-go/internal/dataset"
	"fundus-go/internal/diagnosis"
	"fundus-go/internal/dto"
	"fundus-go/internal/intake"
	"fundus-go/internal/models"
	"fundus-go/internal/repository"

	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidDataset 导入的文件无法解析
	ErrInvalidDataset = errors.New("参考数据集格式错误")
	// ErrNoDatabase 未配置数据库时无法导入
	ErrNoDatabase = errors.New("未配置数据库")
)

// DatasetService 持有当前参考数据集，支持重新加载与导入
type DatasetService struct {
	loader  *dataset.Loader
	source  dataset.Source
	repo    *repository.DatasetRepository
	sheet   string
	current atomic.Pointer[dataset.Table]
	logger  *logrus.Logger
}

// NewDatasetService 创建参考数据集服务，repo 可以为 nil
func NewDatasetService(source dataset.Source, repo *repository.DatasetRepository, sheet string, logger *logrus.Logger) *DatasetService {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	s := &DatasetService{
		loader: dataset.NewLoader(logger),
		source: source,
		repo:   repo,
		sheet:  sheet,
		logger: logger,
	}
	s.current.Store(dataset.Empty(""))
	return s
}

// Table 当前数据集，未加载时为空表
func (s *DatasetService) Table() *dataset.Table {
	return s.current.Load()
}

// Reload 从配置的来源重新加载，失败时替换为空表
func (s *DatasetService) Reload(ctx context.Context) *dataset.Table {
	table := s.loader.Load(ctx, s.source)
	s.current.Store(table)
	return table
}

// Import 解析上传的 xlsx/csv 并替换数据库中的参考数据，来源为 db 时随即重新加载
func (s *DatasetService) Import(ctx context.Context, filename string, data []byte) (*dto.DatasetImportResponse, error) {
	if s.repo == nil {
		return nil, ErrNoDatabase
	}

	rows, err := dataset.Parse(data, dataset.DetectFormat(filename), s.sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}

	imp, err := s.repo.ReplaceAll(ctx, filename, rows)
	if err != nil {
		return nil, fmt.Errorf("保存参考数据集失败: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"source": filename,
		"rows":   len(rows),
	}).Info("参考数据集已导入")

	resp := &dto.DatasetImportResponse{ImportID: imp.ID, Source: filename, Rows: len(rows)}
	if _, ok := s.source.(dataset.StoreSource); ok {
		s.Reload(ctx)
		resp.Reloaded = true
	}
	return resp, nil
}

// ImportRows 直接导入已解析的行，供命令行使用
func (s *DatasetService) ImportRows(ctx context.Context, source string, rows []dataset.Row) (*models.DatasetImport, error) {
	if s.repo == nil {
		return nil, ErrNoDatabase
	}
	return s.repo.ReplaceAll(ctx, source, rows)
}

// Lookup 单张图片按文件名查找诊断和建议
func (s *DatasetService) Lookup(name string, side intake.Side) dto.LookupResponse {
	resp := dto.LookupResponse{Name: name, Side: string(side), Disease: diagnosis.Unknown}
	if disease, ok := diagnosis.NewMatcher(s.Table()).LookupByName(name, side); ok {
		resp.Found = true
		resp.Disease = disease
	}
	resp.Advice = diagnosis.Advise(resp.Disease)
	return resp
}

// Status 当前数据集概况
func (s *DatasetService) Status() dto.DatasetStatusResponse {
	table := s.Table()
	resp := dto.DatasetStatusResponse{
		Source:     table.Source(),
		Rows:       table.Len(),
		Conditions: dataset.Conditions,
	}
	if t := table.LoadedAt(); !t.IsZero() {
		resp.LoadedAt = t.Format(time.RFC3339)
	}
	return resp
}
