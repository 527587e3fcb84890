package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Source 参考数据集来源
type Source interface {
	// Name 用于日志与状态展示
	Name() string
	// Fetch 拉取并解析全部行
	Fetch(ctx context.Context) ([]Row, error)
}

// FileSource 本地 .xlsx/.csv 文件
type FileSource struct {
	Path  string
	Sheet string
}

// Name 实现 Source
func (s FileSource) Name() string {
	return s.Path
}

// Fetch 实现 Source
func (s FileSource) Fetch(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("读取数据集文件失败: %w", err)
	}
	return Parse(data, DetectFormat(s.Path), s.Sheet)
}

// HTTPSource 远程数据集，例如静态资源服务上的 /store/data.xlsx
type HTTPSource struct {
	URL     string
	Sheet   string
	Client  *http.Client
	Timeout time.Duration
}

// Name 实现 Source
func (s HTTPSource) Name() string {
	return s.URL
}

// Fetch 实现 Source
func (s HTTPSource) Fetch(ctx context.Context) ([]Row, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求数据集失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("请求数据集失败: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	format := DetectFormat(s.URL)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/csv") {
		format = FormatCSV
	}
	return Parse(data, format, s.Sheet)
}

// RowStore 持久化的参考数据
type RowStore interface {
	ListRows(ctx context.Context) ([]Row, error)
}

// StoreSource 从数据库中导入过的参考数据读取
type StoreSource struct {
	Store RowStore
}

// Name 实现 Source
func (s StoreSource) Name() string {
	return "db"
}

// Fetch 实现 Source
func (s StoreSource) Fetch(ctx context.Context) ([]Row, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("未配置数据库")
	}
	return s.Store.ListRows(ctx)
}

// SourceFor 根据配置字符串选择来源：http(s) 地址、"db" 或本地路径
func SourceFor(location, sheet string, timeout time.Duration, store RowStore) Source {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return HTTPSource{URL: location, Sheet: sheet, Timeout: timeout}
	case location == "db":
		return StoreSource{Store: store}
	default:
		return FileSource{Path: location, Sheet: sheet}
	}
}
