package intake

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc 每完成一个文件的解码回调一次，会被多个 goroutine 并发调用
type ProgressFunc func(done, total int)

// Loader 并发解码一个批次的图片，并按文件名编号升序输出
type Loader struct {
	decoder     Decoder
	concurrency int
	maxFiles    int
	maxFileSize int64
	logger      *logrus.Logger
}

// Option Loader 配置项
type Option func(*Loader)

// WithDecoder 替换默认解码器
func WithDecoder(d Decoder) Option {
	return func(l *Loader) { l.decoder = d }
}

// WithConcurrency 同时进行的解码数，<=0 表示不限制
func WithConcurrency(n int) Option {
	return func(l *Loader) { l.concurrency = n }
}

// WithLimits 批次文件数与单文件大小上限，<=0 表示不限制
func WithLimits(maxFiles int, maxFileSize int64) Option {
	return func(l *Loader) {
		l.maxFiles = maxFiles
		l.maxFileSize = maxFileSize
	}
}

// WithLogger 设置日志
func WithLogger(logger *logrus.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader 创建图片加载器
func NewLoader(opts ...Option) *Loader {
	l := &Loader{decoder: DataURLDecoder{}}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logrus.New()
		l.logger.SetOutput(io.Discard)
	}
	return l
}

// Check 在调度任何解码之前校验整个批次
//
// 任一文件不合法即整批失败，返回 *BatchError。
func (l *Loader) Check(files []RawFile, side Side) error {
	if len(files) == 0 {
		return &BatchError{Side: side, Err: ErrEmptyBatch}
	}
	if l.maxFiles > 0 && len(files) > l.maxFiles {
		return &BatchError{Side: side, Err: ErrTooManyFiles}
	}
	for _, f := range files {
		if !Validate(f.Name, side) {
			return &BatchError{Side: side, File: f.Name, Err: ErrInvalidFilename}
		}
		if _, ok := ExtractIndex(f.Name); !ok {
			return &BatchError{Side: side, File: f.Name, Err: ErrIndexNotFound}
		}
		if l.maxFileSize > 0 && int64(len(f.Content)) > l.maxFileSize {
			return &BatchError{Side: side, File: f.Name, Err: ErrFileTooLarge}
		}
	}
	return nil
}

// Load 校验并并发解码整个批次，全部完成后按编号升序返回
//
// 编号重复时，选择顺序中靠后的文件覆盖靠前的文件。任何一个文件解码失败则整批失败。
func (l *Loader) Load(ctx context.Context, files []RawFile, side Side, progress ProgressFunc) ([]IndexedImage, error) {
	if err := l.Check(files, side); err != nil {
		return nil, err
	}

	total := len(files)
	decoded := make([]IndexedImage, total)
	var done int64

	g, gctx := errgroup.WithContext(ctx)
	if l.concurrency > 0 {
		g.SetLimit(l.concurrency)
	}
	for i, f := range files {
		i, f := i, f
		index, _ := ExtractIndex(f.Name)
		g.Go(func() error {
			payload, err := l.decoder.Decode(gctx, f)
			if err != nil {
				if !errors.Is(err, ErrDecode) && gctx.Err() != nil {
					return err
				}
				return &BatchError{Side: side, File: f.Name, Err: err}
			}
			decoded[i] = IndexedImage{Index: index, Name: f.Name, Payload: payload}
			n := atomic.AddInt64(&done, 1)
			if progress != nil {
				progress(int(n), total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.logger.WithFields(logrus.Fields{"side": side, "files": total}).WithError(err).Warn("批次解码失败")
		return nil, err
	}

	out := orderByIndex(decoded)
	l.logger.WithFields(logrus.Fields{"side": side, "files": total, "images": len(out)}).Info("批次解码完成")
	return out, nil
}

// orderByIndex 按编号去重（后者覆盖前者）并升序排列
func orderByIndex(images []IndexedImage) []IndexedImage {
	pos := make(map[int]int, len(images))
	out := make([]IndexedImage, 0, len(images))
	for _, img := range images {
		if p, dup := pos[img.Index]; dup {
			out[p] = img
			continue
		}
		pos[img.Index] = len(out)
		out = append(out, img)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Index < out[b].Index })
	return out
}
