package dataset

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// Loader 加载参考数据集
//
// 拉取或解析失败不会向上返回错误，而是记录日志并返回空表，匹配随之全部降级为未知。
// 可以重复调用，每次都重新拉取。
type Loader struct {
	logger *logrus.Logger
}

// NewLoader 创建数据集加载器
func NewLoader(logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Loader{logger: logger}
}

// Load 拉取并构建查找表，永不返回 nil
func (l *Loader) Load(ctx context.Context, src Source) *Table {
	if src == nil {
		l.logger.Warn("未配置参考数据集，所有匹配将为未知")
		return Empty("")
	}

	rows, err := src.Fetch(ctx)
	if err != nil {
		l.logger.WithField("source", src.Name()).WithError(err).Warn("读取参考数据集失败，使用空数据集")
		return Empty(src.Name())
	}

	l.logger.WithFields(logrus.Fields{
		"source": src.Name(),
		"rows":   len(rows),
	}).Info("参考数据集加载完成")
	return NewTable(src.Name(), rows)
}
