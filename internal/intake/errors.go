package intake

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBatch      = errors.New("未选择任何文件")
	ErrInvalidFilename = errors.New("文件名不符合命名规则")
	ErrIndexNotFound   = errors.New("无法从文件名中解析编号")
	ErrTooManyFiles    = errors.New("文件数量超过上限")
	ErrFileTooLarge    = errors.New("文件大小超过上限")
	ErrDecode          = errors.New("图片解码失败")
)

// BatchError 一个批次中导致整批失败的文件
//
// Error() 的结果就是展示给操作者的唯一提示信息。
type BatchError struct {
	Side Side
	File string
	Err  error
}

func (e *BatchError) Error() string {
	switch {
	case errors.Is(e.Err, ErrInvalidFilename):
		return fmt.Sprintf("%s文件 %q 命名错误，%s", e.Side.Label(), e.File, NamingHint(e.Side))
	case errors.Is(e.Err, ErrIndexNotFound):
		return fmt.Sprintf("%s文件 %q 无法解析编号，%s", e.Side.Label(), e.File, NamingHint(e.Side))
	case e.File == "":
		return fmt.Sprintf("%s批次失败: %v", e.Side.Label(), e.Err)
	default:
		return fmt.Sprintf("%s文件 %q: %v", e.Side.Label(), e.File, e.Err)
	}
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
