package intake

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// RawFile 操作者选择的文件，只在本次上传中存在
type RawFile struct {
	Name    string
	Content []byte
}

// Payload 解码后的图片，DataURL 可以直接交给前端展示
type Payload struct {
	Format  string `json:"format"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Size    int    `json:"size"`
	DataURL string `json:"data_url"`
}

// IndexedImage 带编号的图片，Index 来自文件名而不是选择顺序
type IndexedImage struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Payload Payload `json:"payload"`
}

// Decoder 把原始字节解码为图片载荷
type Decoder interface {
	Decode(ctx context.Context, file RawFile) (Payload, error)
}

// DecoderFunc 函数适配器
type DecoderFunc func(ctx context.Context, file RawFile) (Payload, error)

// Decode 实现 Decoder
func (f DecoderFunc) Decode(ctx context.Context, file RawFile) (Payload, error) {
	return f(ctx, file)
}

// DataURLDecoder 只读取 jpeg/png 文件头获得格式与尺寸，并输出 base64 data URL
type DataURLDecoder struct{}

// Decode 实现 Decoder
func (DataURLDecoder) Decode(ctx context.Context, file RawFile) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(file.Content))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return Payload{
		Format:  format,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Size:    len(file.Content),
		DataURL: fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(file.Content)),
	}, nil
}
