package codec

import (
	"context"
	"errors"
)

// ErrUnsupportedFormat 后端不支持请求的输出格式
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Rect 裁剪区域
type Rect struct {
	X, Y, W, H int
}

// Options 编解码参数。默认值与 DPR 已在上游应用。
type Options struct {
	// 目标尺寸，0 表示该维度不约束
	Width  int
	Height int

	Fit     string // cover/contain/inside/outside
	Format  string // webp/avif/jpeg/png
	Quality int

	Background string // 6 位十六进制背景色，空表示不铺底
	Crop       *Rect
	Blur       int
	Sharpen    int

	AutoOrient    bool
	StripMetadata bool
}

// Result 转换结果
type Result struct {
	Bytes    []byte
	MimeType string
	Width    int
	Height   int
}

// Codec 图像编解码能力。像素级算法由具体后端实现。
type Codec interface {
	Transform(ctx context.Context, src []byte, opts Options) (*Result, error)
	Name() string
}

// MimeTypeFor 输出格式对应的 MIME 类型
func MimeTypeFor(format string) string {
	switch format {
	case "avif":
		return "image/avif"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "image/webp"
	}
}