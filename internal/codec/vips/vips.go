package vips

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/seyalabs/media-hub/internal/codec"
)

var startupOnce sync.Once

// Codec 基于 libvips 的编解码实现
type Codec struct{}

// New 创建 vips 编解码器，libvips 全进程只初始化一次
func New() *Codec {
	startupOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelError)
		vips.Startup(nil)
	})
	return &Codec{}
}

// Name 返回后端名称
func (c *Codec) Name() string {
	return "vips"
}

// Transform 执行一次图像转换
func (c *Codec) Transform(ctx context.Context, src []byte, opts codec.Options) (*codec.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	defer img.Close()

	if opts.AutoOrient {
		if err := img.AutoRotate(); err != nil {
			return nil, fmt.Errorf("failed to auto-rotate image: %w", err)
		}
	}

	if opts.Crop != nil {
		if err := img.ExtractArea(opts.Crop.X, opts.Crop.Y, opts.Crop.W, opts.Crop.H); err != nil {
			return nil, fmt.Errorf("failed to crop image: %w", err)
		}
	}

	if opts.Background != "" {
		color, err := parseHexColor(opts.Background)
		if err != nil {
			return nil, err
		}
		if err := img.Flatten(color); err != nil {
			return nil, fmt.Errorf("failed to flatten image: %w", err)
		}
	}

	if err := resize(img, opts); err != nil {
		return nil, err
	}

	if opts.Blur > 0 {
		if err := img.GaussianBlur(float64(opts.Blur)); err != nil {
			return nil, fmt.Errorf("failed to blur image: %w", err)
		}
	}

	if opts.Sharpen > 0 {
		if err := img.Sharpen(1.0, 2.0, 3.0); err != nil {
			return nil, fmt.Errorf("failed to sharpen image: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return export(img, opts)
}

// resize 按 fit 模式缩放，不放大原图
func resize(img *vips.ImageRef, opts codec.Options) error {
	w, h := opts.Width, opts.Height
	if w == 0 && h == 0 {
		return nil
	}

	srcW, srcH := img.Width(), img.Height()

	// 只给了一个维度时按比例缩放
	if w == 0 || h == 0 {
		scale := 1.0
		if w > 0 {
			scale = float64(w) / float64(srcW)
		} else {
			scale = float64(h) / float64(srcH)
		}
		if scale >= 1.0 {
			return nil
		}
		if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
			return fmt.Errorf("failed to resize image: %w", err)
		}
		return nil
	}

	switch opts.Fit {
	case "cover":
		if err := img.ThumbnailWithSize(w, h, vips.InterestingCentre, vips.SizeDown); err != nil {
			return fmt.Errorf("failed to resize image: %w", err)
		}
	case "contain", "inside":
		if err := img.ThumbnailWithSize(w, h, vips.InterestingNone, vips.SizeDown); err != nil {
			return fmt.Errorf("failed to resize image: %w", err)
		}
	case "outside":
		scaleW := float64(w) / float64(srcW)
		scaleH := float64(h) / float64(srcH)
		scale := scaleW
		if scaleH > scale {
			scale = scaleH
		}
		if scale >= 1.0 {
			return nil
		}
		if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
			return fmt.Errorf("failed to resize image: %w", err)
		}
	default:
		return fmt.Errorf("unknown fit mode: %s", opts.Fit)
	}
	return nil
}

// export 按目标格式导出
func export(img *vips.ImageRef, opts codec.Options) (*codec.Result, error) {
	var (
		data []byte
		meta *vips.ImageMetadata
		err  error
	)

	switch opts.Format {
	case "avif":
		params := vips.NewAvifExportParams()
		params.Quality = opts.Quality
		params.StripMetadata = opts.StripMetadata
		data, meta, err = img.ExportAvif(params)
	case "jpg", "jpeg":
		params := vips.NewJpegExportParams()
		params.Quality = opts.Quality
		params.StripMetadata = opts.StripMetadata
		data, meta, err = img.ExportJpeg(params)
	case "png":
		params := vips.NewPngExportParams()
		params.StripMetadata = opts.StripMetadata
		data, meta, err = img.ExportPng(params)
	default:
		params := vips.NewWebpExportParams()
		params.Quality = opts.Quality
		params.StripMetadata = opts.StripMetadata
		data, meta, err = img.ExportWebp(params)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to export image: %w", err)
	}

	return &codec.Result{
		Bytes:    data,
		MimeType: codec.MimeTypeFor(opts.Format),
		Width:    meta.Width,
		Height:   meta.Height,
	}, nil
}

// parseHexColor 解析 6 位十六进制颜色
func parseHexColor(s string) (*vips.Color, error) {
	if len(s) != 6 {
		return nil, fmt.Errorf("invalid background color: %s", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid background color: %s", s)
	}
	return &vips.Color{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}
