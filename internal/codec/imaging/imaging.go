package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	stdcolor "image/color"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/seyalabs/media-hub/internal/codec"

	// webp 解码支持
	_ "golang.org/x/image/webp"
)

// Codec 纯 Go 的编解码实现，作为无 libvips 环境的回退后端。
// 只支持 jpeg/png 输出；webp/avif 输出返回 ErrUnsupportedFormat。
type Codec struct{}

// New 创建 imaging 编解码器
func New() *Codec {
	return &Codec{}
}

// Name 返回后端名称
func (c *Codec) Name() string {
	return "imaging"
}

// Transform 执行一次图像转换
func (c *Codec) Transform(ctx context.Context, src []byte, opts codec.Options) (*codec.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch opts.Format {
	case "jpg", "jpeg", "png":
	default:
		return nil, fmt.Errorf("%w: %s (imaging backend)", codec.ErrUnsupportedFormat, opts.Format)
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(opts.AutoOrient))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if opts.Crop != nil {
		img = imaging.Crop(img, image.Rect(opts.Crop.X, opts.Crop.Y, opts.Crop.X+opts.Crop.W, opts.Crop.Y+opts.Crop.H))
	}

	img = resize(img, opts)

	if opts.Background != "" {
		bg, err := parseHexColor(opts.Background)
		if err != nil {
			return nil, err
		}
		canvas := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), bg)
		img = imaging.OverlayCenter(canvas, img, 1.0)
	}

	if opts.Blur > 0 {
		img = imaging.Blur(img, float64(opts.Blur))
	}
	if opts.Sharpen > 0 {
		img = imaging.Sharpen(img, 1.0)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch opts.Format {
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG)
	default:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &codec.Result{
		Bytes:    buf.Bytes(),
		MimeType: codec.MimeTypeFor(opts.Format),
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
	}, nil
}

// resize 按 fit 模式缩放，不放大原图
func resize(img image.Image, opts codec.Options) image.Image {
	w, h := opts.Width, opts.Height
	if w == 0 && h == 0 {
		return img
	}

	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()

	// 只给了一个维度时按比例缩放
	if h == 0 {
		if w >= srcW {
			return img
		}
		return imaging.Resize(img, w, 0, imaging.Lanczos)
	}
	if w == 0 {
		if h >= srcH {
			return img
		}
		return imaging.Resize(img, 0, h, imaging.Lanczos)
	}

	switch opts.Fit {
	case "cover":
		if w > srcW {
			w = srcW
		}
		if h > srcH {
			h = srcH
		}
		return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
	case "contain", "inside":
		if w >= srcW && h >= srcH {
			return img
		}
		return imaging.Fit(img, w, h, imaging.Lanczos)
	case "outside":
		scaleW := float64(w) / float64(srcW)
		scaleH := float64(h) / float64(srcH)
		scale := scaleW
		if scaleH > scale {
			scale = scaleH
		}
		if scale >= 1.0 {
			return img
		}
		return imaging.Resize(img, int(float64(srcW)*scale+0.5), 0, imaging.Lanczos)
	default:
		return img
	}
}

// parseHexColor 解析 6 位十六进制颜色
func parseHexColor(s string) (stdcolor.Color, error) {
	if len(s) != 6 {
		return nil, fmt.Errorf("invalid background color: %s", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid background color: %s", s)
	}
	return stdcolor.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, nil
}
