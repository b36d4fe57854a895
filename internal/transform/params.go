package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/seyalabs/media-hub/internal/codec"
)

// 变换参数默认值
const (
	DefaultFit     = "cover"
	DefaultFormat  = "webp"
	DefaultQuality = 72
	DefaultDPR     = 1
)

// 解析期上限。尺寸类取值封顶,确保与 dpr 相乘不会溢出,
// 真正的业务上限再由交付侧按配置收紧。
const (
	MaxPixelValue = 1 << 20
	MaxDPRValue   = 8
)

var (
	allowedKeys = map[string]bool{
		"w": true, "h": true, "fit": true, "fm": true, "q": true,
		"dpr": true, "bg": true, "crop": true, "blur": true,
		"sharpen": true, "orient": true, "strip": true,
		"exp": true, "sig": true,
	}

	allowedFits = map[string]bool{
		"cover": true, "contain": true, "inside": true, "outside": true,
	}

	allowedFormats = map[string]bool{
		"webp": true, "avif": true, "jpg": true, "jpeg": true, "png": true,
	}

	bgPattern   = regexp.MustCompile(`^[0-9a-fA-F]{6}$`)
	cropPattern = regexp.MustCompile(`^\d+,\d+,\d+,\d+$`)
)

// Params 经过校验的变换参数集。nil 表示请求未携带该参数。
type Params struct {
	Width   *int
	Height  *int
	Fit     *string
	Format  *string
	Quality *int
	DPR     *int
	BG      *string
	Crop    *codec.Rect
	Blur    *int
	Sharpen *int
	Orient  *bool
	Strip   *bool
}

// ParseParams 校验查询参数并构造 Params。exp 与 sig 在此处跳过,
// 由签名校验单独处理。未知键或非法取值返回 invalid_parameter。
func ParseParams(query url.Values) (*Params, error) {
	p := &Params{}
	for key, values := range query {
		if !allowedKeys[key] {
			return nil, Errorf(KindInvalidParameter, "unknown parameter %q", key)
		}
		if len(values) != 1 {
			return nil, Errorf(KindInvalidParameter, "parameter %q given multiple times", key)
		}
		value := values[0]

		switch key {
		case "exp", "sig":
			continue
		case "w":
			n, err := parseNonNegInt(key, value, MaxPixelValue)
			if err != nil {
				return nil, err
			}
			p.Width = &n
		case "h":
			n, err := parseNonNegInt(key, value, MaxPixelValue)
			if err != nil {
				return nil, err
			}
			p.Height = &n
		case "q":
			n, err := parseNonNegInt(key, value, MaxPixelValue)
			if err != nil {
				return nil, err
			}
			p.Quality = &n
		case "dpr":
			n, err := parseNonNegInt(key, value, MaxDPRValue)
			if err != nil {
				return nil, err
			}
			p.DPR = &n
		case "blur":
			n, err := parseNonNegInt(key, value, MaxPixelValue)
			if err != nil {
				return nil, err
			}
			p.Blur = &n
		case "sharpen":
			n, err := parseNonNegInt(key, value, MaxPixelValue)
			if err != nil {
				return nil, err
			}
			p.Sharpen = &n
		case "fit":
			if !allowedFits[value] {
				return nil, Errorf(KindInvalidParameter, "invalid fit %q", value)
			}
			v := value
			p.Fit = &v
		case "fm":
			if !allowedFormats[value] {
				return nil, Errorf(KindInvalidParameter, "invalid format %q", value)
			}
			v := value
			p.Format = &v
		case "bg":
			if !bgPattern.MatchString(value) {
				return nil, Errorf(KindInvalidParameter, "invalid bg %q, expected 6 hex digits", value)
			}
			v := strings.ToLower(value)
			p.BG = &v
		case "crop":
			rect, err := parseCrop(value)
			if err != nil {
				return nil, err
			}
			p.Crop = rect
		case "orient":
			b, err := parseStrictBool(key, value)
			if err != nil {
				return nil, err
			}
			p.Orient = &b
		case "strip":
			b, err := parseStrictBool(key, value)
			if err != nil {
				return nil, err
			}
			p.Strip = &b
		}
	}
	return p, nil
}

func parseNonNegInt(key, value string, max int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, Errorf(KindInvalidParameter, "invalid %s %q, expected non-negative integer", key, value)
	}
	if n > max {
		return 0, Errorf(KindInvalidParameter, "invalid %s %q, exceeds maximum %d", key, value, max)
	}
	return n, nil
}

// parseStrictBool 仅接受字面量 true/false
func parseStrictBool(key, value string) (bool, error) {
	switch value {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, Errorf(KindInvalidParameter, "invalid %s %q, expected true or false", key, value)
}

func parseCrop(value string) (*codec.Rect, error) {
	if !cropPattern.MatchString(value) {
		return nil, Errorf(KindInvalidParameter, "invalid crop %q, expected x,y,w,h", value)
	}
	parts := strings.Split(value, ",")
	nums := make([]int, 4)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n > MaxPixelValue {
			return nil, Errorf(KindInvalidParameter, "invalid crop %q", value)
		}
		nums[i] = n
	}
	if nums[2] == 0 || nums[3] == 0 {
		return nil, Errorf(KindInvalidParameter, "invalid crop %q, zero-sized region", value)
	}
	return &codec.Rect{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]}, nil
}

// Values 将已设置的参数还原为 url.Values,不含 exp 与 sig
func (p *Params) Values() url.Values {
	v := url.Values{}
	if p.Width != nil {
		v.Set("w", strconv.Itoa(*p.Width))
	}
	if p.Height != nil {
		v.Set("h", strconv.Itoa(*p.Height))
	}
	if p.Fit != nil {
		v.Set("fit", *p.Fit)
	}
	if p.Format != nil {
		v.Set("fm", *p.Format)
	}
	if p.Quality != nil {
		v.Set("q", strconv.Itoa(*p.Quality))
	}
	if p.DPR != nil {
		v.Set("dpr", strconv.Itoa(*p.DPR))
	}
	if p.BG != nil {
		v.Set("bg", *p.BG)
	}
	if p.Crop != nil {
		v.Set("crop", fmt.Sprintf("%d,%d,%d,%d", p.Crop.X, p.Crop.Y, p.Crop.W, p.Crop.H))
	}
	if p.Blur != nil {
		v.Set("blur", strconv.Itoa(*p.Blur))
	}
	if p.Sharpen != nil {
		v.Set("sharpen", strconv.Itoa(*p.Sharpen))
	}
	if p.Orient != nil {
		v.Set("orient", strconv.FormatBool(*p.Orient))
	}
	if p.Strip != nil {
		v.Set("strip", strconv.FormatBool(*p.Strip))
	}
	return v
}

// Canonical 按键名排序编码的规范参数串,不含 exp 与 sig。
// 相同的参数集无论请求里顺序如何都得到同一个串。
func (p *Params) Canonical() string {
	return p.Values().Encode()
}

// CacheKey 规范参数串的 SHA-256 摘要,作为变体索引键
func (p *Params) CacheKey() string {
	sum := sha256.Sum256([]byte(p.Canonical()))
	return hex.EncodeToString(sum[:])
}

// CodecOptions 合并默认值并按 dpr 换算尺寸,得到编解码器参数
func (p *Params) CodecOptions() codec.Options {
	opts := codec.Options{
		Fit:           DefaultFit,
		Format:        DefaultFormat,
		Quality:       DefaultQuality,
		AutoOrient:    true,
		StripMetadata: true,
		Crop:          p.Crop,
	}
	dpr := DefaultDPR
	if p.DPR != nil && *p.DPR > 0 {
		dpr = *p.DPR
	}
	if p.Width != nil {
		opts.Width = *p.Width * dpr
	}
	if p.Height != nil {
		opts.Height = *p.Height * dpr
	}
	if p.Fit != nil {
		opts.Fit = *p.Fit
	}
	if p.Format != nil {
		opts.Format = *p.Format
	}
	if p.Quality != nil && *p.Quality > 0 {
		opts.Quality = *p.Quality
	}
	if p.BG != nil {
		opts.Background = *p.BG
	}
	if p.Blur != nil {
		opts.Blur = *p.Blur
	}
	if p.Sharpen != nil {
		opts.Sharpen = *p.Sharpen
	}
	if p.Orient != nil {
		opts.AutoOrient = *p.Orient
	}
	if p.Strip != nil {
		opts.StripMetadata = *p.Strip
	}
	return opts
}

// CanonicalString 构造签名用的规范串:路径加排序后的参数,
// exp 固定追加在末尾。values 里的 exp 与 sig 会被剔除。
func CanonicalString(path string, values url.Values, exp string) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key == "exp" || key == "sig" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(path)
	b.WriteByte('?')
	for _, key := range keys {
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(values.Get(key)))
		b.WriteByte('&')
	}
	b.WriteString("exp=")
	b.WriteString(exp)
	return b.String()
}
