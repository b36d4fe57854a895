package transform

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seyalabs/media-hub/internal/codec"
)

func TestParseParamsValid(t *testing.T) {
	query := url.Values{}
	query.Set("w", "200")
	query.Set("h", "100")
	query.Set("fit", "contain")
	query.Set("fm", "png")
	query.Set("q", "80")
	query.Set("dpr", "2")
	query.Set("bg", "FFccAA")
	query.Set("crop", "10,20,300,400")
	query.Set("blur", "5")
	query.Set("sharpen", "2")
	query.Set("orient", "false")
	query.Set("strip", "true")
	query.Set("exp", "1700000000")
	query.Set("sig", "deadbeef")

	p, err := ParseParams(query)
	assert.NoError(t, err)
	assert.Equal(t, 200, *p.Width)
	assert.Equal(t, 100, *p.Height)
	assert.Equal(t, "contain", *p.Fit)
	assert.Equal(t, "png", *p.Format)
	assert.Equal(t, 80, *p.Quality)
	assert.Equal(t, 2, *p.DPR)
	assert.Equal(t, "ffccaa", *p.BG)
	assert.Equal(t, &codec.Rect{X: 10, Y: 20, W: 300, H: 400}, p.Crop)
	assert.Equal(t, 5, *p.Blur)
	assert.Equal(t, 2, *p.Sharpen)
	assert.False(t, *p.Orient)
	assert.True(t, *p.Strip)
}

func TestParseParamsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "resize", "200"},
		{"negative width", "w", "-1"},
		{"non-numeric width", "w", "abc"},
		{"float width", "w", "1.5"},
		{"bad fit", "fit", "stretch"},
		{"bad format", "fm", "gif"},
		{"bad bg short", "bg", "fff"},
		{"bad bg chars", "bg", "gggggg"},
		{"bad crop", "crop", "10,20,30"},
		{"crop zero width", "crop", "0,0,0,100"},
		{"crop negative", "crop", "-1,0,10,10"},
		{"orient numeric", "orient", "1"},
		{"orient yes", "orient", "yes"},
		{"strip capitalized", "strip", "True"},
		{"strip empty", "strip", ""},
		{"width over ceiling", "w", "4611686018427387904"},
		{"height over ceiling", "h", "1048577"},
		{"dpr over ceiling", "dpr", "9"},
		{"blur over ceiling", "blur", "1048577"},
		{"crop over ceiling", "crop", "0,0,4611686018427387904,10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := url.Values{}
			query.Set(tt.key, tt.value)
			_, err := ParseParams(query)
			assert.Error(t, err)
			assert.Equal(t, KindInvalidParameter, KindOf(err))
		})
	}
}

func TestParseParamsRejectsRepeatedKey(t *testing.T) {
	query := url.Values{"w": {"100", "200"}}
	_, err := ParseParams(query)
	assert.Error(t, err)
	assert.Equal(t, KindInvalidParameter, KindOf(err))
}

func TestCanonicalIsOrderIndependent(t *testing.T) {
	a, err := ParseParams(url.Values{"w": {"200"}, "h": {"100"}, "fm": {"webp"}})
	assert.NoError(t, err)
	b, err := ParseParams(url.Values{"fm": {"webp"}, "h": {"100"}, "w": {"200"}})
	assert.NoError(t, err)

	assert.Equal(t, a.Canonical(), b.Canonical())
	assert.Equal(t, a.CacheKey(), b.CacheKey())
}

func TestCanonicalExcludesCredentials(t *testing.T) {
	query := url.Values{"w": {"200"}, "exp": {"1700000000"}, "sig": {"abc"}}
	p, err := ParseParams(query)
	assert.NoError(t, err)
	assert.Equal(t, "w=200", p.Canonical())
}

func TestCacheKeyDiffersPerParams(t *testing.T) {
	a, _ := ParseParams(url.Values{"w": {"200"}})
	b, _ := ParseParams(url.Values{"w": {"201"}})
	assert.NotEqual(t, a.CacheKey(), b.CacheKey())
	assert.Len(t, a.CacheKey(), 64)
}

func TestCodecOptionsDefaults(t *testing.T) {
	p, err := ParseParams(url.Values{})
	assert.NoError(t, err)

	opts := p.CodecOptions()
	assert.Equal(t, 0, opts.Width)
	assert.Equal(t, 0, opts.Height)
	assert.Equal(t, "cover", opts.Fit)
	assert.Equal(t, "webp", opts.Format)
	assert.Equal(t, 72, opts.Quality)
	assert.True(t, opts.AutoOrient)
	assert.True(t, opts.StripMetadata)
}

func TestCodecOptionsAppliesDPR(t *testing.T) {
	p, err := ParseParams(url.Values{"w": {"200"}, "h": {"150"}, "dpr": {"3"}})
	assert.NoError(t, err)

	opts := p.CodecOptions()
	assert.Equal(t, 600, opts.Width)
	assert.Equal(t, 450, opts.Height)
}

func TestCodecOptionsNoOverflowAtCeilings(t *testing.T) {
	// 上限取值相乘也必须保持为正,不能回绕
	p, err := ParseParams(url.Values{"w": {"1048576"}, "h": {"1048576"}, "dpr": {"8"}})
	assert.NoError(t, err)

	opts := p.CodecOptions()
	assert.Equal(t, 8<<20, opts.Width)
	assert.Equal(t, 8<<20, opts.Height)
	assert.Positive(t, opts.Width)
}

func TestCanonicalString(t *testing.T) {
	values := url.Values{"w": {"200"}, "h": {"100"}, "sig": {"should-drop"}, "exp": {"999"}}
	got := CanonicalString("/i/acct1/asset1", values, "1700000000")
	assert.Equal(t, "/i/acct1/asset1?h=100&w=200&exp=1700000000", got)
}
