package transform

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testSecret = "s3cr3t"

func fixedSigner(now time.Time, ttl time.Duration) *Signer {
	s := NewSigner(ttl)
	s.now = func() time.Time { return now }
	return s
}

func TestSignVerifyRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := fixedSigner(now, time.Hour)
	path := "/i/acct1/asset1"
	values := url.Values{"w": {"200"}, "h": {"100"}, "fit": {"cover"}, "fm": {"webp"}, "q": {"80"}}

	signed := s.Sign(testSecret, path, values, time.Time{})
	assert.Equal(t, "1700003600", signed.Get("exp"))
	assert.NotEmpty(t, signed.Get("sig"))

	// 10 秒后仍有效
	s.now = func() time.Time { return now.Add(10 * time.Second) }
	assert.NoError(t, s.Verify(testSecret, path, signed))
}

func TestVerifyExpired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := fixedSigner(now, time.Hour)
	path := "/i/acct1/asset1"
	signed := s.Sign(testSecret, path, url.Values{"w": {"200"}}, time.Time{})

	s.now = func() time.Time { return now.Add(3601 * time.Second) }
	err := s.Verify(testSecret, path, signed)
	assert.True(t, errors.Is(err, ErrExpired))
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestVerifyAtExactExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := fixedSigner(now, time.Hour)
	path := "/i/acct1/asset1"
	signed := s.Sign(testSecret, path, url.Values{}, time.Time{})

	// exp 本身那一秒还有效,过了才失效
	s.now = func() time.Time { return now.Add(time.Hour) }
	assert.NoError(t, s.Verify(testSecret, path, signed))
}

func TestVerifyMissingCredentials(t *testing.T) {
	s := fixedSigner(time.Unix(1700000000, 0), time.Hour)
	path := "/i/acct1/asset1"

	tests := []struct {
		name  string
		query url.Values
		want  error
	}{
		{"no exp no sig", url.Values{"w": {"200"}}, ErrMissingCredential},
		{"missing sig", url.Values{"w": {"200"}, "exp": {"1700003600"}}, ErrMissingCredential},
		{"missing exp", url.Values{"w": {"200"}, "sig": {"abc"}}, ErrMissingCredential},
		{"non-numeric exp", url.Values{"w": {"200"}, "exp": {"soon"}, "sig": {"abc"}}, ErrMalformedCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Verify(testSecret, path, tt.query)
			assert.True(t, errors.Is(err, tt.want))
			assert.Equal(t, KindForbidden, KindOf(err))
		})
	}
}

func TestVerifyTamperedParams(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := fixedSigner(now, time.Hour)
	path := "/i/acct1/asset1"
	signed := s.Sign(testSecret, path, url.Values{"w": {"200"}}, time.Time{})

	tampered := url.Values{}
	for k, v := range signed {
		tampered[k] = v
	}
	tampered.Set("w", "2000")

	err := s.Verify(testSecret, path, tampered)
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestVerifyTamperedExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := fixedSigner(now, time.Hour)
	path := "/i/acct1/asset1"
	signed := s.Sign(testSecret, path, url.Values{"w": {"200"}}, time.Time{})

	signed.Set("exp", "1800000000")
	err := s.Verify(testSecret, path, signed)
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestVerifyWrongSecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := fixedSigner(now, time.Hour)
	path := "/i/acct1/asset1"
	signed := s.Sign(testSecret, path, url.Values{"w": {"200"}}, time.Time{})

	err := s.Verify("other-secret", path, signed)
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestVerifyDifferentPath(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := fixedSigner(now, time.Hour)
	signed := s.Sign(testSecret, "/i/acct1/asset1", url.Values{"w": {"200"}}, time.Time{})

	err := s.Verify(testSecret, "/i/acct1/asset2", signed)
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestSignExplicitExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := fixedSigner(now, time.Hour)
	path := "/i/acct1/asset1"
	expiresAt := now.Add(24 * time.Hour)

	signed := s.Sign(testSecret, path, url.Values{}, expiresAt)
	assert.Equal(t, "1700086400", signed.Get("exp"))
	assert.NoError(t, s.Verify(testSecret, path, signed))
}

func TestVerifyValueEncodingPreserved(t *testing.T) {
	// 数值前导零等字面取值必须原样参与签名
	now := time.Unix(1700000000, 0)
	s := fixedSigner(now, time.Hour)
	path := "/i/acct1/asset1"
	signed := s.Sign(testSecret, path, url.Values{"crop": {"0,0,100,100"}, "bg": {"007007"}}, time.Time{})

	assert.NoError(t, s.Verify(testSecret, path, signed))
}
