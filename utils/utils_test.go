package utils

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLogMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello world", "hello world"},
		{"strips carriage return", "line\rinjected", "lineinjected"},
		{"strips escape", "esc\x1b[31mred", "esc[31mred"},
		{"keeps unicode", "图片加载失败", "图片加载失败"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeLogMessage(tt.input))
		})
	}
}

func TestSanitizeLogIdentifierTruncates(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := SanitizeLogIdentifier(long)
	assert.Equal(t, strings.Repeat("a", 64)+"...", got)

	assert.Equal(t, "short", SanitizeLogIdentifier("short"))
}

func TestGenerateSigningSecret(t *testing.T) {
	secret, err := GenerateSigningSecret(32)
	assert.NoError(t, err)
	assert.Len(t, secret, 64)

	decoded, err := hex.DecodeString(secret)
	assert.NoError(t, err)
	assert.Len(t, decoded, 32)

	other, err := GenerateSigningSecret(32)
	assert.NoError(t, err)
	assert.NotEqual(t, secret, other)
}

func TestGenerateRandomToken(t *testing.T) {
	token, err := GenerateRandomToken(16)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	other, err := GenerateRandomToken(16)
	assert.NoError(t, err)
	assert.NotEqual(t, token, other)
}
