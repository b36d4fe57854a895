package utils

import (
	"strings"
	"unicode"
)

// SanitizeLogMessage 过滤日志中的控制字符，防止日志注入
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == 10 || r == 9 {
			sb.WriteRune(r)
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SanitizeLogIdentifier 截断并过滤不可信的标识符
func SanitizeLogIdentifier(identifier string) string {
	if len(identifier) > 64 {
		identifier = identifier[:64] + "..."
	}
	return SanitizeLogMessage(identifier)
}
