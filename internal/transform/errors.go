package transform

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 请求失败的稳定分类，随响应体返回给调用方
type Kind string

const (
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindNotReady         Kind = "not_ready"
	KindInvalidParameter Kind = "invalid_parameter"
	KindOutputTooLarge   Kind = "output_too_large"
	KindQuotaExceeded    Kind = "quota_exceeded"
	KindUpstreamFailure  Kind = "upstream_failure"
	KindInternal         Kind = "internal"
)

// HTTPStatus 分类对应的状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindNotReady, KindInvalidParameter, KindOutputTooLarge:
		return http.StatusBadRequest
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error 带分类的错误。Message 可对外展示，Err 仅用于日志。
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError 创建分类错误
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf 创建带格式化消息的分类错误
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError 包装底层错误
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// 签名校验的哨兵错误。同属 forbidden 分类，
// 对外不区分，测试与日志可用 errors.Is 区分。
var (
	ErrMissingCredential   = &Error{Kind: KindForbidden, Message: "missing signature or expiration"}
	ErrMalformedCredential = &Error{Kind: KindForbidden, Message: "malformed expiration"}
	ErrExpired             = &Error{Kind: KindForbidden, Message: "URL has expired"}
	ErrInvalidSignature    = &Error{Kind: KindForbidden, Message: "invalid signature"}
)

// KindOf 提取错误分类，未分类的错误归为 internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage 提取可对外展示的错误消息。forbidden 类错误
// 一律返回笼统消息，避免对签名校验形成预言机。
func PublicMessage(err error) string {
	kind := KindOf(err)
	if kind == KindForbidden {
		return "URL signature verification failed"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "unexpected internal error"
}
