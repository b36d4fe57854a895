package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// ErrPresignNotSupported 当前存储后端不支持预签名上传
var ErrPresignNotSupported = errors.New("presigned upload not supported by this storage backend")

// Provider 存储提供者接口 - 依赖倒置的核心抽象
// 定义了存储层的基本操作，所有存储实现必须遵循此接口
type Provider interface {
	// SaveWithContext 保存对象到存储
	SaveWithContext(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// GetWithContext 从存储获取对象
	GetWithContext(ctx context.Context, key string) (io.ReadCloser, error)

	// DeleteWithContext 从存储删除对象
	DeleteWithContext(ctx context.Context, key string) error

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// PresignedPut 签发限时直传 URL，不支持时返回 ErrPresignNotSupported
	PresignedPut(ctx context.Context, key string, contentType string, expiry time.Duration) (string, error)

	// Health 检查存储健康状态
	Health(ctx context.Context) error

	// Name 返回存储名称
	Name() string
}

// ReadAll 读取对象的全部内容
func ReadAll(ctx context.Context, p Provider, key string) ([]byte, error) {
	rc, err := p.GetWithContext(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
