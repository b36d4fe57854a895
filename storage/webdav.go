package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/seyalabs/media-hub/config"
	"github.com/studio-b12/gowebdav"
)

// webdavStorage WebDAV 存储实现
type webdavStorage struct {
	client   *gowebdav.Client
	rootPath string
}

// NewWebDAV 创建 WebDAV 存储提供者
func NewWebDAV(cfg *config.Config) (Provider, error) {
	if cfg.WebDAVURL == "" {
		return nil, fmt.Errorf("webdav URL is required")
	}

	rootPath := strings.Trim(cfg.WebDAVRootPath, "/")
	if rootPath != "" {
		rootPath = "/" + rootPath
	}

	client := gowebdav.NewClient(cfg.WebDAVURL, cfg.WebDAVUsername, cfg.WebDAVPassword)

	// 验证连接
	probeDir := rootPath
	if probeDir == "" {
		probeDir = "/"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runWithContext(ctx, func() error {
		_, err := client.ReadDir(probeDir)
		return err
	}); err != nil {
		return nil, fmt.Errorf("webdav connection test failed: %w", err)
	}

	return &webdavStorage{
		client:   client,
		rootPath: rootPath,
	}, nil
}

// runWithContext gowebdav 客户端不接受 context，放到 goroutine 里配合超时
func runWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// fullPath 生成完整的 WebDAV 路径
func (s *webdavStorage) fullPath(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.rootPath != "" {
		return s.rootPath + "/" + key
	}
	return "/" + key
}

// ensureParentDir 逐级创建父目录
func (s *webdavStorage) ensureParentDir(ctx context.Context, fullPath string) error {
	parentDir := path.Dir(fullPath)
	if parentDir == "/" || parentDir == "." {
		return nil
	}

	currentPath := ""
	for _, part := range strings.Split(strings.Trim(parentDir, "/"), "/") {
		if part == "" {
			continue
		}
		currentPath = currentPath + "/" + part

		p := currentPath
		err := runWithContext(ctx, func() error {
			return s.client.Mkdir(p, os.FileMode(0755))
		})
		if err != nil && !isCollectionExistsError(err) {
			return fmt.Errorf("failed to create directory %s: %w", p, err)
		}
	}
	return nil
}

// isCollectionExistsError 判断是否为目录已存在的错误
func isCollectionExistsError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, s := range []string{"already exists", "conflict", "Conflict", "409", "Method Not Allowed", "405"} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// SaveWithContext 保存对象到 WebDAV
func (s *webdavStorage) SaveWithContext(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	fullPath := s.fullPath(key)

	if err := s.ensureParentDir(ctx, fullPath); err != nil {
		return fmt.Errorf("failed to ensure parent directory for %s: %w", key, err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	if err := runWithContext(ctx, func() error {
		return s.client.Write(fullPath, data, 0644)
	}); err != nil {
		return fmt.Errorf("failed to write file %s: %w", key, err)
	}
	return nil
}

// GetWithContext 从 WebDAV 获取对象
func (s *webdavStorage) GetWithContext(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath := s.fullPath(key)

	var data []byte
	err := runWithContext(ctx, func() error {
		var readErr error
		data, readErr = s.client.Read(fullPath)
		return readErr
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", key, err)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// DeleteWithContext 从 WebDAV 删除对象
func (s *webdavStorage) DeleteWithContext(ctx context.Context, key string) error {
	fullPath := s.fullPath(key)
	err := runWithContext(ctx, func() error {
		return s.client.Remove(fullPath)
	})
	if err != nil && !gowebdav.IsErrNotFound(err) {
		return fmt.Errorf("failed to delete file %s: %w", key, err)
	}
	return nil
}

// Exists 检查对象是否存在
func (s *webdavStorage) Exists(ctx context.Context, key string) (bool, error) {
	fullPath := s.fullPath(key)

	var exists bool
	err := runWithContext(ctx, func() error {
		_, statErr := s.client.Stat(fullPath)
		if statErr == nil {
			exists = true
			return nil
		}
		if gowebdav.IsErrNotFound(statErr) {
			return nil
		}
		return statErr
	})
	return exists, err
}

// PresignedPut WebDAV 不支持预签名上传
func (s *webdavStorage) PresignedPut(ctx context.Context, key string, contentType string, expiry time.Duration) (string, error) {
	return "", ErrPresignNotSupported
}

// Health 检查存储健康状态
func (s *webdavStorage) Health(ctx context.Context) error {
	root := s.rootPath
	if root == "" {
		root = "/"
	}
	return runWithContext(ctx, func() error {
		_, err := s.client.ReadDir(root)
		return err
	})
}

// Name 返回存储名称
func (s *webdavStorage) Name() string {
	return "webdav"
}
