package storage

import (
	"fmt"
	"log"

	"github.com/seyalabs/media-hub/config"
)

// New 根据配置创建存储提供者
func New(cfg *config.Config) (Provider, error) {
	log.Printf("Initializing storage, type: %s", cfg.StorageType)

	switch cfg.StorageType {
	case "local", "":
		return NewLocal(cfg.StorageLocalPath)
	case "minio":
		return NewMinio(cfg)
	case "webdav":
		return NewWebDAV(cfg)
	default:
		return nil, fmt.Errorf("invalid storage type specified in config: %s", cfg.StorageType)
	}
}
