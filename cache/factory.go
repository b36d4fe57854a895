package cache

import (
	"fmt"
	"log"

	"github.com/seyalabs/media-hub/cache/memory"
	"github.com/seyalabs/media-hub/cache/redis"
	"github.com/seyalabs/media-hub/cache/types"
	"github.com/seyalabs/media-hub/config"
)

// New 根据配置创建缓存提供者
func New(cfg *config.Config) (types.Cache, error) {
	switch cfg.CacheType {
	case "memory", "":
		log.Println("[Cache] Using in-process memory cache")
		return memory.NewMemory(memory.Config{
			NumCounters: 1000000,
			MaxCost:     cfg.CacheMaxMemoryMB << 20,
			BufferItems: 64,
			Metrics:     true,
		})
	case "redis":
		log.Printf("[Cache] Using redis cache at %s", cfg.CacheRedisAddr)
		return redis.NewRedis(cfg.CacheRedisAddr, cfg.CacheRedisPassword, cfg.CacheRedisDB)
	default:
		return nil, fmt.Errorf("invalid cache type specified in config: %s", cfg.CacheType)
	}
}
