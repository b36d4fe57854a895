package variants

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seyalabs/media-hub/cache"
	cachetypes "github.com/seyalabs/media-hub/cache/types"
	"github.com/seyalabs/media-hub/database/models"
	variantsrepo "github.com/seyalabs/media-hub/database/repo/variants"
	"github.com/seyalabs/media-hub/storage"
	"github.com/seyalabs/media-hub/utils"
)

// ErrNotFound 变体尚未物化
var ErrNotFound = errors.New("variant not found")

const hotCacheTTL = 10 * time.Minute

// Hit 一次命中或刚物化的变体
type Hit struct {
	Variant *models.Variant
	Bytes   []byte
}

// Cache 变体缓存。元数据落库,字节落对象存储,
// 热点字节再过一层进程内或 Redis 缓存。
type Cache struct {
	repo  *variantsrepo.VariantsRepository
	store storage.Provider
	hot   cachetypes.Cache
}

// NewCache 创建变体缓存
func NewCache(repo *variantsrepo.VariantsRepository, store storage.Provider, hot cachetypes.Cache) *Cache {
	return &Cache{repo: repo, store: store, hot: hot}
}

// Lookup 按资产与参数哈希查找已物化的变体。命中元数据后先查
// 热点缓存,未命中再回源对象存储并回填。
func (c *Cache) Lookup(ctx context.Context, assetID uint, paramsHash string) (*Hit, error) {
	variant, err := c.repo.GetByAssetAndHash(assetID, paramsHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	hotKey := cache.VariantData.BuildID(variant.ID)
	if c.hot != nil {
		var data []byte
		if err := c.hot.Get(ctx, hotKey, &data); err == nil {
			return &Hit{Variant: variant, Bytes: data}, nil
		} else if !cachetypes.IsCacheMiss(err) {
			log.Printf("[Variants] hot cache get failed: %s", utils.SanitizeLogMessage(err.Error()))
		}
	}

	data, err := storage.ReadAll(ctx, c.store, variant.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// 元数据在而字节丢失,当作未物化重新生成
			log.Printf("[Variants] blob missing for variant %d, key %s", variant.ID, utils.SanitizeLogIdentifier(variant.StorageKey))
			return nil, ErrNotFound
		}
		return nil, err
	}

	if c.hot != nil {
		if err := c.hot.Set(ctx, hotKey, data, hotCacheTTL); err != nil {
			log.Printf("[Variants] hot cache set failed: %s", utils.SanitizeLogMessage(err.Error()))
		}
	}
	return &Hit{Variant: variant, Bytes: data}, nil
}

// MaterializeAndStore 持久化一个新变体:字节先落对象存储,元数据后落库。
// 落库撞上唯一约束说明并发请求已经产出同一变体,此时删掉本次多余的
// 字节并返回已存在的记录;已存在记录的字节若已丢失,改用本次字节修复。
func (c *Cache) MaterializeAndStore(ctx context.Context, variant *models.Variant, canonical string, data []byte) (*Hit, error) {
	key := fmt.Sprintf("variants/%s.%s", uuid.New().String(), extensionFor(variant.MimeType))
	if err := c.store.SaveWithContext(ctx, key, bytes.NewReader(data), int64(len(data)), variant.MimeType); err != nil {
		return nil, err
	}

	variant.StorageKey = key
	variant.ParamsCanonical = canonical
	variant.FileSize = int64(len(data))

	stored, existed, err := c.repo.Create(variant)
	if err != nil {
		// 元数据写入失败,字节不能悬空
		if delErr := c.store.DeleteWithContext(ctx, key); delErr != nil {
			log.Printf("[Variants] orphan blob cleanup failed: %s", utils.SanitizeLogMessage(delErr.Error()))
		}
		return nil, err
	}
	if existed {
		// 已有记录的字节可能早已丢失,丢了就用本次字节修复记录,
		// 否则每次请求都白跑一遍编解码还拿不到结果
		present, exErr := c.store.Exists(ctx, stored.StorageKey)
		if exErr != nil {
			log.Printf("[Variants] existence check failed for key %s: %s", utils.SanitizeLogIdentifier(stored.StorageKey), utils.SanitizeLogMessage(exErr.Error()))
			present = true
		}
		if !present {
			log.Printf("[Variants] repairing variant %d, blob %s lost", stored.ID, utils.SanitizeLogIdentifier(stored.StorageKey))
			if err := c.repo.UpdateStorage(stored.ID, key, int64(len(data))); err != nil {
				if delErr := c.store.DeleteWithContext(ctx, key); delErr != nil {
					log.Printf("[Variants] orphan blob cleanup failed: %s", utils.SanitizeLogMessage(delErr.Error()))
				}
				return nil, err
			}
			stored.StorageKey = key
			stored.FileSize = int64(len(data))
			if c.hot != nil {
				if err := c.hot.Set(ctx, cache.VariantData.BuildID(stored.ID), data, hotCacheTTL); err != nil {
					log.Printf("[Variants] hot cache set failed: %s", utils.SanitizeLogMessage(err.Error()))
				}
			}
			return &Hit{Variant: stored, Bytes: data}, nil
		}
		if delErr := c.store.DeleteWithContext(ctx, key); delErr != nil {
			log.Printf("[Variants] duplicate blob cleanup failed: %s", utils.SanitizeLogMessage(delErr.Error()))
		}
		return c.Lookup(ctx, stored.AssetID, stored.ParamsHash)
	}

	if c.hot != nil {
		if err := c.hot.Set(ctx, cache.VariantData.BuildID(stored.ID), data, hotCacheTTL); err != nil {
			log.Printf("[Variants] hot cache set failed: %s", utils.SanitizeLogMessage(err.Error()))
		}
	}
	return &Hit{Variant: stored, Bytes: data}, nil
}

// Purge 删除资产的全部变体字节与元数据
func (c *Cache) Purge(ctx context.Context, assetID uint) error {
	list, err := c.repo.ListByAssetID(assetID)
	if err != nil {
		return err
	}
	for _, v := range list {
		if err := c.store.DeleteWithContext(ctx, v.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("[Variants] purge blob failed: %s", utils.SanitizeLogMessage(err.Error()))
		}
		if c.hot != nil {
			_ = c.hot.Delete(ctx, cache.VariantData.BuildID(v.ID))
		}
	}
	return c.repo.DeleteByAssetID(assetID)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/webp":
		return "webp"
	case "image/avif":
		return "avif"
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	}
	return "bin"
}
