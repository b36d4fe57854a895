package transform

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/seyalabs/media-hub/cache"
	cachetypes "github.com/seyalabs/media-hub/cache/types"
	"github.com/seyalabs/media-hub/database/models"
	accountsrepo "github.com/seyalabs/media-hub/database/repo/accounts"
	assetsrepo "github.com/seyalabs/media-hub/database/repo/assets"
	"github.com/seyalabs/media-hub/internal/codec"
	"github.com/seyalabs/media-hub/internal/usage"
	"github.com/seyalabs/media-hub/internal/variants"
	"github.com/seyalabs/media-hub/internal/worker"
	"github.com/seyalabs/media-hub/storage"
	"github.com/seyalabs/media-hub/utils"
)

// PathPrefix 变换交付路由的前缀,签名覆盖的路径以此开头
const PathPrefix = "/i"

const originalCacheTTL = 5 * time.Minute

// Limits 单次交付的硬性上限
type Limits struct {
	MaxDimension   int
	MaxQuality     int
	MaxOutputBytes int64
	CodecTimeout   time.Duration
}

// Delivery 一次成功交付的标头与字节
type Delivery struct {
	Bytes    []byte
	MimeType string
	Width    int
	Height   int
	CacheHit bool
}

// Service 变换交付编排。校验签名与参数,命中则直接回源缓存,
// 未命中经 singleflight 合并同参请求后物化一次。
type Service struct {
	accounts *accountsrepo.AccountsRepository
	assets   *assetsrepo.AssetsRepository
	variants *variants.Cache
	meter    *usage.Meter
	codec    codec.Codec
	pool     *worker.Pool
	signer   *Signer
	store    storage.Provider
	hot      cachetypes.Cache
	limits   Limits

	flight singleflight.Group
}

// NewService 创建编排服务
func NewService(
	accounts *accountsrepo.AccountsRepository,
	assets *assetsrepo.AssetsRepository,
	variantCache *variants.Cache,
	meter *usage.Meter,
	c codec.Codec,
	pool *worker.Pool,
	signer *Signer,
	store storage.Provider,
	hot cachetypes.Cache,
	limits Limits,
) *Service {
	if limits.CodecTimeout <= 0 {
		limits.CodecTimeout = 30 * time.Second
	}
	return &Service{
		accounts: accounts,
		assets:   assets,
		variants: variantCache,
		meter:    meter,
		codec:    c,
		pool:     pool,
		signer:   signer,
		store:    store,
		hot:      hot,
		limits:   limits,
	}
}

// Signer 返回服务使用的签名器,签发接口复用同一实例
func (s *Service) Signer() *Signer {
	return s.signer
}

// Deliver 处理一次签名变换请求。query 为原始查询参数。
func (s *Service) Deliver(ctx context.Context, accountIdentifier, assetIdentifier string, query url.Values) (*Delivery, error) {
	account, err := s.accounts.GetByIdentifier(accountIdentifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "account not found")
		}
		return nil, WrapError(KindInternal, "account lookup failed", err)
	}

	path := fmt.Sprintf("%s/%s/%s", PathPrefix, accountIdentifier, assetIdentifier)
	if err := s.signer.Verify(account.SigningSecret, path, query); err != nil {
		return nil, err
	}

	params, err := ParseParams(query)
	if err != nil {
		return nil, err
	}
	if err := s.checkBounds(params); err != nil {
		return nil, err
	}

	asset, err := s.assets.GetByIdentifier(account.ID, assetIdentifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "asset not found")
		}
		return nil, WrapError(KindInternal, "asset lookup failed", err)
	}
	if !asset.IsReady() {
		return nil, Errorf(KindNotReady, "asset is %s, not ready for delivery", asset.Status)
	}

	paramsHash := params.CacheKey()
	hit, err := s.variants.Lookup(ctx, asset.ID, paramsHash)
	if err == nil {
		s.meter.Record(account.ID, models.UsageKindEgress, int64(len(hit.Bytes)), 1)
		s.meter.Record(account.ID, models.UsageKindTransform, 0, 1)
		return deliveryFrom(hit, true), nil
	}
	if !errors.Is(err, variants.ErrNotFound) {
		return nil, WrapError(KindInternal, "variant lookup failed", err)
	}

	// 物化前先判额,已缓存的变体不受配额限制
	if verdict := s.meter.CheckLimit(account.ID, account.Plan); !verdict.Allowed {
		return nil, NewError(KindQuotaExceeded, verdict.Reason)
	}

	hit, err = s.materialize(ctx, asset, params, paramsHash)
	if err != nil {
		return nil, err
	}

	s.meter.Record(account.ID, models.UsageKindEgress, int64(len(hit.Bytes)), 1)
	s.meter.Record(account.ID, models.UsageKindTransform, 0, 1)
	return deliveryFrom(hit, false), nil
}

// checkBounds 在读取任何图像字节之前拒绝超限参数
func (s *Service) checkBounds(p *Params) error {
	dpr := DefaultDPR
	if p.DPR != nil && *p.DPR > 0 {
		dpr = *p.DPR
	}
	if s.limits.MaxDimension > 0 {
		if p.Width != nil && *p.Width*dpr > s.limits.MaxDimension {
			return Errorf(KindInvalidParameter, "effective width %d exceeds limit %d", *p.Width*dpr, s.limits.MaxDimension)
		}
		if p.Height != nil && *p.Height*dpr > s.limits.MaxDimension {
			return Errorf(KindInvalidParameter, "effective height %d exceeds limit %d", *p.Height*dpr, s.limits.MaxDimension)
		}
	}
	if s.limits.MaxQuality > 0 && p.Quality != nil && *p.Quality > s.limits.MaxQuality {
		return Errorf(KindInvalidParameter, "quality %d exceeds limit %d", *p.Quality, s.limits.MaxQuality)
	}
	return nil
}

// materialize 经 singleflight 合并并发的同参未命中,每个
// (asset, params) 组合同一时刻至多跑一次编解码。
func (s *Service) materialize(ctx context.Context, asset *models.Asset, params *Params, paramsHash string) (*variants.Hit, error) {
	key := fmt.Sprintf("%d:%s", asset.ID, paramsHash)
	result, err, _ := s.flight.Do(key, func() (interface{}, error) {
		// 计算与调用方请求解耦,首个请求断开不拖垮共享结果
		compCtx, cancel := context.WithTimeout(context.Background(), s.limits.CodecTimeout)
		defer cancel()

		// 排队等待 singleflight 期间可能已有别人物化完成
		if hit, err := s.variants.Lookup(compCtx, asset.ID, paramsHash); err == nil {
			return hit, nil
		} else if !errors.Is(err, variants.ErrNotFound) {
			return nil, WrapError(KindInternal, "variant lookup failed", err)
		}

		src, err := s.fetchOriginal(compCtx, asset)
		if err != nil {
			return nil, err
		}

		var transformed *codec.Result
		var codecErr error
		opts := params.CodecOptions()
		if poolErr := s.pool.Do(compCtx, func() {
			transformed, codecErr = s.codec.Transform(compCtx, src, opts)
		}); poolErr != nil {
			return nil, WrapError(KindInternal, "transform scheduling failed", poolErr)
		}
		if codecErr != nil {
			if errors.Is(codecErr, codec.ErrUnsupportedFormat) {
				return nil, WrapError(KindInvalidParameter, "requested format not supported", codecErr)
			}
			return nil, WrapError(KindUpstreamFailure, "image transform failed", codecErr)
		}

		if s.limits.MaxOutputBytes > 0 && int64(len(transformed.Bytes)) > s.limits.MaxOutputBytes {
			return nil, Errorf(KindOutputTooLarge, "transformed output %d bytes exceeds limit %d", len(transformed.Bytes), s.limits.MaxOutputBytes)
		}

		variant := &models.Variant{
			AssetID:    asset.ID,
			ParamsHash: paramsHash,
			MimeType:   transformed.MimeType,
			Width:      transformed.Width,
			Height:     transformed.Height,
		}
		hit, err := s.variants.MaterializeAndStore(compCtx, variant, params.Canonical(), transformed.Bytes)
		if err != nil {
			return nil, WrapError(KindInternal, "variant store failed", err)
		}
		return hit, nil
	})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return result.(*variants.Hit), nil
}

// fetchOriginal 读取原始资产字节,热点走缓存
func (s *Service) fetchOriginal(ctx context.Context, asset *models.Asset) ([]byte, error) {
	hotKey := cache.OriginalData.BuildID(asset.ID)
	if s.hot != nil {
		var data []byte
		if err := s.hot.Get(ctx, hotKey, &data); err == nil {
			return data, nil
		} else if !cachetypes.IsCacheMiss(err) {
			log.Printf("[Transform] original cache get failed: %s", utils.SanitizeLogMessage(err.Error()))
		}
	}

	data, err := storage.ReadAll(ctx, s.store, asset.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, WrapError(KindUpstreamFailure, "original bytes missing from storage", err)
		}
		return nil, WrapError(KindUpstreamFailure, "original fetch failed", err)
	}

	if s.hot != nil {
		if err := s.hot.Set(ctx, hotKey, data, originalCacheTTL); err != nil {
			log.Printf("[Transform] original cache set failed: %s", utils.SanitizeLogMessage(err.Error()))
		}
	}
	return data, nil
}

func deliveryFrom(hit *variants.Hit, cached bool) *Delivery {
	return &Delivery{
		Bytes:    hit.Bytes,
		MimeType: hit.Variant.MimeType,
		Width:    hit.Variant.Width,
		Height:   hit.Variant.Height,
		CacheHit: cached,
	}
}
