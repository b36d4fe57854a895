package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/seyalabs/media-hub/api/common"
	"github.com/seyalabs/media-hub/api/middleware"
	"github.com/seyalabs/media-hub/config"
	"github.com/seyalabs/media-hub/database/models"
	assetsrepo "github.com/seyalabs/media-hub/database/repo/assets"
	"github.com/seyalabs/media-hub/internal/usage"
	"github.com/seyalabs/media-hub/internal/variants"
	"github.com/seyalabs/media-hub/storage"
	"github.com/seyalabs/media-hub/utils"
)

// Handler 资产管理处理器
type Handler struct {
	assets   *assetsrepo.AssetsRepository
	variants *variants.Cache
	meter    *usage.Meter
	store    storage.Provider
	cfg      *config.Config
}

// NewHandler 创建处理器
func NewHandler(assets *assetsrepo.AssetsRepository, variantCache *variants.Cache, meter *usage.Meter, store storage.Provider, cfg *config.Config) *Handler {
	return &Handler{
		assets:   assets,
		variants: variantCache,
		meter:    meter,
		store:    store,
		cfg:      cfg,
	}
}

type createAssetRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	Size        int64  `json:"size" binding:"required,gt=0"`
}

type createAssetResponse struct {
	Identifier string `json:"identifier"`
	Status     string `json:"status"`
	// 预签名直传地址,存储后端不支持时为空,此时走服务端中转上传
	UploadURL string `json:"upload_url,omitempty"`
}

// CreateAsset 登记一个新资产并尽可能签发直传地址
func (h *Handler) CreateAsset(c *gin.Context) {
	account := middleware.AccountFromContext(c)
	if account == nil {
		common.RespondError(c, http.StatusUnauthorized, "Missing account")
		return
	}

	var req createAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if verdict := h.meter.CheckStorage(account.ID, account.Plan, req.Size); !verdict.Allowed {
		common.RespondError(c, http.StatusTooManyRequests, verdict.Reason)
		return
	}

	identifier := uuid.New().String()
	ext := strings.ToLower(path.Ext(req.FileName))
	asset := &models.Asset{
		Identifier:   identifier,
		AccountID:    account.ID,
		Kind:         kindFromContentType(req.ContentType),
		OriginalName: req.FileName,
		StorageKey:   fmt.Sprintf("originals/%s%s", identifier, ext),
		MimeType:     req.ContentType,
		FileSize:     req.Size,
		Status:       models.AssetStatusQueued,
	}
	if err := h.assets.Create(asset); err != nil {
		log.Printf("[Assets] create failed: %s", utils.SanitizeLogMessage(err.Error()))
		common.RespondError(c, http.StatusInternalServerError, "Failed to create asset")
		return
	}

	resp := createAssetResponse{Identifier: identifier, Status: asset.Status}
	uploadURL, err := h.store.PresignedPut(c.Request.Context(), asset.StorageKey, req.ContentType, h.cfg.UploadPresignTTL)
	if err == nil {
		resp.UploadURL = uploadURL
	} else if !errors.Is(err, storage.ErrPresignNotSupported) {
		log.Printf("[Assets] presign failed: %s", utils.SanitizeLogMessage(err.Error()))
		common.RespondError(c, http.StatusInternalServerError, "Failed to presign upload")
		return
	}
	common.RespondSuccess(c, resp)
}

// UploadContent 服务端中转上传,本地与 WebDAV 后端没有预签名能力
func (h *Handler) UploadContent(c *gin.Context) {
	account := middleware.AccountFromContext(c)
	if account == nil {
		common.RespondError(c, http.StatusUnauthorized, "Missing account")
		return
	}

	asset, ok := h.lookupAsset(c, account.ID)
	if !ok {
		return
	}
	if asset.Status != models.AssetStatusQueued {
		common.RespondError(c, http.StatusConflict, "Asset content already uploaded")
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Failed to read upload body")
		return
	}
	contentType := c.ContentType()
	if contentType == "" {
		contentType = asset.MimeType
	}

	if err := h.store.SaveWithContext(c.Request.Context(), asset.StorageKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		log.Printf("[Assets] upload save failed: %s", utils.SanitizeLogMessage(err.Error()))
		common.RespondError(c, http.StatusInternalServerError, "Failed to store upload")
		return
	}
	common.RespondSuccessMessage(c, "Uploaded", gin.H{"identifier": asset.Identifier, "size": len(data)})
}

// CommitAsset 确认字节已就位,探测图像尺寸后置为 ready 并记账
func (h *Handler) CommitAsset(c *gin.Context) {
	account := middleware.AccountFromContext(c)
	if account == nil {
		common.RespondError(c, http.StatusUnauthorized, "Missing account")
		return
	}

	asset, ok := h.lookupAsset(c, account.ID)
	if !ok {
		return
	}
	if asset.IsReady() {
		common.RespondSuccess(c, asset)
		return
	}

	data, err := storage.ReadAll(c.Request.Context(), h.store, asset.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			common.RespondError(c, http.StatusConflict, "Asset content not uploaded yet")
			return
		}
		log.Printf("[Assets] commit read failed: %s", utils.SanitizeLogMessage(err.Error()))
		common.RespondError(c, http.StatusInternalServerError, "Failed to read stored content")
		return
	}

	width, height := 0, 0
	mimeType := asset.MimeType
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		width, height = cfg.Width, cfg.Height
		mimeType = "image/" + format
	}

	if err := h.assets.MarkReady(asset.ID, mimeType, int64(len(data)), width, height); err != nil {
		log.Printf("[Assets] mark ready failed: %s", utils.SanitizeLogMessage(err.Error()))
		common.RespondError(c, http.StatusInternalServerError, "Failed to commit asset")
		return
	}
	h.meter.Record(account.ID, models.UsageKindStorageWrite, int64(len(data)), 1)

	committed, err := h.assets.GetByIdentifier(account.ID, asset.Identifier)
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, "Failed to reload asset")
		return
	}
	common.RespondSuccess(c, committed)
}

// GetAsset 返回资产元数据
func (h *Handler) GetAsset(c *gin.Context) {
	account := middleware.AccountFromContext(c)
	if account == nil {
		common.RespondError(c, http.StatusUnauthorized, "Missing account")
		return
	}

	asset, ok := h.lookupAsset(c, account.ID)
	if !ok {
		return
	}
	common.RespondSuccess(c, asset)
}

// DeleteAsset 删除资产,先清变体再删原始字节与记录
func (h *Handler) DeleteAsset(c *gin.Context) {
	account := middleware.AccountFromContext(c)
	if account == nil {
		common.RespondError(c, http.StatusUnauthorized, "Missing account")
		return
	}

	asset, ok := h.lookupAsset(c, account.ID)
	if !ok {
		return
	}

	if err := h.variants.Purge(c.Request.Context(), asset.ID); err != nil {
		log.Printf("[Assets] variant purge failed: %s", utils.SanitizeLogMessage(err.Error()))
		common.RespondError(c, http.StatusInternalServerError, "Failed to purge variants")
		return
	}
	if err := h.store.DeleteWithContext(c.Request.Context(), asset.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[Assets] original delete failed: %s", utils.SanitizeLogMessage(err.Error()))
		common.RespondError(c, http.StatusInternalServerError, "Failed to delete original")
		return
	}
	if err := h.assets.Delete(asset.ID); err != nil {
		common.RespondError(c, http.StatusInternalServerError, "Failed to delete asset")
		return
	}
	common.RespondSuccessMessage(c, "Deleted", nil)
}

func (h *Handler) lookupAsset(c *gin.Context, accountID uint) (*models.Asset, bool) {
	identifier := c.Param("asset")
	asset, err := h.assets.GetByIdentifier(accountID, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.RespondError(c, http.StatusNotFound, "Asset not found")
			return nil, false
		}
		log.Printf("[Assets] lookup failed: %s", utils.SanitizeLogMessage(err.Error()))
		common.RespondError(c, http.StatusInternalServerError, "Failed to load asset")
		return nil, false
	}
	return asset, true
}

func kindFromContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.AssetKindImage
	case strings.HasPrefix(contentType, "video/"):
		return models.AssetKindVideo
	}
	return models.AssetKindOther
}
