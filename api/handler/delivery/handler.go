package delivery

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seyalabs/media-hub/api/common"
	"github.com/seyalabs/media-hub/internal/transform"
	"github.com/seyalabs/media-hub/utils"
)

// 变体内容不可变,参数变了签名就变,可以放心长缓存
const variantCacheControl = "public, s-maxage=31536000, immutable"

// Handler 签名变换交付处理器
type Handler struct {
	service *transform.Service
}

// NewHandler 创建处理器
func NewHandler(service *transform.Service) *Handler {
	return &Handler{service: service}
}

// Deliver 处理 GET /i/:account/:asset
func (h *Handler) Deliver(c *gin.Context) {
	accountIdentifier := c.Param("account")
	assetIdentifier := c.Param("asset")

	result, err := h.service.Deliver(c.Request.Context(), accountIdentifier, assetIdentifier, c.Request.URL.Query())
	if err != nil {
		kind := transform.KindOf(err)
		if kind == transform.KindInternal || kind == transform.KindUpstreamFailure {
			log.Printf("[Deliver] %s/%s failed: %s",
				utils.SanitizeLogIdentifier(accountIdentifier),
				utils.SanitizeLogIdentifier(assetIdentifier),
				utils.SanitizeLogMessage(err.Error()))
		}
		common.RespondTransformError(c, err)
		return
	}

	c.Header("Cache-Control", variantCacheControl)
	c.Header("Content-Length", strconv.Itoa(len(result.Bytes)))
	if result.CacheHit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(200, result.MimeType, result.Bytes)
}
