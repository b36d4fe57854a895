package accounts

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seyalabs/media-hub/api/common"
	"github.com/seyalabs/media-hub/api/middleware"
	accountsrepo "github.com/seyalabs/media-hub/database/repo/accounts"
	"github.com/seyalabs/media-hub/internal/transform"
	"github.com/seyalabs/media-hub/internal/usage"
	"github.com/seyalabs/media-hub/utils"
)

// Handler 账户开通与自助接口处理器
type Handler struct {
	accounts *accountsrepo.AccountsRepository
	meter    *usage.Meter
	signer   *transform.Signer
}

// NewHandler 创建处理器
func NewHandler(accounts *accountsrepo.AccountsRepository, meter *usage.Meter, signer *transform.Signer) *Handler {
	return &Handler{accounts: accounts, meter: meter, signer: signer}
}

type createAccountRequest struct {
	Name string `json:"name" binding:"required"`
	Plan string `json:"plan"`
}

// CreateAccount 开通账户,签名密钥只在响应里出现一次
func (h *Handler) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.accounts.Create(req.Name, req.Plan)
	if err != nil {
		log.Printf("[Accounts] create failed: %s", utils.SanitizeLogMessage(err.Error()))
		common.RespondError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	common.RespondSuccess(c, gin.H{
		"identifier":     account.Identifier,
		"name":           account.Name,
		"plan":           account.Plan,
		"signing_secret": account.SigningSecret,
	})
}

// GetUsage 返回所选周期的用量与限额,period 取 day/week/month,默认 month
func (h *Handler) GetUsage(c *gin.Context) {
	account := middleware.AccountFromContext(c)
	if account == nil {
		common.RespondError(c, http.StatusUnauthorized, "Missing account")
		return
	}

	period, ok := usage.ParsePeriod(c.Query("period"))
	if !ok {
		common.RespondError(c, http.StatusBadRequest, "Invalid period, expected day, week or month")
		return
	}

	summary, err := h.meter.CurrentUsage(account.ID, account.Plan, period)
	if err != nil {
		log.Printf("[Accounts] usage query failed: %s", utils.SanitizeLogMessage(err.Error()))
		common.RespondError(c, http.StatusInternalServerError, "Failed to load usage")
		return
	}
	common.RespondSuccess(c, summary)
}

type signRequest struct {
	Asset string `json:"asset" binding:"required"`
	// 变换参数,键值与交付 URL 查询参数一致
	Params map[string]string `json:"params"`
	// 有效期秒数,0 用服务端默认
	ExpiresIn int64 `json:"expires_in"`
}

// SignURL 服务端签发变换 URL。参数先过校验,避免签出注定 400 的链接。
func (h *Handler) SignURL(c *gin.Context) {
	account := middleware.AccountFromContext(c)
	if account == nil {
		common.RespondError(c, http.StatusUnauthorized, "Missing account")
		return
	}

	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	values := url.Values{}
	for key, value := range req.Params {
		values.Set(key, value)
	}
	if _, err := transform.ParseParams(values); err != nil {
		common.RespondTransformError(c, err)
		return
	}

	var expiresAt time.Time
	if req.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
	}

	path := fmt.Sprintf("%s/%s/%s", transform.PathPrefix, account.Identifier, req.Asset)
	signed := h.signer.Sign(account.SigningSecret, path, values, expiresAt)

	common.RespondSuccess(c, gin.H{
		"path": path + "?" + signed.Encode(),
		"exp":  signed.Get("exp"),
	})
}
