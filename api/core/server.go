package core

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/seyalabs/media-hub/api/common"
	handlerAccounts "github.com/seyalabs/media-hub/api/handler/accounts"
	handlerAssets "github.com/seyalabs/media-hub/api/handler/assets"
	handlerDelivery "github.com/seyalabs/media-hub/api/handler/delivery"
	"github.com/seyalabs/media-hub/api/middleware"
	cachetypes "github.com/seyalabs/media-hub/cache/types"
	"github.com/seyalabs/media-hub/config"
	"github.com/seyalabs/media-hub/database/repo"
	"github.com/seyalabs/media-hub/internal/transform"
	"github.com/seyalabs/media-hub/internal/usage"
	"github.com/seyalabs/media-hub/internal/variants"
	"github.com/seyalabs/media-hub/storage"
)

var startTime = time.Now()

// ServerDependencies 服务器依赖项
type ServerDependencies struct {
	DB           *gorm.DB
	Repositories *repo.Repositories
	Store        storage.Provider
	CacheProv    cachetypes.Cache
	Service      *transform.Service
	Variants     *variants.Cache
	Meter        *usage.Meter
	Config       *config.Config
}

// setupRouter 装配路由与中间件
func setupRouter(deps *ServerDependencies) (*gin.Engine, func()) {
	cfg := deps.Config

	if config.CommitHash != "n/a" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if config.CommitHash == "n/a" {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	router.SetTrustedProxies(nil)

	apiRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitApiRPS, cfg.RateLimitApiBurst, cfg.RateLimitExpireTime)
	imageRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitImageRPS, cfg.RateLimitImageBurst, cfg.RateLimitExpireTime)
	cleanup := func() {
		apiRateLimiter.StopCleanup()
		imageRateLimiter.StopCleanup()
	}

	router.GET("/health", func(c *gin.Context) {
		health := gin.H{
			"status":  "ok",
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"version": config.Version,
			"checks": gin.H{
				"database": checkDatabaseHealth(deps.DB),
				"cache":    checkCacheHealth(deps.CacheProv),
				"storage":  checkStorageHealth(c, deps.Store),
			},
		}
		httpStatus := http.StatusOK
		for _, checkResult := range health["checks"].(gin.H) {
			if result, ok := checkResult.(string); ok && result != "ok" {
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}
		c.JSON(httpStatus, health)
	})
	router.GET("/version", func(c *gin.Context) {
		common.RespondSuccess(c, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	deliveryHandler := handlerDelivery.NewHandler(deps.Service)
	accountHandler := handlerAccounts.NewHandler(deps.Repositories.Accounts, deps.Meter, deps.Service.Signer())
	assetHandler := handlerAssets.NewHandler(deps.Repositories.Assets, deps.Variants, deps.Meter, deps.Store, cfg)

	// 签名交付,公共访问
	imageGroup := router.Group(transform.PathPrefix)
	imageGroup.Use(imageRateLimiter.Middleware())
	{
		imageGroup.GET("/:account/:asset", deliveryHandler.Deliver) // GET /i/{account}/{asset}
	}

	apiGroup := router.Group("/api")
	apiGroup.Use(func(c *gin.Context) { // 所有API禁止缓存
		c.Header("Cache-Control", "no-store")
		c.Next()
	})
	{
		v1 := apiGroup.Group("/v1")
		v1.Use(apiRateLimiter.Middleware())
		{
			// 账户开通,仅限管理令牌
			adminGroup := v1.Group("/admin")
			adminGroup.Use(middleware.AdminAuth(cfg.AdminToken))
			{
				adminGroup.POST("/accounts", accountHandler.CreateAccount) // POST /api/v1/admin/accounts
			}

			// 账户自助,以签名密钥认证
			accountGroup := v1.Group("/accounts/:identifier")
			accountGroup.Use(middleware.AccountAuth(deps.Repositories.Accounts))
			{
				accountGroup.GET("/usage", accountHandler.GetUsage) // GET /api/v1/accounts/{id}/usage
				accountGroup.POST("/sign", accountHandler.SignURL)  // POST /api/v1/accounts/{id}/sign

				assetsGroup := accountGroup.Group("/assets")
				{
					assetsGroup.POST("", assetHandler.CreateAsset)                  // POST /api/v1/accounts/{id}/assets
					assetsGroup.PUT("/:asset/content", assetHandler.UploadContent)  // PUT /api/v1/accounts/{id}/assets/{asset}/content
					assetsGroup.POST("/:asset/commit", assetHandler.CommitAsset)    // POST /api/v1/accounts/{id}/assets/{asset}/commit
					assetsGroup.GET("/:asset", assetHandler.GetAsset)               // GET /api/v1/accounts/{id}/assets/{asset}
					assetsGroup.DELETE("/:asset", assetHandler.DeleteAsset)         // DELETE /api/v1/accounts/{id}/assets/{asset}
				}
			}
		}
	}

	return router, cleanup
}

// StartServer 创建 http.Server
func StartServer(deps *ServerDependencies) (*http.Server, func()) {
	cfg := deps.Config
	router, clean := setupRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}
