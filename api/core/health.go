package core

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	cachetypes "github.com/seyalabs/media-hub/cache/types"
	"github.com/seyalabs/media-hub/storage"
)

func checkDatabaseHealth(db *gorm.DB) string {
	if db == nil {
		return "not initialized"
	}
	sqlDB, err := db.DB()
	if err != nil {
		return "error: " + err.Error()
	}
	if err := sqlDB.Ping(); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkCacheHealth(provider cachetypes.Cache) string {
	if provider == nil {
		return "not initialized"
	}
	if _, err := provider.Exists(context.Background(), "health_probe"); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func checkStorageHealth(c *gin.Context, provider storage.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Health(c.Request.Context()); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
