package usage

import (
	"time"

	"github.com/seyalabs/media-hub/database/models"
	"gorm.io/gorm"
)

// UsageRepository 用量事件仓库（追加写）
type UsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository 创建仓库
func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Append 追加一条用量事件
func (r *UsageRepository) Append(event *models.UsageEvent) error {
	return r.db.Create(event).Error
}

// SumSince 汇总某账户某类事件自 since 以来的字节数与条目数
func (r *UsageRepository) SumSince(accountID uint, kind string, since time.Time) (int64, int64, error) {
	var row struct {
		Bytes int64
		Items int64
	}
	err := r.db.Model(&models.UsageEvent{}).
		Select("COALESCE(SUM(bytes), 0) AS bytes, COALESCE(SUM(item_count), 0) AS items").
		Where("account_id = ? AND kind = ? AND created_at >= ?", accountID, kind, since).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Bytes, row.Items, nil
}
