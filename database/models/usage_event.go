package models

import "time"

// 用量事件类型
const (
	UsageKindStorageWrite = "storage_write"
	UsageKindEgress       = "egress"
	UsageKindTransform    = "transform"
)

// UsageEvent 追加写的用量事件，转换路径从不修改或删除
type UsageEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index:idx_usage_account_kind_at,priority:3" json:"created_at"`

	AccountID uint   `gorm:"not null;index:idx_usage_account_kind_at,priority:1" json:"account_id"`
	Kind      string `gorm:"not null;size:20;index:idx_usage_account_kind_at,priority:2" json:"kind"`
	Bytes     int64  `gorm:"not null" json:"bytes"`
	Count     int64  `gorm:"column:item_count;not null" json:"count"`
}

// TableName 指定表名
func (UsageEvent) TableName() string {
	return "usage_events"
}
