package models

import "gorm.io/gorm"

// Variant 已缓存的派生结果。唯一性约束保证同一 (asset, 规范参数)
// 至多只有一条记录，并发写入时由约束兜底。
type Variant struct {
	gorm.Model
	AssetID uint `gorm:"not null;index:idx_asset_params,unique" json:"asset_id"`

	// 规范参数串（不含 exp/sig）的 SHA-256，缓存键
	ParamsHash      string `gorm:"not null;size:64;index:idx_asset_params,unique" json:"params_hash"`
	ParamsCanonical string `gorm:"not null;size:1024" json:"params_canonical"`

	StorageKey string `gorm:"not null;size:255" json:"-"`
	MimeType   string `gorm:"not null;size:64" json:"mime_type"`
	FileSize   int64  `gorm:"not null" json:"file_size"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// TableName 指定表名
func (Variant) TableName() string {
	return "variants"
}
