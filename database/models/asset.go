package models

import "gorm.io/gorm"

// 资产状态常量，queued → processing → ready，终态 ready/failed
const (
	AssetStatusQueued     = "queued"
	AssetStatusProcessing = "processing"
	AssetStatusReady      = "ready"
	AssetStatusFailed     = "failed"
)

// 资产类型常量
const (
	AssetKindImage = "image"
	AssetKindVideo = "video"
	AssetKindOther = "other"
)

// Asset 一个已存储的原始媒体对象
type Asset struct {
	gorm.Model
	Identifier string `gorm:"uniqueIndex:idx_asset_identifier;not null;size:64" json:"identifier"`
	AccountID  uint   `gorm:"not null;index" json:"account_id"`
	Account    Account

	Kind         string  `gorm:"not null;size:20" json:"kind"`
	OriginalName string  `gorm:"size:255" json:"original_name"`
	StorageKey   string  `gorm:"not null;size:255" json:"-"`
	MimeType     string  `gorm:"size:64" json:"mime_type"`
	FileSize     int64   `json:"file_size"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Duration     float64 `json:"duration,omitempty"`

	// 状态只由摄取/转码管线变更，转换路径只读
	Status string `gorm:"default:queued;size:20;index" json:"status"`
}

// TableName 指定表名
func (Asset) TableName() string {
	return "assets"
}

// IsReady 只有 ready 状态的资产可被转换
func (a *Asset) IsReady() bool {
	return a.Status == AssetStatusReady
}
