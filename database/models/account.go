package models

import "gorm.io/gorm"

// 套餐标识
const (
	PlanStarter = "starter"
	PlanGrowth  = "growth"
	PlanPro     = "pro"
)

// Account 租户账户，持有签名密钥与套餐
type Account struct {
	gorm.Model
	Identifier string `gorm:"uniqueIndex:idx_account_identifier;not null;size:64" json:"identifier"`
	Name       string `gorm:"uniqueIndex:idx_account_name;not null;size:128" json:"name"`
	Plan       string `gorm:"default:starter;not null;size:20" json:"plan"`
	// 签名密钥在创建时生成，之后不可变更
	SigningSecret string `gorm:"not null;size:128" json:"-"`
}

// TableName 指定表名
func (Account) TableName() string {
	return "accounts"
}
