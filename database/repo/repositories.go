package repo

import (
	"github.com/seyalabs/media-hub/database/repo/accounts"
	"github.com/seyalabs/media-hub/database/repo/assets"
	"github.com/seyalabs/media-hub/database/repo/usage"
	"github.com/seyalabs/media-hub/database/repo/variants"
	"gorm.io/gorm"
)

// Repositories 仓库聚合
type Repositories struct {
	Accounts *accounts.AccountsRepository
	Assets   *assets.AssetsRepository
	Variants *variants.VariantsRepository
	Usage    *usage.UsageRepository
}

// NewRepositories 创建全部仓库
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Accounts: accounts.NewAccountsRepository(db),
		Assets:   assets.NewAssetsRepository(db),
		Variants: variants.NewVariantsRepository(db),
		Usage:    usage.NewUsageRepository(db),
	}
}
