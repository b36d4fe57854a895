package accounts

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/seyalabs/media-hub/database/models"
	"github.com/seyalabs/media-hub/utils"
	"gorm.io/gorm"
)

// 签名密钥熵字节数
const signingSecretBytes = 32

// AccountsRepository 租户账户仓库
type AccountsRepository struct {
	db *gorm.DB
}

// NewAccountsRepository 创建仓库
func NewAccountsRepository(db *gorm.DB) *AccountsRepository {
	return &AccountsRepository{db: db}
}

// GetByIdentifier 根据对外标识查找账户
func (r *AccountsRepository) GetByIdentifier(identifier string) (*models.Account, error) {
	var account models.Account
	err := r.db.Where("identifier = ?", identifier).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByID 根据 ID 查找账户
func (r *AccountsRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	err := r.db.First(&account, id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Create 创建账户，签名密钥在此一次性生成，之后不可变更
func (r *AccountsRepository) Create(name, plan string) (*models.Account, error) {
	secret, err := utils.GenerateSigningSecret(signingSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing secret: %w", err)
	}

	account := &models.Account{
		Identifier:    uuid.NewString(),
		Name:          name,
		Plan:          plan,
		SigningSecret: secret,
	}
	if err := r.db.Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}
