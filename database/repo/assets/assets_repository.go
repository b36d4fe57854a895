package assets

import (
	"github.com/seyalabs/media-hub/database/models"
	"gorm.io/gorm"
)

// AssetsRepository 资产仓库
type AssetsRepository struct {
	db *gorm.DB
}

// NewAssetsRepository 创建仓库
func NewAssetsRepository(db *gorm.DB) *AssetsRepository {
	return &AssetsRepository{db: db}
}

// GetByIdentifier 查找账户名下的资产
func (r *AssetsRepository) GetByIdentifier(accountID uint, identifier string) (*models.Asset, error) {
	var asset models.Asset
	err := r.db.Where("account_id = ? AND identifier = ?", accountID, identifier).First(&asset).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// Create 创建资产记录（初始状态 queued）
func (r *AssetsRepository) Create(asset *models.Asset) error {
	return r.db.Create(asset).Error
}

// MarkReady 提交上传：补全元数据并置为 ready
func (r *AssetsRepository) MarkReady(id uint, mimeType string, fileSize int64, width, height int) error {
	return r.db.Model(&models.Asset{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":    models.AssetStatusReady,
		"mime_type": mimeType,
		"file_size": fileSize,
		"width":     width,
		"height":    height,
	}).Error
}

// Delete 删除资产记录
func (r *AssetsRepository) Delete(id uint) error {
	return r.db.Delete(&models.Asset{}, id).Error
}
