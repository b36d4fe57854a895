package variants

import (
	"github.com/seyalabs/media-hub/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VariantsRepository 变体仓库
type VariantsRepository struct {
	db *gorm.DB
}

// NewVariantsRepository 创建仓库
func NewVariantsRepository(db *gorm.DB) *VariantsRepository {
	return &VariantsRepository{db: db}
}

// GetByAssetAndHash 查找指定资产与规范参数的变体
func (r *VariantsRepository) GetByAssetAndHash(assetID uint, paramsHash string) (*models.Variant, error) {
	var variant models.Variant
	err := r.db.Where("asset_id = ? AND params_hash = ?", assetID, paramsHash).First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// ListByAssetID 列出资产的全部变体
func (r *VariantsRepository) ListByAssetID(assetID uint) ([]models.Variant, error) {
	var variants []models.Variant
	err := r.db.Where("asset_id = ?", assetID).Find(&variants).Error
	return variants, err
}

// Create 写入变体记录。(asset_id, params_hash) 撞上唯一约束时视为
// 另一并发写入者已经产出同一变体，返回已存在的记录，existed 为 true。
func (r *VariantsRepository) Create(variant *models.Variant) (*models.Variant, bool, error) {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_id"}, {Name: "params_hash"}},
		DoNothing: true,
	}).Create(variant).Error
	if err != nil {
		return nil, false, err
	}

	// DoNothing 撞冲突时不会回填主键
	if variant.ID == 0 {
		existing, err := r.GetByAssetAndHash(variant.AssetID, variant.ParamsHash)
		if err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}

	return variant, false, nil
}

// UpdateStorage 把变体的字节指向改到新的存储对象
func (r *VariantsRepository) UpdateStorage(id uint, storageKey string, fileSize int64) error {
	return r.db.Model(&models.Variant{}).Where("id = ?", id).
		Updates(map[string]interface{}{"storage_key": storageKey, "file_size": fileSize}).Error
}

// DeleteByAssetID 删除资产的全部变体（随资产级联）
func (r *VariantsRepository) DeleteByAssetID(assetID uint) error {
	return r.db.Where("asset_id = ?", assetID).Delete(&models.Variant{}).Error
}
