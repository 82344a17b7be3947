package repository

import (
	"context"
	"errors"

	"shopsync_v1_202608/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ==================== ProductRepository 商品仓库 ====================

// ProductRepository 商品仓库接口
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByExternalID(ctx context.Context, shopID, externalID int64) (*model.Product, error)
	ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Product, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	// DeleteCascade 级联删除商品：变体 → 库存层 → 库存聚合 → 商品行
	DeleteCascade(ctx context.Context, id int64) error

	CountByShop(ctx context.Context, shopID int64) (int64, error)
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) GetByExternalID(ctx context.Context, shopID, externalID int64) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id = ?", shopID, externalID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Product, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id IN ?", shopID, externalIDs).
		Find(&products).Error
	return products, err
}

func (r *productRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Updates(fields).Error
}

func (r *productRepository) DeleteCascade(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product model.Product
		if err := tx.Unscoped().First(&product, id).Error; err != nil {
			return err
		}
		var variants []model.ProductVariant
		if err := tx.Where("product_id = ?", id).Find(&variants).Error; err != nil {
			return err
		}
		itemIDs := make([]int64, 0, len(variants))
		for _, v := range variants {
			if v.InventoryItemExternalID > 0 {
				itemIDs = append(itemIDs, v.InventoryItemExternalID)
			}
		}
		if len(itemIDs) > 0 {
			// 库存项外部 ID 只在店铺内唯一，必须限定 shop_id，避免误删别家店铺的行
			if err := tx.Where("shop_id = ? AND inventory_item_external_id IN ?", product.ShopID, itemIDs).
				Delete(&model.InventoryLevel{}).Error; err != nil {
				return err
			}
			if err := tx.Where("shop_id = ? AND inventory_item_external_id IN ?", product.ShopID, itemIDs).
				Delete(&model.InventoryTotal{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("product_id = ?", id).Delete(&model.ProductVariant{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.Product{}, id).Error
	})
}

func (r *productRepository) CountByShop(ctx context.Context, shopID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Where("shop_id = ?", shopID).Count(&count).Error
	return count, err
}

// ==================== ProductVariantRepository 变体仓库 ====================

// ProductVariantRepository 变体仓库接口
type ProductVariantRepository interface {
	Create(ctx context.Context, variant *model.ProductVariant) error
	ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.ProductVariant, error)
	ListByProductID(ctx context.Context, productID int64) ([]model.ProductVariant, error)
	// ListByItemExternalIDs 按平台库存项引用反查变体（库存回写商品计数用）
	ListByItemExternalIDs(ctx context.Context, shopID int64, itemIDs []int64) ([]model.ProductVariant, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
}

type productVariantRepository struct {
	db *gorm.DB
}

// NewProductVariantRepository 创建变体仓库
func NewProductVariantRepository(db *gorm.DB) ProductVariantRepository {
	return &productVariantRepository{db: db}
}

func (r *productVariantRepository) Create(ctx context.Context, variant *model.ProductVariant) error {
	return r.db.WithContext(ctx).Create(variant).Error
}

func (r *productVariantRepository) ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.ProductVariant, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var variants []model.ProductVariant
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id IN ?", shopID, externalIDs).
		Find(&variants).Error
	return variants, err
}

func (r *productVariantRepository) ListByProductID(ctx context.Context, productID int64) ([]model.ProductVariant, error) {
	var variants []model.ProductVariant
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Find(&variants).Error
	return variants, err
}

func (r *productVariantRepository) ListByItemExternalIDs(ctx context.Context, shopID int64, itemIDs []int64) ([]model.ProductVariant, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var variants []model.ProductVariant
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND inventory_item_external_id IN ?", shopID, itemIDs).
		Find(&variants).Error
	return variants, err
}

func (r *productVariantRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.ProductVariant{}).Where("id = ?", id).Updates(fields).Error
}

// ==================== InventoryRepository 库存仓库 ====================

// InventoryRepository 库存层与库存聚合仓库接口
type InventoryRepository interface {
	CreateLevel(ctx context.Context, level *model.InventoryLevel) error
	// ListLevelsByItemIDs 按库存项批量取库存层（调用方分块）
	ListLevelsByItemIDs(ctx context.Context, shopID int64, itemIDs []int64) ([]model.InventoryLevel, error)
	UpdateLevelFields(ctx context.Context, id int64, fields map[string]interface{}) error
	// DeleteLevels 删除失效库存层行
	DeleteLevels(ctx context.Context, ids []int64) error

	// UpsertTotal 以 (shop_id, inventory_item_external_id) 为键改写聚合行
	UpsertTotal(ctx context.Context, total *model.InventoryTotal) error
	DeleteTotal(ctx context.Context, shopID, itemID int64) error
	ListTotalsByItemIDs(ctx context.Context, shopID int64, itemIDs []int64) ([]model.InventoryTotal, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository 创建库存仓库
func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) CreateLevel(ctx context.Context, level *model.InventoryLevel) error {
	return r.db.WithContext(ctx).Create(level).Error
}

func (r *inventoryRepository) ListLevelsByItemIDs(ctx context.Context, shopID int64, itemIDs []int64) ([]model.InventoryLevel, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var levels []model.InventoryLevel
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND inventory_item_external_id IN ?", shopID, itemIDs).
		Find(&levels).Error
	return levels, err
}

func (r *inventoryRepository) UpdateLevelFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.InventoryLevel{}).Where("id = ?", id).Updates(fields).Error
}

func (r *inventoryRepository) DeleteLevels(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.InventoryLevel{}).Error
}

func (r *inventoryRepository) UpsertTotal(ctx context.Context, total *model.InventoryTotal) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "shop_id"}, {Name: "inventory_item_external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"available", "incoming", "committed", "updated_at",
		}),
	}).Create(total).Error
}

func (r *inventoryRepository) DeleteTotal(ctx context.Context, shopID, itemID int64) error {
	return r.db.WithContext(ctx).
		Where("shop_id = ? AND inventory_item_external_id = ?", shopID, itemID).
		Delete(&model.InventoryTotal{}).Error
}

func (r *inventoryRepository) ListTotalsByItemIDs(ctx context.Context, shopID int64, itemIDs []int64) ([]model.InventoryTotal, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var totals []model.InventoryTotal
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND inventory_item_external_id IN ?", shopID, itemIDs).
		Find(&totals).Error
	return totals, err
}
