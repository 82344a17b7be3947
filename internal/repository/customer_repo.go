package repository

import (
	"context"
	"errors"

	"shopsync_v1_202608/internal/model"

	"gorm.io/gorm"
)

// ==================== CustomerRepository 客户仓库 ====================

// CustomerRepository 客户仓库接口
type CustomerRepository interface {
	Create(ctx context.Context, customer *model.Customer) error
	GetByExternalID(ctx context.Context, shopID, externalID int64) (*model.Customer, error)
	ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Customer, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error

	CountByShop(ctx context.Context, shopID int64) (int64, error)
}

type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository 创建客户仓库
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *model.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *customerRepository) GetByExternalID(ctx context.Context, shopID, externalID int64) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id = ?", shopID, externalID).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Customer, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var customers []model.Customer
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id IN ?", shopID, externalIDs).
		Find(&customers).Error
	return customers, err
}

func (r *customerRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Customer{}).Where("id = ?", id).Updates(fields).Error
}

func (r *customerRepository) CountByShop(ctx context.Context, shopID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Customer{}).Where("shop_id = ?", shopID).Count(&count).Error
	return count, err
}

// ==================== CollectionRepository 集合仓库 ====================

// CollectionRepository 集合仓库接口
type CollectionRepository interface {
	Create(ctx context.Context, collection *model.Collection) error
	ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Collection, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
}

type collectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository 创建集合仓库
func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) Create(ctx context.Context, collection *model.Collection) error {
	return r.db.WithContext(ctx).Create(collection).Error
}

func (r *collectionRepository) ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Collection, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var collections []model.Collection
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id IN ?", shopID, externalIDs).
		Find(&collections).Error
	return collections, err
}

func (r *collectionRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Collection{}).Where("id = ?", id).Updates(fields).Error
}

func (r *collectionRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Collection{}, id).Error
}
