package repository

import (
	"context"
	"errors"

	"shopsync_v1_202608/internal/model"

	"gorm.io/gorm"
)

// ==================== OrderRepository 订单仓库 ====================

// OrderRepository 订单仓库接口
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	// GetByExternalID 按自然键查找，未找到返回 nil 而非错误
	GetByExternalID(ctx context.Context, shopID, externalID int64) (*model.Order, error)
	// ListByExternalIDs 按自然键批量查找（调用方负责分块）
	ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Order, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	// DeleteCascade 级联删除订单及其全部子记录
	DeleteCascade(ctx context.Context, id int64) error

	CountByShop(ctx context.Context, shopID int64) (int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByExternalID(ctx context.Context, shopID, externalID int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id = ?", shopID, externalID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Order, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id IN ?", shopID, externalIDs).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteCascade 子记录先删、订单行最后删，顺序不可调换
func (r *orderRepository) DeleteCascade(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&model.OrderItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&model.Transaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&model.Refund{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&model.Fulfillment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Order{}, id).Error
	})
}

func (r *orderRepository) CountByShop(ctx context.Context, shopID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Where("shop_id = ?", shopID).Count(&count).Error
	return count, err
}

// ==================== OrderItemRepository 订单项仓库 ====================

// OrderItemRepository 订单项仓库接口
type OrderItemRepository interface {
	Create(ctx context.Context, item *model.OrderItem) error
	ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.OrderItem, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
}

type orderItemRepository struct {
	db *gorm.DB
}

// NewOrderItemRepository 创建订单项仓库
func NewOrderItemRepository(db *gorm.DB) OrderItemRepository {
	return &orderItemRepository{db: db}
}

func (r *orderItemRepository) Create(ctx context.Context, item *model.OrderItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *orderItemRepository) ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.OrderItem, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var items []model.OrderItem
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id IN ?", shopID, externalIDs).
		Find(&items).Error
	return items, err
}

func (r *orderItemRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&items).Error
	return items, err
}

func (r *orderItemRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.OrderItem{}).Where("id = ?", id).Updates(fields).Error
}
