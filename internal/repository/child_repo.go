package repository

import (
	"context"

	"shopsync_v1_202608/internal/model"

	"gorm.io/gorm"
)

// 订单子记录仓库（交易 / 退款 / 履约）
// 三者结构一致：按自然键批量查找 + 创建 + 字段更新

// ==================== TransactionRepository ====================

// TransactionRepository 交易仓库接口
type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) error
	ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Transaction, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Transaction, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建交易仓库
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *model.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *transactionRepository) ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Transaction, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var txns []model.Transaction
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id IN ?", shopID, externalIDs).
		Find(&txns).Error
	return txns, err
}

func (r *transactionRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.Transaction, error) {
	var txns []model.Transaction
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&txns).Error
	return txns, err
}

func (r *transactionRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Transaction{}).Where("id = ?", id).Updates(fields).Error
}

// ==================== RefundRepository ====================

// RefundRepository 退款仓库接口
type RefundRepository interface {
	Create(ctx context.Context, refund *model.Refund) error
	ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Refund, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Refund, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
}

type refundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款仓库
func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) Create(ctx context.Context, refund *model.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *refundRepository) ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Refund, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var refunds []model.Refund
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id IN ?", shopID, externalIDs).
		Find(&refunds).Error
	return refunds, err
}

func (r *refundRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.Refund, error) {
	var refunds []model.Refund
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&refunds).Error
	return refunds, err
}

func (r *refundRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Refund{}).Where("id = ?", id).Updates(fields).Error
}

// ==================== FulfillmentRepository ====================

// FulfillmentRepository 履约仓库接口
type FulfillmentRepository interface {
	Create(ctx context.Context, f *model.Fulfillment) error
	ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Fulfillment, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Fulfillment, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
}

type fulfillmentRepository struct {
	db *gorm.DB
}

// NewFulfillmentRepository 创建履约仓库
func NewFulfillmentRepository(db *gorm.DB) FulfillmentRepository {
	return &fulfillmentRepository{db: db}
}

func (r *fulfillmentRepository) Create(ctx context.Context, f *model.Fulfillment) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *fulfillmentRepository) ListByExternalIDs(ctx context.Context, shopID int64, externalIDs []int64) ([]model.Fulfillment, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var fs []model.Fulfillment
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND external_id IN ?", shopID, externalIDs).
		Find(&fs).Error
	return fs, err
}

func (r *fulfillmentRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.Fulfillment, error) {
	var fs []model.Fulfillment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&fs).Error
	return fs, err
}

func (r *fulfillmentRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Fulfillment{}).Where("id = ?", id).Updates(fields).Error
}
