package repository

import (
	"context"
	"errors"
	"time"

	"shopsync_v1_202608/internal/model"

	"gorm.io/gorm"
)

// ==================== ShopRepository 店铺仓库 ====================

// ShopRepository 店铺仓库接口
type ShopRepository interface {
	Create(ctx context.Context, shop *model.Shop) error
	GetByID(ctx context.Context, id int64) (*model.Shop, error)
	GetByDomain(ctx context.Context, domain string) (*model.Shop, error)
	// GetActiveByOrg 返回组织当前的活跃店铺，无则返回 nil
	GetActiveByOrg(ctx context.Context, orgID int64) (*model.Shop, error)
	ListByOrg(ctx context.Context, orgID int64) ([]model.Shop, error)
	MarkUninstalled(ctx context.Context, id int64) error
	// DeleteHard 物理删除店铺行（teardown 末步专用）
	DeleteHard(ctx context.Context, id int64) error
}

type shopRepository struct {
	db *gorm.DB
}

// NewShopRepository 创建店铺仓库
func NewShopRepository(db *gorm.DB) ShopRepository {
	return &shopRepository{db: db}
}

func (r *shopRepository) Create(ctx context.Context, shop *model.Shop) error {
	return r.db.WithContext(ctx).Create(shop).Error
}

func (r *shopRepository) GetByID(ctx context.Context, id int64) (*model.Shop, error) {
	var shop model.Shop
	if err := r.db.WithContext(ctx).First(&shop, id).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepository) GetByDomain(ctx context.Context, domain string) (*model.Shop, error) {
	var shop model.Shop
	if err := r.db.WithContext(ctx).Where("platform_domain = ?", domain).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepository) GetActiveByOrg(ctx context.Context, orgID int64) (*model.Shop, error) {
	var shop model.Shop
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND status = ?", orgID, model.ShopStatusActive).
		Order("id ASC").
		First(&shop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepository) ListByOrg(ctx context.Context, orgID int64) ([]model.Shop, error) {
	var shops []model.Shop
	err := r.db.WithContext(ctx).Where("org_id = ?", orgID).Find(&shops).Error
	return shops, err
}

func (r *shopRepository) MarkUninstalled(ctx context.Context, id int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Shop{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         model.ShopStatusInactive,
		"uninstalled_at": &now,
	}).Error
}

func (r *shopRepository) DeleteHard(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&model.Shop{}, id).Error
}

// ==================== SyncSessionRepository 同步会话仓库 ====================

// SyncSessionRepository 同步会话仓库接口
type SyncSessionRepository interface {
	Create(ctx context.Context, session *model.SyncSession) error
	GetByID(ctx context.Context, id int64) (*model.SyncSession, error)
	MarkCompleted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason, detail string) error
}

type syncSessionRepository struct {
	db *gorm.DB
}

// NewSyncSessionRepository 创建同步会话仓库
func NewSyncSessionRepository(db *gorm.DB) SyncSessionRepository {
	return &syncSessionRepository{db: db}
}

func (r *syncSessionRepository) Create(ctx context.Context, session *model.SyncSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *syncSessionRepository) GetByID(ctx context.Context, id int64) (*model.SyncSession, error) {
	var session model.SyncSession
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *syncSessionRepository) MarkCompleted(ctx context.Context, id int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.SyncSession{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      model.SyncSessionCompleted,
		"finished_at": &now,
	}).Error
}

func (r *syncSessionRepository) MarkFailed(ctx context.Context, id int64, reason, detail string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.SyncSession{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      model.SyncSessionFailed,
		"fail_reason": reason,
		"fail_detail": detail,
		"finished_at": &now,
	}).Error
}
