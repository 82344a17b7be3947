package repository

import (
	"context"
	"errors"
	"time"

	"shopsync_v1_202608/internal/model"

	"gorm.io/gorm"
)

// ==================== OrganizationRepository 组织仓库 ====================

// OrganizationRepository 组织仓库接口
type OrganizationRepository interface {
	Create(ctx context.Context, org *model.Organization) error
	GetByID(ctx context.Context, id int64) (*model.Organization, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	// MarkInitialSyncDone 幂等：已标记时不再改写时间
	MarkInitialSyncDone(ctx context.Context, id int64) error
	ResetPremium(ctx context.Context, id int64) error
}

type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository 创建组织仓库
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) Create(ctx context.Context, org *model.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *organizationRepository) GetByID(ctx context.Context, id int64) (*model.Organization, error) {
	var org model.Organization
	if err := r.db.WithContext(ctx).First(&org, id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Organization{}).Where("id = ?", id).Updates(fields).Error
}

func (r *organizationRepository) MarkInitialSyncDone(ctx context.Context, id int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Organization{}).
		Where("id = ? AND initial_synced_at IS NULL", id).
		Update("initial_synced_at", &now).Error
}

func (r *organizationRepository) ResetPremium(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.Organization{}).
		Where("id = ?", id).
		Update("is_premium", false).Error
}

// ==================== BillingRepository 计费仓库 ====================

// BillingRepository 计费仓库接口
type BillingRepository interface {
	Create(ctx context.Context, billing *model.Billing) error
	GetByOrg(ctx context.Context, orgID int64) (*model.Billing, error)
	// DeleteByOrg 物理删除组织计费记录（卸载后强制重新走计费）
	DeleteByOrg(ctx context.Context, orgID int64) error
}

type billingRepository struct {
	db *gorm.DB
}

// NewBillingRepository 创建计费仓库
func NewBillingRepository(db *gorm.DB) BillingRepository {
	return &billingRepository{db: db}
}

func (r *billingRepository) Create(ctx context.Context, billing *model.Billing) error {
	return r.db.WithContext(ctx).Create(billing).Error
}

func (r *billingRepository) GetByOrg(ctx context.Context, orgID int64) (*model.Billing, error) {
	var billing model.Billing
	err := r.db.WithContext(ctx).Where("org_id = ?", orgID).First(&billing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &billing, nil
}

func (r *billingRepository) DeleteByOrg(ctx context.Context, orgID int64) error {
	return r.db.WithContext(ctx).Unscoped().Where("org_id = ?", orgID).Delete(&model.Billing{}).Error
}

// ==================== DashboardRepository 仪表盘仓库 ====================

// DashboardRepository 仪表盘仓库接口
type DashboardRepository interface {
	Create(ctx context.Context, dashboard *model.Dashboard) error
	// HasDefault 组织是否已有默认仪表盘
	HasDefault(ctx context.Context, orgID int64) (bool, error)
	CountByOrg(ctx context.Context, orgID int64) (int64, error)
}

type dashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository 创建仪表盘仓库
func NewDashboardRepository(db *gorm.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

func (r *dashboardRepository) Create(ctx context.Context, dashboard *model.Dashboard) error {
	return r.db.WithContext(ctx).Create(dashboard).Error
}

func (r *dashboardRepository) HasDefault(ctx context.Context, orgID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Dashboard{}).
		Where("org_id = ? AND is_default = ?", orgID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *dashboardRepository) CountByOrg(ctx context.Context, orgID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Dashboard{}).
		Where("org_id = ?", orgID).
		Count(&count).Error
	return count, err
}
