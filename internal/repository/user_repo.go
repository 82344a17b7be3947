package repository

import (
	"context"
	"errors"
	"time"

	"shopsync_v1_202608/internal/model"

	"gorm.io/gorm"
)

// ==================== SysUserRepository 用户仓库 ====================

// SysUserRepository 用户仓库接口
type SysUserRepository interface {
	Create(ctx context.Context, user *model.SysUser) error
	GetByID(ctx context.Context, id int64) (*model.SysUser, error)
	GetByUsername(ctx context.Context, username string) (*model.SysUser, error)
	// ListByOrg 列出组织的全部成员用户（含已移除前的 active 成员）
	ListByOrg(ctx context.Context, orgID int64) ([]model.SysUser, error)
	// StampAppDeleted 写入"应用已删除"审计时间戳
	StampAppDeleted(ctx context.Context, userID int64, at time.Time) error
}

type sysUserRepository struct {
	db *gorm.DB
}

// NewSysUserRepository 创建用户仓库
func NewSysUserRepository(db *gorm.DB) SysUserRepository {
	return &sysUserRepository{db: db}
}

func (r *sysUserRepository) Create(ctx context.Context, user *model.SysUser) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *sysUserRepository) GetByID(ctx context.Context, id int64) (*model.SysUser, error) {
	var user model.SysUser
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *sysUserRepository) GetByUsername(ctx context.Context, username string) (*model.SysUser, error) {
	var user model.SysUser
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *sysUserRepository) ListByOrg(ctx context.Context, orgID int64) ([]model.SysUser, error) {
	var users []model.SysUser
	err := r.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.sys_user_id = sys_users.id").
		Where("memberships.org_id = ? AND memberships.status = ?", orgID, model.MembershipStatusActive).
		Find(&users).Error
	return users, err
}

func (r *sysUserRepository) StampAppDeleted(ctx context.Context, userID int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.SysUser{}).
		Where("id = ?", userID).
		Update("app_deleted_at", &at).Error
}

// ==================== MembershipRepository 成员关系仓库 ====================

// MembershipRepository 成员关系仓库接口
type MembershipRepository interface {
	Create(ctx context.Context, m *model.Membership) error
	// GetActiveByUser 用户当前的活跃成员关系，无则返回 nil
	GetActiveByUser(ctx context.Context, userID int64) (*model.Membership, error)
	// MarkRemoved 把用户在某组织的成员关系标记为已移除
	MarkRemoved(ctx context.Context, userID, orgID int64) error
}

type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository 创建成员关系仓库
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Create(ctx context.Context, m *model.Membership) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *membershipRepository) GetActiveByUser(ctx context.Context, userID int64) (*model.Membership, error) {
	var m model.Membership
	err := r.db.WithContext(ctx).
		Where("sys_user_id = ? AND status = ?", userID, model.MembershipStatusActive).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepository) MarkRemoved(ctx context.Context, userID, orgID int64) error {
	return r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("sys_user_id = ? AND org_id = ?", userID, orgID).
		Update("status", model.MembershipStatusRemoved).Error
}

// ==================== OnboardingRepository 引导状态仓库 ====================

// OnboardingRepository 引导状态仓库接口
type OnboardingRepository interface {
	Create(ctx context.Context, state *model.OnboardingState) error
	GetByUser(ctx context.Context, userID int64) (*model.OnboardingState, error)
	// Reset 重置为初始/未完成状态
	Reset(ctx context.Context, userID int64) error
	UpdateFields(ctx context.Context, userID int64, fields map[string]interface{}) error
}

type onboardingRepository struct {
	db *gorm.DB
}

// NewOnboardingRepository 创建引导状态仓库
func NewOnboardingRepository(db *gorm.DB) OnboardingRepository {
	return &onboardingRepository{db: db}
}

func (r *onboardingRepository) Create(ctx context.Context, state *model.OnboardingState) error {
	return r.db.WithContext(ctx).Create(state).Error
}

func (r *onboardingRepository) GetByUser(ctx context.Context, userID int64) (*model.OnboardingState, error) {
	var state model.OnboardingState
	err := r.db.WithContext(ctx).Where("sys_user_id = ?", userID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *onboardingRepository) Reset(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Model(&model.OnboardingState{}).
		Where("sys_user_id = ?", userID).
		Updates(map[string]interface{}{
			"current_step":    model.OnboardingStepInitial,
			"completed":       false,
			"sync_error_note": "",
		}).Error
}

func (r *onboardingRepository) UpdateFields(ctx context.Context, userID int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.OnboardingState{}).
		Where("sys_user_id = ?", userID).
		Updates(fields).Error
}
