package model

import "time"

// ==================== SysUser 系统用户 ====================

// SysUser 系统用户
type SysUser struct {
	BaseModel
	Username string `gorm:"size:100;uniqueIndex;not null"`
	Password string `gorm:"size:255;not null"` // 哈希密码
	Email    string `gorm:"size:100"`

	IsActive bool `gorm:"default:true"`

	// 平台应用被卸载时的审计时间戳
	AppDeletedAt *time.Time

	// 关联关系
	Memberships []Membership `gorm:"foreignKey:SysUserID"`
}

func (SysUser) TableName() string {
	return "sys_users"
}

// ==================== Membership 成员关系 ====================

// 成员状态常量
const (
	MembershipStatusActive  = "active"  // 正常
	MembershipStatusRemoved = "removed" // 已移除（卸载/退出）
)

// Membership 用户与组织的关联关系
type Membership struct {
	BaseModel
	// 联合唯一索引，确保一个用户在一个组织里只有一条记录
	SysUserID int64 `gorm:"index;uniqueIndex:idx_user_org;not null"`
	OrgID     int64 `gorm:"index;uniqueIndex:idx_user_org;not null"`

	// 角色: owner, member
	Role   string `gorm:"size:20;default:'member'"`
	Status string `gorm:"size:20;index;default:'active'"`
}

func (Membership) TableName() string {
	return "memberships"
}

// ==================== OnboardingState 引导状态 ====================

// 引导步骤常量
const (
	OnboardingStepInitial   = "initial"   // 初始状态
	OnboardingStepConnected = "connected" // 已连接平台
	OnboardingStepSyncing   = "syncing"   // 首次同步中
	OnboardingStepCompleted = "completed" // 已完成
)

// OnboardingState 用户引导进度记录
// 卸载时重置为初始状态，用户重装后重新走引导流程
type OnboardingState struct {
	BaseModel
	SysUserID int64 `gorm:"uniqueIndex;not null"`
	OrgID     int64 `gorm:"index"`

	CurrentStep string `gorm:"size:32;default:'initial'"`
	Completed   bool   `gorm:"default:false"`

	// 同步出错时的备注，供前端提示
	SyncErrorNote string `gorm:"type:text"`
}

func (OnboardingState) TableName() string {
	return "onboarding_states"
}
