package model

import "time"

// ==================== Organization 组织（租户） ====================

// Organization 组织/工作区，所有业务数据的隔离单位
type Organization struct {
	BaseModel
	Name        string `gorm:"size:255;not null"`
	OwnerUserID int64  `gorm:"index"`

	// 时区（IANA 名称），为空时使用平台默认（UTC）
	// 计算"受影响日期"时按此时区折算
	Timezone string `gorm:"size:64"`

	// 付费标记，卸载时重置，强制重装后重新走计费流程
	IsPremium bool `gorm:"default:false"`

	// 首次全量同步完成时间
	// 为空时抑制分析重建触发，避免对不完整数据做统计
	InitialSyncedAt *time.Time

	// 最近一次同步失败原因（仅记录，不参与业务判断）
	LastSyncError string `gorm:"type:text"`
}

func (Organization) TableName() string {
	return "organizations"
}

// HasCompletedInitialSync 首次全量同步是否已完成
func (o *Organization) HasCompletedInitialSync() bool {
	return o.InitialSyncedAt != nil
}

// ==================== Billing 计费记录 ====================

// Billing 组织计费记录（每个组织一条）
type Billing struct {
	BaseModel
	OrgID int64 `gorm:"uniqueIndex;not null"`

	Plan           string `gorm:"size:32;default:'free'"`
	SubscriptionID string `gorm:"size:128"`
	Status         string `gorm:"size:32;default:'active'"`

	TrialEndsAt *time.Time
}

func (Billing) TableName() string {
	return "billings"
}

// ==================== Dashboard 仪表盘 ====================

// Dashboard 组织下的分析仪表盘
type Dashboard struct {
	BaseModel
	OrgID       int64 `gorm:"index;not null"`
	OwnerUserID int64 `gorm:"index"`

	Name      string `gorm:"size:255;not null"`
	IsDefault bool   `gorm:"default:false"`
}

func (Dashboard) TableName() string {
	return "dashboards"
}
