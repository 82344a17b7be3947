package model

import "time"

// Shop 店铺状态常量
const (
	ShopStatusActive   = 1 // 正常
	ShopStatusInactive = 2 // 已断开（平台卸载）
)

// ==================== Shop 店铺 ====================

// Shop 外部商务平台店铺
// 一个组织可以绑定多个店铺，但同一时刻至多一个处于 active 状态
type Shop struct {
	BaseModel
	OrgID int64 `gorm:"index;not null"`

	// 平台侧身份
	PlatformDomain string `gorm:"size:255;uniqueIndex;not null"` // 如 xxx.myshopify.com
	PlatformShopID int64  `gorm:"index"`

	ShopName     string `gorm:"size:255"`
	CurrencyCode string `gorm:"size:10;default:'USD'"`
	Timezone     string `gorm:"size:64"` // 店铺时区，参考用

	Status int `gorm:"index;default:1"`

	// 卸载时间戳，Status 置为 inactive 时写入
	UninstalledAt *time.Time

	// 最后一次增量同步到达时间
	SyncedAt *time.Time
}

func (Shop) TableName() string {
	return "shops"
}

// IsActive 店铺是否可写入
func (s *Shop) IsActive() bool {
	return s.Status == ShopStatusActive
}

// ==================== Session 平台会话 ====================

// Session 店铺维度的平台会话记录
// 店铺删除前必须确认本表无残留行
type Session struct {
	BaseModel
	ShopID int64 `gorm:"index;not null"`

	SessionKey  string `gorm:"size:255;uniqueIndex;not null"`
	AccessToken string `gorm:"size:255"`
	Scope       string `gorm:"size:512"`
	ExpiresAt   *time.Time
}

func (Session) TableName() string {
	return "sessions"
}

// ==================== SyncSession 同步会话 ====================

// 同步会话状态常量
const (
	SyncSessionRunning   = "running"
	SyncSessionCompleted = "completed"
	SyncSessionFailed    = "failed"
)

// 同步会话失败原因（结构化，供前端/引导流程判断）
const (
	SyncFailReasonShopInactive = "shop_inactive" // 店铺已断开
	SyncFailReasonNoShop       = "no_active_shop"
)

// SyncSession 一次批量导入/全量同步的会话记录
type SyncSession struct {
	BaseModel
	SessionUUID string `gorm:"size:64;uniqueIndex;not null"`
	OrgID       int64  `gorm:"index;not null"`
	ShopID      int64  `gorm:"index"`

	// full / incremental
	Kind   string `gorm:"size:20;default:'full'"`
	Status string `gorm:"size:20;index;default:'running'"`

	// 结构化失败原因
	FailReason string `gorm:"size:64"`
	FailDetail string `gorm:"type:text"`

	StartedAt  time.Time
	FinishedAt *time.Time
}

func (SyncSession) TableName() string {
	return "sync_sessions"
}
