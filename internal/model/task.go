package model

import (
	"time"

	"gorm.io/datatypes"
)

// ==================== ScheduledTask 延迟任务 ====================

// 任务状态常量
const (
	TaskStatusPending = "pending"
	TaskStatusRunning = "running"
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
)

// 任务类型常量
const (
	TaskTypeChildSyncRetry   = "child_sync_retry"  // 孤儿子记录重试
	TaskTypeAnalyticsRebuild = "analytics_rebuild" // 日分析重建触发
	TaskTypePurgeBatch       = "purge_batch"       // 批量删除链
	TaskTypeShopDeleteCheck  = "shop_delete_check" // 店铺空检查删除
	TaskTypeDashboardPurge   = "dashboard_purge"   // 仪表盘删除链
)

// ScheduledTask 持久化的延迟任务行
// 所有"等待"都表达为未来的任务行，进程重启后不丢失
type ScheduledTask struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	TaskType string `gorm:"size:64;index;not null"`

	// 去重键：同键的新触发合并为延长 run_at（防抖的存储原语）
	// 允许多行 NULL，仅防抖类任务填写
	DedupeKey *string `gorm:"size:191;uniqueIndex"`

	Payload datatypes.JSON `gorm:"type:jsonb"`

	RunAt   time.Time `gorm:"index;not null"`
	Status  string    `gorm:"size:20;index;default:'pending'"`
	Attempt int       `gorm:"default:0"`

	LastError string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ScheduledTask) TableName() string {
	return "scheduled_tasks"
}
