package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 公共字段
// 软删除只用于业务实体，批量删除引擎清理时走 Unscoped 物理删除
type BaseModel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
