package model

import "time"

// ==================== Customer 客户 ====================

// Customer 客户
// 订单首次引用时懒创建；更新为非破坏性合并（载荷缺失的字段保留原值）
type Customer struct {
	BaseModel
	OrgID      int64 `gorm:"index;not null"`
	ShopID     int64 `gorm:"uniqueIndex:idx_customer_ext_shop;index;not null"`
	ExternalID int64 `gorm:"uniqueIndex:idx_customer_ext_shop;not null"`

	Email     string `gorm:"size:255;index"`
	FirstName string `gorm:"size:128"`
	LastName  string `gorm:"size:128"`
	Phone     string `gorm:"size:64"`

	City        string `gorm:"size:128"`
	CountryCode string `gorm:"size:10"`

	// 平台侧创建时间；平台未提供时回填为该客户最早订单的时间
	PlatformCreatedAt *time.Time
}

func (Customer) TableName() string {
	return "customers"
}

// ==================== Collection 商品集合 ====================

// Collection 商品集合（分类/专辑）
type Collection struct {
	BaseModel
	OrgID      int64 `gorm:"index;not null"`
	ShopID     int64 `gorm:"uniqueIndex:idx_collection_ext_shop;not null"`
	ExternalID int64 `gorm:"uniqueIndex:idx_collection_ext_shop;not null"`

	Title  string `gorm:"size:255"`
	Handle string `gorm:"size:255;index"`

	// custom / smart
	Kind string `gorm:"size:20;default:'custom'"`

	PlatformPublishedAt *time.Time
}

func (Collection) TableName() string {
	return "collections"
}
