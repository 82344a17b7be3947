package model

import (
	"time"

	"github.com/lib/pq"
)

// 商品状态常量
const (
	ProductStatusActive   = "active"
	ProductStatusDraft    = "draft"
	ProductStatusArchived = "archived"
)

// ==================== Product 商品 ====================

// Product 商品
type Product struct {
	BaseModel
	OrgID      int64 `gorm:"index;not null"`
	ShopID     int64 `gorm:"uniqueIndex:idx_product_ext_shop;index;not null"`
	ExternalID int64 `gorm:"uniqueIndex:idx_product_ext_shop;not null"`

	Title  string `gorm:"size:500"`
	Handle string `gorm:"size:255;index"`
	Status string `gorm:"size:20;index"`
	Vendor string `gorm:"size:255"`

	// 标签集（Postgres 数组）
	Tags pq.StringArray `gorm:"type:text[]"`

	// 冗余聚合（由变体/库存层回写）
	VariantCount   int   `gorm:"default:0"`
	InventoryCount int64 `gorm:"default:0"`

	PlatformCreatedAt   *time.Time
	PlatformPublishedAt *time.Time

	// 关联
	Variants []ProductVariant `gorm:"foreignKey:ProductID"`
}

func (Product) TableName() string {
	return "products"
}

// ==================== ProductVariant 商品变体 ====================

// ProductVariant 商品变体，归属于一个商品
type ProductVariant struct {
	BaseModel
	ProductID  int64 `gorm:"index;not null"`
	ShopID     int64 `gorm:"uniqueIndex:idx_variant_ext_shop;not null"`
	ExternalID int64 `gorm:"uniqueIndex:idx_variant_ext_shop;not null"`

	Title       string `gorm:"size:255"`
	PriceAmount int64  `gorm:"default:0"`
	Currency    string `gorm:"size:10"`
	SKU         string `gorm:"size:100;index"`
	Barcode     string `gorm:"size:100"`

	// 规格选项值
	Option1 string `gorm:"size:255"`
	Option2 string `gorm:"size:255"`
	Option3 string `gorm:"size:255"`

	// 平台库存项引用，库存层按此关联
	InventoryItemExternalID int64 `gorm:"index;default:0"`
}

func (ProductVariant) TableName() string {
	return "product_variants"
}

// ==================== InventoryLevel 库存层 ====================

// InventoryLevel 按 (库存项, 库位) 维度的库存记录
type InventoryLevel struct {
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	ShopID int64 `gorm:"uniqueIndex:idx_level_item_loc;not null"`

	InventoryItemExternalID int64 `gorm:"uniqueIndex:idx_level_item_loc;index;not null"`
	LocationExternalID      int64 `gorm:"uniqueIndex:idx_level_item_loc;not null"`

	Available int64 `gorm:"default:0"`
	Incoming  int64 `gorm:"default:0"`
	Committed int64 `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (InventoryLevel) TableName() string {
	return "inventory_levels"
}

// ==================== InventoryTotal 库存聚合 ====================

// InventoryTotal 库存项维度的聚合行，等于该项全部库存层之和
// 库存层在同一批次被改写时整行重算
type InventoryTotal struct {
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	ShopID int64 `gorm:"uniqueIndex:idx_total_item;not null"`

	InventoryItemExternalID int64 `gorm:"uniqueIndex:idx_total_item;not null"`

	Available int64 `gorm:"default:0"`
	Incoming  int64 `gorm:"default:0"`
	Committed int64 `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (InventoryTotal) TableName() string {
	return "inventory_totals"
}
