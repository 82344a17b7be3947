package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// ==================== 订单状态常量 ====================

// FinancialStatus 平台支付状态
const (
	FinancialStatusPending           = "pending"
	FinancialStatusPaid              = "paid"
	FinancialStatusPartiallyPaid     = "partially_paid"
	FinancialStatusRefunded          = "refunded"
	FinancialStatusPartiallyRefunded = "partially_refunded"
	FinancialStatusVoided            = "voided"
)

// FulfillmentStatus 平台履约状态
const (
	FulfillmentStatusUnfulfilled = "unfulfilled"
	FulfillmentStatusPartial     = "partial"
	FulfillmentStatusFulfilled   = "fulfilled"
)

// ==================== Order 订单主表 ====================

// Order 订单
// 按 (external_id, shop_id) 保证平台侧订单在本地唯一
type Order struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	ExternalID int64 `gorm:"uniqueIndex:idx_order_ext_shop;not null"`
	ShopID     int64 `gorm:"uniqueIndex:idx_order_ext_shop;index;not null"`
	OrgID      int64 `gorm:"index;not null"`

	// 客户（懒创建，订单首次引用时写入）
	CustomerID int64 `gorm:"index"`

	OrderNumber string `gorm:"size:64"`

	// 状态
	FinancialStatus   string `gorm:"size:32;index"`
	FulfillmentStatus string `gorm:"size:32"`

	// 金额（最小货币单位存储）
	SubtotalAmount int64
	DiscountAmount int64
	TipAmount      int64
	TotalAmount    int64
	Currency       string `gorm:"size:10;default:'USD'"`

	// 冗余聚合
	ItemCount     int `gorm:"default:0"`
	TotalQuantity int `gorm:"default:0"`

	// 平台侧时间戳（全部来自平台，不在本地生成）
	PlatformCreatedAt   *time.Time `gorm:"index"`
	PlatformProcessedAt *time.Time
	PlatformClosedAt    *time.Time
	PlatformCancelledAt *time.Time

	// 同步簿记（不参与变更比较）
	SyncedAt *time.Time

	// 审计字段
	CreatedAt time.Time
	UpdatedAt time.Time

	// 关联
	Items        []OrderItem   `gorm:"foreignKey:OrderID"`
	Transactions []Transaction `gorm:"foreignKey:OrderID"`
	Refunds      []Refund      `gorm:"foreignKey:OrderID"`
	Fulfillments []Fulfillment `gorm:"foreignKey:OrderID"`
}

func (*Order) TableName() string {
	return "orders"
}

// GetTotal 获取总金额（元）
func (o *Order) GetTotal() float64 {
	return float64(o.TotalAmount) / 100
}

// ==================== OrderItem 订单项 ====================

// OrderItem 订单项，归属于一个订单
type OrderItem struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	OrderID    int64 `gorm:"index;not null"`
	ExternalID int64 `gorm:"uniqueIndex:idx_item_ext_shop;not null"`
	ShopID     int64 `gorm:"uniqueIndex:idx_item_ext_shop;not null"`

	// 商品引用（可选，商品被删除后行项仍保留）
	ProductExternalID int64 `gorm:"index;default:0"`
	VariantExternalID int64 `gorm:"index;default:0"`

	Title string `gorm:"size:500"`
	SKU   string `gorm:"size:100;index"`

	Quantity            int `gorm:"default:1"`
	FulfillableQuantity int `gorm:"default:0"`
	PriceAmount         int64
	DiscountAmount      int64
	Currency            string `gorm:"size:10"`

	// 规格组合（JSONB）
	Properties datatypes.JSONMap `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*OrderItem) TableName() string {
	return "order_items"
}

// ==================== Transaction 交易 ====================

// 交易类型常量
const (
	TransactionKindSale          = "sale"
	TransactionKindCapture       = "capture"
	TransactionKindAuthorization = "authorization"
	TransactionKindVoid          = "void"
	TransactionKindRefund        = "refund"
)

// Transaction 支付交易，归属于一个订单
// 到达时携带平台侧订单 ID，写入前解析为本地 OrderID
type Transaction struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	OrderID    int64 `gorm:"index;not null"`
	ExternalID int64 `gorm:"uniqueIndex:idx_txn_ext_shop;not null"`
	ShopID     int64 `gorm:"uniqueIndex:idx_txn_ext_shop;not null"`

	// 平台侧订单引用（仅用于到达时解析）
	ExternalOrderID int64 `gorm:"index;not null"`

	Kind     string `gorm:"size:32"`
	Status   string `gorm:"size:32"`
	Gateway  string `gorm:"size:64"`
	Amount   int64
	Currency string `gorm:"size:10"`

	ProcessedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*Transaction) TableName() string {
	return "transactions"
}

// ==================== Refund 退款 ====================

// Refund 退款记录，归属于一个订单
type Refund struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	OrderID    int64 `gorm:"index;not null"`
	ExternalID int64 `gorm:"uniqueIndex:idx_refund_ext_shop;not null"`
	ShopID     int64 `gorm:"uniqueIndex:idx_refund_ext_shop;not null"`

	ExternalOrderID int64 `gorm:"index;not null"`

	Amount   int64
	Currency string `gorm:"size:10"`
	Note     string `gorm:"type:text"`

	ProcessedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*Refund) TableName() string {
	return "refunds"
}

// ==================== Fulfillment 履约 ====================

// ShipmentStatus 履约配送状态
const (
	ShipmentStatusPending   = "pending"
	ShipmentStatusInTransit = "in_transit"
	ShipmentStatusDelivered = "delivered"
	ShipmentStatusFailure   = "failure"
)

// Fulfillment 履约/发货记录，归属于一个订单
type Fulfillment struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	OrderID    int64 `gorm:"index;not null"`
	ExternalID int64 `gorm:"uniqueIndex:idx_ffm_ext_shop;not null"`
	ShopID     int64 `gorm:"uniqueIndex:idx_ffm_ext_shop;not null"`

	ExternalOrderID int64 `gorm:"index;not null"`

	ShipmentStatus string `gorm:"size:32"`

	// 跟踪信息（多值，Postgres 数组）
	TrackingCompany string         `gorm:"size:128"`
	TrackingNumbers pq.StringArray `gorm:"type:text[]"`
	TrackingURLs    pq.StringArray `gorm:"type:text[]"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*Fulfillment) TableName() string {
	return "fulfillments"
}
