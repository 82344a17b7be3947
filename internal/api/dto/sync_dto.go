package dto

import "time"

// 入站载荷 DTO
// Webhook/批量导入层在入口处把平台的松散 JSON 归一化为这里的强类型结构，
// 同步服务只处理完整类型化的载荷。
// 可选字段使用指针：nil 表示平台未提供，写入时保留已有值。

// ==================== 订单类载荷 ====================

// OrderPayload 订单载荷
type OrderPayload struct {
	ExternalID  int64  `json:"external_id" binding:"required"`
	OrderNumber string `json:"order_number"`

	FinancialStatus   string `json:"financial_status"`
	FulfillmentStatus string `json:"fulfillment_status"`

	// 金额（最小货币单位）
	SubtotalAmount int64  `json:"subtotal_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	TipAmount      int64  `json:"tip_amount"`
	TotalAmount    int64  `json:"total_amount"`
	Currency       string `json:"currency"`

	CreatedAt   *time.Time `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	ClosedAt    *time.Time `json:"closed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	Customer *CustomerPayload   `json:"customer"`
	Items    []OrderItemPayload `json:"items"`
}

// OrderItemPayload 订单项载荷
type OrderItemPayload struct {
	ExternalID int64 `json:"external_id" binding:"required"`

	// 商品引用可选：行项可能指向已删除的商品
	ProductExternalID int64 `json:"product_external_id"`
	VariantExternalID int64 `json:"variant_external_id"`

	Title string `json:"title"`
	SKU   string `json:"sku"`

	Quantity            int               `json:"quantity"`
	FulfillableQuantity int               `json:"fulfillable_quantity"`
	PriceAmount         int64             `json:"price_amount"`
	DiscountAmount      int64             `json:"discount_amount"`
	Currency            string            `json:"currency"`
	Properties          map[string]string `json:"properties"`
}

// CustomerPayload 客户载荷
type CustomerPayload struct {
	ExternalID int64 `json:"external_id" binding:"required"`

	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`

	City        *string `json:"city"`
	CountryCode *string `json:"country_code"`

	CreatedAt *time.Time `json:"created_at"`
}

// ==================== 订单子记录载荷 ====================

// TransactionPayload 交易载荷
type TransactionPayload struct {
	ExternalID      int64 `json:"external_id" binding:"required"`
	ExternalOrderID int64 `json:"external_order_id" binding:"required"`

	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Gateway  string `json:"gateway"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`

	ProcessedAt *time.Time `json:"processed_at"`
}

// RefundPayload 退款载荷
type RefundPayload struct {
	ExternalID      int64 `json:"external_id" binding:"required"`
	ExternalOrderID int64 `json:"external_order_id" binding:"required"`

	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Note     string `json:"note"`

	ProcessedAt *time.Time `json:"processed_at"`
}

// FulfillmentPayload 履约载荷
type FulfillmentPayload struct {
	ExternalID      int64 `json:"external_id" binding:"required"`
	ExternalOrderID int64 `json:"external_order_id" binding:"required"`

	ShipmentStatus  string   `json:"shipment_status"`
	TrackingCompany string   `json:"tracking_company"`
	TrackingNumbers []string `json:"tracking_numbers"`
	TrackingURLs    []string `json:"tracking_urls"`
}

// ==================== 商品类载荷 ====================

// ProductPayload 商品载荷
type ProductPayload struct {
	ExternalID int64 `json:"external_id" binding:"required"`

	Title  string   `json:"title"`
	Handle string   `json:"handle"`
	Status string   `json:"status"`
	Vendor string   `json:"vendor"`
	Tags   []string `json:"tags"`

	CreatedAt   *time.Time `json:"created_at"`
	PublishedAt *time.Time `json:"published_at"`

	Variants []VariantPayload `json:"variants"`
}

// VariantPayload 变体载荷
type VariantPayload struct {
	ExternalID int64 `json:"external_id" binding:"required"`

	Title       string `json:"title"`
	PriceAmount int64  `json:"price_amount"`
	Currency    string `json:"currency"`
	SKU         string `json:"sku"`
	Barcode     string `json:"barcode"`

	Option1 string `json:"option1"`
	Option2 string `json:"option2"`
	Option3 string `json:"option3"`

	InventoryItemExternalID int64 `json:"inventory_item_external_id"`
}

// InventoryLevelPayload 库存层载荷
// 一次 resync 中某库存项的全部层应在同一批次内到达，
// 未出现的库位视为已失效，由同步服务清理
type InventoryLevelPayload struct {
	InventoryItemExternalID int64 `json:"inventory_item_external_id" binding:"required"`
	LocationExternalID      int64 `json:"location_external_id" binding:"required"`

	Available int64 `json:"available"`
	Incoming  int64 `json:"incoming"`
	Committed int64 `json:"committed"`
}

// CollectionPayload 集合载荷
type CollectionPayload struct {
	ExternalID int64 `json:"external_id" binding:"required"`

	Title  string `json:"title"`
	Handle string `json:"handle"`
	Kind   string `json:"kind"`

	PublishedAt *time.Time `json:"published_at"`
}
