package service

import (
	"time"

	"shopsync_v1_202608/internal/model"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// 变更检测
// 每种实体只比较固定的业务字段白名单，同步簿记字段（synced_at 等）不参与比较。
// 白名单内任一字段不同即判定有变更；完全一致时上层必须既不写库也不贡献受影响日期。
// 数组按元素逐个比较（顺序敏感），对象按键值结构比较，不做引用比较。

// ==================== 比较辅助 ====================

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func strSliceEqual(a, b pq.StringArray) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func jsonMapEqual(a, b datatypes.JSONMap) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}

// ==================== 订单类 ====================

// OrderChanged 订单是否有业务字段变更
func OrderChanged(existing, candidate *model.Order) bool {
	return existing.OrderNumber != candidate.OrderNumber ||
		existing.CustomerID != candidate.CustomerID ||
		existing.FinancialStatus != candidate.FinancialStatus ||
		existing.FulfillmentStatus != candidate.FulfillmentStatus ||
		existing.SubtotalAmount != candidate.SubtotalAmount ||
		existing.DiscountAmount != candidate.DiscountAmount ||
		existing.TipAmount != candidate.TipAmount ||
		existing.TotalAmount != candidate.TotalAmount ||
		existing.Currency != candidate.Currency ||
		existing.ItemCount != candidate.ItemCount ||
		existing.TotalQuantity != candidate.TotalQuantity ||
		!timePtrEqual(existing.PlatformCreatedAt, candidate.PlatformCreatedAt) ||
		!timePtrEqual(existing.PlatformProcessedAt, candidate.PlatformProcessedAt) ||
		!timePtrEqual(existing.PlatformClosedAt, candidate.PlatformClosedAt) ||
		!timePtrEqual(existing.PlatformCancelledAt, candidate.PlatformCancelledAt)
}

// OrderItemChanged 订单项是否有业务字段变更
func OrderItemChanged(existing, candidate *model.OrderItem) bool {
	return existing.ProductExternalID != candidate.ProductExternalID ||
		existing.VariantExternalID != candidate.VariantExternalID ||
		existing.Title != candidate.Title ||
		existing.SKU != candidate.SKU ||
		existing.Quantity != candidate.Quantity ||
		existing.FulfillableQuantity != candidate.FulfillableQuantity ||
		existing.PriceAmount != candidate.PriceAmount ||
		existing.DiscountAmount != candidate.DiscountAmount ||
		existing.Currency != candidate.Currency ||
		!jsonMapEqual(existing.Properties, candidate.Properties)
}

// TransactionChanged 交易是否有业务字段变更
func TransactionChanged(existing, candidate *model.Transaction) bool {
	return existing.Kind != candidate.Kind ||
		existing.Status != candidate.Status ||
		existing.Gateway != candidate.Gateway ||
		existing.Amount != candidate.Amount ||
		existing.Currency != candidate.Currency ||
		!timePtrEqual(existing.ProcessedAt, candidate.ProcessedAt)
}

// RefundChanged 退款是否有业务字段变更
func RefundChanged(existing, candidate *model.Refund) bool {
	return existing.Amount != candidate.Amount ||
		existing.Currency != candidate.Currency ||
		existing.Note != candidate.Note ||
		!timePtrEqual(existing.ProcessedAt, candidate.ProcessedAt)
}

// FulfillmentChanged 履约是否有业务字段变更
func FulfillmentChanged(existing, candidate *model.Fulfillment) bool {
	return existing.ShipmentStatus != candidate.ShipmentStatus ||
		existing.TrackingCompany != candidate.TrackingCompany ||
		!strSliceEqual(existing.TrackingNumbers, candidate.TrackingNumbers) ||
		!strSliceEqual(existing.TrackingURLs, candidate.TrackingURLs)
}

// ==================== 商品类 ====================

// ProductChanged 商品是否有业务字段变更
func ProductChanged(existing, candidate *model.Product) bool {
	return existing.Title != candidate.Title ||
		existing.Handle != candidate.Handle ||
		existing.Status != candidate.Status ||
		existing.Vendor != candidate.Vendor ||
		!strSliceEqual(existing.Tags, candidate.Tags) ||
		existing.VariantCount != candidate.VariantCount ||
		!timePtrEqual(existing.PlatformCreatedAt, candidate.PlatformCreatedAt) ||
		!timePtrEqual(existing.PlatformPublishedAt, candidate.PlatformPublishedAt)
}

// VariantChanged 变体是否有业务字段变更
func VariantChanged(existing, candidate *model.ProductVariant) bool {
	return existing.Title != candidate.Title ||
		existing.PriceAmount != candidate.PriceAmount ||
		existing.Currency != candidate.Currency ||
		existing.SKU != candidate.SKU ||
		existing.Barcode != candidate.Barcode ||
		existing.Option1 != candidate.Option1 ||
		existing.Option2 != candidate.Option2 ||
		existing.Option3 != candidate.Option3 ||
		existing.InventoryItemExternalID != candidate.InventoryItemExternalID
}

// InventoryLevelChanged 库存层是否有变更
func InventoryLevelChanged(existing, candidate *model.InventoryLevel) bool {
	return existing.Available != candidate.Available ||
		existing.Incoming != candidate.Incoming ||
		existing.Committed != candidate.Committed
}

// ==================== 客户与集合 ====================

// CustomerChanged 客户是否有业务字段变更
func CustomerChanged(existing, candidate *model.Customer) bool {
	return existing.Email != candidate.Email ||
		existing.FirstName != candidate.FirstName ||
		existing.LastName != candidate.LastName ||
		existing.Phone != candidate.Phone ||
		existing.City != candidate.City ||
		existing.CountryCode != candidate.CountryCode ||
		!timePtrEqual(existing.PlatformCreatedAt, candidate.PlatformCreatedAt)
}

// CollectionChanged 集合是否有业务字段变更
func CollectionChanged(existing, candidate *model.Collection) bool {
	return existing.Title != candidate.Title ||
		existing.Handle != candidate.Handle ||
		existing.Kind != candidate.Kind ||
		!timePtrEqual(existing.PlatformPublishedAt, candidate.PlatformPublishedAt)
}
