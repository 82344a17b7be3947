package service

import (
	"testing"
	"time"

	"shopsync_v1_202608/internal/model"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// ==================== 变更检测测试 ====================

func TestOrderChanged_IdenticalOrdersNoChange(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := &model.Order{
		OrderNumber:       "1001",
		FinancialStatus:   model.FinancialStatusPaid,
		TotalAmount:       5000,
		Currency:          "USD",
		ItemCount:         2,
		PlatformCreatedAt: &created,
	}
	sameCreated := created
	b := &model.Order{
		OrderNumber:       "1001",
		FinancialStatus:   model.FinancialStatusPaid,
		TotalAmount:       5000,
		Currency:          "USD",
		ItemCount:         2,
		PlatformCreatedAt: &sameCreated,
	}
	if OrderChanged(a, b) {
		t.Error("完全相同的订单不应判定为有变更")
	}
}

func TestOrderChanged_FieldDifference(t *testing.T) {
	a := &model.Order{FinancialStatus: model.FinancialStatusPending, TotalAmount: 5000}
	b := &model.Order{FinancialStatus: model.FinancialStatusPaid, TotalAmount: 5000}
	if !OrderChanged(a, b) {
		t.Error("支付状态不同应判定为有变更")
	}
}

func TestOrderChanged_SyncedAtExcluded(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	a := &model.Order{TotalAmount: 5000, SyncedAt: &t1}
	b := &model.Order{TotalAmount: 5000, SyncedAt: &t2}
	if OrderChanged(a, b) {
		t.Error("同步簿记字段不应参与变更比较")
	}
}

func TestFulfillmentChanged_TrackingOrderSensitive(t *testing.T) {
	a := &model.Fulfillment{TrackingNumbers: pq.StringArray{"A1", "B2"}}
	b := &model.Fulfillment{TrackingNumbers: pq.StringArray{"B2", "A1"}}
	if !FulfillmentChanged(a, b) {
		t.Error("跟踪号顺序不同应判定为有变更")
	}

	c := &model.Fulfillment{TrackingNumbers: pq.StringArray{"A1", "B2"}}
	if FulfillmentChanged(a, c) {
		t.Error("跟踪号完全相同不应判定为有变更")
	}
}

func TestOrderItemChanged_PropertiesStructural(t *testing.T) {
	a := &model.OrderItem{Quantity: 1, Properties: datatypes.JSONMap{"color": "red", "size": "M"}}
	b := &model.OrderItem{Quantity: 1, Properties: datatypes.JSONMap{"size": "M", "color": "red"}}
	if OrderItemChanged(a, b) {
		t.Error("键序不同但结构相同的规格不应判定为有变更")
	}

	c := &model.OrderItem{Quantity: 1, Properties: datatypes.JSONMap{"color": "blue", "size": "M"}}
	if !OrderItemChanged(a, c) {
		t.Error("规格值不同应判定为有变更")
	}
}

func TestProductChanged_Tags(t *testing.T) {
	a := &model.Product{Title: "手链", Tags: pq.StringArray{"jewelry", "gift"}}
	b := &model.Product{Title: "手链", Tags: pq.StringArray{"jewelry"}}
	if !ProductChanged(a, b) {
		t.Error("标签数量不同应判定为有变更")
	}
}

func TestCustomerChanged_TimePointer(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &model.Customer{Email: "a@example.com", PlatformCreatedAt: nil}
	b := &model.Customer{Email: "a@example.com", PlatformCreatedAt: &t1}
	if !CustomerChanged(a, b) {
		t.Error("创建时间从空到有值应判定为有变更")
	}
}
