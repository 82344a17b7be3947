package dto

// 延迟任务载荷参数
// 任务行里的 Payload 字段序列化自这些结构，处理器反序列化后继续执行。

// 子记录类型标识
const (
	ChildKindTransaction = "transaction"
	ChildKindRefund      = "refund"
	ChildKindFulfillment = "fulfillment"
)

// ChildRetryArgs 孤儿子记录重试参数
// 仅携带未解析成功的载荷，Attempt 随每次重试递增
type ChildRetryArgs struct {
	OrgID  int64  `json:"org_id"`
	ShopID int64  `json:"shop_id"`
	Kind   string `json:"kind"`

	Transactions []TransactionPayload `json:"transactions,omitempty"`
	Refunds      []RefundPayload      `json:"refunds,omitempty"`
	Fulfillments []FulfillmentPayload `json:"fulfillments,omitempty"`

	Attempt int `json:"attempt"`
}

// RebuildArgs 分析重建触发参数
type RebuildArgs struct {
	OrgID int64  `json:"org_id"`
	Date  string `json:"date"` // 2006-01-02
	Scope string `json:"scope"`
}

// PurgeBatchArgs 批量删除链参数
type PurgeBatchArgs struct {
	Table string `json:"table"`

	// 作用域：org / shop 二选一
	OrgID  int64 `json:"org_id,omitempty"`
	ShopID int64 `json:"shop_id,omitempty"`

	Cursor    int64 `json:"cursor"`
	BatchSize int   `json:"batch_size"`
}

// ShopDeleteArgs 店铺空检查删除参数
type ShopDeleteArgs struct {
	ShopID  int64 `json:"shop_id"`
	Attempt int   `json:"attempt"`
}

// DashboardPurgeArgs 仪表盘删除链参数
// 删除完成后如无默认仪表盘，为 OwnerUserID 重建一个
type DashboardPurgeArgs struct {
	OrgID       int64 `json:"org_id"`
	OwnerUserID int64 `json:"owner_user_id"`
	Cursor      int64 `json:"cursor"`
	BatchSize   int   `json:"batch_size"`
	Recreate    bool  `json:"recreate"`
}
