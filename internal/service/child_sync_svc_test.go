package service

import (
	"context"
	"testing"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/model"
)

// ==================== 子记录同步测试 ====================

func TestUpsertTransactions_ResolvedParent(t *testing.T) {
	env := newSyncTestEnv(t)
	ctx := context.Background()

	if err := env.orderSync.UpsertOrders(ctx, env.org.ID, env.shop.ID, []dto.OrderPayload{sampleOrderPayload(100)}, 0); err != nil {
		t.Fatalf("订单 upsert 失败: %v", err)
	}

	payloads := []dto.TransactionPayload{
		{ExternalID: 501, ExternalOrderID: 100, Kind: model.TransactionKindSale, Amount: 5000, Currency: "USD"},
	}
	if err := env.childSync.UpsertTransactions(ctx, env.org.ID, env.shop.ID, payloads, 0); err != nil {
		t.Fatalf("交易 upsert 失败: %v", err)
	}

	var txn model.Transaction
	if err := env.db.Where("external_id = ?", 501).First(&txn).Error; err != nil {
		t.Fatalf("交易未写入: %v", err)
	}
	var order model.Order
	env.db.Where("external_id = ?", 100).First(&order)
	if txn.OrderID != order.ID {
		t.Errorf("交易应解析到订单 %d，实际 %d", order.ID, txn.OrderID)
	}

	// 父记录已解析的批次不应有孤儿重试
	if got := len(env.scheduler.callsOfType(model.TaskTypeChildSyncRetry)); got != 0 {
		t.Errorf("不应调度孤儿重试，实际 %d 次", got)
	}
}

func TestUpsertTransactions_OrphanScheduled(t *testing.T) {
	env := newSyncTestEnv(t)
	ctx := context.Background()

	// 父订单不存在
	payloads := []dto.TransactionPayload{
		{ExternalID: 501, ExternalOrderID: 999, Kind: model.TransactionKindSale, Amount: 5000},
	}
	if err := env.childSync.UpsertTransactions(ctx, env.org.ID, env.shop.ID, payloads, 0); err != nil {
		t.Fatalf("孤儿批次不应整体报错: %v", err)
	}

	var txnCount int64
	env.db.Model(&model.Transaction{}).Count(&txnCount)
	if txnCount != 0 {
		t.Errorf("孤儿交易不应写入，实际 %d 行", txnCount)
	}

	retries := env.scheduler.callsOfType(model.TaskTypeChildSyncRetry)
	if len(retries) != 1 {
		t.Fatalf("应调度 1 次孤儿重试，实际 %d 次", len(retries))
	}
	if retries[0].Delay != childRetryDelay {
		t.Errorf("重试延迟应为 %v，实际 %v", childRetryDelay, retries[0].Delay)
	}
	args, ok := retries[0].Payload.(*dto.ChildRetryArgs)
	if !ok {
		t.Fatalf("重试载荷类型不符: %T", retries[0].Payload)
	}
	if args.Attempt != 1 || len(args.Transactions) != 1 {
		t.Errorf("重试参数不符: attempt=%d txns=%d", args.Attempt, len(args.Transactions))
	}
}

func TestUpsertTransactions_OrphanResolvedOnRetry(t *testing.T) {
	env := newSyncTestEnv(t)
	ctx := context.Background()

	payloads := []dto.TransactionPayload{
		{ExternalID: 501, ExternalOrderID: 100, Kind: model.TransactionKindSale, Amount: 5000},
	}
	// 第一轮：孤儿
	if err := env.childSync.UpsertTransactions(ctx, env.org.ID, env.shop.ID, payloads, 0); err != nil {
		t.Fatalf("首轮投递失败: %v", err)
	}

	// 父订单随后到达
	if err := env.orderSync.UpsertOrders(ctx, env.org.ID, env.shop.ID, []dto.OrderPayload{sampleOrderPayload(100)}, 0); err != nil {
		t.Fatalf("订单 upsert 失败: %v", err)
	}

	// 重试轮：解析成功后写入
	if err := env.childSync.UpsertTransactions(ctx, env.org.ID, env.shop.ID, payloads, 1); err != nil {
		t.Fatalf("重试轮失败: %v", err)
	}
	var txnCount int64
	env.db.Model(&model.Transaction{}).Count(&txnCount)
	if txnCount != 1 {
		t.Errorf("重试后交易应写入 1 行，实际 %d 行", txnCount)
	}
}

func TestUpsertRefunds_RetryExhausted(t *testing.T) {
	env := newSyncTestEnv(t)
	ctx := context.Background()

	payloads := []dto.RefundPayload{
		{ExternalID: 601, ExternalOrderID: 999, Amount: 1000},
	}
	// 已到重试上限
	if err := env.childSync.UpsertRefunds(ctx, env.org.ID, env.shop.ID, payloads, childRetryMaxAttempts); err != nil {
		t.Fatalf("超限批次不应整体报错: %v", err)
	}
	if got := len(env.scheduler.callsOfType(model.TaskTypeChildSyncRetry)); got != 0 {
		t.Errorf("超过重试上限后不应再调度，实际 %d 次", got)
	}
}

func TestUpsertFulfillments_MixedBatch(t *testing.T) {
	env := newSyncTestEnv(t)
	ctx := context.Background()

	if err := env.orderSync.UpsertOrders(ctx, env.org.ID, env.shop.ID, []dto.OrderPayload{sampleOrderPayload(100)}, 0); err != nil {
		t.Fatalf("订单 upsert 失败: %v", err)
	}

	payloads := []dto.FulfillmentPayload{
		{ExternalID: 701, ExternalOrderID: 100, ShipmentStatus: model.ShipmentStatusInTransit, TrackingNumbers: []string{"TRK-1"}},
		{ExternalID: 702, ExternalOrderID: 999, ShipmentStatus: model.ShipmentStatusPending},
	}
	if err := env.childSync.UpsertFulfillments(ctx, env.org.ID, env.shop.ID, payloads, 0); err != nil {
		t.Fatalf("混合批次失败: %v", err)
	}

	// 可解析的写入，孤儿进入重试
	var ffmCount int64
	env.db.Model(&model.Fulfillment{}).Count(&ffmCount)
	if ffmCount != 1 {
		t.Errorf("应写入 1 条履约，实际 %d 条", ffmCount)
	}
	retries := env.scheduler.callsOfType(model.TaskTypeChildSyncRetry)
	if len(retries) != 1 {
		t.Fatalf("孤儿应调度 1 次重试，实际 %d 次", len(retries))
	}
	args := retries[0].Payload.(*dto.ChildRetryArgs)
	if len(args.Fulfillments) != 1 || args.Fulfillments[0].ExternalID != 702 {
		t.Errorf("重试批次应只含孤儿 702，实际 %+v", args.Fulfillments)
	}
}
