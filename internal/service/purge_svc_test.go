package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"

	"gorm.io/gorm"
)

// ==================== 批量删除引擎测试 ====================

type purgeTestEnv struct {
	db        *gorm.DB
	org       *model.Organization
	shop      *model.Shop
	scheduler *stubScheduler
	purge     *PurgeService
}

func newPurgeTestEnv(t *testing.T) *purgeTestEnv {
	db := setupSyncTestDB(t)
	org, shop := makeOrgAndShop(t, db)
	scheduler := &stubScheduler{}
	purge := NewPurgeService(
		repository.NewPurgeRepository(db),
		repository.NewShopRepository(db),
		repository.NewDashboardRepository(db),
		scheduler,
	)
	return &purgeTestEnv{db: db, org: org, shop: shop, scheduler: scheduler, purge: purge}
}

func (env *purgeTestEnv) seedOrders(t *testing.T, n int) {
	for i := 1; i <= n; i++ {
		order := &model.Order{
			OrgID:      env.org.ID,
			ShopID:     env.shop.ID,
			ExternalID: int64(100 + i),
		}
		if err := env.db.Create(order).Error; err != nil {
			t.Fatalf("造单失败: %v", err)
		}
	}
}

func TestClampBatchSize(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, purgeBatchDefault},
		{-5, purgeBatchDefault},
		{10000, purgeBatchMax},
		{300, 300},
	}
	for _, c := range cases {
		if got := clampBatchSize(c.in); got != c.want {
			t.Errorf("clampBatchSize(%d) = %d，期望 %d", c.in, got, c.want)
		}
	}
}

func TestStartPurge_SchedulesFirstPageClamped(t *testing.T) {
	env := newPurgeTestEnv(t)
	ctx := context.Background()

	scope := repository.PurgeScope{ShopID: env.shop.ID}
	if err := env.purge.StartPurge(ctx, "orders", scope, 10000); err != nil {
		t.Fatalf("启动删除链失败: %v", err)
	}

	calls := env.scheduler.callsOfType(model.TaskTypePurgeBatch)
	if len(calls) != 1 {
		t.Fatalf("应调度 1 页，实际 %d", len(calls))
	}
	args, ok := calls[0].Payload.(*dto.PurgeBatchArgs)
	if !ok {
		t.Fatalf("载荷类型错误: %T", calls[0].Payload)
	}
	if args.Cursor != 0 || args.BatchSize != purgeBatchMax {
		t.Errorf("首页参数错误: cursor=%d batch=%d", args.Cursor, args.BatchSize)
	}
}

func TestRunPurgeBatch_ChainsUntilEmpty(t *testing.T) {
	env := newPurgeTestEnv(t)
	ctx := context.Background()
	env.seedOrders(t, 3)

	args := &dto.PurgeBatchArgs{Table: "orders", ShopID: env.shop.ID, Cursor: 0, BatchSize: 2}
	if err := env.purge.RunPurgeBatch(ctx, args); err != nil {
		t.Fatalf("第一页删除失败: %v", err)
	}

	// 取满一整页：应自链下一页
	calls := env.scheduler.callsOfType(model.TaskTypePurgeBatch)
	if len(calls) != 1 {
		t.Fatalf("第一页后应调度续页，实际 %d 次", len(calls))
	}
	next := calls[0].Payload.(*dto.PurgeBatchArgs)
	if next.Cursor == 0 {
		t.Error("续页游标应前移")
	}

	if err := env.purge.RunPurgeBatch(ctx, next); err != nil {
		t.Fatalf("第二页删除失败: %v", err)
	}

	var remaining int64
	env.db.Unscoped().Model(&model.Order{}).Count(&remaining)
	if remaining != 0 {
		t.Errorf("删除链跑完后应无剩余，实际 %d 行", remaining)
	}
	// 第二页只删到 1 行，未取满一页，链应终止
	if got := len(env.scheduler.callsOfType(model.TaskTypePurgeBatch)); got != 1 {
		t.Errorf("链终止后不应再调度，调度总数 %d", got)
	}
}

func TestRunPurgeBatch_RejectsUnknownTable(t *testing.T) {
	env := newPurgeTestEnv(t)
	args := &dto.PurgeBatchArgs{Table: "sys_users", ShopID: env.shop.ID, BatchSize: 10}
	if err := env.purge.RunPurgeBatch(context.Background(), args); err == nil {
		t.Fatal("未注册的表应拒绝删除")
	}
}

func TestRunShopDeleteCheck_ReschedulesWhileDataRemains(t *testing.T) {
	env := newPurgeTestEnv(t)
	ctx := context.Background()
	env.seedOrders(t, 1)

	if err := env.purge.RunShopDeleteCheck(ctx, &dto.ShopDeleteArgs{ShopID: env.shop.ID, Attempt: 0}); err != nil {
		t.Fatalf("空检查失败: %v", err)
	}

	calls := env.scheduler.callsOfType(model.TaskTypeShopDeleteCheck)
	if len(calls) != 1 {
		t.Fatalf("数据未清空时应重试，实际调度 %d 次", len(calls))
	}
	next := calls[0].Payload.(*dto.ShopDeleteArgs)
	if next.Attempt != 1 {
		t.Errorf("重试应递增尝试次数，实际 %d", next.Attempt)
	}
	if calls[0].Delay != 2*time.Second {
		t.Errorf("第 1 次重试退避应为 2s，实际 %v", calls[0].Delay)
	}

	var shopCount int64
	env.db.Unscoped().Model(&model.Shop{}).Count(&shopCount)
	if shopCount != 1 {
		t.Error("数据未清空时店铺行不应被删除")
	}
}

func TestRunShopDeleteCheck_DeletesShopWhenEmpty(t *testing.T) {
	env := newPurgeTestEnv(t)
	ctx := context.Background()

	if err := env.purge.RunShopDeleteCheck(ctx, &dto.ShopDeleteArgs{ShopID: env.shop.ID, Attempt: 2}); err != nil {
		t.Fatalf("空检查失败: %v", err)
	}

	var shopCount int64
	env.db.Unscoped().Model(&model.Shop{}).Count(&shopCount)
	if shopCount != 0 {
		t.Error("业务数据清空后店铺行应被硬删除")
	}
	if got := len(env.scheduler.callsOfType(model.TaskTypeShopDeleteCheck)); got != 0 {
		t.Errorf("删除完成后不应再调度，实际 %d 次", got)
	}
}

func TestRunShopDeleteCheck_GivesUpAfterMaxAttempts(t *testing.T) {
	env := newPurgeTestEnv(t)
	ctx := context.Background()
	env.seedOrders(t, 1)

	if err := env.purge.RunShopDeleteCheck(ctx, &dto.ShopDeleteArgs{ShopID: env.shop.ID, Attempt: shopDeleteMaxAttempts}); err != nil {
		t.Fatalf("空检查失败: %v", err)
	}

	if got := len(env.scheduler.callsOfType(model.TaskTypeShopDeleteCheck)); got != 0 {
		t.Errorf("重试耗尽后应放弃，实际仍调度 %d 次", got)
	}
	var shopCount int64
	env.db.Unscoped().Model(&model.Shop{}).Count(&shopCount)
	if shopCount != 1 {
		t.Error("放弃后店铺行应保留待人工处理")
	}
}

func TestShopDeleteBackoff_Capped(t *testing.T) {
	if got := shopDeleteBackoff(0); got != time.Second {
		t.Errorf("首次退避应为 1s，实际 %v", got)
	}
	if got := shopDeleteBackoff(3); got != 8*time.Second {
		t.Errorf("第 3 次退避应为 8s，实际 %v", got)
	}
	if got := shopDeleteBackoff(10); got != shopDeleteBackoffCap {
		t.Errorf("退避应封顶 60s，实际 %v", got)
	}
}

func TestRunDashboardPurge_RecreatesDefault(t *testing.T) {
	env := newPurgeTestEnv(t)
	ctx := context.Background()

	owner := &model.SysUser{Username: "owner", Password: "x"}
	if err := env.db.Create(owner).Error; err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	for i := 0; i < 2; i++ {
		dash := &model.Dashboard{OrgID: env.org.ID, OwnerUserID: owner.ID, Name: fmt.Sprintf("面板 %d", i)}
		if err := env.db.Create(dash).Error; err != nil {
			t.Fatalf("创建仪表盘失败: %v", err)
		}
	}

	args := &dto.DashboardPurgeArgs{OrgID: env.org.ID, OwnerUserID: owner.ID, BatchSize: purgeBatchDefault, Recreate: true}
	if err := env.purge.RunDashboardPurge(ctx, args); err != nil {
		t.Fatalf("仪表盘删除链失败: %v", err)
	}

	var dashboards []model.Dashboard
	env.db.Where("org_id = ?", env.org.ID).Find(&dashboards)
	if len(dashboards) != 1 {
		t.Fatalf("删除后应只剩重建的默认仪表盘，实际 %d 个", len(dashboards))
	}
	d := dashboards[0]
	if !d.IsDefault || d.Name != "Default" || d.OwnerUserID != owner.ID {
		t.Errorf("重建的默认仪表盘字段错误: %+v", d)
	}

	// 任务重投：已有默认仪表盘时不重复创建
	retry := &dto.DashboardPurgeArgs{OrgID: env.org.ID, OwnerUserID: owner.ID, Cursor: d.ID, BatchSize: purgeBatchDefault, Recreate: true}
	if err := env.purge.RunDashboardPurge(ctx, retry); err != nil {
		t.Fatalf("重投仪表盘删除链失败: %v", err)
	}
	var count int64
	env.db.Model(&model.Dashboard{}).Where("org_id = ?", env.org.ID).Count(&count)
	if count != 1 {
		t.Errorf("重投后默认仪表盘不应重复，实际 %d 个", count)
	}
}

func TestRunDashboardPurge_NoRecreateWhenDisabled(t *testing.T) {
	env := newPurgeTestEnv(t)
	ctx := context.Background()

	dash := &model.Dashboard{OrgID: env.org.ID, Name: "旧面板"}
	if err := env.db.Create(dash).Error; err != nil {
		t.Fatalf("创建仪表盘失败: %v", err)
	}

	args := &dto.DashboardPurgeArgs{OrgID: env.org.ID, BatchSize: purgeBatchDefault, Recreate: false}
	if err := env.purge.RunDashboardPurge(ctx, args); err != nil {
		t.Fatalf("仪表盘删除链失败: %v", err)
	}

	var count int64
	env.db.Model(&model.Dashboard{}).Where("org_id = ?", env.org.ID).Count(&count)
	if count != 0 {
		t.Errorf("recreate 关闭时不应重建，实际 %d 个", count)
	}
}
