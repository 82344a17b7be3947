package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"
	"shopsync_v1_202608/internal/service"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ==================== 延迟任务测试 ====================

func setupTaskTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Organization{},
		&model.Dashboard{},
		&model.Shop{},
		&model.Order{},
		&model.ScheduledTask{},
	); err != nil {
		t.Fatalf("自动建表失败: %v", err)
	}
	return db
}

func TestTaskQueue_ScheduleInsertsPendingRow(t *testing.T) {
	db := setupTaskTestDB(t)
	queue := NewTaskQueue(repository.NewScheduledTaskRepository(db))
	ctx := context.Background()

	before := time.Now()
	if err := queue.Schedule(ctx, 5*time.Second, model.TaskTypePurgeBatch, map[string]interface{}{"table": "orders"}); err != nil {
		t.Fatalf("入队失败: %v", err)
	}

	var task model.ScheduledTask
	if err := db.First(&task).Error; err != nil {
		t.Fatalf("任务行未写入: %v", err)
	}
	if task.Status != model.TaskStatusPending || task.TaskType != model.TaskTypePurgeBatch {
		t.Errorf("任务行字段错误: status=%s type=%s", task.Status, task.TaskType)
	}
	if task.RunAt.Before(before.Add(4 * time.Second)) {
		t.Errorf("run_at 应在约 5s 后，实际 %v", task.RunAt.Sub(before))
	}
	if task.DedupeKey != nil {
		t.Error("普通入队不应带去重键")
	}
}

func TestTaskQueue_ScheduleKeyedDebounces(t *testing.T) {
	db := setupTaskTestDB(t)
	queue := NewTaskQueue(repository.NewScheduledTaskRepository(db))
	ctx := context.Background()

	key := "rebuild:1:2026-03-15"
	if err := queue.ScheduleKeyed(ctx, key, 10*time.Second, model.TaskTypeAnalyticsRebuild, map[string]interface{}{"date": "2026-03-15"}); err != nil {
		t.Fatalf("首次入队失败: %v", err)
	}
	var first model.ScheduledTask
	db.First(&first)

	// 窗口内重复触发：同键合并，run_at 顺延
	time.Sleep(20 * time.Millisecond)
	if err := queue.ScheduleKeyed(ctx, key, 10*time.Second, model.TaskTypeAnalyticsRebuild, map[string]interface{}{"date": "2026-03-15"}); err != nil {
		t.Fatalf("重复入队失败: %v", err)
	}

	var count int64
	db.Model(&model.ScheduledTask{}).Count(&count)
	if count != 1 {
		t.Fatalf("同键任务应合并为 1 行，实际 %d", count)
	}
	var merged model.ScheduledTask
	db.First(&merged)
	if !merged.RunAt.After(first.RunAt) {
		t.Errorf("run_at 应顺延: %v -> %v", first.RunAt, merged.RunAt)
	}

	// 不同键互不影响
	if err := queue.ScheduleKeyed(ctx, "rebuild:1:2026-03-16", 10*time.Second, model.TaskTypeAnalyticsRebuild, nil); err != nil {
		t.Fatalf("另一键入队失败: %v", err)
	}
	db.Model(&model.ScheduledTask{}).Count(&count)
	if count != 2 {
		t.Errorf("不同键应各占一行，实际 %d", count)
	}
}

func TestTaskRunner_ExecutesDueTask(t *testing.T) {
	db := setupTaskTestDB(t)
	taskRepo := repository.NewScheduledTaskRepository(db)
	queue := NewTaskQueue(taskRepo)
	runner := NewTaskRunner(taskRepo)
	ctx := context.Background()

	var ran int
	runner.Register(model.TaskTypeAnalyticsRebuild, func(ctx context.Context, task *model.ScheduledTask) error {
		ran++
		return nil
	})

	if err := queue.Schedule(ctx, 0, model.TaskTypeAnalyticsRebuild, nil); err != nil {
		t.Fatalf("入队失败: %v", err)
	}
	runner.tick(ctx)

	if ran != 1 {
		t.Fatalf("处理器应执行 1 次，实际 %d", ran)
	}
	var task model.ScheduledTask
	db.First(&task)
	if task.Status != model.TaskStatusDone {
		t.Errorf("任务应标记完成，实际 %s", task.Status)
	}
	if task.Attempt != 1 {
		t.Errorf("认领应递增 attempt，实际 %d", task.Attempt)
	}

	// 已完成的任务不会被再次认领
	runner.tick(ctx)
	if ran != 1 {
		t.Errorf("已完成任务被重复执行: %d 次", ran)
	}
}

func TestTaskRunner_FutureTaskNotClaimed(t *testing.T) {
	db := setupTaskTestDB(t)
	taskRepo := repository.NewScheduledTaskRepository(db)
	queue := NewTaskQueue(taskRepo)
	runner := NewTaskRunner(taskRepo)
	ctx := context.Background()

	var ran int
	runner.Register(model.TaskTypeShopDeleteCheck, func(ctx context.Context, task *model.ScheduledTask) error {
		ran++
		return nil
	})

	if err := queue.Schedule(ctx, time.Hour, model.TaskTypeShopDeleteCheck, nil); err != nil {
		t.Fatalf("入队失败: %v", err)
	}
	runner.tick(ctx)

	if ran != 0 {
		t.Error("未到期任务不应执行")
	}
	var task model.ScheduledTask
	db.First(&task)
	if task.Status != model.TaskStatusPending {
		t.Errorf("未到期任务状态应保持 pending，实际 %s", task.Status)
	}
}

func TestClaimDue_SkipsTaskDebouncedMidClaim(t *testing.T) {
	db := setupTaskTestDB(t)
	taskRepo := repository.NewScheduledTaskRepository(db)
	queue := NewTaskQueue(taskRepo)
	ctx := context.Background()

	key := "rebuild:1:2026-03-15"
	if err := queue.ScheduleKeyed(ctx, key, 0, model.TaskTypeAnalyticsRebuild, map[string]interface{}{"date": "2026-03-15"}); err != nil {
		t.Fatalf("入队失败: %v", err)
	}

	// 模拟查出到期任务之后、认领之前，keyed 去重把 run_at 顺延到窗口之外
	extended := false
	err := db.Callback().Query().After("gorm:query").Register("debounce_between_find_and_claim", func(tx *gorm.DB) {
		if extended {
			return
		}
		if _, ok := tx.Statement.Dest.(*[]model.ScheduledTask); !ok {
			return
		}
		extended = true
		db.Session(&gorm.Session{NewDB: true}).Model(&model.ScheduledTask{}).
			Where("dedupe_key = ?", key).
			Update("run_at", time.Now().Add(10*time.Second))
	})
	if err != nil {
		t.Fatalf("注册回调失败: %v", err)
	}
	defer db.Callback().Query().Remove("debounce_between_find_and_claim")

	claimed, err := taskRepo.ClaimDue(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("认领失败: %v", err)
	}
	if len(claimed) != 0 {
		t.Errorf("顺延后的任务不应被认领，实际认领 %d 个", len(claimed))
	}

	var task model.ScheduledTask
	db.First(&task)
	if task.Status != model.TaskStatusPending || task.Attempt != 0 {
		t.Errorf("顺延后的任务应保持 pending 且不计尝试次数: status=%s attempt=%d", task.Status, task.Attempt)
	}
}

func TestTaskRunner_HandlerErrorMarksFailed(t *testing.T) {
	db := setupTaskTestDB(t)
	taskRepo := repository.NewScheduledTaskRepository(db)
	queue := NewTaskQueue(taskRepo)
	runner := NewTaskRunner(taskRepo)
	ctx := context.Background()

	runner.Register(model.TaskTypePurgeBatch, func(ctx context.Context, task *model.ScheduledTask) error {
		return errors.New("下游不可用")
	})

	if err := queue.Schedule(ctx, 0, model.TaskTypePurgeBatch, nil); err != nil {
		t.Fatalf("入队失败: %v", err)
	}
	runner.tick(ctx)

	var task model.ScheduledTask
	db.First(&task)
	if task.Status != model.TaskStatusFailed {
		t.Errorf("任务应标记失败，实际 %s", task.Status)
	}
	if task.LastError != "下游不可用" {
		t.Errorf("失败原因应回写，实际 %q", task.LastError)
	}
}

func TestTaskRunner_MissingHandlerMarksFailed(t *testing.T) {
	db := setupTaskTestDB(t)
	taskRepo := repository.NewScheduledTaskRepository(db)
	queue := NewTaskQueue(taskRepo)
	runner := NewTaskRunner(taskRepo)
	ctx := context.Background()

	if err := queue.Schedule(ctx, 0, "unknown_type", nil); err != nil {
		t.Fatalf("入队失败: %v", err)
	}
	runner.tick(ctx)

	var task model.ScheduledTask
	db.First(&task)
	if task.Status != model.TaskStatusFailed || task.LastError == "" {
		t.Errorf("无处理器的任务应标记失败: status=%s err=%q", task.Status, task.LastError)
	}
}

func TestTaskRunner_RunningTaskNotReclaimed(t *testing.T) {
	db := setupTaskTestDB(t)
	taskRepo := repository.NewScheduledTaskRepository(db)
	runner := NewTaskRunner(taskRepo)
	ctx := context.Background()

	var ran int
	runner.Register(model.TaskTypePurgeBatch, func(ctx context.Context, task *model.ScheduledTask) error {
		ran++
		return nil
	})

	// 模拟另一实例已认领的任务
	running := &model.ScheduledTask{
		TaskType: model.TaskTypePurgeBatch,
		RunAt:    time.Now().Add(-time.Second),
		Status:   model.TaskStatusRunning,
	}
	if err := db.Create(running).Error; err != nil {
		t.Fatalf("造任务行失败: %v", err)
	}
	runner.tick(ctx)

	if ran != 0 {
		t.Error("running 状态的任务不应被再次认领")
	}
}

// 端到端：删除链任务经队列入库、由执行器分发到删除引擎并自链下一页
func TestPurgeChain_EndToEnd(t *testing.T) {
	db := setupTaskTestDB(t)
	taskRepo := repository.NewScheduledTaskRepository(db)
	queue := NewTaskQueue(taskRepo)
	runner := NewTaskRunner(taskRepo)
	ctx := context.Background()

	org := &model.Organization{Name: "端到端组织"}
	if err := db.Create(org).Error; err != nil {
		t.Fatalf("创建组织失败: %v", err)
	}
	shop := &model.Shop{OrgID: org.ID, PlatformDomain: "e2e.example.com", Status: model.ShopStatusActive}
	if err := db.Create(shop).Error; err != nil {
		t.Fatalf("创建店铺失败: %v", err)
	}
	for i := 1; i <= 5; i++ {
		order := &model.Order{OrgID: org.ID, ShopID: shop.ID, ExternalID: int64(i)}
		if err := db.Create(order).Error; err != nil {
			t.Fatalf("造单失败: %v", err)
		}
	}

	purge := service.NewPurgeService(
		repository.NewPurgeRepository(db),
		repository.NewShopRepository(db),
		repository.NewDashboardRepository(db),
		queue,
	)
	RegisterHandlers(runner, &HandlerDeps{Purge: purge})

	scope := repository.PurgeScope{ShopID: shop.ID}
	if err := purge.StartPurge(ctx, "orders", scope, 2); err != nil {
		t.Fatalf("启动删除链失败: %v", err)
	}

	// 每轮 tick 执行一页并把下一页入队，5 行 / 每页 2 行需要 3 轮
	for i := 0; i < 4; i++ {
		runner.tick(ctx)
	}

	var remaining int64
	db.Unscoped().Model(&model.Order{}).Count(&remaining)
	if remaining != 0 {
		t.Errorf("删除链跑完后应无剩余订单，实际 %d", remaining)
	}
	var pending int64
	db.Model(&model.ScheduledTask{}).Where("status = ?", model.TaskStatusPending).Count(&pending)
	if pending != 0 {
		t.Errorf("链终止后不应有待执行任务，实际 %d", pending)
	}

	// 链共三页，每页一个任务且全部执行完
	chain, err := taskRepo.ListByType(ctx, model.TaskTypePurgeBatch)
	if err != nil {
		t.Fatalf("查找删除链任务失败: %v", err)
	}
	if len(chain) != 3 {
		t.Errorf("删除链应由 3 个任务组成，实际 %d", len(chain))
	}
	for _, task := range chain {
		if task.Status != model.TaskStatusDone {
			t.Errorf("任务 %d 应为 done，实际 %s", task.ID, task.Status)
		}
	}
}
