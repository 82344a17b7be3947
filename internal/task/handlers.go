package task

import (
	"context"
	"encoding/json"
	"fmt"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/service"
)

// ==================== 任务处理器注册 ====================

// HandlerDeps 任务处理器依赖的服务
type HandlerDeps struct {
	ChildSync *service.ChildSyncService
	Rebuild   *service.RebuildService
	Purge     *service.PurgeService
}

// RegisterHandlers 把全部任务类型接到对应的服务入口
func RegisterHandlers(runner *TaskRunner, deps *HandlerDeps) {
	runner.Register(model.TaskTypeChildSyncRetry, func(ctx context.Context, task *model.ScheduledTask) error {
		var args dto.ChildRetryArgs
		if err := json.Unmarshal(task.Payload, &args); err != nil {
			return fmt.Errorf("解析孤儿重试载荷失败: %w", err)
		}
		switch args.Kind {
		case dto.ChildKindTransaction:
			return deps.ChildSync.UpsertTransactions(ctx, args.OrgID, args.ShopID, args.Transactions, args.Attempt)
		case dto.ChildKindRefund:
			return deps.ChildSync.UpsertRefunds(ctx, args.OrgID, args.ShopID, args.Refunds, args.Attempt)
		case dto.ChildKindFulfillment:
			return deps.ChildSync.UpsertFulfillments(ctx, args.OrgID, args.ShopID, args.Fulfillments, args.Attempt)
		default:
			return fmt.Errorf("未知的子记录类型 %s", args.Kind)
		}
	})

	runner.Register(model.TaskTypeAnalyticsRebuild, func(ctx context.Context, task *model.ScheduledTask) error {
		var args dto.RebuildArgs
		if err := json.Unmarshal(task.Payload, &args); err != nil {
			return fmt.Errorf("解析重建载荷失败: %w", err)
		}
		return deps.Rebuild.Fire(ctx, &args)
	})

	runner.Register(model.TaskTypePurgeBatch, func(ctx context.Context, task *model.ScheduledTask) error {
		var args dto.PurgeBatchArgs
		if err := json.Unmarshal(task.Payload, &args); err != nil {
			return fmt.Errorf("解析删除链载荷失败: %w", err)
		}
		return deps.Purge.RunPurgeBatch(ctx, &args)
	})

	runner.Register(model.TaskTypeShopDeleteCheck, func(ctx context.Context, task *model.ScheduledTask) error {
		var args dto.ShopDeleteArgs
		if err := json.Unmarshal(task.Payload, &args); err != nil {
			return fmt.Errorf("解析店铺空检查载荷失败: %w", err)
		}
		return deps.Purge.RunShopDeleteCheck(ctx, &args)
	})

	runner.Register(model.TaskTypeDashboardPurge, func(ctx context.Context, task *model.ScheduledTask) error {
		var args dto.DashboardPurgeArgs
		if err := json.Unmarshal(task.Payload, &args); err != nil {
			return fmt.Errorf("解析仪表盘删除链载荷失败: %w", err)
		}
		return deps.Purge.RunDashboardPurge(ctx, &args)
	})
}
