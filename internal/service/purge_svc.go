package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"
)

// ==================== PurgeService 批量删除引擎 ====================

const (
	// 每页删除量：默认与上限
	purgeBatchDefault = 200
	purgeBatchMax     = 500

	// 店铺空检查：最多重试次数，退避上限 60s
	shopDeleteMaxAttempts = 5
	shopDeleteBackoffCap  = 60 * time.Second
)

// PurgeService 批量删除引擎
// 大表不做单条 DELETE 全表扫描，按游标分页删除并自链下一页任务，
// 每页独立提交，进程重启后从任务行续跑
type PurgeService struct {
	purgeRepo     repository.PurgeRepository
	shopRepo      repository.ShopRepository
	dashboardRepo repository.DashboardRepository
	scheduler     TaskScheduler
}

// NewPurgeService 创建批量删除引擎
func NewPurgeService(
	purgeRepo repository.PurgeRepository,
	shopRepo repository.ShopRepository,
	dashboardRepo repository.DashboardRepository,
	scheduler TaskScheduler,
) *PurgeService {
	return &PurgeService{
		purgeRepo:     purgeRepo,
		shopRepo:      shopRepo,
		dashboardRepo: dashboardRepo,
		scheduler:     scheduler,
	}
}

// clampBatchSize 归一化每页删除量：non-positive 取默认值，超限压到上限
func clampBatchSize(size int) int {
	if size <= 0 {
		return purgeBatchDefault
	}
	if size > purgeBatchMax {
		return purgeBatchMax
	}
	return size
}

// StartPurge 启动某表的删除链（第一页立即调度）
func (s *PurgeService) StartPurge(ctx context.Context, table string, scope repository.PurgeScope, batchSize int) error {
	args := &dto.PurgeBatchArgs{
		Table:     table,
		OrgID:     scope.OrgID,
		ShopID:    scope.ShopID,
		Cursor:    0,
		BatchSize: clampBatchSize(batchSize),
	}
	if err := s.scheduler.Schedule(ctx, 0, model.TaskTypePurgeBatch, args); err != nil {
		return fmt.Errorf("调度 %s 删除链失败: %w", table, err)
	}
	return nil
}

// RunPurgeBatch 执行删除链中的一页，还有剩余则调度下一页
func (s *PurgeService) RunPurgeBatch(ctx context.Context, args *dto.PurgeBatchArgs) error {
	scope := repository.PurgeScope{OrgID: args.OrgID, ShopID: args.ShopID}
	limit := clampBatchSize(args.BatchSize)

	deleted, nextCursor, hasMore, err := s.purgeRepo.DeletePage(ctx, args.Table, scope, args.Cursor, limit)
	if err != nil {
		return fmt.Errorf("表 %s 删除一页失败: %w", args.Table, err)
	}
	log.Printf("[Purge] 表 %s 删除 %d 行（游标 %d → %d）", args.Table, deleted, args.Cursor, nextCursor)

	if !hasMore {
		return nil
	}
	next := &dto.PurgeBatchArgs{
		Table:     args.Table,
		OrgID:     args.OrgID,
		ShopID:    args.ShopID,
		Cursor:    nextCursor,
		BatchSize: limit,
	}
	if err := s.scheduler.Schedule(ctx, 0, model.TaskTypePurgeBatch, next); err != nil {
		return fmt.Errorf("调度 %s 删除链下一页失败: %w", args.Table, err)
	}
	return nil
}

// ==================== 店铺空检查删除 ====================

// shopEmptyCheckTables 店铺硬删除前必须为空的表
var shopEmptyCheckTables = []string{"orders", "products", "customers", "sessions"}

// ScheduleShopDeleteCheck 调度一次店铺空检查（卸载清理扇出后调用）
func (s *PurgeService) ScheduleShopDeleteCheck(ctx context.Context, shopID int64) error {
	args := &dto.ShopDeleteArgs{ShopID: shopID, Attempt: 0}
	if err := s.scheduler.Schedule(ctx, shopDeleteBackoff(0), model.TaskTypeShopDeleteCheck, args); err != nil {
		return fmt.Errorf("调度店铺 %d 空检查失败: %w", shopID, err)
	}
	return nil
}

// shopDeleteBackoff 指数退避：2^attempt 秒，封顶 60s
func shopDeleteBackoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > shopDeleteBackoffCap {
		return shopDeleteBackoffCap
	}
	return d
}

// RunShopDeleteCheck 业务数据清空后才硬删除店铺行
// 删除链尚未跑完时按指数退避重试，超过上限记告警并放弃（店铺行留待人工处理）
func (s *PurgeService) RunShopDeleteCheck(ctx context.Context, args *dto.ShopDeleteArgs) error {
	scope := repository.PurgeScope{ShopID: args.ShopID}
	for _, table := range shopEmptyCheckTables {
		count, err := s.purgeRepo.CountScoped(ctx, table, scope)
		if err != nil {
			return fmt.Errorf("店铺 %d 空检查表 %s 失败: %w", args.ShopID, table, err)
		}
		if count > 0 {
			if args.Attempt >= shopDeleteMaxAttempts {
				log.Printf("[Purge] 店铺 %d 空检查重试 %d 次后仍有残留（表 %s 剩 %d 行），放弃删除",
					args.ShopID, args.Attempt, table, count)
				return nil
			}
			next := &dto.ShopDeleteArgs{ShopID: args.ShopID, Attempt: args.Attempt + 1}
			if err := s.scheduler.Schedule(ctx, shopDeleteBackoff(next.Attempt), model.TaskTypeShopDeleteCheck, next); err != nil {
				return fmt.Errorf("调度店铺 %d 空检查重试失败: %w", args.ShopID, err)
			}
			return nil
		}
	}

	if err := s.shopRepo.DeleteHard(ctx, args.ShopID); err != nil {
		return fmt.Errorf("硬删除店铺 %d 失败: %w", args.ShopID, err)
	}
	log.Printf("[Purge] 店铺 %d 业务数据已清空，店铺行删除完成", args.ShopID)
	return nil
}

// ==================== 仪表盘删除链 ====================

// StartDashboardPurge 启动组织仪表盘删除链，跑完后为 ownerUserID 重建默认仪表盘
func (s *PurgeService) StartDashboardPurge(ctx context.Context, orgID, ownerUserID int64, recreate bool) error {
	args := &dto.DashboardPurgeArgs{
		OrgID:       orgID,
		OwnerUserID: ownerUserID,
		Cursor:      0,
		BatchSize:   purgeBatchDefault,
		Recreate:    recreate,
	}
	if err := s.scheduler.Schedule(ctx, 0, model.TaskTypeDashboardPurge, args); err != nil {
		return fmt.Errorf("调度组织 %d 仪表盘删除链失败: %w", orgID, err)
	}
	return nil
}

// RunDashboardPurge 执行仪表盘删除链的一页；链跑完且需要时重建默认仪表盘
func (s *PurgeService) RunDashboardPurge(ctx context.Context, args *dto.DashboardPurgeArgs) error {
	scope := repository.PurgeScope{OrgID: args.OrgID}
	limit := clampBatchSize(args.BatchSize)

	deleted, nextCursor, hasMore, err := s.purgeRepo.DeletePage(ctx, "dashboards", scope, args.Cursor, limit)
	if err != nil {
		return fmt.Errorf("组织 %d 仪表盘删除一页失败: %w", args.OrgID, err)
	}
	log.Printf("[Purge] 组织 %d 仪表盘删除 %d 行", args.OrgID, deleted)

	if hasMore {
		next := &dto.DashboardPurgeArgs{
			OrgID:       args.OrgID,
			OwnerUserID: args.OwnerUserID,
			Cursor:      nextCursor,
			BatchSize:   limit,
			Recreate:    args.Recreate,
		}
		if err := s.scheduler.Schedule(ctx, 0, model.TaskTypeDashboardPurge, next); err != nil {
			return fmt.Errorf("调度组织 %d 仪表盘删除链下一页失败: %w", args.OrgID, err)
		}
		return nil
	}

	if !args.Recreate {
		return nil
	}
	hasDefault, err := s.dashboardRepo.HasDefault(ctx, args.OrgID)
	if err != nil {
		return fmt.Errorf("组织 %d 默认仪表盘检查失败: %w", args.OrgID, err)
	}
	if hasDefault {
		return nil
	}
	dashboard := &model.Dashboard{
		OrgID:       args.OrgID,
		OwnerUserID: args.OwnerUserID,
		Name:        "Default",
		IsDefault:   true,
	}
	if err := s.dashboardRepo.Create(ctx, dashboard); err != nil {
		return fmt.Errorf("组织 %d 重建默认仪表盘失败: %w", args.OrgID, err)
	}
	log.Printf("[Purge] 组织 %d 默认仪表盘已重建", args.OrgID)
	return nil
}
