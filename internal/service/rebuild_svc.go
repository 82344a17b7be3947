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

// ==================== RebuildService 日分析重建调度 ====================

// 防抖窗口：同一 (组织, 日期) 在窗口内的重复触发合并为一次，
// 新触发把执行时间顺延到最新触发后一个完整窗口
const rebuildDebounce = 10 * time.Second

// RebuildService 日分析重建触发服务
// 触发落为带去重键的持久化任务，到期后由任务执行器调用分析服务
type RebuildService struct {
	orgRepo   repository.OrganizationRepository
	scheduler TaskScheduler
	analytics AnalyticsRebuilder
}

// NewRebuildService 创建重建调度服务
func NewRebuildService(orgRepo repository.OrganizationRepository, scheduler TaskScheduler, analytics AnalyticsRebuilder) *RebuildService {
	return &RebuildService{orgRepo: orgRepo, scheduler: scheduler, analytics: analytics}
}

// LocalDate 把平台时间戳折算为组织本地日历日期
func (s *RebuildService) LocalDate(ctx context.Context, orgID int64, t time.Time) string {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		log.Printf("[Rebuild] 查找组织 %d 失败，按 UTC 折算日期: %v", orgID, err)
		org = nil
	}
	return orgLocalDate(org, t)
}

// Trigger 为每个受影响日期调度一次防抖重建
func (s *RebuildService) Trigger(ctx context.Context, orgID int64, dates []string, scope string) error {
	for _, date := range dates {
		key := fmt.Sprintf("rebuild:%d:%s", orgID, date)
		args := &dto.RebuildArgs{OrgID: orgID, Date: date, Scope: scope}
		if err := s.scheduler.ScheduleKeyed(ctx, key, rebuildDebounce, model.TaskTypeAnalyticsRebuild, args); err != nil {
			return fmt.Errorf("调度重建任务 %s 失败: %w", key, err)
		}
	}
	return nil
}

// Fire 任务到期执行：调用分析服务重建该日聚合
func (s *RebuildService) Fire(ctx context.Context, args *dto.RebuildArgs) error {
	if err := s.analytics.RebuildDaily(ctx, args.OrgID, args.Date, args.Scope); err != nil {
		return fmt.Errorf("组织 %d 日期 %s 重建执行失败: %w", args.OrgID, args.Date, err)
	}
	log.Printf("[Rebuild] 组织 %d 日期 %s 重建完成（来源 %s）", args.OrgID, args.Date, args.Scope)
	return nil
}
