package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"
)

// ==================== 公共常量与错误 ====================

// lookupChunkSize 自然键批量查找的分块上限
// 受宿主单次任务的读写预算约束，是硬性要求而非调优项
const lookupChunkSize = 200

// ErrNoActiveShop 组织无可解析的活跃店铺，整批中止
var ErrNoActiveShop = errors.New("no active shop for organization")

// ==================== TaskScheduler 延迟任务调度 ====================

// TaskScheduler 延迟任务调度接口（实现在 internal/task）
// 所有"等待/扇出/重试"都通过它落为持久化任务行，进程重启不丢失
type TaskScheduler interface {
	// Schedule 延迟 delay 后执行一次 taskType，payload 会被序列化进任务行
	Schedule(ctx context.Context, delay time.Duration, taskType string, payload interface{}) error
	// ScheduleKeyed 带去重键调度：同键的新触发把执行时间顺延（防抖）
	ScheduleKeyed(ctx context.Context, key string, delay time.Duration, taskType string, payload interface{}) error
}

// ==================== 工具函数 ====================

// chunkInt64 把 id 列表按 size 分块
func chunkInt64(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = lookupChunkSize
	}
	var chunks [][]int64
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// orgLocalDate 把平台时间戳折算为组织本地日历日期
// 组织配置了时区则使用之，否则退回平台默认（UTC）
func orgLocalDate(org *model.Organization, t time.Time) string {
	loc := time.UTC
	if org != nil && org.Timezone != "" {
		if l, err := time.LoadLocation(org.Timezone); err == nil {
			loc = l
		}
	}
	return t.In(loc).Format("2006-01-02")
}

// resolveShop 解析本批次的目标店铺
// 显式传入的 shopID 优先（避免初次同步与 webhook 并发时的查找竞态），
// 否则取组织当前活跃店铺；都没有时返回 ErrNoActiveShop
func resolveShop(ctx context.Context, shopRepo repository.ShopRepository, orgID, shopID int64) (*model.Shop, error) {
	if shopID > 0 {
		shop, err := shopRepo.GetByID(ctx, shopID)
		if err != nil {
			return nil, fmt.Errorf("查找店铺失败: %w", err)
		}
		return shop, nil
	}
	shop, err := shopRepo.GetActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("查找活跃店铺失败: %w", err)
	}
	if shop == nil {
		return nil, ErrNoActiveShop
	}
	return shop, nil
}
