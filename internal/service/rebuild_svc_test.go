package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/model"
)

// ==================== 日分析重建调度测试 ====================

func TestRebuildTrigger_KeyedPerOrgAndDate(t *testing.T) {
	env := newSyncTestEnv(t)
	ctx := context.Background()

	dates := []string{"2026-03-15", "2026-03-16"}
	if err := env.rebuild.Trigger(ctx, env.org.ID, dates, "order_sync"); err != nil {
		t.Fatalf("触发重建失败: %v", err)
	}

	calls := env.scheduler.callsOfType(model.TaskTypeAnalyticsRebuild)
	if len(calls) != 2 {
		t.Fatalf("每个日期应各调度一次，实际 %d", len(calls))
	}
	for i, date := range dates {
		wantKey := fmt.Sprintf("rebuild:%d:%s", env.org.ID, date)
		if calls[i].Key != wantKey {
			t.Errorf("去重键错误: 期望 %s 实际 %s", wantKey, calls[i].Key)
		}
		if calls[i].Delay != rebuildDebounce {
			t.Errorf("防抖窗口错误: %v", calls[i].Delay)
		}
		args, ok := calls[i].Payload.(*dto.RebuildArgs)
		if !ok {
			t.Fatalf("载荷类型错误: %T", calls[i].Payload)
		}
		if args.OrgID != env.org.ID || args.Date != date || args.Scope != "order_sync" {
			t.Errorf("载荷内容错误: %+v", args)
		}
	}
}

func TestRebuildTrigger_SameDateReusesKey(t *testing.T) {
	env := newSyncTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := env.rebuild.Trigger(ctx, env.org.ID, []string{"2026-03-15"}, "order_sync"); err != nil {
			t.Fatalf("触发重建失败: %v", err)
		}
	}

	// 调度层按键合并，服务层只负责每次都用同一个键
	calls := env.scheduler.callsOfType(model.TaskTypeAnalyticsRebuild)
	if len(calls) != 3 {
		t.Fatalf("应调度 3 次，实际 %d", len(calls))
	}
	key := calls[0].Key
	for _, c := range calls[1:] {
		if c.Key != key {
			t.Errorf("同一 (组织, 日期) 的去重键应一致: %s vs %s", key, c.Key)
		}
	}
}

func TestRebuildLocalDate_OrgTimezone(t *testing.T) {
	env := newSyncTestEnv(t)
	ctx := context.Background()

	// UTC 的 2026-03-16 02:00 在纽约还是 3 月 15 日
	if err := env.db.Model(&model.Organization{}).Where("id = ?", env.org.ID).
		Update("timezone", "America/New_York").Error; err != nil {
		t.Fatalf("设置时区失败: %v", err)
	}
	ts := time.Date(2026, 3, 16, 2, 0, 0, 0, time.UTC)
	if got := env.rebuild.LocalDate(ctx, env.org.ID, ts); got != "2026-03-15" {
		t.Errorf("纽约本地日期应为 2026-03-15，实际 %s", got)
	}
}

func TestRebuildLocalDate_FallbackUTC(t *testing.T) {
	env := newSyncTestEnv(t)
	ctx := context.Background()

	// 无效时区回退 UTC
	if err := env.db.Model(&model.Organization{}).Where("id = ?", env.org.ID).
		Update("timezone", "Not/AZone").Error; err != nil {
		t.Fatalf("设置时区失败: %v", err)
	}
	ts := time.Date(2026, 3, 16, 2, 0, 0, 0, time.UTC)
	if got := env.rebuild.LocalDate(ctx, env.org.ID, ts); got != "2026-03-16" {
		t.Errorf("无效时区应按 UTC 折算，实际 %s", got)
	}

	// 组织不存在同样回退 UTC
	if got := env.rebuild.LocalDate(ctx, 99999, ts); got != "2026-03-16" {
		t.Errorf("组织缺失应按 UTC 折算，实际 %s", got)
	}
}

func TestRebuildFire_CallsAnalytics(t *testing.T) {
	env := newSyncTestEnv(t)
	ctx := context.Background()

	analytics := &stubAnalytics{}
	rebuild := NewRebuildService(nil, env.scheduler, analytics)

	args := &dto.RebuildArgs{OrgID: env.org.ID, Date: "2026-03-15", Scope: "manual"}
	if err := rebuild.Fire(ctx, args); err != nil {
		t.Fatalf("重建执行失败: %v", err)
	}
	if len(analytics.Calls) != 1 || analytics.Calls[0] != "2026-03-15" {
		t.Errorf("分析服务应被调用一次: %v", analytics.Calls)
	}
}

func TestRebuildFire_PropagatesError(t *testing.T) {
	env := newSyncTestEnv(t)

	analytics := &stubAnalytics{Err: errors.New("分析服务不可用")}
	rebuild := NewRebuildService(nil, env.scheduler, analytics)

	args := &dto.RebuildArgs{OrgID: env.org.ID, Date: "2026-03-15", Scope: "manual"}
	if err := rebuild.Fire(context.Background(), args); err == nil {
		t.Fatal("分析服务失败应上抛，由任务执行器标记失败后重投")
	}
}
