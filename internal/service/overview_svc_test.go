package service

import (
	"context"
	"testing"

	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"
)

// ==================== 组织概览测试 ====================

func newOverviewService(env *syncTestEnv) *OverviewService {
	return NewOverviewService(
		repository.NewOrganizationRepository(env.db),
		repository.NewShopRepository(env.db),
		repository.NewBillingRepository(env.db),
		repository.NewDashboardRepository(env.db),
		repository.NewOrderRepository(env.db),
		repository.NewProductRepository(env.db),
	)
}

func TestGetOrgOverview_AggregatesPerShop(t *testing.T) {
	env := newSyncTestEnv(t)
	overview := newOverviewService(env)
	ctx := context.Background()

	secondShop := &model.Shop{
		OrgID:          env.org.ID,
		PlatformDomain: "second-shop.example.com",
		Status:         model.ShopStatusActive,
	}
	seeds := []interface{}{
		secondShop,
		&model.Billing{OrgID: env.org.ID, Plan: "premium", Status: "active"},
		&model.Dashboard{OrgID: env.org.ID, Name: "默认仪表盘", IsDefault: true},
		&model.Dashboard{OrgID: env.org.ID, Name: "销售看板"},
		&model.Order{OrgID: env.org.ID, ShopID: env.shop.ID, ExternalID: 101},
		&model.Order{OrgID: env.org.ID, ShopID: env.shop.ID, ExternalID: 102},
		&model.Product{OrgID: env.org.ID, ShopID: env.shop.ID, ExternalID: 201, Title: "银手链"},
	}
	for _, seed := range seeds {
		if err := env.db.Create(seed).Error; err != nil {
			t.Fatalf("初始化数据失败: %v", err)
		}
	}

	got, err := overview.GetOrgOverview(ctx, env.org.ID)
	if err != nil {
		t.Fatalf("组织概览查询失败: %v", err)
	}
	if got.Plan != "premium" {
		t.Errorf("套餐应取计费记录，实际 %s", got.Plan)
	}
	if got.DashboardCount != 2 {
		t.Errorf("仪表盘数量应为 2，实际 %d", got.DashboardCount)
	}
	if len(got.Shops) != 2 {
		t.Fatalf("应包含两家店铺，实际 %d", len(got.Shops))
	}

	byShop := make(map[int64]ShopOverview, len(got.Shops))
	for _, s := range got.Shops {
		byShop[s.ShopID] = s
	}
	if s := byShop[env.shop.ID]; s.OrderCount != 2 || s.ProductCount != 1 {
		t.Errorf("首店数据量错误: orders=%d products=%d", s.OrderCount, s.ProductCount)
	}
	if s := byShop[secondShop.ID]; s.OrderCount != 0 || s.ProductCount != 0 {
		t.Errorf("空店数据量应为 0: orders=%d products=%d", s.OrderCount, s.ProductCount)
	}
}

func TestGetOrgOverview_DefaultsWithoutBilling(t *testing.T) {
	env := newSyncTestEnv(t)
	overview := newOverviewService(env)

	got, err := overview.GetOrgOverview(context.Background(), env.org.ID)
	if err != nil {
		t.Fatalf("组织概览查询失败: %v", err)
	}
	if got.Plan != "free" {
		t.Errorf("无计费记录时套餐应为 free，实际 %s", got.Plan)
	}
}

func TestGetOrgOverview_UnknownOrg(t *testing.T) {
	env := newSyncTestEnv(t)
	overview := newOverviewService(env)

	if _, err := overview.GetOrgOverview(context.Background(), 99999); err == nil {
		t.Error("未知组织应报错")
	}
}
