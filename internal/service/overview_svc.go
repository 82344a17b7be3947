package service

import (
	"context"
	"fmt"

	"shopsync_v1_202608/internal/repository"
)

// ==================== OverviewService 组织概览 ====================

// ShopOverview 单店铺概览
type ShopOverview struct {
	ShopID         int64  `json:"shop_id"`
	PlatformDomain string `json:"platform_domain"`
	Status         int    `json:"status"`
	OrderCount     int64  `json:"order_count"`
	ProductCount   int64  `json:"product_count"`
}

// OrgOverview 组织概览：计费套餐、仪表盘数量、各店铺数据量
type OrgOverview struct {
	OrgID          int64          `json:"org_id"`
	Name           string         `json:"name"`
	Plan           string         `json:"plan"`
	DashboardCount int64          `json:"dashboard_count"`
	Shops          []ShopOverview `json:"shops"`
}

// OverviewService 管理端组织概览查询
type OverviewService struct {
	orgRepo       repository.OrganizationRepository
	shopRepo      repository.ShopRepository
	billingRepo   repository.BillingRepository
	dashboardRepo repository.DashboardRepository
	orderRepo     repository.OrderRepository
	productRepo   repository.ProductRepository
}

// NewOverviewService 创建组织概览服务
func NewOverviewService(
	orgRepo repository.OrganizationRepository,
	shopRepo repository.ShopRepository,
	billingRepo repository.BillingRepository,
	dashboardRepo repository.DashboardRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
) *OverviewService {
	return &OverviewService{
		orgRepo:       orgRepo,
		shopRepo:      shopRepo,
		billingRepo:   billingRepo,
		dashboardRepo: dashboardRepo,
		orderRepo:     orderRepo,
		productRepo:   productRepo,
	}
}

// GetOrgOverview 汇总组织的套餐、仪表盘和各店铺的数据量
func (s *OverviewService) GetOrgOverview(ctx context.Context, orgID int64) (*OrgOverview, error) {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("查找组织 %d 失败: %w", orgID, err)
	}
	if org == nil {
		return nil, fmt.Errorf("组织 %d 不存在", orgID)
	}

	overview := &OrgOverview{OrgID: org.ID, Name: org.Name, Plan: "free"}

	billing, err := s.billingRepo.GetByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("查找组织 %d 计费记录失败: %w", orgID, err)
	}
	if billing != nil {
		overview.Plan = billing.Plan
	}

	overview.DashboardCount, err = s.dashboardRepo.CountByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("统计组织 %d 仪表盘失败: %w", orgID, err)
	}

	shops, err := s.shopRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("查找组织 %d 店铺失败: %w", orgID, err)
	}
	overview.Shops = make([]ShopOverview, 0, len(shops))
	for _, shop := range shops {
		entry := ShopOverview{
			ShopID:         shop.ID,
			PlatformDomain: shop.PlatformDomain,
			Status:         shop.Status,
		}
		if entry.OrderCount, err = s.orderRepo.CountByShop(ctx, shop.ID); err != nil {
			return nil, fmt.Errorf("统计店铺 %d 订单失败: %w", shop.ID, err)
		}
		if entry.ProductCount, err = s.productRepo.CountByShop(ctx, shop.ID); err != nil {
			return nil, fmt.Errorf("统计店铺 %d 商品失败: %w", shop.ID, err)
		}
		overview.Shops = append(overview.Shops, entry)
	}
	return overview, nil
}
