package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"shopsync_v1_202608/internal/repository"
)

// ==================== UninstallService 卸载编排 ====================

// UninstallService 平台卸载编排服务
// 分两阶段：
//   - 阶段一（同步）：账户与状态复位，webhook 处理内完成，失败会向平台返回错误触发重投
//   - 阶段二（异步）：业务数据清理扇出为删除链任务，调度失败上抛但不回滚阶段一
type UninstallService struct {
	shopRepo       repository.ShopRepository
	orgRepo        repository.OrganizationRepository
	billingRepo    repository.BillingRepository
	userRepo       repository.SysUserRepository
	membershipRepo repository.MembershipRepository
	onboardingRepo repository.OnboardingRepository

	provision *ProvisionService
	purge     *PurgeService
}

// NewUninstallService 创建卸载编排服务
func NewUninstallService(
	shopRepo repository.ShopRepository,
	orgRepo repository.OrganizationRepository,
	billingRepo repository.BillingRepository,
	userRepo repository.SysUserRepository,
	membershipRepo repository.MembershipRepository,
	onboardingRepo repository.OnboardingRepository,
	provision *ProvisionService,
	purge *PurgeService,
) *UninstallService {
	return &UninstallService{
		shopRepo:       shopRepo,
		orgRepo:        orgRepo,
		billingRepo:    billingRepo,
		userRepo:       userRepo,
		membershipRepo: membershipRepo,
		onboardingRepo: onboardingRepo,
		provision:      provision,
		purge:          purge,
	}
}

// HandleUninstall 处理平台卸载事件
// 重复投递幂等：店铺已是断开状态时只补跑清理扇出
func (s *UninstallService) HandleUninstall(ctx context.Context, shopID int64) error {
	shop, err := s.shopRepo.GetByID(ctx, shopID)
	if err != nil {
		return fmt.Errorf("查找店铺 %d 失败: %w", shopID, err)
	}
	if shop == nil {
		log.Printf("[Uninstall] 店铺 %d 不存在，忽略卸载事件", shopID)
		return nil
	}

	if err := s.resetAccountState(ctx, shop.ID, shop.OrgID); err != nil {
		return err
	}
	// 阶段二调度失败向平台上抛触发重投，但阶段一的复位已提交，不回滚
	return s.fanOutDataPurge(ctx, shop.ID, shop.OrgID)
}

// resetAccountState 阶段一：账户与状态复位（同步，失败整体报错）
func (s *UninstallService) resetAccountState(ctx context.Context, shopID, orgID int64) error {
	if err := s.shopRepo.MarkUninstalled(ctx, shopID); err != nil {
		return fmt.Errorf("标记店铺 %d 卸载失败: %w", shopID, err)
	}

	// 付费标记与首次同步标记复位，强制重装后重新走完整流程
	if err := s.orgRepo.ResetPremium(ctx, orgID); err != nil {
		return fmt.Errorf("复位组织 %d 付费状态失败: %w", orgID, err)
	}
	if err := s.orgRepo.UpdateFields(ctx, orgID, map[string]interface{}{
		"initial_synced_at": nil,
		"last_sync_error":   "",
	}); err != nil {
		return fmt.Errorf("复位组织 %d 同步标记失败: %w", orgID, err)
	}

	if err := s.billingRepo.DeleteByOrg(ctx, orgID); err != nil {
		return fmt.Errorf("删除组织 %d 计费记录失败: %w", orgID, err)
	}

	// 成员复位逐人处理：单个用户失败只记日志，不阻塞其余用户
	users, err := s.userRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return fmt.Errorf("查找组织 %d 成员失败: %w", orgID, err)
	}
	now := time.Now()
	for _, u := range users {
		if err := s.userRepo.StampAppDeleted(ctx, u.ID, now); err != nil {
			log.Printf("[Uninstall] 用户 %d 卸载时间戳写入失败: %v", u.ID, err)
		}
		if err := s.membershipRepo.MarkRemoved(ctx, u.ID, orgID); err != nil {
			log.Printf("[Uninstall] 用户 %d 成员关系移除失败: %v", u.ID, err)
		}
		if err := s.onboardingRepo.Reset(ctx, u.ID); err != nil {
			log.Printf("[Uninstall] 用户 %d 引导状态复位失败: %v", u.ID, err)
		}
		// 脱离到全新的个人组织，重装后从干净工作区开始
		if _, err := s.provision.ProvisionOrganization(ctx, u.ID, u.Username); err != nil {
			log.Printf("[Uninstall] 用户 %d 个人组织开通失败: %v", u.ID, err)
		}
	}
	return nil
}

// fanOutDataPurge 阶段二：业务数据清理扇出
// 组织下每家店铺、每张店铺作用域表一条删除链，外加组织作用域补扫；
// 调度失败不回滚阶段一，但汇总后作为错误上抛，由卸载重投补跑
func (s *UninstallService) fanOutDataPurge(ctx context.Context, shopID, orgID int64) error {
	var scheduled, failed int

	// 历史店铺（早先断开、尚未硬删除的）也要清：店铺表没有 org_id 列，
	// 组织补扫覆盖不到，必须按店铺逐家扇出
	shops, err := s.shopRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return fmt.Errorf("查找组织 %d 店铺失败: %w", orgID, err)
	}

	for _, sh := range shops {
		for _, table := range repository.PurgeShopTables() {
			scope := repository.PurgeScope{ShopID: sh.ID}
			if err := s.purge.StartPurge(ctx, table, scope, 0); err != nil {
				failed++
				log.Printf("[Uninstall] 店铺 %d 表 %s 删除链调度失败: %v", sh.ID, table, err)
				continue
			}
			scheduled++
		}
		// 每家店铺各挂一条空检查链，数据清空才硬删除店铺行
		if err := s.purge.ScheduleShopDeleteCheck(ctx, sh.ID); err != nil {
			failed++
			log.Printf("[Uninstall] 店铺 %d 空检查调度失败: %v", sh.ID, err)
		} else {
			scheduled++
		}
	}

	// 组织作用域补扫：已硬删除店铺遗留的、还带 org_id 的残留行
	for _, table := range repository.PurgeOrgTables() {
		scope := repository.PurgeScope{OrgID: orgID}
		if err := s.purge.StartPurge(ctx, table, scope, 0); err != nil {
			failed++
			log.Printf("[Uninstall] 组织表 %s 删除链调度失败: %v", table, err)
			continue
		}
		scheduled++
	}

	// 仪表盘按组织作用域清理，跑完后重建默认仪表盘
	org, err := s.orgRepo.GetByID(ctx, orgID)
	ownerUserID := int64(0)
	if err == nil && org != nil {
		ownerUserID = org.OwnerUserID
	}
	if err := s.purge.StartDashboardPurge(ctx, orgID, ownerUserID, true); err != nil {
		failed++
		log.Printf("[Uninstall] 组织 %d 仪表盘删除链调度失败: %v", orgID, err)
	} else {
		scheduled++
	}

	log.Printf("[Uninstall] 店铺 %d 清理扇出完成: 调度 %d 条，失败 %d 条", shopID, scheduled, failed)
	if failed > 0 {
		return fmt.Errorf("店铺 %d 清理扇出失败 %d 条（已调度 %d 条）", shopID, failed, scheduled)
	}
	return nil
}
