package service

import (
	"context"
	"fmt"
	"log"

	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// ==================== ProvisionService 账户开通 ====================

// ProvisionService 用户注册与组织开通服务
// 注册与卸载脱离共用同一套"新组织 + 默认仪表盘 + 引导状态"逻辑
type ProvisionService struct {
	userRepo       repository.SysUserRepository
	orgRepo        repository.OrganizationRepository
	membershipRepo repository.MembershipRepository
	dashboardRepo  repository.DashboardRepository
	onboardingRepo repository.OnboardingRepository
}

// NewProvisionService 创建账户开通服务
func NewProvisionService(
	userRepo repository.SysUserRepository,
	orgRepo repository.OrganizationRepository,
	membershipRepo repository.MembershipRepository,
	dashboardRepo repository.DashboardRepository,
	onboardingRepo repository.OnboardingRepository,
) *ProvisionService {
	return &ProvisionService{
		userRepo:       userRepo,
		orgRepo:        orgRepo,
		membershipRepo: membershipRepo,
		dashboardRepo:  dashboardRepo,
		onboardingRepo: onboardingRepo,
	}
}

// SignUp 注册新用户并开通个人组织
func (s *ProvisionService) SignUp(ctx context.Context, username, password, email string) (*model.SysUser, error) {
	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("查找用户名失败: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("用户名 %s 已存在", username)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	user := &model.SysUser{
		Username: username,
		Password: string(hashed),
		Email:    email,
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	if _, err := s.ProvisionOrganization(ctx, user.ID, username); err != nil {
		return nil, err
	}
	return user, nil
}

// ProvisionOrganization 为用户开通新组织（owner 成员关系 + 默认仪表盘 + 引导状态）
// 用户已有活跃成员关系时幂等返回既有组织
func (s *ProvisionService) ProvisionOrganization(ctx context.Context, userID int64, orgName string) (*model.Organization, error) {
	membership, err := s.membershipRepo.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查找成员关系失败: %w", err)
	}
	if membership != nil {
		org, err := s.orgRepo.GetByID(ctx, membership.OrgID)
		if err != nil {
			return nil, fmt.Errorf("查找组织 %d 失败: %w", membership.OrgID, err)
		}
		if org != nil {
			return org, nil
		}
	}

	org := &model.Organization{
		Name:        orgName,
		OwnerUserID: userID,
	}
	if err := s.orgRepo.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("创建组织失败: %w", err)
	}

	if err := s.membershipRepo.Create(ctx, &model.Membership{
		SysUserID: userID,
		OrgID:     org.ID,
		Role:      "owner",
		Status:    model.MembershipStatusActive,
	}); err != nil {
		return nil, fmt.Errorf("创建成员关系失败: %w", err)
	}

	if err := s.dashboardRepo.Create(ctx, &model.Dashboard{
		OrgID:       org.ID,
		OwnerUserID: userID,
		Name:        "Default",
		IsDefault:   true,
	}); err != nil {
		return nil, fmt.Errorf("创建默认仪表盘失败: %w", err)
	}

	// 引导状态已存在（重装）时复位，否则新建
	state, err := s.onboardingRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查找引导状态失败: %w", err)
	}
	if state == nil {
		if err := s.onboardingRepo.Create(ctx, &model.OnboardingState{
			SysUserID:   userID,
			OrgID:       org.ID,
			CurrentStep: model.OnboardingStepInitial,
		}); err != nil {
			return nil, fmt.Errorf("创建引导状态失败: %w", err)
		}
	} else {
		if err := s.onboardingRepo.UpdateFields(ctx, userID, map[string]interface{}{
			"org_id":       org.ID,
			"current_step": model.OnboardingStepInitial,
			"completed":    false,
		}); err != nil {
			return nil, fmt.Errorf("复位引导状态失败: %w", err)
		}
	}

	log.Printf("[Provision] 用户 %d 组织 %d 开通完成", userID, org.ID)
	return org, nil
}
