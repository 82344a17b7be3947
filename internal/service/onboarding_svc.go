package service

import (
	"context"
	"log"

	"shopsync_v1_202608/internal/repository"
)

// ==================== OnboardingService 引导进度服务 ====================

// OnboardingService 引导进度监控
// 同步批次完成/失败时被通知（fire-and-forget），推动外部引导状态机前进；
// 同时提供"首次全量同步是否完成"断言，供重建触发判断
type OnboardingService struct {
	orgRepo        repository.OrganizationRepository
	onboardingRepo repository.OnboardingRepository
}

// NewOnboardingService 创建引导进度服务
func NewOnboardingService(
	orgRepo repository.OrganizationRepository,
	onboardingRepo repository.OnboardingRepository,
) *OnboardingService {
	return &OnboardingService{
		orgRepo:        orgRepo,
		onboardingRepo: onboardingRepo,
	}
}

// HasCompletedInitialSync 组织首次全量同步是否已完成（幂等断言）
func (s *OnboardingService) HasCompletedInitialSync(ctx context.Context, orgID int64) bool {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		log.Printf("[Onboarding] 查询组织 %d 失败: %v", orgID, err)
		return false
	}
	return org.HasCompletedInitialSync()
}

// OnInitialSyncCompleted 首次全量同步完成
// 重复调用安全：时间戳只写一次
func (s *OnboardingService) OnInitialSyncCompleted(ctx context.Context, orgID int64) {
	if err := s.orgRepo.MarkInitialSyncDone(ctx, orgID); err != nil {
		log.Printf("[Onboarding] 标记组织 %d 首次同步完成失败: %v", orgID, err)
	}
}

// OnSyncBatchCompleted 同步批次完成通知（仅记录，失败不向上传播）
func (s *OnboardingService) OnSyncBatchCompleted(ctx context.Context, orgID int64) {
	if err := s.orgRepo.UpdateFields(ctx, orgID, map[string]interface{}{
		"last_sync_error": "",
	}); err != nil {
		log.Printf("[Onboarding] 清理组织 %d 同步错误标记失败: %v", orgID, err)
	}
}

// OnSyncBatchFailed 同步批次失败通知（仅记录，失败不向上传播）
func (s *OnboardingService) OnSyncBatchFailed(ctx context.Context, orgID int64, reason string) {
	if err := s.orgRepo.UpdateFields(ctx, orgID, map[string]interface{}{
		"last_sync_error": reason,
	}); err != nil {
		log.Printf("[Onboarding] 记录组织 %d 同步失败原因失败: %v", orgID, err)
	}
}
