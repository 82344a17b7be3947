package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ==================== 测试环境 ====================

func setupSyncTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Organization{},
		&model.Billing{},
		&model.Dashboard{},
		&model.SysUser{},
		&model.Membership{},
		&model.OnboardingState{},
		&model.Shop{},
		&model.Session{},
		&model.SyncSession{},
		&model.Order{},
		&model.OrderItem{},
		&model.Transaction{},
		&model.Refund{},
		&model.Fulfillment{},
		&model.Product{},
		&model.ProductVariant{},
		&model.InventoryLevel{},
		&model.InventoryTotal{},
		&model.Customer{},
		&model.Collection{},
		&model.ScheduledTask{},
	); err != nil {
		t.Fatalf("自动建表失败: %v", err)
	}
	return db
}

// makeOrgAndShop 建一个组织和活跃店铺
func makeOrgAndShop(t *testing.T, db *gorm.DB) (*model.Organization, *model.Shop) {
	org := &model.Organization{Name: "测试组织", Timezone: "UTC"}
	if err := db.Create(org).Error; err != nil {
		t.Fatalf("创建组织失败: %v", err)
	}
	shop := &model.Shop{
		OrgID:          org.ID,
		PlatformDomain: "test-shop.example.com",
		Status:         model.ShopStatusActive,
	}
	if err := db.Create(shop).Error; err != nil {
		t.Fatalf("创建店铺失败: %v", err)
	}
	return org, shop
}

// markInitialSyncDone 标记组织首次全量同步完成
func markInitialSyncDone(t *testing.T, db *gorm.DB, orgID int64) {
	now := time.Now()
	if err := db.Model(&model.Organization{}).Where("id = ?", orgID).
		Update("initial_synced_at", &now).Error; err != nil {
		t.Fatalf("标记首次同步完成失败: %v", err)
	}
}

// ==================== 记录型调度桩 ====================

// scheduledCall 一次调度调用的记录
type scheduledCall struct {
	Key      string
	Delay    time.Duration
	TaskType string
	Payload  interface{}
}

// stubScheduler 记录全部调度调用，FailNext 可注入一次失败
type stubScheduler struct {
	mu       sync.Mutex
	Calls    []scheduledCall
	FailWith error
}

func (s *stubScheduler) Schedule(ctx context.Context, delay time.Duration, taskType string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.Calls = append(s.Calls, scheduledCall{Delay: delay, TaskType: taskType, Payload: payload})
	return nil
}

func (s *stubScheduler) ScheduleKeyed(ctx context.Context, key string, delay time.Duration, taskType string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.Calls = append(s.Calls, scheduledCall{Key: key, Delay: delay, TaskType: taskType, Payload: payload})
	return nil
}

// callsOfType 按任务类型过滤调度记录
func (s *stubScheduler) callsOfType(taskType string) []scheduledCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []scheduledCall
	for _, c := range s.Calls {
		if c.TaskType == taskType {
			out = append(out, c)
		}
	}
	return out
}

// ==================== 分析客户端桩 ====================

type stubAnalytics struct {
	mu    sync.Mutex
	Calls []string // "orgID:date:scope"
	Err   error
}

func (s *stubAnalytics) RebuildDaily(ctx context.Context, orgID int64, date, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Calls = append(s.Calls, date)
	return nil
}

// ==================== 服务装配辅助 ====================

type syncTestEnv struct {
	db        *gorm.DB
	org       *model.Organization
	shop      *model.Shop
	scheduler *stubScheduler

	shopRepo    repository.ShopRepository
	orderRepo   repository.OrderRepository
	itemRepo    repository.OrderItemRepository
	sessionRepo repository.SyncSessionRepository

	orderSync   *OrderSyncService
	childSync   *ChildSyncService
	productSync *ProductSyncService
	onboarding  *OnboardingService
	rebuild     *RebuildService
}

func newSyncTestEnv(t *testing.T) *syncTestEnv {
	db := setupSyncTestDB(t)
	org, shop := makeOrgAndShop(t, db)

	env := &syncTestEnv{
		db:        db,
		org:       org,
		shop:      shop,
		scheduler: &stubScheduler{},
	}
	env.shopRepo = repository.NewShopRepository(db)
	env.orderRepo = repository.NewOrderRepository(db)
	env.itemRepo = repository.NewOrderItemRepository(db)
	env.sessionRepo = repository.NewSyncSessionRepository(db)

	orgRepo := repository.NewOrganizationRepository(db)
	env.onboarding = NewOnboardingService(orgRepo, repository.NewOnboardingRepository(db))
	env.rebuild = NewRebuildService(orgRepo, env.scheduler, &stubAnalytics{})

	customerSync := NewCustomerSyncService(env.shopRepo, repository.NewCustomerRepository(db))
	env.orderSync = NewOrderSyncService(
		env.shopRepo, env.orderRepo, env.itemRepo, env.sessionRepo,
		customerSync, env.onboarding, env.rebuild,
	)
	env.childSync = NewChildSyncService(
		env.shopRepo, env.orderRepo,
		repository.NewTransactionRepository(db),
		repository.NewRefundRepository(db),
		repository.NewFulfillmentRepository(db),
		env.scheduler,
	)
	env.productSync = NewProductSyncService(
		env.shopRepo,
		repository.NewProductRepository(db),
		repository.NewProductVariantRepository(db),
		repository.NewInventoryRepository(db),
	)
	return env
}
