package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopsync_v1_202608/internal/config"
	"shopsync_v1_202608/internal/controller"
	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"
	"shopsync_v1_202608/internal/router"
	"shopsync_v1_202608/internal/service"
	"shopsync_v1_202608/internal/task"
	"shopsync_v1_202608/pkg/database"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 初始化数据库
	db := initDatabase(cfg)

	// 3. 初始化依赖
	deps := initDependencies(db, cfg)

	// 4. 启动任务执行器
	deps.Runner.Start()
	defer deps.Runner.Stop()

	// 5. 初始化路由
	r := gin.Default()
	router.InitRoutes(r, deps.Controllers.Webhook, deps.Controllers.Sync)

	// 6. 启动服务
	startServer(r, cfg.Server.Port)
}

// ==================== 数据库 ====================

func initDatabase(cfg *config.Config) *gorm.DB {
	return database.InitDB(cfg.Database.DSN(),
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
	)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Runner      *task.TaskRunner
	Controllers *Controllers
}

// Repositories 仓库集合
type Repositories struct {
	Org         repository.OrganizationRepository
	Billing     repository.BillingRepository
	Dashboard   repository.DashboardRepository
	User        repository.SysUserRepository
	Membership  repository.MembershipRepository
	Onboarding  repository.OnboardingRepository
	Shop        repository.ShopRepository
	SyncSession repository.SyncSessionRepository
	Order       repository.OrderRepository
	OrderItem   repository.OrderItemRepository
	Transaction repository.TransactionRepository
	Refund      repository.RefundRepository
	Fulfillment repository.FulfillmentRepository
	Product     repository.ProductRepository
	Variant     repository.ProductVariantRepository
	Inventory   repository.InventoryRepository
	Customer    repository.CustomerRepository
	Collection  repository.CollectionRepository
	Task        repository.ScheduledTaskRepository
	Purge       repository.PurgeRepository
}

// Services 服务集合
type Services struct {
	Onboarding     *service.OnboardingService
	CustomerSync   *service.CustomerSyncService
	OrderSync      *service.OrderSyncService
	ChildSync      *service.ChildSyncService
	ProductSync    *service.ProductSyncService
	CollectionSync *service.CollectionSyncService
	Rebuild        *service.RebuildService
	Purge          *service.PurgeService
	Provision      *service.ProvisionService
	Uninstall      *service.UninstallService
	Overview       *service.OverviewService
}

// Controllers 控制器集合
type Controllers struct {
	Webhook *controller.WebhookController
	Sync    *controller.SyncController
}

func initDependencies(db *gorm.DB, cfg *config.Config) *Dependencies {
	repos := &Repositories{
		Org:         repository.NewOrganizationRepository(db),
		Billing:     repository.NewBillingRepository(db),
		Dashboard:   repository.NewDashboardRepository(db),
		User:        repository.NewSysUserRepository(db),
		Membership:  repository.NewMembershipRepository(db),
		Onboarding:  repository.NewOnboardingRepository(db),
		Shop:        repository.NewShopRepository(db),
		SyncSession: repository.NewSyncSessionRepository(db),
		Order:       repository.NewOrderRepository(db),
		OrderItem:   repository.NewOrderItemRepository(db),
		Transaction: repository.NewTransactionRepository(db),
		Refund:      repository.NewRefundRepository(db),
		Fulfillment: repository.NewFulfillmentRepository(db),
		Product:     repository.NewProductRepository(db),
		Variant:     repository.NewProductVariantRepository(db),
		Inventory:   repository.NewInventoryRepository(db),
		Customer:    repository.NewCustomerRepository(db),
		Collection:  repository.NewCollectionRepository(db),
		Task:        repository.NewScheduledTaskRepository(db),
		Purge:       repository.NewPurgeRepository(db),
	}

	scheduler := task.NewTaskQueue(repos.Task)
	analytics := service.NewAnalyticsClient(cfg.Analytics.BaseURL)

	svcs := &Services{}
	svcs.Onboarding = service.NewOnboardingService(repos.Org, repos.Onboarding)
	svcs.Rebuild = service.NewRebuildService(repos.Org, scheduler, analytics)
	svcs.CustomerSync = service.NewCustomerSyncService(repos.Shop, repos.Customer)
	svcs.OrderSync = service.NewOrderSyncService(
		repos.Shop, repos.Order, repos.OrderItem, repos.SyncSession,
		svcs.CustomerSync, svcs.Onboarding, svcs.Rebuild,
	)
	svcs.ChildSync = service.NewChildSyncService(
		repos.Shop, repos.Order, repos.Transaction, repos.Refund, repos.Fulfillment, scheduler,
	)
	svcs.ProductSync = service.NewProductSyncService(repos.Shop, repos.Product, repos.Variant, repos.Inventory)
	svcs.CollectionSync = service.NewCollectionSyncService(repos.Shop, repos.Collection)
	svcs.Purge = service.NewPurgeService(repos.Purge, repos.Shop, repos.Dashboard, scheduler)
	svcs.Provision = service.NewProvisionService(
		repos.User, repos.Org, repos.Membership, repos.Dashboard, repos.Onboarding,
	)
	svcs.Uninstall = service.NewUninstallService(
		repos.Shop, repos.Org, repos.Billing, repos.User, repos.Membership, repos.Onboarding,
		svcs.Provision, svcs.Purge,
	)
	svcs.Overview = service.NewOverviewService(
		repos.Org, repos.Shop, repos.Billing, repos.Dashboard, repos.Order, repos.Product,
	)

	runner := task.NewTaskRunner(repos.Task)
	task.RegisterHandlers(runner, &task.HandlerDeps{
		ChildSync: svcs.ChildSync,
		Rebuild:   svcs.Rebuild,
		Purge:     svcs.Purge,
	})

	ctls := &Controllers{
		Webhook: controller.NewWebhookController(
			svcs.OrderSync, svcs.ChildSync, svcs.ProductSync, svcs.CollectionSync, svcs.Uninstall,
		),
		Sync: controller.NewSyncController(
			repos.SyncSession, repos.Task,
			svcs.OrderSync, svcs.Rebuild, svcs.Onboarding, svcs.Uninstall, svcs.Provision, svcs.Overview,
		),
	}

	return &Dependencies{DB: db, Repos: repos, Services: svcs, Runner: runner, Controllers: ctls}
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}
