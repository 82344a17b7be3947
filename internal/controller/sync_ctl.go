package controller

import (
	"time"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"
	"shopsync_v1_202608/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ==================== SyncController 批量导入与管理端触发 ====================

// SyncController 批量导入会话与管理端手动触发
// 批量导入与 webhook 走同一套同步服务，仅多了会话跟踪
type SyncController struct {
	sessionRepo repository.SyncSessionRepository
	taskRepo    repository.ScheduledTaskRepository

	orderSync  *service.OrderSyncService
	rebuild    *service.RebuildService
	onboarding *service.OnboardingService
	uninstall  *service.UninstallService
	provision  *service.ProvisionService
	overview   *service.OverviewService
}

// NewSyncController 创建同步控制器
func NewSyncController(
	sessionRepo repository.SyncSessionRepository,
	taskRepo repository.ScheduledTaskRepository,
	orderSync *service.OrderSyncService,
	rebuild *service.RebuildService,
	onboarding *service.OnboardingService,
	uninstall *service.UninstallService,
	provision *service.ProvisionService,
	overview *service.OverviewService,
) *SyncController {
	return &SyncController{
		sessionRepo: sessionRepo,
		taskRepo:    taskRepo,
		orderSync:   orderSync,
		rebuild:     rebuild,
		onboarding:  onboarding,
		uninstall:   uninstall,
		provision:   provision,
		overview:    overview,
	}
}

// ==================== 批量导入会话 ====================

type startSessionRequest struct {
	ShopID int64  `json:"shop_id"`
	Kind   string `json:"kind"` // full / incremental，默认 full
}

// StartSession 开启一次批量导入会话
// POST /api/sync/orgs/:org_id/sessions
func (c *SyncController) StartSession(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	var req startSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "载荷解析失败: " + err.Error()})
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = "full"
	}

	session := &model.SyncSession{
		SessionUUID: uuid.NewString(),
		OrgID:       orgID,
		ShopID:      req.ShopID,
		Kind:        kind,
		Status:      model.SyncSessionRunning,
		StartedAt:   time.Now(),
	}
	if err := c.sessionRepo.Create(ctx.Request.Context(), session); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "同步会话已创建",
		"data":    gin.H{"session_id": session.ID, "session_uuid": session.SessionUUID},
	})
}

type sessionOrdersRequest struct {
	ShopID int64              `json:"shop_id"`
	Orders []dto.OrderPayload `json:"orders" binding:"required"`
}

// SessionOrders 向会话提交一批订单
// POST /api/sync/orgs/:org_id/sessions/:session_id/orders
func (c *SyncController) SessionOrders(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	sessionID := parseID(ctx, "session_id")
	if sessionID == 0 {
		return
	}
	var req sessionOrdersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "载荷解析失败: " + err.Error()})
		return
	}
	if err := c.orderSync.UpsertOrders(ctx.Request.Context(), orgID, req.ShopID, req.Orders, sessionID); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "批次已处理", "data": gin.H{"count": len(req.Orders)}})
}

// CompleteInitialSync 标记组织首次全量同步完成（解除重建触发抑制）
// POST /api/sync/orgs/:org_id/initial-complete
func (c *SyncController) CompleteInitialSync(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	c.onboarding.OnInitialSyncCompleted(ctx.Request.Context(), orgID)
	ctx.JSON(200, gin.H{"code": 200, "message": "首次同步已标记完成"})
}

// ==================== 管理端触发 ====================

type rebuildTriggerRequest struct {
	Dates []string `json:"dates" binding:"required"` // 2006-01-02
}

// TriggerRebuild 手动触发某组织若干日期的分析重建
// POST /api/admin/orgs/:org_id/rebuild
func (c *SyncController) TriggerRebuild(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	var req rebuildTriggerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "载荷解析失败: " + err.Error()})
		return
	}
	if err := c.rebuild.Trigger(ctx.Request.Context(), orgID, req.Dates, "manual"); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "重建已触发", "data": gin.H{"dates": req.Dates}})
}

// TriggerUninstall 手动触发店铺卸载流程（平台事件丢失时的兜底入口）
// POST /api/admin/shops/:shop_id/uninstall
func (c *SyncController) TriggerUninstall(ctx *gin.Context) {
	shopID := parseID(ctx, "shop_id")
	if shopID == 0 {
		return
	}
	if err := c.uninstall.HandleUninstall(ctx.Request.Context(), shopID); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "卸载流程已触发"})
}

// TaskStatus 各任务类型的待执行数量
// GET /api/admin/tasks/status
func (c *SyncController) TaskStatus(ctx *gin.Context) {
	types := []string{
		model.TaskTypeChildSyncRetry,
		model.TaskTypeAnalyticsRebuild,
		model.TaskTypePurgeBatch,
		model.TaskTypeShopDeleteCheck,
		model.TaskTypeDashboardPurge,
	}
	pending := make(map[string]int64, len(types))
	for _, t := range types {
		count, err := c.taskRepo.CountPendingByType(ctx.Request.Context(), t)
		if err != nil {
			ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
			return
		}
		pending[t] = count
	}
	ctx.JSON(200, gin.H{"code": 200, "data": gin.H{"pending": pending}})
}

// Overview 组织概览：套餐、仪表盘数量、各店铺数据量
// GET /api/admin/orgs/:org_id/overview
func (c *SyncController) Overview(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	data, err := c.overview.GetOrgOverview(ctx.Request.Context(), orgID)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "data": data})
}

// ==================== 注册 ====================

type signUpRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Email    string `json:"email"`
}

// SignUp 注册新用户并开通个人组织
// POST /api/users/signup
func (c *SyncController) SignUp(ctx *gin.Context) {
	var req signUpRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "载荷解析失败: " + err.Error()})
		return
	}
	user, err := c.provision.SignUp(ctx.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "注册成功",
		"data":    gin.H{"user_id": user.ID, "username": user.Username},
	})
}
