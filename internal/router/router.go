package router

import (
	"shopsync_v1_202608/internal/controller"
	"shopsync_v1_202608/internal/middleware"

	"github.com/gin-gonic/gin"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	webhookCtl *controller.WebhookController,
	syncCtl *controller.SyncController) {

	api := r.Group("/api")
	{
		// webhook 平台事件入口
		webhooks := api.Group("/webhooks")
		{
			orgs := webhooks.Group("/orgs/:org_id")
			{
				// POST /api/webhooks/orgs/:org_id/orders
				orgs.POST("/orders", webhookCtl.Orders)
				orgs.DELETE("/orders/:external_id", webhookCtl.OrderDeleted)
				orgs.POST("/transactions", webhookCtl.Transactions)
				orgs.POST("/refunds", webhookCtl.Refunds)
				orgs.POST("/fulfillments", webhookCtl.Fulfillments)
				orgs.POST("/products", webhookCtl.Products)
				orgs.POST("/inventory", webhookCtl.InventoryLevels)
				orgs.POST("/collections", webhookCtl.Collections)
			}
			// POST /api/webhooks/shops/:shop_id/uninstalled
			webhooks.POST("/shops/:shop_id/uninstalled", webhookCtl.Uninstalled)
		}

		// sync 批量导入会话
		sync := api.Group("/sync/orgs/:org_id")
		{
			// 全量导入会话开启带 resync 冷却，防止管理端连点打爆平台 API
			sync.POST("/sessions",
				middleware.TriggerRateLimit(middleware.TriggerTypeResync, 0),
				syncCtl.StartSession)
			sync.POST("/sessions/:session_id/orders", syncCtl.SessionOrders)
			sync.POST("/initial-complete", syncCtl.CompleteInitialSync)
		}

		// admin 管理端触发（带冷却限流）
		admin := api.Group("/admin")
		{
			admin.POST("/orgs/:org_id/rebuild",
				middleware.TriggerRateLimit(middleware.TriggerTypeRebuild, 0),
				syncCtl.TriggerRebuild)
			admin.POST("/shops/:shop_id/uninstall", syncCtl.TriggerUninstall)
			admin.GET("/tasks/status", syncCtl.TaskStatus)
			admin.GET("/orgs/:org_id/overview", syncCtl.Overview)
		}

		// users 注册
		api.POST("/users/signup", syncCtl.SignUp)
	}
}
