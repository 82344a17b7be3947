package controller

import (
	"strconv"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/service"

	"github.com/gin-gonic/gin"
)

// ==================== WebhookController 平台事件入口 ====================

// WebhookController 平台 webhook 入口
// 每类实体一个端点；平台的松散 JSON 在 DTO 绑定层归一化为强类型载荷，
// 同步服务只处理类型化数据。处理失败返回非 2xx，平台会重投
type WebhookController struct {
	orderSync      *service.OrderSyncService
	childSync      *service.ChildSyncService
	productSync    *service.ProductSyncService
	collectionSync *service.CollectionSyncService
	uninstall      *service.UninstallService
}

// NewWebhookController 创建 webhook 控制器
func NewWebhookController(
	orderSync *service.OrderSyncService,
	childSync *service.ChildSyncService,
	productSync *service.ProductSyncService,
	collectionSync *service.CollectionSyncService,
	uninstall *service.UninstallService,
) *WebhookController {
	return &WebhookController{
		orderSync:      orderSync,
		childSync:      childSync,
		productSync:    productSync,
		collectionSync: collectionSync,
		uninstall:      uninstall,
	}
}

// parseID 从路径参数解析 ID，非法时直接响应 400
func parseID(ctx *gin.Context, name string) int64 {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(400, gin.H{"code": 400, "message": "无效的 " + name})
		return 0
	}
	return id
}

// ==================== 请求体 ====================

type orderWebhookRequest struct {
	ShopID int64              `json:"shop_id"`
	Orders []dto.OrderPayload `json:"orders" binding:"required"`
}

type transactionWebhookRequest struct {
	ShopID       int64                    `json:"shop_id"`
	Transactions []dto.TransactionPayload `json:"transactions" binding:"required"`
}

type refundWebhookRequest struct {
	ShopID  int64               `json:"shop_id"`
	Refunds []dto.RefundPayload `json:"refunds" binding:"required"`
}

type fulfillmentWebhookRequest struct {
	ShopID       int64                    `json:"shop_id"`
	Fulfillments []dto.FulfillmentPayload `json:"fulfillments" binding:"required"`
}

type productWebhookRequest struct {
	ShopID   int64                `json:"shop_id"`
	Products []dto.ProductPayload `json:"products" binding:"required"`
}

type inventoryWebhookRequest struct {
	ShopID int64                       `json:"shop_id"`
	Levels []dto.InventoryLevelPayload `json:"levels"`

	// 平台已删除的库存项，对应的库存层与聚合行一并清掉
	RemovedItems []int64 `json:"removed_items"`
}

type collectionWebhookRequest struct {
	ShopID      int64                   `json:"shop_id"`
	Collections []dto.CollectionPayload `json:"collections" binding:"required"`
}

// ==================== Handler 实现 ====================

// Orders 订单事件
// POST /api/webhooks/orgs/:org_id/orders
func (c *WebhookController) Orders(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	var req orderWebhookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "载荷解析失败: " + err.Error()})
		return
	}
	if err := c.orderSync.UpsertOrders(ctx.Request.Context(), orgID, req.ShopID, req.Orders, 0); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "订单已接收", "data": gin.H{"count": len(req.Orders)}})
}

// OrderDeleted 订单删除事件
// DELETE /api/webhooks/orgs/:org_id/orders/:external_id
func (c *WebhookController) OrderDeleted(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	externalID := parseID(ctx, "external_id")
	if externalID == 0 {
		return
	}
	shopID, _ := strconv.ParseInt(ctx.Query("shop_id"), 10, 64)
	if err := c.orderSync.DeleteOrder(ctx.Request.Context(), orgID, shopID, externalID); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "订单已删除"})
}

// Transactions 交易事件
// POST /api/webhooks/orgs/:org_id/transactions
func (c *WebhookController) Transactions(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	var req transactionWebhookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "载荷解析失败: " + err.Error()})
		return
	}
	if err := c.childSync.UpsertTransactions(ctx.Request.Context(), orgID, req.ShopID, req.Transactions, 0); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "交易已接收", "data": gin.H{"count": len(req.Transactions)}})
}

// Refunds 退款事件
// POST /api/webhooks/orgs/:org_id/refunds
func (c *WebhookController) Refunds(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	var req refundWebhookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "载荷解析失败: " + err.Error()})
		return
	}
	if err := c.childSync.UpsertRefunds(ctx.Request.Context(), orgID, req.ShopID, req.Refunds, 0); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "退款已接收", "data": gin.H{"count": len(req.Refunds)}})
}

// Fulfillments 履约事件
// POST /api/webhooks/orgs/:org_id/fulfillments
func (c *WebhookController) Fulfillments(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	var req fulfillmentWebhookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "载荷解析失败: " + err.Error()})
		return
	}
	if err := c.childSync.UpsertFulfillments(ctx.Request.Context(), orgID, req.ShopID, req.Fulfillments, 0); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "履约已接收", "data": gin.H{"count": len(req.Fulfillments)}})
}

// Products 商品事件
// POST /api/webhooks/orgs/:org_id/products
func (c *WebhookController) Products(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	var req productWebhookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "载荷解析失败: " + err.Error()})
		return
	}
	if err := c.productSync.UpsertProducts(ctx.Request.Context(), orgID, req.ShopID, req.Products); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "商品已接收", "data": gin.H{"count": len(req.Products)}})
}

// InventoryLevels 库存层事件
// POST /api/webhooks/orgs/:org_id/inventory
func (c *WebhookController) InventoryLevels(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	var req inventoryWebhookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "载荷解析失败: " + err.Error()})
		return
	}
	if err := c.productSync.UpsertInventoryLevels(ctx.Request.Context(), orgID, req.ShopID, req.Levels); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	if len(req.RemovedItems) > 0 {
		if err := c.productSync.RemoveInventoryItems(ctx.Request.Context(), orgID, req.ShopID, req.RemovedItems); err != nil {
			ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
			return
		}
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "库存已接收", "data": gin.H{"count": len(req.Levels)}})
}

// Collections 集合事件
// POST /api/webhooks/orgs/:org_id/collections
func (c *WebhookController) Collections(ctx *gin.Context) {
	orgID := parseID(ctx, "org_id")
	if orgID == 0 {
		return
	}
	var req collectionWebhookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "载荷解析失败: " + err.Error()})
		return
	}
	if err := c.collectionSync.UpsertCollections(ctx.Request.Context(), orgID, req.ShopID, req.Collections); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "集合已接收", "data": gin.H{"count": len(req.Collections)}})
}

// Uninstalled 应用卸载事件
// POST /api/webhooks/shops/:shop_id/uninstalled
// 返回非 2xx 时平台会重投，阶段一失败靠重投补偿
func (c *WebhookController) Uninstalled(ctx *gin.Context) {
	shopID := parseID(ctx, "shop_id")
	if shopID == 0 {
		return
	}
	if err := c.uninstall.HandleUninstall(ctx.Request.Context(), shopID); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"code": 200, "message": "卸载处理完成"})
}
