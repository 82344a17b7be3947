package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"

	"gorm.io/datatypes"
)

// ==================== OrderSyncService 订单同步 ====================

// OrderSyncService 订单批量 upsert 服务
// webhook 与批量导入共用同一入口；投递语义为至少一次、不保证顺序，
// 幂等性由自然键解析 + 变更检测保证
type OrderSyncService struct {
	shopRepo    repository.ShopRepository
	orderRepo   repository.OrderRepository
	itemRepo    repository.OrderItemRepository
	sessionRepo repository.SyncSessionRepository

	customerSync *CustomerSyncService
	onboarding   *OnboardingService
	rebuild      *RebuildService
}

// NewOrderSyncService 创建订单同步服务
func NewOrderSyncService(
	shopRepo repository.ShopRepository,
	orderRepo repository.OrderRepository,
	itemRepo repository.OrderItemRepository,
	sessionRepo repository.SyncSessionRepository,
	customerSync *CustomerSyncService,
	onboarding *OnboardingService,
	rebuild *RebuildService,
) *OrderSyncService {
	return &OrderSyncService{
		shopRepo:     shopRepo,
		orderRepo:    orderRepo,
		itemRepo:     itemRepo,
		sessionRepo:  sessionRepo,
		customerSync: customerSync,
		onboarding:   onboarding,
		rebuild:      rebuild,
	}
}

// UpsertOrders 订单批量 upsert
// shopID 显式传入时优先使用（0 表示由组织解析）；syncSessionID 为 0 表示 webhook 来源
func (s *OrderSyncService) UpsertOrders(ctx context.Context, orgID, shopID int64, payloads []dto.OrderPayload, syncSessionID int64) error {
	shop, err := resolveShop(ctx, s.shopRepo, orgID, shopID)
	if err != nil {
		if errors.Is(err, ErrNoActiveShop) {
			s.failSession(ctx, syncSessionID, model.SyncFailReasonNoShop, "组织无活跃店铺")
			s.onboarding.OnSyncBatchFailed(ctx, orgID, model.SyncFailReasonNoShop)
		}
		return err
	}

	// 店铺已断开：跳过全部写入，会话置失败并通知引导监控
	if !shop.IsActive() {
		log.Printf("[OrderSync] 店铺 %d 已断开，跳过 %d 条订单写入", shop.ID, len(payloads))
		s.failSession(ctx, syncSessionID, model.SyncFailReasonShopInactive, "店铺已与平台断开")
		s.onboarding.OnSyncBatchFailed(ctx, orgID, model.SyncFailReasonShopInactive)
		return nil
	}

	if len(payloads) == 0 {
		s.completeSession(ctx, syncSessionID, orgID)
		return nil
	}

	// ---------- 第一遍：收集整批引用到的客户 ----------
	customerIDMap, err := s.upsertReferencedCustomers(ctx, shop, payloads)
	if err != nil {
		return err
	}

	// ---------- 第二遍：订单本体 ----------
	changed := make(map[int64]bool)           // 本批被创建/修改的订单自然键
	createdAtByExt := make(map[int64]time.Time) // 自然键 → 平台创建时间
	orderIDByExt := make(map[int64]int64)     // 自然键 → 本地 ID（订单项关联用）

	externalIDs := make([]int64, 0, len(payloads))
	for _, p := range payloads {
		externalIDs = append(externalIDs, p.ExternalID)
	}

	existingByExt := make(map[int64]model.Order)
	for _, chunk := range chunkInt64(externalIDs, lookupChunkSize) {
		existing, err := s.orderRepo.ListByExternalIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("批量查找订单失败: %w", err)
		}
		for _, o := range existing {
			existingByExt[o.ExternalID] = o
		}
	}

	var createdCount int
	var createdRevenue float64
	for i := range payloads {
		p := &payloads[i]
		candidate := s.buildOrder(shop, p, customerIDMap)

		existing, found := existingByExt[p.ExternalID]
		if found {
			orderIDByExt[p.ExternalID] = existing.ID
			if !OrderChanged(&existing, candidate) {
				continue
			}
			if err := s.patchOrder(ctx, existing.ID, candidate); err != nil {
				return err
			}
			s.markChanged(changed, createdAtByExt, p)
			continue
		}

		// 插入前按自然键再查一次，防御并发同键插入
		recheck, err := s.orderRepo.GetByExternalID(ctx, shop.ID, p.ExternalID)
		if err != nil {
			return fmt.Errorf("订单 %d 二次查找失败: %w", p.ExternalID, err)
		}
		if recheck != nil {
			orderIDByExt[p.ExternalID] = recheck.ID
			if OrderChanged(recheck, candidate) {
				if err := s.patchOrder(ctx, recheck.ID, candidate); err != nil {
					return err
				}
				s.markChanged(changed, createdAtByExt, p)
			}
			continue
		}

		if err := s.orderRepo.Create(ctx, candidate); err != nil {
			// 并发撞唯一键：可恢复，按已有行处理
			log.Printf("[OrderSync] 创建订单 %d 失败（可能为并发重复投递）: %v", p.ExternalID, err)
			if again, lookupErr := s.orderRepo.GetByExternalID(ctx, shop.ID, p.ExternalID); lookupErr == nil && again != nil {
				orderIDByExt[p.ExternalID] = again.ID
				continue
			}
			return fmt.Errorf("创建订单 %d 失败: %w", p.ExternalID, err)
		}
		orderIDByExt[p.ExternalID] = candidate.ID
		s.markChanged(changed, createdAtByExt, p)
		createdCount++
		createdRevenue += candidate.GetTotal()
	}
	if createdCount > 0 {
		log.Printf("[OrderSync] 店铺 %d 本批新建订单 %d 单，金额合计 %.2f 元", shop.ID, createdCount, createdRevenue)
	}

	// ---------- 子步骤：订单项（父记录已解析，不再回查） ----------
	if err := s.upsertItems(ctx, shop, payloads, orderIDByExt, changed, createdAtByExt); err != nil {
		return err
	}

	// ---------- 受影响日期 → 重建触发 ----------
	s.triggerRebuild(ctx, orgID, changed, createdAtByExt)

	s.completeSession(ctx, syncSessionID, orgID)
	return nil
}

// upsertReferencedCustomers 批内客户第一遍处理
// 同一客户在批内出现多次时先合并（后到非空值胜出），再统一落库；
// 平台未提供客户创建时间时，以该客户最早订单时间回填
func (s *OrderSyncService) upsertReferencedCustomers(ctx context.Context, shop *model.Shop, payloads []dto.OrderPayload) (map[int64]int64, error) {
	var customerPayloads []dto.CustomerPayload
	fallbackCreated := make(map[int64]time.Time)

	for i := range payloads {
		p := &payloads[i]
		if p.Customer == nil {
			continue
		}
		customerPayloads = append(customerPayloads, *p.Customer)
		if p.CreatedAt != nil {
			extID := p.Customer.ExternalID
			if cur, ok := fallbackCreated[extID]; !ok || p.CreatedAt.Before(cur) {
				fallbackCreated[extID] = *p.CreatedAt
			}
		}
	}

	merged := MergeCustomerPayloads(customerPayloads)
	return s.customerSync.UpsertCustomers(ctx, shop, merged, fallbackCreated)
}

// upsertItems 订单项子步骤
func (s *OrderSyncService) upsertItems(
	ctx context.Context,
	shop *model.Shop,
	payloads []dto.OrderPayload,
	orderIDByExt map[int64]int64,
	changed map[int64]bool,
	createdAtByExt map[int64]time.Time,
) error {
	type itemWithParent struct {
		payload  *dto.OrderItemPayload
		parent   *dto.OrderPayload
		parentID int64
	}

	var all []itemWithParent
	var itemExtIDs []int64
	for i := range payloads {
		p := &payloads[i]
		parentID, ok := orderIDByExt[p.ExternalID]
		if !ok {
			continue
		}
		for j := range p.Items {
			all = append(all, itemWithParent{payload: &p.Items[j], parent: p, parentID: parentID})
			itemExtIDs = append(itemExtIDs, p.Items[j].ExternalID)
		}
	}
	if len(all) == 0 {
		return nil
	}

	existingByExt := make(map[int64]model.OrderItem)
	for _, chunk := range chunkInt64(itemExtIDs, lookupChunkSize) {
		existing, err := s.itemRepo.ListByExternalIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("批量查找订单项失败: %w", err)
		}
		for _, it := range existing {
			existingByExt[it.ExternalID] = it
		}
	}

	for _, entry := range all {
		candidate := s.buildItem(shop, entry.parentID, entry.payload)

		existing, found := existingByExt[entry.payload.ExternalID]
		if found {
			if !OrderItemChanged(&existing, candidate) {
				continue
			}
			if err := s.itemRepo.UpdateFields(ctx, existing.ID, map[string]interface{}{
				"product_external_id":  candidate.ProductExternalID,
				"variant_external_id":  candidate.VariantExternalID,
				"title":                candidate.Title,
				"sku":                  candidate.SKU,
				"quantity":             candidate.Quantity,
				"fulfillable_quantity": candidate.FulfillableQuantity,
				"price_amount":         candidate.PriceAmount,
				"discount_amount":      candidate.DiscountAmount,
				"currency":             candidate.Currency,
				"properties":           candidate.Properties,
			}); err != nil {
				return fmt.Errorf("更新订单项 %d 失败: %w", entry.payload.ExternalID, err)
			}
		} else {
			if err := s.itemRepo.Create(ctx, candidate); err != nil {
				return fmt.Errorf("创建订单项 %d 失败: %w", entry.payload.ExternalID, err)
			}
		}
		// 订单项变化同样使父订单所在日期受影响
		s.markChanged(changed, createdAtByExt, entry.parent)
	}
	return nil
}

// triggerRebuild 把受影响日期交给重建调度
// 首次全量同步完成前抑制，避免对不完整数据做统计
func (s *OrderSyncService) triggerRebuild(ctx context.Context, orgID int64, changed map[int64]bool, createdAtByExt map[int64]time.Time) {
	if len(changed) == 0 {
		return
	}
	if !s.onboarding.HasCompletedInitialSync(ctx, orgID) {
		return
	}

	dateSet := make(map[string]bool)
	for extID := range changed {
		t, ok := createdAtByExt[extID]
		if !ok {
			continue
		}
		dateSet[s.rebuild.LocalDate(ctx, orgID, t)] = true
	}
	if len(dateSet) == 0 {
		return
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	if err := s.rebuild.Trigger(ctx, orgID, dates, "order_sync"); err != nil {
		log.Printf("[OrderSync] 组织 %d 重建触发失败: %v", orgID, err)
	}
}

// ==================== 构建与写入辅助 ====================

func (s *OrderSyncService) buildOrder(shop *model.Shop, p *dto.OrderPayload, customerIDMap map[int64]int64) *model.Order {
	totalQty := 0
	for _, item := range p.Items {
		totalQty += item.Quantity
	}

	order := &model.Order{
		ExternalID:          p.ExternalID,
		ShopID:              shop.ID,
		OrgID:               shop.OrgID,
		OrderNumber:         p.OrderNumber,
		FinancialStatus:     p.FinancialStatus,
		FulfillmentStatus:   p.FulfillmentStatus,
		SubtotalAmount:      p.SubtotalAmount,
		DiscountAmount:      p.DiscountAmount,
		TipAmount:           p.TipAmount,
		TotalAmount:         p.TotalAmount,
		Currency:            p.Currency,
		ItemCount:           len(p.Items),
		TotalQuantity:       totalQty,
		PlatformCreatedAt:   p.CreatedAt,
		PlatformProcessedAt: p.ProcessedAt,
		PlatformClosedAt:    p.ClosedAt,
		PlatformCancelledAt: p.CancelledAt,
	}
	if p.Customer != nil {
		order.CustomerID = customerIDMap[p.Customer.ExternalID]
	}
	now := time.Now()
	order.SyncedAt = &now
	return order
}

func (s *OrderSyncService) patchOrder(ctx context.Context, id int64, candidate *model.Order) error {
	now := time.Now()
	if err := s.orderRepo.UpdateFields(ctx, id, map[string]interface{}{
		"order_number":          candidate.OrderNumber,
		"customer_id":           candidate.CustomerID,
		"financial_status":      candidate.FinancialStatus,
		"fulfillment_status":    candidate.FulfillmentStatus,
		"subtotal_amount":       candidate.SubtotalAmount,
		"discount_amount":       candidate.DiscountAmount,
		"tip_amount":            candidate.TipAmount,
		"total_amount":          candidate.TotalAmount,
		"currency":              candidate.Currency,
		"item_count":            candidate.ItemCount,
		"total_quantity":        candidate.TotalQuantity,
		"platform_created_at":   candidate.PlatformCreatedAt,
		"platform_processed_at": candidate.PlatformProcessedAt,
		"platform_closed_at":    candidate.PlatformClosedAt,
		"platform_cancelled_at": candidate.PlatformCancelledAt,
		"synced_at":             &now,
	}); err != nil {
		return fmt.Errorf("更新订单失败: %w", err)
	}
	return nil
}

func (s *OrderSyncService) buildItem(shop *model.Shop, orderID int64, p *dto.OrderItemPayload) *model.OrderItem {
	item := &model.OrderItem{
		OrderID:             orderID,
		ExternalID:          p.ExternalID,
		ShopID:              shop.ID,
		ProductExternalID:   p.ProductExternalID,
		VariantExternalID:   p.VariantExternalID,
		Title:               p.Title,
		SKU:                 p.SKU,
		Quantity:            p.Quantity,
		FulfillableQuantity: p.FulfillableQuantity,
		PriceAmount:         p.PriceAmount,
		DiscountAmount:      p.DiscountAmount,
		Currency:            p.Currency,
	}
	if len(p.Properties) > 0 {
		props := make(datatypes.JSONMap, len(p.Properties))
		for k, v := range p.Properties {
			props[k] = v
		}
		item.Properties = props
	}
	return item
}

func (s *OrderSyncService) markChanged(changed map[int64]bool, createdAtByExt map[int64]time.Time, p *dto.OrderPayload) {
	changed[p.ExternalID] = true
	if p.CreatedAt != nil {
		createdAtByExt[p.ExternalID] = *p.CreatedAt
	}
}

func (s *OrderSyncService) failSession(ctx context.Context, sessionID int64, reason, detail string) {
	if sessionID == 0 {
		return
	}
	if err := s.sessionRepo.MarkFailed(ctx, sessionID, reason, detail); err != nil {
		log.Printf("[OrderSync] 标记同步会话 %d 失败出错: %v", sessionID, err)
	}
}

func (s *OrderSyncService) completeSession(ctx context.Context, sessionID, orgID int64) {
	if sessionID == 0 {
		return
	}
	if err := s.sessionRepo.MarkCompleted(ctx, sessionID); err != nil {
		log.Printf("[OrderSync] 标记同步会话 %d 完成出错: %v", sessionID, err)
	}
	s.onboarding.OnSyncBatchCompleted(ctx, orgID)
}

// DeleteOrder 级联删除订单及其全部子记录（显式删除事件使用）
func (s *OrderSyncService) DeleteOrder(ctx context.Context, orgID, shopID, externalID int64) error {
	shop, err := resolveShop(ctx, s.shopRepo, orgID, shopID)
	if err != nil {
		return err
	}
	order, err := s.orderRepo.GetByExternalID(ctx, shop.ID, externalID)
	if err != nil {
		return fmt.Errorf("查找订单 %d 失败: %w", externalID, err)
	}
	if order == nil {
		// 删除事件重复投递，静默幂等
		return nil
	}
	return s.orderRepo.DeleteCascade(ctx, order.ID)
}
