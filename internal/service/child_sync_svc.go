package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"

	"github.com/lib/pq"
)

// ==================== ChildSyncService 订单子记录同步 ====================

const (
	// 孤儿重试间隔与上限：父订单通常在几秒内到达
	childRetryDelay       = 5 * time.Second
	childRetryMaxAttempts = 5
)

// ChildSyncService 交易/退款/履约同步服务
// 子记录到达时携带平台侧订单 ID；父订单尚未入库的记录不丢弃，
// 落为延迟任务等父记录到达后重试
type ChildSyncService struct {
	shopRepo   repository.ShopRepository
	orderRepo  repository.OrderRepository
	txnRepo    repository.TransactionRepository
	refundRepo repository.RefundRepository
	ffmRepo    repository.FulfillmentRepository

	scheduler TaskScheduler
}

// NewChildSyncService 创建子记录同步服务
func NewChildSyncService(
	shopRepo repository.ShopRepository,
	orderRepo repository.OrderRepository,
	txnRepo repository.TransactionRepository,
	refundRepo repository.RefundRepository,
	ffmRepo repository.FulfillmentRepository,
	scheduler TaskScheduler,
) *ChildSyncService {
	return &ChildSyncService{
		shopRepo:   shopRepo,
		orderRepo:  orderRepo,
		txnRepo:    txnRepo,
		refundRepo: refundRepo,
		ffmRepo:    ffmRepo,
		scheduler:  scheduler,
	}
}

// resolveParents 把批内引用的平台订单 ID 解析为本地订单 ID
func (s *ChildSyncService) resolveParents(ctx context.Context, shopID int64, externalOrderIDs []int64) (map[int64]int64, error) {
	seen := make(map[int64]bool, len(externalOrderIDs))
	var unique []int64
	for _, id := range externalOrderIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	parentByExt := make(map[int64]int64, len(unique))
	for _, chunk := range chunkInt64(unique, lookupChunkSize) {
		orders, err := s.orderRepo.ListByExternalIDs(ctx, shopID, chunk)
		if err != nil {
			return nil, fmt.Errorf("解析父订单失败: %w", err)
		}
		for _, o := range orders {
			parentByExt[o.ExternalID] = o.ID
		}
	}
	return parentByExt, nil
}

// scheduleRetry 孤儿子记录落任务重试
// 超过重试上限的批次记终态告警后放弃（自然键留日志便于人工排查）
func (s *ChildSyncService) scheduleRetry(ctx context.Context, args *dto.ChildRetryArgs, orphanKeys []int64) {
	if args.Attempt >= childRetryMaxAttempts {
		log.Printf("[ChildSync] 店铺 %d %s 孤儿记录重试 %d 次后放弃: %v",
			args.ShopID, args.Kind, args.Attempt, orphanKeys)
		return
	}
	args.Attempt++
	if err := s.scheduler.Schedule(ctx, childRetryDelay, model.TaskTypeChildSyncRetry, args); err != nil {
		log.Printf("[ChildSync] 店铺 %d %s 孤儿重试任务调度失败: %v", args.ShopID, args.Kind, err)
	}
}

// ---------- Transaction ----------

// UpsertTransactions 交易批量 upsert
// attempt 为孤儿重试轮次，首次投递传 0
func (s *ChildSyncService) UpsertTransactions(ctx context.Context, orgID, shopID int64, payloads []dto.TransactionPayload, attempt int) error {
	shop, err := resolveShop(ctx, s.shopRepo, orgID, shopID)
	if err != nil {
		return err
	}
	if !shop.IsActive() {
		log.Printf("[ChildSync] 店铺 %d 已断开，跳过 %d 条交易写入", shop.ID, len(payloads))
		return nil
	}
	if len(payloads) == 0 {
		return nil
	}

	orderExtIDs := make([]int64, 0, len(payloads))
	extIDs := make([]int64, 0, len(payloads))
	for _, p := range payloads {
		orderExtIDs = append(orderExtIDs, p.ExternalOrderID)
		extIDs = append(extIDs, p.ExternalID)
	}
	parentByExt, err := s.resolveParents(ctx, shop.ID, orderExtIDs)
	if err != nil {
		return err
	}

	existingByExt := make(map[int64]model.Transaction)
	for _, chunk := range chunkInt64(extIDs, lookupChunkSize) {
		existing, err := s.txnRepo.ListByExternalIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("批量查找交易失败: %w", err)
		}
		for _, t := range existing {
			existingByExt[t.ExternalID] = t
		}
	}

	var orphans []dto.TransactionPayload
	var orphanKeys []int64
	for i := range payloads {
		p := &payloads[i]
		orderID, ok := parentByExt[p.ExternalOrderID]
		if !ok {
			orphans = append(orphans, *p)
			orphanKeys = append(orphanKeys, p.ExternalID)
			continue
		}

		candidate := &model.Transaction{
			OrderID:         orderID,
			ExternalID:      p.ExternalID,
			ShopID:          shop.ID,
			ExternalOrderID: p.ExternalOrderID,
			Kind:            p.Kind,
			Status:          p.Status,
			Gateway:         p.Gateway,
			Amount:          p.Amount,
			Currency:        p.Currency,
			ProcessedAt:     p.ProcessedAt,
		}

		existing, found := existingByExt[p.ExternalID]
		if found {
			if !TransactionChanged(&existing, candidate) {
				continue
			}
			if err := s.txnRepo.UpdateFields(ctx, existing.ID, map[string]interface{}{
				"order_id":     candidate.OrderID,
				"kind":         candidate.Kind,
				"status":       candidate.Status,
				"gateway":      candidate.Gateway,
				"amount":       candidate.Amount,
				"currency":     candidate.Currency,
				"processed_at": candidate.ProcessedAt,
			}); err != nil {
				return fmt.Errorf("更新交易 %d 失败: %w", p.ExternalID, err)
			}
			continue
		}

		if err := s.createTransaction(ctx, shop.ID, candidate); err != nil {
			return err
		}
	}

	if len(orphans) > 0 {
		s.scheduleRetry(ctx, &dto.ChildRetryArgs{
			OrgID:        orgID,
			ShopID:       shop.ID,
			Kind:         dto.ChildKindTransaction,
			Transactions: orphans,
			Attempt:      attempt,
		}, orphanKeys)
	}
	return nil
}

func (s *ChildSyncService) createTransaction(ctx context.Context, shopID int64, candidate *model.Transaction) error {
	// 插入前按自然键再查一次，防御并发同键插入
	recheck, err := s.txnRepo.ListByExternalIDs(ctx, shopID, []int64{candidate.ExternalID})
	if err != nil {
		return fmt.Errorf("交易 %d 二次查找失败: %w", candidate.ExternalID, err)
	}
	if len(recheck) > 0 {
		return nil
	}
	if err := s.txnRepo.Create(ctx, candidate); err != nil {
		log.Printf("[ChildSync] 创建交易 %d 失败（可能为并发重复投递）: %v", candidate.ExternalID, err)
		if again, lookupErr := s.txnRepo.ListByExternalIDs(ctx, shopID, []int64{candidate.ExternalID}); lookupErr == nil && len(again) > 0 {
			return nil
		}
		return fmt.Errorf("创建交易 %d 失败: %w", candidate.ExternalID, err)
	}
	return nil
}

// ---------- Refund ----------

// UpsertRefunds 退款批量 upsert
func (s *ChildSyncService) UpsertRefunds(ctx context.Context, orgID, shopID int64, payloads []dto.RefundPayload, attempt int) error {
	shop, err := resolveShop(ctx, s.shopRepo, orgID, shopID)
	if err != nil {
		return err
	}
	if !shop.IsActive() {
		log.Printf("[ChildSync] 店铺 %d 已断开，跳过 %d 条退款写入", shop.ID, len(payloads))
		return nil
	}
	if len(payloads) == 0 {
		return nil
	}

	orderExtIDs := make([]int64, 0, len(payloads))
	extIDs := make([]int64, 0, len(payloads))
	for _, p := range payloads {
		orderExtIDs = append(orderExtIDs, p.ExternalOrderID)
		extIDs = append(extIDs, p.ExternalID)
	}
	parentByExt, err := s.resolveParents(ctx, shop.ID, orderExtIDs)
	if err != nil {
		return err
	}

	existingByExt := make(map[int64]model.Refund)
	for _, chunk := range chunkInt64(extIDs, lookupChunkSize) {
		existing, err := s.refundRepo.ListByExternalIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("批量查找退款失败: %w", err)
		}
		for _, rf := range existing {
			existingByExt[rf.ExternalID] = rf
		}
	}

	var orphans []dto.RefundPayload
	var orphanKeys []int64
	for i := range payloads {
		p := &payloads[i]
		orderID, ok := parentByExt[p.ExternalOrderID]
		if !ok {
			orphans = append(orphans, *p)
			orphanKeys = append(orphanKeys, p.ExternalID)
			continue
		}

		candidate := &model.Refund{
			OrderID:         orderID,
			ExternalID:      p.ExternalID,
			ShopID:          shop.ID,
			ExternalOrderID: p.ExternalOrderID,
			Amount:          p.Amount,
			Currency:        p.Currency,
			Note:            p.Note,
			ProcessedAt:     p.ProcessedAt,
		}

		existing, found := existingByExt[p.ExternalID]
		if found {
			if !RefundChanged(&existing, candidate) {
				continue
			}
			if err := s.refundRepo.UpdateFields(ctx, existing.ID, map[string]interface{}{
				"order_id":     candidate.OrderID,
				"amount":       candidate.Amount,
				"currency":     candidate.Currency,
				"note":         candidate.Note,
				"processed_at": candidate.ProcessedAt,
			}); err != nil {
				return fmt.Errorf("更新退款 %d 失败: %w", p.ExternalID, err)
			}
			continue
		}

		recheck, err := s.refundRepo.ListByExternalIDs(ctx, shop.ID, []int64{p.ExternalID})
		if err != nil {
			return fmt.Errorf("退款 %d 二次查找失败: %w", p.ExternalID, err)
		}
		if len(recheck) > 0 {
			continue
		}
		if err := s.refundRepo.Create(ctx, candidate); err != nil {
			log.Printf("[ChildSync] 创建退款 %d 失败（可能为并发重复投递）: %v", p.ExternalID, err)
			if again, lookupErr := s.refundRepo.ListByExternalIDs(ctx, shop.ID, []int64{p.ExternalID}); lookupErr == nil && len(again) > 0 {
				continue
			}
			return fmt.Errorf("创建退款 %d 失败: %w", p.ExternalID, err)
		}
	}

	if len(orphans) > 0 {
		s.scheduleRetry(ctx, &dto.ChildRetryArgs{
			OrgID:   orgID,
			ShopID:  shop.ID,
			Kind:    dto.ChildKindRefund,
			Refunds: orphans,
			Attempt: attempt,
		}, orphanKeys)
	}
	return nil
}

// ---------- Fulfillment ----------

// UpsertFulfillments 履约批量 upsert
func (s *ChildSyncService) UpsertFulfillments(ctx context.Context, orgID, shopID int64, payloads []dto.FulfillmentPayload, attempt int) error {
	shop, err := resolveShop(ctx, s.shopRepo, orgID, shopID)
	if err != nil {
		return err
	}
	if !shop.IsActive() {
		log.Printf("[ChildSync] 店铺 %d 已断开，跳过 %d 条履约写入", shop.ID, len(payloads))
		return nil
	}
	if len(payloads) == 0 {
		return nil
	}

	orderExtIDs := make([]int64, 0, len(payloads))
	extIDs := make([]int64, 0, len(payloads))
	for _, p := range payloads {
		orderExtIDs = append(orderExtIDs, p.ExternalOrderID)
		extIDs = append(extIDs, p.ExternalID)
	}
	parentByExt, err := s.resolveParents(ctx, shop.ID, orderExtIDs)
	if err != nil {
		return err
	}

	existingByExt := make(map[int64]model.Fulfillment)
	for _, chunk := range chunkInt64(extIDs, lookupChunkSize) {
		existing, err := s.ffmRepo.ListByExternalIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("批量查找履约失败: %w", err)
		}
		for _, f := range existing {
			existingByExt[f.ExternalID] = f
		}
	}

	var orphans []dto.FulfillmentPayload
	var orphanKeys []int64
	for i := range payloads {
		p := &payloads[i]
		orderID, ok := parentByExt[p.ExternalOrderID]
		if !ok {
			orphans = append(orphans, *p)
			orphanKeys = append(orphanKeys, p.ExternalID)
			continue
		}

		candidate := &model.Fulfillment{
			OrderID:         orderID,
			ExternalID:      p.ExternalID,
			ShopID:          shop.ID,
			ExternalOrderID: p.ExternalOrderID,
			ShipmentStatus:  p.ShipmentStatus,
			TrackingCompany: p.TrackingCompany,
			TrackingNumbers: pq.StringArray(p.TrackingNumbers),
			TrackingURLs:    pq.StringArray(p.TrackingURLs),
		}

		existing, found := existingByExt[p.ExternalID]
		if found {
			if !FulfillmentChanged(&existing, candidate) {
				continue
			}
			if err := s.ffmRepo.UpdateFields(ctx, existing.ID, map[string]interface{}{
				"order_id":         candidate.OrderID,
				"shipment_status":  candidate.ShipmentStatus,
				"tracking_company": candidate.TrackingCompany,
				"tracking_numbers": candidate.TrackingNumbers,
				"tracking_urls":    candidate.TrackingURLs,
			}); err != nil {
				return fmt.Errorf("更新履约 %d 失败: %w", p.ExternalID, err)
			}
			continue
		}

		recheck, err := s.ffmRepo.ListByExternalIDs(ctx, shop.ID, []int64{p.ExternalID})
		if err != nil {
			return fmt.Errorf("履约 %d 二次查找失败: %w", p.ExternalID, err)
		}
		if len(recheck) > 0 {
			continue
		}
		if err := s.ffmRepo.Create(ctx, candidate); err != nil {
			log.Printf("[ChildSync] 创建履约 %d 失败（可能为并发重复投递）: %v", p.ExternalID, err)
			if again, lookupErr := s.ffmRepo.ListByExternalIDs(ctx, shop.ID, []int64{p.ExternalID}); lookupErr == nil && len(again) > 0 {
				continue
			}
			return fmt.Errorf("创建履约 %d 失败: %w", p.ExternalID, err)
		}
	}

	if len(orphans) > 0 {
		s.scheduleRetry(ctx, &dto.ChildRetryArgs{
			OrgID:        orgID,
			ShopID:       shop.ID,
			Kind:         dto.ChildKindFulfillment,
			Fulfillments: orphans,
			Attempt:      attempt,
		}, orphanKeys)
	}
	return nil
}
