package service

import (
	"context"
	"fmt"
	"log"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"
)

// ==================== CollectionSyncService 集合同步 ====================

// CollectionSyncService 商品集合同步服务
type CollectionSyncService struct {
	shopRepo       repository.ShopRepository
	collectionRepo repository.CollectionRepository
}

// NewCollectionSyncService 创建集合同步服务
func NewCollectionSyncService(shopRepo repository.ShopRepository, collectionRepo repository.CollectionRepository) *CollectionSyncService {
	return &CollectionSyncService{shopRepo: shopRepo, collectionRepo: collectionRepo}
}

// UpsertCollections 集合批量 upsert
func (s *CollectionSyncService) UpsertCollections(ctx context.Context, orgID, shopID int64, payloads []dto.CollectionPayload) error {
	shop, err := resolveShop(ctx, s.shopRepo, orgID, shopID)
	if err != nil {
		return err
	}
	if !shop.IsActive() {
		log.Printf("[CollectionSync] 店铺 %d 已断开，跳过 %d 条集合写入", shop.ID, len(payloads))
		return nil
	}
	if len(payloads) == 0 {
		return nil
	}

	externalIDs := make([]int64, 0, len(payloads))
	for _, p := range payloads {
		externalIDs = append(externalIDs, p.ExternalID)
	}

	existingByExt := make(map[int64]model.Collection)
	for _, chunk := range chunkInt64(externalIDs, lookupChunkSize) {
		existing, err := s.collectionRepo.ListByExternalIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("批量查找集合失败: %w", err)
		}
		for _, c := range existing {
			existingByExt[c.ExternalID] = c
		}
	}

	for i := range payloads {
		p := &payloads[i]
		candidate := &model.Collection{
			OrgID:               shop.OrgID,
			ShopID:              shop.ID,
			ExternalID:          p.ExternalID,
			Title:               p.Title,
			Handle:              p.Handle,
			Kind:                p.Kind,
			PlatformPublishedAt: p.PublishedAt,
		}

		existing, found := existingByExt[p.ExternalID]
		if found {
			if !CollectionChanged(&existing, candidate) {
				continue
			}
			if err := s.collectionRepo.UpdateFields(ctx, existing.ID, map[string]interface{}{
				"title":                 candidate.Title,
				"handle":                candidate.Handle,
				"kind":                  candidate.Kind,
				"platform_published_at": candidate.PlatformPublishedAt,
			}); err != nil {
				return fmt.Errorf("更新集合 %d 失败: %w", p.ExternalID, err)
			}
			continue
		}

		if err := s.collectionRepo.Create(ctx, candidate); err != nil {
			log.Printf("[CollectionSync] 创建集合 %d 失败（可能为并发重复投递）: %v", p.ExternalID, err)
			if again, lookupErr := s.collectionRepo.ListByExternalIDs(ctx, shop.ID, []int64{p.ExternalID}); lookupErr == nil && len(again) > 0 {
				continue
			}
			return fmt.Errorf("创建集合 %d 失败: %w", p.ExternalID, err)
		}
	}
	return nil
}

// DeleteCollection 删除集合（显式删除事件使用，重复投递幂等）
func (s *CollectionSyncService) DeleteCollection(ctx context.Context, orgID, shopID, externalID int64) error {
	shop, err := resolveShop(ctx, s.shopRepo, orgID, shopID)
	if err != nil {
		return err
	}
	existing, err := s.collectionRepo.ListByExternalIDs(ctx, shop.ID, []int64{externalID})
	if err != nil {
		return fmt.Errorf("查找集合 %d 失败: %w", externalID, err)
	}
	if len(existing) == 0 {
		return nil
	}
	return s.collectionRepo.Delete(ctx, existing[0].ID)
}
