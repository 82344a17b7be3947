package service

import (
	"context"
	"fmt"
	"log"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"

	"github.com/lib/pq"
)

// ==================== ProductSyncService 商品与库存同步 ====================

// ProductSyncService 商品/变体/库存同步服务
type ProductSyncService struct {
	shopRepo      repository.ShopRepository
	productRepo   repository.ProductRepository
	variantRepo   repository.ProductVariantRepository
	inventoryRepo repository.InventoryRepository
}

// NewProductSyncService 创建商品同步服务
func NewProductSyncService(
	shopRepo repository.ShopRepository,
	productRepo repository.ProductRepository,
	variantRepo repository.ProductVariantRepository,
	inventoryRepo repository.InventoryRepository,
) *ProductSyncService {
	return &ProductSyncService{
		shopRepo:      shopRepo,
		productRepo:   productRepo,
		variantRepo:   variantRepo,
		inventoryRepo: inventoryRepo,
	}
}

// UpsertProducts 商品批量 upsert，变体作为子步骤跟随父商品处理
func (s *ProductSyncService) UpsertProducts(ctx context.Context, orgID, shopID int64, payloads []dto.ProductPayload) error {
	shop, err := resolveShop(ctx, s.shopRepo, orgID, shopID)
	if err != nil {
		return err
	}
	if !shop.IsActive() {
		log.Printf("[ProductSync] 店铺 %d 已断开，跳过 %d 条商品写入", shop.ID, len(payloads))
		return nil
	}
	if len(payloads) == 0 {
		return nil
	}

	externalIDs := make([]int64, 0, len(payloads))
	for _, p := range payloads {
		externalIDs = append(externalIDs, p.ExternalID)
	}

	existingByExt := make(map[int64]model.Product)
	for _, chunk := range chunkInt64(externalIDs, lookupChunkSize) {
		existing, err := s.productRepo.ListByExternalIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("批量查找商品失败: %w", err)
		}
		for _, p := range existing {
			existingByExt[p.ExternalID] = p
		}
	}

	productIDByExt := make(map[int64]int64, len(payloads))
	for i := range payloads {
		p := &payloads[i]
		candidate := &model.Product{
			OrgID:               shop.OrgID,
			ShopID:              shop.ID,
			ExternalID:          p.ExternalID,
			Title:               p.Title,
			Handle:              p.Handle,
			Status:              p.Status,
			Vendor:              p.Vendor,
			Tags:                pq.StringArray(p.Tags),
			VariantCount:        len(p.Variants),
			PlatformCreatedAt:   p.CreatedAt,
			PlatformPublishedAt: p.PublishedAt,
		}

		existing, found := existingByExt[p.ExternalID]
		if found {
			productIDByExt[p.ExternalID] = existing.ID
			if !ProductChanged(&existing, candidate) {
				continue
			}
			if err := s.productRepo.UpdateFields(ctx, existing.ID, map[string]interface{}{
				"title":                 candidate.Title,
				"handle":                candidate.Handle,
				"status":                candidate.Status,
				"vendor":                candidate.Vendor,
				"tags":                  candidate.Tags,
				"variant_count":         candidate.VariantCount,
				"platform_created_at":   candidate.PlatformCreatedAt,
				"platform_published_at": candidate.PlatformPublishedAt,
			}); err != nil {
				return fmt.Errorf("更新商品 %d 失败: %w", p.ExternalID, err)
			}
			continue
		}

		// 插入前按自然键再查一次，防御并发同键插入
		recheck, err := s.productRepo.GetByExternalID(ctx, shop.ID, p.ExternalID)
		if err != nil {
			return fmt.Errorf("商品 %d 二次查找失败: %w", p.ExternalID, err)
		}
		if recheck != nil {
			productIDByExt[p.ExternalID] = recheck.ID
			continue
		}
		if err := s.productRepo.Create(ctx, candidate); err != nil {
			log.Printf("[ProductSync] 创建商品 %d 失败（可能为并发重复投递）: %v", p.ExternalID, err)
			if again, lookupErr := s.productRepo.GetByExternalID(ctx, shop.ID, p.ExternalID); lookupErr == nil && again != nil {
				productIDByExt[p.ExternalID] = again.ID
				continue
			}
			return fmt.Errorf("创建商品 %d 失败: %w", p.ExternalID, err)
		}
		productIDByExt[p.ExternalID] = candidate.ID
	}

	return s.upsertVariants(ctx, shop, payloads, productIDByExt)
}

// upsertVariants 变体子步骤，父商品 ID 已解析
func (s *ProductSyncService) upsertVariants(ctx context.Context, shop *model.Shop, payloads []dto.ProductPayload, productIDByExt map[int64]int64) error {
	type variantWithParent struct {
		payload  *dto.VariantPayload
		parentID int64
	}

	var all []variantWithParent
	var extIDs []int64
	for i := range payloads {
		p := &payloads[i]
		parentID, ok := productIDByExt[p.ExternalID]
		if !ok {
			continue
		}
		for j := range p.Variants {
			all = append(all, variantWithParent{payload: &p.Variants[j], parentID: parentID})
			extIDs = append(extIDs, p.Variants[j].ExternalID)
		}
	}
	if len(all) == 0 {
		return nil
	}

	existingByExt := make(map[int64]model.ProductVariant)
	for _, chunk := range chunkInt64(extIDs, lookupChunkSize) {
		existing, err := s.variantRepo.ListByExternalIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("批量查找变体失败: %w", err)
		}
		for _, v := range existing {
			existingByExt[v.ExternalID] = v
		}
	}

	for _, entry := range all {
		p := entry.payload
		candidate := &model.ProductVariant{
			ProductID:               entry.parentID,
			ShopID:                  shop.ID,
			ExternalID:              p.ExternalID,
			Title:                   p.Title,
			PriceAmount:             p.PriceAmount,
			Currency:                p.Currency,
			SKU:                     p.SKU,
			Barcode:                 p.Barcode,
			Option1:                 p.Option1,
			Option2:                 p.Option2,
			Option3:                 p.Option3,
			InventoryItemExternalID: p.InventoryItemExternalID,
		}

		existing, found := existingByExt[p.ExternalID]
		if found {
			if !VariantChanged(&existing, candidate) {
				continue
			}
			if err := s.variantRepo.UpdateFields(ctx, existing.ID, map[string]interface{}{
				"product_id":                 candidate.ProductID,
				"title":                      candidate.Title,
				"price_amount":               candidate.PriceAmount,
				"currency":                   candidate.Currency,
				"sku":                        candidate.SKU,
				"barcode":                    candidate.Barcode,
				"option1":                    candidate.Option1,
				"option2":                    candidate.Option2,
				"option3":                    candidate.Option3,
				"inventory_item_external_id": candidate.InventoryItemExternalID,
			}); err != nil {
				return fmt.Errorf("更新变体 %d 失败: %w", p.ExternalID, err)
			}
			continue
		}

		if err := s.variantRepo.Create(ctx, candidate); err != nil {
			log.Printf("[ProductSync] 创建变体 %d 失败（可能为并发重复投递）: %v", p.ExternalID, err)
			if again, lookupErr := s.variantRepo.ListByExternalIDs(ctx, shop.ID, []int64{p.ExternalID}); lookupErr == nil && len(again) > 0 {
				continue
			}
			return fmt.Errorf("创建变体 %d 失败: %w", p.ExternalID, err)
		}
	}
	return nil
}

// UpsertInventoryLevels 库存层批量同步
// 约定一次 resync 里某库存项的全部层在同一批内到达：
// 批内未出现的已有库位视为失效并删除，随后整项重算聚合行
func (s *ProductSyncService) UpsertInventoryLevels(ctx context.Context, orgID, shopID int64, payloads []dto.InventoryLevelPayload) error {
	shop, err := resolveShop(ctx, s.shopRepo, orgID, shopID)
	if err != nil {
		return err
	}
	if !shop.IsActive() {
		log.Printf("[ProductSync] 店铺 %d 已断开，跳过 %d 条库存写入", shop.ID, len(payloads))
		return nil
	}
	if len(payloads) == 0 {
		return nil
	}

	// 按库存项分组
	byItem := make(map[int64][]dto.InventoryLevelPayload)
	for _, p := range payloads {
		byItem[p.InventoryItemExternalID] = append(byItem[p.InventoryItemExternalID], p)
	}

	itemIDs := make([]int64, 0, len(byItem))
	for id := range byItem {
		itemIDs = append(itemIDs, id)
	}

	existingByKey := make(map[[2]int64]model.InventoryLevel) // (item, location)
	for _, chunk := range chunkInt64(itemIDs, lookupChunkSize) {
		existing, err := s.inventoryRepo.ListLevelsByItemIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("批量查找库存层失败: %w", err)
		}
		for _, lv := range existing {
			existingByKey[[2]int64{lv.InventoryItemExternalID, lv.LocationExternalID}] = lv
		}
	}

	// 逐项处理：写入/更新批内库位，删除失效库位，重算聚合
	for itemID, levels := range byItem {
		seenLocations := make(map[int64]bool, len(levels))
		var totalAvailable, totalIncoming, totalCommitted int64

		for i := range levels {
			p := &levels[i]
			seenLocations[p.LocationExternalID] = true
			totalAvailable += p.Available
			totalIncoming += p.Incoming
			totalCommitted += p.Committed

			candidate := &model.InventoryLevel{
				ShopID:                  shop.ID,
				InventoryItemExternalID: p.InventoryItemExternalID,
				LocationExternalID:      p.LocationExternalID,
				Available:               p.Available,
				Incoming:                p.Incoming,
				Committed:               p.Committed,
			}

			existing, found := existingByKey[[2]int64{itemID, p.LocationExternalID}]
			if found {
				if !InventoryLevelChanged(&existing, candidate) {
					continue
				}
				if err := s.inventoryRepo.UpdateLevelFields(ctx, existing.ID, map[string]interface{}{
					"available": candidate.Available,
					"incoming":  candidate.Incoming,
					"committed": candidate.Committed,
				}); err != nil {
					return fmt.Errorf("更新库存层 (%d,%d) 失败: %w", itemID, p.LocationExternalID, err)
				}
				continue
			}
			if err := s.inventoryRepo.CreateLevel(ctx, candidate); err != nil {
				return fmt.Errorf("创建库存层 (%d,%d) 失败: %w", itemID, p.LocationExternalID, err)
			}
		}

		// 清理批内未出现的库位
		var staleIDs []int64
		for key, lv := range existingByKey {
			if key[0] == itemID && !seenLocations[key[1]] {
				staleIDs = append(staleIDs, lv.ID)
			}
		}
		if len(staleIDs) > 0 {
			if err := s.inventoryRepo.DeleteLevels(ctx, staleIDs); err != nil {
				return fmt.Errorf("清理失效库存层失败: %w", err)
			}
		}

		if err := s.inventoryRepo.UpsertTotal(ctx, &model.InventoryTotal{
			ShopID:                  shop.ID,
			InventoryItemExternalID: itemID,
			Available:               totalAvailable,
			Incoming:                totalIncoming,
			Committed:               totalCommitted,
		}); err != nil {
			return fmt.Errorf("更新库存聚合 %d 失败: %w", itemID, err)
		}
	}

	return s.refreshProductCounts(ctx, shop, itemIDs)
}

// RemoveInventoryItems 库存项删除事件：变体不再供货时清掉其全部库存层和聚合行
func (s *ProductSyncService) RemoveInventoryItems(ctx context.Context, orgID, shopID int64, itemIDs []int64) error {
	shop, err := resolveShop(ctx, s.shopRepo, orgID, shopID)
	if err != nil {
		return err
	}
	if !shop.IsActive() {
		log.Printf("[ProductSync] 店铺 %d 已断开，跳过 %d 个库存项删除", shop.ID, len(itemIDs))
		return nil
	}
	if len(itemIDs) == 0 {
		return nil
	}

	for _, chunk := range chunkInt64(itemIDs, lookupChunkSize) {
		levels, err := s.inventoryRepo.ListLevelsByItemIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("批量查找库存层失败: %w", err)
		}
		levelIDs := make([]int64, 0, len(levels))
		for _, lv := range levels {
			levelIDs = append(levelIDs, lv.ID)
		}
		if len(levelIDs) > 0 {
			if err := s.inventoryRepo.DeleteLevels(ctx, levelIDs); err != nil {
				return fmt.Errorf("删除库存层失败: %w", err)
			}
		}
	}
	for _, itemID := range itemIDs {
		if err := s.inventoryRepo.DeleteTotal(ctx, shop.ID, itemID); err != nil {
			return fmt.Errorf("删除库存聚合 %d 失败: %w", itemID, err)
		}
	}

	// 受影响的商品按全量变体重算库存计数，未删的库存项照常计入
	productSeen := make(map[int64]bool)
	for _, chunk := range chunkInt64(itemIDs, lookupChunkSize) {
		vs, err := s.variantRepo.ListByItemExternalIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("按库存项查找变体失败: %w", err)
		}
		for _, v := range vs {
			productSeen[v.ProductID] = true
		}
	}
	for productID := range productSeen {
		variants, err := s.variantRepo.ListByProductID(ctx, productID)
		if err != nil {
			return fmt.Errorf("查找商品 %d 变体失败: %w", productID, err)
		}
		allItems := make([]int64, 0, len(variants))
		for _, v := range variants {
			if v.InventoryItemExternalID > 0 {
				allItems = append(allItems, v.InventoryItemExternalID)
			}
		}
		var count int64
		if len(allItems) > 0 {
			totals, err := s.inventoryRepo.ListTotalsByItemIDs(ctx, shop.ID, allItems)
			if err != nil {
				return fmt.Errorf("查找库存聚合失败: %w", err)
			}
			for _, t := range totals {
				count += t.Available
			}
		}
		if err := s.productRepo.UpdateFields(ctx, productID, map[string]interface{}{
			"inventory_count": count,
		}); err != nil {
			return fmt.Errorf("回写商品 %d 库存计数失败: %w", productID, err)
		}
	}
	return nil
}

// refreshProductCounts 把库存项聚合回写到商品冗余字段
func (s *ProductSyncService) refreshProductCounts(ctx context.Context, shop *model.Shop, itemIDs []int64) error {
	var variants []model.ProductVariant
	for _, chunk := range chunkInt64(itemIDs, lookupChunkSize) {
		vs, err := s.variantRepo.ListByItemExternalIDs(ctx, shop.ID, chunk)
		if err != nil {
			return fmt.Errorf("按库存项查找变体失败: %w", err)
		}
		variants = append(variants, vs...)
	}
	if len(variants) == 0 {
		return nil
	}

	itemsByProduct := make(map[int64][]int64)
	for _, v := range variants {
		if v.InventoryItemExternalID > 0 {
			itemsByProduct[v.ProductID] = append(itemsByProduct[v.ProductID], v.InventoryItemExternalID)
		}
	}

	for productID, items := range itemsByProduct {
		totals, err := s.inventoryRepo.ListTotalsByItemIDs(ctx, shop.ID, items)
		if err != nil {
			return fmt.Errorf("查找库存聚合失败: %w", err)
		}
		var count int64
		for _, t := range totals {
			count += t.Available
		}
		if err := s.productRepo.UpdateFields(ctx, productID, map[string]interface{}{
			"inventory_count": count,
		}); err != nil {
			return fmt.Errorf("回写商品 %d 库存计数失败: %w", productID, err)
		}
	}
	return nil
}

// DeleteProduct 级联删除商品及其变体、库存层和聚合行（显式删除事件使用）
func (s *ProductSyncService) DeleteProduct(ctx context.Context, orgID, shopID, externalID int64) error {
	shop, err := resolveShop(ctx, s.shopRepo, orgID, shopID)
	if err != nil {
		return err
	}
	product, err := s.productRepo.GetByExternalID(ctx, shop.ID, externalID)
	if err != nil {
		return fmt.Errorf("查找商品 %d 失败: %w", externalID, err)
	}
	if product == nil {
		// 删除事件重复投递，静默幂等
		return nil
	}
	return s.productRepo.DeleteCascade(ctx, product.ID)
}
