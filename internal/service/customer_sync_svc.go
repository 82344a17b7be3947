package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"shopsync_v1_202608/internal/api/dto"
	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"
)

// ==================== CustomerSyncService 客户同步 ====================

// CustomerSyncService 客户同步服务
// 客户随订单懒创建；更新为非破坏性合并：载荷提供的字段覆盖，缺失的字段保留
type CustomerSyncService struct {
	shopRepo     repository.ShopRepository
	customerRepo repository.CustomerRepository
}

// NewCustomerSyncService 创建客户同步服务
func NewCustomerSyncService(
	shopRepo repository.ShopRepository,
	customerRepo repository.CustomerRepository,
) *CustomerSyncService {
	return &CustomerSyncService{
		shopRepo:     shopRepo,
		customerRepo: customerRepo,
	}
}

// MergeCustomerPayloads 合并同批次内指向同一客户的多份载荷
// 同字段后到的非空值胜出；CreatedAt 取平台提供值，全部缺失时留空由调用方回填
func MergeCustomerPayloads(payloads []dto.CustomerPayload) map[int64]dto.CustomerPayload {
	merged := make(map[int64]dto.CustomerPayload)
	for _, p := range payloads {
		cur, ok := merged[p.ExternalID]
		if !ok {
			merged[p.ExternalID] = p
			continue
		}
		if p.Email != nil {
			cur.Email = p.Email
		}
		if p.FirstName != nil {
			cur.FirstName = p.FirstName
		}
		if p.LastName != nil {
			cur.LastName = p.LastName
		}
		if p.Phone != nil {
			cur.Phone = p.Phone
		}
		if p.City != nil {
			cur.City = p.City
		}
		if p.CountryCode != nil {
			cur.CountryCode = p.CountryCode
		}
		if p.CreatedAt != nil {
			cur.CreatedAt = p.CreatedAt
		}
		merged[p.ExternalID] = cur
	}
	return merged
}

// UpsertCustomers 客户批量 upsert
// fallbackCreated: 平台未提供创建时间时的回填值（该客户最早订单时间），可为 nil
// 返回 自然键 → 本地 ID 的映射，供订单写入 CustomerID
func (s *CustomerSyncService) UpsertCustomers(
	ctx context.Context,
	shop *model.Shop,
	payloads map[int64]dto.CustomerPayload,
	fallbackCreated map[int64]time.Time,
) (map[int64]int64, error) {
	idMap := make(map[int64]int64, len(payloads))
	if len(payloads) == 0 {
		return idMap, nil
	}

	externalIDs := make([]int64, 0, len(payloads))
	for id := range payloads {
		externalIDs = append(externalIDs, id)
	}

	// 分块批量解析已有客户
	existingByExt := make(map[int64]model.Customer)
	for _, chunk := range chunkInt64(externalIDs, lookupChunkSize) {
		existing, err := s.customerRepo.ListByExternalIDs(ctx, shop.ID, chunk)
		if err != nil {
			return nil, fmt.Errorf("批量查找客户失败: %w", err)
		}
		for _, c := range existing {
			existingByExt[c.ExternalID] = c
		}
	}

	for extID, p := range payloads {
		existing, found := existingByExt[extID]
		candidate := s.buildCandidate(shop, &p, &existing, found, fallbackCreated)

		if found {
			if !CustomerChanged(&existing, candidate) {
				idMap[extID] = existing.ID
				continue
			}
			if err := s.customerRepo.UpdateFields(ctx, existing.ID, map[string]interface{}{
				"email":               candidate.Email,
				"first_name":          candidate.FirstName,
				"last_name":           candidate.LastName,
				"phone":               candidate.Phone,
				"city":                candidate.City,
				"country_code":        candidate.CountryCode,
				"platform_created_at": candidate.PlatformCreatedAt,
			}); err != nil {
				return nil, fmt.Errorf("更新客户 %d 失败: %w", extID, err)
			}
			idMap[extID] = existing.ID
			continue
		}

		// 插入前按自然键再查一次，防御并发重复投递
		recheck, err := s.customerRepo.GetByExternalID(ctx, shop.ID, extID)
		if err != nil {
			return nil, fmt.Errorf("客户 %d 二次查找失败: %w", extID, err)
		}
		if recheck != nil {
			candidate = s.buildCandidate(shop, &p, recheck, true, fallbackCreated)
			if CustomerChanged(recheck, candidate) {
				if err := s.customerRepo.UpdateFields(ctx, recheck.ID, map[string]interface{}{
					"email":               candidate.Email,
					"first_name":          candidate.FirstName,
					"last_name":           candidate.LastName,
					"phone":               candidate.Phone,
					"city":                candidate.City,
					"country_code":        candidate.CountryCode,
					"platform_created_at": candidate.PlatformCreatedAt,
				}); err != nil {
					return nil, fmt.Errorf("更新客户 %d 失败: %w", extID, err)
				}
			}
			idMap[extID] = recheck.ID
			continue
		}

		if err := s.customerRepo.Create(ctx, candidate); err != nil {
			// 极小概率的并发插入撞唯一键：可恢复，记录后继续
			log.Printf("[CustomerSync] 创建客户 %d 失败（可能为并发重复投递）: %v", extID, err)
			if again, lookupErr := s.customerRepo.GetByExternalID(ctx, shop.ID, extID); lookupErr == nil && again != nil {
				idMap[extID] = again.ID
				continue
			}
			return nil, fmt.Errorf("创建客户 %d 失败: %w", extID, err)
		}
		idMap[extID] = candidate.ID
	}

	return idMap, nil
}

// buildCandidate 在已有记录基础上合并载荷，缺失字段保留原值
func (s *CustomerSyncService) buildCandidate(
	shop *model.Shop,
	p *dto.CustomerPayload,
	existing *model.Customer,
	found bool,
	fallbackCreated map[int64]time.Time,
) *model.Customer {
	candidate := &model.Customer{
		OrgID:      shop.OrgID,
		ShopID:     shop.ID,
		ExternalID: p.ExternalID,
	}
	if found {
		candidate.Email = existing.Email
		candidate.FirstName = existing.FirstName
		candidate.LastName = existing.LastName
		candidate.Phone = existing.Phone
		candidate.City = existing.City
		candidate.CountryCode = existing.CountryCode
		candidate.PlatformCreatedAt = existing.PlatformCreatedAt
	}
	if p.Email != nil {
		candidate.Email = *p.Email
	}
	if p.FirstName != nil {
		candidate.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		candidate.LastName = *p.LastName
	}
	if p.Phone != nil {
		candidate.Phone = *p.Phone
	}
	if p.City != nil {
		candidate.City = *p.City
	}
	if p.CountryCode != nil {
		candidate.CountryCode = *p.CountryCode
	}
	if p.CreatedAt != nil {
		candidate.PlatformCreatedAt = p.CreatedAt
	}
	// 平台未提供创建时间时，回填为该客户最早订单时间
	if candidate.PlatformCreatedAt == nil && fallbackCreated != nil {
		if t, ok := fallbackCreated[p.ExternalID]; ok {
			candidate.PlatformCreatedAt = &t
		}
	}
	return candidate
}
