package repository

import (
	"context"
	"fmt"

	"shopsync_v1_202608/internal/model"

	"gorm.io/gorm"
)

// ==================== 可清理表注册 ====================

// purgeTable 可清理表的元信息
type purgeTable struct {
	model   interface{}
	orgCol  string // 组织作用域列，空表示不支持
	shopCol string // 店铺作用域列，空表示不支持
}

// purgeRegistry 批量删除引擎可操作的表
// 注册之外的表一律拒绝，防止任务载荷被构造成删除任意表
var purgeRegistry = map[string]purgeTable{
	"orders":           {model: &model.Order{}, orgCol: "org_id", shopCol: "shop_id"},
	"order_items":      {model: &model.OrderItem{}, shopCol: "shop_id"},
	"transactions":     {model: &model.Transaction{}, shopCol: "shop_id"},
	"refunds":          {model: &model.Refund{}, shopCol: "shop_id"},
	"fulfillments":     {model: &model.Fulfillment{}, shopCol: "shop_id"},
	"products":         {model: &model.Product{}, orgCol: "org_id", shopCol: "shop_id"},
	"product_variants": {model: &model.ProductVariant{}, shopCol: "shop_id"},
	"inventory_levels": {model: &model.InventoryLevel{}, shopCol: "shop_id"},
	"inventory_totals": {model: &model.InventoryTotal{}, shopCol: "shop_id"},
	"customers":        {model: &model.Customer{}, orgCol: "org_id", shopCol: "shop_id"},
	"collections":      {model: &model.Collection{}, orgCol: "org_id", shopCol: "shop_id"},
	"sessions":         {model: &model.Session{}, shopCol: "shop_id"},
	"sync_sessions":    {model: &model.SyncSession{}, orgCol: "org_id", shopCol: "shop_id"},
	"dashboards":       {model: &model.Dashboard{}, orgCol: "org_id"},
}

// PurgeShopTables 店铺作用域下需要清理的表（卸载编排按此扇出）
func PurgeShopTables() []string {
	return []string{
		"order_items", "transactions", "refunds", "fulfillments", "orders",
		"product_variants", "inventory_levels", "inventory_totals", "products",
		"customers", "collections", "sessions", "sync_sessions",
	}
}

// PurgeOrgTables 组织作用域下需要清理的表
func PurgeOrgTables() []string {
	return []string{"orders", "products", "customers", "collections", "sync_sessions"}
}

// ==================== PurgeRepository 批量删除仓库 ====================

// PurgeScope 删除作用域
type PurgeScope struct {
	OrgID  int64
	ShopID int64
}

// PurgeRepository 批量删除仓库接口
type PurgeRepository interface {
	// DeletePage 删除一页记录，返回本页删除数、续页游标与是否还有剩余
	DeletePage(ctx context.Context, table string, scope PurgeScope, cursor int64, limit int) (deleted int64, nextCursor int64, hasMore bool, err error)
	// CountScoped 作用域内剩余行数（店铺删除前的空检查用）
	CountScoped(ctx context.Context, table string, scope PurgeScope) (int64, error)
}

type purgeRepository struct {
	db *gorm.DB
}

// NewPurgeRepository 创建批量删除仓库
func NewPurgeRepository(db *gorm.DB) PurgeRepository {
	return &purgeRepository{db: db}
}

func (r *purgeRepository) scopedQuery(ctx context.Context, table string, scope PurgeScope) (*gorm.DB, error) {
	entry, ok := purgeRegistry[table]
	if !ok {
		return nil, fmt.Errorf("表 %s 未注册为可清理表", table)
	}
	db := r.db.WithContext(ctx).Unscoped().Model(entry.model)
	switch {
	case scope.ShopID > 0 && entry.shopCol != "":
		return db.Where(entry.shopCol+" = ?", scope.ShopID), nil
	case scope.OrgID > 0 && entry.orgCol != "":
		return db.Where(entry.orgCol+" = ?", scope.OrgID), nil
	default:
		return nil, fmt.Errorf("表 %s 不支持该删除作用域", table)
	}
}

func (r *purgeRepository) DeletePage(ctx context.Context, table string, scope PurgeScope, cursor int64, limit int) (int64, int64, bool, error) {
	query, err := r.scopedQuery(ctx, table, scope)
	if err != nil {
		return 0, 0, false, err
	}

	var ids []int64
	if err := query.Where("id > ?", cursor).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return 0, 0, false, err
	}
	if len(ids) == 0 {
		return 0, cursor, false, nil
	}

	entry := purgeRegistry[table]
	result := r.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Delete(entry.model)
	if result.Error != nil {
		return 0, 0, false, result.Error
	}

	nextCursor := ids[len(ids)-1]
	// 取满一整页说明后面可能还有
	hasMore := len(ids) == limit
	return result.RowsAffected, nextCursor, hasMore, nil
}

func (r *purgeRepository) CountScoped(ctx context.Context, table string, scope PurgeScope) (int64, error) {
	query, err := r.scopedQuery(ctx, table, scope)
	if err != nil {
		return 0, err
	}
	var count int64
	err = query.Count(&count).Error
	return count, err
}
