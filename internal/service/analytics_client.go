package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ==================== AnalyticsClient 分析服务客户端 ====================

// AnalyticsRebuilder 日分析重建入口（实现为 HTTP 客户端，测试可替换）
type AnalyticsRebuilder interface {
	RebuildDaily(ctx context.Context, orgID int64, date, scope string) error
}

// AnalyticsClient 内部分析服务 HTTP 客户端
type AnalyticsClient struct {
	baseURL string
	client  *resty.Client
}

// NewAnalyticsClient 创建分析服务客户端
func NewAnalyticsClient(baseURL string) *AnalyticsClient {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetHeader("User-Agent", "ShopSync-Go-App/1.0")
	return &AnalyticsClient{baseURL: baseURL, client: client}
}

// RebuildDaily 请求重建某组织某日的分析聚合
func (c *AnalyticsClient) RebuildDaily(ctx context.Context, orgID int64, date, scope string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"org_id": orgID,
			"date":   date,
			"scope":  scope,
		}).
		Post(c.baseURL + "/internal/analytics/daily/rebuild")
	if err != nil {
		return fmt.Errorf("分析重建请求失败: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("分析重建返回异常状态码 %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
