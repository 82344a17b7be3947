package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 手动触发限流 ====================

// TriggerRateLimiter 手动触发限流器
// 防止管理端频繁触发 resync/重建导致平台 API 限流
type TriggerRateLimiter struct {
	locks sync.Map // key -> *lockEntry
}

type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

var globalLimiter = &TriggerRateLimiter{}

// GetLimiter 获取全局限流器
func GetLimiter() *TriggerRateLimiter {
	return globalLimiter
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Check 检查是否允许执行，允许时更新最后执行时间
func (r *TriggerRateLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)
	if elapsed < interval {
		return CheckResult{Allowed: false, RetryAfter: interval - elapsed}
	}
	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的限流
func (r *TriggerRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== 触发类型与 Key ====================

// TriggerType 手动触发类型
type TriggerType string

const (
	TriggerTypeResync    TriggerType = "resync"
	TriggerTypeRebuild   TriggerType = "rebuild"
	TriggerTypeUninstall TriggerType = "uninstall"
)

// 各触发类型的默认冷却间隔
var defaultIntervals = map[TriggerType]time.Duration{
	TriggerTypeResync:    5 * time.Minute,
	TriggerTypeRebuild:   1 * time.Minute,
	TriggerTypeUninstall: 30 * time.Second,
}

// GetInterval 取触发类型的默认冷却间隔
func GetInterval(t TriggerType) time.Duration {
	if d, ok := defaultIntervals[t]; ok {
		return d
	}
	return time.Minute
}

// OrgTriggerKey 生成组织级触发 Key
func OrgTriggerKey(orgID int64, t TriggerType) string {
	return fmt.Sprintf("org:%d:%s", orgID, t)
}

// ==================== 中间件 ====================

// TriggerRateLimit 手动触发限流中间件，按组织 + 触发类型维度限流
func TriggerRateLimit(triggerType TriggerType, interval time.Duration) gin.HandlerFunc {
	if interval == 0 {
		interval = GetInterval(triggerType)
	}

	return func(c *gin.Context) {
		orgIDStr := c.Param("org_id")
		if orgIDStr == "" {
			orgIDStr = c.Query("org_id")
		}
		orgID, err := strconv.ParseInt(orgIDStr, 10, 64)
		if err != nil || orgID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的组织 ID",
			})
			c.Abort()
			return
		}

		result := GetLimiter().Check(OrgTriggerKey(orgID, triggerType), interval)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after":  int(result.RetryAfter.Seconds()),
					"trigger_type": triggerType,
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("触发冷却中，请 %d 秒后重试", seconds)
	}
	minutes := seconds / 60
	remaining := seconds % 60
	if remaining == 0 {
		return fmt.Sprintf("触发冷却中，请 %d 分钟后重试", minutes)
	}
	return fmt.Sprintf("触发冷却中，请 %d 分 %d 秒后重试", minutes, remaining)
}
