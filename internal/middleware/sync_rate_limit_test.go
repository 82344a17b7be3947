package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTriggerRateLimiter_Check(t *testing.T) {
	limiter := &TriggerRateLimiter{}

	first := limiter.Check("org:1:rebuild", time.Minute)
	assert.True(t, first.Allowed, "首次触发应放行")

	second := limiter.Check("org:1:rebuild", time.Minute)
	assert.False(t, second.Allowed, "冷却期内应拒绝")
	assert.Greater(t, second.RetryAfter, time.Duration(0))

	// 不同 key 互不影响
	other := limiter.Check("org:2:rebuild", time.Minute)
	assert.True(t, other.Allowed, "其他组织不受影响")

	limiter.Reset("org:1:rebuild")
	after := limiter.Check("org:1:rebuild", time.Minute)
	assert.True(t, after.Allowed, "重置后应放行")
}

func TestTriggerRateLimiter_IntervalElapsed(t *testing.T) {
	limiter := &TriggerRateLimiter{}

	assert.True(t, limiter.Check("org:1:resync", 10*time.Millisecond).Allowed)
	time.Sleep(15 * time.Millisecond)
	assert.True(t, limiter.Check("org:1:resync", 10*time.Millisecond).Allowed, "冷却结束后应放行")
}

func TestGetInterval(t *testing.T) {
	assert.Equal(t, 5*time.Minute, GetInterval(TriggerTypeResync))
	assert.Equal(t, time.Minute, GetInterval(TriggerTypeRebuild))
	assert.Equal(t, 30*time.Second, GetInterval(TriggerTypeUninstall))
	assert.Equal(t, time.Minute, GetInterval(TriggerType("unknown")), "未知类型回退默认冷却")
}

func setupLimitRouter(interval time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/orgs/:org_id/rebuild", TriggerRateLimit(TriggerTypeRebuild, interval), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 200})
	})
	return r
}

func TestTriggerRateLimit_Middleware(t *testing.T) {
	r := setupLimitRouter(time.Minute)
	orgID := time.Now().UnixNano() // 避免与其他用例共享全局限流器的 key

	path := "/orgs/" + strconv.FormatInt(orgID, 10) + "/rebuild"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "retry_after")
}

func TestTriggerRateLimit_InvalidOrgID(t *testing.T) {
	r := setupLimitRouter(time.Minute)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orgs/abc/rebuild", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
