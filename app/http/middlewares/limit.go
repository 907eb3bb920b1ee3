package middlewares

import (
	"sync"
	"sync/atomic"
	"time"

	"tarotshare/pkg/app"
	"tarotshare/pkg/limiter"
	"tarotshare/pkg/logger"
	"tarotshare/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	limiterlib "github.com/ulule/limiter/v3"
	"golang.org/x/time/rate"
)

const (
	// DefaultBurst 默认突发请求数量
	DefaultBurst = 100
	// CleanupInterval 清理闲置限流器的间隔
	CleanupInterval = time.Hour
	// IdleTTL 限流器闲置多久后被清理
	IdleTTL = 24 * time.Hour
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Limit string
	Burst int
}

// ipLimiter 单个 key 的令牌桶
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64 // UnixNano
}

// localLimiters 进程内令牌桶集合
type localLimiters struct {
	config   RateLimitConfig
	limiters sync.Map // map[string]*ipLimiter
}

// LimitIP 全局限流中间件，针对 IP 进行限流，计数保存在进程内
//
// 支持的限流格式:
// - 5 reqs/second:   "5-S"
// - 10 reqs/minute:  "10-M"
// - 1000 reqs/hour:  "1000-H"
// - 2000 reqs/day:   "2000-D"
func LimitIP(limit string) gin.HandlerFunc {
	// 测试环境使用较大限制
	if app.IsTesting() {
		limit = "1000000-H"
	}

	l := &localLimiters{config: RateLimitConfig{Limit: limit, Burst: DefaultBurst}}
	go l.cleanup()

	return func(c *gin.Context) {
		lim, err := l.get(limiter.GetKeyIP(c))
		if err != nil {
			logger.ErrorString("限流器", "创建失败", err.Error())
			// 降级处理：允许请求通过
			c.Next()
			return
		}

		// 尝试获取令牌
		if !lim.Allow() {
			response.TooManyRequests(c)
			return
		}

		// 设置 RateLimit 相关响应头
		c.Header("X-RateLimit-Limit", cast.ToString(lim.Limit()))
		c.Header("X-RateLimit-Remaining", cast.ToString(int(lim.Tokens())))
		c.Next()
	}
}

// LimitPerRoute 针对单个路由的限流中间件，基于 IP + 路由路径
// 计数保存在 store 中，启用 Redis 时多个实例共享
func LimitPerRoute(store limiterlib.Store, limit string) gin.HandlerFunc {
	if app.IsTesting() {
		limit = "1000000-H"
	}

	return func(c *gin.Context) {
		key := limiter.GetKeyRouteWithIP(c)
		result, err := limiter.CheckRate(c, store, key, limit)
		if err != nil {
			// 计数存储不可用时放行
			logger.ErrorString("限流器", "计数失败", err.Error())
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", cast.ToString(result.Limit))
		c.Header("X-RateLimit-Remaining", cast.ToString(result.Remaining))
		c.Header("X-RateLimit-Reset", cast.ToString(result.Reset))

		if result.Reached {
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}

// get 获取或创建限流器
func (l *localLimiters) get(key string) (*rate.Limiter, error) {
	now := time.Now().UnixNano()
	if v, ok := l.limiters.Load(key); ok {
		il := v.(*ipLimiter)
		il.lastAccess.Store(now)
		return il.limiter, nil
	}

	// 解析限流配置
	r, err := limiter.ParseLimit(l.config.Limit)
	if err != nil {
		return nil, err
	}

	il := &ipLimiter{limiter: rate.NewLimiter(rate.Limit(r.Rate), l.config.Burst)}
	il.lastAccess.Store(now)

	// 并发安全地存储限流器
	actual, _ := l.limiters.LoadOrStore(key, il)
	return actual.(*ipLimiter).limiter, nil
}

// cleanup 定期清理闲置的限流器
func (l *localLimiters) cleanup() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		l.sweep(time.Now())
	}
}

func (l *localLimiters) sweep(now time.Time) int {
	removed := 0
	l.limiters.Range(func(key, value interface{}) bool {
		if now.UnixNano()-value.(*ipLimiter).lastAccess.Load() > int64(IdleTTL) {
			l.limiters.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
