// Package routes 注册路由
package routes

import (
	"tarotshare/app/http/controllers/api/v1/tarot"
	"tarotshare/app/http/middlewares"
	"tarotshare/pkg/queue"
	"tarotshare/pkg/readingstore"

	"github.com/gin-gonic/gin"
	limiterlib "github.com/ulule/limiter/v3"
)

// 路由限流配置
const (
	// 🌍 全局限流：每小时每IP 30000 请求
	GlobalRateLimit = "30000-H"
	// 🎴 保存解读限流：每小时每IP 100 请求
	SaveReadingLimit = "100-H"
	// 🔍 查询限流：每分钟每IP 300 请求
	QueryReadingLimit = "300-M"
	// ✉️ 邮件分享限流：每小时每IP 20 请求
	ShareEmailLimit = "20-H"
)

// Dependencies 路由依赖，由 bootstrap 构建
type Dependencies struct {
	Store        *readingstore.Store
	Sharer       queue.ShareHandler
	Queue        *queue.QueueService // 未启用 Redis 时为 nil
	LimiterStore limiterlib.Store
	RemoteDriver string
	MirrorDriver string
	SharePath    string
	AdminRoutes  bool
}

// RegisterAPIRoutes 注册所有 API 路由
func RegisterAPIRoutes(r *gin.Engine, deps Dependencies) {
	// 避免把 nil 指针装进接口
	var shareQueue tarot.ShareQueue
	var queueHealth tarot.QueueHealth
	if deps.Queue != nil {
		shareQueue = deps.Queue
		queueHealth = deps.Queue
	}

	rc := tarot.NewReadingController(deps.Store, deps.Sharer, shareQueue)
	hc := tarot.NewHealthController(deps.Store, deps.RemoteDriver, deps.MirrorDriver, queueHealth)

	r.GET("/health", hc.HealthCheck)

	public := r.Group("",
		middlewares.SecurityHeaders(),
		middlewares.LimitIP(GlobalRateLimit),
		middlewares.Cors(),
	)

	// 🔗 分享链接落地页
	// GET /view-reading?id=<id>
	sharePath := deps.SharePath
	if sharePath == "" {
		sharePath = readingstore.DefaultSharePath
	}
	public.GET(sharePath,
		middlewares.LimitPerRoute(deps.LimiterStore, QueryReadingLimit),
		rc.SharePage,
	)

	v1 := public.Group("/v1")

	// 🎴 解读相关路由
	readings := v1.Group("/readings")
	{
		// 📝 保存解读
		// POST /v1/readings
		readings.POST("",
			middlewares.LimitPerRoute(deps.LimiterStore, SaveReadingLimit),
			rc.Store,
		)

		query := middlewares.LimitPerRoute(deps.LimiterStore, QueryReadingLimit)

		// 📊 查询解读
		readings.GET("/:id", query, rc.Show)

		// 👀 查看次数加一
		readings.POST("/:id/views", query, rc.View)

		// 🔗 分享视图
		readings.GET("/:id/share", query, rc.Share)

		// ✉️ 邮件分享
		readings.POST("/:id/email",
			middlewares.LimitPerRoute(deps.LimiterStore, ShareEmailLimit),
			rc.Email,
		)
	}

	// 📡 分享任务进度
	v1.GET("/shares/:task_id", rc.ShareStatus)

	// 📈 统计
	v1.GET("/stats", rc.Stats)

	if deps.AdminRoutes {
		ac := tarot.NewAdminController(deps.Store)
		admin := v1.Group("/admin")
		{
			admin.POST("/cleanup", ac.Cleanup)
			admin.GET("/export", ac.Export)
			admin.POST("/import", ac.Import)
			admin.DELETE("/readings", ac.Clear)
		}
	}
}
