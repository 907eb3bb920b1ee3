package tarot

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"tarotshare/pkg/queue"
	"tarotshare/pkg/readingstore"
	"tarotshare/pkg/response"
)

// QueueHealth 健康检查需要的队列信息
type QueueHealth interface {
	Ping(ctx context.Context) error
	Metrics() *queue.QueueMetrics
}

// HealthController 健康检查
type HealthController struct {
	store        *readingstore.Store
	remoteDriver string
	mirrorDriver string
	queue        QueueHealth
}

func NewHealthController(store *readingstore.Store, remoteDriver, mirrorDriver string, q QueueHealth) *HealthController {
	return &HealthController{
		store:        store,
		remoteDriver: remoteDriver,
		mirrorDriver: mirrorDriver,
		queue:        q,
	}
}

// HealthCheck 健康检查端点
// 远程存储不可用时服务仍然可以使用本地镜像，只报告降级，不返回错误状态码
func (hc *HealthController) HealthCheck(c *gin.Context) {
	status := "ok"

	mode := "remote"
	if !hc.store.RemoteReady() {
		mode = "local"
		status = "degraded"
	}

	queueInfo := gin.H{"enabled": hc.queue != nil}
	if hc.queue != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := hc.queue.Ping(ctx)
		cancel()
		if err != nil {
			status = "degraded"
			queueInfo["error"] = err.Error()
		}
		queueInfo["metrics"] = hc.queue.Metrics().Snapshot()
	}

	response.Data(c, gin.H{
		"status": status,
		"time":   time.Now().Unix(),
		"remote": gin.H{
			"driver":     hc.remoteDriver,
			"configured": hc.store.RemoteReady(),
			"mode":       mode,
		},
		"mirror": gin.H{
			"driver": hc.mirrorDriver,
		},
		"queue": queueInfo,
	})
}
