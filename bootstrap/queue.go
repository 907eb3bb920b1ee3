package bootstrap

import (
	"time"

	"tarotshare/pkg/app"
	"tarotshare/pkg/config"
	"tarotshare/pkg/logger"
	"tarotshare/pkg/mailer"
	"tarotshare/pkg/queue"
	"tarotshare/pkg/readingstore"
	"tarotshare/pkg/redis"
)

// SetupSharer 创建邮件分享服务，未配置发送函数时只记录日志
func SetupSharer(store *readingstore.Store) *mailer.Sharer {
	var sender mailer.Sender
	if url := config.GetString("email.function_url"); url != "" {
		sender = mailer.NewFunctionSender(url, config.GetString("email.api_key"), config.GetSeconds("email.timeout", 15))
	} else {
		logger.WarnString("Mailer", "Setup", "未配置邮件发送函数，分享邮件只写入日志")
	}

	return mailer.NewSharer(store, sender,
		config.GetString("app.site_name"),
		config.GetString("email.website_url"),
		app.Location(),
	)
}

// SetupQueue 启动分享邮件队列和工作器，Redis 不可用时返回 nil
func SetupQueue(sharer *mailer.Sharer) (*queue.QueueService, *queue.Worker) {
	client := redis.GetRedis(redis.QueueDB)
	if client == nil {
		logger.InfoString("Queue", "Setup", "Redis 未启用，分享邮件同步发送")
		return nil, nil
	}

	queueService := queue.NewQueueService(client, queue.QueueConfig{
		Prefix:    config.GetString("redis.queue_prefix"),
		Timeout:   config.GetSeconds("redis.queue_timeout", 86400),
		RateLimit: config.GetInt("queue.rate_limit", 12),
		RateBurst: config.GetInt("queue.rate_burst", 50),
	})

	worker := queue.NewWorker(queueService, sharer, queueService.Metrics(), queue.WorkerConfig{
		WorkerCount:     config.GetInt("queue.worker_count", 2),
		MaxRetries:      config.GetInt("queue.retry_times", 3),
		RetryInterval:   config.GetSeconds("queue.retry_delay", 2),
		ShutdownTimeout: 30 * time.Second,
	})
	worker.Start()

	logger.InfoString("Queue", "Setup", "队列服务启动成功")
	return queueService, worker
}
