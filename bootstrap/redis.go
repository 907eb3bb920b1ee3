package bootstrap

import (
	"fmt"

	"tarotshare/pkg/config"
	"tarotshare/pkg/logger"
	"tarotshare/pkg/redis"
)

// SetupRedis 初始化 Redis，未启用或连接失败时返回 false
// 没有 Redis 时限流使用进程内计数，分享邮件同步发送
func SetupRedis() bool {
	if !config.GetBool("redis.enabled") {
		logger.InfoString("Redis", "Setup", "未启用 Redis")
		return false
	}

	// 初始化 Redis 连接
	err := redis.InitRedis(
		fmt.Sprintf("%v:%v", config.GetString("redis.host"), config.GetString("redis.port")),
		config.GetString("redis.username"),
		config.GetString("redis.password"),
		config.GetInt("redis.database"),
		config.GetInt("redis.queue_database"),
	)
	if err != nil {
		logger.ErrorString("Redis", "Setup", "Redis 连接失败，降级为单机模式："+err.Error())
		return false
	}
	return true
}
