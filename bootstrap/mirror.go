package bootstrap

import (
	"tarotshare/pkg/app"
	"tarotshare/pkg/config"
	"tarotshare/pkg/database"
	"tarotshare/pkg/database/migrations"
	"tarotshare/pkg/logger"
	"tarotshare/pkg/mirror"
	"tarotshare/pkg/redis"
)

// SetupMirror 初始化本地镜像，返回实际使用的驱动名和关闭函数
// 配置的驱动不可用时退化为内存存储，保证服务可以启动
func SetupMirror() (*mirror.Mirror, string, func()) {
	driver := config.GetString("mirror.driver", "sqlite")
	closer := func() {}

	var kv mirror.KV
	switch driver {
	case "sqlite":
		db, err := connectSQLite(config.GetString("mirror.sqlite_database"), migrations.MirrorTables())
		if err != nil {
			logger.ErrorString("Mirror", "Setup", "SQLite 不可用，改用内存存储："+err.Error())
			break
		}
		kv = mirror.NewGormKV(db)
		closer = func() { database.Close(db) }
	case "redis":
		client := redis.GetRedis(redis.MainDB)
		if client == nil {
			logger.ErrorString("Mirror", "Setup", "Redis 未启用，改用内存存储")
			break
		}
		kv = mirror.NewRedisKV(client)
	case "memory":
	default:
		logger.WarnString("Mirror", "Setup", "未知的本地镜像驱动 "+driver+"，改用内存存储")
	}

	if kv == nil {
		driver = "memory"
		kv = mirror.NewMemoryKV(0)
	}

	m := mirror.New(kv, config.GetString("mirror.key"),
		mirror.WithCapacity(config.GetInt("mirror.capacity", mirror.DefaultCapacity)),
		mirror.WithClock(app.TimenowInTimezone),
	)
	logger.InfoString("Mirror", "Setup", "本地镜像驱动："+driver)
	return m, driver, closer
}
