package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tarotshare/app/repositories"
	"tarotshare/pkg/app"
	"tarotshare/pkg/config"
	"tarotshare/pkg/database"
	"tarotshare/pkg/database/migrations"
	"tarotshare/pkg/logger"
	"tarotshare/pkg/remote"

	"gorm.io/gorm"
)

// SetupRemote 初始化远程存储，返回 nil 表示只使用本地镜像
// database 驱动在后台连接，连接成功前解读存储处于降级模式
func SetupRemote(ctx context.Context) (remote.Store, string, func()) {
	driver := config.GetString("remote.driver", "postgrest")

	switch driver {
	case "postgrest":
		store := remote.NewPostgREST(remote.PostgRESTConfig{
			URL:     config.GetString("remote.url"),
			AnonKey: config.GetString("remote.anon_key"),
			Table:   config.GetString("remote.table"),
			Timeout: config.GetSeconds("remote.timeout"),
		})
		if !store.Configured() {
			logger.WarnString("Remote", "Setup", "PostgREST 未配置或仍是占位值，所有解读只保存在本地镜像")
		}
		return store, driver, func() {}

	case "database":
		deferred := remote.NewDeferred()
		c := &remoteConnector{deferred: deferred}
		go c.connect(ctx,
			config.GetInt("remote.connect_retries", 5),
			config.GetSeconds("remote.connect_interval", 3),
		)
		return deferred, driver, c.close

	case "none":
		logger.InfoString("Remote", "Setup", "未启用远程存储")
		return nil, driver, func() {}

	default:
		logger.WarnString("Remote", "Setup", "未知的远程存储驱动 "+driver+"，只使用本地镜像")
		return nil, "none", func() {}
	}
}

// remoteConnector 后台连接 PostgreSQL，成功后接入 Deferred
type remoteConnector struct {
	deferred *remote.Deferred
	mu       sync.Mutex
	db       *gorm.DB
}

func (c *remoteConnector) connect(ctx context.Context, retries int, interval time.Duration) {
	if retries <= 0 {
		retries = 1
	}

	for attempt := 1; attempt <= retries; attempt++ {
		db, err := connectPostgreSQL(migrations.RemoteTables())
		if err == nil {
			c.mu.Lock()
			c.db = db
			c.mu.Unlock()

			c.deferred.Resolve(repositories.NewReadingRepository(db,
				config.GetString("remote.table"),
				repositories.WithLocation(app.Location()),
			))
			logger.InfoString("Remote", "Connect", "PostgreSQL 已连接，远程存储可用")
			return
		}

		logger.WarnString("Remote", "Connect", fmt.Sprintf("第 %d/%d 次连接 PostgreSQL 失败：%v", attempt, retries, err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
	logger.ErrorString("Remote", "Connect", "PostgreSQL 连接失败，所有解读只保存在本地镜像")
}

func (c *remoteConnector) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	database.Close(c.db)
}
