package bootstrap

import (
	"context"
	"time"

	"tarotshare/pkg/app"
	"tarotshare/pkg/config"
	"tarotshare/pkg/mirror"
	"tarotshare/pkg/readingstore"
	"tarotshare/pkg/remote"
)

// SetupReadingStore 创建解读存储并启动定期清理
// 解读存储本身不读取配置，所有参数在这里组装后注入
func SetupReadingStore(ctx context.Context, rs remote.Store, m *mirror.Mirror) *readingstore.Store {
	store := readingstore.New(readingstore.Config{
		SiteName:      config.GetString("app.site_name"),
		SiteOrigin:    config.GetString("app.url"),
		SharePath:     config.GetString("reading.share_path"),
		Retention:     time.Duration(config.GetInt("reading.retention_days", 30)) * 24 * time.Hour,
		RemoteTimeout: config.GetSeconds("remote.timeout", 5),
		Diagnostics:   config.GetBool("remote.diagnostics"),
		Location:      app.Location(),
	}, rs, m)

	store.StartJanitor(ctx, time.Duration(config.GetInt("reading.cleanup_interval"))*time.Minute)
	return store
}
