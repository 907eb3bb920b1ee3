package config

import "tarotshare/pkg/config"

func init() {
	config.Add("reading", func() map[string]interface{} {
		return map[string]interface{}{
			// 解读保留天数，过期后视为不存在
			"retention_days": config.Env("READING_RETENTION_DAYS", 30),

			// 分享链接路径，已经发出去的链接依赖这个路径，不要随意修改
			"share_path": config.Env("READING_SHARE_PATH", "/view-reading"),

			// 定期清理过期解读的间隔，单位：分钟，0 表示只在启动时清理一次
			"cleanup_interval": config.Env("READING_CLEANUP_INTERVAL", 60),
		}
	})
}
