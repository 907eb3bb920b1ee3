package config

import "tarotshare/pkg/config"

func init() {
	config.Add("remote", func() map[string]interface{} {
		return map[string]interface{}{
			// 远程存储驱动，可选：
			// "postgrest"：通过 HTTPS 访问 Supabase / PostgREST
			// "database"：直连 PostgreSQL
			// "none"：只使用本地镜像
			"driver": config.Env("REMOTE_DRIVER", "postgrest"),

			// PostgREST 连接信息，占位值视为未配置
			"url":      config.Env("SUPABASE_URL", "https://your-project-id.supabase.co"),
			"anon_key": config.Env("SUPABASE_ANON_KEY", "your-anon-key-here"),

			// 解读表名
			"table": config.Env("REMOTE_READINGS_TABLE", "readings"),

			// 单次远程调用的超时时间，超时后降级到本地镜像，单位：秒
			"timeout": config.Env("REMOTE_TIMEOUT", 5),

			// 公开查询未命中时，额外探测记录是否存在，仅用于日志排查
			"diagnostics": config.Env("REMOTE_DIAGNOSTICS", false),

			// database 驱动后台连接的重试次数和间隔（秒）
			"connect_retries":  config.Env("REMOTE_CONNECT_RETRIES", 5),
			"connect_interval": config.Env("REMOTE_CONNECT_INTERVAL", 3),

			// PostgreSQL 数据库配置
			"postgres": map[string]interface{}{
				"host":     config.Env("DB_HOST", "127.0.0.1"),
				"port":     config.Env("DB_PORT", "5432"),
				"database": config.Env("DB_DATABASE", "tarot"),
				"username": config.Env("DB_USERNAME", ""),
				"password": config.Env("DB_PASSWORD", ""),
				"sslmode":  config.Env("DB_SSLMODE", "require"),

				// 数据库连接池配置
				"max_idle_connections": config.Env("DB_MAX_IDLE_CONNECTIONS", 10),
				"max_open_connections": config.Env("DB_MAX_OPEN_CONNECTIONS", 25),
				"max_life_seconds":     config.Env("DB_MAX_LIFE_SECONDS", 5*60),
			},
		}
	})
}
