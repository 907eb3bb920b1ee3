// Package config 站点配置信息
package config

import "tarotshare/pkg/config"

func init() {
	config.Add("app", func() map[string]interface{} {
		return map[string]interface{}{

			// 应用名称
			"name": config.Env("APP_NAME", "TarotShare"),

			// 当前环境，用以区分多环境，一般为 local, stage, production, testing
			"env": config.Env("APP_ENV", "production"),

			// 是否进入调试模式
			"debug": config.Env("APP_DEBUG", false),

			// 应用服务端口
			"port": config.Env("APP_PORT", "3000"),

			// 设置时区，日志记录和解读统计会使用到
			"timezone": config.Env("TIMEZONE", "UTC"),

			// 站点地址，分享链接以此为前缀，如 https://asksian.com/view-reading?id=...
			"url": config.Env("APP_URL", "http://localhost:3000"),

			// 站点名称，多个品牌共用一个远程库时用来区分数据归属
			"site_name": config.Env("SITE_NAME", "Ask Sian"),

			// 是否注册管理路由（清理、导入导出、清空）
			"admin_routes": config.Env("ADMIN_ROUTES", false),
		}
	})
}
