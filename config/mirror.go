package config

import "tarotshare/pkg/config"

func init() {
	config.Add("mirror", func() map[string]interface{} {
		return map[string]interface{}{
			// 本地镜像的存储驱动，可选：sqlite（默认）、redis、memory
			"driver": config.Env("MIRROR_DRIVER", "sqlite"),

			// 所有解读保存在同一个键下，值为 id -> 解读 的 JSON 对象
			"key": config.Env("MIRROR_KEY", "ask_sian_readings"),

			// 软上限，超出后按 created_at 从旧到新淘汰
			"capacity": config.Env("MIRROR_CAPACITY", 100),

			// SQLite 数据库文件
			"sqlite_database": config.Env("MIRROR_SQLITE_DATABASE", "storage/mirror.db"),
		}
	})
}
