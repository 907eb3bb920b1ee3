// Package app 提供应用程序相关的辅助函数
package app

import (
	"tarotshare/pkg/config"
	"time"
)

// IsLocal 判断当前是否运行在本地环境
func IsLocal() bool {
	return config.Get("app.env") == "local"
}

// IsTesting 判断当前是否运行在测试环境
func IsTesting() bool {
	return config.Get("app.env") == "testing"
}

// Location 返回 app.timezone 配置的时区，配置无效时使用本地时区
// 统计「今日解读数」时以此时区的零点为界
func Location() *time.Location {
	loc, err := time.LoadLocation(config.GetString("app.timezone", "UTC"))
	if err != nil {
		return time.Local
	}
	return loc
}

// TimenowInTimezone 获取当前时间（支持时区设置）
// 使用示例：
// currentTime := TimenowInTimezone() // 获取配置的时区的当前时间
func TimenowInTimezone() time.Time {
	return time.Now().In(Location())
}
