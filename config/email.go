package config

import "tarotshare/pkg/config"

func init() {
	config.Add("email", func() map[string]interface{} {
		return map[string]interface{}{
			// 发送邮件的函数地址，为空时只记录日志不真正发送
			"function_url": config.Env("EMAIL_FUNCTION_URL", ""),
			"api_key":      config.Env("EMAIL_API_KEY", ""),
			"timeout":      config.Env("EMAIL_TIMEOUT", 15),

			// 品牌官网，写在邮件正文里
			"website_url": config.Env("EMAIL_WEBSITE_URL", "https://asksian.com"),
		}
	})
}
