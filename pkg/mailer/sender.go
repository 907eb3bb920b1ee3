package mailer

import (
	"context"
	"fmt"
	"time"

	"tarotshare/pkg/logger"

	"github.com/go-resty/resty/v2"
)

// Sender 邮件发送
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// FunctionSender 调用部署在 Supabase 上的 send-email 函数
type FunctionSender struct {
	url    string
	apiKey string
	client *resty.Client
}

// NewFunctionSender 创建发送器
func NewFunctionSender(url, apiKey string, timeout time.Duration) *FunctionSender {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &FunctionSender{url: url, apiKey: apiKey, client: client}
}

// Send 发送邮件
func (s *FunctionSender) Send(ctx context.Context, msg *Message) error {
	req := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(msg)
	if s.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+s.apiKey)
		req.SetHeader("apikey", s.apiKey)
	}

	resp, err := req.Post(s.url)
	if err != nil {
		return fmt.Errorf("failed to call email function: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("email function returned status %d: %s", resp.StatusCode(), resp.String())
	}

	logger.InfoString("Mailer", "Send", fmt.Sprintf("邮件已发送 解读:%s 主题:%s", msg.ReadingID, msg.Subject))
	return nil
}

// LogSender 未配置邮件函数时使用，只记录日志
type LogSender struct{}

// Send 记录邮件内容
func (LogSender) Send(_ context.Context, msg *Message) error {
	logger.InfoJSON("Mailer", "LogSender", map[string]string{
		"to":        msg.To,
		"subject":   msg.Subject,
		"share_url": msg.ShareURL,
	})
	return nil
}
