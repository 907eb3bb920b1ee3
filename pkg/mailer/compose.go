// Package mailer 分享解读的邮件
//
// 邮件内容只根据 readingstore.ShareableView 生成，不直接读取存储。
package mailer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"tarotshare/app/models/reading"
	"tarotshare/pkg/readingstore"
)

var (
	// ErrInvalidAddress 收件人地址格式不正确
	ErrInvalidAddress = errors.New("invalid email address format")
	// ErrMissingShareURL 分享视图缺少链接
	ErrMissingShareURL = errors.New("missing reading data")
)

var addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Message 发给邮件函数的内容
type Message struct {
	To              string `json:"to"`
	Subject         string `json:"subject"`
	Body            string `json:"body"`
	FriendName      string `json:"friendName"`
	PersonalMessage string `json:"personalMessage"`
	ReadingID       string `json:"readingId"`
	ShareURL        string `json:"shareableUrl"`
}

// ComposeOptions 邮件参数
type ComposeOptions struct {
	To         string
	FriendName string
	Note       string // 发件人附言
	SiteName   string
	WebsiteURL string
	Location   *time.Location
}

// ValidateAddress 校验收件人地址
func ValidateAddress(addr string) error {
	if !addressPattern.MatchString(strings.TrimSpace(addr)) {
		return ErrInvalidAddress
	}
	return nil
}

// Compose 根据分享视图生成邮件
func Compose(view *readingstore.ShareableView, opts ComposeOptions) (*Message, error) {
	if err := ValidateAddress(opts.To); err != nil {
		return nil, err
	}
	if view == nil || view.ShareURL == "" {
		return nil, ErrMissingShareURL
	}
	if opts.SiteName == "" {
		opts.SiteName = "Ask Sian"
	}
	if opts.WebsiteURL == "" {
		opts.WebsiteURL = "https://asksian.com"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	sender := view.UserName
	if sender == "" {
		sender = "A friend"
	}
	friend := strings.TrimSpace(opts.FriendName)
	note := strings.TrimSpace(opts.Note)

	greeting := "Hi there!"
	if friend != "" {
		greeting = fmt.Sprintf("Hi %s!", friend)
	}

	var b strings.Builder
	b.WriteString(greeting + "\n\n")
	if note != "" {
		b.WriteString(note + "\n\n")
	}
	fmt.Fprintf(&b, "%s has shared a tarot reading with you using %s!\n\n", sender, opts.SiteName)
	b.WriteString("🔮 **Reading Details:**\n")
	fmt.Fprintf(&b, "• Reading Type: %s\n", readingTypeLabel(view.ReadingType))
	fmt.Fprintf(&b, "• Spread: %s\n", view.SpreadName)
	fmt.Fprintf(&b, "• Date: %s\n", view.CreatedAt.In(opts.Location).Format("January 2, 2006 at 03:04 PM"))
	if view.Question != "" {
		fmt.Fprintf(&b, "• Question: %q\n", view.Question)
	}
	fmt.Fprintf(&b, "\nView your reading here: %s\n\n", view.ShareURL)
	fmt.Fprintf(&b, "✨ **About %s:**\n%s is a free AI-powered tarot reading service that provides instant, personalized interpretations. Get your own reading at %s\n\n",
		opts.SiteName, opts.SiteName, opts.WebsiteURL)
	b.WriteString("May the cards guide you on your journey! ✨\n\n")
	b.WriteString("---\n")
	fmt.Fprintf(&b, "This reading was shared via %s - Free AI-Powered Tarot Readings", opts.SiteName)

	return &Message{
		To:              strings.TrimSpace(opts.To),
		Subject:         fmt.Sprintf("🔮 Your Tarot Reading from %s", sender),
		Body:            b.String(),
		FriendName:      friend,
		PersonalMessage: note,
		ReadingID:       view.ID,
		ShareURL:        view.ShareURL,
	}, nil
}

func readingTypeLabel(t reading.ReadingType) string {
	switch t {
	case reading.TypeQuestion:
		return "Specific Question"
	case reading.TypeGeneral:
		return "General Reading"
	case reading.TypeHoroscope:
		return "Daily Horoscope"
	}
	return string(t)
}
