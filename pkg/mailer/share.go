package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tarotshare/pkg/readingstore"
)

// ErrReadingNotFound 解读不存在或已过期
var ErrReadingNotFound = errors.New("reading is no longer available")

// ShareSource 分享视图的来源，只依赖解读存储的查询接口
type ShareSource interface {
	GenerateShareableData(ctx context.Context, id string) (*readingstore.ShareableView, error)
}

// ShareRequest 一次邮件分享
type ShareRequest struct {
	ReadingID  string
	To         string
	FriendName string
	Note       string
}

// Sharer 查询分享视图、生成邮件并发送
type Sharer struct {
	source     ShareSource
	sender     Sender
	siteName   string
	websiteURL string
	loc        *time.Location
}

// NewSharer 创建 Sharer
func NewSharer(source ShareSource, sender Sender, siteName, websiteURL string, loc *time.Location) *Sharer {
	if sender == nil {
		sender = LogSender{}
	}
	return &Sharer{
		source:     source,
		sender:     sender,
		siteName:   siteName,
		websiteURL: websiteURL,
		loc:        loc,
	}
}

// Share 发送分享邮件
func (s *Sharer) Share(ctx context.Context, req ShareRequest) (*Message, error) {
	view, err := s.source.GenerateShareableData(ctx, req.ReadingID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, ErrReadingNotFound
	}

	msg, err := Compose(view, ComposeOptions{
		To:         req.To,
		FriendName: req.FriendName,
		Note:       req.Note,
		SiteName:   s.siteName,
		WebsiteURL: s.websiteURL,
		Location:   s.loc,
	})
	if err != nil {
		return nil, err
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send share email: %w", err)
	}
	return msg, nil
}

// Permanent 重试也不会成功的错误
func Permanent(err error) bool {
	return errors.Is(err, ErrReadingNotFound) ||
		errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrMissingShareURL) ||
		errors.Is(err, readingstore.ErrValidation)
}
