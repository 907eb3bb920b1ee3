package readingstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tarotshare/app/models/reading"
)

// ShareImagePath 分享卡片的预览图
const ShareImagePath = "/og-image.svg"

// ShareableView 分享页和邮件使用的规范化视图，是分享功能能看到的唯一数据
type ShareableView struct {
	ID             string                 `json:"id"`
	ShareURL       string                 `json:"share_url"`
	ReadingType    reading.ReadingType    `json:"reading_type"`
	SpreadName     string                 `json:"spread_name"`
	Question       string                 `json:"question,omitempty"`
	UserName       string                 `json:"user_name,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	ExpiresAt      time.Time              `json:"expires_at"`
	Cards          reading.Cards          `json:"cards"`
	Interpretation string                 `json:"interpretation"`
	PersonalInfo   map[string]interface{} `json:"personal_info,omitempty"`
	ViewCount      int64                  `json:"view_count"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Image          string                 `json:"image"`
}

// ShareURL 分享链接：<站点地址><分享路径>?id=<id>，纯函数
func (s *Store) ShareURL(id string) string {
	return BuildShareURL(s.cfg.SiteOrigin, s.cfg.SharePath, id)
}

// BuildShareURL 拼接分享链接
func BuildShareURL(origin, path, id string) string {
	origin = strings.TrimRight(origin, "/")
	if path == "" {
		path = DefaultSharePath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return origin + path + "?id=" + url.QueryEscape(id)
}

// ParseShareURL 从分享链接中取出 id
func ParseShareURL(shareURL string) (string, error) {
	u, err := url.Parse(shareURL)
	if err != nil {
		return "", err
	}
	id := u.Query().Get("id")
	if id == "" {
		return "", &ValidationError{Field: "id", Message: "share url has no id"}
	}
	return id, nil
}

// GenerateShareableData 生成分享视图，解读不存在或已过期时返回 nil
func (s *Store) GenerateShareableData(ctx context.Context, id string) (*ShareableView, error) {
	r, err := s.Get(ctx, id)
	if err != nil || r == nil {
		return nil, err
	}

	spread := r.SpreadName
	if spread == "" {
		spread = DefaultSpreadName
	}
	site := s.cfg.SiteName
	if site == "" {
		site = "Ask Sian"
	}

	return &ShareableView{
		ID:             r.ID,
		ShareURL:       s.ShareURL(r.ID),
		ReadingType:    r.ReadingType,
		SpreadName:     spread,
		Question:       r.Question,
		UserName:       r.UserName(),
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
		Cards:          r.Cards,
		Interpretation: r.Interpretation,
		PersonalInfo:   r.PersonalInfo,
		ViewCount:      r.ViewCount,
		Title:          fmt.Sprintf("%s Reading", spread),
		Description:    fmt.Sprintf("A %s tarot reading shared via %s", spread, site),
		Image:          strings.TrimRight(s.cfg.SiteOrigin, "/") + ShareImagePath,
	}, nil
}
