package requests

import (
	"fmt"
	"net/url"
	"strings"

	"tarotshare/app/models/reading"
	"tarotshare/pkg/readingstore"

	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"
)

// MaxCards 单次解读最多的牌数，凯尔特十字为 10 张，留出余量
const MaxCards = 22

// SaveReadingRequest 保存解读
type SaveReadingRequest struct {
	ReadingType    string                 `json:"reading_type"`
	Question       string                 `json:"question"`
	SpreadName     string                 `json:"spread_name"`
	Cards          []reading.Card         `json:"cards"`
	Interpretation string                 `json:"interpretation"`
	PersonalInfo   map[string]interface{} `json:"personal_info"`
	IsPublic       *bool                  `json:"is_public"`
}

// ShareEmailRequest 通过邮件分享解读
type ShareEmailRequest struct {
	To         string `json:"to"`
	FriendName string `json:"friend_name"`
	Message    string `json:"message"`
}

// ValidateSaveReading 解析并校验保存请求
func ValidateSaveReading(c *gin.Context) (*SaveReadingRequest, error) {
	var req SaveReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("解析 JSON 失败: %w", err)
	}
	if req.ReadingType == "" {
		req.ReadingType = string(reading.TypeGeneral)
	}

	rules := govalidator.MapData{
		"reading_type":   []string{"in:question,general,horoscope"},
		"question":       []string{"max:2000"},
		"spread_name":    []string{"max:100"},
		"interpretation": []string{"max:50000"},
	}
	messages := govalidator.MapData{
		"reading_type": []string{
			"in:解读类型必须是 question、general 或 horoscope",
		},
		"question": []string{
			"max:问题长度不能超过 2000 个字符",
		},
		"spread_name": []string{
			"max:牌阵名称不能超过 100 个字符",
		},
		"interpretation": []string{
			"max:解读内容过长",
		},
	}
	// 只校验文本字段，卡牌和个人信息在下面单独处理
	text := struct {
		ReadingType    string `json:"reading_type"`
		Question       string `json:"question"`
		SpreadName     string `json:"spread_name"`
		Interpretation string `json:"interpretation"`
	}{req.ReadingType, req.Question, req.SpreadName, req.Interpretation}
	if err := ValidateStruct(&text, rules, messages); err != nil {
		return nil, err
	}

	// 额外的卡牌验证
	errs := url.Values{}
	switch {
	case len(req.Cards) == 0:
		errs.Add("cards", "至少需要一张卡牌")
	case len(req.Cards) > MaxCards:
		errs.Add("cards", fmt.Sprintf("卡牌数量不能超过 %d 张", MaxCards))
	}
	for i, card := range req.Cards {
		if strings.TrimSpace(card.Name) == "" {
			errs.Add(fmt.Sprintf("cards[%d].name", i), "卡牌名称不能为空")
		}
	}
	if len(errs) > 0 {
		return nil, ValidationError{Errors: errs}
	}

	return &req, nil
}

// Draft 转换为解读草稿
func (r *SaveReadingRequest) Draft() readingstore.Draft {
	return readingstore.Draft{
		ReadingType:    reading.ReadingType(r.ReadingType),
		Question:       r.Question,
		SpreadName:     r.SpreadName,
		Cards:          reading.Cards(r.Cards),
		Interpretation: r.Interpretation,
		PersonalInfo:   r.PersonalInfo,
		IsPublic:       r.IsPublic,
	}
}

// ValidateShareEmail 解析并校验邮件分享请求
func ValidateShareEmail(c *gin.Context) (*ShareEmailRequest, error) {
	var req ShareEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("解析 JSON 失败: %w", err)
	}
	req.To = strings.TrimSpace(req.To)

	rules := govalidator.MapData{
		"to":          []string{"required", "email"},
		"friend_name": []string{"max:100"},
		"message":     []string{"max:1000"},
	}
	messages := govalidator.MapData{
		"to": []string{
			"required:收件人邮箱不能为空",
			"email:收件人邮箱格式不正确",
		},
		"friend_name": []string{
			"max:收件人称呼不能超过 100 个字符",
		},
		"message": []string{
			"max:附言不能超过 1000 个字符",
		},
	}
	if err := ValidateStruct(&req, rules, messages); err != nil {
		return nil, err
	}
	return &req, nil
}
