package readingstore

import (
	"fmt"
	"strings"

	"tarotshare/app/models/reading"
)

// DefaultSpreadName 未指定牌阵时的名称
const DefaultSpreadName = "Single Card"

// Draft 待保存的解读，由调用方构建
type Draft struct {
	ReadingType    reading.ReadingType
	Question       string
	SpreadName     string
	Cards          reading.Cards
	Interpretation string
	PersonalInfo   map[string]interface{}

	// IsPublic 为 nil 时默认公开
	IsPublic *bool
}

// normalize 校验并补齐默认值
func (d Draft) normalize() (Draft, error) {
	if d.ReadingType == "" {
		d.ReadingType = reading.TypeGeneral
	}
	if !d.ReadingType.Valid() {
		return d, &ValidationError{Field: "reading_type", Message: fmt.Sprintf("unknown reading type %q", d.ReadingType)}
	}

	if len(d.Cards) == 0 {
		return d, &ValidationError{Field: "cards", Message: "at least one card is required"}
	}
	for i, card := range d.Cards {
		if strings.TrimSpace(card.Name) == "" {
			return d, &ValidationError{Field: fmt.Sprintf("cards[%d].name", i), Message: "card name is required"}
		}
	}

	// 问题原样保存，只在判断是否为空时去掉空白
	if d.ReadingType == reading.TypeQuestion {
		if strings.TrimSpace(d.Question) == "" {
			return d, &ValidationError{Field: "question", Message: "question is required for question readings"}
		}
	} else {
		// 只有 question 类型保存问题
		d.Question = ""
	}

	if strings.TrimSpace(d.SpreadName) == "" {
		d.SpreadName = DefaultSpreadName
	}
	if len(d.PersonalInfo) == 0 {
		d.PersonalInfo = nil
	}
	return d, nil
}
