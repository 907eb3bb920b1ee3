package reading

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalid 记录不完整或字段不合法
var ErrInvalid = errors.New("invalid reading")

// ReadingType 塔罗牌解读类型
type ReadingType string

const (
	TypeQuestion  ReadingType = "question"  // 针对具体问题的解读
	TypeGeneral   ReadingType = "general"   // 综合运势
	TypeHoroscope ReadingType = "horoscope" // 星座运势
)

// Valid 是否为已知的解读类型
func (t ReadingType) Valid() bool {
	switch t {
	case TypeQuestion, TypeGeneral, TypeHoroscope:
		return true
	}
	return false
}

// Card 抽到的一张牌的快照
type Card struct {
	Name     string `json:"name"`
	Number   int    `json:"number"`
	Suit     string `json:"suit,omitempty"`
	Reversed bool   `json:"reversed"`
	Position string `json:"position,omitempty"` // 在牌阵中的位置，如 "Past"
}

// Cards 自定义类型用于处理卡牌数组的JSON序列化
type Cards []Card

// Value 实现 driver.Valuer 接口
func (c Cards) Value() (driver.Value, error) {
	if len(c) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (c *Cards) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		*c = Cards{}
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid type for cards")
	}

	return json.Unmarshal(bytes, c)
}

// Validate 验证记录
func (r *Reading) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if !r.ReadingType.Valid() {
		return fmt.Errorf("%w: invalid reading type", ErrInvalid)
	}
	if len(r.Cards) == 0 {
		return fmt.Errorf("%w: cards cannot be empty", ErrInvalid)
	}
	if !r.ExpiresAt.After(r.CreatedAt) {
		return fmt.Errorf("%w: expires_at must be after created_at", ErrInvalid)
	}
	return nil
}

// IsExpiredAt 在 now 时刻是否已过期，恰好到达 expires_at 即视为过期
func (r *Reading) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// UserName 个人信息中的姓名
func (r *Reading) UserName() string {
	if r.PersonalInfo == nil {
		return ""
	}
	name, _ := r.PersonalInfo["name"].(string)
	return name
}

// Clone 深拷贝，避免调用方修改缓存中的对象
func (r *Reading) Clone() *Reading {
	cp := *r
	if r.Cards != nil {
		cp.Cards = make(Cards, len(r.Cards))
		copy(cp.Cards, r.Cards)
	}
	if r.PersonalInfo != nil {
		cp.PersonalInfo = make(map[string]interface{}, len(r.PersonalInfo))
		for k, v := range r.PersonalInfo {
			cp.PersonalInfo[k] = v
		}
	}
	return &cp
}
