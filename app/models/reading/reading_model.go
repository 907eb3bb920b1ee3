// Package reading 塔罗牌解读记录
package reading

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Reading 塔罗牌解读记录模型
// 同一个结构同时用于远程表（PostgREST / PostgreSQL）和本地镜像的 JSON 序列化，
// 列名与 JSON 字段名保持一致（snake_case）
type Reading struct {
	ID             string            `gorm:"primaryKey;type:varchar(64)" json:"id"`             // UUID，旧数据可能是 reading_<时间戳>_<随机串>
	SiteName       string            `gorm:"type:varchar(100);index" json:"site_name"`          // 站点名称，多品牌共用一个库时区分归属
	ReadingType    ReadingType       `gorm:"type:varchar(20);index" json:"reading_type"`        // 解读类型
	Question       string            `gorm:"type:text" json:"question,omitempty"`               // 问题，仅 question 类型有
	SpreadName     string            `gorm:"type:varchar(100)" json:"spread_name"`              // 牌阵名称
	Cards          Cards             `gorm:"type:json" json:"cards"`                            // 抽到的牌，顺序对应牌阵位置
	Interpretation string            `gorm:"type:text" json:"interpretation"`                   // 解读内容，原样保存
	PersonalInfo   datatypes.JSONMap `json:"personal_info"`                                     // 个人信息（name, starsign）
	CreatedAt      time.Time         `gorm:"index;autoCreateTime:false" json:"created_at"`      // 创建时间，保存后不可变
	ExpiresAt      time.Time         `gorm:"index" json:"expires_at"`                           // 过期时间
	ViewCount      int64             `gorm:"not null" json:"view_count"`                        // 查看次数
	ShareCount     int64             `gorm:"not null" json:"share_count"`                       // 分享次数
	IsPublic       bool              `gorm:"not null;index" json:"is_public"`                   // 是否允许匿名访问
}

// TableName 指定表名
func (Reading) TableName() string {
	return "readings"
}

// BeforeCreate GORM 钩子
func (r *Reading) BeforeCreate(tx *gorm.DB) error {
	return r.Validate()
}
