package model

import (
	"time"
)

// Rank 职级定义（静态配置数据，职级由运营评定后写到 user.rank_id）
// CumulativePercent 随 Order 单调递增，是 unstoppable 佣金压缩算法的输入
type Rank struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string    `gorm:"type:varchar(64);not null" json:"name"`
	Slug              string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug"`
	Order             int       `gorm:"column:rank_order;not null" json:"order"`
	CumulativePercent float64   `gorm:"not null" json:"cumulative_percent"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Rank) TableName() string {
	return "rank"
}
