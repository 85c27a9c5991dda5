package model

import (
	"time"
)

// Pool 奖金池档位定义（静态配置数据）
// id 升序 = 门槛递增；MaxTurnoverPerLeg 既是单腿封顶值，也是"至少一条腿"的最低贡献门槛
type Pool struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string    `gorm:"type:varchar(64);not null" json:"name"`
	MinDirectMembers  int       `gorm:"not null;default:0" json:"min_direct_members"`
	MinTurnover       float64   `gorm:"not null;default:0" json:"min_turnover"`
	MinTeamTurnover   float64   `gorm:"not null;default:0" json:"min_team_turnover"`
	MaxTurnoverPerLeg float64   `gorm:"not null;default:0" json:"max_turnover_per_leg"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Pool) TableName() string {
	return "pool"
}
