package model

import (
	"time"
)

// User 会员账户表
// 既是会员身份，也是佣金账本的节点：推荐关系通过 referral_code 串联成树
//
// 【重要】推荐关系设计：
// 1. referred_by_code 存的是上级的 referral_code，不是外键 —— 数据层不保证无环
// 2. 所以所有沿树向上的遍历必须自带防环保护，不能信任数据
// 3. turnover / team_turnover / commission_* 只允许原子自增，禁止读改写
type User struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email             string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	ReferralCode      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"referral_code"`    // 本人的推荐码
	ReferredByCode    *string    `gorm:"type:varchar(64);index" json:"referred_by_code"`                // 上级的推荐码（根节点为空）
	Turnover          float64    `gorm:"not null;default:0" json:"turnover"`                            // 个人业绩（只增）
	TeamTurnover      float64    `gorm:"not null;default:0" json:"team_turnover"`                       // 团队业绩（整个下级树的累计支付额）
	CommissionEarned  float64    `gorm:"not null;default:0" json:"commission_earned"`                   // 累计佣金（只增，对账基准）
	CommissionBalance float64    `gorm:"not null;default:0" json:"commission_balance"`                  // 可提现佣金余额
	IsActive          bool       `gorm:"not null;default:false" json:"is_active"`                       // 会籍是否有效（由会费到期日维护）
	MembershipDueDate *time.Time `json:"membership_due_date"`                                           // 会费到期日
	RankID            *int64     `gorm:"index" json:"rank_id"`                                          // 职级（外部评定）
	PoolID            *int64     `gorm:"index" json:"pool_id"`                                          // 奖金池档位（本引擎评定）
	PackageID         *int64     `gorm:"index" json:"package_id"`                                       // 已购套餐
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
