package model

import (
	"time"
)

// ============================================================================
// 佣金类型常量
// ============================================================================

const (
	CommissionTypeAffiliate   = "affiliate"   // 多级推荐佣金
	CommissionTypeUnstoppable = "unstoppable" // 职级（unstoppable）佣金
)

// Commission 佣金流水表
// 每一笔佣金分发写一条，是对账的唯一依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 每笔流水关联触发它的支付单和付款会员 —— 便于按单回放
// 3. 记录生效比例 —— 佣金额可以独立复算
// 4. (user_id, payment_id, type) 唯一 —— 同一笔支付对同一受益人同一类型只结一次
type Commission struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CommissionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"commission_no"`
	UserID       int64     `gorm:"not null;index;index:idx_commission_unique,unique" json:"user_id"`               // 受益会员
	CustomerID   int64     `gorm:"index;not null" json:"customer_id"`                                              // 付款会员
	PaymentID    int64     `gorm:"not null;index;index:idx_commission_unique,unique" json:"payment_id"`            // 触发的支付单
	Type         string    `gorm:"type:varchar(20);not null;index:idx_commission_unique,unique" json:"type"`       // affiliate / unstoppable
	Position     string    `gorm:"type:varchar(32);not null" json:"position"`     // 层级数字或职级名
	Percentage   float64   `gorm:"not null" json:"percentage"`                    // 生效比例
	Commission   float64   `gorm:"not null" json:"commission"`                    // 佣金额
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Commission) TableName() string {
	return "commission"
}
