package model

import (
	"time"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusCancelled = "CANCELLED"
)

var ValidPaymentTransitions = map[string][]string{
	PaymentStatusPending: {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidPaymentTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	PaymentItemPackagePurchase = "PACKAGE_PURCHASE"
	PaymentItemPackageUpgrade  = "PACKAGE_UPGRADE"
)

// Payment 支付单
// 由支付网关回调推进到终态；COMPLETED 之后对引擎只读，佣金分发只引用不修改
type Payment struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_no"`
	UserID            int64      `gorm:"index;not null" json:"user_id"`            // 付款会员
	PackageID         *int64     `gorm:"index" json:"package_id"`                  // 购买/升级的套餐
	ItemType          string     `gorm:"type:varchar(32);not null" json:"item_type"`
	Amount            float64    `gorm:"not null" json:"amount"`                   // 金额（美元）
	Status            string     `gorm:"type:varchar(20);index;not null" json:"status"`
	ProviderReference string     `gorm:"type:varchar(128);index" json:"provider_reference"` // 网关交易号
	ExpiredAt         time.Time  `gorm:"not null" json:"expired_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payment"
}
