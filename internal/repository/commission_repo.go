package repository

import (
	"context"
	"time"

	"affiliatesystem/internal/model"

	"gorm.io/gorm"
)

type CommissionRepository struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

func (r *CommissionRepository) Create(ctx context.Context, tx *gorm.DB, commission *model.Commission) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(commission).Error
}

// SumByUserID 复算某会员的佣金总额（对账基准）
func (r *CommissionRepository) SumByUserID(ctx context.Context, tx *gorm.DB, userID int64) (float64, error) {
	if tx == nil {
		tx = r.db
	}
	var total float64
	err := tx.WithContext(ctx).
		Model(&model.Commission{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(commission), 0)").
		Scan(&total).Error
	return total, err
}

type CommissionFilter struct {
	Type      string
	StartDate *time.Time
	EndDate   *time.Time
}

func (r *CommissionRepository) ListByUserID(ctx context.Context, userID int64, filter *CommissionFilter, page, pageSize int) ([]*model.Commission, int64, error) {
	var commissions []*model.Commission
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Commission{}).Where("user_id = ?", userID)
	if filter != nil {
		if filter.Type != "" {
			query = query.Where("type = ?", filter.Type)
		}
		if filter.StartDate != nil {
			query = query.Where("created_at >= ?", *filter.StartDate)
		}
		if filter.EndDate != nil {
			query = query.Where("created_at <= ?", *filter.EndDate)
		}
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&commissions).Error

	return commissions, total, err
}

func (r *CommissionRepository) ListByPaymentID(ctx context.Context, paymentID int64) ([]*model.Commission, error) {
	var commissions []*model.Commission
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("id ASC").
		Find(&commissions).Error
	return commissions, err
}

func (r *CommissionRepository) CountByPaymentID(ctx context.Context, paymentID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Commission{}).
		Where("payment_id = ?", paymentID).
		Count(&count).Error
	return count, err
}
