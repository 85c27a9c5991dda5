package service

import (
	"context"

	"affiliatesystem/internal/model"
	"affiliatesystem/internal/repository"

	"gorm.io/gorm"
)

// CommissionService 佣金流水查询（历史账单接口用，分发本身见 DistributionService）
type CommissionService struct {
	commissionRepo *repository.CommissionRepository
}

func NewCommissionService(db *gorm.DB) *CommissionService {
	return &CommissionService{
		commissionRepo: repository.NewCommissionRepository(db),
	}
}

func (s *CommissionService) ListUserCommissions(ctx context.Context, userID int64, filter *repository.CommissionFilter, page, pageSize int) ([]*model.Commission, int64, error) {
	return s.commissionRepo.ListByUserID(ctx, userID, filter, page, pageSize)
}

func (s *CommissionService) ListPaymentCommissions(ctx context.Context, paymentID int64) ([]*model.Commission, error) {
	return s.commissionRepo.ListByPaymentID(ctx, paymentID)
}
