package service

import (
	"context"
	"fmt"
	"log"
	"math"

	"affiliatesystem/internal/repository"

	"gorm.io/gorm"
)

// reconcileEpsilon 浮点误差容忍阈值，差额在此之内不算账目偏差
const reconcileEpsilon = 0.01

// ReconcileResult 对账结果
type ReconcileResult struct {
	CommissionEarned  float64 `json:"commission_earned"`
	CommissionBalance float64 `json:"commission_balance"`
	Discrepancy       bool    `json:"discrepancy"`
}

// ReconcileService 佣金对账
//
// 佣金流水是唯一事实来源：从流水复算累计佣金，和会员表缓存值比对，
// 偏差超过阈值就修正 —— 累计值直接覆盖，余额按差额平移（已提现部分要保住）。
// 这是系统对"部分失败/人工改数"造成漂移的唯一自愈手段。
type ReconcileService struct {
	db             *gorm.DB
	userRepo       *repository.UserRepository
	commissionRepo *repository.CommissionRepository
}

func NewReconcileService(db *gorm.DB) *ReconcileService {
	return &ReconcileService{
		db:             db,
		userRepo:       repository.NewUserRepository(db),
		commissionRepo: repository.NewCommissionRepository(db),
	}
}

// Reconcile 复算并校正某会员的佣金账目，幂等：连续两次执行第二次必然无偏差
func (s *ReconcileService) Reconcile(ctx context.Context, userID int64) (*ReconcileResult, error) {
	var result *ReconcileResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		calculatedEarned, err := s.commissionRepo.SumByUserID(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("汇总佣金流水失败: %w", err)
		}

		user, err := s.userRepo.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}

		discrepancy := math.Abs(user.CommissionEarned-calculatedEarned) > reconcileEpsilon

		difference := 0.0
		if discrepancy {
			difference = calculatedEarned - user.CommissionEarned
			if err := s.userRepo.CorrectCommissionTotals(ctx, tx, userID, calculatedEarned, difference); err != nil {
				return fmt.Errorf("校正佣金账目失败: %w", err)
			}

			log.Printf("[Reconcile] 佣金账目偏差已校正: userID=%d, 流水合计=%.2f, 缓存值=%.2f, 差额=%.2f",
				userID, calculatedEarned, user.CommissionEarned, difference)
		}

		result = &ReconcileResult{
			CommissionEarned:  calculatedEarned,
			CommissionBalance: user.CommissionBalance + difference,
			Discrepancy:       discrepancy,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
