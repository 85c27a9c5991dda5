package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"affiliatesystem/internal/config"
	"affiliatesystem/internal/model"
	"affiliatesystem/internal/repository"
	"affiliatesystem/pkg/idgen"

	"gorm.io/gorm"
)

var (
	ErrInvalidAmount      = errors.New("金额必须大于0")
	ErrPaymentNotSettled  = errors.New("支付单未完成，不能分佣")
)

// DistributionService 佣金分发编排
//
// 一笔支付的分佣是一个原子单元：推荐佣金、职级佣金、团队业绩传播
// 在同一个数据库事务里完成，要么全部落地要么全部回滚，
// 外部永远观察不到"发了一半"的状态。
//
// 【重要】分佣失败不自动重试 —— 资金写入重试的重复发放风险大于便利，
// 失败上抛由调用方决策（标记待人工对账）。
type DistributionService struct {
	db             *gorm.DB
	cfg            *config.Config
	userRepo       *repository.UserRepository
	paymentRepo    *repository.PaymentRepository
	commissionRepo *repository.CommissionRepository
	outboxRepo     *repository.OutboxRepository
	walker         *TreeWalker
	affiliate      *AffiliateCalculator
	unstoppable    *UnstoppableCalculator
}

func NewDistributionService(db *gorm.DB, cfg *config.Config) *DistributionService {
	return &DistributionService{
		db:             db,
		cfg:            cfg,
		userRepo:       repository.NewUserRepository(db),
		paymentRepo:    repository.NewPaymentRepository(db),
		commissionRepo: repository.NewCommissionRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
		walker:         NewTreeWalker(db),
		affiliate:      NewAffiliateCalculator(db, &cfg.Commission),
		unstoppable:    NewUnstoppableCalculator(db, &cfg.Commission),
	}
}

// Distribute 对一笔已完成支付执行分佣
// 返回受影响的会员 ID 集合（付款人 + 全部祖先），供奖金池重估使用
func (s *DistributionService) Distribute(ctx context.Context, customerID, paymentID int64, amount float64) ([]int64, error) {
	// 金额校验在任何查询之前
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	payment, err := s.paymentRepo.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, fmt.Errorf("查询支付单失败: %w", err)
	}
	if payment.Status != model.PaymentStatusCompleted {
		return nil, ErrPaymentNotSettled
	}

	var affectedIDs []int64

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 树遍历放在事务内，保证看到的祖先链和要写的行是同一个快照
		customer, err := s.userRepo.GetByID(ctx, tx, customerID)
		if err != nil {
			return fmt.Errorf("查询付款会员失败: %w", err)
		}

		ancestors, err := s.walker.WalkAncestors(ctx, tx, customer)
		if err != nil {
			return fmt.Errorf("遍历推荐链失败: %w", err)
		}

		// 1. 多级推荐佣金
		affiliateBonuses, err := s.affiliate.Calculate(ctx, tx, ancestors, amount)
		if err != nil {
			return fmt.Errorf("计算推荐佣金失败: %w", err)
		}
		for _, bonus := range affiliateBonuses {
			if bonus.Commission == nil {
				continue
			}
			if err := s.settleCommission(ctx, tx, &model.Commission{
				CommissionNo: idgen.GenerateCommissionNo(),
				UserID:       bonus.UserID,
				CustomerID:   customerID,
				PaymentID:    paymentID,
				Type:         model.CommissionTypeAffiliate,
				Position:     strconv.Itoa(bonus.Level),
				Percentage:   bonus.Percentage,
				Commission:   *bonus.Commission,
			}); err != nil {
				return err
			}
		}

		// 2. 职级佣金
		unstoppableBonuses, err := s.unstoppable.Calculate(ctx, tx, ancestors, amount)
		if err != nil {
			return fmt.Errorf("计算职级佣金失败: %w", err)
		}
		for _, bonus := range unstoppableBonuses {
			if bonus.Commission == nil {
				continue
			}
			if err := s.settleCommission(ctx, tx, &model.Commission{
				CommissionNo: idgen.GenerateCommissionNo(),
				UserID:       bonus.UserID,
				CustomerID:   customerID,
				PaymentID:    paymentID,
				Type:         model.CommissionTypeUnstoppable,
				Position:     bonus.RankName,
				Percentage:   *bonus.Bonus,
				Commission:   *bonus.Commission,
			}); err != nil {
				return err
			}
		}

		// 3. 团队业绩传播：所有祖先各加一次，付款人自己不加
		ancestorIDs := make([]int64, 0, len(ancestors))
		for _, ancestor := range ancestors {
			ancestorIDs = append(ancestorIDs, ancestor.ID)
		}
		if err := s.userRepo.IncrementTeamTurnover(ctx, tx, ancestorIDs, amount); err != nil {
			return fmt.Errorf("累加团队业绩失败: %w", err)
		}

		// 4. 结算事件进发件箱，和分佣同事务落地
		msgPayload := map[string]interface{}{
			"payment_id":     paymentID,
			"payment_no":     payment.PaymentNo,
			"customer_id":    customerID,
			"amount":         amount,
			"affected_users": len(ancestorIDs) + 1,
			"settled_at":     time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: payment.PaymentNo,
			Topic:      s.cfg.Kafka.Topic.CommissionSettled,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入结算事件失败: %w", err)
		}

		affectedIDs = append(ancestorIDs, customerID)
		return nil
	})

	if err != nil {
		log.Printf("[Distribution] 分佣失败已回滚: customerID=%d, paymentID=%d, amount=%.2f, err=%v",
			customerID, paymentID, amount, err)
		return nil, err
	}

	log.Printf("[Distribution] 分佣完成: customerID=%d, paymentID=%d, amount=%.2f, affected=%d",
		customerID, paymentID, amount, len(affectedIDs))

	return affectedIDs, nil
}

// settleCommission 落一条佣金流水并给受益人入账
func (s *DistributionService) settleCommission(ctx context.Context, tx *gorm.DB, commission *model.Commission) error {
	if err := s.commissionRepo.Create(ctx, tx, commission); err != nil {
		return fmt.Errorf("写入佣金流水失败: %w", err)
	}
	if err := s.userRepo.IncrementCommission(ctx, tx, commission.UserID, commission.Commission); err != nil {
		return fmt.Errorf("佣金入账失败: %w", err)
	}
	return nil
}
