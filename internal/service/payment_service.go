package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"affiliatesystem/internal/config"
	"affiliatesystem/internal/infrastructure/lock"
	"affiliatesystem/internal/model"
	"affiliatesystem/internal/repository"
	"affiliatesystem/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrPackageAlreadyOwned = errors.New("已持有该套餐")
	ErrPackageNotUpgrade   = errors.New("目标套餐价格必须高于当前套餐")
)

// PaymentService 支付单生命周期
//
// 支付网关本身在系统外：这里只负责建单、接收"已确认完成"的回调、
// 推进状态机，并在完成时触发付款人业绩入账 + 佣金分发 + 档位重估。
// 网关签名校验由外层回调网关做，本服务信任传入的确认结果。
type PaymentService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	paymentRepo  *repository.PaymentRepository
	userRepo     *repository.UserRepository
	packageRepo  *repository.PackageRepository
	distribution *DistributionService
	poolService  *PoolService
}

func NewPaymentService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *PaymentService {
	return &PaymentService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		paymentRepo:  repository.NewPaymentRepository(db),
		userRepo:     repository.NewUserRepository(db),
		packageRepo:  repository.NewPackageRepository(db),
		distribution: NewDistributionService(db, cfg),
		poolService:  NewPoolService(db, cfg),
	}
}

type CreatePaymentRequest struct {
	UserID    int64 `json:"user_id" binding:"required"`
	PackageID int64 `json:"package_id" binding:"required"`
}

// CreatePayment 创建套餐购买/升级支付单
// 升级按差价计费，目标套餐必须比当前套餐贵
func (s *PaymentService) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*model.Payment, error) {
	user, err := s.userRepo.GetByID(ctx, nil, req.UserID)
	if err != nil {
		return nil, err
	}

	pkg, err := s.packageRepo.GetByID(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}

	itemType := model.PaymentItemPackagePurchase
	amount := pkg.Price

	if user.PackageID != nil {
		if *user.PackageID == pkg.ID {
			return nil, ErrPackageAlreadyOwned
		}
		current, err := s.packageRepo.GetByID(ctx, *user.PackageID)
		if err != nil {
			return nil, fmt.Errorf("查询当前套餐失败: %w", err)
		}
		amount = pkg.Price - current.Price
		if amount <= 0 {
			return nil, ErrPackageNotUpgrade
		}
		itemType = model.PaymentItemPackageUpgrade
	}

	payment := &model.Payment{
		PaymentNo: idgen.GeneratePaymentNo(),
		UserID:    user.ID,
		PackageID: &pkg.ID,
		ItemType:  itemType,
		Amount:    amount,
		Status:    model.PaymentStatusPending,
		ExpiredAt: time.Now().Add(time.Duration(s.cfg.Business.PaymentTimeoutMinutes) * time.Minute),
	}

	if err := s.paymentRepo.Create(ctx, nil, payment); err != nil {
		return nil, fmt.Errorf("创建支付单失败: %w", err)
	}

	return payment, nil
}

// BindProviderReference 回填网关交易号（由网关接入层在下单成功后调用）
func (s *PaymentService) BindProviderReference(ctx context.Context, paymentID int64, reference string) error {
	return s.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", paymentID).
		Update("provider_reference", reference).Error
}

// GatewayNotification 网关回调（回调网关层已完成签名校验）
type GatewayNotification struct {
	ProviderReference string `json:"provider_reference" binding:"required"`
	StatusCode        int    `json:"status_code"`
}

// HandleGatewayNotification 处理网关状态回调
// 未知交易号和中间状态直接忽略；只有终态才推进状态机
func (s *PaymentService) HandleGatewayNotification(ctx context.Context, notification *GatewayNotification) error {
	payment, err := s.paymentRepo.GetByProviderReference(ctx, notification.ProviderReference)
	if err != nil {
		return fmt.Errorf("查询支付单失败: %w", err)
	}
	if payment == nil || payment.Status != model.PaymentStatusPending {
		return nil
	}

	newStatus := mapGatewayStatus(notification.StatusCode)
	switch newStatus {
	case model.PaymentStatusCompleted:
		return s.CompletePayment(ctx, payment.ID)
	case model.PaymentStatusFailed:
		return s.paymentRepo.UpdateStatus(ctx, nil, payment.ID, model.PaymentStatusPending, model.PaymentStatusFailed)
	default:
		return nil
	}
}

// mapGatewayStatus 网关数字状态码映射
// 负数失败；2 或 >=100 完成；其余为中间态
func mapGatewayStatus(statusCode int) string {
	switch {
	case statusCode < 0:
		return model.PaymentStatusFailed
	case statusCode == 2 || statusCode >= 100:
		return model.PaymentStatusCompleted
	default:
		return model.PaymentStatusPending
	}
}

// CompletePayment 完成支付并触发分佣
//
// 【关键点】这是全系统的核心写入口，需要保证：
// 1. 幂等性：网关重放回调不会二次入账（分布式锁 + 状态机 CAS + 佣金唯一约束三重防线）
// 2. 原子性：状态推进、套餐生效、个人业绩入账在一个事务里
// 3. 降级：分佣失败不反噬支付结果，记日志转人工对账，绝不能让回调进崩溃重试循环
func (s *PaymentService) CompletePayment(ctx context.Context, paymentID int64) error {
	payment, err := s.paymentRepo.GetByID(ctx, nil, paymentID)
	if err != nil {
		return fmt.Errorf("查询支付单失败: %w", err)
	}
	if payment.Status == model.PaymentStatusCompleted {
		return nil
	}
	if payment.Status != model.PaymentStatusPending {
		return repository.ErrPaymentStatusInvalid
	}

	// 未配置 Redis 时跳过分布式锁（单测环境），幂等仍有状态机 CAS 兜底
	if s.redisClient != nil {
		payLock := lock.NewPaymentLock(s.redisClient, paymentID, uuid.New().String())
		if err := payLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer payLock.Unlock(ctx)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.UpdateStatus(ctx, tx, paymentID, model.PaymentStatusPending, model.PaymentStatusCompleted); err != nil {
			return fmt.Errorf("推进支付单状态失败: %w", err)
		}

		if payment.PackageID != nil {
			if err := s.userRepo.UpdatePackageID(ctx, tx, payment.UserID, *payment.PackageID); err != nil {
				return fmt.Errorf("套餐生效失败: %w", err)
			}
		}

		if err := s.userRepo.IncrementTurnover(ctx, tx, payment.UserID, payment.Amount); err != nil {
			return fmt.Errorf("个人业绩入账失败: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[Payment] 支付完成: paymentNo=%s, userID=%d, amount=%.2f",
		payment.PaymentNo, payment.UserID, payment.Amount)

	// 分佣有独立事务和唯一约束兜底，失败转人工对账，不回滚支付
	affectedIDs, err := s.distribution.Distribute(ctx, payment.UserID, paymentID, payment.Amount)
	if err != nil {
		log.Printf("[Payment] 分佣失败待人工对账: paymentID=%d, userID=%d, amount=%.2f, err=%v",
			paymentID, payment.UserID, payment.Amount, err)
		return nil
	}

	s.poolService.CheckAndUpgradeAll(ctx, affectedIDs)
	return nil
}

func (s *PaymentService) GetPayment(ctx context.Context, paymentID int64) (*model.Payment, error) {
	return s.paymentRepo.GetByID(ctx, nil, paymentID)
}

func (s *PaymentService) ListUserPayments(ctx context.Context, userID int64, page, pageSize int) ([]*model.Payment, int64, error) {
	return s.paymentRepo.ListByUserID(ctx, userID, page, pageSize)
}

// CloseExpiredPayments 关闭超时未支付的订单（由后台任务驱动）
func (s *PaymentService) CloseExpiredPayments(ctx context.Context, limit int) (int, error) {
	payments, err := s.paymentRepo.GetExpiredPayments(ctx, limit)
	if err != nil {
		return 0, err
	}

	closedCount := 0
	for _, payment := range payments {
		err := s.paymentRepo.UpdateStatus(ctx, nil, payment.ID, model.PaymentStatusPending, model.PaymentStatusCancelled)
		if err == nil {
			closedCount++
		}
	}

	return closedCount, nil
}
