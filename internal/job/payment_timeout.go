package job

import (
	"context"
	"log"
	"time"

	"affiliatesystem/internal/config"
	"affiliatesystem/internal/model"
	"affiliatesystem/internal/repository"

	"gorm.io/gorm"
)

// PaymentTimeoutJob 定时关闭超时未支付的支付单
// 网关侧的交易会自行过期，这里只负责把本地 PENDING 单收敛到 CANCELLED
type PaymentTimeoutJob struct {
	db          *gorm.DB
	paymentRepo *repository.PaymentRepository
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewPaymentTimeoutJob(db *gorm.DB, cfg *config.Config) *PaymentTimeoutJob {
	return &PaymentTimeoutJob{
		db:          db,
		paymentRepo: repository.NewPaymentRepository(db),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    30 * time.Second,
		batchSize:   100,
	}
}

func (j *PaymentTimeoutJob) Start(ctx context.Context) {
	log.Println("[PaymentTimeoutJob] 支付单超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[PaymentTimeoutJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[PaymentTimeoutJob] 任务停止")
			return
		case <-ticker.C:
			j.closeExpiredPayments(ctx)
		}
	}
}

func (j *PaymentTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *PaymentTimeoutJob) closeExpiredPayments(ctx context.Context) {
	payments, err := j.paymentRepo.GetExpiredPayments(ctx, j.batchSize)
	if err != nil {
		log.Printf("[PaymentTimeoutJob] 查询超时支付单失败: %v", err)
		return
	}

	if len(payments) == 0 {
		return
	}

	log.Printf("[PaymentTimeoutJob] 发现 %d 个超时支付单", len(payments))

	closedCount := 0
	for _, payment := range payments {
		err := j.paymentRepo.UpdateStatus(ctx, nil, payment.ID, model.PaymentStatusPending, model.PaymentStatusCancelled)
		if err != nil {
			log.Printf("[PaymentTimeoutJob] 关闭支付单失败: paymentNo=%s, err=%v", payment.PaymentNo, err)
			continue
		}
		closedCount++
		log.Printf("[PaymentTimeoutJob] 支付单已超时关闭: paymentNo=%s, userID=%d, amount=%.2f",
			payment.PaymentNo, payment.UserID, payment.Amount)
	}

	log.Printf("[PaymentTimeoutJob] 本次关闭 %d 个超时支付单", closedCount)
}
