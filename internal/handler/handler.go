package handler

import (
	"errors"
	"strconv"
	"time"

	"affiliatesystem/internal/config"
	"affiliatesystem/internal/repository"
	"affiliatesystem/internal/service"
	"affiliatesystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	cfg               *config.Config
	userService       *service.UserService
	paymentService    *service.PaymentService
	commissionService *service.CommissionService
	reconcileService  *service.ReconcileService
	poolService       *service.PoolService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		cfg:               cfg,
		userService:       service.NewUserService(db),
		paymentService:    service.NewPaymentService(db, rdb, cfg),
		commissionService: service.NewCommissionService(db),
		reconcileService:  service.NewReconcileService(db),
		poolService:       service.NewPoolService(db, cfg),
	}
}

// ============================================================
// 会员相关接口
// ============================================================

// Register 会员建档（带推荐关系）
// POST /api/v1/user/register
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrReferrerNotFound) {
			response.BusinessError(c, response.CodeReferrerNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"user_id":       user.ID,
		"referral_code": user.ReferralCode,
	})
}

// GetUser 查询会员详情
// GET /api/v1/user/detail?user_id=xxx
func (h *Handler) GetUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.BusinessError(c, response.CodeUserNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, user)
}

// GetMembers 查询直推成员
// GET /api/v1/user/members?user_id=xxx
func (h *Handler) GetMembers(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	members, err := h.userService.GetDirectMembers(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.BusinessError(c, response.CodeUserNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":  members,
		"total": len(members),
	})
}

// ============================================================
// 支付相关接口
// ============================================================

// CreatePayment 创建套餐购买/升级支付单
// POST /api/v1/payment/create
func (h *Handler) CreatePayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	payment, err := h.paymentService.CreatePayment(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			response.BusinessError(c, response.CodeUserNotFound, err.Error())
		case errors.Is(err, repository.ErrPackageNotFound):
			response.BusinessError(c, response.CodePackageNotFound, err.Error())
		case errors.Is(err, service.ErrPackageAlreadyOwned), errors.Is(err, service.ErrPackageNotUpgrade):
			response.BusinessError(c, response.CodePaymentFailed, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"payment_id": payment.ID,
		"payment_no": payment.PaymentNo,
		"amount":     payment.Amount,
		"status":     payment.Status,
		"expired_at": payment.ExpiredAt.Format(time.RFC3339),
	})
}

// GetPayment 查询支付单详情
// GET /api/v1/payment/detail?payment_id=xxx
func (h *Handler) GetPayment(c *gin.Context) {
	paymentID, err := strconv.ParseInt(c.Query("payment_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "payment_id 参数错误")
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			response.BusinessError(c, response.CodePaymentNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, payment)
}

// ListPayments 查询会员支付单列表
// GET /api/v1/payment/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListPayments(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	payments, total, err := h.paymentService.ListUserPayments(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      payments,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GatewayWebhook 支付网关回调
// POST /api/v1/payment/webhook
//
// 签名校验在外层回调网关完成，到这里的通知视为已确认。
// 重放回调是常态：锁 + 状态机 CAS 保证只结算一次。
func (h *Handler) GatewayWebhook(c *gin.Context) {
	var notification service.GatewayNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.paymentService.HandleGatewayNotification(c.Request.Context(), &notification); err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, nil)
}

// SimulateComplete 模拟支付完成（仅调试模式）
// POST /api/v1/payment/simulate
func (h *Handler) SimulateComplete(c *gin.Context) {
	if h.cfg.Server.Mode == "release" {
		response.Error(c, response.CodeForbidden, "生产环境禁止模拟支付")
		return
	}

	var req struct {
		PaymentID int64 `json:"payment_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.paymentService.CompletePayment(c.Request.Context(), req.PaymentID); err != nil {
		switch {
		case errors.Is(err, repository.ErrPaymentNotFound):
			response.BusinessError(c, response.CodePaymentNotFound, err.Error())
		case errors.Is(err, repository.ErrPaymentStatusInvalid):
			response.BusinessError(c, response.CodePaymentStatusInvalid, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"message": "支付完成",
	})
}

// ============================================================
// 佣金相关接口
// ============================================================

// ListCommissions 查询佣金流水
// GET /api/v1/commission/list?user_id=xxx&type=affiliate&page=1&page_size=20
func (h *Handler) ListCommissions(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := &repository.CommissionFilter{
		Type: c.Query("type"),
	}

	commissions, total, err := h.commissionService.ListUserCommissions(c.Request.Context(), userID, filter, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      commissions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Reconcile 佣金对账（审计端点触发的自愈）
// POST /api/v1/commission/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.reconcileService.Reconcile(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.BusinessError(c, response.CodeUserNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// ============================================================
// 奖金池相关接口
// ============================================================

// PoolEligibility 核验会员对某档位的资格明细
// GET /api/v1/pool/eligibility?user_id=xxx&pool_id=xxx
func (h *Handler) PoolEligibility(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}
	poolID, err := strconv.ParseInt(c.Query("pool_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "pool_id 参数错误")
		return
	}

	eligibility, err := h.poolService.CheckEligibilityByPoolID(c.Request.Context(), userID, poolID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			response.BusinessError(c, response.CodeUserNotFound, err.Error())
		case errors.Is(err, repository.ErrPoolNotFound):
			response.BusinessError(c, response.CodePoolNotFound, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"eligible": eligibility.Eligible,
		"reasons":  eligibility.Reasons,
	})
}

// PoolCheck 手动触发档位重估
// POST /api/v1/pool/check
func (h *Handler) PoolCheck(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.poolService.CheckAndUpgradeUser(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.BusinessError(c, response.CodeUserNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"upgraded":         result.Upgraded,
		"previous_pool_id": result.PreviousPoolID,
		"new_pool_id":      result.NewPoolID,
	})
}
