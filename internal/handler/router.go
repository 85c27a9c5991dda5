package handler

import (
	"affiliatesystem/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 会员相关
		user := api.Group("/user")
		{
			user.POST("/register", h.Register)
			user.GET("/detail", h.GetUser)
			user.GET("/members", h.GetMembers)
		}

		// 支付相关
		payment := api.Group("/payment")
		{
			payment.POST("/create", h.CreatePayment)
			payment.GET("/detail", h.GetPayment)
			payment.GET("/list", h.ListPayments)
			payment.POST("/webhook", h.GatewayWebhook)
			payment.POST("/simulate", h.SimulateComplete)
		}

		// 佣金相关
		commission := api.Group("/commission")
		{
			commission.GET("/list", h.ListCommissions)
			commission.POST("/reconcile", h.Reconcile)
		}

		// 奖金池相关
		pool := api.Group("/pool")
		{
			pool.GET("/eligibility", h.PoolEligibility)
			pool.POST("/check", h.PoolCheck)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
