package service

import (
	"fmt"
	"strings"
	"testing"

	"affiliatesystem/internal/config"
	"affiliatesystem/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 每个测试用独立的内存库，互不串数据
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.User{},
		&model.Package{},
		&model.Rank{},
		&model.Pool{},
		&model.Payment{},
		&model.Commission{},
		&model.OutboxMessage{},
	)
	require.NoError(t, err)

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Commission: config.CommissionConfig{
			ReferralPercent: 100,
			Levels:          []float64{8, 2},
			LevelDepth:      2,
			AffiliatePolicy: AffiliatePolicyQualified,
		},
		Pool: config.PoolConfig{
			Policy: PoolPolicyHighest,
		},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{CommissionSettled: "commission.settled"},
		},
		Business: config.BusinessConfig{
			PaymentTimeoutMinutes: 60,
		},
	}
}

func seedUser(t *testing.T, db *gorm.DB, user *model.User) *model.User {
	t.Helper()
	require.NoError(t, db.Create(user).Error)
	return user
}

func reloadUser(t *testing.T, db *gorm.DB, userID int64) *model.User {
	t.Helper()
	var user model.User
	require.NoError(t, db.Where("id = ?", userID).First(&user).Error)
	return &user
}

func strPtr(s string) *string { return &s }
