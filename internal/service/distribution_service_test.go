package service

import (
	"context"
	"testing"
	"time"

	"affiliatesystem/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedCompletedPayment(t *testing.T, db *gorm.DB, userID int64, amount float64) *model.Payment {
	t.Helper()
	now := time.Now()
	payment := &model.Payment{
		PaymentNo:   "PAYTEST" + now.Format("20060102150405.000000000"),
		UserID:      userID,
		ItemType:    model.PaymentItemPackagePurchase,
		Amount:      amount,
		Status:      model.PaymentStatusCompleted,
		ExpiredAt:   now.Add(time.Hour),
		CompletedAt: &now,
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

// 标准场景：P 付款 1000，上级链 P -> A(Silver 10%) -> B(Gold 20%)
//
//	推荐佣金：A 第 1 层 8% = 80，B 第 2 层 2% = 20
//	职级佣金：A 拿 10% = 100，B 拿差额 10% = 100
//	团队业绩：A、B 各 +1000，P 自己不加
func TestDistributeFullScenario(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	silver := seedRank(t, db, "Silver", "silver", 1, 10)
	gold := seedRank(t, db, "Gold", "gold", 2, 20)

	b := seedUser(t, db, &model.User{Email: "b@test.com", ReferralCode: "B", IsActive: true, RankID: &gold.ID})
	a := seedUser(t, db, &model.User{Email: "a@test.com", ReferralCode: "A", ReferredByCode: strPtr("B"), IsActive: true, RankID: &silver.ID})
	p := seedUser(t, db, &model.User{Email: "p@test.com", ReferralCode: "P", ReferredByCode: strPtr("A"), IsActive: true})

	payment := seedCompletedPayment(t, db, p.ID, 1000)

	svc := NewDistributionService(db, newTestConfig())
	affectedIDs, err := svc.Distribute(ctx, p.ID, payment.ID, 1000)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{a.ID, b.ID, p.ID}, affectedIDs)

	// 佣金流水：2 条推荐 + 2 条职级
	var commissions []*model.Commission
	require.NoError(t, db.Where("payment_id = ?", payment.ID).Order("id ASC").Find(&commissions).Error)
	require.Len(t, commissions, 4)

	byUserAndType := map[int64]map[string]*model.Commission{}
	for _, c := range commissions {
		if byUserAndType[c.UserID] == nil {
			byUserAndType[c.UserID] = map[string]*model.Commission{}
		}
		byUserAndType[c.UserID][c.Type] = c
	}

	assert.InDelta(t, 80.0, byUserAndType[a.ID][model.CommissionTypeAffiliate].Commission, 0.001)
	assert.Equal(t, "1", byUserAndType[a.ID][model.CommissionTypeAffiliate].Position)
	assert.InDelta(t, 20.0, byUserAndType[b.ID][model.CommissionTypeAffiliate].Commission, 0.001)
	assert.Equal(t, "2", byUserAndType[b.ID][model.CommissionTypeAffiliate].Position)

	assert.InDelta(t, 100.0, byUserAndType[a.ID][model.CommissionTypeUnstoppable].Commission, 0.001)
	assert.Equal(t, "Silver", byUserAndType[a.ID][model.CommissionTypeUnstoppable].Position)
	assert.InDelta(t, 100.0, byUserAndType[b.ID][model.CommissionTypeUnstoppable].Commission, 0.001)
	assert.Equal(t, "Gold", byUserAndType[b.ID][model.CommissionTypeUnstoppable].Position)

	// 账户入账：流水和缓存值一致
	aReloaded := reloadUser(t, db, a.ID)
	assert.InDelta(t, 180.0, aReloaded.CommissionEarned, 0.001)
	assert.InDelta(t, 180.0, aReloaded.CommissionBalance, 0.001)
	assert.InDelta(t, 1000.0, aReloaded.TeamTurnover, 0.001)

	bReloaded := reloadUser(t, db, b.ID)
	assert.InDelta(t, 120.0, bReloaded.CommissionEarned, 0.001)
	assert.InDelta(t, 1000.0, bReloaded.TeamTurnover, 0.001)

	// 付款人自己：没有佣金，团队业绩不变
	pReloaded := reloadUser(t, db, p.ID)
	assert.InDelta(t, 0.0, pReloaded.CommissionEarned, 0.001)
	assert.InDelta(t, 0.0, pReloaded.TeamTurnover, 0.001)

	// 结算事件与分佣同事务落地
	var outboxCount int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).Count(&outboxCount).Error)
	assert.Equal(t, int64(1), outboxCount)
}

func TestDistributeRejectsInvalidAmount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	svc := NewDistributionService(db, newTestConfig())

	_, err := svc.Distribute(ctx, 1, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Distribute(ctx, 1, 1, -10)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDistributeRejectsUnsettledPayment(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := seedUser(t, db, &model.User{Email: "p@test.com", ReferralCode: "P", IsActive: true})
	payment := &model.Payment{
		PaymentNo: "PAYPENDING001",
		UserID:    p.ID,
		ItemType:  model.PaymentItemPackagePurchase,
		Amount:    1000,
		Status:    model.PaymentStatusPending,
		ExpiredAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(payment).Error)

	svc := NewDistributionService(db, newTestConfig())
	_, err := svc.Distribute(ctx, p.ID, payment.ID, 1000)
	assert.ErrorIs(t, err, ErrPaymentNotSettled)
}

func TestDistributeRootUserNoAncestors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := seedUser(t, db, &model.User{Email: "p@test.com", ReferralCode: "P", IsActive: true})
	payment := seedCompletedPayment(t, db, p.ID, 500)

	svc := NewDistributionService(db, newTestConfig())
	affectedIDs, err := svc.Distribute(ctx, p.ID, payment.ID, 500)
	require.NoError(t, err)

	// 没有上级：不产生任何佣金，只返回付款人自己
	assert.Equal(t, []int64{p.ID}, affectedIDs)

	var count int64
	require.NoError(t, db.Model(&model.Commission{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

// 全有或全无：中途失败时，已写入的佣金、业绩、发件箱全部回滚
func TestDistributeRollsBackOnMidwayFailure(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := seedUser(t, db, &model.User{Email: "b@test.com", ReferralCode: "B", IsActive: true})
	a := seedUser(t, db, &model.User{Email: "a@test.com", ReferralCode: "A", ReferredByCode: strPtr("B"), IsActive: true})
	p := seedUser(t, db, &model.User{Email: "p@test.com", ReferralCode: "P", ReferredByCode: strPtr("A"), IsActive: true})

	payment := seedCompletedPayment(t, db, p.ID, 1000)

	// 预埋一条和 B 的第 2 层推荐佣金撞唯一约束的流水：
	// A 的佣金先写入成功，写 B 时违反 (user_id, payment_id, type) 唯一索引
	require.NoError(t, db.Create(&model.Commission{
		CommissionNo: "COMCONFLICT001",
		UserID:       b.ID,
		CustomerID:   p.ID,
		PaymentID:    payment.ID,
		Type:         model.CommissionTypeAffiliate,
		Position:     "2",
		Percentage:   2,
		Commission:   20,
	}).Error)

	svc := NewDistributionService(db, newTestConfig())
	_, err := svc.Distribute(ctx, p.ID, payment.ID, 1000)
	require.Error(t, err)

	// A 已写入的部分必须被回滚
	aReloaded := reloadUser(t, db, a.ID)
	assert.InDelta(t, 0.0, aReloaded.CommissionEarned, 0.001)
	assert.InDelta(t, 0.0, aReloaded.TeamTurnover, 0.001)

	bReloaded := reloadUser(t, db, b.ID)
	assert.InDelta(t, 0.0, bReloaded.CommissionEarned, 0.001)
	assert.InDelta(t, 0.0, bReloaded.TeamTurnover, 0.001)

	// 流水只剩预埋的那条，发件箱为空
	var commissionCount int64
	require.NoError(t, db.Model(&model.Commission{}).Count(&commissionCount).Error)
	assert.Equal(t, int64(1), commissionCount)

	var outboxCount int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).Count(&outboxCount).Error)
	assert.Equal(t, int64(0), outboxCount)
}

// 唯一约束本身就是重复分佣的最后防线：同一笔支付重复分佣必然失败
func TestDistributeTwiceRejectedByUniqueIndex(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedUser(t, db, &model.User{Email: "a@test.com", ReferralCode: "A", IsActive: true})
	p := seedUser(t, db, &model.User{Email: "p@test.com", ReferralCode: "P", ReferredByCode: strPtr("A"), IsActive: true})

	payment := seedCompletedPayment(t, db, p.ID, 1000)

	svc := NewDistributionService(db, newTestConfig())
	_, err := svc.Distribute(ctx, p.ID, payment.ID, 1000)
	require.NoError(t, err)

	_, err = svc.Distribute(ctx, p.ID, payment.ID, 1000)
	require.Error(t, err)

	// 第二次整体回滚，账目保持第一次的结果
	var commissionCount int64
	require.NoError(t, db.Model(&model.Commission{}).Count(&commissionCount).Error)
	assert.Equal(t, int64(1), commissionCount)
}
