package service

import (
	"context"
	"testing"

	"affiliatesystem/internal/config"
	"affiliatesystem/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func affiliateConfig(policy string) *config.CommissionConfig {
	return &config.CommissionConfig{
		ReferralPercent: 100,
		Levels:          []float64{8, 2},
		LevelDepth:      2,
		AffiliatePolicy: policy,
	}
}

func TestAffiliateFlatPolicy(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := seedUser(t, db, &model.User{Email: "a@test.com", ReferralCode: "A", IsActive: true})
	b := seedUser(t, db, &model.User{Email: "b@test.com", ReferralCode: "B", IsActive: false})
	c := seedUser(t, db, &model.User{Email: "c@test.com", ReferralCode: "C", IsActive: true})

	calc := NewAffiliateCalculator(db, affiliateConfig(AffiliatePolicyFlat))
	bonuses, err := calc.Calculate(ctx, nil, []*model.User{a, b, c}, 1000)
	require.NoError(t, err)

	// flat 按跳数定层、无条件得佣，走满 2 层截止
	require.Len(t, bonuses, 2)

	assert.Equal(t, 1, bonuses[0].Level)
	assert.Equal(t, 8.0, bonuses[0].Percentage)
	require.NotNil(t, bonuses[0].Commission)
	assert.InDelta(t, 80.0, *bonuses[0].Commission, 0.001)

	// 不活跃也照发
	assert.Equal(t, b.ID, bonuses[1].UserID)
	assert.Equal(t, 2, bonuses[1].Level)
	require.NotNil(t, bonuses[1].Commission)
	assert.InDelta(t, 20.0, *bonuses[1].Commission, 0.001)
}

func TestAffiliateQualifiedPolicy(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// 链：leaf -> a -> b -> c
	c := seedUser(t, db, &model.User{Email: "c@test.com", ReferralCode: "C", IsActive: true})
	b := seedUser(t, db, &model.User{Email: "b@test.com", ReferralCode: "B", ReferredByCode: strPtr("C"), IsActive: true})
	a := seedUser(t, db, &model.User{Email: "a@test.com", ReferralCode: "A", ReferredByCode: strPtr("B"), IsActive: true})
	seedUser(t, db, &model.User{Email: "leaf@test.com", ReferralCode: "LEAF", ReferredByCode: strPtr("A"), IsActive: true})

	calc := NewAffiliateCalculator(db, affiliateConfig(AffiliatePolicyQualified))
	bonuses, err := calc.Calculate(ctx, nil, []*model.User{a, b, c}, 1000)
	require.NoError(t, err)

	// a 在第 1 层（需直推 >=0），b 在第 2 层（需直推 >=1，b 直推了 a）
	require.Len(t, bonuses, 2)
	assert.Equal(t, a.ID, bonuses[0].UserID)
	assert.InDelta(t, 80.0, *bonuses[0].Commission, 0.001)
	assert.Equal(t, b.ID, bonuses[1].UserID)
	assert.InDelta(t, 20.0, *bonuses[1].Commission, 0.001)
}

func TestAffiliateQualifiedSkipsInactive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// a 不活跃：记录在结果里但不得佣，且不占层 —— b 顶上第 1 层
	c := seedUser(t, db, &model.User{Email: "c@test.com", ReferralCode: "C", IsActive: true})
	b := seedUser(t, db, &model.User{Email: "b@test.com", ReferralCode: "B", ReferredByCode: strPtr("C"), IsActive: true})
	a := seedUser(t, db, &model.User{Email: "a@test.com", ReferralCode: "A", ReferredByCode: strPtr("B"), IsActive: false})
	seedUser(t, db, &model.User{Email: "leaf@test.com", ReferralCode: "LEAF", ReferredByCode: strPtr("A"), IsActive: true})

	calc := NewAffiliateCalculator(db, affiliateConfig(AffiliatePolicyQualified))
	bonuses, err := calc.Calculate(ctx, nil, []*model.User{a, b, c}, 1000)
	require.NoError(t, err)

	require.Len(t, bonuses, 3)

	assert.Equal(t, a.ID, bonuses[0].UserID)
	assert.False(t, bonuses[0].IsActive)
	assert.Nil(t, bonuses[0].Commission)

	assert.Equal(t, b.ID, bonuses[1].UserID)
	assert.Equal(t, 1, bonuses[1].Level)
	require.NotNil(t, bonuses[1].Commission)
	assert.InDelta(t, 80.0, *bonuses[1].Commission, 0.001)

	assert.Equal(t, c.ID, bonuses[2].UserID)
	assert.Equal(t, 2, bonuses[2].Level)
	require.NotNil(t, bonuses[2].Commission)
	assert.InDelta(t, 20.0, *bonuses[2].Commission, 0.001)
}

func TestAffiliateQualifiedDirectCountRequirement(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// b 活跃但只直推了 0 人，第 2 层需要直推 >=1：不得佣也不占层
	b := seedUser(t, db, &model.User{Email: "b@test.com", ReferralCode: "B", IsActive: true})
	a := seedUser(t, db, &model.User{Email: "a@test.com", ReferralCode: "A", IsActive: true})
	seedUser(t, db, &model.User{Email: "leaf@test.com", ReferralCode: "LEAF", ReferredByCode: strPtr("A"), IsActive: true})

	calc := NewAffiliateCalculator(db, affiliateConfig(AffiliatePolicyQualified))
	bonuses, err := calc.Calculate(ctx, nil, []*model.User{a, b}, 1000)
	require.NoError(t, err)

	require.Len(t, bonuses, 2)
	require.NotNil(t, bonuses[0].Commission)
	assert.True(t, bonuses[1].IsActive)
	assert.False(t, bonuses[1].IsQualified)
	assert.Nil(t, bonuses[1].Commission)
}

func TestAffiliateLevelTableReuseLastEntry(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := seedUser(t, db, &model.User{Email: "a@test.com", ReferralCode: "A", IsActive: true})
	b := seedUser(t, db, &model.User{Email: "b@test.com", ReferralCode: "B", IsActive: true})
	c := seedUser(t, db, &model.User{Email: "c@test.com", ReferralCode: "C", IsActive: true})

	// 比例表只有一档 5%，深度 3：第 2、3 层沿用最后一档
	cfg := &config.CommissionConfig{
		ReferralPercent: 100,
		Levels:          []float64{5},
		LevelDepth:      3,
		AffiliatePolicy: AffiliatePolicyFlat,
	}

	calc := NewAffiliateCalculator(db, cfg)
	bonuses, err := calc.Calculate(ctx, nil, []*model.User{a, b, c}, 1000)
	require.NoError(t, err)

	require.Len(t, bonuses, 3)
	for _, bonus := range bonuses {
		assert.Equal(t, 5.0, bonus.Percentage)
		require.NotNil(t, bonus.Commission)
		assert.InDelta(t, 50.0, *bonus.Commission, 0.001)
	}
}

func TestAffiliateReferralPercentScales(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := seedUser(t, db, &model.User{Email: "a@test.com", ReferralCode: "A", IsActive: true})

	// 全局比例 50%：各层佣金同比例缩水
	cfg := &config.CommissionConfig{
		ReferralPercent: 50,
		Levels:          []float64{8, 2},
		LevelDepth:      2,
		AffiliatePolicy: AffiliatePolicyFlat,
	}

	calc := NewAffiliateCalculator(db, cfg)
	bonuses, err := calc.Calculate(ctx, nil, []*model.User{a}, 1000)
	require.NoError(t, err)

	require.Len(t, bonuses, 1)
	assert.InDelta(t, 40.0, *bonuses[0].Commission, 0.001)
}

func TestAffiliateUnknownPolicy(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	calc := NewAffiliateCalculator(db, affiliateConfig("whatever"))
	_, err := calc.Calculate(ctx, nil, nil, 1000)
	assert.Error(t, err)
}
