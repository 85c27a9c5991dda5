package repository

import (
	"context"
	"testing"

	"affiliatesystem/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetByReferralCodeMissingIsNotError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	repo := NewUserRepository(db)
	user, err := repo.GetByReferralCode(ctx, nil, "NOBODY")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestIncrementTeamTurnoverBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	repo := NewUserRepository(db)

	a := &model.User{Email: "a@test.com", ReferralCode: "A"}
	b := &model.User{Email: "b@test.com", ReferralCode: "B"}
	c := &model.User{Email: "c@test.com", ReferralCode: "C"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))
	require.NoError(t, repo.Create(ctx, c))

	require.NoError(t, repo.IncrementTeamTurnover(ctx, nil, []int64{a.ID, b.ID}, 500))
	require.NoError(t, repo.IncrementTeamTurnover(ctx, nil, []int64{a.ID}, 300))

	aReloaded, err := repo.GetByID(ctx, nil, a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 800.0, aReloaded.TeamTurnover, 0.001)

	bReloaded, err := repo.GetByID(ctx, nil, b.ID)
	require.NoError(t, err)
	assert.InDelta(t, 500.0, bReloaded.TeamTurnover, 0.001)

	cReloaded, err := repo.GetByID(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, cReloaded.TeamTurnover, 0.001)
}

func TestIncrementTeamTurnoverEmptySlice(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// 根用户付款没有祖先：空集合直接返回，不报错
	repo := NewUserRepository(db)
	assert.NoError(t, repo.IncrementTeamTurnover(ctx, nil, nil, 500))
}

func TestIncrementCommissionKeepsEarnedAndBalanceInSync(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	repo := NewUserRepository(db)
	u := &model.User{Email: "u@test.com", ReferralCode: "U"}
	require.NoError(t, repo.Create(ctx, u))

	require.NoError(t, repo.IncrementCommission(ctx, nil, u.ID, 80))
	require.NoError(t, repo.IncrementCommission(ctx, nil, u.ID, 20))

	reloaded, err := repo.GetByID(ctx, nil, u.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, reloaded.CommissionEarned, 0.001)
	assert.InDelta(t, 100.0, reloaded.CommissionBalance, 0.001)
}

func TestIncrementCommissionUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	repo := NewUserRepository(db)
	err := repo.IncrementCommission(ctx, nil, 999, 80)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCorrectCommissionTotalsShiftsBalanceByDifference(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	repo := NewUserRepository(db)
	u := &model.User{Email: "u@test.com", ReferralCode: "U", CommissionEarned: 100, CommissionBalance: 40}
	require.NoError(t, repo.Create(ctx, u))

	// 复算值 150：累计覆盖，余额 +50（差额平移，保住已提现部分）
	require.NoError(t, repo.CorrectCommissionTotals(ctx, nil, u.ID, 150, 50))

	reloaded, err := repo.GetByID(ctx, nil, u.ID)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, reloaded.CommissionEarned, 0.001)
	assert.InDelta(t, 90.0, reloaded.CommissionBalance, 0.001)
}

func TestCountDirectMembers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	repo := NewUserRepository(db)
	u := &model.User{Email: "u@test.com", ReferralCode: "U"}
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.Create(ctx, &model.User{Email: "m1@test.com", ReferralCode: "M1", ReferredByCode: strPtr("U")}))
	require.NoError(t, repo.Create(ctx, &model.User{Email: "m2@test.com", ReferralCode: "M2", ReferredByCode: strPtr("U")}))

	count, err := repo.CountDirectMembers(ctx, nil, "U")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUpdatePoolIDNullable(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	repo := NewUserRepository(db)
	poolID := int64(3)
	u := &model.User{Email: "u@test.com", ReferralCode: "U", PoolID: &poolID}
	require.NoError(t, repo.Create(ctx, u))

	// nil 表示清除档位资格
	require.NoError(t, repo.UpdatePoolID(ctx, nil, u.ID, nil))

	reloaded, err := repo.GetByID(ctx, nil, u.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.PoolID)
}
