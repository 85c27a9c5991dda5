package repository

import (
	"context"
	"errors"

	"affiliatesystem/internal/model"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("用户不存在")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, userID int64) (*model.User, error) {
	if tx == nil {
		tx = r.db
	}
	var user model.User
	err := tx.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByReferralCode 按推荐码找上级
// 找不到返回 (nil, nil)：断链不是错误，树遍历遇到断链就地终止
func (r *UserRepository) GetByReferralCode(ctx context.Context, tx *gorm.DB, referralCode string) (*model.User, error) {
	if tx == nil {
		tx = r.db
	}
	var user model.User
	err := tx.WithContext(ctx).Where("referral_code = ?", referralCode).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) ListDirectMembers(ctx context.Context, tx *gorm.DB, referralCode string) ([]*model.User, error) {
	if tx == nil {
		tx = r.db
	}
	var members []*model.User
	err := tx.WithContext(ctx).Where("referred_by_code = ?", referralCode).Find(&members).Error
	return members, err
}

func (r *UserRepository) CountDirectMembers(ctx context.Context, tx *gorm.DB, referralCode string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("referred_by_code = ?", referralCode).
		Count(&count).Error
	return count, err
}

// IncrementTurnover 个人业绩自增
func (r *UserRepository) IncrementTurnover(ctx context.Context, tx *gorm.DB, userID int64, amount float64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("turnover", gorm.Expr("turnover + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IncrementTeamTurnover 批量给祖先节点累加团队业绩
//
// 【重要】必须用数据库侧自增，不能查出来加完再写回：
// 两个下级同时付款会并发命中同一个祖先，读改写会丢更新
func (r *UserRepository) IncrementTeamTurnover(ctx context.Context, tx *gorm.DB, userIDs []int64, amount float64) error {
	if len(userIDs) == 0 {
		return nil
	}
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id IN ?", userIDs).
		UpdateColumn("team_turnover", gorm.Expr("team_turnover + ?", amount)).Error
}

// IncrementCommission 佣金入账：累计佣金和可提现余额同步自增
func (r *UserRepository) IncrementCommission(ctx context.Context, tx *gorm.DB, userID int64, amount float64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"commission_earned":  gorm.Expr("commission_earned + ?", amount),
			"commission_balance": gorm.Expr("commission_balance + ?", amount),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePoolID 更新奖金池档位，poolID 为 nil 表示清除资格
func (r *UserRepository) UpdatePoolID(ctx context.Context, tx *gorm.DB, userID int64, poolID *int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("pool_id", poolID).Error
}

func (r *UserRepository) UpdatePackageID(ctx context.Context, tx *gorm.DB, userID int64, packageID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("package_id", packageID).Error
}

// CorrectCommissionTotals 对账修正
// 累计佣金覆盖为复算值；余额按差额增减，不能直接覆盖 —— 已提现的部分要保住
func (r *UserRepository) CorrectCommissionTotals(ctx context.Context, tx *gorm.DB, userID int64, earned, difference float64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"commission_earned":  earned,
			"commission_balance": gorm.Expr("commission_balance + ?", difference),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
