package service

import (
	"context"
	"errors"
	"fmt"

	"affiliatesystem/internal/config"
	"affiliatesystem/internal/model"
	"affiliatesystem/internal/repository"

	"gorm.io/gorm"
)

// UnstoppableBonus 单个祖先的职级佣金计算结果
// Bonus 是本次实际生效的增量比例；无职级、不活跃或职级不高于已结算档位时为 nil
type UnstoppableBonus struct {
	UserID            int64
	RankName          string
	IsActive          bool
	IsQualified       bool
	CumulativePercent float64
	Bonus             *float64
	Commission        *float64
}

// UnstoppableCalculator 职级佣金计算（动态压缩）
//
// 沿祖先链由近到远扫描，维护"已结算的累计比例"：
// 每个有职级且活跃的祖先拿 cumulative_percent 与已结算比例的差额，
// 差额 <= 0（职级不高于更近的已得佣祖先）则本次不得佣。
// 同一个比例带只会被离付款人最近的那个高职级祖先拿走一次，不会重复发放。
//
// 不活跃或无职级的祖先照常记录一条零得佣结果，且不消耗比例带。
type UnstoppableCalculator struct {
	rankRepo *repository.RankRepository
	cfg      *config.CommissionConfig
}

func NewUnstoppableCalculator(db *gorm.DB, cfg *config.CommissionConfig) *UnstoppableCalculator {
	return &UnstoppableCalculator{
		rankRepo: repository.NewRankRepository(db),
		cfg:      cfg,
	}
}

// Calculate 沿祖先链计算职级佣金，深度不设限
// ancestors 必须是 TreeWalker 的输出（由近到远、已去环）
func (c *UnstoppableCalculator) Calculate(ctx context.Context, tx *gorm.DB, ancestors []*model.User, amount float64) ([]UnstoppableBonus, error) {
	var bonuses []UnstoppableBonus

	previousPercent := 0.0

	for _, ancestor := range ancestors {
		bonus := UnstoppableBonus{
			UserID:   ancestor.ID,
			IsActive: ancestor.IsActive,
		}

		if ancestor.RankID == nil {
			bonuses = append(bonuses, bonus)
			continue
		}

		rank, err := c.rankRepo.GetByID(ctx, tx, *ancestor.RankID)
		if err != nil {
			if errors.Is(err, repository.ErrRankNotFound) {
				// 职级配置被删了按无职级处理，不中断整条链的结算
				bonuses = append(bonuses, bonus)
				continue
			}
			return nil, fmt.Errorf("查询职级失败: %w", err)
		}

		bonus.IsQualified = true
		bonus.RankName = rank.Name
		bonus.CumulativePercent = rank.CumulativePercent

		if ancestor.IsActive {
			delta := rank.CumulativePercent - previousPercent
			if delta > 0 {
				commission := amount * (c.cfg.ReferralPercent / 100) * (delta / 100)
				bonus.Bonus = &delta
				bonus.Commission = &commission
				previousPercent = rank.CumulativePercent
			}
		}

		bonuses = append(bonuses, bonus)
	}

	return bonuses, nil
}
