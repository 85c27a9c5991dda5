package service

import (
	"context"
	"fmt"

	"affiliatesystem/internal/config"
	"affiliatesystem/internal/model"
	"affiliatesystem/internal/repository"

	"gorm.io/gorm"
)

const (
	AffiliatePolicyQualified = "qualified"
	AffiliatePolicyFlat      = "flat"
)

// AffiliateBonus 单个祖先的推荐佣金计算结果
// Commission 为 nil 表示该祖先本次不得佣（但仍然出现在结果里，便于审计展示）
type AffiliateBonus struct {
	UserID      int64
	Level       int
	IsActive    bool
	IsQualified bool
	Percentage  float64
	Commission  *float64
}

// AffiliateCalculator 多级推荐佣金计算
//
// 比例表按层查 config.Levels，超出表长的层沿用最后一档 —— 这是明确口径，不是越界兜底。
// 策略开关（历史上两套口径并存，按配置二选一）：
//   - qualified（默认，与线上口径一致）：祖先必须活跃、且直推人数 >= level-1 才得佣；
//     层级计数器只在越过"合格"祖先时前进，所以不合格祖先不占层
//   - flat：按跳数定层，无条件得佣，走满 LevelDepth 层截止
type AffiliateCalculator struct {
	userRepo *repository.UserRepository
	cfg      *config.CommissionConfig
}

func NewAffiliateCalculator(db *gorm.DB, cfg *config.CommissionConfig) *AffiliateCalculator {
	return &AffiliateCalculator{
		userRepo: repository.NewUserRepository(db),
		cfg:      cfg,
	}
}

// levelPercent 层级比例查表，超出部分沿用最后一档
func (c *AffiliateCalculator) levelPercent(level int) float64 {
	if len(c.cfg.Levels) == 0 {
		return 0
	}
	if level > len(c.cfg.Levels) {
		return c.cfg.Levels[len(c.cfg.Levels)-1]
	}
	return c.cfg.Levels[level-1]
}

func (c *AffiliateCalculator) commissionAmount(amount, percent float64) float64 {
	return amount * (c.cfg.ReferralPercent / 100) * (percent / 100)
}

// Calculate 沿已求出的祖先链计算各层推荐佣金
// ancestors 必须是 TreeWalker 的输出（由近到远、已去环）
func (c *AffiliateCalculator) Calculate(ctx context.Context, tx *gorm.DB, ancestors []*model.User, amount float64) ([]AffiliateBonus, error) {
	switch c.cfg.AffiliatePolicy {
	case AffiliatePolicyFlat:
		return c.calculateFlat(ancestors, amount), nil
	case AffiliatePolicyQualified, "":
		return c.calculateQualified(ctx, tx, ancestors, amount)
	default:
		return nil, fmt.Errorf("未知的推荐佣金策略: %s", c.cfg.AffiliatePolicy)
	}
}

func (c *AffiliateCalculator) calculateFlat(ancestors []*model.User, amount float64) []AffiliateBonus {
	var bonuses []AffiliateBonus

	for i, ancestor := range ancestors {
		level := i + 1
		if level > c.cfg.LevelDepth {
			break
		}

		percent := c.levelPercent(level)
		commission := c.commissionAmount(amount, percent)
		bonuses = append(bonuses, AffiliateBonus{
			UserID:      ancestor.ID,
			Level:       level,
			IsActive:    ancestor.IsActive,
			IsQualified: true,
			Percentage:  percent,
			Commission:  &commission,
		})
	}

	return bonuses
}

func (c *AffiliateCalculator) calculateQualified(ctx context.Context, tx *gorm.DB, ancestors []*model.User, amount float64) ([]AffiliateBonus, error) {
	var bonuses []AffiliateBonus

	level := 1
	for _, ancestor := range ancestors {
		if level > c.cfg.LevelDepth {
			break
		}

		// 资格：活跃 + 直推人数不少于 level-1
		directCount, err := c.userRepo.CountDirectMembers(ctx, tx, ancestor.ReferralCode)
		if err != nil {
			return nil, fmt.Errorf("统计直推人数失败: %w", err)
		}
		isQualified := directCount >= int64(level-1)
		available := ancestor.IsActive && isQualified

		percent := c.levelPercent(level)
		bonus := AffiliateBonus{
			UserID:      ancestor.ID,
			Level:       level,
			IsActive:    ancestor.IsActive,
			IsQualified: isQualified,
			Percentage:  percent,
		}
		if available {
			commission := c.commissionAmount(amount, percent)
			bonus.Commission = &commission
			// 只有合格祖先占一层，不合格的跳过不占层
			level++
		}

		bonuses = append(bonuses, bonus)
	}

	return bonuses, nil
}
