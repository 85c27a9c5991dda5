package service

import (
	"context"
	"fmt"
	"log"

	"affiliatesystem/internal/config"
	"affiliatesystem/internal/model"
	"affiliatesystem/internal/repository"

	"gorm.io/gorm"
)

const (
	PoolPolicyHighest    = "highest"
	PoolPolicySequential = "sequential"
)

// PoolEligibility 单个档位的资格核验明细
type PoolEligibility struct {
	Eligible bool
	Reasons  []string
}

// PoolUpgradeResult 档位重估结果
type PoolUpgradeResult struct {
	Upgraded       bool
	PreviousPoolID *int64
	NewPoolID      *int64
}

// PoolService 奖金池档位评定
//
// 腿业绩一律读直推成员缓存的 turnover + team_turnover，绝不递归重算下级树 ——
// 缓存字段本身就是逐级传播累计出来的，递归会把成本做成树深的倍数。
//
// 两套评定策略按配置二选一：
//   - highest（默认）：从最难档位往下扫，命中即停；全不命中则清除档位（支持降档）
//   - sequential：只尝试升到当前档位 +1，单腿门槛换成封顶求和口径，不降档
type PoolService struct {
	db       *gorm.DB
	policy   string
	userRepo *repository.UserRepository
	poolRepo *repository.PoolRepository
}

func NewPoolService(db *gorm.DB, cfg *config.Config) *PoolService {
	return &PoolService{
		db:       db,
		policy:   cfg.Pool.Policy,
		userRepo: repository.NewUserRepository(db),
		poolRepo: repository.NewPoolRepository(db),
	}
}

// CheckEligibility 核验某会员对某档位的四项资格
// (a) 直推人数 (b) 个人业绩 (c) 团队业绩 (d) 至少一条腿业绩达到 max_turnover_per_leg
func (s *PoolService) CheckEligibility(ctx context.Context, userID int64, pool *model.Pool) (*PoolEligibility, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	members, err := s.userRepo.ListDirectMembers(ctx, nil, user.ReferralCode)
	if err != nil {
		return nil, fmt.Errorf("查询直推成员失败: %w", err)
	}

	result := &PoolEligibility{Eligible: true}

	if len(members) < pool.MinDirectMembers {
		result.Eligible = false
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("直推人数不足: 需要 %d，当前 %d", pool.MinDirectMembers, len(members)))
	}

	if user.Turnover < pool.MinTurnover {
		result.Eligible = false
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("个人业绩不足: 需要 %.2f，当前 %.2f", pool.MinTurnover, user.Turnover))
	}

	if user.TeamTurnover < pool.MinTeamTurnover {
		result.Eligible = false
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("团队业绩不足: 需要 %.2f，当前 %.2f", pool.MinTeamTurnover, user.TeamTurnover))
	}

	// 腿业绩 = 直推成员个人业绩 + 该成员的团队业绩（读缓存聚合）
	maxLegTurnover := 0.0
	for _, member := range members {
		leg := member.Turnover + member.TeamTurnover
		if leg > maxLegTurnover {
			maxLegTurnover = leg
		}
	}
	if maxLegTurnover < pool.MaxTurnoverPerLeg {
		result.Eligible = false
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("单腿业绩不足: 需要至少一条腿达到 %.2f，当前最大 %.2f", pool.MaxTurnoverPerLeg, maxLegTurnover))
	}

	return result, nil
}

// CheckAndUpgrade 重估某会员的档位，幂等：已在应得档位时不做任何写入
func (s *PoolService) CheckAndUpgrade(ctx context.Context, userID int64, pools []*model.Pool) (*PoolUpgradeResult, error) {
	switch s.policy {
	case PoolPolicySequential:
		return s.checkSequential(ctx, userID, pools)
	case PoolPolicyHighest, "":
		return s.checkHighest(ctx, userID, pools)
	default:
		return nil, fmt.Errorf("未知的奖金池评定策略: %s", s.policy)
	}
}

// checkHighest 从最难档位往下找第一个全部达标的档位
func (s *PoolService) checkHighest(ctx context.Context, userID int64, pools []*model.Pool) (*PoolUpgradeResult, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	var targetPoolID *int64
	for i := len(pools) - 1; i >= 0; i-- {
		eligibility, err := s.CheckEligibility(ctx, userID, pools[i])
		if err != nil {
			return nil, err
		}
		if eligibility.Eligible {
			targetPoolID = &pools[i].ID
			break
		}
	}

	return s.applyPoolChange(ctx, user, targetPoolID)
}

// checkSequential 只尝试晋升到当前档位的下一档
// 单腿门槛换口径：对每条腿按 max_turnover_per_leg 封顶后求和，须达到 min_team_turnover
func (s *PoolService) checkSequential(ctx context.Context, userID int64, pools []*model.Pool) (*PoolUpgradeResult, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	result := &PoolUpgradeResult{
		PreviousPoolID: user.PoolID,
		NewPoolID:      user.PoolID,
	}

	var target *model.Pool
	for i, pool := range pools {
		if user.PoolID == nil {
			target = pools[0]
			break
		}
		if pool.ID == *user.PoolID && i+1 < len(pools) {
			target = pools[i+1]
			break
		}
	}
	if target == nil {
		// 已到顶档
		return result, nil
	}

	members, err := s.userRepo.ListDirectMembers(ctx, nil, user.ReferralCode)
	if err != nil {
		return nil, fmt.Errorf("查询直推成员失败: %w", err)
	}

	if len(members) < target.MinDirectMembers ||
		user.Turnover < target.MinTurnover ||
		user.TeamTurnover < target.MinTeamTurnover {
		return result, nil
	}

	cappedSum := 0.0
	for _, member := range members {
		leg := member.Turnover
		if leg > target.MaxTurnoverPerLeg {
			leg = target.MaxTurnoverPerLeg
		}
		cappedSum += leg
	}
	if cappedSum < target.MinTeamTurnover {
		return result, nil
	}

	if err := s.userRepo.UpdatePoolID(ctx, nil, userID, &target.ID); err != nil {
		return nil, fmt.Errorf("更新档位失败: %w", err)
	}

	result.Upgraded = true
	result.NewPoolID = &target.ID
	return result, nil
}

func (s *PoolService) applyPoolChange(ctx context.Context, user *model.User, targetPoolID *int64) (*PoolUpgradeResult, error) {
	result := &PoolUpgradeResult{
		PreviousPoolID: user.PoolID,
		NewPoolID:      targetPoolID,
	}

	// 已在应得档位，幂等返回
	if equalPoolID(user.PoolID, targetPoolID) {
		return result, nil
	}

	if err := s.userRepo.UpdatePoolID(ctx, nil, user.ID, targetPoolID); err != nil {
		return nil, fmt.Errorf("更新档位失败: %w", err)
	}

	result.Upgraded = targetPoolID != nil
	return result, nil
}

// CheckEligibilityByPoolID 按档位 ID 核验资格（审计接口用）
func (s *PoolService) CheckEligibilityByPoolID(ctx context.Context, userID, poolID int64) (*PoolEligibility, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	return s.CheckEligibility(ctx, userID, pool)
}

// CheckAndUpgradeUser 重估单个会员的档位
func (s *PoolService) CheckAndUpgradeUser(ctx context.Context, userID int64) (*PoolUpgradeResult, error) {
	pools, err := s.poolRepo.ListOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询档位配置失败: %w", err)
	}
	return s.CheckAndUpgrade(ctx, userID, pools)
}

// CheckAndUpgradeAll 对受影响的会员逐个重估档位
// 档位是权益标记不是资金，单个会员失败只记日志，不影响其他会员
func (s *PoolService) CheckAndUpgradeAll(ctx context.Context, userIDs []int64) {
	pools, err := s.poolRepo.ListOrdered(ctx)
	if err != nil {
		log.Printf("[Pool] 查询档位配置失败: %v", err)
		return
	}

	for _, userID := range userIDs {
		if _, err := s.CheckAndUpgrade(ctx, userID, pools); err != nil {
			log.Printf("[Pool] 档位重估失败: userID=%d, err=%v", userID, err)
			continue
		}
	}
}

func equalPoolID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
