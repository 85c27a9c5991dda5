package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"affiliatesystem/internal/model"
	"affiliatesystem/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrReferrerNotFound = errors.New("推荐人不存在")
)

// UserService 会员支持接口
// 注册/认证主体在系统外，这里只提供引擎周边需要的最小能力：
// 带推荐关系的建档、直推成员查询
type UserService struct {
	userRepo *repository.UserRepository
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{
		userRepo: repository.NewUserRepository(db),
	}
}

type RegisterRequest struct {
	Email          string `json:"email" binding:"required,email"`
	ReferredByCode string `json:"referred_by_code"`
}

// Register 建立会员档案
// 推荐码随机生成；填了推荐人码就必须真实存在，防止挂到不存在的节点下
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	user := &model.User{
		Email:        req.Email,
		ReferralCode: generateReferralCode(),
	}

	if req.ReferredByCode != "" {
		referrer, err := s.userRepo.GetByReferralCode(ctx, nil, req.ReferredByCode)
		if err != nil {
			return nil, fmt.Errorf("查询推荐人失败: %w", err)
		}
		if referrer == nil {
			return nil, ErrReferrerNotFound
		}
		user.ReferredByCode = &referrer.ReferralCode
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建会员失败: %w", err)
	}

	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, nil, userID)
}

// GetDirectMembers 查询某会员的直推成员（各腿的根节点）
func (s *UserService) GetDirectMembers(ctx context.Context, userID int64) ([]*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return s.userRepo.ListDirectMembers(ctx, nil, user.ReferralCode)
}

func generateReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
}
