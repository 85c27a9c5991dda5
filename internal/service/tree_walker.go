package service

import (
	"context"
	"log"

	"affiliatesystem/internal/model"
	"affiliatesystem/internal/repository"

	"gorm.io/gorm"
)

// TreeWalker 推荐树遍历器
//
// referred_by_code 不是外键，数据层不保证链路无环、不保证上级存在，
// 所以遍历必须自带终止保护，三种终止条件都不是错误：
//  1. 到根：当前节点没有 referred_by_code
//  2. 断链：推荐码找不到对应上级
//  3. 成环：候选上级已经访问过（脏数据，记日志待人工修复）
type TreeWalker struct {
	userRepo *repository.UserRepository
}

func NewTreeWalker(db *gorm.DB) *TreeWalker {
	return &TreeWalker{
		userRepo: repository.NewUserRepository(db),
	}
}

// WalkAncestors 从 start 的直接上级开始，按由近到远的顺序返回祖先链
// visited 集合用 start 自身打底，保证任意脏数据下遍历必然终止
func (w *TreeWalker) WalkAncestors(ctx context.Context, tx *gorm.DB, start *model.User) ([]*model.User, error) {
	var ancestors []*model.User

	visited := map[int64]bool{start.ID: true}
	current := start

	for current.ReferredByCode != nil && *current.ReferredByCode != "" {
		parent, err := w.userRepo.GetByReferralCode(ctx, tx, *current.ReferredByCode)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			// 断链：上级已不存在，按安全前缀处理
			break
		}
		if visited[parent.ID] {
			log.Printf("[TreeWalker] 推荐链成环: userID=%d 再次指向 parentID=%d，遍历终止，数据待人工修复",
				current.ID, parent.ID)
			break
		}

		visited[parent.ID] = true
		ancestors = append(ancestors, parent)
		current = parent
	}

	return ancestors, nil
}
