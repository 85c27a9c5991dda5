package repository

import (
	"context"
	"errors"

	"affiliatesystem/internal/model"

	"gorm.io/gorm"
)

var (
	ErrPoolNotFound = errors.New("奖金池档位不存在")
)

type PoolRepository struct {
	db *gorm.DB
}

func NewPoolRepository(db *gorm.DB) *PoolRepository {
	return &PoolRepository{db: db}
}

// ListOrdered 按 id 升序返回全部档位（id 越大门槛越高）
func (r *PoolRepository) ListOrdered(ctx context.Context) ([]*model.Pool, error) {
	var pools []*model.Pool
	err := r.db.WithContext(ctx).Order("id ASC").Find(&pools).Error
	return pools, err
}

func (r *PoolRepository) GetByID(ctx context.Context, poolID int64) (*model.Pool, error) {
	var pool model.Pool
	err := r.db.WithContext(ctx).Where("id = ?", poolID).First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}
	return &pool, nil
}
