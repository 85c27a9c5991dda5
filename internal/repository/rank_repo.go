package repository

import (
	"context"
	"errors"

	"affiliatesystem/internal/model"

	"gorm.io/gorm"
)

var (
	ErrRankNotFound = errors.New("职级不存在")
)

type RankRepository struct {
	db *gorm.DB
}

func NewRankRepository(db *gorm.DB) *RankRepository {
	return &RankRepository{db: db}
}

func (r *RankRepository) GetByID(ctx context.Context, tx *gorm.DB, rankID int64) (*model.Rank, error) {
	if tx == nil {
		tx = r.db
	}
	var rank model.Rank
	err := tx.WithContext(ctx).Where("id = ?", rankID).First(&rank).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRankNotFound
		}
		return nil, err
	}
	return &rank, nil
}

func (r *RankRepository) List(ctx context.Context) ([]*model.Rank, error) {
	var ranks []*model.Rank
	err := r.db.WithContext(ctx).Order("rank_order ASC").Find(&ranks).Error
	return ranks, err
}
