package repository

import (
	"context"
	"errors"

	"affiliatesystem/internal/model"

	"gorm.io/gorm"
)

var (
	ErrPackageNotFound = errors.New("套餐不存在")
)

type PackageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) GetByID(ctx context.Context, packageID int64) (*model.Package, error) {
	var pkg model.Package
	err := r.db.WithContext(ctx).Where("id = ?", packageID).First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

func (r *PackageRepository) ListByPriceAsc(ctx context.Context) ([]*model.Package, error) {
	var packages []*model.Package
	err := r.db.WithContext(ctx).Order("price ASC").Find(&packages).Error
	return packages, err
}
