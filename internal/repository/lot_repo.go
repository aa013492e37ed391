package repository

import (
	"context"

	"backend/internal/model"

	"gorm.io/gorm"
)

// LotRepository is the persistence boundary for production areas.
type LotRepository interface {
	Create(ctx context.Context, lot *model.Lot) error
	FindByID(ctx context.Context, id uint64) (*model.Lot, error)
	List(ctx context.Context, activeOnly bool) ([]model.Lot, error)
	Update(ctx context.Context, lot *model.Lot) error
	Delete(ctx context.Context, id uint64) error
}

type lotRepository struct {
	db *gorm.DB
}

func NewLotRepository(db *gorm.DB) LotRepository {
	return &lotRepository{db: db}
}

func (r *lotRepository) Create(ctx context.Context, lot *model.Lot) error {
	return GetDB(ctx, r.db).Create(lot).Error
}

func (r *lotRepository) FindByID(ctx context.Context, id uint64) (*model.Lot, error) {
	var lot model.Lot
	if err := GetDB(ctx, r.db).First(&lot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *lotRepository) List(ctx context.Context, activeOnly bool) ([]model.Lot, error) {
	var lots []model.Lot
	query := GetDB(ctx, r.db).Order("priority_level ASC").Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&lots).Error
	return lots, err
}

func (r *lotRepository) Update(ctx context.Context, lot *model.Lot) error {
	return GetDB(ctx, r.db).Save(lot).Error
}

func (r *lotRepository) Delete(ctx context.Context, id uint64) error {
	return GetDB(ctx, r.db).Delete(&model.Lot{}, "id = ?", id).Error
}
