package repository

import (
	"context"

	"backend/internal/model"

	"gorm.io/gorm"
)

// ProductRepository is the persistence boundary for the product nomenclature.
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uint64) (*model.Product, error)
	List(ctx context.Context, lotID uint64, activeOnly bool) ([]model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uint64) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Create(product).Error
}

func (r *productRepository) FindByID(ctx context.Context, id uint64) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).Preload("Lot").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, lotID uint64, activeOnly bool) ([]model.Product, error) {
	var products []model.Product
	query := GetDB(ctx, r.db).Preload("Lot").Order("name ASC")
	if lotID != 0 {
		query = query.Where("lot_id = ?", lotID)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&products).Error
	return products, err
}

func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Save(product).Error
}

func (r *productRepository) Delete(ctx context.Context, id uint64) error {
	return GetDB(ctx, r.db).Delete(&model.Product{}, "id = ?", id).Error
}
