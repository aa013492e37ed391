package service

import (
	"context"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"
)

type CreateProductRequest struct {
	Name                          string  `json:"name" binding:"required"`
	DrawingNumber                 string  `json:"drawing_number"`
	LotID                         *uint64 `json:"lot_id"`
	DefaultOTKInspectorTelegramID string  `json:"default_otk_inspector_telegram_id"`
	Type                          string  `json:"type"`
	Unit                          string  `json:"unit"`
	InspectionTimeMinutes         int     `json:"inspection_time_minutes"`
	ChecklistText                 string  `json:"checklist_text"`
}

type UpdateProductRequest struct {
	Name                          string  `json:"name"`
	DrawingNumber                 *string `json:"drawing_number"`
	LotID                         *uint64 `json:"lot_id"`
	DefaultOTKInspectorTelegramID *string `json:"default_otk_inspector_telegram_id"`
	Type                          string  `json:"type"`
	Unit                          string  `json:"unit"`
	InspectionTimeMinutes         *int    `json:"inspection_time_minutes"`
	ChecklistText                 *string `json:"checklist_text"`
	IsActive                      *bool   `json:"is_active"`
}

// ProductService manages the product nomenclature.
type ProductService interface {
	Create(ctx context.Context, actor Actor, req CreateProductRequest) (*model.Product, error)
	GetByID(ctx context.Context, id uint64) (*model.Product, error)
	List(ctx context.Context, lotID uint64, activeOnly bool) ([]model.Product, error)
	Update(ctx context.Context, actor Actor, id uint64, req UpdateProductRequest) (*model.Product, error)
	Delete(ctx context.Context, actor Actor, id uint64) error
}

type productService struct {
	repo repository.ProductRepository
	lots repository.LotRepository
	sync SyncEnqueuer
}

func NewProductService(repo repository.ProductRepository, lots repository.LotRepository, sync SyncEnqueuer) ProductService {
	return &productService{repo: repo, lots: lots, sync: sync}
}

func (s *productService) Create(ctx context.Context, actor Actor, req CreateProductRequest) (*model.Product, error) {
	if !actor.Elevated() {
		return nil, apperr.Forbidden("product creation requires an elevated role")
	}
	if req.Type == "" {
		req.Type = model.ProductTypeFinishedProduct
	}
	if !model.ValidProductType(req.Type) {
		return nil, apperr.Validation("unknown product type %q", req.Type)
	}
	if req.Unit == "" {
		req.Unit = model.ProductUnitPcs
	}
	if req.Unit != model.ProductUnitPcs && req.Unit != model.ProductUnitSet {
		return nil, apperr.Validation("unknown unit %q", req.Unit)
	}
	if req.LotID != nil {
		if _, err := s.lots.FindByID(ctx, *req.LotID); err != nil {
			return nil, apperr.NotFound("lot %d not found", *req.LotID)
		}
	}

	product := &model.Product{
		Name:                          req.Name,
		DrawingNumber:                 req.DrawingNumber,
		LotID:                         req.LotID,
		DefaultOTKInspectorTelegramID: req.DefaultOTKInspectorTelegramID,
		Type:                          req.Type,
		Unit:                          req.Unit,
		InspectionTimeMinutes:         req.InspectionTimeMinutes,
		ChecklistText:                 req.ChecklistText,
		IsActive:                      true,
	}
	if product.InspectionTimeMinutes == 0 {
		product.InspectionTimeMinutes = 30
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.sync.Enqueue(ctx, model.SyncEntityProduct, product.ID, model.SyncOpCreate, map[string]interface{}{
		"name":           product.Name,
		"drawing_number": product.DrawingNumber,
		"type":           product.Type,
	})
	return product, nil
}

func (s *productService) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("product %d not found", id)
	}
	return product, nil
}

func (s *productService) List(ctx context.Context, lotID uint64, activeOnly bool) ([]model.Product, error) {
	return s.repo.List(ctx, lotID, activeOnly)
}

func (s *productService) Update(ctx context.Context, actor Actor, id uint64, req UpdateProductRequest) (*model.Product, error) {
	if !actor.Elevated() {
		return nil, apperr.Forbidden("product update requires an elevated role")
	}

	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		product.Name = req.Name
	}
	if req.DrawingNumber != nil {
		product.DrawingNumber = *req.DrawingNumber
	}
	if req.LotID != nil {
		if _, err := s.lots.FindByID(ctx, *req.LotID); err != nil {
			return nil, apperr.NotFound("lot %d not found", *req.LotID)
		}
		product.LotID = req.LotID
	}
	if req.DefaultOTKInspectorTelegramID != nil {
		product.DefaultOTKInspectorTelegramID = *req.DefaultOTKInspectorTelegramID
	}
	if req.Type != "" {
		if !model.ValidProductType(req.Type) {
			return nil, apperr.Validation("unknown product type %q", req.Type)
		}
		product.Type = req.Type
	}
	if req.Unit != "" {
		if req.Unit != model.ProductUnitPcs && req.Unit != model.ProductUnitSet {
			return nil, apperr.Validation("unknown unit %q", req.Unit)
		}
		product.Unit = req.Unit
	}
	if req.InspectionTimeMinutes != nil {
		product.InspectionTimeMinutes = *req.InspectionTimeMinutes
	}
	if req.ChecklistText != nil {
		product.ChecklistText = *req.ChecklistText
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) Delete(ctx context.Context, actor Actor, id uint64) error {
	if !actor.Elevated() {
		return apperr.Forbidden("product deletion requires an elevated role")
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
