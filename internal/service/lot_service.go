package service

import (
	"context"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"
)

type CreateLotRequest struct {
	Name                    string `json:"name" binding:"required"`
	Description             string `json:"description"`
	ManagerTelegramID       string `json:"manager_telegram_id" binding:"required"`
	DeputyManagerTelegramID string `json:"deputy_manager_telegram_id"`
	PriorityLevel           int    `json:"priority_level"`
	DistanceToOTKMeters     int    `json:"distance_to_otk_meters"`
	WorkingHoursStart       string `json:"working_hours_start"`
	WorkingHoursEnd         string `json:"working_hours_end"`
}

type UpdateLotRequest struct {
	Name                    string `json:"name"`
	Description             *string `json:"description"`
	ManagerTelegramID       string `json:"manager_telegram_id"`
	DeputyManagerTelegramID *string `json:"deputy_manager_telegram_id"`
	PriorityLevel           *int   `json:"priority_level"`
	DistanceToOTKMeters     *int   `json:"distance_to_otk_meters"`
	IsActive                *bool  `json:"is_active"`
	RequiresUrgentAttention *bool  `json:"requires_urgent_attention"`
}

// LotService manages production areas. Read-mostly reference data; new lots
// are mirrored to the CRM through the sync queue.
type LotService interface {
	Create(ctx context.Context, actor Actor, req CreateLotRequest) (*model.Lot, error)
	GetByID(ctx context.Context, id uint64) (*model.Lot, error)
	List(ctx context.Context, activeOnly bool) ([]model.Lot, error)
	Update(ctx context.Context, actor Actor, id uint64, req UpdateLotRequest) (*model.Lot, error)
	Delete(ctx context.Context, actor Actor, id uint64) error
}

type lotService struct {
	repo repository.LotRepository
	sync SyncEnqueuer
}

func NewLotService(repo repository.LotRepository, sync SyncEnqueuer) LotService {
	return &lotService{repo: repo, sync: sync}
}

func (s *lotService) Create(ctx context.Context, actor Actor, req CreateLotRequest) (*model.Lot, error) {
	if !actor.Elevated() {
		return nil, apperr.Forbidden("lot creation requires an elevated role")
	}
	if req.PriorityLevel == 0 {
		req.PriorityLevel = 3
	}
	if req.PriorityLevel < 1 || req.PriorityLevel > 5 {
		return nil, apperr.Validation("priority level must be between 1 and 5")
	}

	lot := &model.Lot{
		Name:                    req.Name,
		Description:             req.Description,
		ManagerTelegramID:       req.ManagerTelegramID,
		DeputyManagerTelegramID: req.DeputyManagerTelegramID,
		PriorityLevel:           req.PriorityLevel,
		DistanceToOTKMeters:     req.DistanceToOTKMeters,
		IsActive:                true,
	}
	if req.WorkingHoursStart != "" {
		lot.WorkingHoursStart = req.WorkingHoursStart
	}
	if req.WorkingHoursEnd != "" {
		lot.WorkingHoursEnd = req.WorkingHoursEnd
	}

	if err := s.repo.Create(ctx, lot); err != nil {
		return nil, err
	}

	s.sync.Enqueue(ctx, model.SyncEntityLot, lot.ID, model.SyncOpCreate, map[string]interface{}{
		"name":           lot.Name,
		"priority_level": lot.PriorityLevel,
	})
	return lot, nil
}

func (s *lotService) GetByID(ctx context.Context, id uint64) (*model.Lot, error) {
	lot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("lot %d not found", id)
	}
	return lot, nil
}

func (s *lotService) List(ctx context.Context, activeOnly bool) ([]model.Lot, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *lotService) Update(ctx context.Context, actor Actor, id uint64, req UpdateLotRequest) (*model.Lot, error) {
	if !actor.Elevated() {
		return nil, apperr.Forbidden("lot update requires an elevated role")
	}

	lot, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		lot.Name = req.Name
	}
	if req.Description != nil {
		lot.Description = *req.Description
	}
	if req.ManagerTelegramID != "" {
		lot.ManagerTelegramID = req.ManagerTelegramID
	}
	if req.DeputyManagerTelegramID != nil {
		lot.DeputyManagerTelegramID = *req.DeputyManagerTelegramID
	}
	if req.PriorityLevel != nil {
		if *req.PriorityLevel < 1 || *req.PriorityLevel > 5 {
			return nil, apperr.Validation("priority level must be between 1 and 5")
		}
		lot.PriorityLevel = *req.PriorityLevel
	}
	if req.DistanceToOTKMeters != nil {
		lot.DistanceToOTKMeters = *req.DistanceToOTKMeters
	}
	if req.IsActive != nil {
		lot.IsActive = *req.IsActive
	}
	if req.RequiresUrgentAttention != nil {
		lot.RequiresUrgentAttention = *req.RequiresUrgentAttention
	}

	if err := s.repo.Update(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *lotService) Delete(ctx context.Context, actor Actor, id uint64) error {
	if !actor.Elevated() {
		return apperr.Forbidden("lot deletion requires an elevated role")
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
