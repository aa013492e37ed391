package service

import (
	"context"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
)

// QualityOverview is the combined dashboard payload.
type QualityOverview struct {
	Applications  *model.ApplicationStats `json:"applications"`
	Discrepancies *model.DiscrepancyStats `json:"discrepancies"`
	TopDefects    []model.DefectCodeStat  `json:"top_defects"`
	SyncQueue     map[string]int64        `json:"sync_queue"`
}

// StatisticsService serves quality reporting over a time window.
type StatisticsService interface {
	Overview(ctx context.Context, since time.Time) (*QualityOverview, error)
}

type statisticsService struct {
	apps  repository.ApplicationRepository
	discs repository.DiscrepancyRepository
	tasks repository.SyncTaskRepository
}

func NewStatisticsService(
	apps repository.ApplicationRepository,
	discs repository.DiscrepancyRepository,
	tasks repository.SyncTaskRepository,
) StatisticsService {
	return &statisticsService{apps: apps, discs: discs, tasks: tasks}
}

func (s *statisticsService) Overview(ctx context.Context, since time.Time) (*QualityOverview, error) {
	appStats, err := s.apps.Stats(ctx, since)
	if err != nil {
		return nil, err
	}
	discStats, err := s.discs.Stats(ctx, "", since)
	if err != nil {
		return nil, err
	}
	topDefects, err := s.discs.TopDefectCodes(ctx, since, 10)
	if err != nil {
		return nil, err
	}
	queue, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &QualityOverview{
		Applications:  appStats,
		Discrepancies: discStats,
		TopDefects:    topDefects,
		SyncQueue:     queue,
	}, nil
}
