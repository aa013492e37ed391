package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockingClause row-locks claimed tasks; SKIP LOCKED lets concurrent workers
// claim disjoint batches instead of blocking on each other.
func lockingClause() clause.Locking {
	return clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}
}

// SyncTaskRepository is the persistence boundary for the outbound sync queue.
type SyncTaskRepository interface {
	Create(ctx context.Context, task *model.SyncTask) error
	FindByID(ctx context.Context, id uint64) (*model.SyncTask, error)
	// ClaimBatch selects up to limit tasks that are pending, or in retry with
	// an elapsed next_retry_at, oldest first, and flips them to processing in
	// the same transaction so concurrent workers never pick the same task.
	ClaimBatch(ctx context.Context, target string, limit int) ([]model.SyncTask, error)
	MarkSuccess(ctx context.Context, id uint64, response string) error
	MarkRetry(ctx context.Context, id uint64, retryCount int, errMsg string, nextRetryAt time.Time) error
	MarkFailed(ctx context.Context, id uint64, retryCount int, errMsg string) error
	// Reset returns a failed task to pending for another round of delivery.
	Reset(ctx context.Context, id uint64) error
	List(ctx context.Context, limit int) ([]model.SyncTask, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	DeleteFailed(ctx context.Context) (int64, error)
}

type syncTaskRepository struct {
	db *gorm.DB
}

func NewSyncTaskRepository(db *gorm.DB) SyncTaskRepository {
	return &syncTaskRepository{db: db}
}

func (r *syncTaskRepository) Create(ctx context.Context, task *model.SyncTask) error {
	return GetDB(ctx, r.db).Create(task).Error
}

func (r *syncTaskRepository) FindByID(ctx context.Context, id uint64) (*model.SyncTask, error) {
	var task model.SyncTask
	if err := GetDB(ctx, r.db).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *syncTaskRepository) ClaimBatch(ctx context.Context, target string, limit int) ([]model.SyncTask, error) {
	var tasks []model.SyncTask

	err := GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.
			Clauses(lockingClause()).
			Where("target_system = ?", target).
			Where("status = ? OR (status = ? AND next_retry_at <= ?)",
				model.SyncTaskStatusPending, model.SyncTaskStatusRetry, now).
			Order("created_at ASC").
			Limit(limit).
			Find(&tasks).Error; err != nil {
			return err
		}

		if len(tasks) == 0 {
			return nil
		}

		ids := make([]uint64, 0, len(tasks))
		for i := range tasks {
			ids = append(ids, tasks[i].ID)
		}

		if err := tx.Model(&model.SyncTask{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":       model.SyncTaskStatusProcessing,
				"processed_at": now,
			}).Error; err != nil {
			return err
		}

		for i := range tasks {
			tasks[i].Status = model.SyncTaskStatusProcessing
			tasks[i].ProcessedAt = &now
		}
		return nil
	})

	return tasks, err
}

func (r *syncTaskRepository) MarkSuccess(ctx context.Context, id uint64, response string) error {
	return GetDB(ctx, r.db).Model(&model.SyncTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.SyncTaskStatusSuccess,
			"response":      response,
			"error_message": "",
			"next_retry_at": nil,
		}).Error
}

func (r *syncTaskRepository) MarkRetry(ctx context.Context, id uint64, retryCount int, errMsg string, nextRetryAt time.Time) error {
	return GetDB(ctx, r.db).Model(&model.SyncTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.SyncTaskStatusRetry,
			"retry_count":   retryCount,
			"error_message": errMsg,
			"next_retry_at": nextRetryAt,
		}).Error
}

func (r *syncTaskRepository) MarkFailed(ctx context.Context, id uint64, retryCount int, errMsg string) error {
	return GetDB(ctx, r.db).Model(&model.SyncTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.SyncTaskStatusFailed,
			"retry_count":   retryCount,
			"error_message": errMsg,
			"next_retry_at": nil,
		}).Error
}

func (r *syncTaskRepository) Reset(ctx context.Context, id uint64) error {
	return GetDB(ctx, r.db).Model(&model.SyncTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.SyncTaskStatusPending,
			"retry_count":   0,
			"error_message": "",
			"next_retry_at": nil,
			"processed_at":  nil,
		}).Error
}

func (r *syncTaskRepository) List(ctx context.Context, limit int) ([]model.SyncTask, error) {
	var tasks []model.SyncTask
	err := GetDB(ctx, r.db).Order("created_at DESC").Limit(limit).Find(&tasks).Error
	return tasks, err
}

func (r *syncTaskRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := GetDB(ctx, r.db).Model(&model.SyncTask{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (r *syncTaskRepository) DeleteFailed(ctx context.Context) (int64, error) {
	res := GetDB(ctx, r.db).
		Where("status = ?", model.SyncTaskStatusFailed).
		Delete(&model.SyncTask{})
	return res.RowsAffected, res.Error
}
