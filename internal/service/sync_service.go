package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"
	"backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SyncService is the outbound delivery queue (outbox). Local state changes
// are recorded durably and shipped to the CRM by the worker; the primary
// operation never waits for, or fails because of, the remote system.
type SyncService interface {
	SyncEnqueuer
	// ProcessBatch claims up to limit due tasks and attempts delivery.
	// Returns the number of tasks processed (successfully or not).
	ProcessBatch(ctx context.Context, limit int) (int, error)
	// RetryTask resets a failed task to pending. Operator action.
	RetryTask(ctx context.Context, id uint64) error
	QueueStats(ctx context.Context) (map[string]int64, error)
	ClearFailed(ctx context.Context) (int64, error)
	ListTasks(ctx context.Context, limit int) ([]model.SyncTask, error)
}

type syncService struct {
	tasks       repository.SyncTaskRepository
	apps        repository.ApplicationRepository
	lots        repository.LotRepository
	products    repository.ProductRepository
	crm         CRMGateway
	backoffBase time.Duration
	log         *logrus.Logger
}

func NewSyncService(
	tasks repository.SyncTaskRepository,
	apps repository.ApplicationRepository,
	lots repository.LotRepository,
	products repository.ProductRepository,
	crm CRMGateway,
	backoffBase time.Duration,
) SyncService {
	if backoffBase == 0 {
		backoffBase = time.Minute
	}
	return &syncService{
		tasks:       tasks,
		apps:        apps,
		lots:        lots,
		products:    products,
		crm:         crm,
		backoffBase: backoffBase,
		log:         logger.Get(),
	}
}

// Enqueue durably records a delivery task. Create operations get a dedupe
// key so a replayed create can find the remote record it already made.
// Failures are logged, never returned: the triggering operation has already
// succeeded locally and must stay successful.
func (s *syncService) Enqueue(ctx context.Context, entityType string, entityID uint64, operation string, payload map[string]interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.WithError(err).Error("sync payload marshal failed")
		return
	}

	task := &model.SyncTask{
		EntityType:   entityType,
		EntityID:     entityID,
		Operation:    operation,
		TargetSystem: model.SyncTargetBitrix24,
		Payload:      string(body),
		Status:       model.SyncTaskStatusPending,
		MaxRetries:   3,
	}
	if operation == model.SyncOpCreate {
		key := uuid.New()
		task.DedupeKey = &key
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		s.log.WithFields(logrus.Fields{
			"entity_type": entityType,
			"entity_id":   entityID,
			"operation":   operation,
		}).WithError(err).Error("sync enqueue failed")
	}
}

func (s *syncService) ProcessBatch(ctx context.Context, limit int) (int, error) {
	if !s.crm.Enabled() {
		return 0, nil
	}

	batch, err := s.tasks.ClaimBatch(ctx, model.SyncTargetBitrix24, limit)
	if err != nil {
		return 0, err
	}

	for i := range batch {
		task := &batch[i]
		response, err := s.deliver(ctx, task)
		if err != nil {
			s.recordFailure(ctx, task, err)
			continue
		}
		if err := s.tasks.MarkSuccess(ctx, task.ID, response); err != nil {
			s.log.WithField("task_id", task.ID).WithError(err).Error("marking sync task success failed")
		}
		s.markEntitySynced(ctx, task)
	}
	return len(batch), nil
}

// recordFailure applies the retry policy: the attempt is counted first, then
// compared against max_retries, so a task with max_retries=3 makes exactly
// three delivery attempts before going terminal.
func (s *syncService) recordFailure(ctx context.Context, task *model.SyncTask, cause error) {
	retryCount := task.RetryCount + 1
	entry := s.log.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"entity_type": task.EntityType,
		"entity_id":   task.EntityID,
		"operation":   task.Operation,
		"retry_count": retryCount,
	})

	if retryCount < task.MaxRetries {
		delay := s.backoffBase * (1 << uint(task.RetryCount))
		nextRetry := time.Now().Add(delay)
		if err := s.tasks.MarkRetry(ctx, task.ID, retryCount, cause.Error(), nextRetry); err != nil {
			entry.WithError(err).Error("marking sync task retry failed")
			return
		}
		entry.WithError(cause).Warn("sync delivery failed, scheduled retry")
	} else {
		if err := s.tasks.MarkFailed(ctx, task.ID, retryCount, cause.Error()); err != nil {
			entry.WithError(err).Error("marking sync task failed failed")
			return
		}
		entry.WithError(cause).Error("sync delivery exhausted retries")
	}

	// A scheduled retry is still pending from the caller's point of view;
	// only exhaustion marks the entity failed.
	syncStatus := model.SyncStatusPending
	if retryCount >= task.MaxRetries {
		syncStatus = model.SyncStatusFailed
	}
	if task.EntityType == model.SyncEntityApplication {
		if err := s.apps.UpdateFields(ctx, task.EntityID, map[string]interface{}{
			"sync_status":      syncStatus,
			"sync_retry_count": retryCount,
			"sync_error":       cause.Error(),
		}); err != nil {
			entry.WithError(err).Warn("updating application sync metadata failed")
		}
	}
}

// markEntitySynced refreshes the subject's sync metadata after a successful
// update or stage delivery. Creates adopt the remote id themselves and
// deletes have no local entity left to stamp.
func (s *syncService) markEntitySynced(ctx context.Context, task *model.SyncTask) {
	if task.EntityType != model.SyncEntityApplication {
		return
	}
	if task.Operation == model.SyncOpCreate || task.Operation == model.SyncOpDelete {
		return
	}
	if err := s.apps.UpdateFields(ctx, task.EntityID, map[string]interface{}{
		"is_synced":   true,
		"sync_status": model.SyncStatusSynced,
		"sync_error":  "",
	}); err != nil {
		s.log.WithField("task_id", task.ID).WithError(err).Warn("updating application sync metadata failed")
	}
}

func (s *syncService) deliver(ctx context.Context, task *model.SyncTask) (string, error) {
	payload := map[string]interface{}{}
	if task.Payload != "" {
		if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
			return "", fmt.Errorf("malformed task payload: %w", err)
		}
	}

	switch task.Operation {
	case model.SyncOpCreate:
		return s.deliverCreate(ctx, task, payload)
	case model.SyncOpUpdate:
		remoteID, err := s.remoteID(ctx, task)
		if err != nil {
			return "", err
		}
		if err := s.crm.UpdateItem(ctx, remoteID, payload); err != nil {
			return "", err
		}
		return `{"updated":true}`, nil
	case model.SyncOpUpdateStatus:
		status, _ := payload["status"].(string)
		if status == "" {
			return "", fmt.Errorf("sync_status task without a status")
		}
		remoteID, err := s.remoteID(ctx, task)
		if err != nil {
			return "", err
		}
		if err := s.crm.UpdateStage(ctx, remoteID, model.ApplicationStatus(status)); err != nil {
			return "", err
		}
		return `{"updated":true}`, nil
	case model.SyncOpDelete:
		// The local entity is already gone; the remote id rides in the payload.
		raw, ok := payload["bitrix24_id"].(float64)
		if !ok {
			return "", fmt.Errorf("delete task without a bitrix24_id")
		}
		if err := s.crm.DeleteItem(ctx, int64(raw)); err != nil {
			return "", err
		}
		return `{"deleted":true}`, nil
	default:
		return "", fmt.Errorf("unknown sync operation %q", task.Operation)
	}
}

// deliverCreate is idempotent: before creating it checks whether a previous
// attempt already created the remote record (crash between remote success
// and local bookkeeping) by looking up the task's dedupe key, and adopts the
// existing record if so.
func (s *syncService) deliverCreate(ctx context.Context, task *model.SyncTask, payload map[string]interface{}) (string, error) {
	dedupeKey := ""
	if task.DedupeKey != nil {
		dedupeKey = task.DedupeKey.String()
	}

	var remoteID int64
	if dedupeKey != "" {
		existing, err := s.crm.FindByDedupeKey(ctx, dedupeKey)
		if err != nil {
			return "", err
		}
		remoteID = existing
	}

	if remoteID == 0 {
		created, err := s.crm.CreateItem(ctx, payload, dedupeKey)
		if err != nil {
			return "", err
		}
		remoteID = created
	}

	if err := s.adoptRemoteID(ctx, task, remoteID); err != nil {
		return "", err
	}
	return fmt.Sprintf(`{"id":%d}`, remoteID), nil
}

func (s *syncService) adoptRemoteID(ctx context.Context, task *model.SyncTask, remoteID int64) error {
	switch task.EntityType {
	case model.SyncEntityApplication:
		return s.apps.UpdateFields(ctx, task.EntityID, map[string]interface{}{
			"bitrix24_id": remoteID,
			"is_synced":   true,
			"sync_status": model.SyncStatusSynced,
			"sync_error":  "",
		})
	case model.SyncEntityLot:
		lot, err := s.lots.FindByID(ctx, task.EntityID)
		if err != nil {
			return err
		}
		lot.Bitrix24ID = &remoteID
		lot.IsSynced = true
		return s.lots.Update(ctx, lot)
	case model.SyncEntityProduct:
		product, err := s.products.FindByID(ctx, task.EntityID)
		if err != nil {
			return err
		}
		product.Bitrix24ID = &remoteID
		return s.products.Update(ctx, product)
	}
	return nil
}

func (s *syncService) remoteID(ctx context.Context, task *model.SyncTask) (int64, error) {
	switch task.EntityType {
	case model.SyncEntityApplication:
		app, err := s.apps.FindByID(ctx, task.EntityID)
		if err != nil {
			return 0, fmt.Errorf("application %d no longer exists", task.EntityID)
		}
		if app.Bitrix24ID == nil {
			// The create task has not landed yet; fail so the retry runs after it.
			return 0, fmt.Errorf("application %d has no remote record yet", task.EntityID)
		}
		return *app.Bitrix24ID, nil
	case model.SyncEntityLot:
		lot, err := s.lots.FindByID(ctx, task.EntityID)
		if err != nil {
			return 0, fmt.Errorf("lot %d no longer exists", task.EntityID)
		}
		if lot.Bitrix24ID == nil {
			return 0, fmt.Errorf("lot %d has no remote record yet", task.EntityID)
		}
		return *lot.Bitrix24ID, nil
	case model.SyncEntityProduct:
		product, err := s.products.FindByID(ctx, task.EntityID)
		if err != nil {
			return 0, fmt.Errorf("product %d no longer exists", task.EntityID)
		}
		if product.Bitrix24ID == nil {
			return 0, fmt.Errorf("product %d has no remote record yet", task.EntityID)
		}
		return *product.Bitrix24ID, nil
	}
	return 0, fmt.Errorf("unknown entity type %q", task.EntityType)
}

func (s *syncService) RetryTask(ctx context.Context, id uint64) error {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return apperr.NotFound("sync task %d not found", id)
	}
	if task.Status != model.SyncTaskStatusFailed {
		return apperr.InvalidState("sync task %d is %s, only failed tasks can be retried", id, task.Status)
	}
	return s.tasks.Reset(ctx, id)
}

func (s *syncService) QueueStats(ctx context.Context) (map[string]int64, error) {
	return s.tasks.CountByStatus(ctx)
}

func (s *syncService) ClearFailed(ctx context.Context) (int64, error) {
	return s.tasks.DeleteFailed(ctx)
}

func (s *syncService) ListTasks(ctx context.Context, limit int) ([]model.SyncTask, error) {
	return s.tasks.List(ctx, limit)
}
