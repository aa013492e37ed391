package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend/internal/model"
	"backend/pkg/apperr"

	"github.com/stretchr/testify/require"
)

type syncFixture struct {
	tasks    *fakeSyncTaskRepo
	apps     *fakeApplicationRepo
	lots     *fakeLotRepo
	products *fakeProductRepo
	crm      *fakeCRM
	svc      SyncService
}

func newSyncFixture() *syncFixture {
	f := &syncFixture{
		tasks:    newFakeSyncTaskRepo(),
		apps:     newFakeApplicationRepo(),
		lots:     newFakeLotRepo(),
		products: newFakeProductRepo(),
		crm:      newFakeCRM(),
	}
	f.svc = NewSyncService(f.tasks, f.apps, f.lots, f.products, f.crm, time.Minute)
	return f
}

func TestEnqueueNeverFailsTheCaller(t *testing.T) {
	f := newSyncFixture()
	f.tasks.createErr = errors.New("db down")

	// Must not panic or surface the storage failure.
	f.svc.Enqueue(context.Background(), model.SyncEntityApplication, 1, model.SyncOpCreate, nil)

	counts, err := f.svc.QueueStats(context.Background())
	require.NoError(t, err)
	require.Empty(t, counts)
}

func TestEnqueueDedupeKeyOnlyForCreates(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()

	f.svc.Enqueue(ctx, model.SyncEntityApplication, 1, model.SyncOpCreate, map[string]interface{}{"a": 1})
	f.svc.Enqueue(ctx, model.SyncEntityApplication, 1, model.SyncOpUpdateStatus, map[string]interface{}{"status": "accepted"})

	created, err := f.tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, created.DedupeKey)
	require.Equal(t, 3, created.MaxRetries)

	statusTask, err := f.tasks.FindByID(ctx, 2)
	require.NoError(t, err)
	require.Nil(t, statusTask.DedupeKey)
}

func TestProcessBatchSkipsWhenCRMDisabled(t *testing.T) {
	f := newSyncFixture()
	f.crm.enabled = false
	ctx := context.Background()

	f.svc.Enqueue(ctx, model.SyncEntityApplication, 1, model.SyncOpCreate, nil)

	processed, err := f.svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, processed)

	task, err := f.tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.SyncTaskStatusPending, task.Status)
}

func TestDeliverCreateAdoptsRemoteID(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()
	app := f.apps.add(&model.Application{ApplicationNumber: "APP-20260831-00001", SyncStatus: model.SyncStatusPending})

	f.svc.Enqueue(ctx, model.SyncEntityApplication, app.ID, model.SyncOpCreate, map[string]interface{}{
		"application_number": app.ApplicationNumber,
	})

	processed, err := f.svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	stored, err := f.apps.FindByID(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Bitrix24ID)
	require.True(t, stored.IsSynced)
	require.Equal(t, model.SyncStatusSynced, stored.SyncStatus)

	task, err := f.tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.SyncTaskStatusSuccess, task.Status)

	// A finished task is never claimed again.
	processed, err = f.svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, processed)
}

func TestDeliverCreateIsIdempotent(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()
	app := f.apps.add(&model.Application{ApplicationNumber: "APP-20260831-00001"})

	f.svc.Enqueue(ctx, model.SyncEntityApplication, app.ID, model.SyncOpCreate, nil)

	// A previous attempt already created the remote record under this key.
	task, err := f.tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	f.crm.existing[task.DedupeKey.String()] = 77

	_, err = f.svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)

	// No duplicate crm.item.add; the existing record was adopted.
	require.Empty(t, f.crm.callMethods())
	stored, err := f.apps.FindByID(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Bitrix24ID)
	require.Equal(t, int64(77), *stored.Bitrix24ID)
}

func TestRetryPolicyExhaustsIntoFailed(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()
	app := f.apps.add(&model.Application{ApplicationNumber: "APP-20260831-00001"})

	f.crm.failures = 3 // every attempt times out
	f.svc.Enqueue(ctx, model.SyncEntityApplication, app.ID, model.SyncOpCreate, nil)

	// Attempt 1 → retry with backoff.
	_, err := f.svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	task, err := f.tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.SyncTaskStatusRetry, task.Status)
	require.Equal(t, 1, task.RetryCount)
	require.NotNil(t, task.NextRetryAt)
	require.NotEmpty(t, task.ErrorMessage)

	// A scheduled retry is still pending delivery, not a failure.
	stored, err := f.apps.FindByID(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusPending, stored.SyncStatus)
	require.Equal(t, 1, stored.SyncRetryCount)
	require.NotEmpty(t, stored.SyncError)

	// Not due yet: backoff holds the task out of the next batch.
	processed, err := f.svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, processed)

	// Attempt 2 → retry again.
	f.tasks.forceDue(1)
	_, err = f.svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	task, err = f.tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.SyncTaskStatusRetry, task.Status)
	require.Equal(t, 2, task.RetryCount)

	// Attempt 3 exhausts max_retries → terminal failed.
	f.tasks.forceDue(1)
	_, err = f.svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	task, err = f.tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.SyncTaskStatusFailed, task.Status)
	require.Equal(t, 3, task.RetryCount)
	require.NotEmpty(t, task.ErrorMessage)

	// The application carries the failure in its sync metadata.
	stored, err = f.apps.FindByID(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusFailed, stored.SyncStatus)
	require.Equal(t, 3, stored.SyncRetryCount)
	require.NotEmpty(t, stored.SyncError)
}

func TestOperatorRetryAfterFailure(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()
	app := f.apps.add(&model.Application{ApplicationNumber: "APP-20260831-00001"})

	f.crm.failures = 3
	f.svc.Enqueue(ctx, model.SyncEntityApplication, app.ID, model.SyncOpCreate, nil)
	for i := 0; i < 3; i++ {
		f.tasks.forceDue(1)
		_, err := f.svc.ProcessBatch(ctx, 10)
		require.NoError(t, err)
	}

	// Only failed tasks can be reset.
	require.NoError(t, f.svc.RetryTask(ctx, 1))
	require.True(t, apperr.Is(f.svc.RetryTask(ctx, 1), apperr.KindInvalidState))

	// The CRM has recovered; delivery eventually lands.
	_, err := f.svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	task, err := f.tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.SyncTaskStatusSuccess, task.Status)
}

func TestStatusUpdateWaitsForRemoteRecord(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()
	app := f.apps.add(&model.Application{ApplicationNumber: "APP-20260831-00001"})

	// The stage update is queued before the create has delivered.
	f.svc.Enqueue(ctx, model.SyncEntityApplication, app.ID, model.SyncOpUpdateStatus,
		map[string]interface{}{"status": string(model.ApplicationStatusAccepted)})

	_, err := f.svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	task, err := f.tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.SyncTaskStatusRetry, task.Status)

	// The wait is a pending sync, not a failed one.
	stored, err := f.apps.FindByID(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusPending, stored.SyncStatus)

	// Once the record exists the retried task goes through.
	remoteID := int64(9)
	require.NoError(t, f.apps.UpdateFields(ctx, app.ID, map[string]interface{}{"bitrix24_id": remoteID}))
	f.tasks.forceDue(1)
	_, err = f.svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	task, err = f.tasks.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.SyncTaskStatusSuccess, task.Status)
	require.Equal(t, []string{"stage"}, f.crm.callMethods())

	// Success refreshes the entity's sync metadata.
	stored, err = f.apps.FindByID(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusSynced, stored.SyncStatus)
	require.True(t, stored.IsSynced)
	require.Empty(t, stored.SyncError)
}

func TestClearFailed(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()
	f.apps.add(&model.Application{ApplicationNumber: "APP-20260831-00001"})

	f.crm.failures = 3
	f.svc.Enqueue(ctx, model.SyncEntityApplication, 1, model.SyncOpCreate, nil)
	for i := 0; i < 3; i++ {
		f.tasks.forceDue(1)
		_, err := f.svc.ProcessBatch(ctx, 10)
		require.NoError(t, err)
	}

	deleted, err := f.svc.ClearFailed(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	counts, err := f.svc.QueueStats(ctx)
	require.NoError(t, err)
	require.Zero(t, counts[model.SyncTaskStatusFailed])
}
