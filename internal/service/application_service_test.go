package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/pkg/apperr"

	"github.com/stretchr/testify/require"
)

type applicationFixture struct {
	apps     *fakeApplicationRepo
	lots     *fakeLotRepo
	products *fakeProductRepo
	sync     *fakeEnqueuer
	notifier *fakeNotifier
	events   *fakeBroadcaster
	svc      ApplicationService

	lot     *model.Lot
	product *model.Product
}

func newApplicationFixture(t *testing.T) *applicationFixture {
	t.Helper()

	f := &applicationFixture{
		apps:     newFakeApplicationRepo(),
		lots:     newFakeLotRepo(),
		products: newFakeProductRepo(),
		sync:     &fakeEnqueuer{},
		notifier: newFakeNotifier(),
		events:   &fakeBroadcaster{},
	}
	f.svc = NewApplicationService(f.apps, f.lots, f.products, fakeTx{}, f.sync, f.notifier, f.events)

	f.lot = &model.Lot{Name: "Сварка", ManagerTelegramID: "master-1", PriorityLevel: 2, IsActive: true}
	require.NoError(t, f.lots.Create(context.Background(), f.lot))

	lotID := f.lot.ID
	f.product = &model.Product{
		Name:                          "Корпус",
		LotID:                         &lotID,
		DefaultOTKInspectorTelegramID: "inspector-1",
		IsActive:                      true,
	}
	require.NoError(t, f.products.Create(context.Background(), f.product))
	return f
}

var (
	worker    = Actor{TelegramID: "worker-1", Role: model.RoleWorker}
	inspector = Actor{TelegramID: "inspector-1", Role: model.RoleOTKInspector}
	admin     = Actor{TelegramID: "admin-1", Role: model.RoleAdmin}
)

func TestCreateApplicationDefaults(t *testing.T) {
	f := newApplicationFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, worker, CreateApplicationInput{
		LotID:     f.lot.ID,
		ProductID: f.product.ID,
		Quantity:  5,
	})
	require.NoError(t, err)

	// The product's default inspector is copied on, but the application
	// still waits for an explicit assignment.
	require.Equal(t, model.ApplicationStatusNew, app.Status)
	require.Equal(t, "inspector-1", app.OTKInspectorTelegramID)
	require.Contains(t, app.ApplicationNumber, "APP-")
	require.Equal(t, "worker-1", app.CreatorTelegramID)

	// Announced to the channel and the message handle stored.
	require.Len(t, f.notifier.channelMessages, 1)
	stored, err := f.apps.FindByID(ctx, app.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.TelegramChannelMessageID)

	// CRM create queued, dashboards notified.
	require.Equal(t, []string{model.SyncOpCreate}, f.sync.ops())
	require.Equal(t, []string{"application.created"}, f.events.eventNames())
}

func TestCreateApplicationValidation(t *testing.T) {
	f := newApplicationFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, worker, CreateApplicationInput{LotID: f.lot.ID, ProductID: f.product.ID})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Create(ctx, worker, CreateApplicationInput{LotID: 99, ProductID: f.product.ID, Quantity: 1})
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	otherLot := &model.Lot{Name: "Механика", ManagerTelegramID: "master-2", IsActive: true}
	require.NoError(t, f.lots.Create(ctx, otherLot))
	_, err = f.svc.Create(ctx, worker, CreateApplicationInput{LotID: otherLot.ID, ProductID: f.product.ID, Quantity: 1})
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestApplicationInspectionFlow(t *testing.T) {
	f := newApplicationFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, worker, CreateApplicationInput{
		LotID: f.lot.ID, ProductID: f.product.ID, Quantity: 1,
	})
	require.NoError(t, err)

	assigned, err := f.svc.Assign(ctx, inspector, app.ID, "")
	require.NoError(t, err)
	require.Equal(t, model.ApplicationStatusAssignedToOTK, assigned.Status)
	require.Equal(t, "inspector-1", assigned.OTKInspectorTelegramID)
	require.NotNil(t, assigned.AssignedAt)
	require.NotNil(t, assigned.SLAResponseMinutes)

	// Double assignment loses the conditional update.
	_, err = f.svc.Assign(ctx, inspector, app.ID, "inspector-2")
	require.True(t, apperr.Is(err, apperr.KindInvalidState))

	// Another inspector may not start someone else's inspection.
	stranger := Actor{TelegramID: "inspector-2", Role: model.RoleOTKInspector}
	_, err = f.svc.StartInspection(ctx, stranger, app.ID)
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	started, err := f.svc.StartInspection(ctx, inspector, app.ID)
	require.NoError(t, err)
	require.Equal(t, model.ApplicationStatusInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	_, err = f.svc.CompleteInspection(ctx, inspector, app.ID, "maybe")
	require.True(t, apperr.Is(err, apperr.KindValidation))

	done, err := f.svc.CompleteInspection(ctx, inspector, app.ID, model.InspectionResultRejected)
	require.NoError(t, err)
	require.Equal(t, model.ApplicationStatusRejected, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.SLAInspectionMinutes)

	// Every transition queued a CRM stage update after the initial create.
	require.Equal(t, []string{
		model.SyncOpCreate, model.SyncOpUpdateStatus, model.SyncOpUpdateStatus, model.SyncOpUpdateStatus,
	}, f.sync.ops())
}

func TestApplicationUpdateRequiresElevation(t *testing.T) {
	f := newApplicationFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, worker, CreateApplicationInput{
		LotID: f.lot.ID, ProductID: f.product.ID, Quantity: 1,
	})
	require.NoError(t, err)

	qty := 7
	_, err = f.svc.Update(ctx, worker, app.ID, UpdateApplicationInput{Quantity: &qty})
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	updated, err := f.svc.Update(ctx, admin, app.ID, UpdateApplicationInput{Quantity: &qty})
	require.NoError(t, err)
	require.Equal(t, 7, updated.Quantity)

	last := f.sync.last()
	require.Equal(t, model.SyncOpUpdate, last.Operation)
	require.Equal(t, 7, last.Payload["quantity"])
}

func TestApplicationDelete(t *testing.T) {
	f := newApplicationFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, worker, CreateApplicationInput{
		LotID: f.lot.ID, ProductID: f.product.ID, Quantity: 1,
	})
	require.NoError(t, err)

	remoteID := int64(42)
	require.NoError(t, f.apps.UpdateFields(ctx, app.ID, map[string]interface{}{"bitrix24_id": remoteID}))

	require.True(t, apperr.Is(f.svc.Delete(ctx, worker, app.ID), apperr.KindForbidden))
	require.NoError(t, f.svc.Delete(ctx, admin, app.ID))

	_, err = f.svc.GetByID(ctx, app.ID)
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	// Remote record teardown is queued with the id it had, and the channel
	// message is taken down.
	last := f.sync.last()
	require.Equal(t, model.SyncOpDelete, last.Operation)
	require.Equal(t, remoteID, last.Payload["bitrix24_id"])
	require.Len(t, f.notifier.deletedMessages, 1)
}
