package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"backend/internal/model"
	"backend/pkg/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type discrepancyFixture struct {
	repo     *fakeDiscrepancyRepo
	apps     *fakeApplicationRepo
	sync     *fakeEnqueuer
	notifier *fakeNotifier
	events   *fakeBroadcaster
	svc      DiscrepancyService

	app *model.Application
}

var master = Actor{TelegramID: "master-1", Role: model.RoleMaster}

func newDiscrepancyFixture(t *testing.T) *discrepancyFixture {
	t.Helper()

	f := &discrepancyFixture{
		repo:     newFakeDiscrepancyRepo(),
		apps:     newFakeApplicationRepo(),
		sync:     &fakeEnqueuer{},
		notifier: newFakeNotifier(),
		events:   &fakeBroadcaster{},
	}
	f.svc = NewDiscrepancyService(f.repo, f.apps, fakeTx{}, f.sync, f.notifier, f.events)

	f.app = f.apps.add(&model.Application{
		ApplicationNumber: "APP-20260831-00001",
		Status:            model.ApplicationStatusRejected,
	})
	return f
}

func (f *discrepancyFixture) create(t *testing.T, dType model.DiscrepancyType) *model.Discrepancy {
	t.Helper()
	d, err := f.svc.Create(context.Background(), inspector, CreateDiscrepancyInput{
		ApplicationID:               f.app.ID,
		Description:                 "трещина сварного шва",
		Type:                        dType,
		ResponsibleMasterTelegramID: "master-1",
		DefectCode:                  model.DefectCode{Code: "S-02-H-1", Category: "S", TypeCode: "02", Cause: "H", Severity: 1},
	})
	require.NoError(t, err)
	return d
}

func TestCreateDiscrepancy(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()

	d := f.create(t, model.DiscrepancyTypeFix)
	require.Equal(t, "DISC-20260831-00001-01", d.DiscrepancyNumber)
	require.Equal(t, model.DiscrepancyStatusNew, d.Status)
	require.Equal(t, 3, d.Priority)

	second := f.create(t, model.DiscrepancyTypeFix)
	require.Equal(t, "DISC-20260831-00001-02", second.DiscrepancyNumber)

	// The parent follows its discrepancies and the change is pushed out.
	app, err := f.apps.FindByID(ctx, f.app.ID)
	require.NoError(t, err)
	require.Equal(t, model.ApplicationStatusInResolution, app.Status)
	require.Equal(t, 2, app.DiscrepancyCount)
	require.Contains(t, f.sync.ops(), model.SyncOpUpdateStatus)

	// The responsible master got a direct message per discrepancy.
	require.Len(t, f.notifier.directMessages["master-1"], 2)
	require.Equal(t, model.HistoryActionCreated, f.repo.history[0].Action)
}

func TestCreateDiscrepancyOnSettledApplication(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()

	require.NoError(t, f.apps.UpdateFields(ctx, f.app.ID,
		map[string]interface{}{"status": model.ApplicationStatusAccepted}))

	_, err := f.svc.Create(ctx, inspector, CreateDiscrepancyInput{
		ApplicationID:               f.app.ID,
		Description:                 "поздняя находка",
		Type:                        model.DiscrepancyTypeFix,
		ResponsibleMasterTelegramID: "master-1",
	})
	require.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestResolutionRoundTrip(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()
	d := f.create(t, model.DiscrepancyTypeFix)

	// Only the responsible master may pick the work up.
	_, err := f.svc.StartResolution(ctx, Actor{TelegramID: "master-2", Role: model.RoleMaster}, d.ID)
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	started, err := f.svc.StartResolution(ctx, master, d.ID)
	require.NoError(t, err)
	require.Equal(t, model.DiscrepancyStatusInResolution, started.Status)
	require.NotNil(t, started.StartedAt)

	// Starting twice loses the conditional update.
	_, err = f.svc.StartResolution(ctx, master, d.ID)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))

	// A fix discrepancy cannot be written off as scrap.
	_, err = f.svc.CompleteResolution(ctx, master, d.ID, CompleteResolutionInput{
		ResolutionType: model.ResolutionTypeDefect,
	})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	completed, err := f.svc.CompleteResolution(ctx, master, d.ID, CompleteResolutionInput{
		ResolutionType: model.ResolutionTypeFixed,
		Notes:          "шов переварен",
	})
	require.NoError(t, err)
	require.Equal(t, model.DiscrepancyStatusReadyForControl, completed.Status)
	require.NotNil(t, completed.ResolutionType)
	require.Equal(t, model.ResolutionTypeFixed, *completed.ResolutionType)
	require.NotNil(t, completed.ResolutionTimeMinutes)

	// Control accepts; everything is closed, the parent becomes accepted.
	closed, err := f.svc.Close(ctx, inspector, d.ID, model.InspectionResultAccepted)
	require.NoError(t, err)
	require.Equal(t, model.DiscrepancyStatusClosed, closed.Status)
	require.Equal(t, "inspector-1", closed.ApprovedByTelegramID)

	app, err := f.apps.FindByID(ctx, f.app.ID)
	require.NoError(t, err)
	require.Equal(t, model.ApplicationStatusAccepted, app.Status)
	require.Equal(t, 1, app.ResolutionSummary.Fixed)
}

func TestCloseRejectedReturnsToMaster(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()
	d := f.create(t, model.DiscrepancyTypeFix)

	_, err := f.svc.StartResolution(ctx, master, d.ID)
	require.NoError(t, err)
	_, err = f.svc.CompleteResolution(ctx, master, d.ID, CompleteResolutionInput{
		ResolutionType: model.ResolutionTypeFixed,
	})
	require.NoError(t, err)

	// A worker cannot run control.
	_, err = f.svc.Close(ctx, worker, d.ID, model.InspectionResultRejected)
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	returned, err := f.svc.Close(ctx, inspector, d.ID, model.InspectionResultRejected)
	require.NoError(t, err)
	require.Equal(t, model.DiscrepancyStatusInResolution, returned.Status)
	require.Nil(t, returned.ResolutionType)
	require.Nil(t, returned.CompletedAt)
	require.Nil(t, returned.ResolutionTimeMinutes)
	require.Equal(t, model.HistoryActionReturnedForRework, f.repo.lastHistoryAction())

	// The master hears about the rework: creation message plus the return.
	require.Len(t, f.notifier.directMessages["master-1"], 2)

	app, err := f.apps.FindByID(ctx, f.app.ID)
	require.NoError(t, err)
	require.Equal(t, model.ApplicationStatusInResolution, app.Status)
}

func TestDefectConfirmationSkipsControl(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()

	fixed := f.create(t, model.DiscrepancyTypeFix)
	_, err := f.svc.StartResolution(ctx, master, fixed.ID)
	require.NoError(t, err)
	_, err = f.svc.CompleteResolution(ctx, master, fixed.ID, CompleteResolutionInput{ResolutionType: model.ResolutionTypeFixed})
	require.NoError(t, err)
	_, err = f.svc.Close(ctx, inspector, fixed.ID, model.InspectionResultAccepted)
	require.NoError(t, err)

	// The defect is confirmed straight from new: nothing left to re-present.
	scrap := f.create(t, model.DiscrepancyTypeDefect)
	confirmed, err := f.svc.CompleteResolution(ctx, master, scrap.ID, CompleteResolutionInput{
		ResolutionType: model.ResolutionTypeDefect,
		ActNumber:      "АКТ-17",
		Cost:           decimal.NewFromInt(12500),
		CauseAnalysis:  "непровар корня шва",
	})
	require.NoError(t, err)
	require.Equal(t, model.DiscrepancyStatusDefectConfirmed, confirmed.Status)
	require.Equal(t, "АКТ-17", confirmed.Defect.ActNumber)
	require.True(t, confirmed.Defect.Cost.Equal(decimal.NewFromInt(12500)))

	// One scrapped unit outweighs the closed sibling.
	app, err := f.apps.FindByID(ctx, f.app.ID)
	require.NoError(t, err)
	require.Equal(t, model.ApplicationStatusDefect, app.Status)
	require.Equal(t, 1, app.ResolutionSummary.Defect)
}

func TestCreateKR(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()

	plain := f.create(t, model.DiscrepancyTypeFix)
	_, err := f.svc.CreateKR(ctx, inspector, plain.ID, []string{"director-1"}, nil)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))

	kr := f.create(t, model.DiscrepancyTypeKRAgreement)
	_, err = f.svc.CreateKR(ctx, inspector, kr.ID, nil, nil)
	require.True(t, apperr.Is(err, apperr.KindValidation))

	validUntil := time.Now().Add(30 * 24 * time.Hour)
	pending, err := f.svc.CreateKR(ctx, inspector, kr.ID, []string{"director-1", "chief-eng"}, &validUntil)
	require.NoError(t, err)
	require.Equal(t, model.DiscrepancyStatusKRPending, pending.Status)
	require.Contains(t, pending.KR.DocumentID, "KR-")
	require.Len(t, pending.KR.Approvers, 2)

	app, err := f.apps.FindByID(ctx, f.app.ID)
	require.NoError(t, err)
	require.Equal(t, model.ApplicationStatusKRPending, app.Status)
}

func TestKRApprovalClosesTheDiscrepancy(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()

	kr := f.create(t, model.DiscrepancyTypeKRAgreement)
	_, err := f.svc.CreateKR(ctx, inspector, kr.ID, []string{"director-1"}, nil)
	require.NoError(t, err)

	// Granting a waiver is a director/inspector decision.
	_, err = f.svc.ApproveKR(ctx, master, kr.ID)
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	approved, err := f.svc.ApproveKR(ctx, inspector, kr.ID)
	require.NoError(t, err)
	require.Equal(t, model.DiscrepancyStatusClosed, approved.Status)
	require.NotNil(t, approved.ResolutionType)
	require.Equal(t, model.ResolutionTypeKRApproved, *approved.ResolutionType)
	require.NotNil(t, approved.KR.ApprovedAt)
	require.NotNil(t, approved.CompletedAt)
	require.Equal(t, "inspector-1", approved.ApprovedByTelegramID)
	require.Equal(t, model.HistoryActionKRApproved, f.repo.lastHistoryAction())

	// Everything is settled: the parent leaves kr_pending for accepted.
	app, err := f.apps.FindByID(ctx, f.app.ID)
	require.NoError(t, err)
	require.Equal(t, model.ApplicationStatusAccepted, app.Status)
	require.Equal(t, 1, app.ResolutionSummary.KRPending)

	// A card can only be decided once.
	_, err = f.svc.ApproveKR(ctx, inspector, kr.ID)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestKRRejectionReturnsToRework(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()

	kr := f.create(t, model.DiscrepancyTypeKRAgreement)
	_, err := f.svc.CreateKR(ctx, inspector, kr.ID, []string{"director-1"}, nil)
	require.NoError(t, err)

	_, err = f.svc.RejectKR(ctx, worker, kr.ID, "")
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	rejected, err := f.svc.RejectKR(ctx, inspector, kr.ID, "недостаточное обоснование")
	require.NoError(t, err)
	require.Equal(t, model.DiscrepancyStatusInResolution, rejected.Status)
	require.NotNil(t, rejected.ResolutionType)
	require.Equal(t, model.ResolutionTypeKRRejected, *rejected.ResolutionType)
	require.Equal(t, model.HistoryActionKRRejected, f.repo.lastHistoryAction())

	// The master hears about the rejection: creation message plus the return.
	require.Len(t, f.notifier.directMessages["master-1"], 2)
	app, err := f.apps.FindByID(ctx, f.app.ID)
	require.NoError(t, err)
	require.Equal(t, model.ApplicationStatusInResolution, app.Status)

	// The rework path is open again and runs through to acceptance.
	fixed, err := f.svc.CompleteResolution(ctx, master, kr.ID, CompleteResolutionInput{
		ResolutionType: model.ResolutionTypeFixed,
		Notes:          "доработано по замечаниям",
	})
	require.NoError(t, err)
	require.Equal(t, model.DiscrepancyStatusReadyForControl, fixed.Status)

	closed, err := f.svc.Close(ctx, inspector, kr.ID, model.InspectionResultAccepted)
	require.NoError(t, err)
	require.Equal(t, model.DiscrepancyStatusClosed, closed.Status)

	app, err = f.apps.FindByID(ctx, f.app.ID)
	require.NoError(t, err)
	require.Equal(t, model.ApplicationStatusAccepted, app.Status)
}

func TestReworkClearsResolutionRecord(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()
	d := f.create(t, model.DiscrepancyTypePolitical)

	_, err := f.svc.StartResolution(ctx, master, d.ID)
	require.NoError(t, err)
	completed, err := f.svc.CompleteResolution(ctx, master, d.ID, CompleteResolutionInput{
		ResolutionType: model.ResolutionTypePoliticalClose,
		OrderNumber:    "ПР-41",
		Reason:         "распоряжение директора по качеству",
	})
	require.NoError(t, err)
	require.Equal(t, "ПР-41", completed.Political.OrderNumber)
	require.NotNil(t, completed.ResolutionTimeMinutes)

	// Control rejects the closure; nothing of the attempt survives.
	returned, err := f.svc.Close(ctx, inspector, d.ID, model.InspectionResultRejected)
	require.NoError(t, err)
	require.Equal(t, model.DiscrepancyStatusInResolution, returned.Status)
	require.Nil(t, returned.ResolutionType)
	require.Nil(t, returned.CompletedAt)
	require.Nil(t, returned.ResolutionTimeMinutes)
	require.Empty(t, returned.Political.OrderNumber)
	require.Empty(t, returned.Political.Reason)
	require.Empty(t, returned.Political.ApprovedBy)
}

func TestConcurrentStartResolutionSingleWinner(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()
	d := f.create(t, model.DiscrepancyTypeFix)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.StartResolution(ctx, master, d.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		require.True(t, apperr.Is(err, apperr.KindInvalidState))
		lost++
	}
	require.Equal(t, 1, won)
	require.Equal(t, 1, lost)

	// One start, one history entry.
	entries, err := f.svc.History(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, model.HistoryActionResolutionStarted, entries[1].Action)
}

func TestReassign(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()
	d := f.create(t, model.DiscrepancyTypeFix)

	_, err := f.svc.Reassign(ctx, master, d.ID, "master-2", "отпуск")
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	moved, err := f.svc.Reassign(ctx, inspector, d.ID, "master-2", "отпуск")
	require.NoError(t, err)
	require.Equal(t, "master-2", moved.ResponsibleMasterTelegramID)
	require.Equal(t, model.HistoryActionReassigned, f.repo.lastHistoryAction())
	require.Len(t, f.notifier.directMessages["master-2"], 1)

	// The new master can start resolution now; the old one cannot.
	_, err = f.svc.StartResolution(ctx, master, d.ID)
	require.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.StartResolution(ctx, Actor{TelegramID: "master-2", Role: model.RoleMaster}, d.ID)
	require.NoError(t, err)
}

func TestHistoryTrailsTheLifecycle(t *testing.T) {
	f := newDiscrepancyFixture(t)
	ctx := context.Background()
	d := f.create(t, model.DiscrepancyTypeFix)

	_, err := f.svc.StartResolution(ctx, master, d.ID)
	require.NoError(t, err)
	_, err = f.svc.CompleteResolution(ctx, master, d.ID, CompleteResolutionInput{ResolutionType: model.ResolutionTypeFixed})
	require.NoError(t, err)
	_, err = f.svc.Close(ctx, inspector, d.ID, model.InspectionResultAccepted)
	require.NoError(t, err)

	entries, err := f.svc.History(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	require.Equal(t, model.HistoryActionCreated, entries[0].Action)
	require.Equal(t, model.HistoryActionResolutionStarted, entries[1].Action)
	require.Equal(t, model.HistoryActionResolutionCompleted, entries[2].Action)
	require.Equal(t, model.HistoryActionClosed, entries[3].Action)
}
