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

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// CreateDiscrepancyInput carries everything needed to record a
// non-conformity found during inspection.
type CreateDiscrepancyInput struct {
	ApplicationID               uint64
	Description                 string
	Type                        model.DiscrepancyType
	ResponsibleMasterTelegramID string
	DefectCode                  model.DefectCode
	Priority                    int
	LocationInProduct           string
	PhotoURLs                   []string
}

// CompleteResolutionInput carries the resolution outcome. The sub-record
// fields are only read when the resolution type requires them.
type CompleteResolutionInput struct {
	ResolutionType model.ResolutionType
	Notes          string
	Documents      []string

	// defect write-off
	ActNumber     string
	Cost          decimal.Decimal
	CauseAnalysis string

	// administrative closure
	OrderNumber string
	Reason      string
}

// DiscrepancyService is the discrepancy lifecycle engine. Every transition
// is a conditional status update plus a history append plus a parent-status
// recompute, all in one transaction.
type DiscrepancyService interface {
	Create(ctx context.Context, actor Actor, input CreateDiscrepancyInput) (*model.Discrepancy, error)
	GetByID(ctx context.Context, id uint64) (*model.Discrepancy, error)
	ListByApplication(ctx context.Context, applicationID uint64) ([]model.Discrepancy, error)
	List(ctx context.Context, filter repository.DiscrepancyFilter, offset, limit int) ([]model.Discrepancy, int64, error)
	StartResolution(ctx context.Context, actor Actor, id uint64) (*model.Discrepancy, error)
	CompleteResolution(ctx context.Context, actor Actor, id uint64, input CompleteResolutionInput) (*model.Discrepancy, error)
	Close(ctx context.Context, actor Actor, id uint64, result string) (*model.Discrepancy, error)
	CreateKR(ctx context.Context, actor Actor, id uint64, approvers []string, validUntil *time.Time) (*model.Discrepancy, error)
	ApproveKR(ctx context.Context, actor Actor, id uint64) (*model.Discrepancy, error)
	RejectKR(ctx context.Context, actor Actor, id uint64, reason string) (*model.Discrepancy, error)
	Reassign(ctx context.Context, actor Actor, id uint64, newMasterTelegramID, reason string) (*model.Discrepancy, error)
	History(ctx context.Context, id uint64) ([]model.DiscrepancyHistory, error)
	Stats(ctx context.Context, masterTelegramID string, since time.Time) (*model.DiscrepancyStats, error)
	TopDefectCodes(ctx context.Context, since time.Time, limit int) ([]model.DefectCodeStat, error)
}

type discrepancyService struct {
	repo     repository.DiscrepancyRepository
	apps     repository.ApplicationRepository
	tx       repository.TransactionManager
	sync     SyncEnqueuer
	notifier NotificationGateway
	events   EventBroadcaster
	log      *logrus.Logger
}

func NewDiscrepancyService(
	repo repository.DiscrepancyRepository,
	apps repository.ApplicationRepository,
	tx repository.TransactionManager,
	sync SyncEnqueuer,
	notifier NotificationGateway,
	events EventBroadcaster,
) DiscrepancyService {
	return &discrepancyService{
		repo:     repo,
		apps:     apps,
		tx:       tx,
		sync:     sync,
		notifier: notifier,
		events:   events,
		log:      logger.Get(),
	}
}

func (s *discrepancyService) Create(ctx context.Context, actor Actor, input CreateDiscrepancyInput) (*model.Discrepancy, error) {
	if input.Description == "" {
		return nil, apperr.Validation("description is required")
	}
	if !model.ValidDiscrepancyType(input.Type) {
		return nil, apperr.Validation("unknown discrepancy type %q", input.Type)
	}
	if input.ResponsibleMasterTelegramID == "" {
		return nil, apperr.Validation("responsible master is required")
	}
	if input.Priority == 0 {
		input.Priority = 3
	}
	if input.Priority < 1 || input.Priority > 5 {
		return nil, apperr.Validation("priority must be between 1 and 5")
	}

	var created *model.Discrepancy
	var appStatus model.ApplicationStatus

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		app, err := s.apps.FindByID(txCtx, input.ApplicationID)
		if err != nil {
			return apperr.NotFound("application %d not found", input.ApplicationID)
		}
		if app.Status.Terminal() {
			return apperr.Conflict("application %s is %s, no further discrepancies may be raised", app.ApplicationNumber, app.Status)
		}

		number, err := s.repo.NextDiscrepancyNumber(txCtx, app.ApplicationNumber, app.ID)
		if err != nil {
			return err
		}

		d := &model.Discrepancy{
			DiscrepancyNumber:           number,
			ApplicationID:               app.ID,
			Description:                 input.Description,
			Type:                        input.Type,
			Status:                      model.DiscrepancyStatusNew,
			ResponsibleMasterTelegramID: input.ResponsibleMasterTelegramID,
			DefectCode:                  input.DefectCode,
			Priority:                    input.Priority,
			LocationInProduct:           input.LocationInProduct,
			PhotoURLs:                   datatypes.NewJSONSlice(input.PhotoURLs),
		}
		if err := s.repo.Create(txCtx, d); err != nil {
			return err
		}

		if err := s.appendHistory(txCtx, d.ID, actor, model.HistoryActionCreated, map[string]interface{}{
			"type":               d.Type,
			"responsible_master": d.ResponsibleMasterTelegramID,
			"priority":           d.Priority,
		}); err != nil {
			return err
		}

		appStatus, err = s.recomputeApplication(txCtx, app)
		if err != nil {
			return err
		}

		created = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(ctx, created.ApplicationID, appStatus)
	s.events.BroadcastEvent("discrepancy.created", "discrepancy", created.ID, string(created.Status))
	s.notifyMaster(ctx, created, fmt.Sprintf(
		"<b>Новое несоответствие %s</b>\n%s\nПриоритет: %d",
		created.DiscrepancyNumber, created.Description, created.Priority))

	return created, nil
}

func (s *discrepancyService) GetByID(ctx context.Context, id uint64) (*model.Discrepancy, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("discrepancy %d not found", id)
	}
	return d, nil
}

func (s *discrepancyService) ListByApplication(ctx context.Context, applicationID uint64) ([]model.Discrepancy, error) {
	return s.repo.ListByApplication(ctx, applicationID)
}

func (s *discrepancyService) List(ctx context.Context, filter repository.DiscrepancyFilter, offset, limit int) ([]model.Discrepancy, int64, error) {
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *discrepancyService) StartResolution(ctx context.Context, actor Actor, id uint64) (*model.Discrepancy, error) {
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.TelegramID != d.ResponsibleMasterTelegramID {
		return nil, apperr.Forbidden("only the responsible master may start resolution of %s", d.DiscrepancyNumber)
	}

	now := time.Now()
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.UpdateStatusIf(txCtx, id,
			[]model.DiscrepancyStatus{model.DiscrepancyStatusNew, model.DiscrepancyStatusInAnalysis},
			model.DiscrepancyStatusInResolution,
			map[string]interface{}{"started_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("discrepancy %s is not awaiting resolution", d.DiscrepancyNumber)
		}

		return s.appendHistory(txCtx, id, actor, model.HistoryActionResolutionStarted, map[string]interface{}{
			"status": map[string]interface{}{"from": d.Status, "to": model.DiscrepancyStatusInResolution},
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.BroadcastEvent("discrepancy.resolution_started", "discrepancy", id, string(model.DiscrepancyStatusInResolution))
	return s.GetByID(ctx, id)
}

func (s *discrepancyService) CompleteResolution(ctx context.Context, actor Actor, id uint64, input CompleteResolutionInput) (*model.Discrepancy, error) {
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.TelegramID != d.ResponsibleMasterTelegramID && !actor.Elevated() {
		return nil, apperr.Forbidden("only the responsible master may complete resolution of %s", d.DiscrepancyNumber)
	}
	if input.ResolutionType == "" {
		return nil, apperr.Validation("resolution type is required")
	}
	if !model.ResolutionCompatible(d.Type, input.ResolutionType) {
		return nil, apperr.Validation("resolution %q is not legal for a %q discrepancy", input.ResolutionType, d.Type)
	}

	// A confirmed defect skips re-control: there is nothing left to present.
	target := model.DiscrepancyStatusReadyForControl
	expected := []model.DiscrepancyStatus{model.DiscrepancyStatusInResolution}
	if input.ResolutionType == model.ResolutionTypeDefect {
		target = model.DiscrepancyStatusDefectConfirmed
		expected = append(expected, model.DiscrepancyStatusNew)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"resolution_type":      input.ResolutionType,
		"resolution_notes":     input.Notes,
		"resolution_documents": datatypes.NewJSONSlice(input.Documents),
		"completed_at":         now,
	}
	if d.StartedAt != nil {
		updates["resolution_time_minutes"] = int(now.Sub(*d.StartedAt).Minutes())
	}
	switch input.ResolutionType {
	case model.ResolutionTypeDefect:
		updates["scrap_act_number"] = input.ActNumber
		updates["scrap_cost"] = input.Cost
		updates["scrap_cause_analysis"] = input.CauseAnalysis
	case model.ResolutionTypePoliticalClose:
		updates["political_order_number"] = input.OrderNumber
		updates["political_reason"] = input.Reason
		updates["political_approved_by"] = actor.TelegramID
	case model.ResolutionTypeKRApproved:
		updates["kr_approved_at"] = now
	}

	var appStatus model.ApplicationStatus
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.UpdateStatusIf(txCtx, id, expected, target, updates)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("discrepancy %s is not in resolution", d.DiscrepancyNumber)
		}

		if err := s.appendHistory(txCtx, id, actor, model.HistoryActionResolutionCompleted, map[string]interface{}{
			"status":          map[string]interface{}{"from": d.Status, "to": target},
			"resolution_type": input.ResolutionType,
		}); err != nil {
			return err
		}

		app, err := s.apps.FindByID(txCtx, d.ApplicationID)
		if err != nil {
			return err
		}
		appStatus, err = s.recomputeApplication(txCtx, app)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(ctx, d.ApplicationID, appStatus)
	s.events.BroadcastEvent("discrepancy.resolution_completed", "discrepancy", id, string(target))
	return s.GetByID(ctx, id)
}

func (s *discrepancyService) Close(ctx context.Context, actor Actor, id uint64, result string) (*model.Discrepancy, error) {
	if !actor.Elevated() {
		return nil, apperr.Forbidden("only an inspector may close a discrepancy")
	}
	if result != model.InspectionResultAccepted && result != model.InspectionResultRejected {
		return nil, apperr.Validation("unknown control result %q", result)
	}

	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	target := model.DiscrepancyStatusClosed
	action := model.HistoryActionClosed
	updates := map[string]interface{}{"approved_by_telegram_id": actor.TelegramID}
	if result == model.InspectionResultRejected {
		// Control rejected the rework; the discrepancy goes back to its master
		// with the rejected attempt's resolution record wiped.
		target = model.DiscrepancyStatusInResolution
		action = model.HistoryActionReturnedForRework
		updates = map[string]interface{}{
			"resolution_type":         nil,
			"completed_at":            nil,
			"resolution_time_minutes": nil,
			"kr_approved_at":          nil,
			"scrap_act_number":        "",
			"scrap_cost":              decimal.Zero,
			"scrap_cause_analysis":    "",
			"political_order_number":  "",
			"political_reason":        "",
			"political_approved_by":   "",
		}
	}

	var appStatus model.ApplicationStatus
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.UpdateStatusIf(txCtx, id,
			[]model.DiscrepancyStatus{model.DiscrepancyStatusReadyForControl}, target, updates)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("discrepancy %s is not ready for control", d.DiscrepancyNumber)
		}

		if err := s.appendHistory(txCtx, id, actor, action, map[string]interface{}{
			"status": map[string]interface{}{"from": d.Status, "to": target},
			"result": result,
		}); err != nil {
			return err
		}

		app, err := s.apps.FindByID(txCtx, d.ApplicationID)
		if err != nil {
			return err
		}
		appStatus, err = s.recomputeApplication(txCtx, app)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(ctx, d.ApplicationID, appStatus)
	s.events.BroadcastEvent("discrepancy.closed", "discrepancy", id, string(target))
	if result == model.InspectionResultRejected {
		s.notifyMaster(ctx, d, fmt.Sprintf(
			"<b>Несоответствие %s возвращено на доработку</b>", d.DiscrepancyNumber))
	}
	return s.GetByID(ctx, id)
}

func (s *discrepancyService) CreateKR(ctx context.Context, actor Actor, id uint64, approvers []string, validUntil *time.Time) (*model.Discrepancy, error) {
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Type != model.DiscrepancyTypeKRAgreement {
		return nil, apperr.InvalidState("a permission card requires a kr_agreement discrepancy, %s is %q", d.DiscrepancyNumber, d.Type)
	}
	if len(approvers) == 0 {
		return nil, apperr.Validation("at least one approver is required")
	}

	var appStatus model.ApplicationStatus
	var krNumber string
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		krNumber, err = s.repo.NextKRNumber(txCtx)
		if err != nil {
			return err
		}

		ok, err := s.repo.UpdateStatusIf(txCtx, id,
			[]model.DiscrepancyStatus{
				model.DiscrepancyStatusNew, model.DiscrepancyStatusInAnalysis,
				model.DiscrepancyStatusInResolution, model.DiscrepancyStatusReadyForControl,
				model.DiscrepancyStatusKRPending,
			},
			model.DiscrepancyStatusKRPending,
			map[string]interface{}{
				"kr_document_id": krNumber,
				"kr_approvers":   datatypes.NewJSONSlice(approvers),
				"kr_valid_until": validUntil,
			})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("discrepancy %s is already settled", d.DiscrepancyNumber)
		}

		if err := s.appendHistory(txCtx, id, actor, model.HistoryActionKRCreated, map[string]interface{}{
			"kr_document_id": krNumber,
			"approvers":      approvers,
		}); err != nil {
			return err
		}

		app, err := s.apps.FindByID(txCtx, d.ApplicationID)
		if err != nil {
			return err
		}
		appStatus, err = s.recomputeApplication(txCtx, app)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(ctx, d.ApplicationID, appStatus)
	s.events.BroadcastEvent("discrepancy.kr_created", "discrepancy", id, string(model.DiscrepancyStatusKRPending))
	return s.GetByID(ctx, id)
}

// ApproveKR settles a pending permission card: the waiver is granted, the
// discrepancy closes with resolution kr_approved.
func (s *discrepancyService) ApproveKR(ctx context.Context, actor Actor, id uint64) (*model.Discrepancy, error) {
	if !actor.Elevated() {
		return nil, apperr.Forbidden("permission card approval requires an elevated role")
	}

	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"resolution_type":         model.ResolutionTypeKRApproved,
		"kr_approved_at":          now,
		"completed_at":            now,
		"approved_by_telegram_id": actor.TelegramID,
	}
	if d.StartedAt != nil {
		updates["resolution_time_minutes"] = int(now.Sub(*d.StartedAt).Minutes())
	}

	var appStatus model.ApplicationStatus
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.UpdateStatusIf(txCtx, id,
			[]model.DiscrepancyStatus{model.DiscrepancyStatusKRPending},
			model.DiscrepancyStatusClosed, updates)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("discrepancy %s has no pending permission card", d.DiscrepancyNumber)
		}

		if err := s.appendHistory(txCtx, id, actor, model.HistoryActionKRApproved, map[string]interface{}{
			"status":         map[string]interface{}{"from": d.Status, "to": model.DiscrepancyStatusClosed},
			"kr_document_id": d.KR.DocumentID,
		}); err != nil {
			return err
		}

		app, err := s.apps.FindByID(txCtx, d.ApplicationID)
		if err != nil {
			return err
		}
		appStatus, err = s.recomputeApplication(txCtx, app)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(ctx, d.ApplicationID, appStatus)
	s.events.BroadcastEvent("discrepancy.kr_approved", "discrepancy", id, string(model.DiscrepancyStatusClosed))
	s.notifyMaster(ctx, d, fmt.Sprintf(
		"<b>Карта разрешения %s согласована</b>\nНесоответствие %s закрыто", d.KR.DocumentID, d.DiscrepancyNumber))
	return s.GetByID(ctx, id)
}

// RejectKR declines a pending permission card: the waiver is recorded as
// kr_rejected and the discrepancy goes back to its master for rework.
func (s *discrepancyService) RejectKR(ctx context.Context, actor Actor, id uint64, reason string) (*model.Discrepancy, error) {
	if !actor.Elevated() {
		return nil, apperr.Forbidden("permission card rejection requires an elevated role")
	}

	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var appStatus model.ApplicationStatus
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.UpdateStatusIf(txCtx, id,
			[]model.DiscrepancyStatus{model.DiscrepancyStatusKRPending},
			model.DiscrepancyStatusInResolution,
			map[string]interface{}{"resolution_type": model.ResolutionTypeKRRejected})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("discrepancy %s has no pending permission card", d.DiscrepancyNumber)
		}

		if err := s.appendHistory(txCtx, id, actor, model.HistoryActionKRRejected, map[string]interface{}{
			"status":         map[string]interface{}{"from": d.Status, "to": model.DiscrepancyStatusInResolution},
			"kr_document_id": d.KR.DocumentID,
			"reason":         reason,
		}); err != nil {
			return err
		}

		app, err := s.apps.FindByID(txCtx, d.ApplicationID)
		if err != nil {
			return err
		}
		appStatus, err = s.recomputeApplication(txCtx, app)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(ctx, d.ApplicationID, appStatus)
	s.events.BroadcastEvent("discrepancy.kr_rejected", "discrepancy", id, string(model.DiscrepancyStatusInResolution))
	s.notifyMaster(ctx, d, fmt.Sprintf(
		"<b>Карта разрешения %s отклонена</b>\nНесоответствие %s требует доработки", d.KR.DocumentID, d.DiscrepancyNumber))
	return s.GetByID(ctx, id)
}

func (s *discrepancyService) Reassign(ctx context.Context, actor Actor, id uint64, newMasterTelegramID, reason string) (*model.Discrepancy, error) {
	if !actor.Elevated() {
		return nil, apperr.Forbidden("reassignment requires an elevated role")
	}
	if newMasterTelegramID == "" {
		return nil, apperr.Validation("new responsible master is required")
	}

	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.UpdateStatusIf(txCtx, id,
			[]model.DiscrepancyStatus{d.Status}, d.Status,
			map[string]interface{}{"responsible_master_telegram_id": newMasterTelegramID})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("discrepancy %s changed concurrently, retry", d.DiscrepancyNumber)
		}

		return s.appendHistory(txCtx, id, actor, model.HistoryActionReassigned, map[string]interface{}{
			"responsible_master": map[string]interface{}{
				"from": d.ResponsibleMasterTelegramID,
				"to":   newMasterTelegramID,
			},
			"reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifyMaster(ctx, updated, fmt.Sprintf(
		"<b>Вам передано несоответствие %s</b>\n%s", updated.DiscrepancyNumber, updated.Description))
	return updated, nil
}

func (s *discrepancyService) History(ctx context.Context, id uint64) ([]model.DiscrepancyHistory, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

func (s *discrepancyService) Stats(ctx context.Context, masterTelegramID string, since time.Time) (*model.DiscrepancyStats, error) {
	return s.repo.Stats(ctx, masterTelegramID, since)
}

func (s *discrepancyService) TopDefectCodes(ctx context.Context, since time.Time, limit int) ([]model.DefectCodeStat, error) {
	return s.repo.TopDefectCodes(ctx, since, limit)
}

// recomputeApplication re-derives the parent's status and resolution summary
// from a fresh read of the full sibling set. Must run inside the same
// transaction as the discrepancy mutation that triggered it.
func (s *discrepancyService) recomputeApplication(ctx context.Context, app *model.Application) (model.ApplicationStatus, error) {
	siblings, err := s.repo.ListByApplication(ctx, app.ID)
	if err != nil {
		return "", err
	}

	status := ComputeApplicationStatus(app.Status, siblings)
	summary := SummarizeResolutions(siblings)

	err = s.apps.UpdateFields(ctx, app.ID, map[string]interface{}{
		"status":             status,
		"discrepancy_count":  len(siblings),
		"summary_fixed":      summary.Fixed,
		"summary_kr_pending": summary.KRPending,
		"summary_defect":     summary.Defect,
		"summary_political":  summary.Political,
	})
	return status, err
}

// afterStatusChange propagates a recomputed application status outward. Runs
// after commit; all targets are best-effort or queued.
func (s *discrepancyService) afterStatusChange(ctx context.Context, appID uint64, status model.ApplicationStatus) {
	s.sync.Enqueue(ctx, model.SyncEntityApplication, appID, model.SyncOpUpdateStatus,
		map[string]interface{}{"status": status})
	s.events.BroadcastEvent("application.status_changed", "application", appID, string(status))
}

func (s *discrepancyService) appendHistory(ctx context.Context, discrepancyID uint64, actor Actor, action string, changes map[string]interface{}) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return err
	}
	return s.repo.AppendHistory(ctx, &model.DiscrepancyHistory{
		DiscrepancyID:       discrepancyID,
		ChangedByTelegramID: actor.TelegramID,
		Action:              action,
		Changes:             string(payload),
	})
}

func (s *discrepancyService) notifyMaster(ctx context.Context, d *model.Discrepancy, text string) {
	if err := s.notifier.SendDirectMessage(ctx, d.ResponsibleMasterTelegramID, text); err != nil {
		s.log.WithFields(logrus.Fields{
			"discrepancy": d.DiscrepancyNumber,
			"master":      d.ResponsibleMasterTelegramID,
		}).WithError(err).Warn("master notification failed")
	}
}
