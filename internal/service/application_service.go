package service

import (
	"context"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"
	"backend/pkg/logger"

	"github.com/sirupsen/logrus"
)

// CreateApplicationInput carries a submitter's inspection request.
type CreateApplicationInput struct {
	LotID                  uint64
	ProductID              uint64
	Quantity               int
	BatchNumber            string
	DrawingNumber          string
	ProductSerialNumber    string
	Notes                  string
	DesiredInspectionAt    *time.Time
	OTKInspectorTelegramID string
}

// UpdateApplicationInput is the admin partial update. Nil fields are left
// untouched.
type UpdateApplicationInput struct {
	Quantity            *int       `json:"quantity"`
	BatchNumber         *string    `json:"batch_number"`
	Notes               *string    `json:"notes"`
	DesiredInspectionAt *time.Time `json:"desired_inspection_time"`
}

// ApplicationService is the application lifecycle engine:
// new → assigned_to_otk → in_progress → accepted|rejected, after which the
// discrepancy aggregator may take over.
type ApplicationService interface {
	Create(ctx context.Context, actor Actor, input CreateApplicationInput) (*model.Application, error)
	GetByID(ctx context.Context, id uint64) (*model.Application, error)
	GetByNumber(ctx context.Context, number string) (*model.Application, error)
	List(ctx context.Context, filter repository.ApplicationFilter, offset, limit int) ([]model.Application, int64, error)
	OTKQueue(ctx context.Context) ([]model.Application, error)
	Assign(ctx context.Context, actor Actor, id uint64, inspectorTelegramID string) (*model.Application, error)
	StartInspection(ctx context.Context, actor Actor, id uint64) (*model.Application, error)
	CompleteInspection(ctx context.Context, actor Actor, id uint64, result string) (*model.Application, error)
	Update(ctx context.Context, actor Actor, id uint64, input UpdateApplicationInput) (*model.Application, error)
	Delete(ctx context.Context, actor Actor, id uint64) error
	Stats(ctx context.Context, since time.Time) (*model.ApplicationStats, error)
}

type applicationService struct {
	repo     repository.ApplicationRepository
	lots     repository.LotRepository
	products repository.ProductRepository
	tx       repository.TransactionManager
	sync     SyncEnqueuer
	notifier NotificationGateway
	events   EventBroadcaster
	log      *logrus.Logger
}

func NewApplicationService(
	repo repository.ApplicationRepository,
	lots repository.LotRepository,
	products repository.ProductRepository,
	tx repository.TransactionManager,
	sync SyncEnqueuer,
	notifier NotificationGateway,
	events EventBroadcaster,
) ApplicationService {
	return &applicationService{
		repo:     repo,
		lots:     lots,
		products: products,
		tx:       tx,
		sync:     sync,
		notifier: notifier,
		events:   events,
		log:      logger.Get(),
	}
}

func (s *applicationService) Create(ctx context.Context, actor Actor, input CreateApplicationInput) (*model.Application, error) {
	if input.Quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}

	lot, err := s.lots.FindByID(ctx, input.LotID)
	if err != nil {
		return nil, apperr.NotFound("lot %d not found", input.LotID)
	}
	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, apperr.NotFound("product %d not found", input.ProductID)
	}
	if product.LotID != nil && *product.LotID != lot.ID {
		return nil, apperr.Validation("product %q does not belong to lot %q", product.Name, lot.Name)
	}

	inspector := input.OTKInspectorTelegramID
	if inspector == "" {
		inspector = product.DefaultOTKInspectorTelegramID
	}

	var app *model.Application
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		number, err := s.repo.NextApplicationNumber(txCtx)
		if err != nil {
			return err
		}

		app = &model.Application{
			ApplicationNumber:      number,
			LotID:                  lot.ID,
			ProductID:              product.ID,
			CreatorTelegramID:      actor.TelegramID,
			Status:                 model.ApplicationStatusNew,
			DrawingNumber:          input.DrawingNumber,
			ProductSerialNumber:    input.ProductSerialNumber,
			Quantity:               input.Quantity,
			BatchNumber:            input.BatchNumber,
			Notes:                  input.Notes,
			DesiredInspectionAt:    input.DesiredInspectionAt,
			OTKInspectorTelegramID: inspector,
			SyncStatus:             model.SyncStatusPending,
		}
		return s.repo.Create(txCtx, app)
	})
	if err != nil {
		return nil, err
	}
	app.Lot = lot
	app.Product = product

	s.announce(ctx, app)
	s.sync.Enqueue(ctx, model.SyncEntityApplication, app.ID, model.SyncOpCreate, map[string]interface{}{
		"application_number": app.ApplicationNumber,
		"lot":                lot.Name,
		"product":            product.Name,
		"quantity":           app.Quantity,
		"batch_number":       app.BatchNumber,
		"creator":            app.CreatorTelegramID,
	})
	s.events.BroadcastEvent("application.created", "application", app.ID, string(app.Status))

	return app, nil
}

func (s *applicationService) GetByID(ctx context.Context, id uint64) (*model.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("application %d not found", id)
	}
	return app, nil
}

func (s *applicationService) GetByNumber(ctx context.Context, number string) (*model.Application, error) {
	app, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, apperr.NotFound("application %s not found", number)
	}
	return app, nil
}

func (s *applicationService) List(ctx context.Context, filter repository.ApplicationFilter, offset, limit int) ([]model.Application, int64, error) {
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *applicationService) OTKQueue(ctx context.Context) ([]model.Application, error) {
	return s.repo.ListOTKQueue(ctx)
}

func (s *applicationService) Assign(ctx context.Context, actor Actor, id uint64, inspectorTelegramID string) (*model.Application, error) {
	if inspectorTelegramID == "" {
		inspectorTelegramID = actor.TelegramID
	}

	app, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"otk_inspector_telegram_id": inspectorTelegramID,
		"assigned_at":               now,
		"sla_response_minutes":      int(now.Sub(app.CreatedAt).Minutes()),
	}

	ok, err := s.repo.UpdateStatusIf(ctx, id,
		[]model.ApplicationStatus{model.ApplicationStatusNew},
		model.ApplicationStatusAssignedToOTK, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidState("application %s is no longer awaiting assignment", app.ApplicationNumber)
	}

	s.afterTransition(ctx, id, model.ApplicationStatusAssignedToOTK)
	return s.GetByID(ctx, id)
}

func (s *applicationService) StartInspection(ctx context.Context, actor Actor, id uint64) (*model.Application, error) {
	app, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.TelegramID != app.OTKInspectorTelegramID {
		return nil, apperr.Forbidden("application %s is assigned to another inspector", app.ApplicationNumber)
	}

	ok, err := s.repo.UpdateStatusIf(ctx, id,
		[]model.ApplicationStatus{model.ApplicationStatusAssignedToOTK},
		model.ApplicationStatusInProgress,
		map[string]interface{}{"started_at": time.Now()})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidState("application %s is not assigned for inspection", app.ApplicationNumber)
	}

	s.afterTransition(ctx, id, model.ApplicationStatusInProgress)
	return s.GetByID(ctx, id)
}

func (s *applicationService) CompleteInspection(ctx context.Context, actor Actor, id uint64, result string) (*model.Application, error) {
	var target model.ApplicationStatus
	switch result {
	case model.InspectionResultAccepted:
		target = model.ApplicationStatusAccepted
	case model.InspectionResultRejected:
		target = model.ApplicationStatusRejected
	default:
		return nil, apperr.Validation("unknown inspection result %q", result)
	}

	app, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.TelegramID != app.OTKInspectorTelegramID {
		return nil, apperr.Forbidden("application %s is assigned to another inspector", app.ApplicationNumber)
	}

	now := time.Now()
	updates := map[string]interface{}{"completed_at": now}
	if app.StartedAt != nil {
		updates["sla_inspection_minutes"] = int(now.Sub(*app.StartedAt).Minutes())
	}

	ok, err := s.repo.UpdateStatusIf(ctx, id,
		[]model.ApplicationStatus{model.ApplicationStatusInProgress}, target, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidState("application %s is not under inspection", app.ApplicationNumber)
	}

	s.afterTransition(ctx, id, target)
	return s.GetByID(ctx, id)
}

func (s *applicationService) Update(ctx context.Context, actor Actor, id uint64, input UpdateApplicationInput) (*model.Application, error) {
	if !actor.Elevated() {
		return nil, apperr.Forbidden("application update requires an elevated role")
	}

	app, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Quantity != nil {
		if *input.Quantity < 1 {
			return nil, apperr.Validation("quantity must be at least 1")
		}
		updates["quantity"] = *input.Quantity
	}
	if input.BatchNumber != nil {
		updates["batch_number"] = *input.BatchNumber
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if input.DesiredInspectionAt != nil {
		updates["desired_inspection_at"] = *input.DesiredInspectionAt
	}
	if len(updates) == 0 {
		return app, nil
	}

	if err := s.repo.UpdateFields(ctx, id, updates); err != nil {
		return nil, err
	}

	updated, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.sync.Enqueue(ctx, model.SyncEntityApplication, id, model.SyncOpUpdate, map[string]interface{}{
		"quantity":     updated.Quantity,
		"batch_number": updated.BatchNumber,
	})
	return updated, nil
}

// Delete hard-removes the application with its discrepancies and history,
// enqueues removal of the CRM record, and takes down the channel message.
func (s *applicationService) Delete(ctx context.Context, actor Actor, id uint64) error {
	if !actor.Elevated() {
		return apperr.Forbidden("application deletion requires an elevated role")
	}

	app, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if app.Bitrix24ID != nil {
		s.sync.Enqueue(ctx, model.SyncEntityApplication, id, model.SyncOpDelete, map[string]interface{}{
			"bitrix24_id": *app.Bitrix24ID,
		})
	}
	if app.TelegramChannelMessageID != "" {
		if err := s.notifier.DeleteChannelMessage(ctx, app.TelegramChannelMessageID); err != nil {
			s.log.WithField("application", app.ApplicationNumber).
				WithError(err).Warn("channel message delete failed")
		}
	}
	s.events.BroadcastEvent("application.deleted", "application", id, "")
	return nil
}

func (s *applicationService) Stats(ctx context.Context, since time.Time) (*model.ApplicationStats, error) {
	return s.repo.Stats(ctx, since)
}

// announce posts the new application to the shop-floor channel and remembers
// the message handle for later edits. Best-effort.
func (s *applicationService) announce(ctx context.Context, app *model.Application) {
	messageID, err := s.notifier.SendChannelMessage(ctx, renderApplicationMessage(app))
	if err != nil {
		s.log.WithField("application", app.ApplicationNumber).
			WithError(err).Warn("channel announcement failed")
		return
	}
	if messageID == "" {
		return
	}
	app.TelegramChannelMessageID = messageID
	if err := s.repo.UpdateFields(ctx, app.ID, map[string]interface{}{
		"telegram_channel_message_id": messageID,
	}); err != nil {
		s.log.WithField("application", app.ApplicationNumber).
			WithError(err).Warn("storing channel message id failed")
	}
}

// afterTransition propagates a lifecycle transition outward: CRM stage via
// the queue, dashboards via the hub, channel message in place.
func (s *applicationService) afterTransition(ctx context.Context, id uint64, status model.ApplicationStatus) {
	s.sync.Enqueue(ctx, model.SyncEntityApplication, id, model.SyncOpUpdateStatus,
		map[string]interface{}{"status": status})
	s.events.BroadcastEvent("application.status_changed", "application", id, string(status))

	app, err := s.repo.FindByID(ctx, id)
	if err != nil || app.TelegramChannelMessageID == "" {
		return
	}
	if err := s.notifier.UpdateChannelMessage(ctx, app.TelegramChannelMessageID, renderApplicationMessage(app)); err != nil {
		s.log.WithField("application", app.ApplicationNumber).
			WithError(err).Warn("channel message update failed")
	}
}

var statusTitles = map[model.ApplicationStatus]string{
	model.ApplicationStatusNew:           "Новая",
	model.ApplicationStatusAssignedToOTK: "Назначена ОТК",
	model.ApplicationStatusInProgress:    "На проверке",
	model.ApplicationStatusAccepted:      "Принята",
	model.ApplicationStatusRejected:      "Отклонена",
	model.ApplicationStatusInResolution:  "Устранение несоответствий",
	model.ApplicationStatusMixed:         "Смешанный статус",
	model.ApplicationStatusKRPending:     "Ожидает карту разрешения",
	model.ApplicationStatusDefect:        "Брак",
}

func renderApplicationMessage(app *model.Application) string {
	title := statusTitles[app.Status]
	if title == "" {
		title = string(app.Status)
	}

	msg := fmt.Sprintf("<b>Заявка %s</b>\nСтатус: %s\nКоличество: %d",
		app.ApplicationNumber, title, app.Quantity)
	if app.Lot != nil {
		msg += "\nУчасток: " + app.Lot.Name
	}
	if app.Product != nil {
		msg += "\nИзделие: " + app.Product.Name
	}
	if app.BatchNumber != "" {
		msg += "\nПартия: " + app.BatchNumber
	}
	return msg
}
