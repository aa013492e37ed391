package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// fakeTx runs the callback on the same context; the in-memory fakes have no
// transactional semantics to speak of.
type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeApplicationRepo struct {
	mu     sync.Mutex
	apps   map[uint64]*model.Application
	nextID uint64
	seq    int

	createErr error
}

func newFakeApplicationRepo() *fakeApplicationRepo {
	return &fakeApplicationRepo{apps: map[uint64]*model.Application{}}
}

func (r *fakeApplicationRepo) add(app *model.Application) *model.Application {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	app.ID = r.nextID
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now()
	}
	r.apps[app.ID] = app
	return app
}

func (r *fakeApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.add(app)
	return nil
}

func (r *fakeApplicationRepo) FindByID(ctx context.Context, id uint64) (*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *app
	return &cp, nil
}

func (r *fakeApplicationRepo) FindByNumber(ctx context.Context, number string) (*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, app := range r.apps {
		if app.ApplicationNumber == number {
			cp := *app
			return &cp, nil
		}
	}
	return nil, errors.New("record not found")
}

func (r *fakeApplicationRepo) List(ctx context.Context, filter repository.ApplicationFilter, offset, limit int) ([]model.Application, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Application
	for _, app := range r.apps {
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		out = append(out, *app)
	}
	return out, int64(len(out)), nil
}

func (r *fakeApplicationRepo) ListOTKQueue(ctx context.Context) ([]model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Application
	for _, app := range r.apps {
		if app.Status == model.ApplicationStatusNew {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (r *fakeApplicationRepo) Save(ctx context.Context, app *model.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *app
	r.apps[app.ID] = &cp
	return nil
}

func (r *fakeApplicationRepo) UpdateStatusIf(ctx context.Context, id uint64, expected []model.ApplicationStatus, to model.ApplicationStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, s := range expected {
		if app.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	app.Status = to
	applyAppUpdates(app, updates)
	return true, nil
}

func (r *fakeApplicationRepo) UpdateFields(ctx context.Context, id uint64, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return errors.New("record not found")
	}
	applyAppUpdates(app, updates)
	return nil
}

func (r *fakeApplicationRepo) NextApplicationNumber(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("APP-%s-%05d", time.Now().Format("20060102"), r.seq), nil
}

func (r *fakeApplicationRepo) Delete(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[id]; !ok {
		return errors.New("record not found")
	}
	delete(r.apps, id)
	return nil
}

func (r *fakeApplicationRepo) Stats(ctx context.Context, since time.Time) (*model.ApplicationStats, error) {
	return &model.ApplicationStats{}, nil
}

func applyAppUpdates(app *model.Application, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "status":
			app.Status = value.(model.ApplicationStatus)
		case "otk_inspector_telegram_id":
			app.OTKInspectorTelegramID = value.(string)
		case "assigned_at":
			app.AssignedAt = timePtr(value)
		case "started_at":
			app.StartedAt = timePtr(value)
		case "completed_at":
			app.CompletedAt = timePtr(value)
		case "sla_response_minutes":
			v := value.(int)
			app.SLAResponseMinutes = &v
		case "sla_inspection_minutes":
			v := value.(int)
			app.SLAInspectionMinutes = &v
		case "discrepancy_count":
			app.DiscrepancyCount = value.(int)
		case "summary_fixed":
			app.ResolutionSummary.Fixed = value.(int)
		case "summary_kr_pending":
			app.ResolutionSummary.KRPending = value.(int)
		case "summary_defect":
			app.ResolutionSummary.Defect = value.(int)
		case "summary_political":
			app.ResolutionSummary.Political = value.(int)
		case "telegram_channel_message_id":
			app.TelegramChannelMessageID = value.(string)
		case "quantity":
			app.Quantity = value.(int)
		case "batch_number":
			app.BatchNumber = value.(string)
		case "notes":
			app.Notes = value.(string)
		case "bitrix24_id":
			v := value.(int64)
			app.Bitrix24ID = &v
		case "is_synced":
			app.IsSynced = value.(bool)
		case "sync_status":
			app.SyncStatus = value.(string)
		case "sync_retry_count":
			app.SyncRetryCount = value.(int)
		case "sync_error":
			app.SyncError = value.(string)
		}
	}
}

type fakeDiscrepancyRepo struct {
	mu      sync.Mutex
	discs   map[uint64]*model.Discrepancy
	history []model.DiscrepancyHistory
	nextID  uint64
	krSeq   int
}

func newFakeDiscrepancyRepo() *fakeDiscrepancyRepo {
	return &fakeDiscrepancyRepo{discs: map[uint64]*model.Discrepancy{}}
}

func (r *fakeDiscrepancyRepo) add(d *model.Discrepancy) *model.Discrepancy {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	d.ID = r.nextID
	r.discs[d.ID] = d
	return d
}

func (r *fakeDiscrepancyRepo) Create(ctx context.Context, d *model.Discrepancy) error {
	r.add(d)
	return nil
}

func (r *fakeDiscrepancyRepo) FindByID(ctx context.Context, id uint64) (*model.Discrepancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.discs[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDiscrepancyRepo) ListByApplication(ctx context.Context, applicationID uint64) ([]model.Discrepancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Discrepancy
	for _, d := range r.discs {
		if d.ApplicationID == applicationID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDiscrepancyRepo) List(ctx context.Context, filter repository.DiscrepancyFilter, offset, limit int) ([]model.Discrepancy, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Discrepancy
	for _, d := range r.discs {
		out = append(out, *d)
	}
	return out, int64(len(out)), nil
}

func (r *fakeDiscrepancyRepo) Save(ctx context.Context, d *model.Discrepancy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.discs[d.ID] = &cp
	return nil
}

func (r *fakeDiscrepancyRepo) UpdateStatusIf(ctx context.Context, id uint64, expected []model.DiscrepancyStatus, to model.DiscrepancyStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.discs[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, s := range expected {
		if d.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	d.Status = to
	applyDiscUpdates(d, updates)
	return true, nil
}

func (r *fakeDiscrepancyRepo) AppendHistory(ctx context.Context, entry *model.DiscrepancyHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uint64(len(r.history) + 1)
	r.history = append(r.history, *entry)
	return nil
}

func (r *fakeDiscrepancyRepo) ListHistory(ctx context.Context, discrepancyID uint64) ([]model.DiscrepancyHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DiscrepancyHistory
	for _, h := range r.history {
		if h.DiscrepancyID == discrepancyID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeDiscrepancyRepo) Stats(ctx context.Context, masterTelegramID string, since time.Time) (*model.DiscrepancyStats, error) {
	return &model.DiscrepancyStats{}, nil
}

func (r *fakeDiscrepancyRepo) TopDefectCodes(ctx context.Context, since time.Time, limit int) ([]model.DefectCodeStat, error) {
	return nil, nil
}

func (r *fakeDiscrepancyRepo) NextDiscrepancyNumber(ctx context.Context, applicationNumber string, applicationID uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, d := range r.discs {
		if d.ApplicationID == applicationID {
			count++
		}
	}
	suffix := strings.TrimPrefix(applicationNumber, "APP-")
	return fmt.Sprintf("DISC-%s-%02d", suffix, count+1), nil
}

func (r *fakeDiscrepancyRepo) NextKRNumber(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.krSeq++
	return fmt.Sprintf("KR-%d-%04d", time.Now().Year(), r.krSeq), nil
}

func (r *fakeDiscrepancyRepo) lastHistoryAction() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return ""
	}
	return r.history[len(r.history)-1].Action
}

func applyDiscUpdates(d *model.Discrepancy, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "started_at":
			d.StartedAt = timePtr(value)
		case "completed_at":
			d.CompletedAt = timePtr(value)
		case "resolution_type":
			if value == nil {
				d.ResolutionType = nil
			} else {
				v := value.(model.ResolutionType)
				d.ResolutionType = &v
			}
		case "resolution_notes":
			d.ResolutionNotes = value.(string)
		case "resolution_documents":
			d.ResolutionDocuments = value.(datatypes.JSONSlice[string])
		case "resolution_time_minutes":
			if value == nil {
				d.ResolutionTimeMinutes = nil
			} else {
				v := value.(int)
				d.ResolutionTimeMinutes = &v
			}
		case "approved_by_telegram_id":
			d.ApprovedByTelegramID = value.(string)
		case "responsible_master_telegram_id":
			d.ResponsibleMasterTelegramID = value.(string)
		case "kr_document_id":
			d.KR.DocumentID = value.(string)
		case "kr_approvers":
			d.KR.Approvers = value.(datatypes.JSONSlice[string])
		case "kr_valid_until":
			d.KR.ValidUntil = timePtr(value)
		case "kr_approved_at":
			d.KR.ApprovedAt = timePtr(value)
		case "scrap_act_number":
			d.Defect.ActNumber = value.(string)
		case "scrap_cost":
			d.Defect.Cost = value.(decimal.Decimal)
		case "scrap_cause_analysis":
			d.Defect.CauseAnalysis = value.(string)
		case "political_order_number":
			d.Political.OrderNumber = value.(string)
		case "political_reason":
			d.Political.Reason = value.(string)
		case "political_approved_by":
			d.Political.ApprovedBy = value.(string)
		}
	}
}

func timePtr(value interface{}) *time.Time {
	switch v := value.(type) {
	case time.Time:
		return &v
	case *time.Time:
		return v
	}
	return nil
}

type fakeLotRepo struct {
	mu     sync.Mutex
	lots   map[uint64]*model.Lot
	nextID uint64
}

func newFakeLotRepo() *fakeLotRepo {
	return &fakeLotRepo{lots: map[uint64]*model.Lot{}}
}

func (r *fakeLotRepo) Create(ctx context.Context, lot *model.Lot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	lot.ID = r.nextID
	r.lots[lot.ID] = lot
	return nil
}

func (r *fakeLotRepo) FindByID(ctx context.Context, id uint64) (*model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *lot
	return &cp, nil
}

func (r *fakeLotRepo) List(ctx context.Context, activeOnly bool) ([]model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Lot
	for _, lot := range r.lots {
		if activeOnly && !lot.IsActive {
			continue
		}
		out = append(out, *lot)
	}
	return out, nil
}

func (r *fakeLotRepo) Update(ctx context.Context, lot *model.Lot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *lot
	r.lots[lot.ID] = &cp
	return nil
}

func (r *fakeLotRepo) Delete(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lots, id)
	return nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uint64]*model.Product
	nextID   uint64
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: map[uint64]*model.Product{}}
}

func (r *fakeProductRepo) Create(ctx context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) FindByID(ctx context.Context, id uint64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) List(ctx context.Context, lotID uint64, activeOnly bool) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Product
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeProductRepo) Update(ctx context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *fakeProductRepo) Delete(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

type fakeSyncTaskRepo struct {
	mu        sync.Mutex
	tasks     map[uint64]*model.SyncTask
	nextID    uint64
	createErr error
}

func newFakeSyncTaskRepo() *fakeSyncTaskRepo {
	return &fakeSyncTaskRepo{tasks: map[uint64]*model.SyncTask{}}
}

func (r *fakeSyncTaskRepo) Create(ctx context.Context, task *model.SyncTask) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	task.ID = r.nextID
	task.CreatedAt = time.Now()
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *fakeSyncTaskRepo) FindByID(ctx context.Context, id uint64) (*model.SyncTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *task
	return &cp, nil
}

func (r *fakeSyncTaskRepo) ClaimBatch(ctx context.Context, target string, limit int) ([]model.SyncTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []model.SyncTask
	for id := uint64(1); id <= r.nextID && len(out) < limit; id++ {
		task, ok := r.tasks[id]
		if !ok || task.TargetSystem != target {
			continue
		}
		due := task.Status == model.SyncTaskStatusPending ||
			(task.Status == model.SyncTaskStatusRetry && task.NextRetryAt != nil && !task.NextRetryAt.After(now))
		if !due {
			continue
		}
		task.Status = model.SyncTaskStatusProcessing
		task.ProcessedAt = &now
		out = append(out, *task)
	}
	return out, nil
}

func (r *fakeSyncTaskRepo) MarkSuccess(ctx context.Context, id uint64, response string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task := r.tasks[id]
	task.Status = model.SyncTaskStatusSuccess
	task.Response = response
	task.ErrorMessage = ""
	return nil
}

func (r *fakeSyncTaskRepo) MarkRetry(ctx context.Context, id uint64, retryCount int, errMsg string, nextRetryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task := r.tasks[id]
	task.Status = model.SyncTaskStatusRetry
	task.RetryCount = retryCount
	task.ErrorMessage = errMsg
	task.NextRetryAt = &nextRetryAt
	return nil
}

func (r *fakeSyncTaskRepo) MarkFailed(ctx context.Context, id uint64, retryCount int, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task := r.tasks[id]
	task.Status = model.SyncTaskStatusFailed
	task.RetryCount = retryCount
	task.ErrorMessage = errMsg
	return nil
}

func (r *fakeSyncTaskRepo) Reset(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task := r.tasks[id]
	task.Status = model.SyncTaskStatusPending
	task.NextRetryAt = nil
	return nil
}

func (r *fakeSyncTaskRepo) List(ctx context.Context, limit int) ([]model.SyncTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SyncTask
	for _, task := range r.tasks {
		out = append(out, *task)
	}
	return out, nil
}

func (r *fakeSyncTaskRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int64{}
	for _, task := range r.tasks {
		counts[task.Status]++
	}
	return counts, nil
}

func (r *fakeSyncTaskRepo) DeleteFailed(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, task := range r.tasks {
		if task.Status == model.SyncTaskStatusFailed {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

// forceDue makes a retry task immediately claimable.
func (r *fakeSyncTaskRepo) forceDue(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	past := time.Now().Add(-time.Minute)
	r.tasks[id].NextRetryAt = &past
}

type enqueuedTask struct {
	EntityType string
	EntityID   uint64
	Operation  string
	Payload    map[string]interface{}
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []enqueuedTask
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, entityType string, entityID uint64, operation string, payload map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, enqueuedTask{EntityType: entityType, EntityID: entityID, Operation: operation, Payload: payload})
}

func (f *fakeEnqueuer) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.tasks))
	for i, t := range f.tasks {
		out[i] = t.Operation
	}
	return out
}

func (f *fakeEnqueuer) last() *enqueuedTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tasks) == 0 {
		return nil
	}
	return &f.tasks[len(f.tasks)-1]
}

type fakeNotifier struct {
	mu              sync.Mutex
	channelMessages []string
	directMessages  map[string][]string
	deletedMessages []string
	sendErr         error
	nextMessageID   int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{directMessages: map[string][]string{}}
}

func (f *fakeNotifier) SendChannelMessage(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.channelMessages = append(f.channelMessages, text)
	f.nextMessageID++
	return fmt.Sprintf("%d", f.nextMessageID), nil
}

func (f *fakeNotifier) UpdateChannelMessage(ctx context.Context, messageID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelMessages = append(f.channelMessages, text)
	return nil
}

func (f *fakeNotifier) DeleteChannelMessage(ctx context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedMessages = append(f.deletedMessages, messageID)
	return nil
}

func (f *fakeNotifier) SendDirectMessage(ctx context.Context, telegramID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.directMessages[telegramID] = append(f.directMessages[telegramID], text)
	return nil
}

type crmCall struct {
	Method string
	ID     int64
	Fields map[string]interface{}
	Dedupe string
}

type fakeCRM struct {
	mu       sync.Mutex
	enabled  bool
	calls    []crmCall
	nextID   int64
	existing map[string]int64 // dedupe key -> remote id
	failures int              // fail this many delivery calls before succeeding
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{enabled: true, existing: map[string]int64{}}
}

func (f *fakeCRM) Enabled() bool { return f.enabled }

func (f *fakeCRM) failNext() (err error) {
	if f.failures > 0 {
		f.failures--
		return errors.New("crm timeout")
	}
	return nil
}

func (f *fakeCRM) CreateItem(ctx context.Context, fields map[string]interface{}, dedupeKey string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext(); err != nil {
		return 0, err
	}
	f.nextID++
	f.calls = append(f.calls, crmCall{Method: "create", ID: f.nextID, Fields: fields, Dedupe: dedupeKey})
	if dedupeKey != "" {
		f.existing[dedupeKey] = f.nextID
	}
	return f.nextID, nil
}

func (f *fakeCRM) UpdateItem(ctx context.Context, id int64, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext(); err != nil {
		return err
	}
	f.calls = append(f.calls, crmCall{Method: "update", ID: id, Fields: fields})
	return nil
}

func (f *fakeCRM) UpdateStage(ctx context.Context, id int64, status model.ApplicationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext(); err != nil {
		return err
	}
	f.calls = append(f.calls, crmCall{Method: "stage", ID: id, Fields: map[string]interface{}{"status": string(status)}})
	return nil
}

func (f *fakeCRM) DeleteItem(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext(); err != nil {
		return err
	}
	f.calls = append(f.calls, crmCall{Method: "delete", ID: id})
	return nil
}

func (f *fakeCRM) FindByDedupeKey(ctx context.Context, dedupeKey string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[dedupeKey], nil
}

func (f *fakeCRM) callMethods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Method
	}
	return out
}

type broadcastEvent struct {
	Event      string
	EntityType string
	EntityID   uint64
	Status     string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (f *fakeBroadcaster) BroadcastEvent(event, entityType string, entityID uint64, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, broadcastEvent{Event: event, EntityType: entityType, EntityID: entityID, Status: status})
}

func (f *fakeBroadcaster) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Event
	}
	return out
}
