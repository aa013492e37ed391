package repository

import (
	"context"
	"fmt"
	"time"

	"backend/internal/model"

	"gorm.io/gorm"
)

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	Status            model.ApplicationStatus
	CreatorTelegramID string
	InspectorTelegramID string
	LotID             uint64
	ProductID         uint64
}

// ApplicationRepository is the persistence boundary for applications.
type ApplicationRepository interface {
	Create(ctx context.Context, app *model.Application) error
	FindByID(ctx context.Context, id uint64) (*model.Application, error)
	FindByNumber(ctx context.Context, number string) (*model.Application, error)
	List(ctx context.Context, filter ApplicationFilter, offset, limit int) ([]model.Application, int64, error)
	ListOTKQueue(ctx context.Context) ([]model.Application, error)
	Save(ctx context.Context, app *model.Application) error
	// UpdateStatusIf atomically moves the application from one of the
	// expected statuses to the target status, applying updates in the same
	// statement. Returns false when the current status did not match, i.e.
	// a concurrent transition won.
	UpdateStatusIf(ctx context.Context, id uint64, expected []model.ApplicationStatus, to model.ApplicationStatus, updates map[string]interface{}) (bool, error)
	// UpdateFields applies a partial update without status guards. Used for
	// aggregator-derived fields and sync metadata.
	UpdateFields(ctx context.Context, id uint64, updates map[string]interface{}) error
	NextApplicationNumber(ctx context.Context) (string, error)
	Delete(ctx context.Context, id uint64) error
	Stats(ctx context.Context, since time.Time) (*model.ApplicationStats, error)
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *model.Application) error {
	return GetDB(ctx, r.db).Create(app).Error
}

func (r *applicationRepository) FindByID(ctx context.Context, id uint64) (*model.Application, error) {
	var app model.Application
	if err := GetDB(ctx, r.db).Preload("Lot").Preload("Product").First(&app, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) FindByNumber(ctx context.Context, number string) (*model.Application, error) {
	var app model.Application
	if err := GetDB(ctx, r.db).Preload("Lot").Preload("Product").
		First(&app, "application_number = ?", number).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter, offset, limit int) ([]model.Application, int64, error) {
	var apps []model.Application
	var total int64

	db := GetDB(ctx, r.db)
	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.CreatorTelegramID != "" {
			q = q.Where("creator_telegram_id = ?", filter.CreatorTelegramID)
		}
		if filter.InspectorTelegramID != "" {
			q = q.Where("otk_inspector_telegram_id = ?", filter.InspectorTelegramID)
		}
		if filter.LotID != 0 {
			q = q.Where("lot_id = ?", filter.LotID)
		}
		if filter.ProductID != 0 {
			q = q.Where("product_id = ?", filter.ProductID)
		}
		return q
	}

	if err := apply(db.Model(&model.Application{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := apply(db.Preload("Lot").Preload("Product")).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&apps).Error; err != nil {
		return nil, 0, err
	}

	return apps, total, nil
}

// ListOTKQueue returns unassigned applications ordered the way inspectors
// pick them up: lot priority first, then distance to the OTK office, then age.
func (r *applicationRepository) ListOTKQueue(ctx context.Context) ([]model.Application, error) {
	var apps []model.Application
	err := GetDB(ctx, r.db).Preload("Lot").Preload("Product").
		Joins("JOIN lots ON lots.id = applications.lot_id").
		Where("applications.status = ?", model.ApplicationStatusNew).
		Order("lots.priority_level ASC").
		Order("lots.distance_to_otk_meters ASC").
		Order("applications.created_at ASC").
		Find(&apps).Error
	return apps, err
}

func (r *applicationRepository) Save(ctx context.Context, app *model.Application) error {
	return GetDB(ctx, r.db).Save(app).Error
}

func (r *applicationRepository) UpdateStatusIf(ctx context.Context, id uint64, expected []model.ApplicationStatus, to model.ApplicationStatus, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	res := GetDB(ctx, r.db).Model(&model.Application{}).
		Where("id = ? AND status IN ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *applicationRepository) UpdateFields(ctx context.Context, id uint64, updates map[string]interface{}) error {
	return GetDB(ctx, r.db).Model(&model.Application{}).Where("id = ?", id).Updates(updates).Error
}

// NextApplicationNumber allocates a unique APP-YYYYMMDD-NNNNN number. The
// per-day counter is serialized with an advisory lock so concurrent creates
// cannot collide.
func (r *applicationRepository) NextApplicationNumber(ctx context.Context) (string, error) {
	db := GetDB(ctx, r.db)
	prefix := "APP-" + time.Now().Format("20060102") + "-"

	db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix)

	var count int64
	if err := db.Model(&model.Application{}).
		Where("application_number LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

// Delete hard-deletes the application; discrepancies and their history go
// with it via ON DELETE CASCADE.
func (r *applicationRepository) Delete(ctx context.Context, id uint64) error {
	return GetDB(ctx, r.db).Delete(&model.Application{}, "id = ?", id).Error
}

func (r *applicationRepository) Stats(ctx context.Context, since time.Time) (*model.ApplicationStats, error) {
	var stats model.ApplicationStats
	err := GetDB(ctx, r.db).Model(&model.Application{}).
		Select(`COUNT(*) AS total,
			SUM(CASE WHEN status = 'accepted' THEN 1 ELSE 0 END) AS accepted,
			SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END) AS rejected,
			SUM(CASE WHEN status IN ('new', 'assigned_to_otk', 'in_progress') THEN 1 ELSE 0 END) AS in_progress,
			AVG(sla_response_minutes) AS avg_response_minutes,
			AVG(sla_inspection_minutes) AS avg_inspection_minutes`).
		Where("created_at >= ?", since).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
