package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backend/internal/model"

	"gorm.io/gorm"
)

// DiscrepancyFilter narrows discrepancy listings.
type DiscrepancyFilter struct {
	Status           model.DiscrepancyStatus
	Type             model.DiscrepancyType
	DefectCode       string
	MasterTelegramID string
}

// DiscrepancyRepository is the persistence boundary for discrepancies and
// their append-only history.
type DiscrepancyRepository interface {
	Create(ctx context.Context, d *model.Discrepancy) error
	FindByID(ctx context.Context, id uint64) (*model.Discrepancy, error)
	ListByApplication(ctx context.Context, applicationID uint64) ([]model.Discrepancy, error)
	List(ctx context.Context, filter DiscrepancyFilter, offset, limit int) ([]model.Discrepancy, int64, error)
	Save(ctx context.Context, d *model.Discrepancy) error
	// UpdateStatusIf atomically moves the discrepancy from one of the
	// expected statuses to the target status, applying updates in the same
	// statement. Returns false when a concurrent transition won.
	UpdateStatusIf(ctx context.Context, id uint64, expected []model.DiscrepancyStatus, to model.DiscrepancyStatus, updates map[string]interface{}) (bool, error)
	AppendHistory(ctx context.Context, entry *model.DiscrepancyHistory) error
	ListHistory(ctx context.Context, discrepancyID uint64) ([]model.DiscrepancyHistory, error)
	Stats(ctx context.Context, masterTelegramID string, since time.Time) (*model.DiscrepancyStats, error)
	TopDefectCodes(ctx context.Context, since time.Time, limit int) ([]model.DefectCodeStat, error)
	// NextDiscrepancyNumber allocates DISC-<suffix>-NN where suffix is the
	// parent application number without its APP- prefix.
	NextDiscrepancyNumber(ctx context.Context, applicationNumber string, applicationID uint64) (string, error)
	// NextKRNumber allocates a unique KR-YYYY-NNNN permission-card id.
	NextKRNumber(ctx context.Context) (string, error)
}

type discrepancyRepository struct {
	db *gorm.DB
}

func NewDiscrepancyRepository(db *gorm.DB) DiscrepancyRepository {
	return &discrepancyRepository{db: db}
}

func (r *discrepancyRepository) Create(ctx context.Context, d *model.Discrepancy) error {
	return GetDB(ctx, r.db).Create(d).Error
}

func (r *discrepancyRepository) FindByID(ctx context.Context, id uint64) (*model.Discrepancy, error) {
	var d model.Discrepancy
	if err := GetDB(ctx, r.db).Preload("Application").First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *discrepancyRepository) ListByApplication(ctx context.Context, applicationID uint64) ([]model.Discrepancy, error) {
	var ds []model.Discrepancy
	err := GetDB(ctx, r.db).
		Where("application_id = ?", applicationID).
		Order("priority ASC").
		Order("created_at DESC").
		Find(&ds).Error
	return ds, err
}

func (r *discrepancyRepository) List(ctx context.Context, filter DiscrepancyFilter, offset, limit int) ([]model.Discrepancy, int64, error) {
	var ds []model.Discrepancy
	var total int64

	db := GetDB(ctx, r.db)
	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Type != "" {
			q = q.Where("type = ?", filter.Type)
		}
		if filter.DefectCode != "" {
			q = q.Where("defect_code = ?", filter.DefectCode)
		}
		if filter.MasterTelegramID != "" {
			q = q.Where("responsible_master_telegram_id = ?", filter.MasterTelegramID)
		}
		return q
	}

	if err := apply(db.Model(&model.Discrepancy{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := apply(db.Preload("Application")).
		Order("priority ASC").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&ds).Error; err != nil {
		return nil, 0, err
	}

	return ds, total, nil
}

func (r *discrepancyRepository) Save(ctx context.Context, d *model.Discrepancy) error {
	return GetDB(ctx, r.db).Save(d).Error
}

func (r *discrepancyRepository) UpdateStatusIf(ctx context.Context, id uint64, expected []model.DiscrepancyStatus, to model.DiscrepancyStatus, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	res := GetDB(ctx, r.db).Model(&model.Discrepancy{}).
		Where("id = ? AND status IN ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *discrepancyRepository) AppendHistory(ctx context.Context, entry *model.DiscrepancyHistory) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *discrepancyRepository) ListHistory(ctx context.Context, discrepancyID uint64) ([]model.DiscrepancyHistory, error) {
	var entries []model.DiscrepancyHistory
	err := GetDB(ctx, r.db).
		Where("discrepancy_id = ?", discrepancyID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

func (r *discrepancyRepository) Stats(ctx context.Context, masterTelegramID string, since time.Time) (*model.DiscrepancyStats, error) {
	q := GetDB(ctx, r.db).Model(&model.Discrepancy{}).Where("created_at >= ?", since)
	if masterTelegramID != "" {
		q = q.Where("responsible_master_telegram_id = ?", masterTelegramID)
	}

	var stats model.DiscrepancyStats
	err := q.Select(`COUNT(*) AS total,
		SUM(CASE WHEN status = 'new' THEN 1 ELSE 0 END) AS new,
		SUM(CASE WHEN status = 'in_resolution' THEN 1 ELSE 0 END) AS in_resolution,
		SUM(CASE WHEN status = 'closed' THEN 1 ELSE 0 END) AS closed,
		SUM(CASE WHEN resolution_type = 'fixed' THEN 1 ELSE 0 END) AS fixed,
		SUM(CASE WHEN resolution_type = 'defect' THEN 1 ELSE 0 END) AS defect,
		AVG(resolution_time_minutes) AS avg_resolution_minutes`).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *discrepancyRepository) NextDiscrepancyNumber(ctx context.Context, applicationNumber string, applicationID uint64) (string, error) {
	db := GetDB(ctx, r.db)
	suffix := strings.TrimPrefix(applicationNumber, "APP-")

	db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", applicationNumber)

	var count int64
	if err := db.Model(&model.Discrepancy{}).
		Where("application_id = ?", applicationID).
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("DISC-%s-%02d", suffix, count+1), nil
}

func (r *discrepancyRepository) NextKRNumber(ctx context.Context) (string, error) {
	db := GetDB(ctx, r.db)
	prefix := "KR-" + time.Now().Format("2006") + "-"

	db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix)

	var count int64
	if err := db.Model(&model.Discrepancy{}).
		Where("kr_document_id LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func (r *discrepancyRepository) TopDefectCodes(ctx context.Context, since time.Time, limit int) ([]model.DefectCodeStat, error) {
	var rows []model.DefectCodeStat
	err := GetDB(ctx, r.db).Model(&model.Discrepancy{}).
		Select(`defect_code AS code, defect_category AS category, defect_severity AS severity,
			COUNT(*) AS count, AVG(resolution_time_minutes) AS avg_resolution_minutes`).
		Where("created_at >= ?", since).
		Where("defect_code IS NOT NULL AND defect_code <> ''").
		Group("defect_code, defect_category, defect_severity").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
