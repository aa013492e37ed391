package model

import (
	"time"

	"gorm.io/datatypes"
)

// ApplicationStatus is the closed set of application lifecycle states.
// Plain inspection flow: new → assigned_to_otk → in_progress → accepted|rejected.
// Once a rejected application gains discrepancies, the status is derived from
// the discrepancy set (see service.ComputeApplicationStatus).
type ApplicationStatus string

const (
	ApplicationStatusNew           ApplicationStatus = "new"
	ApplicationStatusAssignedToOTK ApplicationStatus = "assigned_to_otk"
	ApplicationStatusInProgress    ApplicationStatus = "in_progress"
	ApplicationStatusAccepted      ApplicationStatus = "accepted"
	ApplicationStatusRejected      ApplicationStatus = "rejected"
	ApplicationStatusInResolution  ApplicationStatus = "in_resolution"
	ApplicationStatusMixed         ApplicationStatus = "mixed_status"
	ApplicationStatusKRPending     ApplicationStatus = "kr_pending"
	ApplicationStatusDefect        ApplicationStatus = "defect"
)

// ValidApplicationStatus reports whether s is a known application status.
func ValidApplicationStatus(s ApplicationStatus) bool {
	switch s {
	case ApplicationStatusNew, ApplicationStatusAssignedToOTK, ApplicationStatusInProgress,
		ApplicationStatusAccepted, ApplicationStatusRejected, ApplicationStatusInResolution,
		ApplicationStatusMixed, ApplicationStatusKRPending, ApplicationStatusDefect:
		return true
	}
	return false
}

// Terminal reports whether no further discrepancies may be raised against an
// application in this status.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationStatusAccepted || s == ApplicationStatusDefect
}

// Sync status values for the external CRM record of an application.
const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusFailed  = "failed"
)

// ResolutionSummary tallies how the application's discrepancies were
// resolved. Stored as plain columns so it can be filtered and summed in SQL.
type ResolutionSummary struct {
	Fixed     int `gorm:"not null;default:0" json:"fixed"`
	KRPending int `gorm:"not null;default:0" json:"kr_pending"`
	Defect    int `gorm:"not null;default:0" json:"defect"`
	Political int `gorm:"not null;default:0" json:"political"`
}

// Application is a request for OTK inspection of a produced batch or unit.
type Application struct {
	ID                uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ApplicationNumber string            `gorm:"type:varchar(50);uniqueIndex;not null" json:"application_number"`
	LotID             uint64            `gorm:"not null;index" json:"lot_id"`
	Lot               *Lot              `gorm:"foreignKey:LotID;constraint:OnDelete:CASCADE" json:"lot,omitempty"`
	ProductID         uint64            `gorm:"not null;index" json:"product_id"`
	Product           *Product          `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
	CreatorTelegramID string            `gorm:"type:varchar(50);not null;index" json:"creator_telegram_id"`
	Status            ApplicationStatus `gorm:"type:varchar(30);not null;default:'new';index" json:"status"`

	DrawingNumber       string     `gorm:"type:varchar(100);index" json:"drawing_number,omitempty"`
	ProductSerialNumber string     `gorm:"type:varchar(100);index" json:"product_serial_number,omitempty"`
	Quantity            int        `gorm:"not null;default:1" json:"quantity"`
	BatchNumber         string     `gorm:"type:varchar(100)" json:"batch_number,omitempty"`
	Notes               string     `gorm:"type:text" json:"notes,omitempty"`
	DesiredInspectionAt *time.Time `gorm:"index" json:"desired_inspection_time,omitempty"`

	OTKInspectorTelegramID string     `gorm:"type:varchar(50);index" json:"otk_inspector_telegram_id,omitempty"`
	AssignedAt             *time.Time `json:"assigned_at,omitempty"`
	StartedAt              *time.Time `json:"started_at,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`

	SLAResponseMinutes   *int `json:"sla_response_minutes,omitempty"`
	SLAInspectionMinutes *int `json:"sla_inspection_minutes,omitempty"`

	DiscrepancyCount  int               `gorm:"not null;default:0" json:"discrepancy_count"`
	ResolutionSummary ResolutionSummary `gorm:"embedded;embeddedPrefix:summary_" json:"resolution_summary"`

	// External CRM record
	Bitrix24ID     *int64 `gorm:"uniqueIndex" json:"bitrix24_id,omitempty"`
	IsSynced       bool   `gorm:"not null;default:false;index" json:"is_synced"`
	SyncStatus     string `gorm:"type:varchar(20);not null;default:'pending';index" json:"sync_status"`
	SyncRetryCount int    `gorm:"not null;default:0" json:"sync_retry_count"`
	SyncError      string `gorm:"type:text" json:"sync_error,omitempty"`

	// Messaging channel
	TelegramChannelMessageID string                        `gorm:"type:varchar(100);index" json:"telegram_channel_message_id,omitempty"`
	TelegramMessageIDs       datatypes.JSONSlice[string]   `json:"telegram_message_ids,omitempty"`

	Discrepancies []Discrepancy `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"discrepancies,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// InspectionResult is the outcome code of a completed OTK inspection.
const (
	InspectionResultAccepted = "accepted"
	InspectionResultRejected = "rejected"
)
