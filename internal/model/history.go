package model

import "time"

// History action tags
const (
	HistoryActionCreated             = "created"
	HistoryActionStatusChange        = "status_change"
	HistoryActionResolutionStarted   = "resolution_started"
	HistoryActionResolutionCompleted = "resolution_completed"
	HistoryActionClosed              = "closed"
	HistoryActionReturnedForRework   = "returned_for_rework"
	HistoryActionKRCreated           = "kr_created"
	HistoryActionKRApproved          = "kr_approved"
	HistoryActionKRRejected          = "kr_rejected"
	HistoryActionReassigned          = "reassigned"
)

// DiscrepancyHistory is an append-only audit record of a discrepancy
// transition. Immutable once written.
type DiscrepancyHistory struct {
	ID                  uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	DiscrepancyID       uint64    `gorm:"not null;index" json:"discrepancy_id"`
	ChangedByTelegramID string    `gorm:"type:varchar(50);not null" json:"changed_by_telegram_id"`
	Action              string    `gorm:"type:varchar(50);not null;index" json:"action"`
	Changes             string    `gorm:"type:jsonb" json:"changes"` // structured diff payload
	CreatedAt           time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
