package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DiscrepancyType determines which resolution path is legal for a
// discrepancy.
type DiscrepancyType string

const (
	DiscrepancyTypeFix         DiscrepancyType = "fix"          // rework and re-present
	DiscrepancyTypeKRAgreement DiscrepancyType = "kr_agreement" // permission-card waiver
	DiscrepancyTypeDefect      DiscrepancyType = "defect"       // write off as scrap
	DiscrepancyTypePolitical   DiscrepancyType = "political"    // administrative closure
)

// ValidDiscrepancyType reports whether t is a known discrepancy type.
func ValidDiscrepancyType(t DiscrepancyType) bool {
	switch t {
	case DiscrepancyTypeFix, DiscrepancyTypeKRAgreement, DiscrepancyTypeDefect, DiscrepancyTypePolitical:
		return true
	}
	return false
}

// DiscrepancyStatus is the closed set of discrepancy lifecycle states.
type DiscrepancyStatus string

const (
	DiscrepancyStatusNew             DiscrepancyStatus = "new"
	DiscrepancyStatusInAnalysis      DiscrepancyStatus = "in_analysis"
	DiscrepancyStatusInResolution    DiscrepancyStatus = "in_resolution"
	DiscrepancyStatusReadyForControl DiscrepancyStatus = "ready_for_control"
	DiscrepancyStatusClosed          DiscrepancyStatus = "closed"
	DiscrepancyStatusKRPending       DiscrepancyStatus = "kr_pending"
	DiscrepancyStatusDefectConfirmed DiscrepancyStatus = "defect_confirmed"
)

// ValidDiscrepancyStatus reports whether s is a known discrepancy status.
func ValidDiscrepancyStatus(s DiscrepancyStatus) bool {
	switch s {
	case DiscrepancyStatusNew, DiscrepancyStatusInAnalysis, DiscrepancyStatusInResolution,
		DiscrepancyStatusReadyForControl, DiscrepancyStatusClosed,
		DiscrepancyStatusKRPending, DiscrepancyStatusDefectConfirmed:
		return true
	}
	return false
}

// Active reports whether the discrepancy still needs somebody's attention.
func (s DiscrepancyStatus) Active() bool {
	switch s {
	case DiscrepancyStatusNew, DiscrepancyStatusInAnalysis, DiscrepancyStatusInResolution, DiscrepancyStatusReadyForControl:
		return true
	}
	return false
}

// ResolutionType records how a discrepancy was finally resolved.
type ResolutionType string

const (
	ResolutionTypeFixed          ResolutionType = "fixed"
	ResolutionTypeKRApproved     ResolutionType = "kr_approved"
	ResolutionTypeKRRejected     ResolutionType = "kr_rejected"
	ResolutionTypeDefect         ResolutionType = "defect"
	ResolutionTypePoliticalClose ResolutionType = "political_close"
)

// resolutionsByType is the single source of truth for which resolutions a
// discrepancy type permits.
var resolutionsByType = map[DiscrepancyType][]ResolutionType{
	DiscrepancyTypeFix:         {ResolutionTypeFixed},
	DiscrepancyTypeKRAgreement: {ResolutionTypeKRApproved, ResolutionTypeKRRejected, ResolutionTypeFixed},
	DiscrepancyTypeDefect:      {ResolutionTypeDefect},
	DiscrepancyTypePolitical:   {ResolutionTypePoliticalClose},
}

// ResolutionCompatible reports whether res is a legal resolution for a
// discrepancy of type t. A kr_agreement discrepancy whose permission card is
// rejected may still end up reworked, hence "fixed" is allowed there.
func ResolutionCompatible(t DiscrepancyType, res ResolutionType) bool {
	for _, allowed := range resolutionsByType[t] {
		if allowed == res {
			return true
		}
	}
	return false
}

// DefectCode is the 4-part non-conformity classifier, e.g. "S-02-H-1":
// category (S welding, M machining, ...), type code, cause (E equipment,
// H human, ...), severity 1 critical .. 4 informational.
type DefectCode struct {
	Code     string `gorm:"type:varchar(20);index" json:"code,omitempty"`
	Category string `gorm:"type:varchar(1)" json:"category,omitempty"`
	TypeCode string `gorm:"type:varchar(2)" json:"type_code,omitempty"`
	Cause    string `gorm:"type:varchar(1)" json:"cause,omitempty"`
	Severity int    `json:"severity,omitempty"`
}

// KRFields carries the permission-card sub-record. Only meaningful when the
// discrepancy type is kr_agreement.
type KRFields struct {
	DocumentID string                      `gorm:"type:varchar(100)" json:"document_id,omitempty"`
	Approvers  datatypes.JSONSlice[string] `json:"approvers,omitempty"`
	ApprovedAt *time.Time                  `json:"approved_at,omitempty"`
	ValidUntil *time.Time                  `json:"valid_until,omitempty"`
}

// DefectFields carries the scrap write-off sub-record. Only meaningful when
// the discrepancy type is defect.
type DefectFields struct {
	ActNumber     string          `gorm:"type:varchar(100)" json:"act_number,omitempty"`
	Cost          decimal.Decimal `gorm:"type:decimal(12,2)" json:"cost"`
	CauseAnalysis string          `gorm:"type:text" json:"cause_analysis,omitempty"`
}

// PoliticalFields carries the administrative-closure sub-record. Only
// meaningful when the discrepancy type is political.
type PoliticalFields struct {
	OrderNumber string `gorm:"type:varchar(100)" json:"order_number,omitempty"`
	Reason      string `gorm:"type:text" json:"reason,omitempty"`
	ApprovedBy  string `gorm:"type:varchar(50)" json:"approved_by,omitempty"`
}

// Discrepancy is a non-conformity found during inspection, tracked through
// its resolution lifecycle. Never deleted, only closed; the full history is
// kept in DiscrepancyHistory.
type Discrepancy struct {
	ID                 uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	DiscrepancyNumber  string            `gorm:"type:varchar(50);not null;index" json:"discrepancy_number"`
	ApplicationID      uint64            `gorm:"not null;index" json:"application_id"`
	Application        *Application      `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"application,omitempty"`
	Description        string            `gorm:"type:text;not null" json:"description"`
	Type               DiscrepancyType   `gorm:"type:varchar(20);not null;default:'fix';index" json:"type"`
	Status             DiscrepancyStatus `gorm:"type:varchar(30);not null;default:'new';index" json:"status"`
	ResponsibleMasterTelegramID string   `gorm:"type:varchar(50);not null;index" json:"responsible_master_telegram_id"`

	DefectCode DefectCode `gorm:"embedded;embeddedPrefix:defect_" json:"defect_code"`
	Priority   int        `gorm:"not null;default:3;index" json:"priority"` // 1 highest, 5 lowest

	ResolutionType        *ResolutionType             `gorm:"type:varchar(20)" json:"resolution_type,omitempty"`
	ResolutionNotes       string                      `gorm:"type:text" json:"resolution_notes,omitempty"`
	ResolutionDocuments   datatypes.JSONSlice[string] `json:"resolution_documents,omitempty"`
	ResolutionTimeMinutes *int                        `json:"resolution_time_minutes,omitempty"`
	ApprovedByTelegramID  string                      `gorm:"type:varchar(50)" json:"approved_by_telegram_id,omitempty"`

	KR        KRFields        `gorm:"embedded;embeddedPrefix:kr_" json:"kr"`
	Defect    DefectFields    `gorm:"embedded;embeddedPrefix:scrap_" json:"defect"`
	Political PoliticalFields `gorm:"embedded;embeddedPrefix:political_" json:"political"`

	LocationInProduct string                      `gorm:"type:varchar(255)" json:"location_in_product,omitempty"`
	PhotoURLs         datatypes.JSONSlice[string] `json:"photo_urls,omitempty"`

	DetectedAt  time.Time  `gorm:"autoCreateTime;index" json:"detected_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	History []DiscrepancyHistory `gorm:"foreignKey:DiscrepancyID;constraint:OnDelete:CASCADE" json:"history,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
