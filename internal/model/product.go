package model

import "time"

// Product type enum constants
const (
	ProductTypeSemiFinished    = "semi_finished"
	ProductTypeAssembly        = "assembly"
	ProductTypeFinishedProduct = "finished_product"
	ProductTypeDetail          = "detail"
)

// Product unit enum constants
const (
	ProductUnitPcs = "pcs"
	ProductUnitSet = "set"
)

// Product is a manufactured item type (nomenclature entry). The default OTK
// inspector, when present, is auto-assigned to new applications for this
// product unless the creator supplies one explicitly.
type Product struct {
	ID                            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                          string    `gorm:"type:varchar(255);not null;index" json:"name"`
	DrawingNumber                 string    `gorm:"type:varchar(100);index" json:"drawing_number,omitempty"`
	LotID                         *uint64   `gorm:"index" json:"lot_id,omitempty"`
	Lot                           *Lot      `gorm:"foreignKey:LotID;constraint:OnDelete:SET NULL" json:"lot,omitempty"`
	DefaultOTKInspectorTelegramID string    `gorm:"type:varchar(50);index" json:"default_otk_inspector_telegram_id,omitempty"`
	Type                          string    `gorm:"type:varchar(30);not null;default:'finished_product';index" json:"type"`
	Unit                          string    `gorm:"type:varchar(10);not null;default:'pcs'" json:"unit"`
	InspectionTimeMinutes         int       `gorm:"not null;default:30" json:"inspection_time_minutes"`
	ChecklistText                 string    `gorm:"type:text" json:"checklist_text,omitempty"`
	IsActive                      bool      `gorm:"not null;default:true;index" json:"is_active"`
	Bitrix24ID                    *int64    `gorm:"uniqueIndex" json:"bitrix24_id,omitempty"`
	CreatedAt                     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ValidProductType reports whether t is a known product type.
func ValidProductType(t string) bool {
	switch t {
	case ProductTypeSemiFinished, ProductTypeAssembly, ProductTypeFinishedProduct, ProductTypeDetail:
		return true
	}
	return false
}
