package model

import "time"

// Lot is a production area (workshop zone or line). Lot priority and
// distance to the OTK office drive the ordering of the inspectors' work
// queue.
type Lot struct {
	ID                      uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                    string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Description             string    `gorm:"type:text" json:"description,omitempty"`
	ManagerTelegramID       string    `gorm:"type:varchar(50);not null;index" json:"manager_telegram_id"`
	DeputyManagerTelegramID string    `gorm:"type:varchar(50);index" json:"deputy_manager_telegram_id,omitempty"`
	PriorityLevel           int       `gorm:"not null;default:3;index" json:"priority_level"` // 1 highest, 5 lowest
	DistanceToOTKMeters     int       `gorm:"index" json:"distance_to_otk_meters"`
	WorkingHoursStart       string    `gorm:"type:varchar(8);default:'08:00:00'" json:"working_hours_start"`
	WorkingHoursEnd         string    `gorm:"type:varchar(8);default:'20:00:00'" json:"working_hours_end"`
	IsActive                bool      `gorm:"not null;default:true;index" json:"is_active"`
	RequiresUrgentAttention bool      `gorm:"not null;default:false" json:"requires_urgent_attention"`
	Bitrix24ID              *int64    `gorm:"uniqueIndex" json:"bitrix24_id,omitempty"`
	IsSynced                bool      `gorm:"not null;default:false" json:"is_synced"`
	CreatedAt               time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
