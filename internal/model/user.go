package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role constants. The shop-floor hierarchy: workers produce, masters own
// discrepancy resolution, OTK inspectors accept or reject.
const (
	RoleWorker          = "worker"
	RoleMaster          = "master"
	RoleOTKInspector    = "otk_inspector"
	RoleAdmin           = "admin"
	RoleSuperAdmin      = "super_admin"
	RoleQualityDirector = "quality_director"
)

// ValidRole reports whether role is one of the known role constants.
func ValidRole(role string) bool {
	switch role {
	case RoleWorker, RoleMaster, RoleOTKInspector, RoleAdmin, RoleSuperAdmin, RoleQualityDirector:
		return true
	}
	return false
}

// ElevatedRole reports whether role may act on entities it does not own
// (reassign discrepancies, force status changes, hard-delete applications).
func ElevatedRole(role string) bool {
	switch role {
	case RoleOTKInspector, RoleAdmin, RoleSuperAdmin, RoleQualityDirector:
		return true
	}
	return false
}

// User represents a shop-floor account. Identity towards the messaging
// channel is the Telegram ID; it is also what the lifecycle engines record
// as the acting party.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TelegramID   string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"telegram_id"`
	Username     string         `gorm:"type:varchar(255)" json:"username"`
	FirstName    string         `gorm:"type:varchar(255)" json:"first_name"`
	LastName     string         `gorm:"type:varchar(255)" json:"last_name"`
	PinCode      string         `gorm:"type:varchar(4)" json:"-"`
	PasswordHash string         `gorm:"type:varchar(255)" json:"-"`
	Role         string         `gorm:"type:varchar(30);not null;default:'worker';index" json:"role"`
	IsActive     bool           `gorm:"not null;default:true;index" json:"is_active"`
	CreatedByID  *uuid.UUID     `gorm:"type:uuid" json:"created_by_id,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
