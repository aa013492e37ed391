package model

import (
	"time"

	"github.com/google/uuid"
)

// Sync task statuses. pending → processing → success | retry | failed;
// retry tasks are re-selected once next_retry_at elapses; failed is terminal
// until an operator resets the task to pending.
const (
	SyncTaskStatusPending    = "pending"
	SyncTaskStatusProcessing = "processing"
	SyncTaskStatusSuccess    = "success"
	SyncTaskStatusFailed     = "failed"
	SyncTaskStatusRetry      = "retry"
)

// Sync operations
const (
	SyncOpCreate       = "create"
	SyncOpUpdate       = "update"
	SyncOpDelete       = "delete"
	SyncOpUpdateStatus = "sync_status"
)

// Sync target systems
const (
	SyncTargetBitrix24 = "bitrix24"
	SyncTargetTelegram = "telegram"
)

// Entity types referenced by sync tasks
const (
	SyncEntityApplication = "application"
	SyncEntityDiscrepancy = "discrepancy"
	SyncEntityLot         = "lot"
	SyncEntityProduct     = "product"
	SyncEntityUser        = "user"
)

// SyncTask is one unit of the outbound delivery queue. It weakly references
// its subject entity by type+id; the serialized payload is what gets sent.
// DedupeKey is attached to create operations and stored remotely, so a
// replayed create after a crash can find the already-created remote record
// instead of duplicating it.
type SyncTask struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityType   string     `gorm:"type:varchar(20);not null;index:idx_sync_entity" json:"entity_type"`
	EntityID     uint64     `gorm:"not null;index:idx_sync_entity" json:"entity_id"`
	Operation    string     `gorm:"type:varchar(20);not null" json:"operation"`
	TargetSystem string     `gorm:"type:varchar(20);not null;default:'bitrix24';index" json:"target_system"`
	Endpoint     string     `gorm:"type:varchar(500)" json:"endpoint,omitempty"`
	Payload      string     `gorm:"type:jsonb" json:"payload,omitempty"`
	Response     string     `gorm:"type:jsonb" json:"response,omitempty"`
	DedupeKey    *uuid.UUID `gorm:"type:uuid;index" json:"dedupe_key,omitempty"`
	Status       string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RetryCount   int        `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries   int        `gorm:"not null;default:3" json:"max_retries"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	NextRetryAt  *time.Time `gorm:"index" json:"next_retry_at,omitempty"`
}
