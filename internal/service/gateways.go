package service

import (
	"context"

	"backend/internal/model"
)

// Actor is the authenticated party performing a service call. Capability
// checks in the lifecycle engines run against it.
type Actor struct {
	TelegramID string
	Role       string
}

// Elevated reports whether the actor may act on entities it does not own.
func (a Actor) Elevated() bool {
	return model.ElevatedRole(a.Role)
}

// NotificationGateway is the messaging-channel contract. All calls are
// best-effort: failures are logged and dropped, never surfaced to the
// operation that triggered them.
type NotificationGateway interface {
	SendChannelMessage(ctx context.Context, text string) (string, error)
	UpdateChannelMessage(ctx context.Context, messageID, text string) error
	DeleteChannelMessage(ctx context.Context, messageID string) error
	SendDirectMessage(ctx context.Context, telegramID, text string) error
}

// CRMGateway is the external CRM contract, implemented by the Bitrix24
// client. Calls have real network latency and failure modes; they are only
// made from the sync worker, never inline on the request path.
type CRMGateway interface {
	Enabled() bool
	CreateItem(ctx context.Context, fields map[string]interface{}, dedupeKey string) (int64, error)
	UpdateItem(ctx context.Context, id int64, fields map[string]interface{}) error
	UpdateStage(ctx context.Context, id int64, status model.ApplicationStatus) error
	DeleteItem(ctx context.Context, id int64) error
	FindByDedupeKey(ctx context.Context, dedupeKey string) (int64, error)
}

// SyncEnqueuer records an outbound delivery task. Implementations must never
// propagate failure to the caller: enqueueing is fire-and-forget from the
// primary operation's point of view.
type SyncEnqueuer interface {
	Enqueue(ctx context.Context, entityType string, entityID uint64, operation string, payload map[string]interface{})
}

// EventBroadcaster pushes lifecycle events to connected dashboards.
type EventBroadcaster interface {
	BroadcastEvent(event, entityType string, entityID uint64, status string)
}
