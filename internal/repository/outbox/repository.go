package outbox

import (
	"context"
	"time"

	"shoporders/internal/domain"
)

// Record is one persisted notification intent awaiting dispatch.
type Record struct {
	ID        int64
	EventID   string
	EventType string
	UserID    string
	Payload   []byte
	CreatedAt time.Time
	SentAt    *time.Time
}

// Intent is a notification to be recorded in the same transaction as the
// order mutation that caused it.
type Intent struct {
	EventType    string
	Notification domain.Notification
}

// Repository feeds the dispatcher.
type Repository interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}
