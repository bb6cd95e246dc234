package store

import (
	"context"
	"database/sql"
)

// Store defines the interface for local persistence
type Store interface {
	// Settings double as durable key/value storage for the submission cache
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error

	// Event operations
	RecordEvent(ctx context.Context, e *Event) error
	CountEvents(ctx context.Context) ([]EventCount, error)

	// Subscription log
	RecordSubscription(ctx context.Context, sub *Subscription) error
	CountSubscriptions(ctx context.Context, outcome SubscriptionOutcome) (int, error)

	// Health
	DB() *sql.DB
	Path() string

	// Lifecycle
	Close() error
}
