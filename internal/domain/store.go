package domain

import (
	"context"
	"time"
)

// StateStore is the durable singleton-record persistence the engine reads at
// startup and writes after every transition. Load returns ErrNotFound when no
// record exists for the key.
type StateStore interface {
	Load(ctx context.Context, key string) (*EngineState, error)
	Save(ctx context.Context, key string, state *EngineState) error
}

// TradeLog is an append-only settled-trade log, kept alongside the state
// record for querying and archival. Entries are never mutated or removed.
type TradeLog interface {
	Append(ctx context.Context, mode Mode, trade SettledTrade) error
	ListRecent(ctx context.Context, mode Mode, limit int) ([]SettledTrade, error)
	ListSince(ctx context.Context, mode Mode, since time.Time) ([]SettledTrade, error)
}

// AuditLog persists an append-only record of engine transitions.
type AuditLog interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}

// SignalSource produces the directional prediction for the current window.
// The learning context is the rendered LearningProfile from prior
// settlements; implementations may return a cached, stale result under rate
// limiting and must not block indefinitely.
type SignalSource interface {
	Predict(ctx context.Context, tick MarketTick, learningContext string) (Prediction, error)
}

// MarketFeed supplies the per-tick market view of the current window.
type MarketFeed interface {
	Tick(ctx context.Context) (MarketTick, error)
}

// OrderAck is the venue's synchronous acknowledgment of a submitted order.
type OrderAck struct {
	OrderID string
	Filled  float64
}

// OrderVenue is the external order-submission collaborator used by the real
// variant. SubmitBuy blocks until the venue acknowledges or fails; CancelAll
// is best-effort.
type OrderVenue interface {
	SubmitBuy(ctx context.Context, side Side, price, size float64) (OrderAck, error)
	CancelAll(ctx context.Context) error
}

// EventBus publishes engine events (projections, settlements, halts) to
// interested transports.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter limits how often an operation keyed by a string may run.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed mutual exclusion. The tick loop holds a
// lock per engine variant so only one process owns the engine at a time.
// Acquire returns ErrLockHeld when another holder has the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
