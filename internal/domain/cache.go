package domain

import (
	"context"
	"time"
)

// OrderbookCache stores the latest book snapshot per market leg.
type OrderbookCache interface {
	SetSnapshot(ctx context.Context, snap OrderbookSnapshot) error
	GetSnapshot(ctx context.Context, platform Platform, marketID string, outcome Outcome) (OrderbookSnapshot, error)
	GetBBO(ctx context.Context, platform Platform, marketID string, outcome Outcome) (bestBid, bestAsk float64, err error)
}

// MarketCache stores normalized market snapshots keyed by platform and ID.
type MarketCache interface {
	Set(ctx context.Context, market Market, ttl time.Duration) error
	Get(ctx context.Context, platform Platform, id string) (Market, error)
	List(ctx context.Context) ([]Market, error)
	Invalidate(ctx context.Context, platform Platform, id string) error
}

// LockManager provides distributed locking, used to isolate concurrent
// evaluation of the same market pair across replicas.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage is a single entry read back from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub for live triggers and durable streams for
// audit trails.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
