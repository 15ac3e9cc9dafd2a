package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// bookTTL bounds how long a snapshot may serve estimates after its feed goes
// quiet.
const bookTTL = 2 * time.Minute

// OrderbookCache implements domain.OrderbookCache. Connectors deliver whole
// normalized snapshots, so each book is stored as one JSON value that is
// replaced atomically on update; there is no incremental level maintenance.
//
// Key schema:
//
//	book:{platform}:{marketID}:{outcome} - JSON OrderbookSnapshot
type OrderbookCache struct {
	rdb *redis.Client
}

// NewOrderbookCache creates an OrderbookCache backed by the given Client.
func NewOrderbookCache(c *Client) *OrderbookCache {
	return &OrderbookCache{rdb: c.Underlying()}
}

func bookKey(p domain.Platform, marketID string, outcome domain.Outcome) string {
	return fmt.Sprintf("book:%s:%s:%s", p, marketID, outcome)
}

// SetSnapshot replaces the stored book for the snapshot's market leg.
func (oc *OrderbookCache) SetSnapshot(ctx context.Context, snap domain.OrderbookSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal book %s: %w", snap.MarketID, err)
	}
	key := bookKey(snap.Platform, snap.MarketID, snap.Outcome)
	if err := oc.rdb.Set(ctx, key, data, bookTTL).Err(); err != nil {
		return fmt.Errorf("redis: set book %s: %w", snap.MarketID, err)
	}
	return nil
}

// GetSnapshot retrieves the stored book for one market leg. It returns
// domain.ErrNotFound when no live snapshot exists.
func (oc *OrderbookCache) GetSnapshot(ctx context.Context, p domain.Platform, marketID string, outcome domain.Outcome) (domain.OrderbookSnapshot, error) {
	data, err := oc.rdb.Get(ctx, bookKey(p, marketID, outcome)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderbookSnapshot{}, domain.ErrNotFound
		}
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: get book %s: %w", marketID, err)
	}

	var snap domain.OrderbookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: unmarshal book %s: %w", marketID, err)
	}
	return snap, nil
}

// GetBBO returns the best bid and ask of the stored book.
func (oc *OrderbookCache) GetBBO(ctx context.Context, p domain.Platform, marketID string, outcome domain.Outcome) (float64, float64, error) {
	snap, err := oc.GetSnapshot(ctx, p, marketID, outcome)
	if err != nil {
		return 0, 0, err
	}
	return snap.BestBid(), snap.BestAsk(), nil
}

// Compile-time interface check.
var _ domain.OrderbookCache = (*OrderbookCache)(nil)
