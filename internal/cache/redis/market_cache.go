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

// MarketCache implements domain.MarketCache with JSON-serialized market
// snapshots and a set index that makes the scan loop's List cheap.
//
// Key schema:
//
//	market:{platform}:{id} - hash with field "data" containing JSON
//	markets:index          - set of "{platform}:{id}" members
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

const marketIndexKey = "markets:index"

func marketKey(p domain.Platform, id string) string {
	return fmt.Sprintf("market:%s:%s", p, id)
}

// Set stores a market snapshot with the given TTL and records it in the
// index. Index members are not expired individually; List prunes members
// whose snapshot has lapsed.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market, ttl time.Duration) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}

	key := marketKey(market.Platform, market.ID)
	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, ttl)
	pipe.SAdd(ctx, marketIndexKey, fmt.Sprintf("%s:%s", market.Platform, market.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Get retrieves one market snapshot. It returns domain.ErrNotFound when the
// snapshot is absent or expired.
func (mc *MarketCache) Get(ctx context.Context, p domain.Platform, id string) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(p, id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return market, nil
}

// List returns every live market snapshot, pruning index members whose
// snapshot has expired.
func (mc *MarketCache) List(ctx context.Context) ([]domain.Market, error) {
	members, err := mc.rdb.SMembers(ctx, marketIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list markets: %w", err)
	}

	var (
		out   []domain.Market
		stale []interface{}
	)
	for _, member := range members {
		data, err := mc.rdb.HGet(ctx, "market:"+member, "data").Bytes()
		if errors.Is(err, redis.Nil) {
			stale = append(stale, member)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis: list markets: %w", err)
		}
		var market domain.Market
		if err := json.Unmarshal(data, &market); err != nil {
			stale = append(stale, member)
			continue
		}
		out = append(out, market)
	}

	if len(stale) > 0 {
		_ = mc.rdb.SRem(ctx, marketIndexKey, stale...).Err()
	}
	return out, nil
}

// Invalidate removes a market snapshot and its index entry.
func (mc *MarketCache) Invalidate(ctx context.Context, p domain.Platform, id string) error {
	pipe := mc.rdb.TxPipeline()
	pipe.Del(ctx, marketKey(p, id))
	pipe.SRem(ctx, marketIndexKey, fmt.Sprintf("%s:%s", p, id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
