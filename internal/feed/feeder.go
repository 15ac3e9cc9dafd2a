// Package feed consumes market and orderbook events from the signal bus and
// keeps the Redis caches current, triggering pipeline re-evaluation for each
// touched market.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// Channel is the pub/sub channel external collectors publish to.
const Channel = "markets"

// marketEvent is the JSON shape published to the markets channel by platform
// collectors. A market_update carries the market fields; a book_update
// carries one side of depth.
type marketEvent struct {
	Event            string  `json:"event"` // "market_update" or "book_update"
	Platform         string  `json:"platform"`
	MarketID         string  `json:"market_id"`
	Question         string  `json:"question,omitempty"`
	Category         string  `json:"category,omitempty"`
	ResolutionSource string  `json:"resolution_source,omitempty"`
	ExpiresAt        string  `json:"expires_at,omitempty"`
	Timezone         string  `json:"timezone,omitempty"`
	YesPrice         float64 `json:"yes_price,omitempty"`
	NoPrice          float64 `json:"no_price,omitempty"`
	Liquidity        float64 `json:"liquidity,omitempty"`
	Volume24h        float64 `json:"volume_24h,omitempty"`

	Outcome string       `json:"outcome,omitempty"`
	Bids    []levelEvent `json:"bids,omitempty"`
	Asks    []levelEvent `json:"asks,omitempty"`

	Timestamp string `json:"timestamp,omitempty"`
}

type levelEvent struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Trigger is invoked after a cache write so the pipeline can re-evaluate
// pairs involving the touched market.
type Trigger func(ctx context.Context, platform domain.Platform, marketID string)

// Feeder subscribes to the markets channel and writes each event into the
// market and orderbook caches.
type Feeder struct {
	bus       domain.SignalBus
	markets   domain.MarketCache
	books     domain.OrderbookCache
	trigger   Trigger
	marketTTL time.Duration
	logger    *slog.Logger
}

// NewFeeder creates a Feeder. trigger may be nil when running in monitor
// mode, where events refresh caches without driving evaluation.
func NewFeeder(bus domain.SignalBus, markets domain.MarketCache, books domain.OrderbookCache, trigger Trigger, marketTTL time.Duration, logger *slog.Logger) *Feeder {
	return &Feeder{
		bus:       bus,
		markets:   markets,
		books:     books,
		trigger:   trigger,
		marketTTL: marketTTL,
		logger:    logger.With(slog.String("component", "feeder")),
	}
}

// Run subscribes and processes events until ctx is cancelled.
func (f *Feeder) Run(ctx context.Context) error {
	ch, err := f.bus.Subscribe(ctx, Channel)
	if err != nil {
		return err
	}
	f.logger.Info("feeder started", slog.String("channel", Channel))
	defer f.logger.Info("feeder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			if err := f.handleMessage(ctx, data); err != nil {
				f.logger.Debug("feeder message dropped",
					slog.String("error", err.Error()),
					slog.Int("payload_len", len(data)),
				)
			}
		}
	}
}

func (f *Feeder) handleMessage(ctx context.Context, data []byte) error {
	var ev marketEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	platform, err := domain.ParsePlatform(strings.TrimSpace(ev.Platform))
	if err != nil {
		return err
	}
	if strings.TrimSpace(ev.MarketID) == "" {
		return nil
	}

	ts := time.Now()
	if ev.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, ev.Timestamp); err == nil {
			ts = t
		}
	}

	switch ev.Event {
	case "book_update":
		outcome, err := domain.ParseOutcome(ev.Outcome)
		if err != nil {
			return err
		}
		snap := domain.OrderbookSnapshot{
			Platform:  platform,
			MarketID:  ev.MarketID,
			Outcome:   outcome,
			Bids:      levels(ev.Bids),
			Asks:      levels(ev.Asks),
			Timestamp: ts,
		}
		if err := f.books.SetSnapshot(ctx, snap); err != nil {
			return err
		}
	case "market_update":
		market := domain.Market{
			Platform:         platform,
			ID:               ev.MarketID,
			Question:         ev.Question,
			Category:         ev.Category,
			ResolutionSource: ev.ResolutionSource,
			Timezone:         ev.Timezone,
			YesPrice:         ev.YesPrice,
			NoPrice:          ev.NoPrice,
			Liquidity:        ev.Liquidity,
			Volume24h:        ev.Volume24h,
			UpdatedAt:        ts,
		}
		if ev.ExpiresAt != "" {
			if t, err := time.Parse(time.RFC3339, ev.ExpiresAt); err == nil {
				market.ExpiresAt = t
			}
		}
		if err := f.markets.Set(ctx, market, f.marketTTL); err != nil {
			return err
		}
	default:
		return nil
	}

	if f.trigger != nil {
		f.trigger(ctx, platform, ev.MarketID)
	}
	return nil
}

func levels(in []levelEvent) []domain.PriceLevel {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.PriceLevel, len(in))
	for i, l := range in {
		out[i] = domain.PriceLevel{Price: l.Price, Size: l.Size}
	}
	return out
}
