package feed

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubBus struct {
	ch chan []byte
}

func (b *stubBus) Publish(context.Context, string, []byte) error { return nil }
func (b *stubBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}
func (b *stubBus) StreamAppend(context.Context, string, []byte) error { return nil }
func (b *stubBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type stubMarkets struct {
	mu      sync.Mutex
	markets map[string]domain.Market
}

func newStubMarkets() *stubMarkets {
	return &stubMarkets{markets: make(map[string]domain.Market)}
}

func (c *stubMarkets) Set(_ context.Context, m domain.Market, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets[string(m.Platform)+"/"+m.ID] = m
	return nil
}

func (c *stubMarkets) Get(_ context.Context, platform domain.Platform, id string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.markets[string(platform)+"/"+id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *stubMarkets) List(context.Context) ([]domain.Market, error) { return nil, nil }
func (c *stubMarkets) Invalidate(context.Context, domain.Platform, string) error {
	return nil
}

type stubBooks struct {
	mu    sync.Mutex
	snaps map[string]domain.OrderbookSnapshot
}

func newStubBooks() *stubBooks {
	return &stubBooks{snaps: make(map[string]domain.OrderbookSnapshot)}
}

func (c *stubBooks) SetSnapshot(_ context.Context, snap domain.OrderbookSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[string(snap.Platform)+"/"+snap.MarketID+"/"+string(snap.Outcome)] = snap
	return nil
}

func (c *stubBooks) GetSnapshot(_ context.Context, platform domain.Platform, marketID string, outcome domain.Outcome) (domain.OrderbookSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[string(platform)+"/"+marketID+"/"+string(outcome)]
	if !ok {
		return domain.OrderbookSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (c *stubBooks) GetBBO(context.Context, domain.Platform, string, domain.Outcome) (float64, float64, error) {
	return 0, 0, nil
}

// startFeeder runs the feeder with a trigger that signals fired for each
// processed event.
func startFeeder(t *testing.T, bus *stubBus, markets *stubMarkets, books *stubBooks) (fired chan struct{}, stop func()) {
	t.Helper()
	fired = make(chan struct{}, 16)
	trigger := func(context.Context, domain.Platform, string) {
		fired <- struct{}{}
	}
	f := NewFeeder(bus, markets, books, trigger, time.Minute, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.Run(ctx)
	}()
	return fired, func() {
		cancel()
		<-done
	}
}

func waitFired(t *testing.T, fired chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger not fired")
	}
}

func TestFeederMarketUpdate(t *testing.T) {
	bus := &stubBus{ch: make(chan []byte, 4)}
	markets, books := newStubMarkets(), newStubBooks()
	fired, stop := startFeeder(t, bus, markets, books)
	defer stop()

	bus.ch <- []byte(`{
		"event": "market_update",
		"platform": "polymarket",
		"market_id": "pm-1",
		"question": "Will Bitcoin reach $100k by end of 2026?",
		"resolution_source": "Coinbase",
		"expires_at": "2026-12-31T23:00:00Z",
		"yes_price": 0.45,
		"no_price": 0.58,
		"liquidity": 100000
	}`)
	waitFired(t, fired)

	m, err := markets.Get(context.Background(), domain.PlatformPolymarket, "pm-1")
	if err != nil {
		t.Fatalf("market not cached: %v", err)
	}
	if m.YesPrice != 0.45 || m.Liquidity != 100000 {
		t.Errorf("cached market = %+v", m)
	}
	if m.ExpiresAt.IsZero() {
		t.Error("expiry not parsed")
	}
}

func TestFeederBookUpdate(t *testing.T) {
	bus := &stubBus{ch: make(chan []byte, 4)}
	markets, books := newStubMarkets(), newStubBooks()
	fired, stop := startFeeder(t, bus, markets, books)
	defer stop()

	bus.ch <- []byte(`{
		"event": "book_update",
		"platform": "kalshi",
		"market_id": "kx-1",
		"outcome": "no",
		"bids": [{"price": 0.47, "size": 5000}],
		"asks": [{"price": 0.48, "size": 5000}, {"price": 0.49, "size": 2000}]
	}`)
	waitFired(t, fired)

	snap, err := books.GetSnapshot(context.Background(), domain.PlatformKalshi, "kx-1", domain.OutcomeNo)
	if err != nil {
		t.Fatalf("snapshot not cached: %v", err)
	}
	if snap.BestAsk() != 0.48 || snap.BestBid() != 0.47 {
		t.Errorf("BBO = %g/%g, want 0.47/0.48", snap.BestBid(), snap.BestAsk())
	}
	if len(snap.Asks) != 2 {
		t.Errorf("asks = %d levels, want 2", len(snap.Asks))
	}
}

func TestFeederDropsBadEvents(t *testing.T) {
	bus := &stubBus{ch: make(chan []byte, 4)}
	markets, books := newStubMarkets(), newStubBooks()
	fired, stop := startFeeder(t, bus, markets, books)
	defer stop()

	bus.ch <- []byte(`{not json`)
	bus.ch <- []byte(`{"event": "market_update", "platform": "nyse", "market_id": "x"}`)
	bus.ch <- []byte(`{"event": "market_update", "platform": "polymarket", "market_id": "pm-ok", "question": "q"}`)
	waitFired(t, fired)

	select {
	case <-fired:
		t.Error("trigger fired for a dropped event")
	default:
	}
	if _, err := markets.Get(context.Background(), domain.PlatformPolymarket, "pm-ok"); err != nil {
		t.Errorf("valid event after bad ones not processed: %v", err)
	}
}
