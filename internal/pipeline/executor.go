package pipeline

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// OrderPlacer submits one slice of a leg to a venue. Implementations wrap
// the venue's trading API; tests use an in-memory fake.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, leg domain.DecisionLeg, slice domain.OrderSlice, limitPrice float64) (domain.FillResult, error)
}

// Executor walks a decision's split schedules, one goroutine per leg, placing
// each slice after its delay at a price refreshed from the live book.
type Executor struct {
	placer OrderPlacer
	books  domain.OrderbookCache
	logger *slog.Logger
}

// NewExecutor creates an Executor. books may be nil; slices then price off
// the leg's quoted price.
func NewExecutor(placer OrderPlacer, books domain.OrderbookCache, logger *slog.Logger) *Executor {
	return &Executor{
		placer: placer,
		books:  books,
		logger: logger.With(slog.String("component", "executor")),
	}
}

// legResult accumulates one leg's execution.
type legResult struct {
	filled float64 // contracts filled
	cost   float64 // notional actually paid
	placed int
	err    error
}

// Execute runs both legs concurrently and reports the combined outcome. The
// returned realized PnL prorates the expected profit by the filled fraction
// and charges any cost overrun versus the quoted prices.
func (e *Executor) Execute(ctx context.Context, dec domain.TradeDecision) (domain.ExecutionReport, float64) {
	var wg sync.WaitGroup
	results := make([]legResult, len(dec.Legs))
	for i, leg := range dec.Legs {
		wg.Add(1)
		go func(i int, leg domain.DecisionLeg) {
			defer wg.Done()
			results[i] = e.runLeg(ctx, leg)
		}(i, leg)
	}
	wg.Wait()

	// An arbitrage entry is only as filled as its thinner leg.
	filled := math.Inf(1)
	placed, total := 0, 0
	var overrun float64
	var abandonReason string
	for i, res := range results {
		filled = math.Min(filled, res.filled)
		placed += res.placed
		total += len(dec.Legs[i].Slices)
		overrun += res.cost - dec.Legs[i].Price*res.filled
		if res.err != nil && abandonReason == "" {
			abandonReason = res.err.Error()
		}
	}
	if math.IsInf(filled, 1) {
		filled = 0
	}

	status := domain.DecisionFilled
	switch {
	case ctx.Err() != nil:
		status = domain.DecisionCancelled
	case filled <= 0:
		status = domain.DecisionFailed
	case filled < dec.Size:
		status = domain.DecisionPartial
	}

	fillRatio := 0.0
	if dec.Size > 0 {
		fillRatio = filled / dec.Size
	}
	realized := dec.ExpectedProfit*fillRatio - overrun

	rep := domain.ExecutionReport{
		DecisionID:    dec.ID,
		Status:        status,
		RequestedSize: dec.Size,
		FilledSize:    filled,
		SlicesPlaced:  placed,
		SlicesTotal:   total,
		AbandonReason: abandonReason,
	}

	e.logger.Info("execution finished",
		slog.String("decision_id", dec.ID),
		slog.String("status", string(status)),
		slog.Float64("filled", filled),
		slog.Float64("requested", dec.Size),
		slog.Float64("realized_pnl", realized),
	)
	return rep, realized
}

// runLeg places one leg's slices in order, honoring each slice's delay and
// stopping at the first failure or cancellation.
func (e *Executor) runLeg(ctx context.Context, leg domain.DecisionLeg) legResult {
	var res legResult
	for _, slice := range leg.Slices {
		if slice.Delay > 0 {
			timer := time.NewTimer(slice.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				res.err = ctx.Err()
				return res
			case <-timer.C:
			}
		}

		limit := e.limitPrice(ctx, leg, slice)
		fill, err := e.placer.PlaceOrder(ctx, leg, slice, limit)
		if err != nil {
			res.err = err
			e.logger.Warn("slice placement failed",
				slog.String("platform", string(leg.Platform)),
				slog.String("market_id", leg.MarketID),
				slog.Float64("slice_size", slice.Size),
				slog.String("error", err.Error()),
			)
			return res
		}
		res.placed++
		res.filled += fill.FilledSize
		res.cost += fill.FilledSize * fill.AvgPrice
	}
	return res
}

// limitPrice refreshes the leg's price from the live book and applies the
// slice's concession. Without a book the decision's quoted price stands.
func (e *Executor) limitPrice(ctx context.Context, leg domain.DecisionLeg, slice domain.OrderSlice) float64 {
	price := leg.Price
	if e.books != nil {
		if _, ask, err := e.books.GetBBO(ctx, leg.Platform, leg.MarketID, leg.Outcome); err == nil && ask > 0 {
			price = ask
		}
	}
	return price + slice.PriceOffset
}
