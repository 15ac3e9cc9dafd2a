package pipeline

import (
	"context"
	"log/slog"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// PaperPlacer simulates order placement by matching slices against cached
// book depth. It lets the full pipeline run end to end without touching a
// venue.
type PaperPlacer struct {
	books  domain.OrderbookCache
	logger *slog.Logger
}

// NewPaperPlacer creates a PaperPlacer.
func NewPaperPlacer(books domain.OrderbookCache, logger *slog.Logger) *PaperPlacer {
	return &PaperPlacer{
		books:  books,
		logger: logger.With(slog.String("component", "paper_placer")),
	}
}

// PlaceOrder fills the slice against asks at or under the limit price. With
// no cached book the slice fills completely at the limit, mirroring a quiet
// market.
func (p *PaperPlacer) PlaceOrder(ctx context.Context, leg domain.DecisionLeg, slice domain.OrderSlice, limit float64) (domain.FillResult, error) {
	snap, err := p.books.GetSnapshot(ctx, leg.Platform, leg.MarketID, leg.Outcome)
	if err != nil || len(snap.Asks) == 0 {
		return domain.FillResult{FilledSize: slice.Size, AvgPrice: limit}, nil
	}

	remaining := slice.Size
	var filled, cost float64
	for _, lv := range snap.Asks {
		if lv.Price > limit || remaining <= 0 {
			break
		}
		take := remaining
		if lv.Size < take {
			take = lv.Size
		}
		filled += take
		cost += take * lv.Price
		remaining -= take
	}
	if filled == 0 {
		p.logger.Debug("paper order missed",
			slog.String("market_id", leg.MarketID),
			slog.Float64("limit", limit),
			slog.Float64("best_ask", snap.BestAsk()),
		)
		return domain.FillResult{}, nil
	}

	return domain.FillResult{FilledSize: filled, AvgPrice: cost / filled}, nil
}

var _ OrderPlacer = (*PaperPlacer)(nil)
