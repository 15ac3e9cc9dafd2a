package domain

import "time"

// OrderSide distinguishes the taker direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType distinguishes marketable from resting orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// PriceLevel is one rung of an orderbook ladder.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is the full depth of one market's book at a point in
// time. Bids are sorted best (highest) first, asks best (lowest) first.
type OrderbookSnapshot struct {
	Platform  Platform
	MarketID  string
	Outcome   Outcome
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestBid returns the highest bid, or 0 if the side is empty.
func (s OrderbookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns the lowest ask, or 0 if the side is empty.
func (s OrderbookSnapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// Mid returns the midpoint of the BBO, or 0 if either side is empty.
func (s OrderbookSnapshot) Mid() float64 {
	bid, ask := s.BestBid(), s.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// DepthUSD returns the notional resting within pct percent of the best
// price on the given side.
func (s OrderbookSnapshot) DepthUSD(side OrderSide, pct float64) float64 {
	levels := s.Asks
	best := s.BestAsk()
	if side == SideSell {
		levels = s.Bids
		best = s.BestBid()
	}
	if best == 0 {
		return 0
	}
	band := best * pct / 100
	var total float64
	for _, lv := range levels {
		if diff := lv.Price - best; diff < -band || diff > band {
			break
		}
		total += lv.Price * lv.Size
	}
	return total
}
