package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// pair is one unit of evaluation work.
type pair struct {
	a, b domain.Market
}

// Runner drives the pipeline: a periodic full scan over all cached markets,
// plus targeted re-evaluation when the feed reports a market change.
type Runner struct {
	pipeline *Pipeline
	executor *Executor // nil when execution is disabled
	archiver *Archiver // nil when archival is disabled
	triggers chan trigger
	logger   *slog.Logger
}

type trigger struct {
	platform domain.Platform
	marketID string
}

// NewRunner creates a Runner. executor and archiver are optional.
func NewRunner(p *Pipeline, executor *Executor, archiver *Archiver, logger *slog.Logger) *Runner {
	return &Runner{
		pipeline: p,
		executor: executor,
		archiver: archiver,
		triggers: make(chan trigger, 256),
		logger:   logger.With(slog.String("component", "runner")),
	}
}

// Trigger requests re-evaluation of all pairs involving the given market.
// It never blocks; under backpressure the next full scan catches up.
func (r *Runner) Trigger(_ context.Context, platform domain.Platform, marketID string) {
	select {
	case r.triggers <- trigger{platform: platform, marketID: marketID}:
	default:
	}
}

// Run starts the scan loop, the trigger consumer, and the archiver as
// concurrent goroutines. It returns when ctx is cancelled or a goroutine
// fails with a non-context error.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner starting",
		slog.Duration("scan_interval", r.pipeline.cfg.ScanInterval),
		slog.Int("workers", r.pipeline.cfg.Workers),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.scanLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("scan loop: %w", err)
	})

	g.Go(func() error {
		err := r.triggerLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("trigger loop: %w", err)
	})

	if r.archiver != nil {
		g.Go(func() error {
			err := r.archiver.Run(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		r.logger.Error("runner stopped with error", slog.String("error", err.Error()))
		return err
	}
	r.logger.Info("runner stopped cleanly")
	return nil
}

// scanLoop scans all cached markets on a ticker. The first scan runs
// immediately on start.
func (r *Runner) scanLoop(ctx context.Context) error {
	if err := r.scan(ctx); err != nil {
		r.logger.Error("scan failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(r.pipeline.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.scan(ctx); err != nil {
				r.logger.Error("scan failed", slog.String("error", err.Error()))
			}
		}
	}
}

// scan pairs every cross-platform combination of cached markets and fans the
// pairs out to the worker pool.
func (r *Runner) scan(ctx context.Context) error {
	markets, err := r.pipeline.markets.List(ctx)
	if err != nil {
		return fmt.Errorf("list markets: %w", err)
	}
	if len(markets) < 2 {
		return nil
	}

	started := time.Now()
	var pairs []pair
	for i := 0; i < len(markets); i++ {
		for j := i + 1; j < len(markets); j++ {
			if markets[i].Platform == markets[j].Platform {
				continue
			}
			pairs = append(pairs, pair{a: markets[i], b: markets[j]})
		}
	}

	emitted, err := r.evaluate(ctx, pairs)
	if err != nil {
		return err
	}

	r.logger.Info("scan complete",
		slog.Int("markets", len(markets)),
		slog.Int("pairs", len(pairs)),
		slog.Int("emitted", emitted),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// triggerLoop re-evaluates pairs involving a changed market as events arrive.
func (r *Runner) triggerLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-r.triggers:
			if err := r.scanOne(ctx, t); err != nil {
				r.logger.Error("trigger evaluation failed",
					slog.String("market_id", t.marketID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (r *Runner) scanOne(ctx context.Context, t trigger) error {
	touched, err := r.pipeline.markets.Get(ctx, t.platform, t.marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get market: %w", err)
	}
	markets, err := r.pipeline.markets.List(ctx)
	if err != nil {
		return fmt.Errorf("list markets: %w", err)
	}

	var pairs []pair
	for _, m := range markets {
		if m.Platform == touched.Platform {
			continue
		}
		pairs = append(pairs, pair{a: touched, b: m})
	}
	_, err = r.evaluate(ctx, pairs)
	return err
}

// evaluate fans pairs out to the worker pool, holding the distributed
// per-pair lock around each evaluation so replicas do not double-emit.
func (r *Runner) evaluate(ctx context.Context, pairs []pair) (int, error) {
	if len(pairs) == 0 {
		return 0, nil
	}

	work := make(chan pair)
	results := make(chan domain.TradeDecision, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.pipeline.cfg.Workers; w++ {
		g.Go(func() error {
			for pr := range work {
				dec, ok, err := r.evaluateOne(gctx, pr)
				if err != nil {
					r.logger.Debug("pair evaluation failed",
						slog.String("market_a", pr.a.ID),
						slog.String("market_b", pr.b.ID),
						slog.String("error", err.Error()),
					)
					continue
				}
				if ok {
					results <- dec
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(work)
		for _, pr := range pairs {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case work <- pr:
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return 0, err
	}
	close(results)

	emitted := 0
	for dec := range results {
		emitted++
		if r.executor != nil {
			r.execute(ctx, dec)
		}
	}
	return emitted, nil
}

// evaluateOne wraps one pair evaluation in the distributed lock. A held lock
// means another replica is already on this pair.
func (r *Runner) evaluateOne(ctx context.Context, pr pair) (domain.TradeDecision, bool, error) {
	if r.pipeline.locks != nil {
		unlock, err := r.pipeline.locks.Acquire(ctx, pairKey(pr.a, pr.b), r.pipeline.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return domain.TradeDecision{}, false, nil
			}
			return domain.TradeDecision{}, false, err
		}
		defer unlock()
	}

	dec, reason, err := r.pipeline.EvaluatePair(ctx, pr.a, pr.b)
	if err != nil {
		if errors.Is(err, domain.ErrSamePlatform) {
			return domain.TradeDecision{}, false, nil
		}
		return domain.TradeDecision{}, false, err
	}
	if reason != "" {
		return domain.TradeDecision{}, false, nil
	}
	return dec, true, nil
}

// execute runs the decision's split schedule and settles the outcome.
func (r *Runner) execute(ctx context.Context, dec domain.TradeDecision) {
	rep, realized := r.executor.Execute(ctx, dec)
	r.pipeline.OnExecutionResult(ctx, dec, rep, realized)
}
