package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/junheony/prediction-arbitrage/internal/config"
	"github.com/junheony/prediction-arbitrage/internal/domain"
	"github.com/junheony/prediction-arbitrage/internal/feed"
	"github.com/junheony/prediction-arbitrage/internal/fees"
	"github.com/junheony/prediction-arbitrage/internal/matching"
	"github.com/junheony/prediction-arbitrage/internal/pipeline"
	"github.com/junheony/prediction-arbitrage/internal/profit"
	"github.com/junheony/prediction-arbitrage/internal/risk"
	"github.com/junheony/prediction-arbitrage/internal/sizing"
	"github.com/junheony/prediction-arbitrage/internal/slippage"
)

// buildPipeline assembles the decision stages from config and wires them to
// the infrastructure in deps.
func (a *App) buildPipeline(ctx context.Context, deps *Dependencies) (*pipeline.Pipeline, error) {
	cfg := a.cfg

	model, err := fees.NewModel(cfg.Fees, cfg.Profit.GasMultiplier)
	if err != nil {
		return nil, err
	}

	validator := matching.NewValidator(matching.Config{
		MinOverallScore: cfg.Matching.MinOverallScore,
		MinConfidence:   cfg.Matching.MinConfidence,
		MaxRiskFactors:  cfg.Matching.MaxRiskFactors,
	}, sourcesFromConfig(cfg.Matching.ResolutionSources), a.logger)

	calc := profit.NewCalculator(model, cfg.Profit.MinROIPercent, a.logger)

	estimator := slippage.NewEstimator(slippage.Config{
		TolerancePercent:   cfg.Slippage.TolerancePercent,
		ShortfallPercent:   cfg.Slippage.ShortfallPercent,
		MaxSplits:          cfg.Slippage.MaxSplits,
		Strategy:           domain.SplitStrategy(cfg.Slippage.SplitStrategy),
		SliceDelay:         cfg.Slippage.SliceDelay.Duration,
		SliceDepthFraction: cfg.Slippage.SliceDepthFraction,
		SlicePriceOffset:   cfg.Slippage.SlicePriceOffset,
		ExponentialDecay:   cfg.Slippage.ExponentialDecay,
	}, a.logger)

	sizer := sizing.NewSizer(sizing.Config{
		BaseSize:          cfg.Sizing.BaseSize,
		MinSize:           cfg.Sizing.MinSize,
		MaxSize:           cfg.Sizing.MaxSize,
		MinGapPercent:     cfg.Sizing.MinGapPercent,
		OptimalGapPercent: cfg.Sizing.OptimalGapPercent,
		SlippageShrink:    cfg.Sizing.SlippageShrink,
		MaxExposure:       cfg.Sizing.MaxExposure,
	}, estimator, a.logger)

	ledger := risk.NewLedger(cfg.Sizing.MaxExposure)
	ctrl := risk.NewController(risk.Config{
		TotalCapital:             cfg.Risk.TotalCapital,
		MaxDailyLoss:             cfg.Risk.MaxDailyLoss,
		MaxCorrelation:           cfg.Risk.MaxCorrelation,
		VaRConfidence:            cfg.Risk.VaRConfidence,
		VaRTrials:                cfg.Risk.VaRTrials,
		MaxVaRFraction:           cfg.Risk.MaxVaRFraction,
		MaxPlatformConcentration: cfg.Risk.MaxPlatformConcentration,
		MaxVolatility:            cfg.Risk.MaxVolatility,
		MinLiquidityScore:        cfg.Risk.MinLiquidityScore,
	}, ledger, nil, a.logger)

	// Resume today's realized PnL so a restart does not reset the daily
	// loss ceiling.
	if deps.DecisionStore != nil {
		midnight := time.Now().UTC().Truncate(24 * time.Hour)
		if pnl, err := deps.DecisionStore.SumRealizedPnLSince(ctx, midnight); err != nil {
			a.logger.WarnContext(ctx, "could not seed daily pnl",
				slog.String("error", err.Error()),
			)
		} else {
			ctrl.SeedDailyPnL(pnl)
		}
	}

	p := pipeline.New(pipeline.Config{
		ScanInterval: cfg.Pipeline.ScanInterval.Duration,
		Workers:      cfg.Pipeline.Workers,
		MinTradeSize: cfg.Pipeline.MinTradeSize,
		ProbeSize:    cfg.Sizing.BaseSize,
	}, validator, calc, sizer, estimator, ctrl,
		deps.MarketCache, deps.BookCache,
		deps.OpportunityStore, deps.DecisionStore,
		deps.SignalBus, deps.LockManager, deps.Notifier, a.logger)
	return p, nil
}

// sourcesFromConfig converts configured resolution sources into the matching
// package's registry entries.
func sourcesFromConfig(in map[string]config.ResolutionSourceConfig) map[string]matching.SourceInfo {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]matching.SourceInfo, len(in))
	for name, src := range in {
		platforms := make([]domain.Platform, 0, len(src.Platforms))
		for _, p := range src.Platforms {
			platforms = append(platforms, domain.Platform(p))
		}
		out[name] = matching.SourceInfo{
			Reliability: src.Reliability,
			DelayHours:  src.DelayHours,
			Platforms:   platforms,
		}
	}
	return out
}

func (a *App) newArchiver(deps *Dependencies) *pipeline.Archiver {
	if !a.cfg.Pipeline.ArchiveEnabled || deps.BlobWriter == nil || deps.DecisionStore == nil {
		return nil
	}
	return pipeline.NewArchiver(
		deps.DecisionStore,
		deps.BlobWriter,
		a.cfg.Pipeline.ArchiveInterval.Duration,
		a.cfg.Pipeline.ArchiveRetentionDays,
		a.logger,
	)
}

// ScanMode evaluates all cached market pairs on the scan ticker. Decisions
// are emitted and persisted but never executed.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	p, err := a.buildPipeline(ctx, deps)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(p, nil, a.newArchiver(deps), a.logger)
	return runner.Run(ctx)
}

// StreamMode adds the live feed on top of scanning: market and book events
// refresh the caches and trigger targeted re-evaluation.
func (a *App) StreamMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting stream mode")

	p, err := a.buildPipeline(ctx, deps)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(p, nil, a.newArchiver(deps), a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(ctx)
	})
	g.Go(func() error {
		feeder := feed.NewFeeder(
			deps.SignalBus, deps.MarketCache, deps.BookCache,
			runner.Trigger, a.cfg.Pipeline.MarketTTL.Duration, a.logger,
		)
		return feeder.Run(ctx)
	})
	return g.Wait()
}

// FullMode runs everything stream mode does and additionally executes each
// emitted decision's split schedule against a paper placer.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	p, err := a.buildPipeline(ctx, deps)
	if err != nil {
		return err
	}
	placer := pipeline.NewPaperPlacer(deps.BookCache, a.logger)
	executor := pipeline.NewExecutor(placer, deps.BookCache, a.logger)
	runner := pipeline.NewRunner(p, executor, a.newArchiver(deps), a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(ctx)
	})
	g.Go(func() error {
		feeder := feed.NewFeeder(
			deps.SignalBus, deps.MarketCache, deps.BookCache,
			runner.Trigger, a.cfg.Pipeline.MarketTTL.Duration, a.logger,
		)
		return feeder.Run(ctx)
	})
	return g.Wait()
}

// MonitorMode only keeps the caches warm from the feed; nothing is evaluated
// or persisted. Useful for watching what the collectors deliver.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	feeder := feed.NewFeeder(
		deps.SignalBus, deps.MarketCache, deps.BookCache,
		nil, a.cfg.Pipeline.MarketTTL.Duration, a.logger,
	)
	return feeder.Run(ctx)
}
