package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// archiveBatchSize caps how many decisions one archive pass loads at a time.
const archiveBatchSize = 1000

// Archiver moves decisions older than the retention window out of PostgreSQL
// into object storage as day-partitioned JSONL files.
type Archiver struct {
	decisions     domain.DecisionStore
	blob          domain.BlobWriter
	interval      time.Duration
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(decisions domain.DecisionStore, blob domain.BlobWriter, interval time.Duration, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		decisions:     decisions,
		blob:          blob,
		interval:      interval,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run archives on a ticker until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("archiver started",
		slog.Duration("interval", a.interval),
		slog.Int("retention_days", a.retentionDays),
	)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.RunOnce(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce uploads every decision older than the retention cutoff and then
// deletes the archived rows. Deletion only happens after all uploads
// succeeded, so a failed run leaves the rows for the next pass.
func (a *Archiver) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.retentionDays)

	total := 0
	for {
		batch, err := a.decisions.ListBefore(ctx, cutoff, archiveBatchSize)
		if err != nil {
			return fmt.Errorf("list decisions before %v: %w", cutoff, err)
		}
		if len(batch) == 0 {
			break
		}

		if err := a.uploadByDay(ctx, batch); err != nil {
			return err
		}

		// Advance the working cutoff so the next iteration does not re-list
		// the batch we just uploaded but have not deleted yet.
		last := batch[len(batch)-1].CreatedAt
		deleted, err := a.decisions.DeleteBefore(ctx, last.Add(time.Millisecond))
		if err != nil {
			return fmt.Errorf("delete archived decisions: %w", err)
		}
		total += int(deleted)

		if len(batch) < archiveBatchSize {
			break
		}
	}

	if total > 0 {
		a.logger.Info("archive run complete",
			slog.Time("cutoff", cutoff),
			slog.Int("archived", total),
		)
	}
	return nil
}

// uploadByDay groups decisions by the UTC date they were created and writes
// one JSONL object per day.
func (a *Archiver) uploadByDay(ctx context.Context, batch []domain.TradeDecision) error {
	byDay := make(map[string][]domain.TradeDecision)
	for _, dec := range batch {
		day := dec.CreatedAt.UTC().Format("2006/01/02")
		byDay[day] = append(byDay[day], dec)
	}

	for day, decs := range byDay {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, dec := range decs {
			if err := enc.Encode(dec); err != nil {
				return fmt.Errorf("encode decision %s: %w", dec.ID, err)
			}
		}

		key := fmt.Sprintf("decisions/%s/%s.jsonl", day, time.Now().UTC().Format("150405"))
		if err := a.blob.Put(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		a.logger.Debug("archived day partition",
			slog.String("key", key),
			slog.Int("decisions", len(decs)),
		)
	}
	return nil
}
