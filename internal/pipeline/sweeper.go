package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/whalewatch/whaletx/internal/dedup"
	"github.com/whalewatch/whaletx/internal/domain/model"
	"github.com/whalewatch/whaletx/internal/store/postgres"
)

// SweepStore is the record access the dedup sweep needs.
type SweepStore interface {
	DistinctLiveTokens(ctx context.Context) ([]postgres.TokenGroup, error)
	ListLiveByToken(ctx context.Context, chain model.Chain, tokenSymbol string) ([]*model.WhaleTransactionRecord, error)
	MarkSuperseded(ctx context.Context, loserTxHash, survivorTxHash string) error
}

// Sweeper periodically runs the near-duplicate detector over every live
// token group. Each supersede mark is committed independently, cancelling a
// sweep mid-flight leaves already-marked rows valid and the rest untouched
// until the next run.
type Sweeper struct {
	store    SweepStore
	detector *dedup.Detector
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(store SweepStore, detector *dedup.Detector, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		detector: detector,
		interval: interval,
		logger:   logger.With("component", "dedup_sweeper"),
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.SweepOnce(ctx); err != nil {
		s.logger.Error("dedup sweep failed", "err", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("dedup sweep failed", "err", err)
			}
		}
	}
}

// SweepOnce deduplicates every live token group.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	groups, err := s.store.DistinctLiveTokens(ctx)
	if err != nil {
		return err
	}

	var removed int
	for _, group := range groups {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := s.sweepGroup(ctx, group)
		if err != nil {
			return err
		}
		removed += n
	}

	if removed > 0 {
		s.logger.Info("dedup sweep finished", "groups", len(groups), "removed", removed)
	}
	return nil
}

func (s *Sweeper) sweepGroup(ctx context.Context, group postgres.TokenGroup) (int, error) {
	records, err := s.store.ListLiveByToken(ctx, group.Chain, group.TokenSymbol)
	if err != nil {
		return 0, err
	}
	_, report := s.detector.Deduplicate(records)
	if report.RemovedCount == 0 {
		return 0, nil
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if !rec.Superseded() {
			continue
		}
		if err := s.store.MarkSuperseded(ctx, rec.TxHash, *rec.SupersededBy); err != nil {
			return 0, err
		}
	}
	return report.RemovedCount, nil
}
