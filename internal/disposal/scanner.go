// Package disposal periodically marks items whose retention period has
// elapsed as ready to dispose.
package disposal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/najdeno/internal/custody"
	"github.com/erazemk/najdeno/internal/metrics"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// Limits applied to scanner settings.
const (
	MinInterval  = 5 * time.Minute
	MaxBatchSize = 5000
)

// Scanner walks InStorage items and marks the overdue ones ReadyToDispose
// through the same transition path operators use.
type Scanner struct {
	DB            *sql.DB
	RetentionDays int
	BatchSize     int
	Interval      time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result summarizes one scan cycle.
type Result struct {
	Examined int `json:"examined"`
	Marked   int `json:"marked"`
	Failed   int `json:"failed"`
}

// Run scans immediately and then once per interval until ctx is done. A
// failed cycle is logged and the loop carries on.
func (s *Scanner) Run(ctx context.Context) {
	interval := max(s.Interval, MinInterval)
	slog.Info("disposal scanner started", "interval", interval, "retention_days", s.retentionDays())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			metrics.DisposalCycleFailures.Inc()
			slog.Error("disposal scan failed", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("disposal scanner stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single scan cycle. Per-item failures are logged and
// counted without aborting the cycle; the returned error is reserved for
// failures to list candidates at all.
func (s *Scanner) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	now := s.now()
	cutoff := now.AddDate(0, 0, -s.retentionDays())

	items, err := store.ListDisposalCandidates(ctx, s.DB, s.batchSize())
	if err != nil {
		return res, fmt.Errorf("listing candidates: %w", err)
	}
	res.Examined = len(items)

	notes := fmt.Sprintf("Retention period of %d days elapsed", s.retentionDays())
	for _, item := range items {
		if !item.RetentionBasis().Before(cutoff) {
			continue
		}

		err := store.ApplyTransition(ctx, s.DB, store.TransitionRequest{
			Operation:  custody.OpMarkReadyToDispose,
			Actor:      model.RoleSystem,
			OccurredAt: now,
			Notes:      notes,
		}, item.ID)
		if err != nil {
			res.Failed++
			slog.Warn("marking item ready to dispose", "item", item.ID, "error", err)
			continue
		}
		res.Marked++
	}
	metrics.DisposalMarked.Add(float64(res.Marked))

	if err := store.SetSetting(ctx, s.DB, store.SettingLastDisposalScan, now.UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("recording disposal scan time", "error", err)
	}

	slog.Info("disposal scan finished", "examined", res.Examined, "marked", res.Marked, "failed", res.Failed)
	return res, nil
}

func (s *Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scanner) retentionDays() int {
	return max(s.RetentionDays, 1)
}

func (s *Scanner) batchSize() int {
	return min(max(s.BatchSize, 1), MaxBatchSize)
}
