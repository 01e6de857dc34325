package disposal

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/erazemk/najdeno/internal/custody"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/metrics"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

var now = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func createDeposit(t *testing.T, s *Scanner, at time.Time, foundAt *time.Time) string {
	t.Helper()
	dep, err := store.CreateDeposit(context.Background(), s.DB, at, store.NewDeposit{
		FoundAt: foundAt,
		Items:   []store.NewDepositItem{{Category: "Bag", Details: "Black bag"}},
	})
	if err != nil {
		t.Fatalf("CreateDeposit: %v", err)
	}
	return dep.Items[0].ID
}

func TestRunOnceMarksOverdueItems(t *testing.T) {
	s := &Scanner{DB: db.NewTestDB(t), RetentionDays: 90, BatchSize: 100, Now: func() time.Time { return now }}
	ctx := context.Background()

	old := createDeposit(t, s, now.AddDate(0, 0, -91), nil)
	recent := createDeposit(t, s, now.AddDate(0, 0, -10), nil)

	before := testutil.ToFloat64(metrics.DisposalMarked)
	res, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Examined != 2 || res.Marked != 1 || res.Failed != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if got := testutil.ToFloat64(metrics.DisposalMarked) - before; got != 1 {
		t.Errorf("marked counter grew by %v, want 1", got)
	}

	item, _ := store.GetItem(ctx, s.DB, old)
	if item.Status != model.StatusReadyToDispose {
		t.Errorf("old item status = %s, want ReadyToDispose", item.Status)
	}
	logs, _ := store.ListCustodyLogs(ctx, s.DB, old)
	last := logs[len(logs)-1]
	if len(logs) != 2 || last.Action != model.ActionMarkReadyToDispose || last.ActorUserID != model.RoleSystem {
		t.Errorf("unexpected custody logs %+v", logs)
	}

	item, _ = store.GetItem(ctx, s.DB, recent)
	if item.Status != model.StatusInStorage {
		t.Errorf("recent item status = %s, want InStorage", item.Status)
	}
	if logs, _ := store.ListCustodyLogs(ctx, s.DB, recent); len(logs) != 1 {
		t.Errorf("recent item gained ledger entries: %+v", logs)
	}

	// A second cycle finds nothing new to mark.
	res, _ = s.RunOnce(ctx)
	if res.Marked != 0 {
		t.Errorf("second cycle marked %d", res.Marked)
	}

	last2, _ := store.GetSetting(ctx, s.DB, store.SettingLastDisposalScan)
	if last2 != now.Format(time.RFC3339) {
		t.Errorf("last scan = %q", last2)
	}
}

func TestRunOncePrefersFoundTime(t *testing.T) {
	s := &Scanner{DB: db.NewTestDB(t), RetentionDays: 90, BatchSize: 100, Now: func() time.Time { return now }}

	foundLongAgo := now.AddDate(0, 0, -120)
	id := createDeposit(t, s, now.AddDate(0, 0, -5), &foundLongAgo)

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Marked != 1 {
		t.Fatalf("expected item found 120 days ago to be marked, got %+v", res)
	}
	item, _ := store.GetItem(context.Background(), s.DB, id)
	if item.Status != model.StatusReadyToDispose {
		t.Errorf("status = %s", item.Status)
	}
}

func TestRunOnceIgnoresOtherStatuses(t *testing.T) {
	s := &Scanner{DB: db.NewTestDB(t), RetentionDays: 30, BatchSize: 100, Now: func() time.Time { return now }}
	ctx := context.Background()

	id := createDeposit(t, s, now.AddDate(-1, 0, 0), nil)
	err := store.ApplyTransition(ctx, s.DB, store.TransitionRequest{Operation: custody.OpTransferToOffice, Actor: "1"}, id)
	if err != nil {
		t.Fatal(err)
	}

	res, _ := s.RunOnce(ctx)
	if res.Examined != 0 || res.Marked != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRunOnceBatchBound(t *testing.T) {
	s := &Scanner{DB: db.NewTestDB(t), RetentionDays: 1, BatchSize: 2, Now: func() time.Time { return now }}
	for range 3 {
		createDeposit(t, s, now.AddDate(0, 0, -10), nil)
	}

	res, _ := s.RunOnce(context.Background())
	if res.Marked != 2 {
		t.Errorf("first cycle marked %d, want 2", res.Marked)
	}
	res, _ = s.RunOnce(context.Background())
	if res.Marked != 1 {
		t.Errorf("second cycle marked %d, want 1", res.Marked)
	}
}

func TestSettingClamps(t *testing.T) {
	s := &Scanner{RetentionDays: -4, BatchSize: 1_000_000}
	if s.retentionDays() != 1 {
		t.Errorf("retention = %d, want 1", s.retentionDays())
	}
	if s.batchSize() != MaxBatchSize {
		t.Errorf("batch = %d, want %d", s.batchSize(), MaxBatchSize)
	}
	s.BatchSize = 0
	if s.batchSize() != 1 {
		t.Errorf("batch = %d, want 1", s.batchSize())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := &Scanner{DB: db.NewTestDB(t), RetentionDays: 90, BatchSize: 10, Interval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
