package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/custody"
	"github.com/erazemk/najdeno/internal/metrics"
	"github.com/erazemk/najdeno/internal/model"
)

// reasonNotFound is the per-item failure text for unknown item IDs.
const reasonNotFound = "Not found"

// TransitionRequest asks for one custody operation over a set of items.
type TransitionRequest struct {
	Operation  custody.Operation
	ItemIDs    []string
	Actor      string
	ActorEmail string
	// OccurredAt backdates the ledger entries to the real-world event time.
	// Zero means now.
	OccurredAt time.Time
	Notes      string
	// StorageLocationID is required for store and optional for start-transit,
	// where it names the destination.
	StorageLocationID string
	// Owner is required for handover-owner.
	Owner *model.OwnerDetails
}

// ApplyBulkTransition validates every requested item against the custody
// rules before touching any of them. If an item is missing or in a status the
// operation does not accept, nothing is written and a *ValidationError lists
// every offending item. Otherwise all items are updated, and their ledger rows
// appended, in a single transaction.
func ApplyBulkTransition(ctx context.Context, db *sql.DB, req TransitionRequest) (*model.BulkResult, error) {
	result, err := applyTransition(ctx, db, req)

	outcome := "ok"
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	metrics.BulkOperations.WithLabelValues(string(req.Operation), outcome).Inc()

	return result, err
}

// ApplyTransition applies an operation to a single item. A missing item
// yields ErrNotFound; an item in the wrong status yields a *ValidationError.
func ApplyTransition(ctx context.Context, db *sql.DB, req TransitionRequest, itemID string) error {
	req.ItemIDs = []string{itemID}
	_, err := applyTransition(ctx, db, req)

	var verr *ValidationError
	if errors.As(err, &verr) && len(verr.Failures) == 1 && verr.Failures[0].Reason == reasonNotFound {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	return err
}

func applyTransition(ctx context.Context, db *sql.DB, req TransitionRequest) (*model.BulkResult, error) {
	ids := dedupe(req.ItemIDs)
	if err := validateRequest(req, ids); err != nil {
		return nil, err
	}
	rule, _ := custody.Lookup(req.Operation)

	if req.StorageLocationID != "" {
		if _, err := requireActiveLocation(ctx, db, req.StorageLocationID); err != nil {
			return nil, err
		}
	}

	current, err := loadStatuses(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	var failures []model.ItemError
	for _, id := range ids {
		status, ok := current[id]
		if !ok {
			failures = append(failures, model.ItemError{ItemID: id, Reason: reasonNotFound})
			continue
		}
		if _, err := custody.Check(req.Operation, id, status); err != nil {
			var ise *custody.InvalidStatusError
			if !errors.As(err, &ise) {
				return nil, err
			}
			failures = append(failures, model.ItemError{ItemID: id, Reason: ise.Reason()})
		}
	}
	if len(failures) > 0 {
		return nil, &ValidationError{Failures: failures}
	}

	now := utcNow()
	occurred := req.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if err := updateItemStatus(ctx, tx, req, rule, id, current[id], now); err != nil {
			return nil, err
		}

		entry := ledgerEntry{
			ItemID:     id,
			Action:     rule.Action,
			Actor:      req.Actor,
			ActorEmail: req.ActorEmail,
			OccurredAt: occurred,
			Notes:      req.Notes,
			Details:    transitionDetails(rule, current[id], req.Notes),
		}
		if err := appendLedger(ctx, tx, entry, now); err != nil {
			return nil, err
		}

		if req.Operation == custody.OpReleaseToOwner {
			if err := insertOwnerClaim(ctx, tx, id, *req.Owner, occurred, req.Actor); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transition: %w", err)
	}

	metrics.ItemsTransitioned.WithLabelValues(string(req.Operation)).Add(float64(len(ids)))
	slog.Info("transition applied", "operation", req.Operation, "items", len(ids), "user", req.Actor)

	return &model.BulkResult{ProcessedCount: len(ids), Errors: []model.ItemError{}}, nil
}

func validateRequest(req TransitionRequest, ids []string) error {
	if _, ok := custody.Lookup(req.Operation); !ok {
		return invalid("unknown operation %q", req.Operation)
	}
	if len(ids) == 0 {
		return invalid("no items provided")
	}
	if req.Actor == "" {
		return invalid("actor required")
	}
	if req.Operation == custody.OpStore && req.StorageLocationID == "" {
		return invalid("storage location required")
	}
	if req.Operation == custody.OpReleaseToOwner {
		if req.Owner == nil || strings.TrimSpace(req.Owner.Name) == "" || strings.TrimSpace(req.Owner.Address) == "" {
			return invalid("owner name and address required")
		}
	}
	return nil
}

// loadStatuses reads the current status of every requested item in one query.
func loadStatuses(ctx context.Context, q querier, ids []string) (map[string]model.Status, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, status FROM found_items WHERE id IN (`+placeholders(len(ids))+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("loading item statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]model.Status, len(ids))
	for rows.Next() {
		var id string
		var status model.Status
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scanning item status: %w", err)
		}
		statuses[id] = status
	}
	return statuses, rows.Err()
}

// updateItemStatus moves one item to the rule's target status. The update is
// guarded on the status seen during validation; if another writer changed it
// in between, ErrConcurrentModification aborts the whole batch.
func updateItemStatus(ctx context.Context, tx *sql.Tx, req TransitionRequest, rule custody.Rule, id string, from model.Status, now time.Time) error {
	set := `status = ?, updated_at = ?`
	args := []any{rule.To, now}

	switch req.Operation {
	case custody.OpStore:
		set += `, storage_location_id = ?`
		args = append(args, req.StorageLocationID)
	case custody.OpStartTransit:
		if req.StorageLocationID != "" {
			set += `, storage_location_id = ?`
			args = append(args, req.StorageLocationID)
		}
	case custody.OpReceiveAtStorage:
		set += `, current_custodian_user_id = ?`
		args = append(args, req.Actor)
	}
	args = append(args, id, from)

	result, err := tx.ExecContext(ctx,
		`UPDATE found_items SET `+set+` WHERE id = ? AND status = ?`, args...,
	)
	if err != nil {
		return fmt.Errorf("updating item %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating item %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, ErrConcurrentModification)
	}
	return nil
}

func transitionDetails(rule custody.Rule, from model.Status, notes string) string {
	d := fmt.Sprintf("%s: %s -> %s", rule.Action, from, rule.To)
	if notes != "" {
		d += " (" + notes + ")"
	}
	return d
}

// dedupe drops empty and repeated IDs, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
