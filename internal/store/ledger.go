package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/model"
)

// ledgerEntry is one custody event, written to both the custody ledger and
// the audit log with the same action and timestamp.
type ledgerEntry struct {
	ItemID     string
	Action     model.Action
	Actor      string
	ActorEmail string
	OccurredAt time.Time
	Notes      string
	Details    string
}

// appendLedger inserts the custody log and audit log rows for one event.
// Ledger rows are only ever inserted; the schema rejects updates and deletes.
func appendLedger(ctx context.Context, q querier, e ledgerEntry, created time.Time) error {
	if !e.Action.Valid() {
		return fmt.Errorf("unknown ledger action %q", e.Action)
	}
	at := e.OccurredAt.UTC()

	_, err := q.ExecContext(ctx,
		`INSERT INTO custody_logs (found_item_id, action_type, actor_user_id, timestamp, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ItemID, e.Action, e.Actor, at, nullString(e.Notes), created,
	)
	if err != nil {
		return fmt.Errorf("appending custody log: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO item_audit_logs (found_item_id, action, performed_by_user_id, performed_by_email,
		        details, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ItemID, e.Action, e.Actor, nullString(e.ActorEmail), nullString(e.Details), at, created,
	)
	if err != nil {
		return fmt.Errorf("appending audit log: %w", err)
	}
	return nil
}

// ListCustodyLogs returns the custody ledger of an item in insertion order.
func ListCustodyLogs(ctx context.Context, db *sql.DB, itemID string) ([]model.CustodyLog, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, found_item_id, action_type, actor_user_id, timestamp, notes, created_at
		 FROM custody_logs WHERE found_item_id = ? ORDER BY id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing custody logs: %w", err)
	}
	defer rows.Close()

	var logs []model.CustodyLog
	for rows.Next() {
		var l model.CustodyLog
		var notes sql.NullString
		if err := rows.Scan(&l.ID, &l.FoundItemID, &l.Action, &l.ActorUserID, &l.Timestamp, &notes, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning custody log: %w", err)
		}
		l.Notes = notes.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ListItemAuditLogs returns one page of audit entries matching the filter,
// newest first, and the total number of matches.
func ListItemAuditLogs(ctx context.Context, db *sql.DB, f model.AuditFilter) (*model.AuditPage, error) {
	where := ` WHERE 1=1`
	var args []any

	if f.ItemID != "" {
		where += ` AND found_item_id = ?`
		args = append(args, f.ItemID)
	}
	if f.Action != "" {
		where += ` AND action = ?`
		args = append(args, f.Action)
	}
	if p := strings.TrimSpace(f.PerformedBy); p != "" {
		pattern := "%" + p + "%"
		where += ` AND (performed_by_user_id LIKE ? OR COALESCE(performed_by_email, '') LIKE ?)`
		args = append(args, pattern, pattern)
	}
	if !f.Since.IsZero() {
		where += ` AND occurred_at >= ?`
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		where += ` AND occurred_at < ?`
		args = append(args, f.Until.UTC())
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM item_audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	page, size := pageBounds(f.Page, f.PageSize)
	rows, err := db.QueryContext(ctx,
		`SELECT id, found_item_id, action, performed_by_user_id, performed_by_email,
		        details, occurred_at, created_at
		 FROM item_audit_logs`+where+` ORDER BY occurred_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, size, (page-1)*size)...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}
	defer rows.Close()

	result := &model.AuditPage{Items: []model.ItemAuditLog{}, Total: total}
	for rows.Next() {
		var l model.ItemAuditLog
		var email, details sql.NullString
		if err := rows.Scan(&l.ID, &l.FoundItemID, &l.Action, &l.PerformedByUserID, &email,
			&details, &l.OccurredAt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit log: %w", err)
		}
		l.PerformedByEmail = email.String
		l.Details = details.String
		result.Items = append(result.Items, l)
	}
	return result, rows.Err()
}

// ListOwnerClaims returns the owner releases recorded for an item.
func ListOwnerClaims(ctx context.Context, db *sql.DB, itemID string) ([]model.OwnerClaim, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, found_item_id, owner_name, owner_address, owner_email, owner_phone,
		        owner_id_number, released_at, released_by_user_id
		 FROM owner_claims WHERE found_item_id = ? ORDER BY id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing owner claims: %w", err)
	}
	defer rows.Close()

	var claims []model.OwnerClaim
	for rows.Next() {
		var c model.OwnerClaim
		var email, phone, idNumber sql.NullString
		if err := rows.Scan(&c.ID, &c.FoundItemID, &c.OwnerName, &c.OwnerAddress, &email, &phone,
			&idNumber, &c.ReleasedAt, &c.ReleasedByUserID); err != nil {
			return nil, fmt.Errorf("scanning owner claim: %w", err)
		}
		c.OwnerEmail = email.String
		c.OwnerPhone = phone.String
		c.OwnerIDNumber = idNumber.String
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func insertOwnerClaim(ctx context.Context, q querier, itemID string, o model.OwnerDetails, releasedAt time.Time, releasedBy string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO owner_claims (found_item_id, owner_name, owner_address, owner_email, owner_phone,
		        owner_id_number, released_at, released_by_user_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		itemID, o.Name, o.Address, nullString(o.Email), nullString(o.Phone),
		nullString(o.IDNumber), releasedAt.UTC(), releasedBy,
	)
	if err != nil {
		return fmt.Errorf("recording owner claim: %w", err)
	}
	return nil
}
