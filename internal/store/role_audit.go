package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/najdeno/internal/model"
)

// Performer identifies who made an administrative change.
type Performer struct {
	UserID string
	Email  string
}

// SystemPerformer is recorded for changes made outside an operator session,
// such as the initial admin account.
var SystemPerformer = Performer{UserID: model.RoleSystem}

func insertRoleAudit(ctx context.Context, q querier, e model.RoleAuditLog, by Performer) error {
	if !e.Action.Valid() {
		return fmt.Errorf("unknown user audit action %q", e.Action)
	}
	if by.UserID == "" {
		by = SystemPerformer
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO role_audit_logs (target_user_id, target_username, target_email, old_role, new_role,
		        action, performed_by_user_id, performed_by_email, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TargetUserID, e.TargetUsername, nullString(e.TargetEmail), nullString(e.OldRole),
		nullString(e.NewRole), e.Action, by.UserID, nullString(by.Email), utcNow(),
	)
	if err != nil {
		return fmt.Errorf("appending user audit log: %w", err)
	}
	return nil
}

// ListRoleAuditLogs returns one page of user audit entries, newest first,
// and the total number of matches.
func ListRoleAuditLogs(ctx context.Context, db *sql.DB, f model.RoleAuditFilter) (*model.RoleAuditPage, error) {
	where := ` WHERE 1=1`
	var args []any

	if f.Action != "" {
		where += ` AND action = ?`
		args = append(args, f.Action)
	}
	if t := strings.TrimSpace(f.Target); t != "" {
		pattern := "%" + t + "%"
		where += ` AND (target_username LIKE ? OR COALESCE(target_email, '') LIKE ?)`
		args = append(args, pattern, pattern)
	}
	if p := strings.TrimSpace(f.PerformedBy); p != "" {
		pattern := "%" + p + "%"
		where += ` AND (performed_by_user_id LIKE ? OR COALESCE(performed_by_email, '') LIKE ?)`
		args = append(args, pattern, pattern)
	}
	if !f.Since.IsZero() {
		where += ` AND created_at >= ?`
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		where += ` AND created_at < ?`
		args = append(args, f.Until.UTC())
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM role_audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting user audit logs: %w", err)
	}

	page, size := pageBounds(f.Page, f.PageSize)
	rows, err := db.QueryContext(ctx,
		`SELECT id, target_user_id, target_username, target_email, old_role, new_role,
		        action, performed_by_user_id, performed_by_email, created_at
		 FROM role_audit_logs`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, size, (page-1)*size)...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing user audit logs: %w", err)
	}
	defer rows.Close()

	result := &model.RoleAuditPage{Items: []model.RoleAuditLog{}, Total: total}
	for rows.Next() {
		var l model.RoleAuditLog
		var email, oldRole, newRole, byEmail sql.NullString
		if err := rows.Scan(&l.ID, &l.TargetUserID, &l.TargetUsername, &email, &oldRole, &newRole,
			&l.Action, &l.PerformedByUserID, &byEmail, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user audit log: %w", err)
		}
		l.TargetEmail = email.String
		l.OldRole = oldRole.String
		l.NewRole = newRole.String
		l.PerformedByEmail = byEmail.String
		result.Items = append(result.Items, l)
	}
	return result, rows.Err()
}
