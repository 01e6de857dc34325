package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/najdeno/internal/model"
)

const permissionColumns = `role_name, handover_owner, handover_office, transfer_storage,
	receive_storage, dispose, destroy, sell, updated_at`

func scanPermissions(row interface{ Scan(...any) error }) (*model.Permissions, error) {
	p := &model.Permissions{}
	err := row.Scan(&p.RoleName, &p.HandoverOwner, &p.HandoverOffice, &p.TransferStorage,
		&p.ReceiveStorage, &p.Dispose, &p.Destroy, &p.Sell, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPermissions returns the capability flags of a role. The admin role holds
// every capability; roles without a stored row hold none.
func GetPermissions(ctx context.Context, db *sql.DB, role string) (model.Permissions, error) {
	if role == model.RoleAdmin {
		return model.AllPermissions(role), nil
	}

	p, err := scanPermissions(db.QueryRowContext(ctx,
		`SELECT `+permissionColumns+` FROM role_permissions WHERE role_name = ?`, role))
	if err == sql.ErrNoRows {
		return model.Permissions{RoleName: role}, nil
	}
	if err != nil {
		return model.Permissions{}, fmt.Errorf("getting permissions: %w", err)
	}
	return *p, nil
}

// SetPermissions creates or replaces the flags of a role.
func SetPermissions(ctx context.Context, db *sql.DB, p model.Permissions) (model.Permissions, error) {
	if err := model.ValidateRoleName(p.RoleName); err != nil {
		return model.Permissions{}, invalid("%v", err)
	}
	if p.RoleName == model.RoleAdmin {
		return model.Permissions{}, invalid("permissions of role %q are fixed", model.RoleAdmin)
	}

	p.UpdatedAt = utcNow()
	_, err := db.ExecContext(ctx,
		`INSERT INTO role_permissions (`+permissionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (role_name) DO UPDATE SET
		     handover_owner = excluded.handover_owner,
		     handover_office = excluded.handover_office,
		     transfer_storage = excluded.transfer_storage,
		     receive_storage = excluded.receive_storage,
		     dispose = excluded.dispose,
		     destroy = excluded.destroy,
		     sell = excluded.sell,
		     updated_at = excluded.updated_at`,
		p.RoleName, p.HandoverOwner, p.HandoverOffice, p.TransferStorage,
		p.ReceiveStorage, p.Dispose, p.Destroy, p.Sell, p.UpdatedAt,
	)
	if err != nil {
		return model.Permissions{}, fmt.Errorf("setting permissions: %w", err)
	}
	return p, nil
}

// ListPermissions returns the stored flags of every role.
func ListPermissions(ctx context.Context, db *sql.DB) ([]model.Permissions, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+permissionColumns+` FROM role_permissions ORDER BY role_name`)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	var perms []model.Permissions
	for rows.Next() {
		p, err := scanPermissions(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning permissions: %w", err)
		}
		perms = append(perms, *p)
	}
	return perms, rows.Err()
}

// DeletePermissions removes a role's stored flags.
func DeletePermissions(ctx context.Context, db *sql.DB, role string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_name = ?`, role)
	if err != nil {
		return fmt.Errorf("deleting permissions: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
