package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/najdeno/internal/model"
)

// CreateStorageLocation creates a new active storage location.
func CreateStorageLocation(ctx context.Context, db *sql.DB, name, address, notes string) (*model.StorageLocation, error) {
	if name == "" {
		return nil, invalid("storage location name required")
	}
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO storage_locations (id, name, address, notes, active, created_at)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		id, name, nullString(address), nullString(notes), utcNow(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating storage location: %w", err)
	}
	return GetStorageLocation(ctx, db, id)
}

// GetStorageLocation returns a storage location by ID.
func GetStorageLocation(ctx context.Context, db *sql.DB, id string) (*model.StorageLocation, error) {
	return getStorageLocation(ctx, db, id)
}

func getStorageLocation(ctx context.Context, q querier, id string) (*model.StorageLocation, error) {
	loc := &model.StorageLocation{}
	var address, notes sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, name, address, notes, active, created_at FROM storage_locations WHERE id = ?`, id,
	).Scan(&loc.ID, &loc.Name, &address, &notes, &loc.Active, &loc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting storage location: %w", err)
	}
	loc.Address = address.String
	loc.Notes = notes.String
	return loc, nil
}

// ListStorageLocations returns storage locations ordered by name.
func ListStorageLocations(ctx context.Context, db *sql.DB, includeInactive bool) ([]model.StorageLocation, error) {
	query := `SELECT id, name, address, notes, active, created_at FROM storage_locations`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing storage locations: %w", err)
	}
	defer rows.Close()

	var locs []model.StorageLocation
	for rows.Next() {
		var loc model.StorageLocation
		var address, notes sql.NullString
		if err := rows.Scan(&loc.ID, &loc.Name, &address, &notes, &loc.Active, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning storage location: %w", err)
		}
		loc.Address = address.String
		loc.Notes = notes.String
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

// UpdateStorageLocation updates a storage location's metadata.
func UpdateStorageLocation(ctx context.Context, db *sql.DB, id, name, address, notes string, active bool) error {
	if name == "" {
		return invalid("storage location name required")
	}
	result, err := db.ExecContext(ctx,
		`UPDATE storage_locations SET name = ?, address = ?, notes = ?, active = ? WHERE id = ?`,
		name, nullString(address), nullString(notes), active, id,
	)
	if err != nil {
		return fmt.Errorf("updating storage location: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// requireActiveLocation loads a storage location and rejects missing or
// deactivated ones.
func requireActiveLocation(ctx context.Context, q querier, id string) (*model.StorageLocation, error) {
	loc, err := getStorageLocation(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if loc == nil || !loc.Active {
		return nil, fmt.Errorf("storage location %s: %w", id, ErrNotFound)
	}
	return loc, nil
}
