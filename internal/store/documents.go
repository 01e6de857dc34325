package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/najdeno/internal/model"
)

// SaveDepositDocument stores a rendered document for a deposit.
func SaveDepositDocument(ctx context.Context, db *sql.DB, doc model.DepositDocument) (*model.DepositDocument, error) {
	if len(doc.Bytes) == 0 {
		return nil, invalid("empty document")
	}
	doc.ID = uuid.NewString()
	doc.Size = int64(len(doc.Bytes))
	doc.CreatedAt = utcNow()

	_, err := db.ExecContext(ctx,
		`INSERT INTO deposit_documents (id, deposit_id, file_name, mime_type, size, type, bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.DepositID, doc.FileName, doc.MimeType, doc.Size, nullString(doc.Type), doc.Bytes, doc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("saving deposit document: %w", err)
	}
	return &doc, nil
}

// ListDepositDocuments returns document metadata for a deposit, newest first.
// Contents are not loaded.
func ListDepositDocuments(ctx context.Context, db *sql.DB, depositID string) ([]model.DepositDocument, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, deposit_id, file_name, mime_type, size, type, created_at
		 FROM deposit_documents WHERE deposit_id = ?
		 ORDER BY created_at DESC, id`, depositID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing deposit documents: %w", err)
	}
	defer rows.Close()

	docs := []model.DepositDocument{}
	for rows.Next() {
		var d model.DepositDocument
		var typ sql.NullString
		if err := rows.Scan(&d.ID, &d.DepositID, &d.FileName, &d.MimeType, &d.Size, &typ, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning deposit document: %w", err)
		}
		d.Type = typ.String
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetDepositDocument returns a document with its contents.
func GetDepositDocument(ctx context.Context, db *sql.DB, id string) (*model.DepositDocument, error) {
	return getDepositDocument(ctx, db, `WHERE id = ?`, id)
}

// GetLatestDepositDocument returns the newest document of a deposit.
func GetLatestDepositDocument(ctx context.Context, db *sql.DB, depositID string) (*model.DepositDocument, error) {
	return getDepositDocument(ctx, db, `WHERE deposit_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, depositID)
}

func getDepositDocument(ctx context.Context, db *sql.DB, where string, arg any) (*model.DepositDocument, error) {
	d := &model.DepositDocument{}
	var typ sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, deposit_id, file_name, mime_type, size, type, bytes, created_at
		 FROM deposit_documents `+where, arg,
	).Scan(&d.ID, &d.DepositID, &d.FileName, &d.MimeType, &d.Size, &typ, &d.Bytes, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting deposit document: %w", err)
	}
	d.Type = typ.String
	return d, nil
}
