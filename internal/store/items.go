package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/najdeno/internal/model"
)

// NewItem holds the fields of a standalone intake.
type NewItem struct {
	Category          string
	OtherCategoryText string
	Details           string
	FoundLocation     string
	FoundAt           *time.Time
	FinderName        string
	Actor             string
	ActorEmail        string
}

// CreateItem records an item received outside a deposit, in status Received.
func CreateItem(ctx context.Context, db *sql.DB, in NewItem) (*model.FoundItem, error) {
	if strings.TrimSpace(in.Category) == "" || strings.TrimSpace(in.Details) == "" {
		return nil, invalid("category and details required")
	}
	if in.Category == model.CategoryOther && strings.TrimSpace(in.OtherCategoryText) == "" {
		return nil, invalid("category text required for %q", model.CategoryOther)
	}
	actor := in.Actor
	if actor == "" {
		actor = model.RoleSystem
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := utcNow()
	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO found_items (id, category, other_category_text, details, status,
		        current_custodian_user_id, found_location, found_at, finder_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Category, nullString(in.OtherCategoryText), in.Details, model.StatusReceived,
		nullString(in.Actor), nullString(in.FoundLocation), nullTime(in.FoundAt), nullString(in.FinderName),
		now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	entry := ledgerEntry{
		ItemID:     id,
		Action:     model.ActionReceive,
		Actor:      actor,
		ActorEmail: in.ActorEmail,
		OccurredAt: now,
		Notes:      "Item received and recorded",
		Details:    "Created item",
	}
	if err := appendLedger(ctx, tx, entry, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}
	return GetItem(ctx, db, id)
}

const itemColumns = `i.id, i.category, i.other_category_text, i.details, i.status,
	i.current_custodian_user_id, i.storage_location_id, i.deposit_id, i.deposit_sub_index,
	COALESCE(i.found_location, d.found_location), i.found_at, COALESCE(i.finder_name, d.finder_name),
	i.photo_mime IS NOT NULL, i.created_at, i.updated_at,
	d.deposit_number, d.found_at, s.name`

const itemJoins = ` FROM found_items i
	LEFT JOIN deposits d ON d.id = i.deposit_id
	LEFT JOIN storage_locations s ON s.id = i.storage_location_id`

func scanItem(row interface{ Scan(...any) error }) (*model.FoundItem, error) {
	it := &model.FoundItem{}
	var other, custodian, location, depositID, foundLocation, finder, number, locationName sql.NullString
	var subIndex sql.NullInt64
	err := row.Scan(&it.ID, &it.Category, &other, &it.Details, &it.Status,
		&custodian, &location, &depositID, &subIndex,
		&foundLocation, &it.FoundAt, &finder,
		&it.HasPhoto, &it.CreatedAt, &it.UpdatedAt,
		&number, &it.DepositFoundAt, &locationName)
	if err != nil {
		return nil, err
	}
	it.OtherCategoryText = other.String
	it.CurrentCustodianUserID = custodian.String
	it.StorageLocationID = location.String
	it.DepositID = depositID.String
	it.DepositSubIndex = int(subIndex.Int64)
	it.FoundLocation = foundLocation.String
	it.FinderName = finder.String
	it.DepositNumber = number.String
	it.StorageLocation = locationName.String
	return it, nil
}

// GetItem returns an item by ID, with its cash entries if any.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.FoundItem, error) {
	it, err := scanItem(db.QueryRowContext(ctx, `SELECT `+itemColumns+itemJoins+` WHERE i.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	cash, err := getItemCash(ctx, db, id)
	if err != nil {
		return nil, err
	}
	it.Cash = cash
	return it, nil
}

func getItemCash(ctx context.Context, db *sql.DB, itemID string) (*model.ItemCash, error) {
	c := &model.ItemCash{}
	err := db.QueryRowContext(ctx,
		`SELECT currency FROM item_cash WHERE found_item_id = ?`, itemID,
	).Scan(&c.Currency)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item cash: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT value, count FROM item_cash_entries WHERE found_item_id = ? ORDER BY value DESC`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing cash entries: %w", err)
	}
	defer rows.Close()

	c.Entries = []model.CashEntry{}
	for rows.Next() {
		var e model.CashEntry
		if err := rows.Scan(&e.Value, &e.Count); err != nil {
			return nil, fmt.Errorf("scanning cash entry: %w", err)
		}
		c.Entries = append(c.Entries, e)
	}
	return c, rows.Err()
}

// itemSortColumns maps accepted sort keys to SQL expressions.
var itemSortColumns = map[string]string{
	"createdat":     "i.created_at",
	"category":      "i.category",
	"status":        "i.status",
	"details":       "i.details",
	"foundlocation": "COALESCE(i.found_location, d.found_location, '')",
	"foundat":       "COALESCE(i.found_at, d.found_at)",
	"depositnumber": "d.deposit_number",
}

// ListItems returns one page of items matching the filter and the total
// number of matches.
func ListItems(ctx context.Context, db *sql.DB, f model.ItemListFilter) (*model.ItemPage, error) {
	where := ` WHERE 1=1`
	var args []any

	if f.Status != "" {
		where += ` AND i.status = ?`
		args = append(args, f.Status)
	}
	if f.Category != "" {
		where += ` AND i.category = ?`
		args = append(args, f.Category)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + q + "%"
		where += ` AND (i.details LIKE ? OR COALESCE(i.found_location, d.found_location, '') LIKE ?
		                OR COALESCE(d.deposit_number, '') LIKE ?)`
		args = append(args, pattern, pattern, pattern)
	}
	if f.ExcludeClaimed {
		where += ` AND i.status <> ?`
		args = append(args, model.StatusClaimed)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*)`+itemJoins+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}

	sortCol, ok := itemSortColumns[strings.ToLower(f.SortBy)]
	if !ok {
		sortCol = itemSortColumns["createdat"]
	}
	dir := " ASC"
	if f.SortDesc {
		dir = " DESC"
	}

	page, size := pageBounds(f.Page, f.PageSize)

	query := `SELECT ` + itemColumns + itemJoins + where +
		` ORDER BY ` + sortCol + dir + `, i.id LIMIT ? OFFSET ?`
	args = append(args, size, (page-1)*size)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	result := &model.ItemPage{Items: []model.FoundItem{}, Total: total}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		result.Items = append(result.Items, *it)
	}
	return result, rows.Err()
}

// ListDisposalCandidates returns up to limit InStorage items, oldest first.
func ListDisposalCandidates(ctx context.Context, db *sql.DB, limit int) ([]model.FoundItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+itemJoins+`
		 WHERE i.status = ?
		 ORDER BY i.created_at, i.id
		 LIMIT ?`, model.StatusInStorage, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing disposal candidates: %w", err)
	}
	defer rows.Close()

	var items []model.FoundItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// SetItemPhoto stores a processed photo for an item.
func SetItemPhoto(ctx context.Context, db *sql.DB, id string, photo []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE found_items SET photo = ?, photo_mime = ?, updated_at = ? WHERE id = ?`,
		photo, mime, utcNow(), id,
	)
	if err != nil {
		return fmt.Errorf("setting item photo: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItemPhoto returns an item's photo and MIME type; nil data means none.
func GetItemPhoto(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM found_items WHERE id = ?`, id,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item photo: %w", err)
	}
	return photo, mime.String, nil
}

// GetItemsByIDs returns the requested items that exist, in request order.
func GetItemsByIDs(ctx context.Context, db *sql.DB, ids []string) ([]model.FoundItem, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []model.FoundItem{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+itemJoins+` WHERE i.id IN (`+placeholders(len(ids))+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("getting items: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.FoundItem, len(ids))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		byID[it.ID] = *it
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting items: %w", err)
	}

	items := make([]model.FoundItem, 0, len(byID))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			items = append(items, it)
		}
	}
	return items, nil
}
