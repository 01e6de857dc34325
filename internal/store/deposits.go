package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/najdeno/internal/metrics"
	"github.com/erazemk/najdeno/internal/model"
)

// serialAttempts bounds the read-propose-insert cycle of CreateDeposit.
const serialAttempts = 3

// serialBackoff is the base delay between allocation attempts; attempt n
// waits n times this long.
var serialBackoff = 50 * time.Millisecond

// errSerialTaken reports that a concurrent writer inserted the proposed
// (year, serial) first.
var errSerialTaken = errors.New("deposit serial taken")

// NewDeposit holds the fields of a deposit creation request.
type NewDeposit struct {
	CustodianUserID   string
	FinderName        string
	FinderAddress     string
	FinderEmail       string
	FinderPhone       string
	FinderIDNumber    string
	FoundLocation     string
	FoundAt           *time.Time
	LicensePlate      string
	BusLine           string
	Driver            string
	StorageLocationID string
	Items             []NewDepositItem
}

// NewDepositItem is one item surrendered with a deposit.
type NewDepositItem struct {
	Category          string
	OtherCategoryText string
	Details           string
	Cash              *model.ItemCash
}

// maxSerial returns the highest serial used in year, or 0. Tests replace it
// to simulate losing the allocation race.
var maxSerial = func(ctx context.Context, q querier, year int) (int, error) {
	var max sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT MAX(serial) FROM deposits WHERE year = ?`, year,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("reading max serial: %w", err)
	}
	return int(max.Int64), nil
}

// CreateDeposit allocates the next deposit number for the year of now and
// stores the deposit together with its items, all in status InStorage.
//
// Allocation is optimistic: the current maximum serial is read, max+1 is
// proposed and the insert relies on the (year, serial) unique index. A lost
// race is retried up to serialAttempts times with a linearly growing delay;
// after that ErrSerialConflict is returned.
func CreateDeposit(ctx context.Context, db *sql.DB, now time.Time, in NewDeposit) (*model.Deposit, error) {
	if err := validateNewDeposit(in); err != nil {
		return nil, err
	}
	if in.StorageLocationID != "" {
		if _, err := requireActiveLocation(ctx, db, in.StorageLocationID); err != nil {
			return nil, err
		}
	}

	year := now.Year()
	for attempt := 1; attempt <= serialAttempts; attempt++ {
		current, err := maxSerial(ctx, db, year)
		if err != nil {
			return nil, err
		}

		id, err := insertDeposit(ctx, db, now, year, current+1, in)
		if errors.Is(err, errSerialTaken) {
			metrics.SerialConflicts.Inc()
			slog.Warn("deposit serial conflict", "year", year, "serial", current+1, "attempt", attempt)
			if attempt < serialAttempts {
				time.Sleep(serialBackoff * time.Duration(attempt))
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.DepositsCreated.Inc()
		return GetDeposit(ctx, db, id)
	}

	return nil, ErrSerialConflict
}

func validateNewDeposit(in NewDeposit) error {
	if len(in.Items) == 0 {
		return invalid("no items provided")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.Category) == "" {
			return invalid("item %d: category required", i+1)
		}
		if strings.TrimSpace(it.Details) == "" {
			return invalid("item %d: details required", i+1)
		}
		if it.Category == model.CategoryOther && strings.TrimSpace(it.OtherCategoryText) == "" {
			return invalid("item %d: category text required for %q", i+1, model.CategoryOther)
		}
		if it.Cash != nil {
			if !strings.EqualFold(it.Category, model.CategoryCash) {
				return invalid("item %d: cash entries require category %q", i+1, model.CategoryCash)
			}
			if err := validateCash(*it.Cash); err != nil {
				return invalid("item %d: %v", i+1, err)
			}
		}
	}
	return nil
}

func validateCash(c model.ItemCash) error {
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code")
	}
	for _, e := range c.Entries {
		if e.Value <= 0 || e.Count < 0 {
			return fmt.Errorf("denomination value must be positive and count non-negative")
		}
	}
	return nil
}

// insertDeposit writes one allocation attempt. It returns errSerialTaken when
// the proposed serial is already used; no rows survive in that case.
func insertDeposit(ctx context.Context, db *sql.DB, now time.Time, year, serial int, in NewDeposit) (string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	created := now.UTC()
	id := uuid.NewString()
	number := model.FormatDepositNumber(year, serial)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO deposits (id, year, serial, deposit_number, created_at, custodian_user_id,
		        finder_name, finder_address, finder_email, finder_phone, finder_id_number,
		        found_location, found_at, license_plate, bus_line, driver, storage_location_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, year, serial, number, created, nullString(in.CustodianUserID),
		nullString(in.FinderName), nullString(in.FinderAddress), nullString(in.FinderEmail),
		nullString(in.FinderPhone), nullString(in.FinderIDNumber),
		nullString(in.FoundLocation), nullTime(in.FoundAt), nullString(strings.TrimSpace(in.LicensePlate)),
		nullString(in.BusLine), nullString(in.Driver), nullString(in.StorageLocationID),
	)
	if isUniqueViolation(err) {
		return "", errSerialTaken
	}
	if err != nil {
		return "", fmt.Errorf("inserting deposit: %w", err)
	}

	actor := in.CustodianUserID
	if actor == "" {
		actor = model.RoleSystem
	}
	notes := "Deposited via " + number

	for i, it := range in.Items {
		itemID := uuid.NewString()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO found_items (id, category, other_category_text, details, status,
			        current_custodian_user_id, storage_location_id, deposit_id, deposit_sub_index,
			        created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			itemID, it.Category, nullString(it.OtherCategoryText), it.Details, model.StatusInStorage,
			nullString(in.CustodianUserID), nullString(in.StorageLocationID), id, i+1,
			created, created,
		)
		if err != nil {
			return "", fmt.Errorf("inserting item %d: %w", i+1, err)
		}

		if it.Cash != nil {
			if err := insertCash(ctx, tx, itemID, *it.Cash); err != nil {
				return "", err
			}
		}

		entry := ledgerEntry{
			ItemID:     itemID,
			Action:     model.ActionReceive,
			Actor:      actor,
			OccurredAt: created,
			Notes:      notes,
			Details:    notes,
		}
		if err := appendLedger(ctx, tx, entry, created); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing deposit: %w", err)
	}
	return id, nil
}

func insertCash(ctx context.Context, q querier, itemID string, c model.ItemCash) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO item_cash (found_item_id, currency) VALUES (?, ?)`,
		itemID, strings.ToUpper(c.Currency),
	)
	if err != nil {
		return fmt.Errorf("inserting item cash: %w", err)
	}
	for _, e := range c.Entries {
		if e.Count == 0 {
			continue
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO item_cash_entries (found_item_id, value, count) VALUES (?, ?, ?)`,
			itemID, e.Value, e.Count,
		)
		if err != nil {
			return fmt.Errorf("inserting cash entry: %w", err)
		}
	}
	return nil
}

const depositColumns = `id, year, serial, deposit_number, created_at, custodian_user_id,
	finder_name, finder_address, finder_email, finder_phone, finder_id_number,
	found_location, found_at, license_plate, bus_line, driver, storage_location_id`

func scanDeposit(row interface{ Scan(...any) error }) (*model.Deposit, error) {
	d := &model.Deposit{}
	var custodian, finderName, finderAddress, finderEmail, finderPhone, finderID sql.NullString
	var foundLocation, plate, line, driver, location sql.NullString
	err := row.Scan(&d.ID, &d.Year, &d.Serial, &d.DepositNumber, &d.CreatedAt, &custodian,
		&finderName, &finderAddress, &finderEmail, &finderPhone, &finderID,
		&foundLocation, &d.FoundAt, &plate, &line, &driver, &location)
	if err != nil {
		return nil, err
	}
	d.CustodianUserID = custodian.String
	d.FinderName = finderName.String
	d.FinderAddress = finderAddress.String
	d.FinderEmail = finderEmail.String
	d.FinderPhone = finderPhone.String
	d.FinderIDNumber = finderID.String
	d.FoundLocation = foundLocation.String
	d.LicensePlate = plate.String
	d.BusLine = line.String
	d.Driver = driver.String
	d.StorageLocationID = location.String
	return d, nil
}

// GetDeposit returns a deposit and its items ordered by sub-index.
func GetDeposit(ctx context.Context, db *sql.DB, id string) (*model.Deposit, error) {
	d, err := scanDeposit(db.QueryRowContext(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting deposit: %w", err)
	}
	return withDepositItems(ctx, db, d)
}

// GetDepositByNumber returns a deposit by its deposit number.
func GetDepositByNumber(ctx context.Context, db *sql.DB, number string) (*model.Deposit, error) {
	d, err := scanDeposit(db.QueryRowContext(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE deposit_number = ?`, number))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting deposit by number: %w", err)
	}
	return withDepositItems(ctx, db, d)
}

func withDepositItems(ctx context.Context, db *sql.DB, d *model.Deposit) (*model.Deposit, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, deposit_sub_index, category, other_category_text, details, status
		 FROM found_items WHERE deposit_id = ? ORDER BY deposit_sub_index`, d.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing deposit items: %w", err)
	}
	defer rows.Close()

	d.Items = []model.DepositItem{}
	for rows.Next() {
		var it model.DepositItem
		var other sql.NullString
		if err := rows.Scan(&it.ID, &it.SubIndex, &it.Category, &other, &it.Details, &it.Status); err != nil {
			return nil, fmt.Errorf("scanning deposit item: %w", err)
		}
		it.OtherCategoryText = other.String
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing deposit items: %w", err)
	}
	return d, nil
}

// ListDeposits returns deposits of a year (all years when year is 0), newest
// first, without their items.
func ListDeposits(ctx context.Context, db *sql.DB, year int) ([]model.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits`
	var args []any
	if year > 0 {
		query += ` WHERE year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY year DESC, serial DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing deposits: %w", err)
	}
	defer rows.Close()

	var deposits []model.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning deposit: %w", err)
		}
		deposits = append(deposits, *d)
	}
	return deposits, rows.Err()
}
