package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erazemk/najdeno/internal/model"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func seedLocation(t *testing.T, database *sql.DB) *model.StorageLocation {
	t.Helper()
	loc, err := CreateStorageLocation(context.Background(), database, "Central depot", "Main street 1", "")
	if err != nil {
		t.Fatalf("CreateStorageLocation: %v", err)
	}
	return loc
}

func seedDeposit(t *testing.T, database *sql.DB, now time.Time, items ...string) *model.Deposit {
	t.Helper()
	if len(items) == 0 {
		items = []string{"Umbrella"}
	}
	in := NewDeposit{CustodianUserID: "1", FinderName: "Finder"}
	for _, d := range items {
		in.Items = append(in.Items, NewDepositItem{Category: "Accessories", Details: d})
	}
	dep, err := CreateDeposit(context.Background(), database, now, in)
	if err != nil {
		t.Fatalf("CreateDeposit: %v", err)
	}
	return dep
}

// forceStatus puts an item into status directly, bypassing the custody rules.
func forceStatus(t *testing.T, database *sql.DB, id string, status model.Status) {
	t.Helper()
	_, err := database.Exec(`UPDATE found_items SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		t.Fatalf("forcing status: %v", err)
	}
}

func itemStatus(t *testing.T, database *sql.DB, id string) model.Status {
	t.Helper()
	item, err := GetItem(context.Background(), database, id)
	if err != nil || item == nil {
		t.Fatalf("GetItem(%s) = %v, %v", id, item, err)
	}
	return item.Status
}

func countLedger(t *testing.T, database *sql.DB, id string) (custody, audit int) {
	t.Helper()
	if err := database.QueryRow(`SELECT COUNT(*) FROM custody_logs WHERE found_item_id = ?`, id).Scan(&custody); err != nil {
		t.Fatal(err)
	}
	if err := database.QueryRow(`SELECT COUNT(*) FROM item_audit_logs WHERE found_item_id = ?`, id).Scan(&audit); err != nil {
		t.Fatal(err)
	}
	return custody, audit
}
