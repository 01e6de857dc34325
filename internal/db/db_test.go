package db

import (
	"path/filepath"
	"testing"
)

func TestMigrateFreshDatabase(t *testing.T) {
	database := NewTestDB(t)

	tables := []string{
		"users", "settings", "revoked_tokens", "role_permissions", "storage_locations",
		"deposits", "found_items", "item_cash", "item_cash_entries", "custody_logs",
		"item_audit_logs", "owner_claims", "deposit_documents", "role_audit_logs", "schema_migrations",
	}
	for _, table := range tables {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	database := NewTestDB(t)

	if err := Migrate(database); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := CheckMigrations(database); err != nil {
		t.Errorf("CheckMigrations after migrate: %v", err)
	}
}

func TestCheckMigrationsFreshDatabase(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "fresh.sqlite3"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	if err := CheckMigrations(database); err == nil {
		t.Error("expected error for unmigrated database")
	}
}

func TestDepositNumberCheckConstraint(t *testing.T) {
	database := NewTestDB(t)

	_, err := database.Exec(
		`INSERT INTO deposits (id, year, serial, deposit_number, created_at)
		 VALUES ('d1', 2025, 8, '2025-0009', '2025-01-01 00:00:00')`,
	)
	if err == nil {
		t.Error("expected check constraint to reject mismatched deposit number")
	}

	_, err = database.Exec(
		`INSERT INTO deposits (id, year, serial, deposit_number, created_at)
		 VALUES ('d2', 2025, 8, '2025-0008', '2025-01-01 00:00:00')`,
	)
	if err != nil {
		t.Fatalf("inserting canonical deposit: %v", err)
	}

	_, err = database.Exec(
		`INSERT INTO deposits (id, year, serial, deposit_number, created_at)
		 VALUES ('d3', 2025, 8, '2025-0008', '2025-01-01 00:00:00')`,
	)
	if err == nil {
		t.Error("expected unique constraint to reject duplicate (year, serial)")
	}
}

func TestLedgerTablesAreAppendOnly(t *testing.T) {
	database := NewTestDB(t)

	mustExec := func(q string, args ...any) {
		t.Helper()
		if _, err := database.Exec(q, args...); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}

	mustExec(`INSERT INTO found_items (id, category, details, status, created_at, updated_at)
	          VALUES ('i1', 'Bag', 'black', 'InStorage', '2025-01-01 00:00:00', '2025-01-01 00:00:00')`)
	mustExec(`INSERT INTO custody_logs (found_item_id, action_type, actor_user_id, timestamp, created_at)
	          VALUES ('i1', 'Receive', 'ana', '2025-01-01 00:00:00', '2025-01-01 00:00:00')`)
	mustExec(`INSERT INTO item_audit_logs (found_item_id, action, performed_by_user_id, occurred_at, created_at)
	          VALUES ('i1', 'Receive', 'ana', '2025-01-01 00:00:00', '2025-01-01 00:00:00')`)

	for _, q := range []string{
		`UPDATE custody_logs SET notes = 'changed'`,
		`DELETE FROM custody_logs`,
		`UPDATE item_audit_logs SET details = 'changed'`,
		`DELETE FROM item_audit_logs`,
	} {
		if _, err := database.Exec(q); err == nil {
			t.Errorf("%q succeeded, want append-only rejection", q)
		}
	}
}
