package model

import (
	"testing"
	"time"
)

func TestFormatDepositNumber(t *testing.T) {
	tests := []struct {
		year, serial int
		want         string
	}{
		{2025, 1, "2025-0001"},
		{2025, 8, "2025-0008"},
		{2025, 123, "2025-0123"},
		{2026, 9999, "2026-9999"},
		{2026, 12345, "2026-12345"},
	}

	for _, tt := range tests {
		if got := FormatDepositNumber(tt.year, tt.serial); got != tt.want {
			t.Errorf("FormatDepositNumber(%d, %d) = %q, want %q", tt.year, tt.serial, got, tt.want)
		}
	}
}

func TestParseDepositNumber(t *testing.T) {
	year, serial, err := ParseDepositNumber("2025-0042")
	if err != nil {
		t.Fatalf("ParseDepositNumber: %v", err)
	}
	if year != 2025 || serial != 42 {
		t.Errorf("got (%d, %d), want (2025, 42)", year, serial)
	}

	for _, bad := range []string{"", "2025", "2025-42", "x-0001", "2025-0000", "2025-00042", "-2025-0001"} {
		if _, _, err := ParseDepositNumber(bad); err == nil {
			t.Errorf("ParseDepositNumber(%q) expected error", bad)
		}
	}
}

func TestItemCashTotal(t *testing.T) {
	c := ItemCash{Currency: "EUR", Entries: []CashEntry{{Value: 2000, Count: 3}, {Value: 50, Count: 4}}}
	if got := c.Total(); got != 6200 {
		t.Errorf("Total() = %d, want 6200", got)
	}
}

func TestRetentionBasis(t *testing.T) {
	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	depositFound := time.Date(2025, 4, 20, 8, 0, 0, 0, time.UTC)
	itemFound := time.Date(2025, 4, 18, 8, 0, 0, 0, time.UTC)

	item := FoundItem{CreatedAt: created}
	if got := item.RetentionBasis(); !got.Equal(created) {
		t.Errorf("basis without found time = %v, want %v", got, created)
	}

	item.DepositFoundAt = &depositFound
	if got := item.RetentionBasis(); !got.Equal(depositFound) {
		t.Errorf("basis with deposit found time = %v, want %v", got, depositFound)
	}

	item.FoundAt = &itemFound
	if got := item.RetentionBasis(); !got.Equal(itemFound) {
		t.Errorf("basis with item found time = %v, want %v", got, itemFound)
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusClaimed:   true,
		StatusDisposed:  true,
		StatusDestroyed: true,
		StatusSold:      true,
	}
	for _, s := range Statuses {
		if s.IsTerminal() != terminal[s] {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, s.IsTerminal(), terminal[s])
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("instorage")
	if err != nil || s != StatusInStorage {
		t.Errorf("ParseStatus(instorage) = %q, %v", s, err)
	}
	if _, err := ParseStatus("lost"); err == nil {
		t.Error("expected error for unknown status")
	}
}
