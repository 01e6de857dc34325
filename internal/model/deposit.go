package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Deposit is a single intake event at which one or more items were surrendered.
// DepositNumber is always derived from Year and Serial.
type Deposit struct {
	ID                string     `json:"id"`
	Year              int        `json:"year"`
	Serial            int        `json:"serial"`
	DepositNumber     string     `json:"depositNumber"`
	CreatedAt         time.Time  `json:"createdAt"`
	CustodianUserID   string     `json:"custodianUserId,omitempty"`
	FinderName        string     `json:"finderName,omitempty"`
	FinderAddress     string     `json:"finderAddress,omitempty"`
	FinderEmail       string     `json:"finderEmail,omitempty"`
	FinderPhone       string     `json:"finderPhone,omitempty"`
	FinderIDNumber    string     `json:"finderIdNumber,omitempty"`
	FoundLocation     string     `json:"foundLocation,omitempty"`
	FoundAt           *time.Time `json:"foundAt,omitempty"`
	LicensePlate      string     `json:"licensePlate,omitempty"`
	BusLine           string     `json:"busLine,omitempty"`
	Driver            string     `json:"driver,omitempty"`
	StorageLocationID string     `json:"storageLocationId,omitempty"`

	Items []DepositItem `json:"items"`
}

// DepositItem is the per-item view returned with a deposit.
type DepositItem struct {
	ID                string `json:"id"`
	SubIndex          int    `json:"subIndex"`
	Category          string `json:"category"`
	OtherCategoryText string `json:"otherCategoryText,omitempty"`
	Details           string `json:"details"`
	Status            Status `json:"status"`
}

// ItemCash records the banknotes and coins surrendered as a cash item.
type ItemCash struct {
	Currency string      `json:"currency"`
	Entries  []CashEntry `json:"entries"`
}

// CashEntry is a count of one denomination. Value is in minor units.
type CashEntry struct {
	Value int64 `json:"value"`
	Count int   `json:"count"`
}

// Total returns the cash amount in minor units.
func (c ItemCash) Total() int64 {
	var total int64
	for _, e := range c.Entries {
		total += e.Value * int64(e.Count)
	}
	return total
}

// FormatDepositNumber derives the human-readable deposit number.
func FormatDepositNumber(year, serial int) string {
	return fmt.Sprintf("%d-%04d", year, serial)
}

// ParseDepositNumber splits a deposit number back into year and serial.
func ParseDepositNumber(number string) (year, serial int, err error) {
	y, s, ok := strings.Cut(number, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid deposit number %q", number)
	}
	year, err = strconv.Atoi(y)
	if err != nil || year <= 0 {
		return 0, 0, fmt.Errorf("invalid deposit year in %q", number)
	}
	serial, err = strconv.Atoi(s)
	if err != nil || serial <= 0 || len(s) < 4 {
		return 0, 0, fmt.Errorf("invalid deposit serial in %q", number)
	}
	if FormatDepositNumber(year, serial) != number {
		return 0, 0, fmt.Errorf("non-canonical deposit number %q", number)
	}
	return year, serial, nil
}
