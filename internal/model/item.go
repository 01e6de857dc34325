package model

import "time"

// FoundItem is one physical object tracked through its custody lifecycle.
type FoundItem struct {
	ID                     string     `json:"id"`
	Category               string     `json:"category"`
	OtherCategoryText      string     `json:"otherCategoryText,omitempty"`
	Details                string     `json:"details"`
	Status                 Status     `json:"status"`
	CurrentCustodianUserID string     `json:"currentCustodianUserId,omitempty"`
	StorageLocationID      string     `json:"storageLocationId,omitempty"`
	DepositID              string     `json:"depositId,omitempty"`
	DepositSubIndex        int        `json:"depositSubIndex,omitempty"`
	FoundLocation          string     `json:"foundLocation,omitempty"`
	FoundAt                *time.Time `json:"foundAt,omitempty"`
	FinderName             string     `json:"finderName,omitempty"`
	HasPhoto               bool       `json:"hasPhoto"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`

	// Joined fields (not always populated).
	DepositNumber   string     `json:"depositNumber,omitempty"`
	DepositFoundAt  *time.Time `json:"-"`
	StorageLocation string     `json:"storageLocation,omitempty"`
	Cash            *ItemCash  `json:"cash,omitempty"`
}

// RetentionBasis returns the instant retention is counted from: the
// discovery time if known, otherwise the creation time.
func (i *FoundItem) RetentionBasis() time.Time {
	if i.FoundAt != nil {
		return *i.FoundAt
	}
	if i.DepositFoundAt != nil {
		return *i.DepositFoundAt
	}
	return i.CreatedAt
}

// CategoryOther marks an item whose category is given as free text.
const CategoryOther = "Other"

// CategoryCash marks an item that carries denomination entries.
const CategoryCash = "Cash"

// ItemListFilter narrows ListItems.
type ItemListFilter struct {
	Status         Status
	Category       string
	Query          string
	ExcludeClaimed bool
	SortBy         string
	SortDesc       bool
	Page           int
	PageSize       int
}

// ItemPage is one page of a filtered item listing.
type ItemPage struct {
	Items []FoundItem `json:"items"`
	Total int         `json:"total"`
}
