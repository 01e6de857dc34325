package model

import "time"

// CustodyLog is an append-only record of one custody event.
type CustodyLog struct {
	ID          int64     `json:"id"`
	FoundItemID string    `json:"foundItemId"`
	Action      Action    `json:"actionType"`
	ActorUserID string    `json:"actorUserId"`
	Timestamp   time.Time `json:"timestamp"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ItemAuditLog is the admin-facing record of the same events.
type ItemAuditLog struct {
	ID                int64     `json:"id"`
	FoundItemID       string    `json:"foundItemId"`
	Action            Action    `json:"action"`
	PerformedByUserID string    `json:"performedByUserId"`
	PerformedByEmail  string    `json:"performedByEmail,omitempty"`
	Details           string    `json:"details,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
	CreatedAt         time.Time `json:"createdAt"`
}

// AuditFilter narrows an audit log query. PerformedBy matches a substring of
// the performer's user ID or email. Zero values are ignored.
type AuditFilter struct {
	ItemID      string
	Action      Action
	PerformedBy string
	Since       time.Time
	Until       time.Time
	Page        int
	PageSize    int
}

// AuditPage is one page of item audit entries and the total match count.
type AuditPage struct {
	Items []ItemAuditLog `json:"items"`
	Total int            `json:"total"`
}

// OwnerClaim records the release of an item to its owner.
type OwnerClaim struct {
	ID               int64     `json:"id"`
	FoundItemID      string    `json:"foundItemId"`
	OwnerName        string    `json:"ownerName"`
	OwnerAddress     string    `json:"ownerAddress"`
	OwnerEmail       string    `json:"ownerEmail,omitempty"`
	OwnerPhone       string    `json:"ownerPhone,omitempty"`
	OwnerIDNumber    string    `json:"ownerIdNumber,omitempty"`
	ReleasedAt       time.Time `json:"releasedAt"`
	ReleasedByUserID string    `json:"releasedByUserId"`
}

// OwnerDetails identifies the person an item is released to.
type OwnerDetails struct {
	Name     string `json:"ownerName"`
	Address  string `json:"ownerAddress"`
	Email    string `json:"ownerEmail,omitempty"`
	Phone    string `json:"ownerPhone,omitempty"`
	IDNumber string `json:"ownerIdNumber,omitempty"`
}
