package model

import "time"

// DepositDocument is a rendered report stored alongside a deposit.
type DepositDocument struct {
	ID        string    `json:"id"`
	DepositID string    `json:"depositId"`
	FileName  string    `json:"fileName"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	Type      string    `json:"type,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	Bytes []byte `json:"-"`
}

// DocumentTypeDepositReport tags the receipt printed at deposit time.
const DocumentTypeDepositReport = "DepositReport"
