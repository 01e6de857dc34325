package model

import "time"

// Capability names one operator permission flag.
type Capability string

// Capabilities checked by the API before attempting an operation.
const (
	CapHandoverOwner   Capability = "handoverOwner"
	CapHandoverOffice  Capability = "handoverOffice"
	CapTransferStorage Capability = "transferStorage"
	CapReceiveStorage  Capability = "receiveStorage"
	CapDispose         Capability = "dispose"
	CapDestroy         Capability = "destroy"
	CapSell            Capability = "sell"
)

// Permissions is the set of capability flags granted to a role.
type Permissions struct {
	RoleName        string    `json:"roleName"`
	HandoverOwner   bool      `json:"handoverOwner"`
	HandoverOffice  bool      `json:"handoverOffice"`
	TransferStorage bool      `json:"transferStorage"`
	ReceiveStorage  bool      `json:"receiveStorage"`
	Dispose         bool      `json:"dispose"`
	Destroy         bool      `json:"destroy"`
	Sell            bool      `json:"sell"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// AllPermissions grants every capability to role.
func AllPermissions(role string) Permissions {
	return Permissions{
		RoleName:        role,
		HandoverOwner:   true,
		HandoverOffice:  true,
		TransferStorage: true,
		ReceiveStorage:  true,
		Dispose:         true,
		Destroy:         true,
		Sell:            true,
	}
}

// Has reports whether the capability is granted.
func (p Permissions) Has(c Capability) bool {
	switch c {
	case CapHandoverOwner:
		return p.HandoverOwner
	case CapHandoverOffice:
		return p.HandoverOffice
	case CapTransferStorage:
		return p.TransferStorage
	case CapReceiveStorage:
		return p.ReceiveStorage
	case CapDispose:
		return p.Dispose
	case CapDestroy:
		return p.Destroy
	case CapSell:
		return p.Sell
	}
	return false
}
