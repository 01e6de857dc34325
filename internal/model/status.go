package model

import (
	"fmt"
	"strings"
)

// Status is the custody status of a found item.
type Status string

// Item statuses.
const (
	StatusReceived       Status = "Received"
	StatusInStorage      Status = "InStorage"
	StatusInTransit      Status = "InTransit"
	StatusTransferred    Status = "Transferred"
	StatusClaimed        Status = "Claimed"
	StatusReadyToDispose Status = "ReadyToDispose"
	StatusDisposed       Status = "Disposed"
	StatusDestroyed      Status = "Destroyed"
	StatusSold           Status = "Sold"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusReceived,
	StatusInStorage,
	StatusInTransit,
	StatusTransferred,
	StatusClaimed,
	StatusReadyToDispose,
	StatusDisposed,
	StatusDestroyed,
	StatusSold,
}

// IsTerminal reports whether no further transitions leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusClaimed, StatusDisposed, StatusDestroyed, StatusSold:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(v string) (Status, error) {
	for _, s := range Statuses {
		if strings.EqualFold(string(s), v) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", v)
}

// Action tags a custody ledger and audit log entry.
type Action string

// Ledger actions.
const (
	ActionReceive            Action = "Receive"
	ActionStore              Action = "Store"
	ActionStartTransit       Action = "StartTransit"
	ActionReceiveAtStorage   Action = "ReceiveAtStorage"
	ActionTransferToOffice   Action = "TransferToOffice"
	ActionReleaseToOwner     Action = "ReleaseToOwner"
	ActionDispose            Action = "Dispose"
	ActionDestroy            Action = "Destroy"
	ActionSell               Action = "Sell"
	ActionMarkReadyToDispose Action = "MarkReadyToDispose"
)

// Actions lists the ledger vocabulary.
var Actions = []Action{
	ActionReceive,
	ActionStore,
	ActionStartTransit,
	ActionReceiveAtStorage,
	ActionTransferToOffice,
	ActionReleaseToOwner,
	ActionDispose,
	ActionDestroy,
	ActionSell,
	ActionMarkReadyToDispose,
}

// Valid reports whether a is part of the ledger vocabulary.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}
