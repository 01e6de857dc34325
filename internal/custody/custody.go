// Package custody defines the found-item state machine: which operations may be
// applied to an item in a given status, the status they produce, and the ledger
// action they record.
package custody

import (
	"fmt"
	"slices"

	"github.com/erazemk/najdeno/internal/model"
)

// Operation is a custody operation an operator (or the scanner) can request.
type Operation string

// Operations.
const (
	OpStore              Operation = "store"
	OpStartTransit       Operation = "start-transit"
	OpReceiveAtStorage   Operation = "receive-storage"
	OpTransferToOffice   Operation = "handover-office"
	OpReleaseToOwner     Operation = "handover-owner"
	OpDispose            Operation = "dispose"
	OpDestroy            Operation = "destroy"
	OpSell               Operation = "sell"
	OpMarkReadyToDispose Operation = "mark-ready-to-dispose"
)

// Rule describes one row of the transition table.
type Rule struct {
	Operation Operation
	From      []model.Status
	To        model.Status
	Action    model.Action
}

var nonTerminal = []model.Status{
	model.StatusReceived,
	model.StatusInStorage,
	model.StatusInTransit,
	model.StatusTransferred,
	model.StatusReadyToDispose,
}

var rules = map[Operation]Rule{
	OpStore: {
		Operation: OpStore,
		From:      nonTerminal,
		To:        model.StatusInStorage,
		Action:    model.ActionStore,
	},
	OpStartTransit: {
		Operation: OpStartTransit,
		From:      nonTerminal,
		To:        model.StatusInTransit,
		Action:    model.ActionStartTransit,
	},
	OpReceiveAtStorage: {
		Operation: OpReceiveAtStorage,
		From:      []model.Status{model.StatusInTransit},
		To:        model.StatusInStorage,
		Action:    model.ActionReceiveAtStorage,
	},
	OpTransferToOffice: {
		Operation: OpTransferToOffice,
		From:      nonTerminal,
		To:        model.StatusTransferred,
		Action:    model.ActionTransferToOffice,
	},
	OpReleaseToOwner: {
		Operation: OpReleaseToOwner,
		From:      nonTerminal,
		To:        model.StatusClaimed,
		Action:    model.ActionReleaseToOwner,
	},
	OpDispose: {
		Operation: OpDispose,
		From:      nonTerminal,
		To:        model.StatusDisposed,
		Action:    model.ActionDispose,
	},
	OpDestroy: {
		Operation: OpDestroy,
		From:      nonTerminal,
		To:        model.StatusDestroyed,
		Action:    model.ActionDestroy,
	},
	OpSell: {
		Operation: OpSell,
		From:      nonTerminal,
		To:        model.StatusSold,
		Action:    model.ActionSell,
	},
	OpMarkReadyToDispose: {
		Operation: OpMarkReadyToDispose,
		From:      []model.Status{model.StatusInStorage},
		To:        model.StatusReadyToDispose,
		Action:    model.ActionMarkReadyToDispose,
	},
}

// Operations lists every operation in table order.
var Operations = []Operation{
	OpStore,
	OpStartTransit,
	OpReceiveAtStorage,
	OpTransferToOffice,
	OpReleaseToOwner,
	OpDispose,
	OpDestroy,
	OpSell,
	OpMarkReadyToDispose,
}

// Lookup returns the rule for op.
func Lookup(op Operation) (Rule, bool) {
	r, ok := rules[op]
	return r, ok
}

// ParseOperation resolves an operation name.
func ParseOperation(name string) (Operation, error) {
	op := Operation(name)
	if _, ok := rules[op]; !ok {
		return "", fmt.Errorf("unknown operation %q", name)
	}
	return op, nil
}

// Allows reports whether op may be applied to an item in status current.
func (r Rule) Allows(current model.Status) bool {
	return slices.Contains(r.From, current)
}

// InvalidStatusError is returned when an item's current status does not admit
// the requested operation.
type InvalidStatusError struct {
	ItemID    string
	Operation Operation
	Status    model.Status
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("item %s: cannot %s: invalid status: %s", e.ItemID, e.Operation, e.Status)
}

// Reason is the short per-item failure text reported to operators.
func (e *InvalidStatusError) Reason() string {
	return "Invalid status: " + string(e.Status)
}

// Check validates that op may be applied to the item. It returns the rule to
// apply, or an *InvalidStatusError.
func Check(op Operation, itemID string, current model.Status) (Rule, error) {
	r, ok := rules[op]
	if !ok {
		return Rule{}, fmt.Errorf("unknown operation %q", op)
	}
	if !r.Allows(current) {
		return Rule{}, &InvalidStatusError{ItemID: itemID, Operation: op, Status: current}
	}
	return r, nil
}

// Capability returns the operator permission required to request op. The
// second result is false for operations no operator permission gates.
func Capability(op Operation) (model.Capability, bool) {
	switch op {
	case OpStore, OpStartTransit:
		return model.CapTransferStorage, true
	case OpReceiveAtStorage:
		return model.CapReceiveStorage, true
	case OpTransferToOffice:
		return model.CapHandoverOffice, true
	case OpReleaseToOwner:
		return model.CapHandoverOwner, true
	case OpDispose:
		return model.CapDispose, true
	case OpDestroy:
		return model.CapDestroy, true
	case OpSell:
		return model.CapSell, true
	}
	return "", false
}
