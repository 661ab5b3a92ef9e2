/*
Package ledger holds the records, enumerations, errors and store contracts
shared by every part of the distribution ledger engine.

PURPOSE:
  The engine keeps four derived numeric states consistent as orders move
  through their lifecycle: warehouse stock, the monthly closing snapshot,
  the stock movement log and the customer balance log. This package knows
  nothing about HOW those states change; it only defines WHAT they are.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: type-safe IDs for warehouses, items, customers, orders
  - Enumerations: closed string types with Valid() and transition tables
  - Reference: back-link from a ledger entry to the document that caused it

DESIGN PRINCIPLES:
  1. Append-only: stock and balance entries are never edited, only reversed
  2. Precision: decimal.Decimal for every quantity and amount
  3. Closed enums: any state transition not listed is rejected

SEE ALSO:
  - records.go: persisted records
  - errors.go: error kinds
  - store.go: persistence contracts
*/
package ledger

import "fmt"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OrgID string
type WarehouseID string
type ItemID string
type CustomerID string
type OrderNo string

// =============================================================================
// DELIVERY STATUS - Order state machine
// =============================================================================

type DeliveryStatus string

const (
	DeliveryRequested  DeliveryStatus = "requested"
	DeliveryInProgress DeliveryStatus = "in_delivery"
	DeliveryCompleted  DeliveryStatus = "completed"
)

// OrderAction names an operation that moves an order between states.
type OrderAction string

const (
	ActionStartDelivery    OrderAction = "start_delivery"
	ActionCancelDelivery   OrderAction = "cancel_delivery"
	ActionCompleteDelivery OrderAction = "complete_delivery"
	ActionEditHeader       OrderAction = "edit_header"
	ActionReplaceItems     OrderAction = "replace_items"
	ActionDelete           OrderAction = "delete"
)

// orderTransitions lists every permitted (from, action) pair and the state it
// leads to. Edits and deletion keep (or end) the current state.
var orderTransitions = map[DeliveryStatus]map[OrderAction]DeliveryStatus{
	DeliveryRequested: {
		ActionStartDelivery:    DeliveryInProgress,
		ActionCompleteDelivery: DeliveryCompleted,
		ActionEditHeader:       DeliveryRequested,
		ActionReplaceItems:     DeliveryRequested,
		ActionDelete:           DeliveryRequested,
	},
	DeliveryInProgress: {
		ActionCancelDelivery:   DeliveryRequested,
		ActionCompleteDelivery: DeliveryCompleted,
	},
	DeliveryCompleted: {},
}

func (s DeliveryStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Next returns the state reached by applying action, or a TransitionError.
func (s DeliveryStatus) Next(action OrderAction) (DeliveryStatus, error) {
	next, ok := orderTransitions[s][action]
	if !ok {
		return s, &TransitionError{Subject: "order", From: string(s), Action: string(action)}
	}
	return next, nil
}

// =============================================================================
// PAYMENT STATUS / DEPOSIT TYPE
// =============================================================================

type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "unpaid"
	PaymentCompleted PaymentStatus = "completed"
)

func (p PaymentStatus) Valid() bool {
	return p == PaymentUnpaid || p == PaymentCompleted
}

// DepositType is the billing mode of a customer.
type DepositType string

const (
	DepositPrepaid  DepositType = "prepaid"  // balance charged on order
	DepositPostpaid DepositType = "postpaid" // accrues as receivable
)

func (d DepositType) Valid() bool {
	return d == DepositPrepaid || d == DepositPostpaid
}

// =============================================================================
// RETURN STATUS
// =============================================================================

type ReturnStatus string

const (
	ReturnUnapproved ReturnStatus = "unapproved"
	ReturnApproved   ReturnStatus = "approved"
)

type ReturnAction string

const (
	ReturnActionUpdate  ReturnAction = "update"
	ReturnActionDelete  ReturnAction = "delete"
	ReturnActionApprove ReturnAction = "approve"
)

var returnTransitions = map[ReturnStatus]map[ReturnAction]ReturnStatus{
	ReturnUnapproved: {
		ReturnActionUpdate:  ReturnUnapproved,
		ReturnActionDelete:  ReturnUnapproved,
		ReturnActionApprove: ReturnApproved,
	},
	ReturnApproved: {},
}

func (s ReturnStatus) Valid() bool {
	_, ok := returnTransitions[s]
	return ok
}

func (s ReturnStatus) Next(action ReturnAction) (ReturnStatus, error) {
	next, ok := returnTransitions[s][action]
	if !ok {
		return s, &TransitionError{Subject: "return", From: string(s), Action: string(action)}
	}
	return next, nil
}

// =============================================================================
// MOVEMENT TYPE - Stock ledger entry kinds
// =============================================================================

type MovementType string

const (
	MoveOpening        MovementType = "opening"         // first registration of a warehouse item
	MoveOrderOut       MovementType = "order_out"       // delivery dispatch
	MoveTransferOut    MovementType = "transfer_out"    // leaves the source warehouse
	MoveTransferIn     MovementType = "transfer_in"     // arrives at the destination warehouse
	MoveAdjustment     MovementType = "adjustment"      // manual correction
	MoveReversal       MovementType = "reversal"        // undo of a previous entry
	MoveInventoryCount MovementType = "inventory_count" // physical recount record, not a movement
)

func (m MovementType) Valid() bool {
	switch m {
	case MoveOpening, MoveOrderOut, MoveTransferOut, MoveTransferIn,
		MoveAdjustment, MoveReversal, MoveInventoryCount:
		return true
	}
	return false
}

// Moves reports whether entries of this type change the current quantity.
func (m MovementType) Moves() bool {
	return m != MoveInventoryCount
}

// =============================================================================
// BALANCE ENTRY TYPE
// =============================================================================

type BalanceEntryType string

const (
	BalanceDeposit    BalanceEntryType = "deposit"
	BalanceWithdrawal BalanceEntryType = "withdrawal"
)

func (t BalanceEntryType) Valid() bool {
	return t == BalanceDeposit || t == BalanceWithdrawal
}

// Opposite returns the type that undoes t.
func (t BalanceEntryType) Opposite() BalanceEntryType {
	if t == BalanceDeposit {
		return BalanceWithdrawal
	}
	return BalanceDeposit
}

// PostingKind distinguishes the manual balance documents.
type PostingKind string

const (
	PostingDeposit    PostingKind = "deposit"
	PostingAdjustment PostingKind = "adjustment"
)

// =============================================================================
// REFERENCE - Link from a ledger entry back to its source document
// =============================================================================

type ReferenceType string

const (
	RefOrder      ReferenceType = "order"
	RefTransfer   ReferenceType = "transfer"
	RefAdjustment ReferenceType = "adjustment"
	RefDeposit    ReferenceType = "deposit"
	RefOverwrite  ReferenceType = "overwrite"
	RefOpening    ReferenceType = "opening"
	RefCount      ReferenceType = "count"
)

type Reference struct {
	Type ReferenceType
	ID   string
	Line int64 // order item or transfer line; 0 when not line-scoped
}

func (r Reference) String() string {
	if r.Line != 0 {
		return fmt.Sprintf("%s:%s#%d", r.Type, r.ID, r.Line)
	}
	return fmt.Sprintf("%s:%s", r.Type, r.ID)
}
