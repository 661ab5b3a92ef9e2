/*
store.go - Persistence contracts for the distribution ledger

PURPOSE:
  Defines the interface between the orchestrators and the database. Each
  concern gets its own narrow interface so a component only depends on
  the tables it touches; Store composes them all.

KEY INTERFACES:
  StockStore:    stock entries + warehouse item projection
  ClosingStore:  monthly closing snapshot rows
  CustomerStore: customer directory + balance projection
  BalanceStore:  balance entries + manual postings
  OrderStore:    orders and their lines
  TransferStore: warehouse transfers
  ReturnStore:   return documents
  HolidayStore:  delivery calendar
  TxStore:       Store + WithTx

APPEND-ONLY CONTRACT:
  Stock and balance entries have no Update or Delete. Corrections are
  reversal entries. The single exception is the inventory_count record,
  which is upserted once per (warehouse, item, period).

PROJECTIONS:
  CurrentQuantity and Balance are only ever changed through
  compare-and-set methods. A CAS that finds a different value than the
  caller read returns ErrConcurrentModification, which rolls the
  surrounding transaction back.

MISSING ROWS:
  Get* methods return (nil, nil) when the row does not exist. Callers
  decide whether that is a NotFound.

SEE ALSO:
  - store/sqlite: the implementation
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STOCK
// =============================================================================

type StockStore interface {
	AppendStockEntry(ctx context.Context, e StockEntry) error
	GetStockEntry(ctx context.Context, id string) (*StockEntry, error)
	ListStockEntries(ctx context.Context, f StockEntryFilter) ([]StockEntry, error)

	// ListStockEntriesByReference returns every entry of a source document,
	// reversals included, oldest first.
	ListStockEntriesByReference(ctx context.Context, refType ReferenceType, refID string) ([]StockEntry, error)

	// IsStockEntryReversed reports whether a reversal pointing at id exists.
	IsStockEntryReversed(ctx context.Context, id string) (bool, error)

	// UpsertCountEntry writes the inventory_count record, replacing an
	// earlier one with the same ID.
	UpsertCountEntry(ctx context.Context, e StockEntry) error

	GetWarehouseItem(ctx context.Context, wh WarehouseID, item ItemID) (*WarehouseItem, error)
	CreateWarehouseItem(ctx context.Context, wi WarehouseItem) error
	ListWarehouseItems(ctx context.Context, wh WarehouseID) ([]WarehouseItem, error)

	// CompareAndSetQuantity moves CurrentQuantity from old to new.
	CompareAndSetQuantity(ctx context.Context, wh WarehouseID, item ItemID, old, new decimal.Decimal) error
}

// =============================================================================
// MONTHLY CLOSING
// =============================================================================

type ClosingStore interface {
	GetClosing(ctx context.Context, code string) (*MonthlyClosing, error)

	// LatestClosingBefore returns the most recent row for (wh, item) whose
	// period is strictly before ym.
	LatestClosingBefore(ctx context.Context, wh WarehouseID, item ItemID, ym YearMonth) (*MonthlyClosing, error)

	// SaveClosing inserts or replaces the row identified by c.Code.
	SaveClosing(ctx context.Context, c MonthlyClosing) error
	ListClosings(ctx context.Context, wh WarehouseID, ym YearMonth) ([]MonthlyClosing, error)

	// SetClosed flips the lock for every row of (wh, ym) and returns the
	// number of rows touched.
	SetClosed(ctx context.Context, wh WarehouseID, ym YearMonth, closed bool, at *time.Time, by string) (int64, error)
	IsPeriodClosed(ctx context.Context, wh WarehouseID, ym YearMonth) (bool, error)
}

// =============================================================================
// CUSTOMERS + BALANCE
// =============================================================================

// CustomerStore is the customer directory the engine reads from.
type CustomerStore interface {
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
	SaveCustomer(ctx context.Context, c Customer) error
	ListCustomers(ctx context.Context, org OrgID) ([]Customer, error)
	CompareAndSetBalance(ctx context.Context, id CustomerID, old, new decimal.Decimal) error
}

type BalanceStore interface {
	AppendBalanceEntry(ctx context.Context, e BalanceEntry) error
	GetBalanceEntry(ctx context.Context, id string) (*BalanceEntry, error)
	ListBalanceEntries(ctx context.Context, customer CustomerID, from, to time.Time) ([]BalanceEntry, error)
	ListBalanceEntriesByReference(ctx context.Context, refType ReferenceType, refID string) ([]BalanceEntry, error)
	IsBalanceEntryReversed(ctx context.Context, id string) (bool, error)

	SavePosting(ctx context.Context, p BalancePosting) error
	GetPosting(ctx context.Context, id string) (*BalancePosting, error)
	DeletePosting(ctx context.Context, id string) error
	ListPostings(ctx context.Context, customer CustomerID, kind PostingKind) ([]BalancePosting, error)
}

// =============================================================================
// ORDERS
// =============================================================================

type OrderStore interface {
	CreateOrder(ctx context.Context, o Order) error
	UpdateOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, no OrderNo) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	DeleteOrder(ctx context.Context, no OrderNo) error

	// LatestOrderNo returns the highest order number starting with prefix,
	// or "" when there is none.
	LatestOrderNo(ctx context.Context, prefix string) (OrderNo, error)

	// InsertOrderItem stores a line and returns its generated ID.
	InsertOrderItem(ctx context.Context, it OrderItem) (int64, error)
	DeleteOrderItems(ctx context.Context, no OrderNo) error
	ListOrderItems(ctx context.Context, no OrderNo) ([]OrderItem, error)
	GetOrderItem(ctx context.Context, id int64) (*OrderItem, error)
	SetReturnableQty(ctx context.Context, id int64, qty decimal.Decimal) error
}

// =============================================================================
// TRANSFERS / RETURNS / HOLIDAYS
// =============================================================================

type TransferStore interface {
	// CreateTransfer writes the header and its lines; line IDs are ignored.
	CreateTransfer(ctx context.Context, t WarehouseTransfer) error
	GetTransfer(ctx context.Context, code string) (*WarehouseTransfer, error)
	ListTransfers(ctx context.Context, from, to time.Time) ([]WarehouseTransfer, error)
	LatestTransferCode(ctx context.Context, prefix string) (string, error)
}

type ReturnStore interface {
	SaveReturn(ctx context.Context, r Return) error
	GetReturn(ctx context.Context, id string) (*Return, error)
	DeleteReturn(ctx context.Context, id string) error
	ListReturns(ctx context.Context, f ReturnFilter) ([]Return, error)
}

type HolidayStore interface {
	HolidayCalendar
	SaveHoliday(ctx context.Context, h Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context, org OrgID) ([]Holiday, error)
}

// =============================================================================
// STORE / TXSTORE
// =============================================================================

// Store is everything the engine persists.
type Store interface {
	StockStore
	ClosingStore
	CustomerStore
	BalanceStore
	OrderStore
	TransferStore
	ReturnStore
	HolidayStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	// Only the Store handed to fn may be used inside it.
	WithTx(ctx context.Context, fn func(Store) error) error
}
