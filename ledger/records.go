package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STOCK
// =============================================================================

// StockEntry is one immutable stock ledger row. Quantity and Amount are
// signed: negative leaves the warehouse, positive arrives.
type StockEntry struct {
	ID          string
	OrgID       OrgID
	WarehouseID WarehouseID
	ItemID      ItemID
	Date        time.Time
	Type        MovementType
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	Note        string
	Reference   Reference
	ReversesID  string // set on reversal entries
	CreatedAt   time.Time
}

func (e StockEntry) IsReversal() bool { return e.ReversesID != "" }

// WarehouseItem is the current-quantity projection for (warehouse, item).
type WarehouseItem struct {
	WarehouseID     WarehouseID
	ItemID          ItemID
	CurrentQuantity decimal.Decimal
	SafeQuantity    decimal.Decimal // reorder threshold, informational
	UpdatedAt       time.Time
}

// BelowSafe reports whether the item has dropped under its reorder threshold.
func (wi WarehouseItem) BelowSafe() bool {
	return wi.SafeQuantity.IsPositive() && wi.CurrentQuantity.LessThan(wi.SafeQuantity)
}

// StockEntryFilter selects stock history. Zero fields are ignored.
type StockEntryFilter struct {
	WarehouseID WarehouseID
	ItemID      ItemID
	From        time.Time
	To          time.Time
	Types       []MovementType
	Limit       int
}

// =============================================================================
// MONTHLY CLOSING
// =============================================================================

// MonthlyClosing is the per-(warehouse, item, month) stock snapshot.
type MonthlyClosing struct {
	Code            string
	WarehouseID     WarehouseID
	ItemID          ItemID
	Period          YearMonth
	OpeningQuantity decimal.Decimal
	OpeningAmount   decimal.Decimal
	InQuantity      decimal.Decimal
	InAmount        decimal.Decimal
	OutQuantity     decimal.Decimal
	OutAmount       decimal.Decimal
	CalQuantity     decimal.Decimal
	CalAmount       decimal.Decimal
	ActualQuantity  decimal.Decimal
	ActualUnitPrice decimal.Decimal
	ActualAmount    decimal.Decimal
	DiffQuantity    decimal.Decimal
	DiffAmount      decimal.Decimal
	Counted         bool
	IsClosed        bool
	ClosedAt        *time.Time
	ClosedBy        string
	UpdatedAt       time.Time
}

// ClosingCode is the stable identifier of a closing row.
func ClosingCode(wh WarehouseID, item ItemID, ym YearMonth) string {
	return fmt.Sprintf("%s-%s-%s", wh, item, ym.Compact())
}

// Recompute refreshes the calculated and difference columns.
func (c *MonthlyClosing) Recompute() {
	c.CalQuantity = c.OpeningQuantity.Add(c.InQuantity).Sub(c.OutQuantity)
	c.CalAmount = c.OpeningAmount.Add(c.InAmount).Sub(c.OutAmount)
	if c.Counted {
		c.DiffQuantity = c.ActualQuantity.Sub(c.CalQuantity)
		c.DiffAmount = c.ActualAmount.Sub(c.CalAmount)
	}
}

// ClosingPosition is what the next period opens with: the counted stock
// when a recount was recorded, the calculated stock otherwise.
func (c MonthlyClosing) ClosingPosition() (decimal.Decimal, decimal.Decimal) {
	if c.Counted {
		return c.ActualQuantity, c.ActualAmount
	}
	return c.CalQuantity, c.CalAmount
}

// =============================================================================
// CUSTOMER BALANCE
// =============================================================================

type Customer struct {
	ID          CustomerID
	OrgID       OrgID
	Name        string
	DepositType DepositType
	Balance     decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BalanceEntry is one immutable balance ledger row. Amount is the magnitude;
// Type says which way it moved the balance.
type BalanceEntry struct {
	ID           string
	CustomerID   CustomerID
	Date         time.Time
	Type         BalanceEntryType
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Reference    Reference
	ReversesID   string
	Note         string
	CreatedAt    time.Time
}

// Effect is the signed change this entry made to the balance.
func (e BalanceEntry) Effect() decimal.Decimal {
	if e.Type == BalanceWithdrawal {
		return e.Amount.Neg()
	}
	return e.Amount
}

// BalancePosting is a manual deposit or adjustment document. EntryID points
// at the ledger entry currently carrying its effect.
type BalancePosting struct {
	ID         string
	Kind       PostingKind
	CustomerID CustomerID
	Amount     decimal.Decimal // signed: positive credits the customer
	Date       time.Time
	Note       string
	EntryID    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// ORDERS
// =============================================================================

type Order struct {
	OrderNo        OrderNo
	OrgID          OrgID
	CustomerID     CustomerID
	RequestedDate  time.Time
	DeliveryStatus DeliveryStatus
	PaymentStatus  PaymentStatus
	DepositType    DepositType
	TaxableAmt     decimal.Decimal
	TaxFreeAmt     decimal.Decimal
	SupplyAmt      decimal.Decimal
	VatAmt         decimal.Decimal
	TotalAmt       decimal.Decimal
	TotalQty       decimal.Decimal
	Vehicle        string
	Driver         string
	DeliveryAmt    decimal.Decimal
	DeliveryDate   *time.Time
	Note           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type OrderItem struct {
	ID            int64
	OrderNo       OrderNo
	Line          int
	ItemID        ItemID
	WarehouseID   WarehouseID
	UnitPrice     decimal.Decimal
	Quantity      decimal.Decimal
	Taxable       bool
	SupplyAmt     decimal.Decimal
	VatAmt        decimal.Decimal
	TotalAmt      decimal.Decimal
	ReturnableQty decimal.Decimal
}

type OrderFilter struct {
	CustomerID CustomerID
	Status     DeliveryStatus
	From       time.Time
	To         time.Time
	Limit      int
}

// =============================================================================
// WAREHOUSE TRANSFER
// =============================================================================

type WarehouseTransfer struct {
	Code          string
	OrgID         OrgID
	Date          time.Time
	FromWarehouse WarehouseID
	ToWarehouse   WarehouseID
	Note          string
	Items         []WarehouseTransferItem
	CreatedAt     time.Time
}

type WarehouseTransferItem struct {
	ID           int64
	TransferCode string
	Line         int
	ItemID       ItemID
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Amount       decimal.Decimal
}

// =============================================================================
// RETURNS
// =============================================================================

type Return struct {
	ID          string
	OrderNo     OrderNo
	OrderItemID int64
	ItemID      ItemID
	CustomerID  CustomerID
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	SupplyAmt   decimal.Decimal
	VatAmt      decimal.Decimal
	TotalAmt    decimal.Decimal
	Status      ReturnStatus
	Reason      string
	ApprovedAt  *time.Time
	ApprovedBy  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ReturnFilter struct {
	OrderNo    OrderNo
	CustomerID CustomerID
	Status     ReturnStatus
	From       time.Time
	To         time.Time
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holiday blocks deliveries on a date.
type Holiday struct {
	ID        string
	OrgID     OrgID // empty = global
	Date      time.Time
	Name      string
	Recurring bool // same month/day every year
}
