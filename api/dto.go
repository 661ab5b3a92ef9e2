/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

NUMBERS:
  Quantities and amounts are decimal.Decimal. They are written as JSON
  strings ("12.5") and accepted as either strings or numbers.

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required fields, date formats, enumerations). Numeric rules such as
  "quantity must be positive" live in the services, so they hold for every
  caller and not only HTTP ones.

SEE ALSO:
  - result.go: envelope and binding
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/order"
	"github.com/warp/distribution-ledger/transfer"
)

// =============================================================================
// ORDERS
// =============================================================================

type OrderRequest struct {
	OrgID         string `json:"org_id"`
	CustomerID    string `json:"customer_id" validate:"required"`
	RequestedDate string `json:"requested_date" validate:"required,datetime=2006-01-02"`
	Note          string `json:"note" validate:"max=500"`
}

type OrderItemRequest struct {
	ItemID      string          `json:"item_id" validate:"required"`
	WarehouseID string          `json:"warehouse_id" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Taxable     bool            `json:"taxable"`
}

type ReplaceItemsRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type DeliveryRequest struct {
	Vehicle      string          `json:"vehicle" validate:"max=50"`
	Driver       string          `json:"driver" validate:"max=50"`
	DeliveryAmt  decimal.Decimal `json:"delivery_amt"`
	DeliveryDate string          `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
}

type BatchRequest struct {
	OrderNos []string `json:"order_nos" validate:"required,min=1,dive,required"`
	DeliveryRequest
}

type OrderDTO struct {
	OrderNo        string          `json:"order_no"`
	OrgID          string          `json:"org_id"`
	CustomerID     string          `json:"customer_id"`
	RequestedDate  string          `json:"requested_date"`
	DeliveryStatus string          `json:"delivery_status"`
	PaymentStatus  string          `json:"payment_status"`
	DepositType    string          `json:"deposit_type"`
	TaxableAmt     decimal.Decimal `json:"taxable_amt"`
	TaxFreeAmt     decimal.Decimal `json:"tax_free_amt"`
	SupplyAmt      decimal.Decimal `json:"supply_amt"`
	VatAmt         decimal.Decimal `json:"vat_amt"`
	TotalAmt       decimal.Decimal `json:"total_amt"`
	TotalQty       decimal.Decimal `json:"total_qty"`
	Vehicle        string          `json:"vehicle,omitempty"`
	Driver         string          `json:"driver,omitempty"`
	DeliveryAmt    decimal.Decimal `json:"delivery_amt"`
	DeliveryDate   *string         `json:"delivery_date"`
	Note           string          `json:"note,omitempty"`
	Items          []OrderItemDTO  `json:"items,omitempty"`
}

type OrderItemDTO struct {
	ID            int64           `json:"id"`
	Line          int             `json:"line"`
	ItemID        string          `json:"item_id"`
	WarehouseID   string          `json:"warehouse_id"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      decimal.Decimal `json:"quantity"`
	Taxable       bool            `json:"taxable"`
	SupplyAmt     decimal.Decimal `json:"supply_amt"`
	VatAmt        decimal.Decimal `json:"vat_amt"`
	TotalAmt      decimal.Decimal `json:"total_amt"`
	ReturnableQty decimal.Decimal `json:"returnable_qty"`
}

func toOrderDTO(o ledger.Order, items []ledger.OrderItem) OrderDTO {
	dto := OrderDTO{
		OrderNo:        string(o.OrderNo),
		OrgID:          string(o.OrgID),
		CustomerID:     string(o.CustomerID),
		RequestedDate:  formatDate(o.RequestedDate),
		DeliveryStatus: string(o.DeliveryStatus),
		PaymentStatus:  string(o.PaymentStatus),
		DepositType:    string(o.DepositType),
		TaxableAmt:     o.TaxableAmt,
		TaxFreeAmt:     o.TaxFreeAmt,
		SupplyAmt:      o.SupplyAmt,
		VatAmt:         o.VatAmt,
		TotalAmt:       o.TotalAmt,
		TotalQty:       o.TotalQty,
		Vehicle:        o.Vehicle,
		Driver:         o.Driver,
		DeliveryAmt:    o.DeliveryAmt,
		DeliveryDate:   formatDatePtr(o.DeliveryDate),
		Note:           o.Note,
	}
	for _, it := range items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:            it.ID,
			Line:          it.Line,
			ItemID:        string(it.ItemID),
			WarehouseID:   string(it.WarehouseID),
			UnitPrice:     it.UnitPrice,
			Quantity:      it.Quantity,
			Taxable:       it.Taxable,
			SupplyAmt:     it.SupplyAmt,
			VatAmt:        it.VatAmt,
			TotalAmt:      it.TotalAmt,
			ReturnableQty: it.ReturnableQty,
		})
	}
	return dto
}

func (req DeliveryRequest) info() (order.DeliveryInfo, error) {
	date, err := optionalDate("delivery_date", req.DeliveryDate)
	if err != nil {
		return order.DeliveryInfo{}, err
	}
	return order.DeliveryInfo{
		Vehicle:     req.Vehicle,
		Driver:      req.Driver,
		DeliveryAmt: req.DeliveryAmt,
		Date:        date,
	}, nil
}

// =============================================================================
// STOCK / CLOSINGS
// =============================================================================

type OpenStockRequest struct {
	OrgID        string          `json:"org_id"`
	WarehouseID  string          `json:"warehouse_id" validate:"required"`
	ItemID       string          `json:"item_id" validate:"required"`
	Date         string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	SafeQuantity decimal.Decimal `json:"safe_quantity"`
}

type AdjustStockRequest struct {
	OrgID       string          `json:"org_id"`
	WarehouseID string          `json:"warehouse_id" validate:"required"`
	ItemID      string          `json:"item_id" validate:"required"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Note        string          `json:"note" validate:"max=500"`
}

type SetActualRequest struct {
	ActualQuantity  decimal.Decimal `json:"actual_quantity"`
	ActualUnitPrice decimal.Decimal `json:"actual_unit_price"`
}

type ToggleClosingRequest struct {
	WarehouseID string `json:"warehouse_id" validate:"required"`
	Period      string `json:"period" validate:"required,datetime=2006-01"`
	Actor       string `json:"actor" validate:"required"`
}

type StockEntryDTO struct {
	ID            string          `json:"id"`
	WarehouseID   string          `json:"warehouse_id"`
	ItemID        string          `json:"item_id"`
	Date          string          `json:"date"`
	Type          string          `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Amount        decimal.Decimal `json:"amount"`
	Note          string          `json:"note,omitempty"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	ReferenceLine int64           `json:"reference_line,omitempty"`
	ReversesID    string          `json:"reverses_id,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

func toStockEntryDTO(e ledger.StockEntry) StockEntryDTO {
	return StockEntryDTO{
		ID:            e.ID,
		WarehouseID:   string(e.WarehouseID),
		ItemID:        string(e.ItemID),
		Date:          formatDate(e.Date),
		Type:          string(e.Type),
		Quantity:      e.Quantity,
		UnitPrice:     e.UnitPrice,
		Amount:        e.Amount,
		Note:          e.Note,
		ReferenceType: string(e.Reference.Type),
		ReferenceID:   e.Reference.ID,
		ReferenceLine: e.Reference.Line,
		ReversesID:    e.ReversesID,
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type WarehouseItemDTO struct {
	WarehouseID     string          `json:"warehouse_id"`
	ItemID          string          `json:"item_id"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	SafeQuantity    decimal.Decimal `json:"safe_quantity"`
	BelowSafe       bool            `json:"below_safe"`
}

func toWarehouseItemDTO(wi ledger.WarehouseItem) WarehouseItemDTO {
	return WarehouseItemDTO{
		WarehouseID:     string(wi.WarehouseID),
		ItemID:          string(wi.ItemID),
		CurrentQuantity: wi.CurrentQuantity,
		SafeQuantity:    wi.SafeQuantity,
		BelowSafe:       wi.BelowSafe(),
	}
}

type ClosingDTO struct {
	Code            string          `json:"code"`
	WarehouseID     string          `json:"warehouse_id"`
	ItemID          string          `json:"item_id"`
	Period          string          `json:"period"`
	OpeningQuantity decimal.Decimal `json:"opening_quantity"`
	OpeningAmount   decimal.Decimal `json:"opening_amount"`
	InQuantity      decimal.Decimal `json:"in_quantity"`
	InAmount        decimal.Decimal `json:"in_amount"`
	OutQuantity     decimal.Decimal `json:"out_quantity"`
	OutAmount       decimal.Decimal `json:"out_amount"`
	CalQuantity     decimal.Decimal `json:"cal_quantity"`
	CalAmount       decimal.Decimal `json:"cal_amount"`
	ActualQuantity  decimal.Decimal `json:"actual_quantity"`
	ActualUnitPrice decimal.Decimal `json:"actual_unit_price"`
	ActualAmount    decimal.Decimal `json:"actual_amount"`
	DiffQuantity    decimal.Decimal `json:"diff_quantity"`
	DiffAmount      decimal.Decimal `json:"diff_amount"`
	Counted         bool            `json:"counted"`
	IsClosed        bool            `json:"is_closed"`
	ClosedAt        *string         `json:"closed_at"`
	ClosedBy        string          `json:"closed_by,omitempty"`
}

func toClosingDTO(c ledger.MonthlyClosing) ClosingDTO {
	return ClosingDTO{
		Code:            c.Code,
		WarehouseID:     string(c.WarehouseID),
		ItemID:          string(c.ItemID),
		Period:          c.Period.String(),
		OpeningQuantity: c.OpeningQuantity,
		OpeningAmount:   c.OpeningAmount,
		InQuantity:      c.InQuantity,
		InAmount:        c.InAmount,
		OutQuantity:     c.OutQuantity,
		OutAmount:       c.OutAmount,
		CalQuantity:     c.CalQuantity,
		CalAmount:       c.CalAmount,
		ActualQuantity:  c.ActualQuantity,
		ActualUnitPrice: c.ActualUnitPrice,
		ActualAmount:    c.ActualAmount,
		DiffQuantity:    c.DiffQuantity,
		DiffAmount:      c.DiffAmount,
		Counted:         c.Counted,
		IsClosed:        c.IsClosed,
		ClosedAt:        formatTimePtr(c.ClosedAt),
		ClosedBy:        c.ClosedBy,
	}
}

// =============================================================================
// TRANSFERS
// =============================================================================

type TransferLineRequest struct {
	ItemID    string          `json:"item_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type TransferRequest struct {
	OrgID         string                `json:"org_id"`
	Date          string                `json:"date" validate:"omitempty,datetime=2006-01-02"`
	FromWarehouse string                `json:"from_warehouse" validate:"required"`
	ToWarehouse   string                `json:"to_warehouse" validate:"required,nefield=FromWarehouse"`
	Note          string                `json:"note" validate:"max=500"`
	Lines         []TransferLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (req TransferRequest) input() (transfer.TransferInput, error) {
	date, err := optionalDate("date", req.Date)
	if err != nil {
		return transfer.TransferInput{}, err
	}
	in := transfer.TransferInput{
		OrgID: ledger.OrgID(req.OrgID),
		Date:  date,
		From:  ledger.WarehouseID(req.FromWarehouse),
		To:    ledger.WarehouseID(req.ToWarehouse),
		Note:  req.Note,
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, transfer.LineInput{
			ItemID:    ledger.ItemID(l.ItemID),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return in, nil
}

type TransferLineDTO struct {
	Line      int             `json:"line"`
	ItemID    string          `json:"item_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

type TransferDTO struct {
	Code          string            `json:"code"`
	Date          string            `json:"date"`
	FromWarehouse string            `json:"from_warehouse"`
	ToWarehouse   string            `json:"to_warehouse"`
	Note          string            `json:"note,omitempty"`
	Lines         []TransferLineDTO `json:"lines"`
}

func toTransferDTO(t ledger.WarehouseTransfer) TransferDTO {
	dto := TransferDTO{
		Code:          t.Code,
		Date:          formatDate(t.Date),
		FromWarehouse: string(t.FromWarehouse),
		ToWarehouse:   string(t.ToWarehouse),
		Note:          t.Note,
		Lines:         make([]TransferLineDTO, 0, len(t.Items)),
	}
	for _, it := range t.Items {
		dto.Lines = append(dto.Lines, TransferLineDTO{
			Line:      it.Line,
			ItemID:    string(it.ItemID),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Amount:    it.Amount,
		})
	}
	return dto
}

// =============================================================================
// CUSTOMERS / BALANCE
// =============================================================================

type CreateCustomerRequest struct {
	ID             string          `json:"id" validate:"required,max=50"`
	OrgID          string          `json:"org_id"`
	Name           string          `json:"name" validate:"required,max=100"`
	DepositType    string          `json:"deposit_type" validate:"required,oneof=prepaid postpaid"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type PostingRequest struct {
	Date   string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note" validate:"max=500"`
}

type OverwriteRequest struct {
	Balance decimal.Decimal `json:"balance"`
	Note    string          `json:"note" validate:"max=500"`
}

type CustomerDTO struct {
	ID          string          `json:"id"`
	OrgID       string          `json:"org_id"`
	Name        string          `json:"name"`
	DepositType string          `json:"deposit_type"`
	Balance     decimal.Decimal `json:"balance"`
}

func toCustomerDTO(c ledger.Customer) CustomerDTO {
	return CustomerDTO{
		ID:          string(c.ID),
		OrgID:       string(c.OrgID),
		Name:        c.Name,
		DepositType: string(c.DepositType),
		Balance:     c.Balance,
	}
}

type BalanceEntryDTO struct {
	ID            string          `json:"id"`
	Date          string          `json:"date"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id"`
	ReversesID    string          `json:"reverses_id,omitempty"`
	Note          string          `json:"note,omitempty"`
}

func toBalanceEntryDTO(e ledger.BalanceEntry) BalanceEntryDTO {
	return BalanceEntryDTO{
		ID:            e.ID,
		Date:          formatDate(e.Date),
		Type:          string(e.Type),
		Amount:        e.Amount,
		BalanceAfter:  e.BalanceAfter,
		ReferenceType: string(e.Reference.Type),
		ReferenceID:   e.Reference.ID,
		ReversesID:    e.ReversesID,
		Note:          e.Note,
	}
}

type PostingDTO struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
	Note       string          `json:"note,omitempty"`
	EntryID    string          `json:"entry_id"`
}

func toPostingDTO(p ledger.BalancePosting) PostingDTO {
	return PostingDTO{
		ID:         p.ID,
		Kind:       string(p.Kind),
		CustomerID: string(p.CustomerID),
		Amount:     p.Amount,
		Date:       formatDate(p.Date),
		Note:       p.Note,
		EntryID:    p.EntryID,
	}
}

// =============================================================================
// RETURNS
// =============================================================================

type RegisterReturnRequest struct {
	OrderItemID int64           `json:"order_item_id" validate:"required,gt=0"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      string          `json:"reason" validate:"max=500"`
}

type UpdateReturnRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason" validate:"max=500"`
}

type ApproveReturnRequest struct {
	Actor string `json:"actor" validate:"required"`
}

type ReturnDTO struct {
	ID          string          `json:"id"`
	OrderNo     string          `json:"order_no"`
	OrderItemID int64           `json:"order_item_id"`
	ItemID      string          `json:"item_id"`
	CustomerID  string          `json:"customer_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	SupplyAmt   decimal.Decimal `json:"supply_amt"`
	VatAmt      decimal.Decimal `json:"vat_amt"`
	TotalAmt    decimal.Decimal `json:"total_amt"`
	Status      string          `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	ApprovedAt  *string         `json:"approved_at"`
	ApprovedBy  string          `json:"approved_by,omitempty"`
}

func toReturnDTO(r ledger.Return) ReturnDTO {
	return ReturnDTO{
		ID:          r.ID,
		OrderNo:     string(r.OrderNo),
		OrderItemID: r.OrderItemID,
		ItemID:      string(r.ItemID),
		CustomerID:  string(r.CustomerID),
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		SupplyAmt:   r.SupplyAmt,
		VatAmt:      r.VatAmt,
		TotalAmt:    r.TotalAmt,
		Status:      string(r.Status),
		Reason:      r.Reason,
		ApprovedAt:  formatTimePtr(r.ApprovedAt),
		ApprovedBy:  r.ApprovedBy,
	}
}

// =============================================================================
// HOLIDAYS / SCENARIOS
// =============================================================================

type HolidayRequest struct {
	OrgID     string `json:"org_id"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Name      string `json:"name" validate:"required,max=100"`
	Recurring bool   `json:"recurring"`
}

type HolidayDTO struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

func toHolidayDTO(h ledger.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:        h.ID,
		OrgID:     string(h.OrgID),
		Date:      formatDate(h.Date),
		Name:      h.Name,
		Recurring: h.Recurring,
	}
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}
