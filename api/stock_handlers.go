package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/stock"
)

// =============================================================================
// STOCK HANDLERS
// =============================================================================

// OpenStock registers an item in a warehouse with its opening count.
func (h *Handler) OpenStock(w http.ResponseWriter, r *http.Request) {
	var req OpenStockRequest
	if !h.bind(w, r, &req) {
		return
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		h.writeError(w, r, "OpenStock", err)
		return
	}
	entry, err := h.Stock.OpenStock(r.Context(), stock.OpenInput{
		OrgID:        ledger.OrgID(req.OrgID),
		Warehouse:    ledger.WarehouseID(req.WarehouseID),
		Item:         ledger.ItemID(req.ItemID),
		Date:         date,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		SafeQuantity: req.SafeQuantity,
	})
	if err != nil {
		h.writeError(w, r, "OpenStock", err)
		return
	}
	if entry == nil {
		writeOK(w, http.StatusCreated, nil)
		return
	}
	writeOK(w, http.StatusCreated, toStockEntryDTO(*entry))
}

// AdjustStock books a signed manual correction.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if !h.bind(w, r, &req) {
		return
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		h.writeError(w, r, "AdjustStock", err)
		return
	}
	entry, err := h.Stock.Adjust(r.Context(), stock.AdjustInput{
		OrgID:     ledger.OrgID(req.OrgID),
		Warehouse: ledger.WarehouseID(req.WarehouseID),
		Item:      ledger.ItemID(req.ItemID),
		Date:      date,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Note:      req.Note,
	})
	if err != nil {
		h.writeError(w, r, "AdjustStock", err)
		return
	}
	writeOK(w, http.StatusCreated, toStockEntryDTO(*entry))
}

// StockHistory lists stock entries filtered by warehouse_id, item_id,
// type, from, to and limit.
func (h *Handler) StockHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.StockEntryFilter{
		WarehouseID: ledger.WarehouseID(q.Get("warehouse_id")),
		ItemID:      ledger.ItemID(q.Get("item_id")),
	}
	for _, t := range q["type"] {
		mt := ledger.MovementType(t)
		if !mt.Valid() {
			h.writeError(w, r, "StockHistory", ledger.Invalid("type", "unknown movement type %q", t))
			return
		}
		f.Types = append(f.Types, mt)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, r, "StockHistory", ledger.Invalid("limit", "must be a non-negative integer"))
			return
		}
		f.Limit = n
	}
	var err error
	if f.From, err = dateParam(r, "from"); err != nil {
		h.writeError(w, r, "StockHistory", err)
		return
	}
	if f.To, err = dateParam(r, "to"); err != nil {
		h.writeError(w, r, "StockHistory", err)
		return
	}

	entries, err := h.Stock.History(r.Context(), f)
	if err != nil {
		h.writeError(w, r, "StockHistory", err)
		return
	}
	dtos := make([]StockEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toStockEntryDTO(e)
	}
	writeOK(w, http.StatusOK, dtos)
}

// WarehouseItems returns the current quantity of every item in a warehouse.
func (h *Handler) WarehouseItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Stock.WarehouseItems(r.Context(), ledger.WarehouseID(chi.URLParam(r, "warehouse")))
	if err != nil {
		h.writeError(w, r, "WarehouseItems", err)
		return
	}
	dtos := make([]WarehouseItemDTO, len(items))
	for i, wi := range items {
		dtos[i] = toWarehouseItemDTO(wi)
	}
	writeOK(w, http.StatusOK, dtos)
}

// VerifyStock replays the ledger of one item and compares it with the
// current quantity.
func (h *Handler) VerifyStock(w http.ResponseWriter, r *http.Request) {
	wh := ledger.WarehouseID(chi.URLParam(r, "warehouse"))
	item := ledger.ItemID(chi.URLParam(r, "item"))
	if err := h.Stock.Verify(r.Context(), wh, item); err != nil {
		h.writeError(w, r, "VerifyStock", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]bool{"consistent": true})
}

// =============================================================================
// CLOSING HANDLERS
// =============================================================================

// ClosingSnapshot lists the closing rows of ?warehouse_id= for ?period=YYYY-MM.
func (h *Handler) ClosingSnapshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	wh := q.Get("warehouse_id")
	if wh == "" {
		h.writeError(w, r, "ClosingSnapshot", ledger.Invalid("warehouse_id", "required"))
		return
	}
	ym, err := ledger.ParseYearMonth(q.Get("period"))
	if err != nil {
		h.writeError(w, r, "ClosingSnapshot", err)
		return
	}
	rows, err := h.Stock.Snapshot(r.Context(), ledger.WarehouseID(wh), ym)
	if err != nil {
		h.writeError(w, r, "ClosingSnapshot", err)
		return
	}
	dtos := make([]ClosingDTO, len(rows))
	for i, c := range rows {
		dtos[i] = toClosingDTO(c)
	}
	writeOK(w, http.StatusOK, dtos)
}

// SetActual records a physical count on a closing row.
func (h *Handler) SetActual(w http.ResponseWriter, r *http.Request) {
	var req SetActualRequest
	if !h.bind(w, r, &req) {
		return
	}
	c, err := h.Stock.SetActual(r.Context(), chi.URLParam(r, "code"), req.ActualQuantity, req.ActualUnitPrice)
	if err != nil {
		h.writeError(w, r, "SetActual", err)
		return
	}
	writeOK(w, http.StatusOK, toClosingDTO(*c))
}

// ToggleClosing locks or unlocks a warehouse period.
func (h *Handler) ToggleClosing(w http.ResponseWriter, r *http.Request) {
	var req ToggleClosingRequest
	if !h.bind(w, r, &req) {
		return
	}
	ym, err := ledger.ParseYearMonth(req.Period)
	if err != nil {
		h.writeError(w, r, "ToggleClosing", err)
		return
	}
	closed, err := h.Stock.ToggleClosing(r.Context(), ledger.WarehouseID(req.WarehouseID), ym, req.Actor)
	if err != nil {
		h.writeError(w, r, "ToggleClosing", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"warehouse_id": req.WarehouseID,
		"period":       ym.String(),
		"is_closed":    closed,
	})
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

// CreateTransfer moves stock between two warehouses as one document.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.bind(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.writeError(w, r, "CreateTransfer", err)
		return
	}
	t, err := h.Transfers.Transfer(r.Context(), in)
	if err != nil {
		h.writeError(w, r, "CreateTransfer", err)
		return
	}
	writeOK(w, http.StatusCreated, toTransferDTO(*t))
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	t, err := h.Transfers.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, "GetTransfer", err)
		return
	}
	writeOK(w, http.StatusOK, toTransferDTO(*t))
}

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	from, err := dateParam(r, "from")
	if err != nil {
		h.writeError(w, r, "ListTransfers", err)
		return
	}
	to, err := dateParam(r, "to")
	if err != nil {
		h.writeError(w, r, "ListTransfers", err)
		return
	}
	list, err := h.Transfers.List(r.Context(), from, to)
	if err != nil {
		h.writeError(w, r, "ListTransfers", err)
		return
	}
	dtos := make([]TransferDTO, len(list))
	for i, t := range list {
		dtos[i] = toTransferDTO(t)
	}
	writeOK(w, http.StatusOK, dtos)
}
