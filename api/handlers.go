/*
handlers.go - HTTP API handlers for the distribution ledger

PURPOSE:
  Exposes the order, stock, balance, transfer and return services via a
  REST API. Handlers parse and validate the request, call one service
  operation and wrap the outcome in a Result envelope.

ENDPOINTS:
  Orders:
    GET    /api/orders                       List (customer_id, status, from, to)
    POST   /api/orders                       Create order header
    GET    /api/orders/{no}                  Order with lines
    PUT    /api/orders/{no}                  Update header
    DELETE /api/orders/{no}                  Delete (refunds prepaid charge)
    PUT    /api/orders/{no}/items            Replace every line
    POST   /api/orders/{no}/delivery/start   Start delivery
    POST   /api/orders/{no}/delivery/cancel  Cancel delivery
    POST   /api/orders/{no}/delivery/complete Complete delivery
    POST   /api/orders/batch/{action}        Batch start / cancel / complete

  Stock, closings, transfers:          see stock_handlers.go
  Customers, deposits, adjustments:    see customer_handlers.go
  Returns, holidays:                   see return_handlers.go
  Projection audit:                    see scheduler.go

ARCHITECTURE:
  Handler holds one instance of each service, all sharing the same store,
  locker and logger. Services own their transactions; handlers never open
  one.

ERROR HANDLING:
  Every error goes through writeError, which maps ledger.Code to a status:
  - 400: validation_failed
  - 404: not_found
  - 409: invalid_state_transition, concurrent_modification
  - 422: insufficient_stock, insufficient_balance
  - 423: period_locked
  - 500: anything else (logged, message hidden)

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - result.go: Envelope, binding, query helpers
  - server.go: Router setup and middleware
*/
package api

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/balance"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/lock"
	"github.com/warp/distribution-ledger/order"
	"github.com/warp/distribution-ledger/returns"
	"github.com/warp/distribution-ledger/stock"
	"github.com/warp/distribution-ledger/store/sqlite"
	"github.com/warp/distribution-ledger/transfer"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options carries the collaborators that differ between deployments.
// Nil values fall back to the service defaults. VATRate is a pointer so
// that a configured rate of zero is kept.
type Options struct {
	Locker   lock.Locker
	Gate     ledger.DeliveryGate
	Notifier ledger.Notifier
	VATRate  *decimal.Decimal
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Orders    *order.Service
	Stock     *stock.Service
	Postings  *balance.Postings
	Transfers *transfer.Coordinator
	Returns   *returns.Workflow
	Audit     *AuditScheduler
	Logger    logrus.FieldLogger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires every service onto store.
func NewHandler(store *sqlite.Store, opts Options, logger logrus.FieldLogger) *Handler {
	if opts.Locker == nil {
		opts.Locker = lock.Noop{}
	}
	vatRate := order.DefaultVATRate
	if opts.VATRate != nil {
		vatRate = *opts.VATRate
	}

	orders := order.NewService(store, logger)
	orders.Locker = opts.Locker
	orders.VATRate = vatRate
	if opts.Gate != nil {
		orders.Gate = opts.Gate
	}
	if opts.Notifier != nil {
		orders.Notifier = opts.Notifier
	}

	h := &Handler{
		Store:     store,
		Orders:    orders,
		Stock:     stock.NewService(store, opts.Locker, logger),
		Postings:  balance.NewPostings(store, opts.Locker, logger),
		Transfers: transfer.NewCoordinator(store, opts.Locker, logger),
		Returns:   returns.NewWorkflow(store, opts.Locker, vatRate, logger),
		Logger:    logger,
		validate:  validator.New(),
	}
	h.Audit = NewAuditScheduler(h)
	return h
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

func (h *Handler) orderInput(req OrderRequest) (order.OrderInput, error) {
	date, err := ledger.ParseDate("requested_date", req.RequestedDate)
	if err != nil {
		return order.OrderInput{}, err
	}
	return order.OrderInput{
		OrgID:         ledger.OrgID(req.OrgID),
		CustomerID:    ledger.CustomerID(req.CustomerID),
		RequestedDate: date,
		Note:          req.Note,
	}, nil
}

// CreateOrder creates an order header in requested status.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !h.bind(w, r, &req) {
		return
	}
	in, err := h.orderInput(req)
	if err != nil {
		h.writeError(w, r, "CreateOrder", err)
		return
	}
	o, err := h.Orders.CreateOrder(r.Context(), in)
	if err != nil {
		h.writeError(w, r, "CreateOrder", err)
		return
	}
	writeOK(w, http.StatusCreated, toOrderDTO(*o, nil))
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !h.bind(w, r, &req) {
		return
	}
	in, err := h.orderInput(req)
	if err != nil {
		h.writeError(w, r, "UpdateOrder", err)
		return
	}
	o, err := h.Orders.UpdateOrder(r.Context(), orderNo(r), in)
	if err != nil {
		h.writeError(w, r, "UpdateOrder", err)
		return
	}
	writeOK(w, http.StatusOK, toOrderDTO(*o, nil))
}

// GetOrder returns an order with its lines.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	d, err := h.Orders.Get(r.Context(), orderNo(r))
	if err != nil {
		h.writeError(w, r, "GetOrder", err)
		return
	}
	writeOK(w, http.StatusOK, toOrderDTO(d.Order, d.Items))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.OrderFilter{
		CustomerID: ledger.CustomerID(q.Get("customer_id")),
		Status:     ledger.DeliveryStatus(q.Get("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		h.writeError(w, r, "ListOrders", ledger.Invalid("status", "unknown delivery status %q", f.Status))
		return
	}
	var err error
	if f.From, err = dateParam(r, "from"); err != nil {
		h.writeError(w, r, "ListOrders", err)
		return
	}
	if f.To, err = dateParam(r, "to"); err != nil {
		h.writeError(w, r, "ListOrders", err)
		return
	}

	orders, err := h.Orders.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, "ListOrders", err)
		return
	}
	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o, nil)
	}
	writeOK(w, http.StatusOK, dtos)
}

// ReplaceItems swaps the order's lines for the submitted ones.
func (h *Handler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	var req ReplaceItemsRequest
	if !h.bind(w, r, &req) {
		return
	}
	items := make([]order.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemInput{
			ItemID:      ledger.ItemID(it.ItemID),
			WarehouseID: ledger.WarehouseID(it.WarehouseID),
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Taxable:     it.Taxable,
		}
	}
	d, err := h.Orders.ReplaceItems(r.Context(), orderNo(r), items)
	if err != nil {
		h.writeError(w, r, "ReplaceItems", err)
		return
	}
	writeOK(w, http.StatusOK, toOrderDTO(d.Order, d.Items))
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.Orders.DeleteOrder(r.Context(), orderNo(r)); err != nil {
		h.writeError(w, r, "DeleteOrder", err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// =============================================================================
// DELIVERY HANDLERS
// =============================================================================

// StartDelivery accepts an optional body with vehicle, driver, amount and date.
func (h *Handler) StartDelivery(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequest
	if r.ContentLength != 0 && !h.bind(w, r, &req) {
		return
	}
	info, err := req.info()
	if err != nil {
		h.writeError(w, r, "StartDelivery", err)
		return
	}
	o, err := h.Orders.StartDelivery(r.Context(), orderNo(r), info)
	if err != nil {
		h.writeError(w, r, "StartDelivery", err)
		return
	}
	writeOK(w, http.StatusOK, toOrderDTO(*o, nil))
}

func (h *Handler) CancelDelivery(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.CancelDelivery(r.Context(), orderNo(r))
	if err != nil {
		h.writeError(w, r, "CancelDelivery", err)
		return
	}
	writeOK(w, http.StatusOK, toOrderDTO(*o, nil))
}

func (h *Handler) CompleteDelivery(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.CompleteDelivery(r.Context(), orderNo(r))
	if err != nil {
		h.writeError(w, r, "CompleteDelivery", err)
		return
	}
	writeOK(w, http.StatusOK, toOrderDTO(*o, nil))
}

// BatchDelivery runs start, cancel or complete over several orders. The
// response is 200 even when some orders failed; callers read data.failed.
func (h *Handler) BatchDelivery(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.bind(w, r, &req) {
		return
	}
	nos := make([]ledger.OrderNo, len(req.OrderNos))
	for i, no := range req.OrderNos {
		nos[i] = ledger.OrderNo(no)
	}

	var res order.BatchResult
	switch action := chi.URLParam(r, "action"); action {
	case "start":
		info, err := req.info()
		if err != nil {
			h.writeError(w, r, "BatchDelivery", err)
			return
		}
		res = h.Orders.StartDeliveries(r.Context(), nos, info)
	case "cancel":
		res = h.Orders.CancelDeliveries(r.Context(), nos)
	case "complete":
		res = h.Orders.CompleteDeliveries(r.Context(), nos)
	default:
		h.writeError(w, r, "BatchDelivery", ledger.NotFound("batch action", action))
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"action":    chi.URLParam(r, "action"),
		"succeeded": len(res.Succeeded),
		"failed":    len(res.Failed),
	}).Info("batch delivery processed")
	writeOK(w, http.StatusOK, res)
}

func orderNo(r *http.Request) ledger.OrderNo {
	return ledger.OrderNo(chi.URLParam(r, "no"))
}
