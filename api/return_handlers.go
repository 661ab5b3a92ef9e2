package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/returns"
)

// =============================================================================
// RETURN HANDLERS
// =============================================================================

// RegisterReturn creates an unapproved return against a delivered line.
func (h *Handler) RegisterReturn(w http.ResponseWriter, r *http.Request) {
	var req RegisterReturnRequest
	if !h.bind(w, r, &req) {
		return
	}
	ret, err := h.Returns.Register(r.Context(), returns.RegisterInput{
		OrderItemID: req.OrderItemID,
		Quantity:    req.Quantity,
		Reason:      req.Reason,
	})
	if err != nil {
		h.writeError(w, r, "RegisterReturn", err)
		return
	}
	writeOK(w, http.StatusCreated, toReturnDTO(*ret))
}

func (h *Handler) UpdateReturn(w http.ResponseWriter, r *http.Request) {
	var req UpdateReturnRequest
	if !h.bind(w, r, &req) {
		return
	}
	ret, err := h.Returns.Update(r.Context(), chi.URLParam(r, "id"), req.Quantity, req.Reason)
	if err != nil {
		h.writeError(w, r, "UpdateReturn", err)
		return
	}
	writeOK(w, http.StatusOK, toReturnDTO(*ret))
}

func (h *Handler) DeleteReturn(w http.ResponseWriter, r *http.Request) {
	if err := h.Returns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, "DeleteReturn", err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (h *Handler) ApproveReturn(w http.ResponseWriter, r *http.Request) {
	var req ApproveReturnRequest
	if !h.bind(w, r, &req) {
		return
	}
	ret, err := h.Returns.Approve(r.Context(), chi.URLParam(r, "id"), req.Actor)
	if err != nil {
		h.writeError(w, r, "ApproveReturn", err)
		return
	}
	writeOK(w, http.StatusOK, toReturnDTO(*ret))
}

func (h *Handler) GetReturn(w http.ResponseWriter, r *http.Request) {
	ret, err := h.Returns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "GetReturn", err)
		return
	}
	writeOK(w, http.StatusOK, toReturnDTO(*ret))
}

// ListReturns filters by order_no, customer_id, status, from and to.
func (h *Handler) ListReturns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.ReturnFilter{
		OrderNo:    ledger.OrderNo(q.Get("order_no")),
		CustomerID: ledger.CustomerID(q.Get("customer_id")),
		Status:     ledger.ReturnStatus(q.Get("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		h.writeError(w, r, "ListReturns", ledger.Invalid("status", "unknown return status %q", f.Status))
		return
	}
	var err error
	if f.From, err = dateParam(r, "from"); err != nil {
		h.writeError(w, r, "ListReturns", err)
		return
	}
	if f.To, err = dateParam(r, "to"); err != nil {
		h.writeError(w, r, "ListReturns", err)
		return
	}
	list, err := h.Returns.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, "ListReturns", err)
		return
	}
	dtos := make([]ReturnDTO, len(list))
	for i, ret := range list {
		dtos[i] = toReturnDTO(ret)
	}
	writeOK(w, http.StatusOK, dtos)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListHolidays(r.Context(), ledger.OrgID(r.URL.Query().Get("org_id")))
	if err != nil {
		h.writeError(w, r, "ListHolidays", err)
		return
	}
	dtos := make([]HolidayDTO, len(list))
	for i, hol := range list {
		dtos[i] = toHolidayDTO(hol)
	}
	writeOK(w, http.StatusOK, dtos)
}

// CreateHoliday blocks deliveries on a date, for one org or globally.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if !h.bind(w, r, &req) {
		return
	}
	date, err := ledger.ParseDate("date", req.Date)
	if err != nil {
		h.writeError(w, r, "CreateHoliday", err)
		return
	}
	hol := ledger.Holiday{
		ID:        uuid.NewString(),
		OrgID:     ledger.OrgID(req.OrgID),
		Date:      date,
		Name:      req.Name,
		Recurring: req.Recurring,
	}
	if err := h.Store.SaveHoliday(r.Context(), hol); err != nil {
		h.writeError(w, r, "CreateHoliday", err)
		return
	}
	writeOK(w, http.StatusCreated, toHolidayDTO(hol))
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, "DeleteHoliday", err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}
