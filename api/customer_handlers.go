package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/distribution-ledger/balance"
	"github.com/warp/distribution-ledger/ledger"
)

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// CreateCustomer registers a customer; a non-zero opening_balance becomes
// the first balance entry.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !h.bind(w, r, &req) {
		return
	}
	c, err := h.Postings.RegisterCustomer(r.Context(), ledger.Customer{
		ID:          ledger.CustomerID(req.ID),
		OrgID:       ledger.OrgID(req.OrgID),
		Name:        req.Name,
		DepositType: ledger.DepositType(req.DepositType),
	}, req.OpeningBalance)
	if err != nil {
		h.writeError(w, r, "CreateCustomer", err)
		return
	}
	writeOK(w, http.StatusCreated, toCustomerDTO(*c))
}

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Postings.Customers(r.Context(), ledger.OrgID(r.URL.Query().Get("org_id")))
	if err != nil {
		h.writeError(w, r, "ListCustomers", err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeOK(w, http.StatusOK, dtos)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Postings.Customer(r.Context(), customerID(r))
	if err != nil {
		h.writeError(w, r, "GetCustomer", err)
		return
	}
	writeOK(w, http.StatusOK, toCustomerDTO(*c))
}

// BalanceHistory lists the customer's balance entries between ?from= and ?to=.
func (h *Handler) BalanceHistory(w http.ResponseWriter, r *http.Request) {
	id := customerID(r)
	if _, err := h.Postings.Customer(r.Context(), id); err != nil {
		h.writeError(w, r, "BalanceHistory", err)
		return
	}
	from, err := dateParam(r, "from")
	if err != nil {
		h.writeError(w, r, "BalanceHistory", err)
		return
	}
	to, err := dateParam(r, "to")
	if err != nil {
		h.writeError(w, r, "BalanceHistory", err)
		return
	}
	entries, err := h.Postings.History(r.Context(), id, from, to)
	if err != nil {
		h.writeError(w, r, "BalanceHistory", err)
		return
	}
	dtos := make([]BalanceEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toBalanceEntryDTO(e)
	}
	writeOK(w, http.StatusOK, dtos)
}

// OverwriteBalance sets a postpaid customer's balance to an absolute value.
func (h *Handler) OverwriteBalance(w http.ResponseWriter, r *http.Request) {
	var req OverwriteRequest
	if !h.bind(w, r, &req) {
		return
	}
	entry, err := h.Postings.Overwrite(r.Context(), customerID(r), req.Balance, req.Note)
	if err != nil {
		h.writeError(w, r, "OverwriteBalance", err)
		return
	}
	if entry == nil {
		writeOK(w, http.StatusOK, nil)
		return
	}
	writeOK(w, http.StatusOK, toBalanceEntryDTO(*entry))
}

// =============================================================================
// DEPOSITS / ADJUSTMENTS
// =============================================================================

// ListPostings returns the customer's deposits or adjustments, depending on
// the route it is mounted on.
func (h *Handler) ListPostings(kind ledger.PostingKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := h.Postings.List(r.Context(), customerID(r), kind)
		if err != nil {
			h.writeError(w, r, "ListPostings", err)
			return
		}
		dtos := make([]PostingDTO, len(list))
		for i, p := range list {
			dtos[i] = toPostingDTO(p)
		}
		writeOK(w, http.StatusOK, dtos)
	}
}

func (h *Handler) CreatePosting(kind ledger.PostingKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := h.postingInput(w, r, customerID(r))
		if !ok {
			return
		}
		create := h.Postings.CreateDeposit
		if kind == ledger.PostingAdjustment {
			create = h.Postings.CreateAdjustment
		}
		p, err := create(r.Context(), in)
		if err != nil {
			h.writeError(w, r, "CreatePosting", err)
			return
		}
		writeOK(w, http.StatusCreated, toPostingDTO(*p))
	}
}

// UpdatePosting reverses the posting's current entry and posts the new amount.
func (h *Handler) UpdatePosting(kind ledger.PostingKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := h.postingInput(w, r, "")
		if !ok {
			return
		}
		update := h.Postings.UpdateDeposit
		if kind == ledger.PostingAdjustment {
			update = h.Postings.UpdateAdjustment
		}
		p, err := update(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			h.writeError(w, r, "UpdatePosting", err)
			return
		}
		writeOK(w, http.StatusOK, toPostingDTO(*p))
	}
}

func (h *Handler) DeletePosting(kind ledger.PostingKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		del := h.Postings.DeleteDeposit
		if kind == ledger.PostingAdjustment {
			del = h.Postings.DeleteAdjustment
		}
		if err := del(r.Context(), chi.URLParam(r, "id")); err != nil {
			h.writeError(w, r, "DeletePosting", err)
			return
		}
		writeOK(w, http.StatusOK, nil)
	}
}

func (h *Handler) postingInput(w http.ResponseWriter, r *http.Request, customer ledger.CustomerID) (balance.PostingInput, bool) {
	var req PostingRequest
	if !h.bind(w, r, &req) {
		return balance.PostingInput{}, false
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		h.writeError(w, r, "postingInput", err)
		return balance.PostingInput{}, false
	}
	return balance.PostingInput{
		Customer: customer,
		Date:     date,
		Amount:   req.Amount,
		Note:     req.Note,
	}, true
}

func customerID(r *http.Request) ledger.CustomerID {
	return ledger.CustomerID(chi.URLParam(r, "id"))
}
