/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario goes through the same services as the API,
	so every row it writes has its ledger entries and projections.

AVAILABLE SCENARIOS:

	dispatch-and-cancel: one order shipped, one shipped then cancelled
	prepaid-delta:       prepaid customer whose order is edited twice
	warehouse-transfer:  stock moved between two warehouses
	locked-period:       last month closed after a recount
	returns:             completed postpaid order with a pending return

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Open stock in the demo warehouses
 3. Register customers
 4. Run orders, transfers and closings through the services

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "prepaid-delta"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
	Orders are dated today and skip the delivery calendar so a scenario
	loads on weekends and holidays too.

SEE ALSO:
  - handlers.go: Handler and services
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/balance"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/order"
	"github.com/warp/distribution-ledger/returns"
	"github.com/warp/distribution-ledger/stock"
	"github.com/warp/distribution-ledger/transfer"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "dispatch-and-cancel",
		Name:        "Dispatch and Cancel",
		Description: "100 units in stock, one order of 30 shipped, a second shipped and cancelled",
	},
	{
		ID:          "prepaid-delta",
		Name:        "Prepaid Delta",
		Description: "Prepaid customer with 5,000; order charged 3,000 then edited to 3,500",
	},
	{
		ID:          "warehouse-transfer",
		Name:        "Warehouse Transfer",
		Description: "10 units moved from warehouse A (50) to warehouse B (5)",
	},
	{
		ID:          "locked-period",
		Name:        "Locked Period",
		Description: "Last month recounted and closed; writes into it are refused",
	},
	{
		ID:          "returns",
		Name:        "Returns",
		Description: "Completed postpaid order with an unapproved return of 2 units",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeOK(w, http.StatusOK, s)
			return
		}
	}
	writeOK(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.bind(w, r, &req) {
		return
	}

	loaders := map[string]func(context.Context, *seeder) error{
		"dispatch-and-cancel": loadDispatchAndCancel,
		"prepaid-delta":       loadPrepaidDelta,
		"warehouse-transfer":  loadWarehouseTransfer,
		"locked-period":       loadLockedPeriod,
		"returns":             loadReturns,
	}
	load, ok := loaders[req.ScenarioID]
	if !ok {
		h.writeError(w, r, "LoadScenario", ledger.NotFound("scenario", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.writeError(w, r, "LoadScenario", err)
		return
	}
	if err := load(ctx, h.seeder()); err != nil {
		h.writeError(w, r, "LoadScenario", fmt.Errorf("scenario %s: %w", req.ScenarioID, err))
		return
	}
	h.currentScenario = req.ScenarioID

	h.Logger.WithFields(logrus.Fields{"scenario": req.ScenarioID}).Info("scenario loaded")
	writeOK(w, http.StatusOK, map[string]string{"scenario_id": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeError(w, r, "ResetDatabase", err)
		return
	}
	h.currentScenario = ""
	h.Logger.Warn("database reset")
	writeOK(w, http.StatusOK, nil)
}

// =============================================================================
// SEEDER
// =============================================================================

// seeder is the set of services a scenario writes through.
type seeder struct {
	orders    *order.Service
	stock     *stock.Service
	postings  *balance.Postings
	transfers *transfer.Coordinator
	returns   *returns.Workflow
	today     time.Time
}

func (h *Handler) seeder() *seeder {
	orders := *h.Orders
	orders.Gate = ledger.OpenGate
	return &seeder{
		orders:    &orders,
		stock:     h.Stock,
		postings:  h.Postings,
		transfers: h.Transfers,
		returns:   h.Returns,
		today:     ledger.DateOf(time.Now()),
	}
}

func (s *seeder) open(ctx context.Context, wh ledger.WarehouseID, item ledger.ItemID, qty, price int64, date time.Time) error {
	_, err := s.stock.OpenStock(ctx, stock.OpenInput{
		Warehouse:    wh,
		Item:         item,
		Date:         date,
		Quantity:     decimal.NewFromInt(qty),
		UnitPrice:    decimal.NewFromInt(price),
		SafeQuantity: decimal.NewFromInt(10),
	})
	return err
}

func (s *seeder) customer(ctx context.Context, id ledger.CustomerID, name string, dt ledger.DepositType, opening int64) error {
	_, err := s.postings.RegisterCustomer(ctx, ledger.Customer{ID: id, Name: name, DepositType: dt}, decimal.NewFromInt(opening))
	return err
}

// order creates an order for today with the given lines.
func (s *seeder) order(ctx context.Context, customer ledger.CustomerID, items ...order.ItemInput) (*order.Detail, error) {
	o, err := s.orders.CreateOrder(ctx, order.OrderInput{CustomerID: customer, RequestedDate: s.today})
	if err != nil {
		return nil, err
	}
	return s.orders.ReplaceItems(ctx, o.OrderNo, items)
}

func line(wh ledger.WarehouseID, item ledger.ItemID, qty, price int64, taxable bool) order.ItemInput {
	return order.ItemInput{
		ItemID:      item,
		WarehouseID: wh,
		Quantity:    decimal.NewFromInt(qty),
		UnitPrice:   decimal.NewFromInt(price),
		Taxable:     taxable,
	}
}

// =============================================================================
// LOADERS
// =============================================================================

func loadDispatchAndCancel(ctx context.Context, s *seeder) error {
	if err := s.open(ctx, "W1", "RICE-20KG", 100, 30000, s.today); err != nil {
		return err
	}
	if err := s.customer(ctx, "C-HANA", "Hana Mart", ledger.DepositPostpaid, 0); err != nil {
		return err
	}

	shipped, err := s.order(ctx, "C-HANA", line("W1", "RICE-20KG", 30, 45000, false))
	if err != nil {
		return err
	}
	if _, err := s.orders.StartDelivery(ctx, shipped.OrderNo, order.DeliveryInfo{Vehicle: "TRUCK-1", Driver: "Kim"}); err != nil {
		return err
	}

	cancelled, err := s.order(ctx, "C-HANA", line("W1", "RICE-20KG", 20, 45000, false))
	if err != nil {
		return err
	}
	if _, err := s.orders.StartDelivery(ctx, cancelled.OrderNo, order.DeliveryInfo{Vehicle: "TRUCK-2"}); err != nil {
		return err
	}
	_, err = s.orders.CancelDelivery(ctx, cancelled.OrderNo)
	return err
}

func loadPrepaidDelta(ctx context.Context, s *seeder) error {
	if err := s.open(ctx, "W1", "OIL-18L", 200, 1000, s.today); err != nil {
		return err
	}
	if err := s.customer(ctx, "C-DAON", "Daon Restaurant", ledger.DepositPrepaid, 5000); err != nil {
		return err
	}

	d, err := s.order(ctx, "C-DAON", line("W1", "OIL-18L", 3, 1000, false))
	if err != nil {
		return err
	}
	_, err = s.orders.ReplaceItems(ctx, d.OrderNo, []order.ItemInput{line("W1", "OIL-18L", 7, 500, false)})
	return err
}

func loadWarehouseTransfer(ctx context.Context, s *seeder) error {
	if err := s.open(ctx, "A", "SUGAR-15KG", 50, 200, s.today); err != nil {
		return err
	}
	if err := s.open(ctx, "B", "SUGAR-15KG", 5, 200, s.today); err != nil {
		return err
	}
	_, err := s.transfers.Transfer(ctx, transfer.TransferInput{
		Date: s.today,
		From: "A",
		To:   "B",
		Note: "weekly rebalance",
		Lines: []transfer.LineInput{
			{ItemID: "SUGAR-15KG", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(200)},
		},
	})
	return err
}

func loadLockedPeriod(ctx context.Context, s *seeder) error {
	last := ledger.YearMonthOf(s.today).Prev()
	if err := s.open(ctx, "W1", "FLOUR-20KG", 80, 500, last.Start()); err != nil {
		return err
	}
	if _, err := s.stock.Adjust(ctx, stock.AdjustInput{
		Warehouse: "W1",
		Item:      "FLOUR-20KG",
		Date:      last.Start().AddDate(0, 0, 14),
		Quantity:  decimal.NewFromInt(-5),
		UnitPrice: decimal.NewFromInt(500),
		Note:      "damaged bags",
	}); err != nil {
		return err
	}
	code := ledger.ClosingCode("W1", "FLOUR-20KG", last)
	if _, err := s.stock.SetActual(ctx, code, decimal.NewFromInt(74), decimal.NewFromInt(500)); err != nil {
		return err
	}
	_, err := s.stock.ToggleClosing(ctx, "W1", last, "demo")
	return err
}

func loadReturns(ctx context.Context, s *seeder) error {
	if err := s.open(ctx, "W1", "SOY-5L", 40, 3000, s.today); err != nil {
		return err
	}
	if err := s.customer(ctx, "C-MIRAE", "Mirae Foods", ledger.DepositPostpaid, 0); err != nil {
		return err
	}
	d, err := s.order(ctx, "C-MIRAE", line("W1", "SOY-5L", 12, 4500, true))
	if err != nil {
		return err
	}
	if _, err := s.orders.CompleteDelivery(ctx, d.OrderNo); err != nil {
		return err
	}
	_, err = s.returns.Register(ctx, returns.RegisterInput{
		OrderItemID: d.Items[0].ID,
		Quantity:    decimal.NewFromInt(2),
		Reason:      "leaking caps",
	})
	return err
}
