/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Order lifecycle over HTTP (create, items, start, cancel, complete)
- Error envelope codes and status mapping
- Request validation errors
- Batch partial failure
- Customers, deposits, overwrite
- Transfers, closings, returns, holidays
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/distribution-ledger/config"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/store/sqlite"
)

// envelope mirrors Result with Data left raw for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t      *testing.T
	h      *Handler
	router *chi.Mux
}

func newTestAPI(t *testing.T) *testAPI {
	return newTestAPIWith(t, Options{})
}

func newTestAPIWith(t *testing.T, opts Options) *testAPI {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, opts, config.DiscardLogger())
	return &testAPI{t: t, h: h, router: NewRouter(h, nil)}
}

// do sends body as JSON and decodes the envelope; into, when non-nil,
// receives the data field.
func (a *testAPI) do(method, path string, body any, into any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if into != nil && len(env.Data) > 0 {
		require.NoError(a.t, json.Unmarshal(env.Data, into))
	}
	return rec.Code, env
}

func (a *testAPI) mustOK(method, path string, body any, into any) {
	a.t.Helper()
	status, env := a.do(method, path, body, into)
	require.True(a.t, env.Success, "%s %s: %d %s %s", method, path, status, env.Code, env.Message)
}

func today() string { return time.Now().Format(ledger.DateLayout) }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// seed registers a customer and 100 units of I1 in W1.
func (a *testAPI) seed(depositType string, opening int64) {
	a.t.Helper()
	a.mustOK("POST", "/api/customers", CreateCustomerRequest{
		ID: "C1", Name: "Hana Mart", DepositType: depositType, OpeningBalance: dec(opening),
	}, nil)
	a.mustOK("POST", "/api/stock/open", OpenStockRequest{
		WarehouseID: "W1", ItemID: "I1", Quantity: dec(100), UnitPrice: dec(500),
	}, nil)
}

func (a *testAPI) newOrder(qty, price int64) OrderDTO {
	a.t.Helper()
	var o OrderDTO
	a.mustOK("POST", "/api/orders", OrderRequest{CustomerID: "C1", RequestedDate: today()}, &o)
	a.mustOK("PUT", "/api/orders/"+o.OrderNo+"/items", ReplaceItemsRequest{Items: []OrderItemRequest{
		{ItemID: "I1", WarehouseID: "W1", Quantity: dec(qty), UnitPrice: dec(price)},
	}}, &o)
	return o
}

func (a *testAPI) quantity(wh string) decimal.Decimal {
	a.t.Helper()
	var items []WarehouseItemDTO
	a.mustOK("GET", "/api/stock/warehouses/"+wh+"/items", nil, &items)
	require.Len(a.t, items, 1)
	return items[0].CurrentQuantity
}

func (a *testAPI) balance(id string) decimal.Decimal {
	a.t.Helper()
	var c CustomerDTO
	a.mustOK("GET", "/api/customers/"+id, nil, &c)
	return c.Balance
}

// =============================================================================
// ORDERS
// =============================================================================

func TestOrderLifecycle_HTTP(t *testing.T) {
	// GIVEN: a prepaid customer with 5,000 and 100 units in stock
	// WHEN: an order of 30 x 100 is created, started, cancelled, completed
	// THEN: stock moves only with the delivery and the balance is charged once

	a := newTestAPI(t)
	a.seed("prepaid", 5000)

	o := a.newOrder(30, 100)
	assert.Equal(t, "requested", o.DeliveryStatus)
	assert.True(t, dec(3000).Equal(o.TotalAmt))
	require.Len(t, o.Items, 1)
	assert.True(t, dec(2000).Equal(a.balance("C1")))
	assert.True(t, dec(100).Equal(a.quantity("W1")), "no stock leaves before delivery")

	var started OrderDTO
	a.mustOK("POST", "/api/orders/"+o.OrderNo+"/delivery/start", DeliveryRequest{Vehicle: "TRUCK-1", Driver: "Kim"}, &started)
	assert.Equal(t, "in_delivery", started.DeliveryStatus)
	assert.Equal(t, "TRUCK-1", started.Vehicle)
	assert.True(t, dec(70).Equal(a.quantity("W1")))

	a.mustOK("POST", "/api/orders/"+o.OrderNo+"/delivery/cancel", nil, nil)
	assert.True(t, dec(100).Equal(a.quantity("W1")))

	var done OrderDTO
	a.mustOK("POST", "/api/orders/"+o.OrderNo+"/delivery/complete", nil, &done)
	assert.Equal(t, "completed", done.DeliveryStatus)
	assert.True(t, dec(70).Equal(a.quantity("W1")), "direct complete dispatches stock")
	assert.True(t, dec(2000).Equal(a.balance("C1")))

	status, env := a.do("PUT", "/api/orders/"+o.OrderNo+"/items", ReplaceItemsRequest{Items: []OrderItemRequest{
		{ItemID: "I1", WarehouseID: "W1", Quantity: dec(1), UnitPrice: dec(1)},
	}}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, ledger.CodeInvalidTransition, env.Code)

	var list []OrderDTO
	a.mustOK("GET", "/api/orders?customer_id=C1&status=completed", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, o.OrderNo, list[0].OrderNo)

	var entries []StockEntryDTO
	a.mustOK("GET", "/api/stock/history?warehouse_id=W1&type=order_out", nil, &entries)
	assert.Len(t, entries, 2)
}

func TestVATRate_ZeroIsKept(t *testing.T) {
	// GIVEN: a tax-exempt deployment (VAT rate 0) and the default one
	// WHEN: a prepaid customer orders one taxable line of 10 x 100
	// THEN: zero VAT is charged where the rate is 0, 10% otherwise

	cases := []struct {
		name    string
		rate    *decimal.Decimal
		vat     int64
		balance int64
	}{
		{"configured zero", &decimal.Zero, 0, 4000},
		{"default", nil, 100, 3900},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAPIWith(t, Options{VATRate: tc.rate})
			a.seed("prepaid", 5000)

			var o OrderDTO
			a.mustOK("POST", "/api/orders", OrderRequest{CustomerID: "C1", RequestedDate: today()}, &o)
			a.mustOK("PUT", "/api/orders/"+o.OrderNo+"/items", ReplaceItemsRequest{Items: []OrderItemRequest{
				{ItemID: "I1", WarehouseID: "W1", Quantity: dec(10), UnitPrice: dec(100), Taxable: true},
			}}, &o)

			assert.True(t, dec(tc.vat).Equal(o.VatAmt), "vat_amt %s", o.VatAmt)
			require.Len(t, o.Items, 1)
			assert.True(t, dec(tc.vat).Equal(o.Items[0].VatAmt))
			assert.True(t, dec(1000+tc.vat).Equal(o.TotalAmt))
			assert.True(t, dec(tc.balance).Equal(a.balance("C1")))
		})
	}
}

func TestErrorEnvelope_StatusMapping(t *testing.T) {
	a := newTestAPI(t)
	a.seed("prepaid", 1000)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown order", "GET", "/api/orders/209901010001", nil, http.StatusNotFound, ledger.CodeNotFound},
		{"unknown customer", "POST", "/api/orders", OrderRequest{CustomerID: "NOPE", RequestedDate: today()}, http.StatusNotFound, ledger.CodeNotFound},
		{"bad status filter", "GET", "/api/orders?status=lost", nil, http.StatusBadRequest, ledger.CodeValidation},
		{"bad date", "GET", "/api/orders?from=15-01-2024", nil, http.StatusBadRequest, ledger.CodeValidation},
		{"over-deduct", "POST", "/api/stock/adjust", AdjustStockRequest{WarehouseID: "W1", ItemID: "I1", Quantity: dec(-150)}, http.StatusUnprocessableEntity, ledger.CodeInsufficientStock},
		{"unknown batch action", "POST", "/api/orders/batch/teleport", BatchRequest{OrderNos: []string{"x"}}, http.StatusNotFound, ledger.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := a.do(tc.method, tc.path, tc.body, nil)
			assert.Equal(t, tc.status, status)
			assert.False(t, env.Success)
			assert.Equal(t, tc.code, env.Code)
			assert.NotEmpty(t, env.Message)
		})
	}

	// over-charging a prepaid customer
	var o OrderDTO
	a.mustOK("POST", "/api/orders", OrderRequest{CustomerID: "C1", RequestedDate: today()}, &o)
	status, env := a.do("PUT", "/api/orders/"+o.OrderNo+"/items", ReplaceItemsRequest{Items: []OrderItemRequest{
		{ItemID: "I1", WarehouseID: "W1", Quantity: dec(11), UnitPrice: dec(100)},
	}}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, ledger.CodeInsufficientBalance, env.Code)
	assert.True(t, dec(1000).Equal(a.balance("C1")))
}

func TestValidation_FieldErrors(t *testing.T) {
	a := newTestAPI(t)

	var fields map[string]string
	status, env := a.do("POST", "/api/orders", OrderRequest{RequestedDate: "2024/01/15"}, &fields)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ledger.CodeValidation, env.Code)
	assert.Equal(t, "required", fields["CustomerID"])
	assert.Equal(t, "datetime", fields["RequestedDate"])

	status, _ = a.do("POST", "/api/transfers", TransferRequest{FromWarehouse: "A", ToWarehouse: "A",
		Lines: []TransferLineRequest{{ItemID: "I1", Quantity: dec(1)}}}, &fields)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "nefield", fields["ToWarehouse"])

	req := httptest.NewRequest("POST", "/api/customers", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchDelivery_PartialFailure(t *testing.T) {
	// GIVEN: two orders, only the first can be shipped (the second wants 90 of the 70 left)
	// WHEN: both are started in one batch
	// THEN: 200 with one success and one insufficient_stock failure

	a := newTestAPI(t)
	a.seed("postpaid", 0)
	first := a.newOrder(30, 100)
	second := a.newOrder(90, 100)

	var res struct {
		Succeeded []string `json:"succeeded"`
		Failed    []struct {
			OrderNo string `json:"order_no"`
			Code    string `json:"code"`
		} `json:"failed"`
	}
	status, env := a.do("POST", "/api/orders/batch/start", BatchRequest{OrderNos: []string{first.OrderNo, second.OrderNo}}, &res)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.Equal(t, []string{first.OrderNo}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, second.OrderNo, res.Failed[0].OrderNo)
	assert.Equal(t, ledger.CodeInsufficientStock, res.Failed[0].Code)
	assert.True(t, dec(70).Equal(a.quantity("W1")))
}

func TestDeleteOrder_RefundsPrepaid(t *testing.T) {
	a := newTestAPI(t)
	a.seed("prepaid", 5000)
	o := a.newOrder(10, 100)
	assert.True(t, dec(4000).Equal(a.balance("C1")))

	a.mustOK("DELETE", "/api/orders/"+o.OrderNo, nil, nil)
	assert.True(t, dec(5000).Equal(a.balance("C1")))

	status, _ := a.do("GET", "/api/orders/"+o.OrderNo, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

// =============================================================================
// CUSTOMERS / BALANCE
// =============================================================================

func TestCustomerPostings_HTTP(t *testing.T) {
	a := newTestAPI(t)
	a.mustOK("POST", "/api/customers", CreateCustomerRequest{ID: "C1", Name: "Hana", DepositType: "postpaid"}, nil)

	var dep PostingDTO
	a.mustOK("POST", "/api/customers/C1/deposits", PostingRequest{Amount: dec(3000), Note: "cash"}, &dep)
	assert.Equal(t, "deposit", dep.Kind)
	assert.True(t, dec(3000).Equal(a.balance("C1")))

	a.mustOK("PUT", "/api/deposits/"+dep.ID, PostingRequest{Amount: dec(2500)}, nil)
	assert.True(t, dec(2500).Equal(a.balance("C1")))

	var adj PostingDTO
	a.mustOK("POST", "/api/customers/C1/adjustments", PostingRequest{Amount: dec(-700)}, &adj)
	assert.True(t, dec(1800).Equal(a.balance("C1")))

	status, _ := a.do("DELETE", "/api/deposits/"+adj.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, status, "an adjustment is not a deposit")
	a.mustOK("DELETE", "/api/adjustments/"+adj.ID, nil, nil)
	assert.True(t, dec(2500).Equal(a.balance("C1")))

	var deposits []PostingDTO
	a.mustOK("GET", "/api/customers/C1/deposits", nil, &deposits)
	assert.Len(t, deposits, 1)

	var entry BalanceEntryDTO
	a.mustOK("PUT", "/api/customers/C1/balance", OverwriteRequest{Balance: dec(-1000), Note: "migration"}, &entry)
	assert.Equal(t, "withdrawal", entry.Type)
	assert.True(t, dec(-1000).Equal(a.balance("C1")))

	var history []BalanceEntryDTO
	a.mustOK("GET", "/api/customers/C1/balance-entries", nil, &history)
	require.NotEmpty(t, history)
	assert.True(t, dec(-1000).Equal(history[len(history)-1].BalanceAfter))

	var report AuditReport
	a.mustOK("POST", "/api/audit", nil, &report)
	assert.Equal(t, 1, report.Customers)
	assert.Empty(t, report.Drifts)
}

// =============================================================================
// TRANSFERS / CLOSINGS
// =============================================================================

func TestTransferAndClosing_HTTP(t *testing.T) {
	// GIVEN: A holds 50, B holds 5
	// WHEN: 10 move from A to B, then A's month is counted and closed
	// THEN: 40/15, the count is recorded and further writes are refused with 423

	a := newTestAPI(t)
	a.mustOK("POST", "/api/stock/open", OpenStockRequest{WarehouseID: "A", ItemID: "I1", Quantity: dec(50), UnitPrice: dec(200)}, nil)
	a.mustOK("POST", "/api/stock/open", OpenStockRequest{WarehouseID: "B", ItemID: "I1", Quantity: dec(5), UnitPrice: dec(200)}, nil)

	var tr TransferDTO
	a.mustOK("POST", "/api/transfers", TransferRequest{FromWarehouse: "A", ToWarehouse: "B",
		Lines: []TransferLineRequest{{ItemID: "I1", Quantity: dec(10), UnitPrice: dec(200)}}}, &tr)
	require.Len(t, tr.Lines, 1)
	assert.True(t, dec(40).Equal(a.quantity("A")))
	assert.True(t, dec(15).Equal(a.quantity("B")))

	var got TransferDTO
	a.mustOK("GET", "/api/transfers/"+tr.Code, nil, &got)
	assert.Equal(t, "A", got.FromWarehouse)

	period := time.Now().Format("2006-01")
	var rows []ClosingDTO
	a.mustOK("GET", "/api/closings?warehouse_id=A&period="+period, nil, &rows)
	require.Len(t, rows, 1)
	assert.True(t, dec(10).Equal(rows[0].OutQuantity))
	assert.True(t, dec(40).Equal(rows[0].CalQuantity))

	var counted ClosingDTO
	a.mustOK("PUT", "/api/closings/"+rows[0].Code+"/actual", SetActualRequest{ActualQuantity: dec(38), ActualUnitPrice: dec(200)}, &counted)
	assert.True(t, dec(-2).Equal(counted.DiffQuantity))

	var toggled map[string]any
	a.mustOK("POST", "/api/closings/toggle", ToggleClosingRequest{WarehouseID: "A", Period: period, Actor: "auditor"}, &toggled)
	assert.Equal(t, true, toggled["is_closed"])

	status, env := a.do("PUT", "/api/closings/"+rows[0].Code+"/actual", SetActualRequest{ActualQuantity: dec(40)}, nil)
	assert.Equal(t, http.StatusLocked, status)
	assert.Equal(t, ledger.CodePeriodLocked, env.Code)

	status, _ = a.do("POST", "/api/stock/adjust", AdjustStockRequest{WarehouseID: "A", ItemID: "I1", Quantity: dec(1)}, nil)
	assert.Equal(t, http.StatusLocked, status)
	assert.True(t, dec(40).Equal(a.quantity("A")))
}

// =============================================================================
// RETURNS / HOLIDAYS
// =============================================================================

func TestReturns_HTTP(t *testing.T) {
	a := newTestAPI(t)
	a.seed("postpaid", 0)
	o := a.newOrder(10, 1000)

	status, env := a.do("POST", "/api/returns", RegisterReturnRequest{OrderItemID: o.Items[0].ID, Quantity: dec(1)}, nil)
	assert.Equal(t, http.StatusConflict, status, "order not delivered yet")
	assert.Equal(t, ledger.CodeInvalidTransition, env.Code)

	a.mustOK("POST", "/api/orders/"+o.OrderNo+"/delivery/complete", nil, nil)

	var ret ReturnDTO
	a.mustOK("POST", "/api/returns", RegisterReturnRequest{OrderItemID: o.Items[0].ID, Quantity: dec(4), Reason: "broken"}, &ret)
	assert.Equal(t, "unapproved", ret.Status)
	assert.True(t, dec(4000).Equal(ret.SupplyAmt))

	a.mustOK("PUT", "/api/returns/"+ret.ID, UpdateReturnRequest{Quantity: dec(2)}, &ret)
	assert.True(t, dec(2).Equal(ret.Quantity))

	a.mustOK("POST", "/api/returns/"+ret.ID+"/approve", ApproveReturnRequest{Actor: "manager"}, &ret)
	assert.Equal(t, "approved", ret.Status)
	require.NotNil(t, ret.ApprovedAt)

	status, _ = a.do("DELETE", "/api/returns/"+ret.ID, nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	var approved []ReturnDTO
	a.mustOK("GET", "/api/returns?status=approved", nil, &approved)
	assert.Len(t, approved, 1)

	var detail OrderDTO
	a.mustOK("GET", "/api/orders/"+o.OrderNo, nil, &detail)
	assert.True(t, dec(8).Equal(detail.Items[0].ReturnableQty))
}

func TestHolidays_HTTP(t *testing.T) {
	a := newTestAPI(t)

	var hol HolidayDTO
	a.mustOK("POST", "/api/holidays", HolidayRequest{Date: "2024-12-25", Name: "Christmas", Recurring: true}, &hol)
	assert.NotEmpty(t, hol.ID)

	var list []HolidayDTO
	a.mustOK("GET", "/api/holidays", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "2024-12-25", list[0].Date)

	a.mustOK("DELETE", "/api/holidays/"+hol.ID, nil, nil)
	list = nil
	a.mustOK("GET", "/api/holidays", nil, &list)
	assert.Empty(t, list)
}
