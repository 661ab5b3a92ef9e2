/*
scheduler.go - Periodic projection audit

PURPOSE:
  Periodically replays the stock and balance ledgers and compares them
  with the stored projections (WarehouseItem.CurrentQuantity and
  Customer.Balance). Drift is logged at error level; nothing is repaired
  automatically.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each run verifies every warehouse item, then every customer
  - The last report is kept for the /api/audit endpoint

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAuditScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - stock/ledger.go: Ledger.Verify
  - balance/ledger.go: Ledger.Verify
*/
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/config"
)

// Drift is one projection that no longer matches its ledger.
type Drift struct {
	Kind   string `json:"kind"` // "warehouse_item" or "customer"
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// AuditReport is the outcome of one audit run.
type AuditReport struct {
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	WarehouseItems int       `json:"warehouse_items"`
	Customers      int       `json:"customers"`
	Drifts         []Drift   `json:"drifts"`
	Error          string    `json:"error,omitempty"`
}

// AuditScheduler runs the projection audit on a ticker.
type AuditScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   *AuditReport
}

// NewAuditScheduler creates a new scheduler.
func NewAuditScheduler(handler *Handler) *AuditScheduler {
	return &AuditScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (as *AuditScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		as.Handler.Logger.Info("audit scheduler disabled")
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run()

	as.Handler.Logger.WithField("interval", as.CheckInterval.String()).Info("audit scheduler started")
}

// Stop stops the scheduler and waits for a running audit to finish.
func (as *AuditScheduler) Stop() {
	as.mu.Lock()
	ticker := as.ticker
	as.ticker = nil
	as.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		as.Handler.Logger.Info("audit scheduler stopped")
	}
}

func (as *AuditScheduler) run() {
	defer as.wg.Done()

	as.RunNow(context.Background())

	for {
		select {
		case <-as.ticker.C:
			as.RunNow(context.Background())
		case <-as.stop:
			return
		}
	}
}

// RunNow audits every projection and stores the report.
func (as *AuditScheduler) RunNow(ctx context.Context) AuditReport {
	h := as.Handler
	report := AuditReport{StartedAt: time.Now().UTC(), Drifts: []Drift{}}

	items, err := h.Stock.WarehouseItems(ctx, "")
	if err != nil {
		config.LogError(h.Logger, "api", "AuditScheduler.RunNow", "list warehouse items", nil, err)
		report.Error = err.Error()
	}
	for _, wi := range items {
		report.WarehouseItems++
		if err := h.Stock.Verify(ctx, wi.WarehouseID, wi.ItemID); err != nil {
			report.Drifts = append(report.Drifts, Drift{
				Kind:   "warehouse_item",
				Key:    string(wi.WarehouseID) + "/" + string(wi.ItemID),
				Reason: err.Error(),
			})
		}
	}

	customers, err := h.Postings.Customers(ctx, "")
	if err != nil {
		config.LogError(h.Logger, "api", "AuditScheduler.RunNow", "list customers", nil, err)
		report.Error = err.Error()
	}
	for _, c := range customers {
		report.Customers++
		if err := h.Postings.Verify(ctx, c.ID); err != nil {
			report.Drifts = append(report.Drifts, Drift{Kind: "customer", Key: string(c.ID), Reason: err.Error()})
		}
	}
	report.FinishedAt = time.Now().UTC()

	for _, d := range report.Drifts {
		h.Logger.WithFields(logrus.Fields{"kind": d.Kind, "key": d.Key}).Error(d.Reason)
	}
	h.Logger.WithFields(logrus.Fields{
		"warehouse_items": report.WarehouseItems,
		"customers":       report.Customers,
		"drifts":          len(report.Drifts),
	}).Info("projection audit finished")

	as.mu.Lock()
	as.last = &report
	as.mu.Unlock()
	return report
}

// Last returns the most recent report, or nil before the first run.
func (as *AuditScheduler) Last() *AuditReport {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.last
}

// LastReport returns the most recent report; data is null before the first run.
func (as *AuditScheduler) LastReport(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, as.Last())
}

// RunReport runs an audit on demand and returns the report.
func (as *AuditScheduler) RunReport(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, as.RunNow(r.Context()))
}
