/*
Package balance keeps each customer's running balance and its append-only
transaction log.

PURPOSE:
  Ledger posts deposits and withdrawals, moving Customer.Balance with a
  compare-and-set in the same transaction as the entry it appends, and
  answers the reconstruction queries the order flows need (NetCharge).
  Postings layers the manual deposit / adjustment documents and the
  post-paid balance overwrite on top.

INVARIANTS:
  - Customer.Balance = Σ deposits − Σ withdrawals over all entries
  - Every entry records the BalanceAfter it produced
  - Entries are never edited; a correction is a reversal of the opposite
    type with ReversesID set

SEE ALSO:
  - postings.go: manual flows
  - order/items.go: prepaid delta reconciliation
*/
package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/ledger"
)

type PostInput struct {
	Customer  ledger.CustomerID
	Date      time.Time
	Type      ledger.BalanceEntryType
	Amount    decimal.Decimal // magnitude, > 0
	Reference ledger.Reference
	Note      string
}

type Ledger struct {
	store  ledger.Store
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewLedger(store ledger.Store, logger logrus.FieldLogger) *Ledger {
	return &Ledger{store: store, logger: logger, now: time.Now}
}

// Post appends one entry and moves the customer's balance. There is no
// sufficiency check here; prepaid callers use Require first.
func (l *Ledger) Post(ctx context.Context, in PostInput) (*ledger.BalanceEntry, error) {
	return l.post(ctx, in, "")
}

func (l *Ledger) post(ctx context.Context, in PostInput, reverses string) (*ledger.BalanceEntry, error) {
	if !in.Type.Valid() {
		return nil, ledger.Invalid("type", "unknown balance entry type %q", in.Type)
	}
	if !in.Amount.IsPositive() {
		return nil, ledger.Invalid("amount", "must be positive")
	}
	c, err := l.customer(ctx, in.Customer)
	if err != nil {
		return nil, err
	}

	entry := ledger.BalanceEntry{
		ID:         uuid.NewString(),
		CustomerID: in.Customer,
		Date:       in.Date,
		Type:       in.Type,
		Amount:     in.Amount,
		Reference:  in.Reference,
		ReversesID: reverses,
		Note:       in.Note,
	}
	if entry.Date.IsZero() {
		entry.Date = l.now()
	}
	entry.Date = ledger.DateOf(entry.Date)
	entry.BalanceAfter = c.Balance.Add(entry.Effect())

	if err := l.store.CompareAndSetBalance(ctx, c.ID, c.Balance, entry.BalanceAfter); err != nil {
		return nil, err
	}
	if err := l.store.AppendBalanceEntry(ctx, entry); err != nil {
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"customer_id":   c.ID,
		"type":          entry.Type,
		"amount":        entry.Amount.String(),
		"balance_after": entry.BalanceAfter.String(),
		"reference":     entry.Reference.String(),
	}).Debug("balance posted")
	return &entry, nil
}

// Reverse posts the opposite of entry with the same amount and reference.
func (l *Ledger) Reverse(ctx context.Context, entry ledger.BalanceEntry, note string) (*ledger.BalanceEntry, error) {
	if entry.ReversesID != "" {
		return nil, ledger.Invalid("entry_id", "entry %s is itself a reversal", entry.ID)
	}
	reversed, err := l.store.IsBalanceEntryReversed(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	if reversed {
		return nil, ledger.Invalid("entry_id", "entry %s already reversed", entry.ID)
	}
	if note == "" {
		note = fmt.Sprintf("reversal of %s", entry.ID)
	}
	return l.post(ctx, PostInput{
		Customer:  entry.CustomerID,
		Type:      entry.Type.Opposite(),
		Amount:    entry.Amount,
		Reference: entry.Reference,
		Note:      note,
	}, entry.ID)
}

// ReverseID loads and reverses an entry by ID.
func (l *Ledger) ReverseID(ctx context.Context, id, note string) (*ledger.BalanceEntry, error) {
	e, err := l.store.GetBalanceEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ledger.NotFound("balance entry", id)
	}
	return l.Reverse(ctx, *e, note)
}

// NetCharge is Σ withdrawals − Σ deposits for a source document: what the
// customer has been charged for it so far.
func (l *Ledger) NetCharge(ctx context.Context, refType ledger.ReferenceType, refID string) (decimal.Decimal, error) {
	entries, err := l.store.ListBalanceEntriesByReference(ctx, refType, refID)
	if err != nil {
		return decimal.Zero, err
	}
	net := decimal.Zero
	for _, e := range entries {
		net = net.Sub(e.Effect())
	}
	return net, nil
}

// Require fails with InsufficientBalance when the balance is below amount.
func (l *Ledger) Require(ctx context.Context, customer ledger.CustomerID, amount decimal.Decimal) error {
	c, err := l.customer(ctx, customer)
	if err != nil {
		return err
	}
	if c.Balance.LessThan(amount) {
		return &ledger.InsufficientBalanceError{CustomerID: customer, Available: c.Balance, Requested: amount}
	}
	return nil
}

func (l *Ledger) Balance(ctx context.Context, customer ledger.CustomerID) (decimal.Decimal, error) {
	c, err := l.customer(ctx, customer)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Balance, nil
}

func (l *Ledger) History(ctx context.Context, customer ledger.CustomerID, from, to time.Time) ([]ledger.BalanceEntry, error) {
	return l.store.ListBalanceEntries(ctx, customer, from, to)
}

// Verify replays the customer's entries and compares the result with the
// stored balance.
func (l *Ledger) Verify(ctx context.Context, customer ledger.CustomerID) error {
	c, err := l.customer(ctx, customer)
	if err != nil {
		return err
	}
	entries, err := l.store.ListBalanceEntries(ctx, customer, time.Time{}, time.Time{})
	if err != nil {
		return err
	}
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Effect())
	}
	if !sum.Equal(c.Balance) {
		return fmt.Errorf("customer %s balance drifted: stored %s, entries %s", customer, c.Balance, sum)
	}
	return nil
}

func (l *Ledger) customer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	c, err := l.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ledger.NotFound("customer", id)
	}
	return c, nil
}
