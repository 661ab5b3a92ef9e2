package balance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/lock"
)

// =============================================================================
// INPUTS
// =============================================================================

// PostingInput creates or edits a deposit or adjustment. Deposits take a
// positive Amount; adjustments take a signed non-zero one.
type PostingInput struct {
	Customer ledger.CustomerID
	Date     time.Time
	Amount   decimal.Decimal
	Note     string
}

// =============================================================================
// POSTINGS - manual balance documents
// =============================================================================

// Postings runs the manual balance flows, each in its own transaction under
// the customer's lock.
type Postings struct {
	Store  ledger.TxStore
	Locker lock.Locker
	Logger logrus.FieldLogger
}

func NewPostings(store ledger.TxStore, locker lock.Locker, logger logrus.FieldLogger) *Postings {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &Postings{Store: store, Locker: locker, Logger: logger}
}

func (p *Postings) inTx(ctx context.Context, customer ledger.CustomerID, fn func(tx ledger.Store, l *Ledger) error) error {
	release, err := p.Locker.Acquire(ctx, lock.CustomerKey(customer))
	if err != nil {
		return err
	}
	defer release()

	return p.Store.WithTx(ctx, func(tx ledger.Store) error {
		return fn(tx, NewLedger(tx, p.Logger))
	})
}

// RegisterCustomer stores a new customer at zero and, when opening is
// non-zero, posts it as the first entry.
func (p *Postings) RegisterCustomer(ctx context.Context, c ledger.Customer, opening decimal.Decimal) (*ledger.Customer, error) {
	if c.ID == "" {
		return nil, ledger.Invalid("id", "required")
	}
	if !c.DepositType.Valid() {
		return nil, ledger.Invalid("deposit_type", "unknown deposit type %q", c.DepositType)
	}
	c.Balance = decimal.Zero

	err := p.inTx(ctx, c.ID, func(tx ledger.Store, l *Ledger) error {
		existing, err := tx.GetCustomer(ctx, c.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ledger.Invalid("id", "customer %s already exists", c.ID)
		}
		if err := tx.SaveCustomer(ctx, c); err != nil {
			return err
		}
		if opening.IsZero() {
			return nil
		}
		typ, amount := split(opening)
		_, err = l.Post(ctx, PostInput{
			Customer:  c.ID,
			Type:      typ,
			Amount:    amount,
			Reference: ledger.Reference{Type: ledger.RefOpening, ID: string(c.ID)},
			Note:      "opening balance",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	c.Balance = opening
	return &c, nil
}

func (p *Postings) CreateDeposit(ctx context.Context, in PostingInput) (*ledger.BalancePosting, error) {
	if !in.Amount.IsPositive() {
		return nil, ledger.Invalid("amount", "deposit must be positive")
	}
	return p.create(ctx, ledger.PostingDeposit, in)
}

func (p *Postings) UpdateDeposit(ctx context.Context, id string, in PostingInput) (*ledger.BalancePosting, error) {
	if !in.Amount.IsPositive() {
		return nil, ledger.Invalid("amount", "deposit must be positive")
	}
	return p.update(ctx, ledger.PostingDeposit, id, in)
}

func (p *Postings) DeleteDeposit(ctx context.Context, id string) error {
	return p.delete(ctx, ledger.PostingDeposit, id)
}

func (p *Postings) CreateAdjustment(ctx context.Context, in PostingInput) (*ledger.BalancePosting, error) {
	if in.Amount.IsZero() {
		return nil, ledger.Invalid("amount", "adjustment must not be zero")
	}
	return p.create(ctx, ledger.PostingAdjustment, in)
}

func (p *Postings) UpdateAdjustment(ctx context.Context, id string, in PostingInput) (*ledger.BalancePosting, error) {
	if in.Amount.IsZero() {
		return nil, ledger.Invalid("amount", "adjustment must not be zero")
	}
	return p.update(ctx, ledger.PostingAdjustment, id, in)
}

func (p *Postings) DeleteAdjustment(ctx context.Context, id string) error {
	return p.delete(ctx, ledger.PostingAdjustment, id)
}

// Overwrite sets a post-paid customer's balance to newBalance by posting
// the difference. Returns nil when the balance already matches.
func (p *Postings) Overwrite(ctx context.Context, customer ledger.CustomerID, newBalance decimal.Decimal, note string) (*ledger.BalanceEntry, error) {
	var entry *ledger.BalanceEntry
	err := p.inTx(ctx, customer, func(tx ledger.Store, l *Ledger) error {
		c, err := l.customer(ctx, customer)
		if err != nil {
			return err
		}
		if c.DepositType != ledger.DepositPostpaid {
			return ledger.Invalid("deposit_type", "balance overwrite is only allowed for postpaid customers")
		}
		diff := newBalance.Sub(c.Balance)
		if diff.IsZero() {
			return nil
		}
		typ, amount := split(diff)
		entry, err = l.Post(ctx, PostInput{
			Customer:  customer,
			Type:      typ,
			Amount:    amount,
			Reference: ledger.Reference{Type: ledger.RefOverwrite, ID: uuid.NewString()},
			Note:      note,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// =============================================================================
// READS
// =============================================================================

func (p *Postings) History(ctx context.Context, customer ledger.CustomerID, from, to time.Time) ([]ledger.BalanceEntry, error) {
	return p.Store.ListBalanceEntries(ctx, customer, from, to)
}

func (p *Postings) List(ctx context.Context, customer ledger.CustomerID, kind ledger.PostingKind) ([]ledger.BalancePosting, error) {
	return p.Store.ListPostings(ctx, customer, kind)
}

func (p *Postings) Customer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	return NewLedger(p.Store, p.Logger).customer(ctx, id)
}

func (p *Postings) Customers(ctx context.Context, org ledger.OrgID) ([]ledger.Customer, error) {
	return p.Store.ListCustomers(ctx, org)
}

func (p *Postings) Verify(ctx context.Context, customer ledger.CustomerID) error {
	return NewLedger(p.Store, p.Logger).Verify(ctx, customer)
}

// =============================================================================
// INTERNALS
// =============================================================================

func (p *Postings) create(ctx context.Context, kind ledger.PostingKind, in PostingInput) (*ledger.BalancePosting, error) {
	posting := ledger.BalancePosting{
		ID:         uuid.NewString(),
		Kind:       kind,
		CustomerID: in.Customer,
		Amount:     in.Amount,
		Date:       in.Date,
		Note:       in.Note,
	}
	err := p.inTx(ctx, in.Customer, func(tx ledger.Store, l *Ledger) error {
		entry, err := l.Post(ctx, postingInput(posting))
		if err != nil {
			return err
		}
		posting.EntryID = entry.ID
		posting.Date = entry.Date
		return tx.SavePosting(ctx, posting)
	})
	if err != nil {
		return nil, err
	}
	return &posting, nil
}

// update reverses the entry currently carrying the posting, then posts the
// new amount. The customer is fixed for the life of the posting.
func (p *Postings) update(ctx context.Context, kind ledger.PostingKind, id string, in PostingInput) (*ledger.BalancePosting, error) {
	current, err := p.load(ctx, p.Store, kind, id)
	if err != nil {
		return nil, err
	}

	var updated ledger.BalancePosting
	err = p.inTx(ctx, current.CustomerID, func(tx ledger.Store, l *Ledger) error {
		posting, err := p.load(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		if _, err := l.ReverseID(ctx, posting.EntryID, "edit "+string(kind)+" "+id); err != nil {
			return err
		}
		posting.Amount = in.Amount
		posting.Note = in.Note
		if !in.Date.IsZero() {
			posting.Date = in.Date
		}
		entry, err := l.Post(ctx, postingInput(*posting))
		if err != nil {
			return err
		}
		posting.EntryID = entry.ID
		posting.Date = entry.Date
		if err := tx.SavePosting(ctx, *posting); err != nil {
			return err
		}
		updated = *posting
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (p *Postings) delete(ctx context.Context, kind ledger.PostingKind, id string) error {
	current, err := p.load(ctx, p.Store, kind, id)
	if err != nil {
		return err
	}
	return p.inTx(ctx, current.CustomerID, func(tx ledger.Store, l *Ledger) error {
		posting, err := p.load(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		if _, err := l.ReverseID(ctx, posting.EntryID, "delete "+string(kind)+" "+id); err != nil {
			return err
		}
		return tx.DeletePosting(ctx, id)
	})
}

func (p *Postings) load(ctx context.Context, store ledger.Store, kind ledger.PostingKind, id string) (*ledger.BalancePosting, error) {
	posting, err := store.GetPosting(ctx, id)
	if err != nil {
		return nil, err
	}
	if posting == nil || posting.Kind != kind {
		return nil, ledger.NotFound(string(kind), id)
	}
	return posting, nil
}

func postingInput(p ledger.BalancePosting) PostInput {
	typ, amount := split(p.Amount)
	refType := ledger.RefDeposit
	if p.Kind == ledger.PostingAdjustment {
		refType = ledger.RefAdjustment
	}
	return PostInput{
		Customer:  p.CustomerID,
		Date:      p.Date,
		Type:      typ,
		Amount:    amount,
		Reference: ledger.Reference{Type: refType, ID: p.ID},
		Note:      p.Note,
	}
}

// split turns a signed change into an entry type and magnitude.
func split(v decimal.Decimal) (ledger.BalanceEntryType, decimal.Decimal) {
	if v.IsNegative() {
		return ledger.BalanceWithdrawal, v.Neg()
	}
	return ledger.BalanceDeposit, v
}
