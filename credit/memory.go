package credit

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0xVanfer/tg-flow/flowutil"
)

type account struct {
	profile  Profile
	debts    map[string]*Debt
	payments []Payment
}

// MemoryLedger is an in-memory Ledger. It is safe for concurrent use.
type MemoryLedger struct {
	// Demo seeds sample debts for creditors seen for the first time.
	Demo bool

	mu       sync.Mutex
	accounts map[int64]*account
	now      func() time.Time
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{accounts: make(map[int64]*account), now: time.Now}
}

func (l *MemoryLedger) account(creditorID int64) *account {
	a, ok := l.accounts[creditorID]
	if !ok {
		a = &account{profile: Profile{Name: fmt.Sprintf("user %d", creditorID)}, debts: make(map[string]*Debt)}
		l.accounts[creditorID] = a
		if l.Demo {
			l.seed(a)
		}
	}
	return a
}

func (l *MemoryLedger) seed(a *account) {
	base := l.now().Add(-30 * 24 * time.Hour)
	for i, d := range []Debt{
		{Debtor: "Alice", Card: "Office Card", Total: 4.50},
		{Debtor: "Bob", Card: "Office Card", Total: 2.00},
		{Debtor: "Alice", Card: "Lab Card", Total: 3.20},
		{Debtor: "Carol", Card: "Lab Card", Total: 6.40, Paid: 1.40},
	} {
		d.ID = uuid.NewString()
		d.CreatedAt = base.Add(time.Duration(i) * 24 * time.Hour)
		a.debts[d.ID] = &d
	}
}

// SetProfile sets the creditor's profile.
func (l *MemoryLedger) SetProfile(creditorID int64, p Profile) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.account(creditorID).profile = p
}

// AddDebt records a debt owed to creditorID and returns it with its id set.
func (l *MemoryLedger) AddDebt(creditorID int64, d Debt) Debt {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = l.now()
	}
	l.account(creditorID).debts[d.ID] = &d
	return d
}

// Credits implements Ledger. Debts are ordered by creation time.
func (l *MemoryLedger) Credits(_ context.Context, creditorID int64) ([]Debt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Debt
	for _, d := range l.account(creditorID).debts {
		if d.Outstanding() > 0.005 {
			out = append(out, *d)
		}
	}
	slices.SortFunc(out, func(a, b Debt) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// ApplyPayment implements Ledger.
func (l *MemoryLedger) ApplyPayment(_ context.Context, creditorID int64, debtID string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.account(creditorID)
	d, ok := a.debts[debtID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDebtNotFound, debtID)
	}
	if flowutil.RoundCents(amount) > flowutil.RoundCents(d.Outstanding()) {
		return fmt.Errorf("%w: %s > %s", ErrOverpayment, euros(amount), euros(d.Outstanding()))
	}
	d.Paid = flowutil.RoundCents(d.Paid + amount)
	a.payments = append(a.payments, Payment{
		DebtID: d.ID,
		Debtor: d.Debtor,
		Card:   d.Card,
		Amount: amount,
		At:     l.now(),
	})
	return nil
}

// History implements Ledger.
func (l *MemoryLedger) History(_ context.Context, creditorID int64) ([]Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	payments := slices.Clone(l.account(creditorID).payments)
	slices.Reverse(payments)
	return payments, nil
}

// Profile implements Ledger.
func (l *MemoryLedger) Profile(_ context.Context, creditorID int64) (Profile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account(creditorID).profile, nil
}
