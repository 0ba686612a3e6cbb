// Package credit is a coffee-credit flow: a card owner sees who owes them money, marks
// payments (whole debts or typed amounts spread over the oldest debts first), reminds
// debtors and browses the payment history.
package credit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDebtNotFound is returned for an unknown debt id.
	ErrDebtNotFound = errors.New("debt not found")

	// ErrOverpayment is returned when a payment exceeds what is outstanding.
	ErrOverpayment = errors.New("payment exceeds outstanding amount")
)

// Debt is money a debtor owes the creditor for one coffee card.
type Debt struct {
	ID        string
	Debtor    string    // Display name of the debtor
	DebtorID  int64     // Telegram user id of the debtor, 0 when unknown
	Card      string    // Coffee card the debt was made on
	Total     float64   // Amount owed in total
	Paid      float64   // Amount paid so far
	CreatedAt time.Time // Older debts are paid first
}

// Outstanding returns what is still owed.
func (d Debt) Outstanding() float64 {
	return d.Total - d.Paid
}

// Payment is one recorded payment.
type Payment struct {
	DebtID string
	Debtor string
	Card   string
	Amount float64
	At     time.Time
}

// Profile describes a creditor.
type Profile struct {
	Name       string
	PayPalLink string // Optional, appended to reminders
}

// Ledger stores debts and payments.
type Ledger interface {
	// Credits returns the unsettled debts owed to creditorID.
	Credits(ctx context.Context, creditorID int64) ([]Debt, error)
	// ApplyPayment records amount against a debt.
	ApplyPayment(ctx context.Context, creditorID int64, debtID string, amount float64) error
	// History returns the payments received by creditorID, newest first.
	History(ctx context.Context, creditorID int64) ([]Payment, error)
	// Profile returns the creditor's profile.
	Profile(ctx context.Context, creditorID int64) (Profile, error)
}

// Notifier delivers payment reminders to debtors.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID int64, text string) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, userID int64, text string) error {
	return f(ctx, userID, text)
}

func euros(v float64) string {
	return fmt.Sprintf("%.2f €", v)
}
