package credit

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment describes how a sale is being paid.
type Payment struct {
	NetTotal   decimal.Decimal
	AmountPaid decimal.Decimal
	CustomerID string
	// CreditEnabled is the company-level switch for credit payments.
	CreditEnabled bool
	// Confirmed is the caller's explicit consent to carry the shortfall.
	Confirmed bool
}

// BalanceDue is max(0, NetTotal - max(0, AmountPaid)).
func (p Payment) BalanceDue() decimal.Decimal {
	paid := p.AmountPaid
	if paid.IsNegative() {
		paid = decimal.Zero
	}
	due := p.NetTotal.Sub(paid)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// Assess returns the balance due and fails when a positive balance may not
// be carried as credit.
func Assess(p Payment) (decimal.Decimal, error) {
	due := p.BalanceDue()
	if !due.IsPositive() {
		return due, nil
	}
	switch {
	case !p.CreditEnabled:
		return due, ErrCreditDisabled
	case p.CustomerID == "":
		return due, ErrCustomerRequired
	case !p.Confirmed:
		return due, ErrConfirmationRequired
	}
	return due, nil
}

// Ledger records credit charges against customers.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

func NewLedger(repo Repository, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{repo: repo, now: now}
}

// Charge adds amount to the customer's balance and writes the matching
// ledger row. The balance update and the row must share a transaction;
// a CreditLimitExceededError leaves it to the caller to roll back.
func (l *Ledger) Charge(ctx context.Context, companyID, customerID, saleID string, amount decimal.Decimal) (*Transaction, error) {
	c, err := l.repo.AddToBalance(ctx, companyID, customerID, amount)
	if err != nil {
		return nil, errors.Wrap(err, "add to balance")
	}
	if c.CreditLimit.IsPositive() && c.CreditBalance.GreaterThan(c.CreditLimit) {
		return nil, &CreditLimitExceededError{
			CustomerID: customerID,
			Limit:      c.CreditLimit,
			Balance:    c.CreditBalance,
		}
	}

	tx := &Transaction{
		ID:            uuid.NewString(),
		CustomerID:    customerID,
		CompanyID:     companyID,
		SaleID:        saleID,
		Type:          TypeCredit,
		Amount:        amount,
		BalanceBefore: c.CreditBalance.Sub(amount),
		BalanceAfter:  c.CreditBalance,
		CreatedAt:     l.now(),
	}
	if err := l.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, errors.Wrap(err, "create credit transaction")
	}
	return tx, nil
}
