// Package credit decides whether a payment shortfall may be carried as
// customer credit and records it in the credit ledger.
package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrCreditDisabled       = errors.New("credit payment is not enabled for this company")
	ErrCustomerRequired     = errors.New("customer is required for credit payment")
	ErrConfirmationRequired = errors.New("credit payment must be confirmed")
	ErrCustomerNotFound     = errors.New("customer not found")
)

// CreditLimitExceededError is returned when a charge would push a customer
// above their credit limit.
type CreditLimitExceededError struct {
	CustomerID string
	Limit      decimal.Decimal
	Balance    decimal.Decimal
}

func (e *CreditLimitExceededError) Error() string {
	return fmt.Sprintf("customer %s credit limit %s exceeded: balance would be %s", e.CustomerID, e.Limit, e.Balance)
}

// TransactionType is the direction of a ledger row.
type TransactionType string

// TypeCredit increases what the customer owes.
const TypeCredit TransactionType = "credit"

// Customer is the part of a customer record the ledger needs.
type Customer struct {
	ID            string
	CompanyID     string
	Name          string
	CreditBalance decimal.Decimal
	// CreditLimit of 0 means unlimited.
	CreditLimit decimal.Decimal
}

// Transaction is an immutable credit ledger row.
type Transaction struct {
	ID            string
	CustomerID    string
	CompanyID     string
	SaleID        string
	Type          TransactionType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	CreatedAt     time.Time
}

// Repository provides customer lookups and ledger writes inside the
// caller's transaction.
type Repository interface {
	// GetCustomer returns ErrCustomerNotFound when the customer does not
	// exist in the company.
	GetCustomer(ctx context.Context, companyID, customerID string) (*Customer, error)
	// AddToBalance atomically adds amount to the customer's credit balance
	// and returns the customer as updated.
	AddToBalance(ctx context.Context, companyID, customerID string, amount decimal.Decimal) (*Customer, error)
	CreateTransaction(ctx context.Context, tx *Transaction) error
}
