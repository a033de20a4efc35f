package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-settlement/internal/domain/credit"
)

const (
	customerColumns = `id, company_id, name, credit_balance, credit_limit`

	getCustomerSQL = `SELECT ` + customerColumns + ` FROM customers
		WHERE company_id = $1 AND id = $2`

	addToBalanceSQL = `UPDATE customers SET credit_balance = credit_balance + $3
		WHERE company_id = $1 AND id = $2
		RETURNING ` + customerColumns

	createCreditTransactionSQL = `INSERT INTO credit_transactions
		(id, customer_id, company_id, sale_id, type, amount, balance_before, balance_after, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)`

	insertCustomerSQL = `INSERT INTO customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
)

var _ credit.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements credit.Repository backed by PostgreSQL.
type CustomerRepository struct {
	q querier
}

// GetCustomer returns credit.ErrCustomerNotFound when the customer does not
// belong to the company.
func (r *CustomerRepository) GetCustomer(ctx context.Context, companyID, customerID string) (*credit.Customer, error) {
	rows, err := r.q.Query(ctx, getCustomerSQL, companyID, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting customer %q: %w", customerID, err)
	}
	return collectCustomer(rows, customerID)
}

// AddToBalance updates the balance in place and returns the new row, so
// the caller never works from a stale read.
func (r *CustomerRepository) AddToBalance(ctx context.Context, companyID, customerID string, amount decimal.Decimal) (*credit.Customer, error) {
	rows, err := r.q.Query(ctx, addToBalanceSQL, companyID, customerID, amount)
	if err != nil {
		return nil, fmt.Errorf("updating balance of customer %q: %w", customerID, err)
	}
	return collectCustomer(rows, customerID)
}

func (r *CustomerRepository) CreateTransaction(ctx context.Context, tx *credit.Transaction) error {
	_, err := r.q.Exec(ctx, createCreditTransactionSQL,
		tx.ID, tx.CustomerID, tx.CompanyID, tx.SaleID, string(tx.Type),
		tx.Amount, tx.BalanceBefore, tx.BalanceAfter, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating credit transaction for customer %q: %w", tx.CustomerID, err)
	}
	return nil
}

// Insert adds a customer unless one with the same id exists.
func (r *CustomerRepository) Insert(ctx context.Context, c *credit.Customer) error {
	_, err := r.q.Exec(ctx, insertCustomerSQL, c.ID, c.CompanyID, c.Name, c.CreditBalance, c.CreditLimit)
	if err != nil {
		return fmt.Errorf("inserting customer %q: %w", c.ID, err)
	}
	return nil
}

func collectCustomer(rows pgx.Rows, customerID string) (*credit.Customer, error) {
	c, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (credit.Customer, error) {
		var c credit.Customer
		err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.CreditBalance, &c.CreditLimit)
		return c, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, credit.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("scanning customer %q: %w", customerID, err)
	}
	return &c, nil
}
