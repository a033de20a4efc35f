package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pos-settlement/internal/domain/catalog"
	"github.com/xenking/pos-settlement/internal/domain/company"
	"github.com/xenking/pos-settlement/internal/domain/credit"
	"github.com/xenking/pos-settlement/internal/domain/inventory"
	"github.com/xenking/pos-settlement/internal/domain/promotion"
	"github.com/xenking/pos-settlement/internal/domain/sale"
	"github.com/xenking/pos-settlement/internal/domain/tax"
)

var _ sale.Store = (*Store)(nil)

// Store opens read-committed transactions on a pool. Row-level
// consistency comes from conditional updates, not from isolation level.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store that uses the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithinTx implements sale.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx sale.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, &unit{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type unit struct {
	q querier
}

func (u *unit) Catalog() catalog.Repository { return &ProductRepository{q: u.q} }
func (u *unit) Companies() company.Repository { return &CompanyRepository{q: u.q} }
func (u *unit) Promotions() promotion.Repository { return &PromotionRepository{q: u.q} }
func (u *unit) Taxes() tax.Repository { return &TaxRepository{q: u.q} }
func (u *unit) Customers() credit.Repository { return &CustomerRepository{q: u.q} }
func (u *unit) Stock() inventory.Repository { return &ProductRepository{q: u.q} }
func (u *unit) Sales() sale.Repository { return &SaleRepository{q: u.q} }

// Products returns a ProductRepository that runs outside a unit of work.
func (s *Store) Products() *ProductRepository { return &ProductRepository{q: s.pool} }

// Promotions returns a PromotionRepository that runs outside a unit of work.
func (s *Store) Promotions() *PromotionRepository { return &PromotionRepository{q: s.pool} }

// Taxes returns a TaxRepository that runs outside a unit of work.
func (s *Store) Taxes() *TaxRepository { return &TaxRepository{q: s.pool} }

// Customers returns a CustomerRepository that runs outside a unit of work.
func (s *Store) Customers() *CustomerRepository { return &CustomerRepository{q: s.pool} }

// Companies returns a CompanyRepository that runs outside a unit of work.
func (s *Store) Companies() *CompanyRepository { return &CompanyRepository{q: s.pool} }
