// Package memory provides an in-process implementation of the sale unit of
// work. It backs local development runs without a database and the
// coordinator tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xenking/pos-settlement/internal/domain/catalog"
	"github.com/xenking/pos-settlement/internal/domain/company"
	"github.com/xenking/pos-settlement/internal/domain/credit"
	"github.com/xenking/pos-settlement/internal/domain/inventory"
	"github.com/xenking/pos-settlement/internal/domain/promotion"
	"github.com/xenking/pos-settlement/internal/domain/sale"
	"github.com/xenking/pos-settlement/internal/domain/tax"
)

var _ sale.Store = (*Store)(nil)

type state struct {
	products   map[string]catalog.Product
	settings   map[string]company.Settings
	promotions []promotion.Promotion
	usages     []promotion.Usage
	taxes      []tax.Configuration
	customers  map[string]credit.Customer
	creditTxs  []credit.Transaction
	sales      []sale.Sale
	saleItems  []sale.Item
}

func (s *state) clone() *state {
	return &state{
		products:   maps.Clone(s.products),
		settings:   maps.Clone(s.settings),
		promotions: slices.Clone(s.promotions),
		usages:     slices.Clone(s.usages),
		taxes:      slices.Clone(s.taxes),
		customers:  maps.Clone(s.customers),
		creditTxs:  slices.Clone(s.creditTxs),
		sales:      slices.Clone(s.sales),
		saleItems:  slices.Clone(s.saleItems),
	}
}

// Store keeps all data in memory. Units of work are serialized; each one
// operates on a private copy that replaces the committed state only when
// the work succeeds.
type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: &state{
		products:  make(map[string]catalog.Product),
		settings:  make(map[string]company.Settings),
		customers: make(map[string]credit.Customer),
	}}
}

// WithinTx implements sale.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx sale.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &unit{s: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

type unit struct {
	s *state
}

func (u *unit) Catalog() catalog.Repository { return productRepo{u.s} }
func (u *unit) Companies() company.Repository { return companyRepo{u.s} }
func (u *unit) Promotions() promotion.Repository { return promotionRepo{u.s} }
func (u *unit) Taxes() tax.Repository { return taxRepo{u.s} }
func (u *unit) Customers() credit.Repository { return customerRepo{u.s} }
func (u *unit) Stock() inventory.Repository { return productRepo{u.s} }
func (u *unit) Sales() sale.Repository { return saleRepo{u.s} }
