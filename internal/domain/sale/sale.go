// Package sale coordinates pricing and settlement of a sale as a single
// atomic unit of work.
package sale

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/pos-settlement/internal/domain/catalog"
	"github.com/xenking/pos-settlement/internal/domain/company"
	"github.com/xenking/pos-settlement/internal/domain/credit"
	"github.com/xenking/pos-settlement/internal/domain/inventory"
	"github.com/xenking/pos-settlement/internal/domain/promotion"
	"github.com/xenking/pos-settlement/internal/domain/tax"
)

// Sale is a committed sale. It is never mutated after creation.
type Sale struct {
	ID                 string
	CompanyID          string
	CustomerID         string
	UserID             string
	PaymentMethod      string
	TaxConfigurationID string
	// Subtotal is the gross total of all normalized lines.
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	BalanceDue decimal.Decimal
	CreatedAt  time.Time
	Items      []Item
}

// Item is one persisted line of a sale, container lines included.
type Item struct {
	ID          string
	SaleID      string
	ProductID   string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	IsContainer bool
}

// Repository persists sales.
type Repository interface {
	Create(ctx context.Context, s *Sale) error
	CreateItems(ctx context.Context, items []Item) error
}

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Catalog() catalog.Repository
	Companies() company.Repository
	Promotions() promotion.Repository
	Taxes() tax.Repository
	Customers() credit.Repository
	Stock() inventory.Repository
	Sales() Repository
}

// Store runs fn inside a unit of work. The work commits when fn returns
// nil and rolls back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
