// Package inventory applies stock decrements for sold cart lines.
package inventory

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/pos-settlement/internal/domain/cart"
)

// InsufficientStockError is returned when a product does not have enough
// stock for the requested quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d", e.ProductID, e.Requested)
}

// Repository performs stock updates inside the caller's transaction.
type Repository interface {
	// DecrementStock subtracts quantity only when the current stock covers
	// it. It returns the remaining stock, or InsufficientStockError and
	// leaves the row untouched.
	DecrementStock(ctx context.Context, companyID, productID string, quantity int) (int, error)
	// CheckStock verifies the current stock covers quantity without changing
	// it, returning InsufficientStockError otherwise.
	CheckStock(ctx context.Context, companyID, productID string, quantity int) error
}

// Mutator verifies stock for every line and decrements it for stock-tracked
// lines.
type Mutator struct {
	repo Repository
}

func NewMutator(repo Repository) *Mutator {
	return &Mutator{repo: repo}
}

// Apply decrements stock for each line with TrackStock set and only checks
// availability for the others. The first shortfall aborts; earlier
// decrements are undone by the caller's rollback.
func (m *Mutator) Apply(ctx context.Context, companyID string, lines []cart.Line) error {
	for _, l := range lines {
		if !l.TrackStock {
			if err := m.repo.CheckStock(ctx, companyID, l.ProductID, l.Quantity); err != nil {
				return errors.Wrapf(err, "check stock of %s", l.ProductID)
			}
			continue
		}
		if _, err := m.repo.DecrementStock(ctx, companyID, l.ProductID, l.Quantity); err != nil {
			return errors.Wrapf(err, "decrement stock of %s", l.ProductID)
		}
	}
	return nil
}
