// Package cart expands a requested cart into the billable, stock-affecting
// line items of a sale.
package cart

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-settlement/internal/domain/catalog"
)

// ErrEmptyCart is returned when a cart has no items.
var ErrEmptyCart = errors.New("items required")

// ProductNotFoundError indicates a requested product does not exist in the
// actor's company catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidItemError indicates a line item with a non-positive quantity or a
// negative price.
type InvalidItemError struct {
	ProductID string
	Reason    string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid item %s: %s", e.ProductID, e.Reason)
}

// Item is a main item as requested by the customer.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Line is a normalized cart line: either a main item or a container line
// derived from one.
type Line struct {
	ProductID   string
	Quantity    int
	UnitPrice   decimal.Decimal
	IsContainer bool
	// TrackStock reports whether the line decrements product stock.
	TrackStock bool
}

// Total returns quantity × unit price.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the result of normalization.
type Cart struct {
	// Main holds the requested items in request order.
	Main []Line
	// Lines holds Main followed by every derived container line.
	Lines []Line
	// Products indexes the catalog entries of the main items by id.
	Products map[string]catalog.Product
}

// MainTotal returns the total of main items at their stated prices.
func (c *Cart) MainTotal() decimal.Decimal {
	return sum(c.Main)
}

// GrossTotal returns the total of all normalized lines, containers included.
func (c *Cart) GrossTotal() decimal.Decimal {
	return sum(c.Lines)
}

// Category returns the catalog category of a main item's product.
func (c *Cart) Category(productID string) string {
	return c.Products[productID].Category
}

func sum(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}
