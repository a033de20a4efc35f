package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a sellable catalog entry owned by a company.
type Product struct {
	ID            string
	CompanyID     string
	Name          string
	Category      string
	Price         decimal.Decimal
	StockQuantity int
	Containers    []ContainerLink
}

// ContainerLink declares a returnable container that must accompany every
// sold unit of a product.
type ContainerLink struct {
	// ContainerID is the product id of the container item.
	ContainerID string
	// Ratio is the number of container units per sold unit.
	Ratio int
	// DepositPrice is charged per container unit.
	DepositPrice decimal.Decimal
	// TrackStock reports whether container units are decremented from stock.
	TrackStock bool
}

// Repository defines read operations for the product catalog.
type Repository interface {
	// GetByIDs returns the company's products matching any of ids, with
	// their container links populated. Missing ids are silently omitted.
	GetByIDs(ctx context.Context, companyID string, ids []string) ([]Product, error)
}
