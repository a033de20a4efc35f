package cart

import (
	"context"
	"fmt"
	"slices"

	"github.com/xenking/pos-settlement/internal/domain/catalog"
)

// Normalizer expands main items with their dependent container lines.
type Normalizer struct {
	catalog catalog.Repository
}

// NewNormalizer creates a Normalizer backed by the given catalog.
func NewNormalizer(c catalog.Repository) *Normalizer {
	return &Normalizer{catalog: c}
}

// Normalize validates items, fetches their products in a single batch and
// appends one container line per declared container link. Main items keep
// their order and stated prices; container lines follow them in main-item
// order. Container products must exist in the company catalog too.
func (n *Normalizer) Normalize(ctx context.Context, companyID string, items []Item) (*Cart, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidItemError{ProductID: item.ProductID, Reason: "quantity must be greater than 0"}
		}
		if item.UnitPrice.IsNegative() {
			return nil, &InvalidItemError{ProductID: item.ProductID, Reason: "price must not be negative"}
		}
		ids = append(ids, item.ProductID)
	}

	fetched, err := n.catalog.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	products := make(map[string]catalog.Product, len(fetched))
	for _, p := range fetched {
		products[p.ID] = p
	}

	c := &Cart{
		Main:     make([]Line, 0, len(items)),
		Products: products,
	}
	var containers []Line
	for _, item := range items {
		p, ok := products[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}

		c.Main = append(c.Main, Line{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TrackStock: true,
		})

		for _, link := range p.Containers {
			if link.Ratio <= 0 {
				continue
			}
			containers = append(containers, Line{
				ProductID:   link.ContainerID,
				Quantity:    item.Quantity * link.Ratio,
				UnitPrice:   link.DepositPrice,
				IsContainer: true,
				TrackStock:  link.TrackStock,
			})
		}
	}

	if err := n.verifyContainers(ctx, companyID, products, containers); err != nil {
		return nil, err
	}

	c.Lines = make([]Line, 0, len(c.Main)+len(containers))
	c.Lines = append(c.Lines, c.Main...)
	c.Lines = append(c.Lines, containers...)

	return c, nil
}

// verifyContainers looks up container products that were not requested as
// main items.
func (n *Normalizer) verifyContainers(ctx context.Context, companyID string, known map[string]catalog.Product, containers []Line) error {
	var ids []string
	for _, l := range containers {
		if _, ok := known[l.ProductID]; !ok && !slices.Contains(ids, l.ProductID) {
			ids = append(ids, l.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	fetched, err := n.catalog.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return fmt.Errorf("get container products: %w", err)
	}
	found := make(map[string]struct{}, len(fetched))
	for _, p := range fetched {
		found[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return &ProductNotFoundError{ProductID: id}
		}
	}
	return nil
}
