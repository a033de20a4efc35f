package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/pos-settlement/internal/domain/catalog"
	"github.com/xenking/pos-settlement/internal/domain/company"
	"github.com/xenking/pos-settlement/internal/domain/credit"
	"github.com/xenking/pos-settlement/internal/domain/inventory"
	"github.com/xenking/pos-settlement/internal/domain/promotion"
	"github.com/xenking/pos-settlement/internal/domain/sale"
	"github.com/xenking/pos-settlement/internal/domain/tax"
)

var (
	_ catalog.Repository   = productRepo{}
	_ inventory.Repository = productRepo{}
	_ company.Repository   = companyRepo{}
	_ promotion.Repository = promotionRepo{}
	_ tax.Repository       = taxRepo{}
	_ credit.Repository    = customerRepo{}
	_ sale.Repository      = saleRepo{}
)

type productRepo struct{ s *state }

func (r productRepo) GetByIDs(_ context.Context, companyID string, ids []string) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := r.s.products[id]; ok && p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r productRepo) DecrementStock(_ context.Context, companyID, productID string, quantity int) (int, error) {
	p, ok := r.s.products[productID]
	if !ok || p.CompanyID != companyID || p.StockQuantity < quantity {
		return 0, &inventory.InsufficientStockError{ProductID: productID, Requested: quantity}
	}
	p.StockQuantity -= quantity
	r.s.products[productID] = p
	return p.StockQuantity, nil
}

func (r productRepo) CheckStock(_ context.Context, companyID, productID string, quantity int) error {
	p, ok := r.s.products[productID]
	if !ok || p.CompanyID != companyID || p.StockQuantity < quantity {
		return &inventory.InsufficientStockError{ProductID: productID, Requested: quantity}
	}
	return nil
}

type companyRepo struct{ s *state }

func (r companyRepo) GetSettings(_ context.Context, companyID string) (*company.Settings, error) {
	st, ok := r.s.settings[companyID]
	if !ok {
		st = company.Settings{CompanyID: companyID}
	}
	return &st, nil
}

type promotionRepo struct{ s *state }

func (r promotionRepo) ListActive(_ context.Context, companyID string, at time.Time) ([]promotion.Promotion, error) {
	var out []promotion.Promotion
	for _, p := range r.s.promotions {
		if p.CompanyID == companyID && p.ActiveAt(at) {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b promotion.Promotion) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	return out, nil
}

// LockForUsage only checks existence; the store mutex already serializes
// units of work.
func (r promotionRepo) LockForUsage(_ context.Context, promotionID string) error {
	if !slices.ContainsFunc(r.s.promotions, func(p promotion.Promotion) bool { return p.ID == promotionID }) {
		return promotion.ErrNotFound
	}
	return nil
}

func (r promotionRepo) CountCustomerUsage(_ context.Context, promotionID, customerID string) (int, error) {
	n := 0
	for _, u := range r.s.usages {
		if u.PromotionID == promotionID && u.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (r promotionRepo) IncrementUsage(_ context.Context, promotionID string) error {
	i := slices.IndexFunc(r.s.promotions, func(p promotion.Promotion) bool { return p.ID == promotionID })
	if i < 0 {
		return promotion.ErrNotFound
	}
	p := &r.s.promotions[i]
	if p.Exhausted() {
		return promotion.ErrUsageLimitReached
	}
	p.UsageCount++
	return nil
}

func (r promotionRepo) RecordUsage(_ context.Context, u *promotion.Usage) error {
	r.s.usages = append(r.s.usages, *u)
	return nil
}

type taxRepo struct{ s *state }

func (r taxRepo) find(match func(c *tax.Configuration) bool) (*tax.Configuration, error) {
	for i := range r.s.taxes {
		if c := r.s.taxes[i]; match(&c) {
			return &c, nil
		}
	}
	return nil, tax.ErrNotFound
}

func (r taxRepo) GetByID(_ context.Context, id string) (*tax.Configuration, error) {
	return r.find(func(c *tax.Configuration) bool { return c.ID == id })
}

func (r taxRepo) CompanyDefault(_ context.Context, companyID string) (*tax.Configuration, error) {
	return r.find(func(c *tax.Configuration) bool { return c.CompanyID == companyID && c.IsDefault })
}

func (r taxRepo) SystemDefault(context.Context) (*tax.Configuration, error) {
	return r.find(func(c *tax.Configuration) bool { return c.Global() && c.IsSystemDefault })
}

type customerRepo struct{ s *state }

func (r customerRepo) GetCustomer(_ context.Context, companyID, customerID string) (*credit.Customer, error) {
	c, ok := r.s.customers[customerID]
	if !ok || c.CompanyID != companyID {
		return nil, credit.ErrCustomerNotFound
	}
	return &c, nil
}

func (r customerRepo) AddToBalance(_ context.Context, companyID, customerID string, amount decimal.Decimal) (*credit.Customer, error) {
	c, ok := r.s.customers[customerID]
	if !ok || c.CompanyID != companyID {
		return nil, credit.ErrCustomerNotFound
	}
	c.CreditBalance = c.CreditBalance.Add(amount)
	r.s.customers[customerID] = c
	return &c, nil
}

func (r customerRepo) CreateTransaction(_ context.Context, tx *credit.Transaction) error {
	r.s.creditTxs = append(r.s.creditTxs, *tx)
	return nil
}

type saleRepo struct{ s *state }

func (r saleRepo) Create(_ context.Context, s *sale.Sale) error {
	stored := *s
	stored.Items = nil
	r.s.sales = append(r.s.sales, stored)
	return nil
}

func (r saleRepo) CreateItems(_ context.Context, items []sale.Item) error {
	r.s.saleItems = append(r.s.saleItems, items...)
	return nil
}
