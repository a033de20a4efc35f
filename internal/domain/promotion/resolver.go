package promotion

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Item is a main cart item as seen by the resolver.
type Item struct {
	ProductID string
	Category  string
	Quantity  int
	Price     decimal.Decimal
}

// Request holds the input for promotion resolution.
type Request struct {
	CompanyID string
	// CustomerID is optional; per-customer limits are only checked when set.
	CustomerID string
	// CartTotal is the total of main items at their stated prices.
	CartTotal decimal.Decimal
	Items     []Item
}

// Resolution is the outcome of promotion resolution.
type Resolution struct {
	Total   decimal.Decimal
	Applied []Applied
}

// Resolver selects eligible promotions and applies the stacking policy.
type Resolver struct {
	repo Repository
	now  func() time.Time
}

// NewResolver creates a Resolver backed by the given Repository.
func NewResolver(repo Repository, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{repo: repo, now: now}
}

// Resolve evaluates the company's promotions in priority order. Stackable
// discounts accumulate; the first non-stackable promotion with a positive
// discount replaces everything accumulated so far and ends evaluation.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	now := r.now()

	promos, err := r.repo.ListActive(ctx, req.CompanyID, now)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}
	slices.SortStableFunc(promos, func(a, b Promotion) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	aggregates := aggregate(req.Items)
	res := &Resolution{Total: decimal.Zero}

	for i := range promos {
		p := &promos[i]
		if !p.ActiveAt(now) || p.Exhausted() {
			continue
		}

		if req.CustomerID != "" && p.UsageLimitPerCustomer > 0 {
			if err := r.repo.LockForUsage(ctx, p.ID); err != nil {
				return nil, errors.Wrapf(err, "lock promotion %s", p.ID)
			}
			used, err := r.repo.CountCustomerUsage(ctx, p.ID, req.CustomerID)
			if err != nil {
				return nil, errors.Wrapf(err, "count usage of promotion %s", p.ID)
			}
			if used >= p.UsageLimitPerCustomer {
				continue
			}
		}

		rule, err := p.Rule()
		if err != nil {
			zctx.From(ctx).Warn("Skipping promotion",
				zap.String("promotion_id", p.ID),
				zap.Error(err),
			)
			continue
		}

		scoped := newScoped(inScope(p, aggregates))
		if req.CartTotal.LessThan(p.MinimumPurchase) || scoped.Quantity < p.MinimumQuantity {
			continue
		}

		amount := discount(rule, scoped)
		if !amount.IsPositive() {
			continue
		}

		applied := Applied{
			PromotionID: p.ID,
			Name:        p.Name,
			Type:        p.Type,
			Discount:    amount,
		}
		if !p.IsStackable {
			res.Applied = []Applied{applied}
			res.Total = amount
			break
		}
		res.Applied = append(res.Applied, applied)
		res.Total = res.Total.Add(amount)
	}

	return res, nil
}

// Redeem increments the usage counter of every applied promotion and writes
// one usage row each.
func (r *Resolver) Redeem(ctx context.Context, saleID, customerID string, applied []Applied) ([]Usage, error) {
	usages := make([]Usage, 0, len(applied))
	usedAt := r.now()
	for _, a := range applied {
		if err := r.repo.IncrementUsage(ctx, a.PromotionID); err != nil {
			return nil, errors.Wrapf(err, "increment usage of promotion %s", a.PromotionID)
		}

		u := Usage{
			ID:             uuid.NewString(),
			PromotionID:    a.PromotionID,
			CustomerID:     customerID,
			SaleID:         saleID,
			DiscountAmount: a.Discount,
			UsedAt:         usedAt,
		}
		if err := r.repo.RecordUsage(ctx, &u); err != nil {
			return nil, errors.Wrapf(err, "record usage of promotion %s", a.PromotionID)
		}
		usages = append(usages, u)
	}
	return usages, nil
}

// aggregate merges items by product id in first-seen order. When the same
// product appears at different prices the lowest price is kept.
func aggregate(items []Item) []Aggregate {
	index := make(map[string]int, len(items))
	out := make([]Aggregate, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			out[i].Quantity += item.Quantity
			out[i].Price = decimal.Min(out[i].Price, item.Price)
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, Aggregate{
			ProductID: item.ProductID,
			Category:  item.Category,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return out
}

func inScope(p *Promotion, items []Aggregate) []Aggregate {
	var match func(a Aggregate) bool
	switch p.Scope {
	case ScopeProduct:
		match = func(a Aggregate) bool { return slices.Contains(p.ScopeItems, a.ProductID) }
	case ScopeCategory:
		match = func(a Aggregate) bool { return slices.Contains(p.ScopeItems, a.Category) }
	default:
		return items
	}

	out := make([]Aggregate, 0, len(items))
	for _, a := range items {
		if match(a) {
			out = append(out, a)
		}
	}
	return out
}
