package promotion

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Aggregate is the merged quantity and price of one product in the cart.
type Aggregate struct {
	ProductID string
	Category  string
	Quantity  int
	Price     decimal.Decimal
}

// Scoped is the part of a cart a promotion is allowed to discount.
type Scoped struct {
	Items    []Aggregate
	Subtotal decimal.Decimal
	Quantity int
}

func newScoped(items []Aggregate) Scoped {
	s := Scoped{Items: items, Subtotal: decimal.Zero}
	for _, a := range items {
		s.Subtotal = s.Subtotal.Add(a.Price.Mul(decimal.NewFromInt(int64(a.Quantity))))
		s.Quantity += a.Quantity
	}
	return s
}

// Rule is a promotion's discount strategy. The set of implementations is
// closed: Percentage, FixedAmount, BuyXGetY, SpendSave and BulkDiscount.
type Rule interface {
	// Discount computes the raw discount for the scoped items.
	Discount(s Scoped) decimal.Decimal
	rule()
}

// Percentage takes Rate percent off the scoped subtotal.
type Percentage struct {
	Rate decimal.Decimal
}

// FixedAmount takes Amount off, capped at the scoped subtotal.
type FixedAmount struct {
	Amount decimal.Decimal
}

// BuyXGetY gives Get units free for every Buy units of a product in scope.
// The free units are counted within the purchased quantity.
type BuyXGetY struct {
	Buy int
	Get int
}

// SpendSave takes Rate percent off once the scoped subtotal reaches
// MinimumPurchase.
type SpendSave struct {
	Rate            decimal.Decimal
	MinimumPurchase decimal.Decimal
}

// BulkDiscount takes Rate percent off once the scoped quantity reaches
// MinimumQuantity.
type BulkDiscount struct {
	Rate            decimal.Decimal
	MinimumQuantity int
}

func (Percentage) rule() {}
func (FixedAmount) rule() {}
func (BuyXGetY) rule() {}
func (SpendSave) rule() {}
func (BulkDiscount) rule() {}

func (r Percentage) Discount(s Scoped) decimal.Decimal {
	return percentOf(s.Subtotal, r.Rate)
}

func (r FixedAmount) Discount(s Scoped) decimal.Decimal {
	return decimal.Min(r.Amount, s.Subtotal)
}

func (r BuyXGetY) Discount(s Scoped) decimal.Decimal {
	if r.Buy <= 0 || r.Get <= 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, a := range s.Items {
		groups := a.Quantity / r.Buy
		free := decimal.NewFromInt(int64(groups * r.Get))
		total = total.Add(free.Mul(a.Price))
	}
	return total
}

func (r SpendSave) Discount(s Scoped) decimal.Decimal {
	if s.Subtotal.LessThan(r.MinimumPurchase) {
		return decimal.Zero
	}
	return percentOf(s.Subtotal, r.Rate)
}

func (r BulkDiscount) Discount(s Scoped) decimal.Decimal {
	if s.Quantity < r.MinimumQuantity {
		return decimal.Zero
	}
	return percentOf(s.Subtotal, r.Rate)
}

// Rule returns the strategy for the promotion's type.
func (p *Promotion) Rule() (Rule, error) {
	switch p.Type {
	case TypePercentage:
		return Percentage{Rate: p.DiscountValue}, nil
	case TypeFixedAmount:
		return FixedAmount{Amount: p.DiscountValue}, nil
	case TypeBuyXGetY:
		return BuyXGetY{Buy: p.BuyQuantity, Get: p.GetQuantity}, nil
	case TypeSpendSave:
		return SpendSave{Rate: p.DiscountValue, MinimumPurchase: p.MinimumPurchase}, nil
	case TypeBulkDiscount:
		return BulkDiscount{Rate: p.DiscountValue, MinimumQuantity: p.MinimumQuantity}, nil
	default:
		return nil, errors.Errorf("unsupported promotion type: %q", p.Type)
	}
}

// discount applies the promotion to the scoped items, rounding to 2 decimal
// places and keeping the result within [0, scoped subtotal].
func discount(r Rule, s Scoped) decimal.Decimal {
	amount := r.Discount(s)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, s.Subtotal).Round(2)
}

func percentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}
