package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	promos      []Promotion
	customerUse map[string]int
	listErr     error
	lockErr     error
	incErr      error

	// calls records LockForUsage and CountCustomerUsage in order.
	calls []string

	incremented []string
	recorded    []Usage
}

func (m *mockRepo) ListActive(context.Context, string, time.Time) ([]Promotion, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]Promotion(nil), m.promos...), nil
}

func (m *mockRepo) LockForUsage(_ context.Context, promotionID string) error {
	m.calls = append(m.calls, "lock "+promotionID)
	return m.lockErr
}

func (m *mockRepo) CountCustomerUsage(_ context.Context, promotionID, customerID string) (int, error) {
	m.calls = append(m.calls, "count "+promotionID)
	return m.customerUse[promotionID+"/"+customerID], nil
}

func (m *mockRepo) IncrementUsage(_ context.Context, promotionID string) error {
	if m.incErr != nil {
		return m.incErr
	}
	m.incremented = append(m.incremented, promotionID)
	return nil
}

func (m *mockRepo) RecordUsage(_ context.Context, u *Usage) error {
	m.recorded = append(m.recorded, *u)
	return nil
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func promo(id string, typ Type, value string) Promotion {
	return Promotion{
		ID:              id,
		Name:            id,
		Type:            typ,
		Scope:           ScopeAll,
		DiscountValue:   d(value),
		MinimumPurchase: decimal.Zero,
		IsActive:        true,
		IsStackable:     true,
	}
}

func TestResolver_Resolve(t *testing.T) {
	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(time.Hour)

	tests := []struct {
		name      string
		promos    func() []Promotion
		usage     map[string]int
		req       Request
		wantTotal string
		wantIDs   []string
	}{
		{
			name: "buy 2 get 1",
			promos: func() []Promotion {
				p := promo("b2g1", TypeBuyXGetY, "0")
				p.BuyQuantity, p.GetQuantity = 2, 1
				return []Promotion{p}
			},
			req: Request{
				CartTotal: d("250"),
				Items:     []Item{{ProductID: "p1", Quantity: 5, Price: d("50")}},
			},
			wantTotal: "100",
			wantIDs:   []string{"b2g1"},
		},
		{
			name: "stackable promotions accumulate",
			promos: func() []Promotion {
				return []Promotion{promo("pct", TypePercentage, "10"), promo("fixed", TypeFixedAmount, "5")}
			},
			req: Request{
				CartTotal: d("100"),
				Items:     []Item{{ProductID: "p1", Quantity: 2, Price: d("50")}},
			},
			wantTotal: "15",
			wantIDs:   []string{"pct", "fixed"},
		},
		{
			name: "non-stackable replaces accumulated discounts",
			promos: func() []Promotion {
				pct := promo("pct", TypePercentage, "10")
				pct.Priority = 10
				fixed := promo("fixed", TypeFixedAmount, "20")
				fixed.IsStackable = false
				fixed.Priority = 5
				later := promo("later", TypeFixedAmount, "1")
				return []Promotion{later, fixed, pct}
			},
			req: Request{
				CartTotal: d("100"),
				Items:     []Item{{ProductID: "p1", Quantity: 1, Price: d("100")}},
			},
			wantTotal: "20",
			wantIDs:   []string{"fixed"},
		},
		{
			name: "non-stackable without discount does not stop evaluation",
			promos: func() []Promotion {
				bulk := promo("bulk", TypeBulkDiscount, "50")
				bulk.IsStackable = false
				bulk.MinimumQuantity = 10
				bulk.Priority = 10
				bulk.Scope = ScopeCategory
				bulk.ScopeItems = []string{"drinks"}
				return []Promotion{bulk, promo("pct", TypePercentage, "10")}
			},
			req: Request{
				CartTotal: d("40"),
				Items: []Item{
					{ProductID: "p1", Category: "drinks", Quantity: 2, Price: d("10")},
					{ProductID: "p2", Category: "food", Quantity: 20, Price: d("1")},
				},
			},
			wantTotal: "4",
			wantIDs:   []string{"pct"},
		},
		{
			name: "category scope",
			promos: func() []Promotion {
				p := promo("drinks", TypePercentage, "50")
				p.Scope = ScopeCategory
				p.ScopeItems = []string{"drinks"}
				return []Promotion{p}
			},
			req: Request{
				CartTotal: d("30"),
				Items: []Item{
					{ProductID: "p1", Category: "drinks", Quantity: 1, Price: d("10")},
					{ProductID: "p2", Category: "food", Quantity: 1, Price: d("20")},
				},
			},
			wantTotal: "5",
			wantIDs:   []string{"drinks"},
		},
		{
			name: "product scope",
			promos: func() []Promotion {
				p := promo("p2-off", TypeFixedAmount, "50")
				p.Scope = ScopeProduct
				p.ScopeItems = []string{"p2"}
				return []Promotion{p}
			},
			req: Request{
				CartTotal: d("30"),
				Items: []Item{
					{ProductID: "p1", Quantity: 1, Price: d("10")},
					{ProductID: "p2", Quantity: 1, Price: d("20")},
				},
			},
			wantTotal: "20",
			wantIDs:   []string{"p2-off"},
		},
		{
			name: "minimum purchase not met",
			promos: func() []Promotion {
				p := promo("min", TypePercentage, "10")
				p.MinimumPurchase = d("100")
				return []Promotion{p}
			},
			req: Request{
				CartTotal: d("99.99"),
				Items:     []Item{{ProductID: "p1", Quantity: 1, Price: d("99.99")}},
			},
			wantTotal: "0",
		},
		{
			name: "spend and save threshold reached",
			promos: func() []Promotion {
				p := promo("spend", TypeSpendSave, "5")
				p.MinimumPurchase = d("100")
				return []Promotion{p}
			},
			req: Request{
				CartTotal: d("120"),
				Items:     []Item{{ProductID: "p1", Quantity: 3, Price: d("40")}},
			},
			wantTotal: "6",
			wantIDs:   []string{"spend"},
		},
		{
			name: "inactive, expired, not started and exhausted are skipped",
			promos: func() []Promotion {
				inactive := promo("inactive", TypePercentage, "10")
				inactive.IsActive = false
				expired := promo("expired", TypePercentage, "10")
				expired.EndDate = &past
				notStarted := promo("not-started", TypePercentage, "10")
				notStarted.StartDate = &future
				exhausted := promo("exhausted", TypePercentage, "10")
				exhausted.UsageLimitTotal = 3
				exhausted.UsageCount = 3
				return []Promotion{inactive, expired, notStarted, exhausted}
			},
			req: Request{
				CartTotal: d("10"),
				Items:     []Item{{ProductID: "p1", Quantity: 1, Price: d("10")}},
			},
			wantTotal: "0",
		},
		{
			name: "per-customer limit reached",
			promos: func() []Promotion {
				p := promo("once", TypeFixedAmount, "2")
				p.UsageLimitPerCustomer = 1
				return []Promotion{p}
			},
			usage: map[string]int{"once/c1": 1},
			req: Request{
				CustomerID: "c1",
				CartTotal:  d("10"),
				Items:      []Item{{ProductID: "p1", Quantity: 1, Price: d("10")}},
			},
			wantTotal: "0",
		},
		{
			name: "per-customer limit ignored without customer",
			promos: func() []Promotion {
				p := promo("once", TypeFixedAmount, "2")
				p.UsageLimitPerCustomer = 1
				return []Promotion{p}
			},
			usage: map[string]int{"once/c1": 1},
			req: Request{
				CartTotal: d("10"),
				Items:     []Item{{ProductID: "p1", Quantity: 1, Price: d("10")}},
			},
			wantTotal: "2",
			wantIDs:   []string{"once"},
		},
		{
			name: "unknown type is skipped",
			promos: func() []Promotion {
				return []Promotion{promo("odd", Type("mystery"), "10"), promo("pct", TypePercentage, "10")}
			},
			req: Request{
				CartTotal: d("10"),
				Items:     []Item{{ProductID: "p1", Quantity: 1, Price: d("10")}},
			},
			wantTotal: "1",
			wantIDs:   []string{"pct"},
		},
		{
			name: "duplicate product lines use the lowest price",
			promos: func() []Promotion {
				p := promo("b2g1-dup", TypeBuyXGetY, "0")
				p.BuyQuantity, p.GetQuantity = 2, 1
				return []Promotion{p}
			},
			req: Request{
				CartTotal: d("15"),
				Items: []Item{
					{ProductID: "p1", Quantity: 1, Price: d("10")},
					{ProductID: "p1", Quantity: 1, Price: d("5")},
				},
			},
			wantTotal: "5",
			wantIDs:   []string{"b2g1-dup"},
		},
		{
			name: "percentage discount rounds to cents",
			promos: func() []Promotion {
				return []Promotion{promo("pct", TypePercentage, "15")}
			},
			req: Request{
				CartTotal: d("3.33"),
				Items:     []Item{{ProductID: "p1", Quantity: 1, Price: d("3.33")}},
			},
			wantTotal: "0.5",
			wantIDs:   []string{"pct"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{promos: tt.promos(), customerUse: tt.usage}
			r := NewResolver(repo, func() time.Time { return fixedNow })

			res, err := r.Resolve(context.Background(), tt.req)
			require.NoError(t, err)
			assert.True(t, d(tt.wantTotal).Equal(res.Total), "total %s, want %s", res.Total, tt.wantTotal)

			var ids []string
			for _, a := range res.Applied {
				ids = append(ids, a.PromotionID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestResolver_ResolveListError(t *testing.T) {
	repo := &mockRepo{listErr: errors.New("db down")}
	r := NewResolver(repo, func() time.Time { return fixedNow })

	_, err := r.Resolve(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestResolver_LocksBeforeCountingCustomerUsage(t *testing.T) {
	limited := promo("once", TypeFixedAmount, "2")
	limited.UsageLimitPerCustomer = 1
	limited.Priority = 2
	open := promo("open", TypeFixedAmount, "1")
	open.Priority = 1
	repo := &mockRepo{promos: []Promotion{open, limited}}
	r := NewResolver(repo, func() time.Time { return fixedNow })

	res, err := r.Resolve(context.Background(), Request{
		CustomerID: "c1",
		CartTotal:  d("10"),
		Items:      []Item{{ProductID: "p1", Quantity: 1, Price: d("10")}},
	})
	require.NoError(t, err)
	assert.True(t, d("3").Equal(res.Total))
	assert.Equal(t, []string{"lock once", "count once"}, repo.calls, "only limited promotions are locked")
}

func TestResolver_LockError(t *testing.T) {
	p := promo("once", TypeFixedAmount, "2")
	p.UsageLimitPerCustomer = 1
	repo := &mockRepo{promos: []Promotion{p}, lockErr: errors.New("lock timeout")}
	r := NewResolver(repo, func() time.Time { return fixedNow })

	_, err := r.Resolve(context.Background(), Request{CustomerID: "c1", CartTotal: d("10")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock timeout")
	assert.Equal(t, []string{"lock once"}, repo.calls)
}

func TestResolver_Redeem(t *testing.T) {
	repo := &mockRepo{}
	r := NewResolver(repo, func() time.Time { return fixedNow })

	applied := []Applied{
		{PromotionID: "a", Discount: d("1.50")},
		{PromotionID: "b", Discount: d("2")},
	}
	usages, err := r.Redeem(context.Background(), "sale-1", "c1", applied)
	require.NoError(t, err)
	require.Len(t, usages, 2)

	assert.Equal(t, []string{"a", "b"}, repo.incremented)
	assert.Equal(t, usages, repo.recorded)
	for i, u := range usages {
		assert.NotEmpty(t, u.ID)
		assert.Equal(t, "sale-1", u.SaleID)
		assert.Equal(t, "c1", u.CustomerID)
		assert.Equal(t, applied[i].PromotionID, u.PromotionID)
		assert.True(t, applied[i].Discount.Equal(u.DiscountAmount))
		assert.Equal(t, fixedNow, u.UsedAt)
	}
}

func TestResolver_RedeemLimitReached(t *testing.T) {
	repo := &mockRepo{incErr: ErrUsageLimitReached}
	r := NewResolver(repo, func() time.Time { return fixedNow })

	_, err := r.Redeem(context.Background(), "sale-1", "", []Applied{{PromotionID: "a", Discount: d("1")}})
	require.ErrorIs(t, err, ErrUsageLimitReached)
	assert.Empty(t, repo.recorded)
}
