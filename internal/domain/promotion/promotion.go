// Package promotion selects the promotions a cart is eligible for and
// computes their discounts.
package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported promotion strategies.
type Type string

const (
	TypePercentage   Type = "percentage"
	TypeFixedAmount  Type = "fixed_amount"
	TypeBuyXGetY     Type = "buy_x_get_y"
	TypeSpendSave    Type = "spend_save"
	TypeBulkDiscount Type = "bulk_discount"
)

// Scope selects which cart items a promotion may discount.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeProduct  Scope = "product"
	ScopeCategory Scope = "category"
	// ScopeCustomerGroup is accepted but not yet filtered on; it behaves
	// like ScopeAll.
	ScopeCustomerGroup Scope = "customer_group"
)

var (
	// ErrUsageLimitReached is returned when a promotion's total usage cap was
	// hit between resolution and redemption.
	ErrUsageLimitReached = errors.New("promotion usage limit reached")
	// ErrNotFound is returned when a promotion does not exist.
	ErrNotFound = errors.New("promotion not found")
)

// Promotion is a company's promotional discount definition.
type Promotion struct {
	ID        string
	CompanyID string
	Name      string
	Type      Type
	Scope     Scope
	// ScopeItems holds product ids for ScopeProduct and category names for
	// ScopeCategory.
	ScopeItems      []string
	DiscountValue   decimal.Decimal
	BuyQuantity     int
	GetQuantity     int
	MinimumPurchase decimal.Decimal
	MinimumQuantity int
	StartDate       *time.Time
	EndDate         *time.Time
	// Usage limits of 0 mean unlimited.
	UsageLimitTotal       int
	UsageLimitPerCustomer int
	UsageCount            int
	IsActive              bool
	IsStackable           bool
	Priority              int
}

// ActiveAt reports whether the promotion is enabled and inside its
// validity window at t. Nil bounds are open.
func (p *Promotion) ActiveAt(t time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.StartDate != nil && t.Before(*p.StartDate) {
		return false
	}
	if p.EndDate != nil && t.After(*p.EndDate) {
		return false
	}
	return true
}

// Exhausted reports whether the total usage cap has been reached.
func (p *Promotion) Exhausted() bool {
	return p.UsageLimitTotal > 0 && p.UsageCount >= p.UsageLimitTotal
}

// Applied describes a promotion that produced a positive discount for a cart.
type Applied struct {
	PromotionID string
	Name        string
	Type        Type
	Discount    decimal.Decimal
}

// Usage is the immutable ledger row written once per applied promotion.
type Usage struct {
	ID             string
	PromotionID    string
	CustomerID     string
	SaleID         string
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
}

// Repository provides promotion lookup and usage bookkeeping. All methods
// are expected to run inside the caller's transaction.
type Repository interface {
	// ListActive returns the company's active promotions valid at t,
	// ordered by priority descending.
	ListActive(ctx context.Context, companyID string, at time.Time) ([]Promotion, error)
	// LockForUsage takes a row lock on the promotion held until the
	// transaction ends, so concurrent sales count customer usage in turn.
	LockForUsage(ctx context.Context, promotionID string) error
	// CountCustomerUsage returns how many times the customer used the promotion.
	CountCustomerUsage(ctx context.Context, promotionID, customerID string) (int, error)
	// IncrementUsage atomically bumps the usage counter. It returns
	// ErrUsageLimitReached when the cap would be exceeded.
	IncrementUsage(ctx context.Context, promotionID string) error
	// RecordUsage persists a usage ledger row.
	RecordUsage(ctx context.Context, u *Usage) error
}
