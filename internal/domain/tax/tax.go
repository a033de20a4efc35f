// Package tax resolves the applicable tax configuration and computes tax
// under inclusive and exclusive regimes.
package tax

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by Repository lookups that match nothing.
	ErrNotFound = errors.New("tax configuration not found")
	// ErrInvalidConfiguration is returned when a requested configuration
	// does not exist or belongs to another company.
	ErrInvalidConfiguration = errors.New("invalid tax configuration")
)

var hundred = decimal.NewFromInt(100)

// Configuration is a tax rule. An empty CompanyID marks a global
// configuration.
type Configuration struct {
	ID              string
	CompanyID       string
	Name            string
	Rate            decimal.Decimal
	IsInclusive     bool
	IsDefault       bool
	IsSystemDefault bool
}

// Global reports whether the configuration is shared by all companies.
func (c *Configuration) Global() bool {
	return c.CompanyID == ""
}

// Repository looks up tax configurations.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Configuration, error)
	// CompanyDefault returns the company's own default configuration.
	CompanyDefault(ctx context.Context, companyID string) (*Configuration, error)
	// SystemDefault returns the global system-default configuration.
	SystemDefault(ctx context.Context) (*Configuration, error)
}

// Breakdown is the result of applying a configuration to a base amount.
type Breakdown struct {
	Base decimal.Decimal
	Tax  decimal.Decimal
	// Net is the amount owed: Base for inclusive configurations, Base plus
	// Tax otherwise.
	Net decimal.Decimal
}

// Calculate computes tax for base. A nil configuration yields zero tax.
// Negative bases are treated as zero.
func Calculate(cfg *Configuration, base decimal.Decimal) Breakdown {
	if base.IsNegative() {
		base = decimal.Zero
	}
	if cfg == nil {
		return Breakdown{Base: base, Tax: decimal.Zero, Net: base}
	}

	if cfg.IsInclusive {
		tax := base.Sub(base.Div(factor(cfg))).Round(2)
		return Breakdown{Base: base, Tax: tax, Net: base}
	}

	tax := base.Mul(cfg.Rate).Div(hundred).Round(2)
	return Breakdown{Base: base, Tax: tax, Net: base.Add(tax)}
}

// AmountWithTax converts an amount that excludes tax into one that includes
// it. The result is not rounded so that AmountWithoutTax inverts it.
func AmountWithTax(cfg *Configuration, amount decimal.Decimal) decimal.Decimal {
	if cfg == nil {
		return amount
	}
	return amount.Mul(factor(cfg))
}

// AmountWithoutTax strips tax from an amount that includes it. The result
// is not rounded so that AmountWithTax inverts it.
func AmountWithoutTax(cfg *Configuration, amount decimal.Decimal) decimal.Decimal {
	if cfg == nil {
		return amount
	}
	return amount.Div(factor(cfg))
}

// PriceWithoutTax returns the tax-free part of a catalog price, rounded to
// 2 decimal places. Only inclusive configurations embed tax in prices.
func PriceWithoutTax(cfg *Configuration, price decimal.Decimal) decimal.Decimal {
	if cfg == nil || !cfg.IsInclusive {
		return price.Round(2)
	}
	return AmountWithoutTax(cfg, price).Round(2)
}

func factor(cfg *Configuration) decimal.Decimal {
	return decimal.NewFromInt(1).Add(cfg.Rate.Div(hundred))
}
