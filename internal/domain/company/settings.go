package company

import "context"

// Settings holds the company-level feature toggles consulted at sale time.
type Settings struct {
	CompanyID            string
	CreditPaymentEnabled bool
}

// Repository provides company settings. Implementations return zero-value
// Settings (all features disabled) for companies without a settings row.
type Repository interface {
	GetSettings(ctx context.Context, companyID string) (*Settings, error)
}
