package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/pos-settlement/internal/domain/company"
)

const (
	getCompanySettingsSQL = `SELECT credit_payment_enabled FROM company_settings WHERE company_id = $1`

	upsertCompanySettingsSQL = `INSERT INTO company_settings (company_id, credit_payment_enabled)
		VALUES ($1, $2)
		ON CONFLICT (company_id) DO UPDATE SET credit_payment_enabled = EXCLUDED.credit_payment_enabled`
)

var _ company.Repository = (*CompanyRepository)(nil)

// CompanyRepository implements company.Repository backed by PostgreSQL.
type CompanyRepository struct {
	q querier
}

// GetSettings returns zero-value settings for companies without a row.
func (r *CompanyRepository) GetSettings(ctx context.Context, companyID string) (*company.Settings, error) {
	s := &company.Settings{CompanyID: companyID}
	err := r.q.QueryRow(ctx, getCompanySettingsSQL, companyID).Scan(&s.CreditPaymentEnabled)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("getting settings of company %q: %w", companyID, err)
	}
	return s, nil
}

// Put inserts or replaces company settings.
func (r *CompanyRepository) Put(ctx context.Context, s *company.Settings) error {
	if _, err := r.q.Exec(ctx, upsertCompanySettingsSQL, s.CompanyID, s.CreditPaymentEnabled); err != nil {
		return fmt.Errorf("saving settings of company %q: %w", s.CompanyID, err)
	}
	return nil
}
