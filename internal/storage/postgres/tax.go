package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/pos-settlement/internal/domain/tax"
)

const (
	taxColumns = `id, COALESCE(company_id, ''), name, rate, is_inclusive, is_default, is_system_default`

	getTaxByIDSQL = `SELECT ` + taxColumns + ` FROM tax_configurations WHERE id = $1`

	getCompanyDefaultTaxSQL = `SELECT ` + taxColumns + ` FROM tax_configurations
		WHERE company_id = $1 AND is_default
		ORDER BY id LIMIT 1`

	getSystemDefaultTaxSQL = `SELECT ` + taxColumns + ` FROM tax_configurations
		WHERE company_id IS NULL AND is_system_default
		ORDER BY id LIMIT 1`

	insertTaxSQL = `INSERT INTO tax_configurations (id, company_id, name, rate, is_inclusive, is_default, is_system_default)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`
)

var _ tax.Repository = (*TaxRepository)(nil)

// TaxRepository implements tax.Repository backed by PostgreSQL.
type TaxRepository struct {
	q querier
}

func (r *TaxRepository) GetByID(ctx context.Context, id string) (*tax.Configuration, error) {
	return r.one(ctx, getTaxByIDSQL, id)
}

func (r *TaxRepository) CompanyDefault(ctx context.Context, companyID string) (*tax.Configuration, error) {
	return r.one(ctx, getCompanyDefaultTaxSQL, companyID)
}

func (r *TaxRepository) SystemDefault(ctx context.Context) (*tax.Configuration, error) {
	return r.one(ctx, getSystemDefaultTaxSQL)
}

// Insert adds a configuration unless one with the same id exists.
func (r *TaxRepository) Insert(ctx context.Context, c *tax.Configuration) error {
	_, err := r.q.Exec(ctx, insertTaxSQL, c.ID, c.CompanyID, c.Name, c.Rate, c.IsInclusive, c.IsDefault, c.IsSystemDefault)
	if err != nil {
		return fmt.Errorf("inserting tax configuration %q: %w", c.ID, err)
	}
	return nil
}

func (r *TaxRepository) one(ctx context.Context, sql string, args ...any) (*tax.Configuration, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("getting tax configuration: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanTax)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tax.ErrNotFound
		}
		return nil, fmt.Errorf("getting tax configuration: %w", err)
	}
	return &c, nil
}

func scanTax(row pgx.CollectableRow) (tax.Configuration, error) {
	var c tax.Configuration
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Rate, &c.IsInclusive, &c.IsDefault, &c.IsSystemDefault)
	return c, err
}
