package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/pos-settlement/internal/domain/promotion"
)

const (
	promotionColumns = `id, company_id, name, type, scope, scope_items, discount_value,
		buy_quantity, get_quantity, minimum_purchase, minimum_quantity, start_date, end_date,
		usage_limit_total, usage_limit_per_customer, usage_count, is_active, is_stackable, priority`

	listActivePromotionsSQL = `SELECT ` + promotionColumns + `
		FROM promotions
		WHERE company_id = $1 AND is_active
			AND (start_date IS NULL OR start_date <= $2)
			AND (end_date IS NULL OR end_date >= $2)
		ORDER BY priority DESC, id`

	lockPromotionSQL = `SELECT id FROM promotions WHERE id = $1 FOR UPDATE`

	countCustomerUsageSQL = `SELECT count(*) FROM promotion_usages
		WHERE promotion_id = $1 AND customer_id = $2`

	incrementUsageSQL = `UPDATE promotions SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit_total = 0 OR usage_count < usage_limit_total)`

	recordUsageSQL = `INSERT INTO promotion_usages (id, promotion_id, customer_id, sale_id, discount_amount, used_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)`

	upsertPromotionSQL = `INSERT INTO promotions (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO NOTHING`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	q querier
}

// ListActive returns the company's active promotions valid at the given
// time, highest priority first.
func (r *PromotionRepository) ListActive(ctx context.Context, companyID string, at time.Time) ([]promotion.Promotion, error) {
	rows, err := r.q.Query(ctx, listActivePromotionsSQL, companyID, at)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	promos, err := pgx.CollectRows(rows, scanPromotion)
	if err != nil {
		return nil, fmt.Errorf("scanning promotions: %w", err)
	}
	return promos, nil
}

// LockForUsage locks the promotion row. It must run as its own statement
// before CountCustomerUsage so the count sees usages committed by whoever
// held the lock before.
func (r *PromotionRepository) LockForUsage(ctx context.Context, promotionID string) error {
	var id string
	err := r.q.QueryRow(ctx, lockPromotionSQL, promotionID).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return promotion.ErrNotFound
	case err != nil:
		return fmt.Errorf("locking promotion %q: %w", promotionID, err)
	}
	return nil
}

// CountCustomerUsage counts the usage rows of a promotion for a customer.
func (r *PromotionRepository) CountCustomerUsage(ctx context.Context, promotionID, customerID string) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, countCustomerUsageSQL, promotionID, customerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting usage of promotion %q: %w", promotionID, err)
	}
	return n, nil
}

// IncrementUsage bumps usage_count only while it stays within
// usage_limit_total. The row lock taken by the update serializes
// concurrent sales on the same promotion.
func (r *PromotionRepository) IncrementUsage(ctx context.Context, promotionID string) error {
	tag, err := r.q.Exec(ctx, incrementUsageSQL, promotionID)
	if err != nil {
		return fmt.Errorf("incrementing usage of promotion %q: %w", promotionID, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrUsageLimitReached
	}
	return nil
}

// RecordUsage inserts a usage ledger row.
func (r *PromotionRepository) RecordUsage(ctx context.Context, u *promotion.Usage) error {
	_, err := r.q.Exec(ctx, recordUsageSQL, u.ID, u.PromotionID, u.CustomerID, u.SaleID, u.DiscountAmount, u.UsedAt)
	if err != nil {
		return fmt.Errorf("recording usage of promotion %q: %w", u.PromotionID, err)
	}
	return nil
}

// Insert adds a promotion unless one with the same id exists.
func (r *PromotionRepository) Insert(ctx context.Context, p *promotion.Promotion) error {
	scopeItems := p.ScopeItems
	if scopeItems == nil {
		scopeItems = []string{}
	}
	_, err := r.q.Exec(ctx, upsertPromotionSQL,
		p.ID, p.CompanyID, p.Name, string(p.Type), string(p.Scope), scopeItems, p.DiscountValue,
		p.BuyQuantity, p.GetQuantity, p.MinimumPurchase, p.MinimumQuantity, p.StartDate, p.EndDate,
		p.UsageLimitTotal, p.UsageLimitPerCustomer, p.UsageCount, p.IsActive, p.IsStackable, p.Priority,
	)
	if err != nil {
		return fmt.Errorf("inserting promotion %q: %w", p.ID, err)
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p          promotion.Promotion
		typ, scope string
	)
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.Name, &typ, &scope, &p.ScopeItems, &p.DiscountValue,
		&p.BuyQuantity, &p.GetQuantity, &p.MinimumPurchase, &p.MinimumQuantity, &p.StartDate, &p.EndDate,
		&p.UsageLimitTotal, &p.UsageLimitPerCustomer, &p.UsageCount, &p.IsActive, &p.IsStackable, &p.Priority,
	)
	p.Type = promotion.Type(typ)
	p.Scope = promotion.Scope(scope)
	return p, err
}
