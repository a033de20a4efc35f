package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/pos-settlement/internal/domain/sale"
)

const (
	createSaleSQL = `INSERT INTO sales
		(id, company_id, customer_id, user_id, payment_method, tax_configuration_id,
		 subtotal, discount, tax, total, amount_paid, balance_due, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13)`

	createSaleItemSQL = `INSERT INTO sale_items
		(id, sale_id, product_id, quantity, unit_price, total_price, is_container)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

var _ sale.Repository = (*SaleRepository)(nil)

// SaleRepository implements sale.Repository backed by PostgreSQL.
type SaleRepository struct {
	q querier
}

func (r *SaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	_, err := r.q.Exec(ctx, createSaleSQL,
		s.ID, s.CompanyID, s.CustomerID, s.UserID, s.PaymentMethod, s.TaxConfigurationID,
		s.Subtotal, s.Discount, s.Tax, s.Total, s.AmountPaid, s.BalanceDue, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating sale %q: %w", s.ID, err)
	}
	return nil
}

// CreateItems inserts all items in one batch.
func (r *SaleRepository) CreateItems(ctx context.Context, items []sale.Item) error {
	if len(items) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, it := range items {
		b.Queue(createSaleItemSQL, it.ID, it.SaleID, it.ProductID, it.Quantity, it.UnitPrice, it.TotalPrice, it.IsContainer)
	}
	if err := r.q.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("creating %d sale items: %w", len(items), err)
	}
	return nil
}
