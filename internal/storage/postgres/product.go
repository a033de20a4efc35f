package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/pos-settlement/internal/domain/catalog"
	"github.com/xenking/pos-settlement/internal/domain/inventory"
)

const (
	getProductsByIDsSQL = `SELECT id, company_id, name, category, price, stock_quantity
		FROM products WHERE company_id = $1 AND id = ANY($2)`

	getContainersSQL = `SELECT product_id, container_id, ratio, deposit_price, COALESCE(track_stock, deposit_price > 0)
		FROM product_containers WHERE product_id = ANY($1)
		ORDER BY product_id, position, container_id`

	decrementStockSQL = `UPDATE products SET stock_quantity = stock_quantity - $3
		WHERE company_id = $1 AND id = $2 AND stock_quantity >= $3
		RETURNING stock_quantity`

	// FOR SHARE keeps a concurrent sale from draining the row before commit.
	checkStockSQL = `SELECT stock_quantity FROM products
		WHERE company_id = $1 AND id = $2
		FOR SHARE`

	upsertProductSQL = `INSERT INTO products (id, company_id, name, category, price, stock_quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category,
			price = EXCLUDED.price, stock_quantity = EXCLUDED.stock_quantity`

	upsertContainerSQL = `INSERT INTO product_containers (product_id, container_id, ratio, deposit_price, track_stock, position)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id, container_id) DO UPDATE SET ratio = EXCLUDED.ratio,
			deposit_price = EXCLUDED.deposit_price, track_stock = EXCLUDED.track_stock, position = EXCLUDED.position`
)

var (
	_ catalog.Repository   = (*ProductRepository)(nil)
	_ inventory.Repository = (*ProductRepository)(nil)
)

// ProductRepository implements catalog.Repository and inventory.Repository
// backed by PostgreSQL.
type ProductRepository struct {
	q querier
}

// GetByIDs returns the company's products matching any of the given IDs,
// with their container links.
func (r *ProductRepository) GetByIDs(ctx context.Context, companyID string, ids []string) ([]catalog.Product, error) {
	rows, err := r.q.Query(ctx, getProductsByIDsSQL, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}
	if len(products) == 0 {
		return products, nil
	}

	found := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		found[i] = p.ID
		index[p.ID] = i
	}

	rows, err = r.q.Query(ctx, getContainersSQL, found)
	if err != nil {
		return nil, fmt.Errorf("getting container links: %w", err)
	}
	var (
		productID string
		link      catalog.ContainerLink
	)
	_, err = pgx.ForEachRow(rows, []any{&productID, &link.ContainerID, &link.Ratio, &link.DepositPrice, &link.TrackStock}, func() error {
		i := index[productID]
		products[i].Containers = append(products[i].Containers, link)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning container links: %w", err)
	}

	return products, nil
}

// DecrementStock subtracts quantity in a single conditional update.
func (r *ProductRepository) DecrementStock(ctx context.Context, companyID, productID string, quantity int) (int, error) {
	var left int
	err := r.q.QueryRow(ctx, decrementStockSQL, companyID, productID, quantity).Scan(&left)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &inventory.InsufficientStockError{ProductID: productID, Requested: quantity}
		}
		return 0, fmt.Errorf("decrementing stock of %q: %w", productID, err)
	}
	return left, nil
}

// CheckStock verifies stock under a share lock without changing it.
func (r *ProductRepository) CheckStock(ctx context.Context, companyID, productID string, quantity int) error {
	var stock int
	err := r.q.QueryRow(ctx, checkStockSQL, companyID, productID).Scan(&stock)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("checking stock of %q: %w", productID, err)
	}
	if err != nil || stock < quantity {
		return &inventory.InsufficientStockError{ProductID: productID, Requested: quantity}
	}
	return nil
}

// Upsert inserts or updates products and their container links in one
// batch.
func (r *ProductRepository) Upsert(ctx context.Context, products []catalog.Product) error {
	b := &pgx.Batch{}
	for _, p := range products {
		b.Queue(upsertProductSQL, p.ID, p.CompanyID, p.Name, p.Category, p.Price, p.StockQuantity)
	}
	// Containers reference products, so they are queued after all of them.
	for _, p := range products {
		for i, l := range p.Containers {
			b.Queue(upsertContainerSQL, p.ID, l.ContainerID, l.Ratio, l.DepositPrice, l.TrackStock, i)
		}
	}

	if err := r.q.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("upserting %d products: %w", len(products), err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Category, &p.Price, &p.StockQuantity)
	return p, err
}
