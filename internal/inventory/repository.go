package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crediario-erp/crediario/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for inventory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateProduct inserts a product.
func (r *Repository) CreateProduct(ctx context.Context, input CreateProductInput) (*Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, unit_price, stock, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		input.SKU, input.Name, input.UnitPrice, input.Stock,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.SKU = input.SKU
	p.Name = input.Name
	p.UnitPrice = input.UnitPrice
	p.Stock = input.Stock
	p.IsActive = true
	return &p, nil
}

// GetProduct retrieves a product by ID.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, sku, name, unit_price, stock, is_active, created_at, updated_at
		FROM products
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPrice, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns active products ordered by name.
func (r *Repository) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, sku, name, unit_price, stock, is_active, created_at, updated_at
		FROM products
		WHERE is_active
		ORDER BY name
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPrice, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProducts loads several products at once, keyed by ID.
func (r *Repository) GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sku, name, unit_price, stock, is_active, created_at, updated_at
		FROM products
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPrice, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// AdjustStock applies a manual quantity delta and records the movement in
// one transaction.
func (r *Repository) AdjustStock(ctx context.Context, productID int64, delta float64, reference string, actorID int64) (*StockMovement, error) {
	var m StockMovement
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var balance float64
		err := tx.QueryRow(ctx, `
			UPDATE products SET stock = stock + $1, updated_at = NOW()
			WHERE id = $2
			RETURNING stock`, delta, productID,
		).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		m = StockMovement{
			ProductID: productID,
			Kind:      MovementAdjustment,
			Quantity:  delta,
			Balance:   balance,
			Reference: reference,
			ActorID:   actorID,
		}
		return tx.QueryRow(ctx, `
			INSERT INTO stock_movements (product_id, kind, quantity, balance, reference, actor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			RETURNING id, created_at`,
			m.ProductID, m.Kind, m.Quantity, m.Balance, m.Reference, m.ActorID,
		).Scan(&m.ID, &m.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMovements returns stock movements for a product, newest first.
func (r *Repository) ListMovements(ctx context.Context, productID int64, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, kind, quantity, balance, reference, actor_id, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Kind, &m.Quantity, &m.Balance, &m.Reference, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
