package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crediario-erp/crediario/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an order with its lines in one transaction.
func (r *Repository) Create(ctx context.Context, order Order) (*Order, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO credit_orders (folio, client_id, status, subtotal, tax, discount, total, notes, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			RETURNING id, created_at, updated_at`,
			order.Folio, order.ClientID, order.Status, order.Subtotal, order.Tax, order.Discount, order.Total, order.Notes, order.CreatedBy,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return err
		}

		for i := range order.Lines {
			line := &order.Lines[i]
			line.OrderID = order.ID
			err = tx.QueryRow(ctx, `
				INSERT INTO credit_order_lines (order_id, product_id, quantity, unit_price, line_total, line_order)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				line.OrderID, line.ProductID, line.Quantity, line.UnitPrice, line.LineTotal, line.LineOrder,
			).Scan(&line.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Get retrieves an order with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (*Order, error) {
	var o Order
	var saleID pgtype.Int8
	var notes pgtype.Text
	err := r.pool.QueryRow(ctx, `
		SELECT id, folio, client_id, status, subtotal, tax, discount, total, sale_id, notes, created_by, created_at, updated_at
		FROM credit_orders
		WHERE id = $1`, id,
	).Scan(&o.ID, &o.Folio, &o.ClientID, &o.Status, &o.Subtotal, &o.Tax, &o.Discount, &o.Total, &saleID, &notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if saleID.Valid {
		o.SaleID = &saleID.Int64
	}
	if notes.Valid {
		o.Notes = &notes.String
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, line_total, line_order
		FROM credit_order_lines
		WHERE order_id = $1
		ORDER BY line_order`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.LineTotal, &l.LineOrder); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	return &o, rows.Err()
}

// List returns orders filtered by status, newest first.
func (r *Repository) List(ctx context.Context, status *OrderStatus, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, folio, client_id, status, subtotal, tax, discount, total, sale_id, notes, created_by, created_at, updated_at
		FROM credit_orders`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, *status, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		var saleID pgtype.Int8
		var notes pgtype.Text
		if err := rows.Scan(&o.ID, &o.Folio, &o.ClientID, &o.Status, &o.Subtotal, &o.Tax, &o.Discount, &o.Total, &saleID, &notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if saleID.Valid {
			o.SaleID = &saleID.Int64
		}
		if notes.Valid {
			o.Notes = &notes.String
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus moves an order to a new status, guarded by the current one.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to OrderStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE credit_orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}
