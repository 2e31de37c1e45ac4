package clients

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for clients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new client.
func (r *Repository) Create(ctx context.Context, input CreateClientInput) (*Client, error) {
	query := `
		INSERT INTO clients (code, name, phone, email, address_line, city, credit_limit, current_balance, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, TRUE, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	var c Client
	err := r.pool.QueryRow(ctx, query,
		input.Code,
		input.Name,
		input.Phone,
		input.Email,
		input.AddressLine,
		input.City,
		input.CreditLimit,
		input.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Code = input.Code
	c.Name = input.Name
	c.Phone = input.Phone
	c.Email = input.Email
	c.AddressLine = input.AddressLine
	c.City = input.City
	c.CreditLimit = input.CreditLimit
	c.IsActive = true
	c.CreatedBy = input.CreatedBy
	return &c, nil
}

// Get retrieves a client by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Client, error) {
	query := `
		SELECT id, code, name, phone, email, address_line, city, credit_limit, current_balance, is_active, created_by, created_at, updated_at
		FROM clients
		WHERE id = $1`

	var c Client
	var phone, email, address, city pgtype.Text
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Code, &c.Name, &phone, &email, &address, &city,
		&c.CreditLimit, &c.CurrentBalance, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		c.Phone = &phone.String
	}
	if email.Valid {
		c.Email = &email.String
	}
	if address.Valid {
		c.AddressLine = &address.String
	}
	if city.Valid {
		c.City = &city.String
	}
	return &c, nil
}

// List returns active clients ordered by name.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Client, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, code, name, phone, email, address_line, city, credit_limit, current_balance, is_active, created_by, created_at, updated_at
		FROM clients
		WHERE is_active
		ORDER BY name
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var c Client
		var phone, email, address, city pgtype.Text
		if err := rows.Scan(
			&c.ID, &c.Code, &c.Name, &phone, &email, &address, &city,
			&c.CreditLimit, &c.CurrentBalance, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if phone.Valid {
			c.Phone = &phone.String
		}
		if email.Valid {
			c.Email = &email.String
		}
		if address.Valid {
			c.AddressLine = &address.String
		}
		if city.Valid {
			c.City = &city.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListHistory returns credit-history entries for a client, newest first.
func (r *Repository) ListHistory(ctx context.Context, clientID int64, limit int) ([]CreditHistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, client_id, kind, amount, balance, reference, note, actor_id, created_at
		FROM client_credit_history
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CreditHistoryEntry
	for rows.Next() {
		var e CreditHistoryEntry
		var note pgtype.Text
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Kind, &e.Amount, &e.Balance, &e.Reference, &note, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if note.Valid {
			e.Note = note.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
