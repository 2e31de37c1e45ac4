package credit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/crediario-erp/crediario/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the credit ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const installmentColumns = `id, sale_id, sequence, original_amount, amount_paid, interest_accrued, interest_paid,
	due_date, days_overdue, daily_rate_pct, status, last_recalculated_at, created_at, updated_at`

func scanInstallment(row pgx.Row) (Installment, error) {
	var inst Installment
	var lastRecalc pgtype.Timestamptz
	err := row.Scan(
		&inst.ID, &inst.SaleID, &inst.Sequence, &inst.OriginalAmount, &inst.AmountPaid,
		&inst.InterestAccrued, &inst.InterestPaid, &inst.DueDate, &inst.DaysOverdue,
		&inst.DailyRatePct, &inst.Status, &lastRecalc, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return Installment{}, err
	}
	if lastRecalc.Valid {
		inst.LastRecalculatedAt = &lastRecalc.Time
	}
	return inst, nil
}

// GetSale retrieves a sale with its lines, installments, and payments.
func (r *Repository) GetSale(ctx context.Context, id int64) (*Sale, error) {
	var s Sale
	var orderID pgtype.Int8
	var nextDue, invAppliedAt pgtype.Timestamptz
	var notes pgtype.Text
	err := r.pool.QueryRow(ctx, `
		SELECT id, folio, client_id, order_id, status, subtotal, tax, discount, total,
			initial_payment, outstanding_balance, installment_amount, installment_count,
			grace_period_days, periodicity, next_due_date, inventory_applied, inventory_applied_at,
			notes, created_by, created_at, updated_at
		FROM credit_sales
		WHERE id = $1`, id,
	).Scan(
		&s.ID, &s.Folio, &s.ClientID, &orderID, &s.Status, &s.Subtotal, &s.Tax, &s.Discount, &s.Total,
		&s.InitialPayment, &s.OutstandingBalance, &s.InstallmentAmount, &s.InstallmentCount,
		&s.GracePeriodDays, &s.Periodicity, &nextDue, &s.InventoryApplied, &invAppliedAt,
		&notes, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		s.OrderID = &orderID.Int64
	}
	if nextDue.Valid {
		s.NextDueDate = &nextDue.Time
	}
	if invAppliedAt.Valid {
		s.InventoryAppliedAt = &invAppliedAt.Time
	}
	if notes.Valid {
		s.Notes = &notes.String
	}

	if err := r.loadLines(ctx, &s); err != nil {
		return nil, err
	}
	if err := r.loadInstallments(ctx, &s); err != nil {
		return nil, err
	}
	if err := r.loadPayments(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) loadLines(ctx context.Context, s *Sale) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price, line_total, line_order
		FROM credit_sale_lines
		WHERE sale_id = $1
		ORDER BY line_order`, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.LineTotal, &l.LineOrder); err != nil {
			return err
		}
		s.Lines = append(s.Lines, l)
	}
	return rows.Err()
}

func (r *Repository) loadInstallments(ctx context.Context, s *Sale) error {
	rows, err := r.pool.Query(ctx, `
		SELECT `+installmentColumns+`
		FROM credit_installments
		WHERE sale_id = $1
		ORDER BY sequence`, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return err
		}
		s.Installments = append(s.Installments, inst)
	}
	return rows.Err()
}

func (r *Repository) loadPayments(ctx context.Context, s *Sale) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, installment_id, folio, reference, total_amount, to_principal, to_interest,
			paid_at, latitude, longitude, received_by, created_at
		FROM credit_payments
		WHERE sale_id = $1
		ORDER BY paid_at`, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p Payment
		var instID pgtype.Int8
		var lat, lng pgtype.Float8
		if err := rows.Scan(
			&p.ID, &p.SaleID, &instID, &p.Folio, &p.Reference, &p.TotalAmount, &p.ToPrincipal, &p.ToInterest,
			&p.PaidAt, &lat, &lng, &p.ReceivedBy, &p.CreatedAt,
		); err != nil {
			return err
		}
		if instID.Valid {
			p.InstallmentID = &instID.Int64
		}
		if lat.Valid {
			p.Latitude = &lat.Float64
		}
		if lng.Valid {
			p.Longitude = &lng.Float64
		}
		s.Payments = append(s.Payments, p)
	}
	return rows.Err()
}

// GetInstallment retrieves one installment.
func (r *Repository) GetInstallment(ctx context.Context, id int64) (*Installment, error) {
	inst, err := scanInstallment(r.pool.QueryRow(ctx, `
		SELECT `+installmentColumns+`
		FROM credit_installments
		WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// ListAccruable returns installments eligible for accrual as of a date.
func (r *Repository) ListAccruable(ctx context.Context, asOf time.Time) ([]Installment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+installmentColumns+`
		FROM credit_installments
		WHERE status IN ('PENDING', 'PARTIAL', 'OVERDUE')
			AND daily_rate_pct > 0
			AND due_date < $1
		ORDER BY due_date`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// SaveAccrual persists one installment's recalculated interest.
func (r *Repository) SaveAccrual(ctx context.Context, inst Installment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE credit_installments
		SET interest_accrued = $1, days_overdue = $2, status = $3, last_recalculated_at = $4, updated_at = NOW()
		WHERE id = $5`,
		inst.InterestAccrued, inst.DaysOverdue, inst.Status, inst.LastRecalculatedAt, inst.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetActiveRestructure returns the sale's active restructure record, if any.
func (r *Repository) GetActiveRestructure(ctx context.Context, saleID int64) (*RestructureRecord, error) {
	var rec RestructureRecord
	var priorNextDue pgtype.Timestamptz
	err := r.pool.QueryRow(ctx, `
		SELECT id, sale_id, active,
			prior_outstanding, prior_periodicity, prior_installment_amount, prior_installment_count, prior_next_due_date,
			new_outstanding, new_periodicity, new_installment_amount, new_installment_count, new_next_due_date,
			discount, interest_forgiven, reason, authorized_by, created_at
		FROM credit_restructures
		WHERE sale_id = $1 AND active`, saleID,
	).Scan(
		&rec.ID, &rec.SaleID, &rec.Active,
		&rec.PriorOutstanding, &rec.PriorPeriodicity, &rec.PriorInstallmentAmount, &rec.PriorInstallmentCount, &priorNextDue,
		&rec.NewOutstanding, &rec.NewPeriodicity, &rec.NewInstallmentAmount, &rec.NewInstallmentCount, &rec.NewNextDueDate,
		&rec.Discount, &rec.InterestForgiven, &rec.Reason, &rec.AuthorizedBy, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if priorNextDue.Valid {
		rec.PriorNextDueDate = &priorNextDue.Time
	}
	return &rec, nil
}

// WithTx runs fn inside one repeatable-read transaction. Ledger mutations
// rely on this to serialize concurrent writes to the same installment and
// sale rows.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) CreateSale(ctx context.Context, sale *Sale) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO credit_sales (folio, client_id, order_id, status, subtotal, tax, discount, total,
			initial_payment, outstanding_balance, installment_amount, installment_count,
			grace_period_days, periodicity, next_due_date, inventory_applied, inventory_applied_at,
			notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		sale.Folio, sale.ClientID, sale.OrderID, sale.Status, sale.Subtotal, sale.Tax, sale.Discount, sale.Total,
		sale.InitialPayment, sale.OutstandingBalance, sale.InstallmentAmount, sale.InstallmentCount,
		sale.GracePeriodDays, sale.Periodicity, sale.NextDueDate, sale.InventoryApplied, sale.InventoryAppliedAt,
		sale.Notes, sale.CreatedBy,
	).Scan(&sale.ID, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range sale.Lines {
		line := &sale.Lines[i]
		line.SaleID = sale.ID
		err := t.tx.QueryRow(ctx, `
			INSERT INTO credit_sale_lines (sale_id, product_id, quantity, unit_price, line_total, line_order)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			line.SaleID, line.ProductID, line.Quantity, line.UnitPrice, line.LineTotal, line.LineOrder,
		).Scan(&line.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepository) CreateInstallments(ctx context.Context, installments []Installment) ([]Installment, error) {
	for i := range installments {
		inst := &installments[i]
		err := t.tx.QueryRow(ctx, `
			INSERT INTO credit_installments (sale_id, sequence, original_amount, amount_paid, interest_accrued,
				interest_paid, due_date, days_overdue, daily_rate_pct, status, created_at, updated_at)
			VALUES ($1, $2, $3, 0, 0, 0, $4, 0, $5, $6, NOW(), NOW())
			RETURNING id, created_at, updated_at`,
			inst.SaleID, inst.Sequence, inst.OriginalAmount, inst.DueDate, inst.DailyRatePct, inst.Status,
		).Scan(&inst.ID, &inst.CreatedAt, &inst.UpdatedAt)
		if err != nil {
			return nil, err
		}
	}
	return installments, nil
}

func (t *txRepository) CreatePayment(ctx context.Context, payment *Payment) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO credit_payments (sale_id, installment_id, folio, reference, total_amount, to_principal,
			to_interest, paid_at, latitude, longitude, received_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING id, created_at`,
		payment.SaleID, payment.InstallmentID, payment.Folio, payment.Reference, payment.TotalAmount,
		payment.ToPrincipal, payment.ToInterest, payment.PaidAt, payment.Latitude, payment.Longitude, payment.ReceivedBy,
	).Scan(&payment.ID, &payment.CreatedAt)
}

func (t *txRepository) UpdateInstallmentAllocation(ctx context.Context, inst Installment) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE credit_installments
		SET amount_paid = $1, interest_paid = $2, interest_accrued = $3, days_overdue = $4,
			status = $5, last_recalculated_at = $6, updated_at = NOW()
		WHERE id = $7`,
		inst.AmountPaid, inst.InterestPaid, inst.InterestAccrued, inst.DaysOverdue,
		inst.Status, inst.LastRecalculatedAt, inst.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) ListSaleInstallments(ctx context.Context, saleID int64) ([]Installment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+installmentColumns+`
		FROM credit_installments
		WHERE sale_id = $1
		ORDER BY sequence`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (t *txRepository) CancelUnpaidInstallments(ctx context.Context, saleID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE credit_installments
		SET status = 'CANCELLED', updated_at = NOW()
		WHERE sale_id = $1 AND status IN ('PENDING', 'PARTIAL', 'OVERDUE')`, saleID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepository) UpdateSaleProgress(ctx context.Context, saleID int64, outstanding decimal.Decimal, nextDue *time.Time, status *SaleStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE credit_sales
		SET outstanding_balance = $1,
			next_due_date = $2,
			status = COALESCE($3, status),
			updated_at = NOW()
		WHERE id = $4`,
		outstanding, nextDue, status, saleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) UpdateSaleTerms(ctx context.Context, saleID int64, terms SaleTerms) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE credit_sales
		SET outstanding_balance = $1, periodicity = $2, installment_amount = $3,
			installment_count = $4, next_due_date = $5, updated_at = NOW()
		WHERE id = $6`,
		terms.OutstandingBalance, terms.Periodicity, terms.InstallmentAmount,
		terms.InstallmentCount, terms.NextDueDate, saleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) MarkOrderConverted(ctx context.Context, orderID, saleID int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE credit_orders
		SET status = 'CONVERTED', sale_id = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'PENDING'`, saleID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

func (t *txRepository) DecrementStock(ctx context.Context, productID int64, qty float64, reference string, actorID int64) error {
	// The guard re-checks coverage under the transaction; the advisory
	// precheck outside cannot be trusted alone.
	var balance float64
	err := t.tx.QueryRow(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1
		RETURNING stock`, qty, productID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO stock_movements (product_id, kind, quantity, balance, reference, actor_id, created_at)
		VALUES ($1, 'SALE', $2, $3, $4, $5, NOW())`,
		productID, -qty, balance, reference, actorID)
	return err
}

func (t *txRepository) RestoreStock(ctx context.Context, productID int64, qty float64, reference string, actorID int64) error {
	var balance float64
	err := t.tx.QueryRow(ctx, `
		UPDATE products
		SET stock = stock + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING stock`, qty, productID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO stock_movements (product_id, kind, quantity, balance, reference, actor_id, created_at)
		VALUES ($1, 'REVERSAL', $2, $3, $4, $5, NOW())`,
		productID, qty, balance, reference, actorID)
	return err
}

func (t *txRepository) AdjustClientBalance(ctx context.Context, clientID int64, delta decimal.Decimal, kind, reference, note string, actorID int64) error {
	var balance decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		UPDATE clients
		SET current_balance = current_balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING current_balance`, delta, clientID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	amount := delta
	if amount.IsNegative() {
		amount = amount.Neg()
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO client_credit_history (client_id, kind, amount, balance, reference, note, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		clientID, kind, amount, balance, reference, note, actorID)
	return err
}

func (t *txRepository) DeactivateRestructures(ctx context.Context, saleID int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE credit_restructures SET active = FALSE WHERE sale_id = $1 AND active`, saleID)
	return err
}

func (t *txRepository) CreateRestructure(ctx context.Context, record *RestructureRecord) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO credit_restructures (sale_id, active,
			prior_outstanding, prior_periodicity, prior_installment_amount, prior_installment_count, prior_next_due_date,
			new_outstanding, new_periodicity, new_installment_amount, new_installment_count, new_next_due_date,
			discount, interest_forgiven, reason, authorized_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		RETURNING id, created_at`,
		record.SaleID, record.Active,
		record.PriorOutstanding, record.PriorPeriodicity, record.PriorInstallmentAmount, record.PriorInstallmentCount, record.PriorNextDueDate,
		record.NewOutstanding, record.NewPeriodicity, record.NewInstallmentAmount, record.NewInstallmentCount, record.NewNextDueDate,
		record.Discount, record.InterestForgiven, record.Reason, record.AuthorizedBy,
	).Scan(&record.ID, &record.CreatedAt)
}
