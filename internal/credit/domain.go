package credit

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Periodicity is the spacing between scheduled installments.
type Periodicity string

const (
	PeriodicityWeekly   Periodicity = "WEEKLY"
	PeriodicityBiweekly Periodicity = "BIWEEKLY"
	PeriodicityMonthly  Periodicity = "MONTHLY"
)

// Days returns the fixed day count for one period. Monthly is a 30-day
// approximation, not calendar-month aware.
func (p Periodicity) Days() int {
	switch p {
	case PeriodicityWeekly:
		return 7
	case PeriodicityBiweekly:
		return 15
	case PeriodicityMonthly:
		return 30
	default:
		return 0
	}
}

// Valid reports whether the periodicity is one of the known values.
func (p Periodicity) Valid() bool {
	return p.Days() > 0
}

// SaleStatus enumerates credit-sale states.
type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "PENDING"
	SaleStatusConfirmed SaleStatus = "CONFIRMED"
	SaleStatusDelivered SaleStatus = "DELIVERED"
	SaleStatusCancelled SaleStatus = "CANCELLED"
	SaleStatusPaid      SaleStatus = "PAID"
)

// InstallmentStatus enumerates pagaré states.
type InstallmentStatus string

const (
	InstallmentPending   InstallmentStatus = "PENDING"
	InstallmentPartial   InstallmentStatus = "PARTIAL"
	InstallmentPaid      InstallmentStatus = "PAID"
	InstallmentOverdue   InstallmentStatus = "OVERDUE"
	InstallmentCancelled InstallmentStatus = "CANCELLED"
)

// Sale is the aggregate root of a credit relationship: totals, schedule
// terms, and the derived outstanding balance.
type Sale struct {
	ID                 int64           `json:"id"`
	Folio              string          `json:"folio"`
	ClientID           int64           `json:"client_id"`
	OrderID            *int64          `json:"order_id,omitempty"`
	Status             SaleStatus      `json:"status"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	Tax                decimal.Decimal `json:"tax"`
	Discount           decimal.Decimal `json:"discount"`
	Total              decimal.Decimal `json:"total"`
	InitialPayment     decimal.Decimal `json:"initial_payment"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	InstallmentAmount  decimal.Decimal `json:"installment_amount"`
	InstallmentCount   int             `json:"installment_count"`
	GracePeriodDays    int             `json:"grace_period_days"`
	Periodicity        Periodicity     `json:"periodicity"`
	NextDueDate        *time.Time      `json:"next_due_date,omitempty"`
	InventoryApplied   bool            `json:"inventory_applied"`
	InventoryAppliedAt *time.Time      `json:"inventory_applied_at,omitempty"`
	Notes              *string         `json:"notes,omitempty"`
	CreatedBy          int64           `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Lines        []SaleLine    `json:"lines,omitempty"`
	Installments []Installment `json:"installments,omitempty"`
	Payments     []Payment     `json:"payments,omitempty"`
	// ActiveRestructure is the renegotiation currently in force, if any.
	ActiveRestructure *RestructureRecord `json:"active_restructure,omitempty"`
}

// SaleLine is one product position on a sale, kept so inventory can be
// restored if the sale is cancelled.
type SaleLine struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	ProductID int64           `json:"product_id"`
	Quantity  float64         `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	LineOrder int             `json:"line_order"`
}

// Installment is a single pagaré: principal due on a date plus any moratory
// interest accrued while overdue.
type Installment struct {
	ID                 int64             `json:"id"`
	SaleID             int64             `json:"sale_id"`
	Sequence           int               `json:"sequence"`
	OriginalAmount     decimal.Decimal   `json:"original_amount"`
	AmountPaid         decimal.Decimal   `json:"amount_paid"`
	InterestAccrued    decimal.Decimal   `json:"interest_accrued"`
	InterestPaid       decimal.Decimal   `json:"interest_paid"`
	DueDate            time.Time         `json:"due_date"`
	DaysOverdue        int               `json:"days_overdue"`
	DailyRatePct       decimal.Decimal   `json:"daily_rate_pct"`
	Status             InstallmentStatus `json:"status"`
	LastRecalculatedAt *time.Time        `json:"last_recalculated_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// PrincipalOutstanding returns the unpaid principal on the installment.
func (i Installment) PrincipalOutstanding() decimal.Decimal {
	return i.OriginalAmount.Sub(i.AmountPaid)
}

// InterestOwed returns accrued moratory interest not yet paid, floored at
// zero.
func (i Installment) InterestOwed() decimal.Decimal {
	owed := i.InterestAccrued.Sub(i.InterestPaid)
	if owed.IsNegative() {
		return decimal.Zero
	}
	return owed
}

// Payment is an immutable record of money received against an installment.
// Corrections happen through new compensating records, never edits.
type Payment struct {
	ID            int64           `json:"id"`
	SaleID        int64           `json:"sale_id"`
	InstallmentID *int64          `json:"installment_id,omitempty"`
	Folio         string          `json:"folio"`
	Reference     string          `json:"reference"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ToPrincipal   decimal.Decimal `json:"to_principal"`
	ToInterest    decimal.Decimal `json:"to_interest"`
	PaidAt        time.Time       `json:"paid_at"`
	Latitude      *float64        `json:"latitude,omitempty"`
	Longitude     *float64        `json:"longitude,omitempty"`
	ReceivedBy    int64           `json:"received_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RestructureRecord snapshots a sale's payment terms before and after a
// renegotiation. At most one record is active per sale.
type RestructureRecord struct {
	ID     int64 `json:"id"`
	SaleID int64 `json:"sale_id"`
	Active bool  `json:"active"`

	PriorOutstanding       decimal.Decimal `json:"prior_outstanding"`
	PriorPeriodicity       Periodicity     `json:"prior_periodicity"`
	PriorInstallmentAmount decimal.Decimal `json:"prior_installment_amount"`
	PriorInstallmentCount  int             `json:"prior_installment_count"`
	PriorNextDueDate       *time.Time      `json:"prior_next_due_date,omitempty"`

	NewOutstanding       decimal.Decimal `json:"new_outstanding"`
	NewPeriodicity       Periodicity     `json:"new_periodicity"`
	NewInstallmentAmount decimal.Decimal `json:"new_installment_amount"`
	NewInstallmentCount  int             `json:"new_installment_count"`
	NewNextDueDate       time.Time       `json:"new_next_due_date"`

	Discount         decimal.Decimal `json:"discount"`
	InterestForgiven decimal.Decimal `json:"interest_forgiven"`
	Reason           string          `json:"reason"`
	AuthorizedBy     int64           `json:"authorized_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

var (
	// ErrNotFound indicates the sale, installment, or related record is
	// missing.
	ErrNotFound = errors.New("credit: not found")
	// ErrInvalidState indicates the record's status does not allow the
	// requested transition.
	ErrInvalidState = errors.New("credit: invalid state")
	// ErrValidation indicates malformed input rejected before any business
	// logic ran.
	ErrValidation = errors.New("credit: validation failed")
)

// OverpaymentError reports a payment larger than what the installment owes.
// MaxAllowed is interest owed plus principal outstanding at allocation time.
type OverpaymentError struct {
	MaxAllowed decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("credit: payment exceeds amount owed, maximum allowed is %s", e.MaxAllowed.StringFixed(2))
}
