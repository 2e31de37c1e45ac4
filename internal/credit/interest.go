package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

// InterestResult is the outcome of recalculating moratory interest on one
// installment as of a given date.
type InterestResult struct {
	DaysOverdue     int
	InterestAccrued decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// RecalculateInterest recomputes the moratory interest owed on an
// installment as of the given date.
//
// Interest is simple, recomputed from scratch on every call: unpaid
// principal times the daily rate times the days overdue. The result replaces
// any previously stored accrual, so the figure always tracks current
// outstanding principal and never double-counts. Before the due date, or
// with a non-positive rate, the stored accrual is returned unchanged.
func RecalculateInterest(inst Installment, asOf time.Time) InterestResult {
	daysOverdue := daysBetween(inst.DueDate, asOf)
	if daysOverdue <= 0 {
		return InterestResult{DaysOverdue: 0, InterestAccrued: inst.InterestAccrued}
	}
	if inst.DailyRatePct.Sign() <= 0 {
		return InterestResult{DaysOverdue: daysOverdue, InterestAccrued: inst.InterestAccrued}
	}

	outstanding := inst.PrincipalOutstanding()
	accrued := outstanding.
		Mul(inst.DailyRatePct).
		Div(hundred).
		Mul(decimal.NewFromInt(int64(daysOverdue))).
		Round(2)
	return InterestResult{DaysOverdue: daysOverdue, InterestAccrued: accrued}
}

// daysBetween returns the whole days from one instant to another, floored,
// never negative.
func daysBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
