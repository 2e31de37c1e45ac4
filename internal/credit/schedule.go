package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentSpec is one entry of a generated schedule, before persistence.
type InstallmentSpec struct {
	Sequence int
	Amount   decimal.Decimal
	DueDate  time.Time
}

// ScheduleParams drives schedule generation. Callers reject negative Total
// and InstallmentAmount before building.
type ScheduleParams struct {
	Total             decimal.Decimal
	InitialPayment    decimal.Decimal
	Periodicity       Periodicity
	InstallmentAmount decimal.Decimal
	GraceDays         int
	// FirstDueDate anchors the schedule explicitly. When nil, the first due
	// date is now + one period + grace days.
	FirstDueDate *time.Time
}

// BuildSchedule produces the ordered installment plan for a sale.
//
// The count is the ceiling of outstanding over the installment amount; every
// installment equals the requested amount except the last, which absorbs the
// remainder. Due dates are computed from the first due date as an anchor
// rather than chained period-by-period, so no drift accumulates.
func BuildSchedule(params ScheduleParams, now time.Time) []InstallmentSpec {
	outstanding := params.Total.Sub(params.InitialPayment)
	if outstanding.Sign() <= 0 {
		return nil
	}

	periodDays := params.Periodicity.Days()
	firstDue := now.AddDate(0, 0, periodDays+params.GraceDays)
	if params.FirstDueDate != nil {
		firstDue = *params.FirstDueDate
	}

	if params.InstallmentAmount.Sign() <= 0 {
		return []InstallmentSpec{{Sequence: 1, Amount: outstanding, DueDate: firstDue}}
	}

	count := int(outstanding.Div(params.InstallmentAmount).Ceil().IntPart())
	specs := make([]InstallmentSpec, 0, count)
	for i := 1; i <= count; i++ {
		amount := params.InstallmentAmount
		if i == count {
			// Never negative: count is a ceiling.
			amount = outstanding.Sub(params.InstallmentAmount.Mul(decimal.NewFromInt(int64(count - 1))))
		}
		specs = append(specs, InstallmentSpec{
			Sequence: i,
			Amount:   amount,
			DueDate:  firstDue.AddDate(0, 0, (i-1)*periodDays),
		})
	}
	return specs
}
