package credit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func overdueInstallment() Installment {
	return Installment{
		ID:             1,
		SaleID:         1,
		Sequence:       1,
		OriginalAmount: d("1000"),
		AmountPaid:     decimal.Zero,
		DueDate:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DailyRatePct:   d("0.05"),
		Status:         InstallmentPending,
	}
}

func TestRecalculateInterestSimpleFormula(t *testing.T) {
	inst := overdueInstallment()

	// 1000 * 0.05% * 10 days = 5.00
	res := RecalculateInterest(inst, inst.DueDate.AddDate(0, 0, 10))
	require.Equal(t, 10, res.DaysOverdue)
	require.True(t, res.InterestAccrued.Equal(d("5")), "got %s", res.InterestAccrued)
}

func TestRecalculateInterestMonotonic(t *testing.T) {
	inst := overdueInstallment()
	prev := decimal.Zero
	for n := 1; n <= 60; n++ {
		res := RecalculateInterest(inst, inst.DueDate.AddDate(0, 0, n))
		require.Equal(t, n, res.DaysOverdue)
		require.True(t, res.InterestAccrued.GreaterThanOrEqual(prev))
		prev = res.InterestAccrued
	}
}

func TestRecalculateInterestNoAccrualBeforeDue(t *testing.T) {
	inst := overdueInstallment()
	inst.InterestAccrued = d("3.50")

	res := RecalculateInterest(inst, inst.DueDate)
	require.Equal(t, 0, res.DaysOverdue)
	require.True(t, res.InterestAccrued.Equal(d("3.50")))

	res = RecalculateInterest(inst, inst.DueDate.AddDate(0, 0, -5))
	require.Equal(t, 0, res.DaysOverdue)
	require.True(t, res.InterestAccrued.Equal(d("3.50")))
}

func TestRecalculateInterestZeroRate(t *testing.T) {
	inst := overdueInstallment()
	inst.DailyRatePct = decimal.Zero
	inst.InterestAccrued = d("2.00")

	res := RecalculateInterest(inst, inst.DueDate.AddDate(0, 0, 30))
	require.Equal(t, 30, res.DaysOverdue)
	require.True(t, res.InterestAccrued.Equal(d("2.00")))
}

func TestRecalculateInterestReplacesNotAdds(t *testing.T) {
	inst := overdueInstallment()
	inst.InterestAccrued = d("999")

	res := RecalculateInterest(inst, inst.DueDate.AddDate(0, 0, 4))
	// 1000 * 0.05% * 4 = 2.00, regardless of the stale stored figure.
	require.True(t, res.InterestAccrued.Equal(d("2")), "got %s", res.InterestAccrued)
}

func TestRecalculateInterestTracksOutstandingPrincipal(t *testing.T) {
	inst := overdueInstallment()
	inst.AmountPaid = d("600")

	// 400 * 0.05% * 10 = 0.20
	res := RecalculateInterest(inst, inst.DueDate.AddDate(0, 0, 10))
	require.True(t, res.InterestAccrued.Equal(d("0.2")), "got %s", res.InterestAccrued)
}

func TestDaysBetweenFloors(t *testing.T) {
	due := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 0, daysBetween(due, due.Add(23*time.Hour)))
	require.Equal(t, 1, daysBetween(due, due.Add(24*time.Hour)))
	require.Equal(t, 1, daysBetween(due, due.Add(47*time.Hour)))
}
