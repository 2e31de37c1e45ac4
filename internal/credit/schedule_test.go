package credit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestBuildScheduleCeilingCount(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	specs := BuildSchedule(ScheduleParams{
		Total:             d("1000"),
		InitialPayment:    decimal.Zero,
		Periodicity:       PeriodicityWeekly,
		InstallmentAmount: d("300"),
	}, now)

	require.Len(t, specs, 4)
	require.True(t, specs[0].Amount.Equal(d("300")))
	require.True(t, specs[1].Amount.Equal(d("300")))
	require.True(t, specs[2].Amount.Equal(d("300")))
	require.True(t, specs[3].Amount.Equal(d("100")))
}

func TestBuildScheduleSumsToOutstanding(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		total, initial, amount string
	}{
		{"1000", "0", "300"},
		{"999.99", "100", "250"},
		{"512.37", "12.37", "77.77"},
		{"100", "0", "100"},
	}
	for _, tc := range cases {
		specs := BuildSchedule(ScheduleParams{
			Total:             d(tc.total),
			InitialPayment:    d(tc.initial),
			Periodicity:       PeriodicityBiweekly,
			InstallmentAmount: d(tc.amount),
		}, now)

		sum := decimal.Zero
		for _, spec := range specs {
			require.False(t, spec.Amount.IsNegative())
			sum = sum.Add(spec.Amount)
		}
		want := d(tc.total).Sub(d(tc.initial))
		require.True(t, sum.Equal(want), "total=%s initial=%s: sum %s != %s", tc.total, tc.initial, sum, want)
	}
}

func TestBuildScheduleSingleInstallmentFallback(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	specs := BuildSchedule(ScheduleParams{
		Total:          d("500"),
		InitialPayment: decimal.Zero,
		Periodicity:    PeriodicityMonthly,
	}, now)

	require.Len(t, specs, 1)
	require.True(t, specs[0].Amount.Equal(d("500")))
	require.Equal(t, now.AddDate(0, 0, 30), specs[0].DueDate)
}

func TestBuildScheduleZeroOutstanding(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	specs := BuildSchedule(ScheduleParams{
		Total:          d("500"),
		InitialPayment: d("500"),
		Periodicity:    PeriodicityWeekly,
	}, now)
	require.Empty(t, specs)
}

func TestBuildScheduleDueDatesAnchored(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	specs := BuildSchedule(ScheduleParams{
		Total:             d("600"),
		InitialPayment:    decimal.Zero,
		Periodicity:       PeriodicityWeekly,
		InstallmentAmount: d("200"),
		GraceDays:         3,
	}, now)

	require.Len(t, specs, 3)
	first := now.AddDate(0, 0, 7+3)
	for i, spec := range specs {
		require.Equal(t, i+1, spec.Sequence)
		require.Equal(t, first.AddDate(0, 0, i*7), spec.DueDate)
	}
}

func TestBuildScheduleExplicitAnchor(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	anchor := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	specs := BuildSchedule(ScheduleParams{
		Total:             d("400"),
		Periodicity:       PeriodicityBiweekly,
		InstallmentAmount: d("200"),
		FirstDueDate:      &anchor,
	}, now)

	require.Len(t, specs, 2)
	require.Equal(t, anchor, specs[0].DueDate)
	require.Equal(t, anchor.AddDate(0, 0, 15), specs[1].DueDate)
}

func TestPeriodicityDays(t *testing.T) {
	require.Equal(t, 7, PeriodicityWeekly.Days())
	require.Equal(t, 15, PeriodicityBiweekly.Days())
	require.Equal(t, 30, PeriodicityMonthly.Days())
	require.False(t, Periodicity("DAILY").Valid())
}
