package credit

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func allocatableInstallment() Installment {
	return Installment{
		ID:              1,
		OriginalAmount:  d("200"),
		AmountPaid:      decimal.Zero,
		InterestAccrued: d("50"),
		InterestPaid:    decimal.Zero,
		DueDate:         time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:          InstallmentOverdue,
	}
}

func TestAllocateInterestFirst(t *testing.T) {
	inst := allocatableInstallment()

	alloc, err := Allocate(d("70"), inst, true)
	require.NoError(t, err)
	require.True(t, alloc.ToInterest.Equal(d("50")))
	require.True(t, alloc.ToPrincipal.Equal(d("20")))
	require.Equal(t, InstallmentPartial, alloc.ResultingStatus)
}

func TestAllocatePrincipalOnly(t *testing.T) {
	inst := allocatableInstallment()

	alloc, err := Allocate(d("70"), inst, false)
	require.NoError(t, err)
	require.True(t, alloc.ToInterest.IsZero())
	require.True(t, alloc.ToPrincipal.Equal(d("70")))
}

func TestAllocateOverpaymentRejected(t *testing.T) {
	inst := allocatableInstallment()

	_, err := Allocate(d("250.01"), inst, true)
	var overpayment *OverpaymentError
	require.ErrorAs(t, err, &overpayment)
	require.True(t, overpayment.MaxAllowed.Equal(d("250")))
}

func TestAllocateExactPayoff(t *testing.T) {
	inst := allocatableInstallment()

	alloc, err := Allocate(d("250"), inst, true)
	require.NoError(t, err)
	require.True(t, alloc.ToInterest.Equal(d("50")))
	require.True(t, alloc.ToPrincipal.Equal(d("200")))
	require.Equal(t, InstallmentPaid, alloc.ResultingStatus)
}

func TestAllocateStatusFlipOnFullPrincipal(t *testing.T) {
	inst := allocatableInstallment()
	inst.OriginalAmount = d("100")
	inst.AmountPaid = d("80")
	inst.InterestAccrued = decimal.Zero

	alloc, err := Allocate(d("20"), inst, true)
	require.NoError(t, err)
	require.True(t, alloc.ToPrincipal.Equal(d("20")))
	require.Equal(t, InstallmentPaid, alloc.ResultingStatus)
}

func TestAllocateRejectsTerminalStatuses(t *testing.T) {
	inst := allocatableInstallment()
	inst.Status = InstallmentPaid
	_, err := Allocate(d("10"), inst, true)
	require.True(t, errors.Is(err, ErrInvalidState))

	inst.Status = InstallmentCancelled
	_, err = Allocate(d("10"), inst, true)
	require.True(t, errors.Is(err, ErrInvalidState))
}

func TestAllocateRejectsNonPositiveAmount(t *testing.T) {
	inst := allocatableInstallment()
	_, err := Allocate(decimal.Zero, inst, true)
	require.True(t, errors.Is(err, ErrValidation))
}

func TestAllocateInterestOnlyPayment(t *testing.T) {
	inst := allocatableInstallment()

	alloc, err := Allocate(d("30"), inst, true)
	require.NoError(t, err)
	require.True(t, alloc.ToInterest.Equal(d("30")))
	require.True(t, alloc.ToPrincipal.IsZero())
	// No principal moved, status stays as-is.
	require.Equal(t, InstallmentOverdue, alloc.ResultingStatus)
}
