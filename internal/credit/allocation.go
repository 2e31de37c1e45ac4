package credit

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Allocation is the split of a payment between interest and principal, and
// the installment status that results from applying it.
type Allocation struct {
	ToInterest      decimal.Decimal
	ToPrincipal     decimal.Decimal
	ResultingStatus InstallmentStatus
}

// Allocate splits a payment against an installment under the interest-first
// priority rule.
//
// Accrued interest is settled before any principal. The payment may not
// exceed interest owed plus principal outstanding; the excess case returns
// an *OverpaymentError carrying the maximum accepted amount. Allocate is
// pure: persisting the resulting installment and payment record is the
// caller's job.
func Allocate(amount decimal.Decimal, inst Installment, interestFirst bool) (Allocation, error) {
	if inst.Status == InstallmentPaid || inst.Status == InstallmentCancelled {
		return Allocation{}, fmt.Errorf("%w: installment is %s", ErrInvalidState, inst.Status)
	}
	if amount.Sign() <= 0 {
		return Allocation{}, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}

	interestOwed := inst.InterestOwed()
	principalOwed := inst.PrincipalOutstanding()
	totalOwed := interestOwed.Add(principalOwed)
	if amount.GreaterThan(totalOwed) {
		return Allocation{}, &OverpaymentError{MaxAllowed: totalOwed}
	}

	var alloc Allocation
	if interestFirst && interestOwed.Sign() > 0 {
		alloc.ToInterest = decimal.Min(amount, interestOwed).Round(2)
		alloc.ToPrincipal = amount.Sub(alloc.ToInterest).Round(2)
	} else {
		alloc.ToPrincipal = amount.Round(2)
		alloc.ToInterest = decimal.Zero
	}

	paidAfter := inst.AmountPaid.Add(alloc.ToPrincipal)
	switch {
	case paidAfter.GreaterThanOrEqual(inst.OriginalAmount):
		alloc.ResultingStatus = InstallmentPaid
	case paidAfter.Sign() > 0:
		alloc.ResultingStatus = InstallmentPartial
	default:
		alloc.ResultingStatus = inst.Status
	}
	return alloc, nil
}
