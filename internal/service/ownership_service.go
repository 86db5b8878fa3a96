package service

import (
	"github.com/shopspring/decimal"
	"github.com/veloraid/velora/velora-backend/internal/domain"
)

// OwnershipService computes the customer/financier split of the vehicle's
// value at a point in the amortization. It is pure: the split is derived on
// demand for display and export, never persisted.
type OwnershipService struct{}

// NewOwnershipService creates a new OwnershipService
func NewOwnershipService() *OwnershipService {
	return &OwnershipService{}
}

// At returns the ownership split after the installment at paymentIndex
// (0-based). Ownership is credited for a month once its index is reached, so
// the split uses index+1 paid installments. The customer share is clamped at
// the vehicle price; the financier share is the exact complement, so the two
// always sum to the price.
func (s *OwnershipService) At(terms domain.LoanTerms, paymentIndex int) domain.OwnershipSplit {
	if terms.VehiclePrice.LessThanOrEqual(decimal.Zero) {
		return domain.OwnershipSplit{CustomerShare: decimal.Zero, FinancierShare: decimal.Zero}
	}

	customer := terms.DownPayment
	if terms.TenureMonths >= 1 && paymentIndex >= 0 {
		perMonth := PrincipalPerMonth(terms)
		customer = customer.Add(perMonth.Mul(decimal.NewFromInt(int64(paymentIndex + 1))))
	}
	if customer.GreaterThan(terms.VehiclePrice) {
		customer = terms.VehiclePrice
	}
	if customer.IsNegative() {
		customer = decimal.Zero
	}

	return domain.OwnershipSplit{
		CustomerShare:  customer,
		FinancierShare: terms.VehiclePrice.Sub(customer),
	}
}

// ForSchedule returns one split per installment, in schedule order
func (s *OwnershipService) ForSchedule(terms domain.LoanTerms, schedule domain.Schedule) []domain.OwnershipSplit {
	splits := make([]domain.OwnershipSplit, len(schedule))
	for i := range schedule {
		splits[i] = s.At(terms, i)
	}
	return splits
}
