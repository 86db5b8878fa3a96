package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/veloraid/velora/velora-backend/internal/domain"
	"github.com/veloraid/velora/velora-backend/internal/util"
)

var twelve = decimal.NewFromInt(12)

// ScheduleService generates installment schedules from loan terms
type ScheduleService struct{}

// NewScheduleService creates a new ScheduleService
func NewScheduleService() *ScheduleService {
	return &ScheduleService{}
}

// DefaultStartDate returns the policy start date for a schedule generated
// today: the first day of the following month. The gap is the customer's
// grace period before the first payment falls due.
func DefaultStartDate(today time.Time) time.Time {
	return util.FirstOfNextMonth(today)
}

// PrincipalPerMonth returns the straight-line monthly principal for the
// terms, rounded to the cent
func PrincipalPerMonth(terms domain.LoanTerms) decimal.Decimal {
	if terms.TenureMonths < 1 {
		return decimal.Zero
	}
	return terms.LoanAmount().DivRound(decimal.NewFromInt(int64(terms.TenureMonths)), 2)
}

// Generate produces the full installment schedule for the given terms.
// Degenerate terms (tenure below one month, non-positive price) yield an
// empty schedule: an incomplete application is a normal state, not an error.
//
// Each installment is straight-line principal plus that month's rent. Rent
// is charged on the financier's remaining share of the vehicle
// (price - downPayment - principalPerMonth*i), not on a textbook annuity
// balance. The final installment's principal absorbs the division remainder
// so the schedule sums exactly to loanAmount plus total rent.
//
// Installments due in a calendar month before today are backfilled as paid
// (paidDate = dueDate), the current month is active, later months upcoming.
// A schedule generated for a retroactively approved application therefore
// carries its seasoned payment history from day one.
func (s *ScheduleService) Generate(terms domain.LoanTerms, startDate, today time.Time) domain.Schedule {
	if !terms.Schedulable() {
		return domain.Schedule{}
	}

	n := terms.TenureMonths
	loanAmount := terms.LoanAmount()
	perMonth := PrincipalPerMonth(terms)
	monthlyRate := terms.AnnualRentalRate.Div(twelve)

	schedule := make(domain.Schedule, 0, n)
	for i := 0; i < n; i++ {
		principal := perMonth
		if i == n-1 {
			// remainder of the straight-line split lands on the last payment
			principal = loanAmount.Sub(perMonth.Mul(decimal.NewFromInt(int64(n - 1))))
		}

		rent := s.rentForMonth(terms, perMonth, i).Mul(monthlyRate).Round(2)
		dueDate := util.AddMonthsClamped(startDate, i)

		in := domain.Installment{
			Seq:     i + 1,
			DueDate: dueDate,
			Amount:  principal.Add(rent),
			Status:  statusFor(dueDate, today),
		}
		if in.Status == domain.StatusPaid {
			paid := dueDate
			in.PaidDate = &paid
		}
		schedule = append(schedule, in)
	}
	return schedule
}

// rentForMonth returns the balance the month's rent is charged on
func (s *ScheduleService) rentForMonth(terms domain.LoanTerms, perMonth decimal.Decimal, i int) decimal.Decimal {
	base := terms.LoanAmount().Sub(perMonth.Mul(decimal.NewFromInt(int64(i))))
	if terms.CalculationMethod == domain.MethodDeclining && base.IsNegative() {
		return decimal.Zero
	}
	return base
}

func statusFor(dueDate, today time.Time) domain.InstallmentStatus {
	switch {
	case util.BeforeCalendarMonth(dueDate, today):
		return domain.StatusPaid
	case util.SameCalendarMonth(dueDate, today):
		return domain.StatusActive
	default:
		return domain.StatusUpcoming
	}
}

// TotalRent returns the rent portion of a generated schedule: everything
// above the financed principal
func (s *ScheduleService) TotalRent(terms domain.LoanTerms, schedule domain.Schedule) decimal.Decimal {
	return schedule.TotalAmount().Sub(terms.LoanAmount())
}
