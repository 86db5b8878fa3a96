package service

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/veloraid/velora/velora-backend/internal/domain"
	"github.com/veloraid/velora/velora-backend/internal/util"
)

// maxMedianGapDays is the largest median due-date gap (in days) that still
// classifies a schedule as daily-granularity
const maxMedianGapDays = 3

// AggregationService detects daily-granularity schedules and rolls them up
// to one installment per calendar month. Historical records imported from
// the previous system sometimes carry day-level schedules with an ambiguous
// or missing interval field; the classifier is the fallback for those, and
// the explicit interval on the application always wins when set.
type AggregationService struct{}

// NewAggregationService creates a new AggregationService
func NewAggregationService() *AggregationService {
	return &AggregationService{}
}

// LooksDaily reports whether a schedule appears to be daily-granularity:
// either the median gap between consecutive due dates is at most three days,
// or the schedule holds materially more entries than the tenure predicts.
// Heuristic only; callers must prefer the application's interval field.
func (s *AggregationService) LooksDaily(schedule domain.Schedule, tenureMonths int) bool {
	if tenureMonths >= 1 && len(schedule) > tenureMonths*2 {
		return true
	}
	if len(schedule) < 2 {
		return false
	}

	dues := make([]int64, len(schedule))
	for i, in := range schedule {
		dues[i] = in.DueDate.Unix()
	}
	sort.Slice(dues, func(i, j int) bool { return dues[i] < dues[j] })

	gaps := make([]int64, 0, len(dues)-1)
	for i := 1; i < len(dues); i++ {
		gaps = append(gaps, (dues[i]-dues[i-1])/(24*60*60))
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })

	return gaps[len(gaps)/2] <= maxMedianGapDays
}

// AggregateDailyToMonthly rolls a schedule up to one installment per
// calendar month:
//   - amount is the exact sum of the grouped amounts (decimal arithmetic,
//     no rounding loss),
//   - due date is the earliest due date in the group,
//   - status takes the least-settled member (any upcoming wins, then active,
//     all-paid makes the month paid with the latest member paid date),
//   - payment method survives only when every grouped member shares it.
//
// The roll-up is idempotent: aggregating an already-monthly schedule leaves
// it unchanged apart from sequence renumbering, and an empty schedule yields
// an empty schedule. Day-level granularity is gone for good; callers replace
// the stored schedule wholesale and flip the interval to Monthly.
func (s *AggregationService) AggregateDailyToMonthly(schedule domain.Schedule) domain.Schedule {
	if len(schedule) == 0 {
		return domain.Schedule{}
	}

	groups := make(map[int][]domain.Installment)
	keys := make([]int, 0)
	for _, in := range schedule {
		key := util.MonthKey(in.DueDate)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], in)
	}
	sort.Ints(keys)

	out := make(domain.Schedule, 0, len(keys))
	for seq, key := range keys {
		merged := mergeMonth(groups[key])
		merged.Seq = seq + 1
		out = append(out, merged)
	}
	return out
}

// mergeMonth folds one calendar month's installments into a single entry
func mergeMonth(group []domain.Installment) domain.Installment {
	merged := domain.Installment{
		DueDate:       group[0].DueDate,
		Amount:        decimal.Zero,
		Status:        domain.StatusPaid,
		PaymentMethod: group[0].PaymentMethod,
		ProofDocument: group[0].ProofDocument,
	}

	var latestPaid *domain.Installment
	hasUpcoming := false
	hasActive := false

	for idx := range group {
		in := group[idx]
		merged.Amount = merged.Amount.Add(in.Amount)

		if in.DueDate.Before(merged.DueDate) {
			merged.DueDate = in.DueDate
		}

		switch in.Status {
		case domain.StatusUpcoming:
			hasUpcoming = true
		case domain.StatusActive:
			hasActive = true
		case domain.StatusPaid:
			if in.PaidDate != nil && (latestPaid == nil || latestPaid.PaidDate == nil || in.PaidDate.After(*latestPaid.PaidDate)) {
				latestPaid = &group[idx]
			}
		}

		if !samePaymentMethod(merged.PaymentMethod, in.PaymentMethod) {
			merged.PaymentMethod = nil
		}
		if !sameProof(merged.ProofDocument, in.ProofDocument) {
			merged.ProofDocument = nil
		}
	}

	switch {
	case hasUpcoming:
		merged.Status = domain.StatusUpcoming
	case hasActive:
		merged.Status = domain.StatusActive
	default:
		// all paid; the month was settled when its last payment landed
		if latestPaid != nil {
			d := *latestPaid.PaidDate
			merged.PaidDate = &d
		}
	}

	if merged.Status != domain.StatusPaid {
		merged.PaidDate = nil
		merged.PaymentMethod = nil
	}
	return merged
}

func samePaymentMethod(a, b *domain.PaymentMethod) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameProof(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
