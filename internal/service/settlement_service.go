package service

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/veloraid/velora/velora-backend/internal/domain"
)

// SettlementService quotes early-payoff amounts over the unpaid remainder of
// a schedule
type SettlementService struct{}

// NewSettlementService creates a new SettlementService
func NewSettlementService() *SettlementService {
	return &SettlementService{}
}

// Quote computes a settlement offer as of the given date. The discount
// fraction comes from the policy, keyed by how many unpaid installments
// remain; a failed policy lookup or a non-positive fraction quotes at zero
// discount, so settlement is always possible.
func (s *SettlementService) Quote(schedule domain.Schedule, policy domain.SettlementPolicy, asOf time.Time) domain.SettlementQuote {
	remaining := schedule.RemainingAmount()
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	fraction, err := policy.Resolve(asOf, schedule.RemainingCount())
	if err != nil {
		log.Warn().
			Int("remaining_months", schedule.RemainingCount()).
			Msg("No settlement policy rule matched, quoting without discount")
		fraction = decimal.Zero
	}
	if fraction.LessThanOrEqual(decimal.Zero) {
		fraction = decimal.Zero
	}

	discount := remaining.Mul(fraction).Round(2)
	if discount.GreaterThan(remaining) {
		discount = remaining
	}

	return domain.SettlementQuote{
		OriginalRemaining: remaining,
		Discount:          discount,
		FinalAmount:       remaining.Sub(discount),
		QuotedAt:          asOf,
	}
}

// ParseSettlementPolicy parses the SETTLEMENT_POLICY configuration string:
// comma-separated "minRemainingMonths:fraction" pairs, e.g.
// "12:0.30,6:0.20,1:0.10". Malformed entries are skipped with a warning;
// an empty result quotes every settlement at zero discount.
func ParseSettlementPolicy(spec string) domain.SettlementPolicy {
	var rules []domain.PolicyRule
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			log.Warn().Str("entry", entry).Msg("Skipping malformed settlement policy entry")
			continue
		}

		months, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || months < 0 {
			log.Warn().Str("entry", entry).Msg("Skipping settlement policy entry with bad month count")
			continue
		}

		fraction, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			log.Warn().Str("entry", entry).Msg("Skipping settlement policy entry with bad fraction")
			continue
		}

		rules = append(rules, domain.PolicyRule{MinRemainingMonths: months, Fraction: fraction})
	}

	// most generous early-settlement tier first
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].MinRemainingMonths > rules[j].MinRemainingMonths
	})

	return domain.SettlementPolicy{Rules: rules}
}
