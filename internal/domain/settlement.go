package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoMatchingPolicyRule is returned when no rule covers the remaining
// tenure. Callers quote with zero discount instead of surfacing it: a failed
// discount lookup must never block a customer from settling in full.
var ErrNoMatchingPolicyRule = errors.New("no settlement policy rule matches")

// SettlementQuote is a derived early-payoff offer over the unpaid remainder
// of a schedule. Invariant: FinalAmount = OriginalRemaining - Discount, and
// both Discount and FinalAmount are non-negative.
type SettlementQuote struct {
	OriginalRemaining decimal.Decimal `json:"originalRemaining"`
	Discount          decimal.Decimal `json:"discount"`
	FinalAmount       decimal.Decimal `json:"finalAmount"`
	QuotedAt          time.Time       `json:"quotedAt"`
}

// PolicyRule grants a discount fraction when at least MinRemainingMonths
// installments are still unpaid at settlement time.
type PolicyRule struct {
	MinRemainingMonths int             `json:"minRemainingMonths"`
	Fraction           decimal.Decimal `json:"fraction"`
}

// SettlementPolicy is an ordered rule list; the first matching rule wins.
// Rules are kept sorted by MinRemainingMonths descending so the most generous
// early-settlement tier is checked first.
type SettlementPolicy struct {
	Rules []PolicyRule `json:"rules"`
}

// Resolve returns the discount fraction for a settlement with the given
// number of remaining unpaid months. The fraction is clamped to [0, 1].
func (p SettlementPolicy) Resolve(asOf time.Time, remainingMonths int) (decimal.Decimal, error) {
	for _, rule := range p.Rules {
		if remainingMonths >= rule.MinRemainingMonths {
			f := rule.Fraction
			if f.IsNegative() {
				return decimal.Zero, nil
			}
			if f.GreaterThan(decimal.NewFromInt(1)) {
				return decimal.NewFromInt(1), nil
			}
			return f, nil
		}
	}
	return decimal.Zero, ErrNoMatchingPolicyRule
}
