package domain

import "github.com/shopspring/decimal"

// OwnershipSplit is the notional division of the vehicle's value between
// customer and financier at a point in the repayment timeline. It is derived
// per row when a schedule is displayed or exported, never persisted.
// Invariant: CustomerShare + FinancierShare equals the vehicle price exactly.
type OwnershipSplit struct {
	CustomerShare  decimal.Decimal `json:"customerShare"`
	FinancierShare decimal.Decimal `json:"financierShare"`
}

// Percent returns the customer's ownership as a percentage of the vehicle
// price, clamped to [0, 100]. A non-positive price yields 0 rather than a
// division fault.
func (o OwnershipSplit) Percent() decimal.Decimal {
	price := o.CustomerShare.Add(o.FinancierShare)
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	pct := o.CustomerShare.Div(price).Mul(decimal.NewFromInt(100))
	if pct.IsNegative() {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}
