package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrVehiclePriceInvalid  = errors.New("vehicle price must be positive")
	ErrDownPaymentNegative  = errors.New("down payment must not be negative")
	ErrDownPaymentTooLarge  = errors.New("down payment must not exceed the vehicle price")
	ErrTenureMonthsInvalid  = errors.New("tenure must be at least 1 month")
	ErrRentalRateNegative   = errors.New("annual rental rate must not be negative")
	ErrCalculationMethodBad = errors.New("unknown calculation method")
)

// CalculationMethod selects the rent base used when generating a schedule
type CalculationMethod string

const (
	// MethodAmortizedFixed charges rent on the financier's remaining share of
	// the vehicle, declining as straight-line principal is repaid.
	MethodAmortizedFixed CalculationMethod = "amortized_fixed"
	// MethodDeclining charges rent on the customer's outstanding loan balance.
	MethodDeclining CalculationMethod = "declining"
)

// Valid reports whether the method is one of the supported calculation methods
func (m CalculationMethod) Valid() bool {
	return m == MethodAmortizedFixed || m == MethodDeclining
}

// LoanTerms are the financing parameters a schedule is generated from.
// They are fixed once a schedule exists; the loan amount is always derived
// from price and down payment, never stored on its own.
type LoanTerms struct {
	VehiclePrice      decimal.Decimal   `json:"vehiclePrice"`
	DownPayment       decimal.Decimal   `json:"downPayment"`
	TenureMonths      int               `json:"tenureMonths"`
	AnnualRentalRate  decimal.Decimal   `json:"annualRentalRate"`
	CalculationMethod CalculationMethod `json:"calculationMethod"`
}

// LoanAmount returns the financed principal: vehicle price minus down payment
func (t LoanTerms) LoanAmount() decimal.Decimal {
	return t.VehiclePrice.Sub(t.DownPayment)
}

// Schedulable reports whether the terms can produce a non-empty schedule.
// Incomplete applications routinely carry zero price or tenure; that is a
// normal state, not an error.
func (t LoanTerms) Schedulable() bool {
	return t.TenureMonths >= 1 && t.VehiclePrice.IsPositive()
}

func (t LoanTerms) Validate() error {
	if t.VehiclePrice.LessThanOrEqual(decimal.Zero) {
		return ErrVehiclePriceInvalid
	}
	if t.DownPayment.IsNegative() {
		return ErrDownPaymentNegative
	}
	if t.DownPayment.GreaterThan(t.VehiclePrice) {
		return ErrDownPaymentTooLarge
	}
	if t.TenureMonths < 1 {
		return ErrTenureMonthsInvalid
	}
	if t.AnnualRentalRate.IsNegative() {
		return ErrRentalRateNegative
	}
	if !t.CalculationMethod.Valid() {
		return ErrCalculationMethodBad
	}
	return nil
}
