package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInstallmentNotFound    = errors.New("installment not found")
	ErrInstallmentAlreadyPaid = errors.New("installment is already paid")
	ErrPaymentMethodInvalid   = errors.New("unknown payment method")
)

// InstallmentStatus is the lifecycle state of a single installment
type InstallmentStatus string

const (
	StatusUpcoming InstallmentStatus = "upcoming"
	StatusActive   InstallmentStatus = "active"
	StatusPaid     InstallmentStatus = "paid"
)

// PaymentMethod is how a paid installment was settled
type PaymentMethod string

const (
	PaymentBankAccount PaymentMethod = "bank_account"
	PaymentCheque      PaymentMethod = "cheque"
	PaymentCash        PaymentMethod = "cash"
)

// Valid reports whether the payment method is supported
func (m PaymentMethod) Valid() bool {
	return m == PaymentBankAccount || m == PaymentCheque || m == PaymentCash
}

// Installment is one scheduled payment obligation.
// Invariant: Status == paid implies PaidDate is set, and conversely an
// upcoming or active installment carries no PaidDate.
type Installment struct {
	Seq           int               `json:"seq"`
	DueDate       time.Time         `json:"dueDate"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        InstallmentStatus `json:"status"`
	PaidDate      *time.Time        `json:"paidDate,omitempty"`
	PaymentMethod *PaymentMethod    `json:"paymentMethod,omitempty"`
	ProofDocument *string           `json:"proofDocument,omitempty"`
}

// IsPaid reports whether the installment has been settled
func (i Installment) IsPaid() bool {
	return i.Status == StatusPaid
}

// MarkPaid transitions an upcoming or active installment to paid.
// The transition happens exactly once; paying a paid installment fails.
func (i *Installment) MarkPaid(paidDate time.Time, method PaymentMethod, proof *string) error {
	if i.Status == StatusPaid {
		return ErrInstallmentAlreadyPaid
	}
	if !method.Valid() {
		return ErrPaymentMethodInvalid
	}
	i.Status = StatusPaid
	i.PaidDate = &paidDate
	i.PaymentMethod = &method
	i.ProofDocument = proof
	return nil
}

// Schedule is an ordered sequence of installments, ascending by due date,
// owned by exactly one application.
type Schedule []Installment

// TotalAmount sums every installment amount in the schedule
func (s Schedule) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, in := range s {
		total = total.Add(in.Amount)
	}
	return total
}

// RemainingAmount sums the amounts of all installments that are not yet paid
func (s Schedule) RemainingAmount() decimal.Decimal {
	total := decimal.Zero
	for _, in := range s {
		if !in.IsPaid() {
			total = total.Add(in.Amount)
		}
	}
	return total
}

// RemainingCount returns the number of unpaid installments
func (s Schedule) RemainingCount() int {
	count := 0
	for _, in := range s {
		if !in.IsPaid() {
			count++
		}
	}
	return count
}

// BySeq returns a pointer to the installment with the given sequence number
func (s Schedule) BySeq(seq int) (*Installment, error) {
	for idx := range s {
		if s[idx].Seq == seq {
			return &s[idx], nil
		}
	}
	return nil, ErrInstallmentNotFound
}

// Clone returns a deep copy of the schedule. Services hand copies to callers
// so that a held schedule never aliases the stored one.
func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	out := make(Schedule, len(s))
	copy(out, s)
	for idx := range out {
		if s[idx].PaidDate != nil {
			d := *s[idx].PaidDate
			out[idx].PaidDate = &d
		}
		if s[idx].PaymentMethod != nil {
			m := *s[idx].PaymentMethod
			out[idx].PaymentMethod = &m
		}
		if s[idx].ProofDocument != nil {
			p := *s[idx].ProofDocument
			out[idx].ProofDocument = &p
		}
	}
	return out
}
