package domain

import "time"

// PaymentMethod represents how a trip is paid.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodWallet PaymentMethod = "WALLET"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodWallet:
		return true
	}
	return false
}

// TripPayment is the payment record of a completed trip.
type TripPayment struct {
	ID        string
	TripID    string
	Amount    float64
	Method    PaymentMethod
	Reference string
	IsPaid    bool
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SetPaid toggles the paid flag. PaidAt is only set the first time the payment is marked paid.
func (p *TripPayment) SetPaid(paid bool, reference string, at time.Time) {
	p.IsPaid = paid
	if reference != "" {
		p.Reference = reference
	}
	if paid && p.PaidAt == nil {
		p.PaidAt = &at
	}
	p.UpdatedAt = at
}
