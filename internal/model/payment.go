package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodSavedCard    PaymentMethod = "saved_card"
	MethodApplePay     PaymentMethod = "apple_pay"
	MethodGooglePay    PaymentMethod = "google_pay"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodSavedCard, MethodApplePay, MethodGooglePay, MethodBankTransfer:
		return true
	}
	return false
}

// PaymentStatus is the gateway-reported state of a payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment records funds moving against a bill. Payments are never deleted.
type Payment struct {
	ID                    string
	BillID                string
	Amount                decimal.Decimal
	Method                PaymentMethod
	Status                PaymentStatus
	Timestamp             time.Time
	ExternalTransactionID string
	Cashback              decimal.Decimal // reward credited by this payment, zero unless succeeded
}

// Final reports whether the payment has left the pending state.
func (p Payment) Final() bool {
	return p.Status != PaymentPending
}
