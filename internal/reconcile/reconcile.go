// Package reconcile records payments against bills and accrues cashback.
//
// Every operation validates all of its inputs before touching the session,
// so a failed call leaves the ledger, the payment log and the cashback
// balance exactly as they were.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/id"
	"github.com/cleared-dev/billbox/internal/model"
	"github.com/cleared-dev/billbox/internal/session"
)

var (
	ErrBillNotFound  = errors.New("bill not found")
	ErrAlreadyPaid   = errors.New("bill already paid")
	ErrInvalidAmount = errors.New("payment amount must be positive")
	ErrUnknownMethod = errors.New("unknown payment method")
	ErrNoGateway     = errors.New("no payment gateway configured")
)

// Rates are the cashback fractions credited per payment.
type Rates struct {
	Rent  decimal.Decimal `yaml:"rent"`
	Other decimal.Decimal `yaml:"other"`
}

// DefaultRates credits 2% on rent and 1% on everything else.
func DefaultRates() Rates {
	return Rates{
		Rent:  decimal.RequireFromString("0.02"),
		Other: decimal.RequireFromString("0.01"),
	}
}

// For returns the rate applied to a bill category.
func (r Rates) For(c model.Category) decimal.Decimal {
	if c == model.CategoryRent {
		return r.Rent
	}
	return r.Other
}

// Cashback returns the unrounded reward for paying amount on a bill of category c.
func (r Rates) Cashback(c model.Category, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(r.For(c))
}

// Result is the outcome of a reconciled payment.
type Result struct {
	Payment model.Payment
	Bill    model.Bill
}

// Service reconciles payments for a session.
type Service struct {
	rates   Rates
	gateway Gateway
	now     func() time.Time
	log     zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithRates overrides the cashback rates.
func WithRates(r Rates) Option { return func(s *Service) { s.rates = r } }

// WithGateway sets the gateway used by Pay.
func WithGateway(g Gateway) Option { return func(s *Service) { s.gateway = g } }

// WithClock sets the clock used for payment timestamps and IDs.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// NewService creates a reconcile Service with default rates and no gateway.
func NewService(opts ...Option) *Service {
	s := &Service{rates: DefaultRates(), now: time.Now, log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Rates returns the configured cashback rates.
func (s *Service) Rates() Rates {
	return s.rates
}

// RecordPayment records a payment the gateway has already confirmed: it
// appends a succeeded payment, marks the bill paid and credits cashback.
func (s *Service) RecordPayment(sess *session.Session, billID string, amount decimal.Decimal, method model.PaymentMethod) (Result, error) {
	bill, err := s.checkPayable(sess, billID, method)
	if err != nil {
		return Result{}, err
	}
	if !amount.IsPositive() {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	now := s.now()
	p := model.Payment{
		ID:        id.NewPayment(now),
		BillID:    bill.ID,
		Amount:    amount,
		Method:    method,
		Status:    model.PaymentSucceeded,
		Timestamp: now,
		Cashback:  s.rates.Cashback(bill.Category, amount),
	}
	return s.settle(sess, p, false)
}

// Pay charges the bill's full amount through the gateway. A pending payment
// is logged first, then resolved once: on success the bill is marked paid
// and cashback credited; on failure only the payment records the outcome.
// The returned error is non-nil when the charge did not succeed.
func (s *Service) Pay(ctx context.Context, sess *session.Session, billID string, method model.PaymentMethod) (Result, error) {
	if s.gateway == nil {
		return Result{}, ErrNoGateway
	}
	bill, err := s.checkPayable(sess, billID, method)
	if err != nil {
		return Result{}, err
	}
	if !bill.Amount.IsPositive() {
		return Result{}, fmt.Errorf("%w: bill %s has amount %s", ErrInvalidAmount, bill.ID, bill.Amount)
	}

	now := s.now()
	p := model.Payment{
		ID:        id.NewPayment(now),
		BillID:    bill.ID,
		Amount:    bill.Amount,
		Method:    method,
		Status:    model.PaymentPending,
		Timestamp: now,
	}
	sess.AppendPayment(p)

	charge, chargeErr := s.gateway.Charge(ctx, ChargeRequest{
		PaymentID:   p.ID,
		BillID:      bill.ID,
		Amount:      bill.Amount,
		Method:      method,
		Creditor:    bill.Creditor,
		Description: bill.Description,
	})
	p.ExternalTransactionID = charge.TransactionID
	if chargeErr != nil || !charge.Approved {
		p.Status = model.PaymentFailed
		if err := sess.ResolvePayment(p); err != nil {
			return Result{}, err
		}
		if chargeErr == nil {
			chargeErr = fmt.Errorf("%w: %s", ErrDeclined, charge.Reason)
		}
		s.log.Warn().Err(chargeErr).Str("bill_id", bill.ID).Str("payment_id", p.ID).Msg("payment failed")
		return Result{Payment: p, Bill: bill}, fmt.Errorf("charging bill %s: %w", bill.ID, chargeErr)
	}

	p.Status = model.PaymentSucceeded
	p.Cashback = s.rates.Cashback(bill.Category, bill.Amount)
	return s.settle(sess, p, true)
}

func (s *Service) checkPayable(sess *session.Session, billID string, method model.PaymentMethod) (model.Bill, error) {
	bill, ok := sess.Ledger.Get(billID)
	if !ok {
		return model.Bill{}, fmt.Errorf("%w: %s", ErrBillNotFound, billID)
	}
	if bill.IsPaid() {
		return model.Bill{}, fmt.Errorf("%w: %s", ErrAlreadyPaid, billID)
	}
	if !method.Valid() {
		return model.Bill{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	return bill, nil
}

// settle marks the bill paid and logs (or resolves) the succeeded payment.
// The bill was checked to exist by the caller, so MarkPaid cannot fail here
// unless the session was mutated in between.
func (s *Service) settle(sess *session.Session, p model.Payment, pending bool) (Result, error) {
	bill, err := sess.Ledger.MarkPaid(p.BillID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrBillNotFound, p.BillID)
	}
	if pending {
		if err := sess.ResolvePayment(p); err != nil {
			return Result{}, err
		}
	} else {
		sess.AppendPayment(p)
	}

	s.log.Info().
		Str("bill_id", bill.ID).
		Str("payment_id", p.ID).
		Str("amount", p.Amount.StringFixed(2)).
		Str("cashback", p.Cashback.String()).
		Str("method", string(p.Method)).
		Msg("payment recorded")
	return Result{Payment: p, Bill: bill}, nil
}
