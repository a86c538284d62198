package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/model"
)

// ErrDeclined is returned when the gateway answers but refuses the charge.
var ErrDeclined = errors.New("payment declined")

// ChargeRequest is what the core hands to a payment gateway.
type ChargeRequest struct {
	PaymentID   string
	BillID      string
	Amount      decimal.Decimal
	Method      model.PaymentMethod
	Creditor    string
	Description string
}

// ChargeResult is the gateway's answer. Reason explains a refusal.
type ChargeResult struct {
	TransactionID string
	Approved      bool
	Reason        string
}

// Gateway charges a payment method. Implementations own retries, timeouts
// and provider details; the core never retries a failed charge.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req ChargeRequest) (ChargeResult, error)

// Charge calls f.
func (f GatewayFunc) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	return f(ctx, req)
}

// OfflineGateway approves every charge without contacting a provider. It is
// used for payments made outside the app (bank transfer, cash) that the user
// records by hand.
type OfflineGateway struct{}

// Charge approves req with a locally generated transaction ID.
func (OfflineGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}
	return ChargeResult{TransactionID: "offline-" + uuid.NewString(), Approved: true}, nil
}
