package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/app"
	"github.com/cleared-dev/billbox/internal/capture"
	"github.com/cleared-dev/billbox/internal/extract"
	"github.com/cleared-dev/billbox/internal/model"
)

const dateLayout = "2006-01-02"

// OverridesRequest carries the user's corrections to a scanned candidate.
type OverridesRequest struct {
	Amount      string `json:"amount"`
	DueDate     string `json:"due_date"`
	Creditor    string `json:"creditor" binding:"max=200"`
	Description string `json:"description" binding:"max=500"`
	Category    string `json:"category"`
	Note        string `json:"note"`
}

// ScanQRRequest decodes a QR payload. With Confirm set the candidate is added
// to the ledger straight away.
type ScanQRRequest struct {
	Payload string `json:"payload" binding:"required"`
	Confirm bool   `json:"confirm"`
	OverridesRequest
}

// ScanTextRequest parses OCR text.
type ScanTextRequest struct {
	Text    string `json:"text" binding:"required"`
	Confirm bool   `json:"confirm"`
	OverridesRequest
}

// CreateBillRequest adds a bill typed in by hand.
type CreateBillRequest struct {
	Amount      string `json:"amount" binding:"required"`
	DueDate     string `json:"due_date" binding:"required"`
	Creditor    string `json:"creditor" binding:"max=200"`
	Description string `json:"description" binding:"max=500"`
	Category    string `json:"category"`
	Note        string `json:"note"`
}

// PaymentRequest pays a bill. With Charge set the full amount goes through the
// payment gateway; otherwise Amount records a payment made elsewhere.
type PaymentRequest struct {
	Method string `json:"method" binding:"required"`
	Amount string `json:"amount"`
	Charge bool   `json:"charge"`
}

// CandidateResponse is a parsed capture awaiting confirmation.
type CandidateResponse struct {
	Format            string `json:"format"`
	Category          string `json:"category"`
	Amount            string `json:"amount"`
	DueDate           string `json:"due_date"`
	Creditor          string `json:"creditor"`
	Description       string `json:"description"`
	Source            string `json:"source"`
	NeedsConfirmation bool   `json:"needs_confirmation"`
}

// ScanResponse is returned by the scan endpoints.
type ScanResponse struct {
	Candidate CandidateResponse `json:"candidate"`
	Bill      *BillResponse     `json:"bill,omitempty"`
}

// BillResponse is a bill as served by the API.
type BillResponse struct {
	ID              string    `json:"id"`
	Category        string    `json:"category"`
	Amount          string    `json:"amount"`
	DueDate         string    `json:"due_date"`
	Status          string    `json:"status"`
	EffectiveStatus string    `json:"effective_status"`
	Creditor        string    `json:"creditor"`
	Description     string    `json:"description"`
	Note            string    `json:"note,omitempty"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
}

// PaymentResponse is a payment log entry.
type PaymentResponse struct {
	ID                    string    `json:"id"`
	BillID                string    `json:"bill_id"`
	Amount                string    `json:"amount"`
	Method                string    `json:"method"`
	Status                string    `json:"status"`
	Timestamp             time.Time `json:"timestamp"`
	ExternalTransactionID string    `json:"external_transaction_id,omitempty"`
	Cashback              string    `json:"cashback"`
}

// CashbackResponse reports the accrued balance.
type CashbackResponse struct {
	Balance  string            `json:"balance"`
	Rounded  string            `json:"rounded"`
	Payments []PaymentResponse `json:"payments"`
}

func (o OverridesRequest) toOverrides() (capture.Overrides, error) {
	out := capture.Overrides{
		Creditor:    o.Creditor,
		Description: o.Description,
		Note:        o.Note,
	}
	if o.Amount != "" {
		amount, err := parseAmount(o.Amount)
		if err != nil {
			return out, err
		}
		out.Amount = &amount
	}
	if o.DueDate != "" {
		due, err := time.Parse(dateLayout, o.DueDate)
		if err != nil {
			return out, fmt.Errorf("invalid due_date %q: want YYYY-MM-DD", o.DueDate)
		}
		out.DueDate = &due
	}
	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return out, err
		}
		out.Category = c
	}
	return out, nil
}

func (r CreateBillRequest) toParams() (capture.ManualParams, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return capture.ManualParams{}, err
	}
	due, err := time.Parse(dateLayout, r.DueDate)
	if err != nil {
		return capture.ManualParams{}, fmt.Errorf("invalid due_date %q: want YYYY-MM-DD", r.DueDate)
	}
	p := capture.ManualParams{
		Amount:      amount,
		DueDate:     due,
		Creditor:    r.Creditor,
		Description: r.Description,
		Note:        r.Note,
	}
	if r.Category != "" {
		if p.Category, err = parseCategory(r.Category); err != nil {
			return capture.ManualParams{}, err
		}
	}
	return p, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

func parseCategory(s string) (model.Category, error) {
	c, ok := model.ParseCategory(s)
	if !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

func newCandidateResponse(c extract.Candidate) CandidateResponse {
	return CandidateResponse{
		Format:            string(c.Format),
		Category:          string(c.Category),
		Amount:            c.Amount.StringFixed(2),
		DueDate:           c.DueDate.Format(dateLayout),
		Creditor:          c.Creditor,
		Description:       c.Description,
		Source:            string(c.Source),
		NeedsConfirmation: c.NeedsConfirmation(),
	}
}

func newBillResponse(v app.BillView) BillResponse {
	return BillResponse{
		ID:              v.ID,
		Category:        string(v.Category),
		Amount:          v.Amount.StringFixed(2),
		DueDate:         v.DueDate.Format(dateLayout),
		Status:          string(v.Status),
		EffectiveStatus: string(v.Effective),
		Creditor:        v.Creditor,
		Description:     v.Description,
		Note:            v.Note,
		Source:          string(v.Source),
		CreatedAt:       v.CreatedAt,
	}
}

func newBillResponses(views []app.BillView) []BillResponse {
	out := make([]BillResponse, len(views))
	for i, v := range views {
		out[i] = newBillResponse(v)
	}
	return out
}

func newPaymentResponse(p model.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                    p.ID,
		BillID:                p.BillID,
		Amount:                p.Amount.StringFixed(2),
		Method:                string(p.Method),
		Status:                string(p.Status),
		Timestamp:             p.Timestamp,
		ExternalTransactionID: p.ExternalTransactionID,
		Cashback:              p.Cashback.String(),
	}
}
