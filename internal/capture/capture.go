// Package capture takes a raw capture (QR payload, OCR text or a photo),
// produces a candidate bill and, once the user has confirmed it, the bill
// that goes into the ledger.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/classify"
	"github.com/cleared-dev/billbox/internal/extract"
	"github.com/cleared-dev/billbox/internal/id"
	"github.com/cleared-dev/billbox/internal/model"
	"github.com/cleared-dev/billbox/internal/ocr"
)

var (
	// ErrNoOCR is returned by ScanImage when no text source is configured.
	ErrNoOCR = errors.New("image capture needs OCR credentials")

	// ErrNeedsConfirmation is returned when a candidate without a trusted
	// amount is confirmed without one.
	ErrNeedsConfirmation = errors.New("amount needs confirmation")
)

// Service turns captures into bills.
type Service struct {
	classifier *classify.Classifier
	registry   *extract.Registry
	text       ocr.TextSource
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates a capture Service using the default extractors. text
// may be nil, in which case image captures fail with ErrNoOCR.
func NewService(c *classify.Classifier, text ocr.TextSource, now func() time.Time, log zerolog.Logger) *Service {
	if c == nil {
		c = classify.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		classifier: c,
		registry:   extract.DefaultRegistry(c, extract.Clock(now)),
		text:       text,
		now:        now,
		log:        log,
	}
}

// ScanQR decodes a QR payload.
func (s *Service) ScanQR(payload string) (extract.Candidate, error) {
	payload = strings.TrimSpace(payload)
	c, err := s.registry.DecodeQR(payload)
	if err != nil {
		s.log.Debug().Err(err).Msg("QR decode failed")
		return extract.Candidate{}, err
	}
	s.logCandidate(c)
	return c, nil
}

// ScanText parses OCR text.
func (s *Service) ScanText(text string) (extract.Candidate, error) {
	c, err := s.registry.ParseText(text)
	if err != nil {
		s.log.Debug().Err(err).Msg("text parse failed")
		return extract.Candidate{}, err
	}
	s.logCandidate(c)
	return c, nil
}

// ScanImage reads the text of a bill photo and parses it.
func (s *Service) ScanImage(ctx context.Context, image io.Reader) (extract.Candidate, error) {
	if s.text == nil {
		return extract.Candidate{}, ErrNoOCR
	}
	res, err := s.text.ImageText(ctx, image)
	if err != nil {
		s.log.Error().Err(err).Msg("OCR failed")
		return extract.Candidate{}, err
	}
	s.log.Debug().
		Int("chars", len(res.Text)).
		Float32("confidence", res.Confidence).
		Dur("duration", res.Duration).
		Msg("OCR completed")
	return s.ScanText(res.Text)
}

func (s *Service) logCandidate(c extract.Candidate) {
	s.log.Info().
		Str("format", string(c.Format)).
		Str("category", string(c.Category)).
		Str("amount", c.Amount.StringFixed(2)).
		Bool("needs_confirmation", c.NeedsConfirmation()).
		Msg("capture parsed")
}

// Overrides are the user's corrections to a candidate. Zero values keep the
// candidate's field.
type Overrides struct {
	Amount      *decimal.Decimal
	DueDate     *time.Time
	Creditor    string
	Description string
	Category    model.Category
	Note        string
}

// Confirm builds the bill for a candidate. A candidate whose amount was not
// read, or read as zero, needs an Amount override; a defaulted due date is
// accepted as today.
func (s *Service) Confirm(c extract.Candidate, o Overrides) (model.Bill, error) {
	if o.Amount == nil && (!c.AmountParsed || c.Amount.IsZero()) {
		return model.Bill{}, ErrNeedsConfirmation
	}

	now := s.now()
	b := model.Bill{
		ID:          id.NewBill(now),
		Category:    c.Category,
		Amount:      c.Amount,
		DueDate:     model.DateOf(c.DueDate),
		Status:      model.StatusPending,
		Creditor:    c.Creditor,
		Description: c.Description,
		Source:      c.Source,
		RawPayload:  c.RawPayload,
		CreatedAt:   now.UTC(),
	}
	return o.Apply(b), nil
}

// Apply returns b with every field set in o replaced.
func (o Overrides) Apply(b model.Bill) model.Bill {
	if o.Amount != nil {
		b.Amount = *o.Amount
	}
	if o.DueDate != nil {
		b.DueDate = model.DateOf(*o.DueDate)
	}
	if o.Creditor != "" {
		b.Creditor = o.Creditor
	}
	if o.Description != "" {
		b.Description = o.Description
	}
	if o.Category != "" {
		b.Category = o.Category
	}
	if o.Note != "" {
		b.Note = o.Note
	}
	return b
}

// ManualParams holds a bill typed in by hand.
type ManualParams struct {
	Amount      decimal.Decimal
	DueDate     time.Time
	Creditor    string
	Description string
	Category    model.Category // empty means classify Description
	Note        string
}

// Manual builds a bill entered by hand. Without an explicit category the
// description and creditor are classified.
func (s *Service) Manual(p ManualParams) (model.Bill, error) {
	if p.DueDate.IsZero() {
		return model.Bill{}, fmt.Errorf("due date is required")
	}
	category := p.Category
	if category == "" {
		category = s.classifier.Classify(p.Description + " " + p.Creditor)
	}
	now := s.now()
	return model.Bill{
		ID:          id.NewBill(now),
		Category:    category,
		Amount:      p.Amount,
		DueDate:     model.DateOf(p.DueDate),
		Status:      model.StatusPending,
		Creditor:    p.Creditor,
		Description: p.Description,
		Note:        p.Note,
		Source:      model.SourceManual,
		CreatedAt:   now.UTC(),
	}, nil
}
