// Package extract turns raw capture payloads (QR strings, OCR text) into
// candidate bills.
//
// Every format implements Extractor. A Registry picks the extractor for a QR
// payload by its prefix (PAGOPA, BCD) and falls back to the generic extractor;
// OCR text always goes to the OCR extractor.
package extract

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/classify"
	"github.com/cleared-dev/billbox/internal/model"
)

// Format names a payload format.
type Format string

const (
	FormatPagoPA  Format = "pagopa"
	FormatSEPA    Format = "sepa"
	FormatOCR     Format = "ocr"
	FormatGeneric Format = "generic"
)

// Placeholders used when a field is missing.
const (
	UnknownCreditor    = "Unknown Creditor"
	DefaultDescription = "Bill Payment"
)

// Candidate is a best-effort bill parsed from a capture, not yet in the ledger.
type Candidate struct {
	Amount           decimal.Decimal
	AmountParsed     bool // false when no amount was found and Amount is zero
	DueDate          time.Time
	DueDateDefaulted bool // true when no due date was found and DueDate is today
	Creditor         string
	Description      string
	Category         model.Category
	Source           model.Source
	Format           Format
	RawPayload       string
}

// NeedsConfirmation reports whether the user must confirm the candidate before
// it is inserted: a zero amount is never trusted, nor is a guessed due date.
func (c Candidate) NeedsConfirmation() bool {
	return !c.AmountParsed || c.Amount.IsZero() || c.DueDateDefaulted
}

// Extractor parses one payload format.
type Extractor interface {
	Extract(raw string) (Candidate, error)
	Format() Format
}

// Sniffer is implemented by extractors that can recognize their own payloads.
type Sniffer interface {
	Detect(raw string) bool
}

// Clock returns the current time. Extractors use it for default due dates.
type Clock func() time.Time

type base struct {
	classifier *classify.Classifier
	now        Clock
}

func newBase(c *classify.Classifier, now Clock) base {
	if c == nil {
		c = classify.Default()
	}
	if now == nil {
		now = time.Now
	}
	return base{classifier: c, now: now}
}

func (b base) today() time.Time {
	return model.DateOf(b.now())
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
