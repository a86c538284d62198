package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/cleared-dev/billbox/internal/classify"
	"github.com/cleared-dev/billbox/internal/model"
)

// PagoPA payload layout:
//
//	PAGOPA|version|IUV|IBAN|creditor|creditor-address|currency|amount|due-date|description|...
//
// Only the first ten fields are read. Shorter payloads are rejected outright.
const (
	pagoPAPrefix      = "PAGOPA"
	pagoPAMinFields   = 10
	pagoPAColCreditor = 4
	pagoPAColAmount   = 7
	pagoPAColDueDate  = 8
	pagoPAColDesc     = 9
)

// PagoPAExtractor parses Italian PagoPA payment-notice QR payloads.
type PagoPAExtractor struct {
	base
}

// NewPagoPA creates a PagoPA extractor.
func NewPagoPA(c *classify.Classifier, now Clock) *PagoPAExtractor {
	return &PagoPAExtractor{base: newBase(c, now)}
}

// Format returns the extractor name.
func (p *PagoPAExtractor) Format() Format { return FormatPagoPA }

// Detect reports whether raw starts with the PAGOPA token.
func (p *PagoPAExtractor) Detect(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), pagoPAPrefix)
}

// Extract parses a PagoPA payload.
func (p *PagoPAExtractor) Extract(raw string) (Candidate, error) {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return Candidate{}, newParseError(FormatPagoPA, ErrNoInput, "")
	}

	fields := strings.Split(payload, "|")
	if len(fields) < pagoPAMinFields {
		return Candidate{}, newParseError(FormatPagoPA, ErrTooFewFields,
			fmt.Sprintf("got %d fields, need %d", len(fields), pagoPAMinFields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	amount, err := parseAmount(fields[pagoPAColAmount])
	if err != nil {
		return Candidate{}, newParseError(FormatPagoPA, err, "field 7")
	}

	due, defaulted, err := p.dueDate(fields[pagoPAColDueDate])
	if err != nil {
		return Candidate{}, newParseError(FormatPagoPA, err, "field 8")
	}

	desc := orDefault(fields[pagoPAColDesc], DefaultDescription)
	return Candidate{
		Amount:           amount,
		AmountParsed:     true,
		DueDate:          due,
		DueDateDefaulted: defaulted,
		Creditor:         orDefault(fields[pagoPAColCreditor], UnknownCreditor),
		Description:      desc,
		Category:         p.classifier.Classify(desc),
		Source:           model.SourceQR,
		Format:           FormatPagoPA,
		RawPayload:       raw,
	}, nil
}

func (p *PagoPAExtractor) dueDate(s string) (time.Time, bool, error) {
	if s == "" {
		return p.today(), true, nil
	}
	t, err := time.Parse(isoDateFormat, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, false, nil
}
