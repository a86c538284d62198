package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/classify"
	"github.com/cleared-dev/billbox/internal/model"
)

const genericDescriptionLen = 50

var genericNumberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// GenericExtractor is the fallback for QR payloads in no known format.
type GenericExtractor struct {
	base
}

// NewGeneric creates the fallback extractor.
func NewGeneric(c *classify.Classifier, now Clock) *GenericExtractor {
	return &GenericExtractor{base: newBase(c, now)}
}

// Format returns the extractor name.
func (g *GenericExtractor) Format() Format { return FormatGeneric }

// Extract takes the first number in the payload as the amount and the start
// of the payload as the description.
func (g *GenericExtractor) Extract(raw string) (Candidate, error) {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return Candidate{}, newParseError(FormatGeneric, ErrNoInput, "")
	}

	amount := decimal.Zero
	parsed := false
	if m := genericNumberPattern.FindString(payload); m != "" {
		if d, err := parseAmount(m); err == nil {
			amount, parsed = d, true
		}
	}

	return Candidate{
		Amount:           amount,
		AmountParsed:     parsed,
		DueDate:          g.today(),
		DueDateDefaulted: true,
		Creditor:         UnknownCreditor,
		Description:      truncate(payload, genericDescriptionLen),
		Category:         g.classifier.Classify(payload),
		Source:           model.SourceQR,
		Format:           FormatGeneric,
		RawPayload:       raw,
	}, nil
}
