package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/classify"
	"github.com/cleared-dev/billbox/internal/model"
)

// SEPA EPC ("BCD") payloads are newline-delimited. The amount sits on the
// line starting with EUR (usually line 6), the creditor on line 5 and the
// remittance text on line 7. No due date is encoded.
const (
	sepaPrefix       = "BCD"
	sepaMinLines     = 8
	sepaLineCreditor = 5
	sepaLineAmount   = 6
	sepaLineDesc     = 7
)

// SEPAExtractor parses SEPA EPC/BCD bank-transfer QR payloads.
type SEPAExtractor struct {
	base
}

// NewSEPA creates a SEPA extractor.
func NewSEPA(c *classify.Classifier, now Clock) *SEPAExtractor {
	return &SEPAExtractor{base: newBase(c, now)}
}

// Format returns the extractor name.
func (s *SEPAExtractor) Format() Format { return FormatSEPA }

// Detect reports whether raw starts with the BCD service tag.
func (s *SEPAExtractor) Detect(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), sepaPrefix)
}

// Extract parses a SEPA EPC payload.
func (s *SEPAExtractor) Extract(raw string) (Candidate, error) {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return Candidate{}, newParseError(FormatSEPA, ErrNoInput, "")
	}

	lines := strings.Split(strings.ReplaceAll(payload, "\r\n", "\n"), "\n")
	if len(lines) < sepaMinLines {
		return Candidate{}, newParseError(FormatSEPA, ErrTooFewFields,
			fmt.Sprintf("got %d lines, need %d", len(lines), sepaMinLines))
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	amount, parsed, err := sepaAmount(lines)
	if err != nil {
		return Candidate{}, newParseError(FormatSEPA, err, "amount line")
	}

	desc := orDefault(lines[sepaLineDesc], DefaultDescription)
	return Candidate{
		Amount:           amount,
		AmountParsed:     parsed,
		DueDate:          s.today(),
		DueDateDefaulted: true,
		Creditor:         orDefault(lines[sepaLineCreditor], UnknownCreditor),
		Description:      desc,
		Category:         s.classifier.Classify(desc),
		Source:           model.SourceQR,
		Format:           FormatSEPA,
		RawPayload:       raw,
	}, nil
}

// sepaAmountLine matches "EUR12.50", "EUR 12,50" and a bare "EUR".
var sepaAmountLine = regexp.MustCompile(`^EUR\s*([0-9][0-9.,]*)?$`)

// sepaAmount reads the first EUR amount line, falling back to a bare number
// on the amount line. A bare "EUR" means the payer chooses the amount.
func sepaAmount(lines []string) (decimal.Decimal, bool, error) {
	for _, line := range lines {
		m := sepaAmountLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if m[1] == "" {
			return decimal.Zero, false, nil
		}
		amount, err := parseAmount(m[1])
		if err != nil {
			return decimal.Zero, false, err
		}
		return amount, true, nil
	}

	amount, err := parseAmount(lines[sepaLineAmount])
	if err != nil {
		return decimal.Zero, false, nil
	}
	return amount, true, nil
}
