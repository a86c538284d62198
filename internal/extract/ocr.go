package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/classify"
	"github.com/cleared-dev/billbox/internal/model"
)

// Patterns for Italian bills as read by OCR.
var (
	// € 85,50 / €1.200,00 / €12
	ocrAmountPattern = regexp.MustCompile(`€\s*(\d[\d.,]*)`)
	// Scadenza: 15/03/2025, Data scadenza 5-3-25
	ocrDueDatePattern = regexp.MustCompile(`(?i)scadenza[^\d\n]{0,20}(\d{1,2})[/-](\d{1,2})[/-](\d{4}|\d{2})\b`)
	// Fornitore: Enel Energia
	ocrCreditorPattern = regexp.MustCompile(`(?im)Fornitore\s*:[ \t]*(\S.*?)\s*$`)
	// Descrizione: Bolletta luce marzo
	ocrDescriptionPattern = regexp.MustCompile(`(?im)Descrizione\s*:[ \t]*(\S.*?)\s*$`)
)

// OCRExtractor parses free-form text read from a photographed bill.
type OCRExtractor struct {
	base
}

// NewOCR creates an OCR text extractor.
func NewOCR(c *classify.Classifier, now Clock) *OCRExtractor {
	return &OCRExtractor{base: newBase(c, now)}
}

// Format returns the extractor name.
func (o *OCRExtractor) Format() Format { return FormatOCR }

// Extract parses OCR text. Missing fields fall back to placeholders (zero
// amount, today's date); only text with no recognizable field at all fails.
func (o *OCRExtractor) Extract(raw string) (Candidate, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Candidate{}, newParseError(FormatOCR, ErrNoInput, "empty text")
	}

	amount, amountParsed := o.amount(text)

	due, dueFound := o.dueDate(text)

	creditor := firstGroup(ocrCreditorPattern, text)
	desc := firstGroup(ocrDescriptionPattern, text)

	if !amountParsed && !dueFound && creditor == "" && desc == "" {
		return Candidate{}, newParseError(FormatOCR, ErrNothingExtracted, "")
	}

	if !dueFound {
		due = o.today()
	}

	return Candidate{
		Amount:           amount,
		AmountParsed:     amountParsed,
		DueDate:          due,
		DueDateDefaulted: !dueFound,
		Creditor:         orDefault(creditor, UnknownCreditor),
		Description:      orDefault(desc, DefaultDescription),
		Category:         o.classifier.Classify(text),
		Source:           model.SourceOCR,
		Format:           FormatOCR,
		RawPayload:       raw,
	}, nil
}

// amount returns the first €-marked amount that parses.
func (o *OCRExtractor) amount(text string) (decimal.Decimal, bool) {
	for _, m := range ocrAmountPattern.FindAllStringSubmatch(text, -1) {
		d, err := parseAmount(m[1])
		if err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

// dueDate returns the labeled due date. OCR misreads that give an impossible
// date (31/02/2025) count as no date.
func (o *OCRExtractor) dueDate(text string) (time.Time, bool) {
	m := ocrDueDatePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	t, err := parseDayMonthYear(m[1], m[2], m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
