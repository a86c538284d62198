package extract

import (
	"github.com/cleared-dev/billbox/internal/classify"
)

// Registry holds extractors and dispatches payloads to them.
type Registry struct {
	extractors map[Format]Extractor
	order      []Format
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[Format]Extractor)}
}

// Register adds an extractor. Sniffers are tried in registration order.
// Panics on duplicate format.
func (r *Registry) Register(e Extractor) {
	f := e.Format()
	if _, ok := r.extractors[f]; ok {
		panic("duplicate extractor format: " + string(f))
	}
	r.extractors[f] = e
	r.order = append(r.order, f)
}

// Get returns the extractor for format, or nil.
func (r *Registry) Get(f Format) Extractor {
	return r.extractors[f]
}

// DefaultRegistry returns a registry with the PagoPA, SEPA, generic and OCR extractors.
func DefaultRegistry(c *classify.Classifier, now Clock) *Registry {
	if c == nil {
		c = classify.Default()
	}
	r := NewRegistry()
	r.Register(NewPagoPA(c, now))
	r.Register(NewSEPA(c, now))
	r.Register(NewGeneric(c, now))
	r.Register(NewOCR(c, now))
	return r
}

// Detect returns the format a QR payload will be parsed as. Payloads no
// sniffer claims are generic.
func (r *Registry) Detect(payload string) Format {
	for _, f := range r.order {
		if s, ok := r.extractors[f].(Sniffer); ok && s.Detect(payload) {
			return f
		}
	}
	return FormatGeneric
}

// DecodeQR parses a QR payload with the extractor its prefix selects.
// A payload that claims a format but is malformed fails; it is never
// re-parsed as generic.
func (r *Registry) DecodeQR(payload string) (Candidate, error) {
	return r.extract(r.Detect(payload), payload)
}

// ParseText parses OCR text.
func (r *Registry) ParseText(text string) (Candidate, error) {
	return r.extract(FormatOCR, text)
}

func (r *Registry) extract(f Format, raw string) (Candidate, error) {
	e := r.Get(f)
	if e == nil {
		return Candidate{}, newParseError(f, ErrUnknownFormat, "no extractor registered")
	}
	return e.Extract(raw)
}
