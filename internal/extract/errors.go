package extract

import (
	"errors"
	"fmt"
)

// Parse failures. Callers recover from all of them by asking the user to retry
// or to switch capture method.
var (
	// ErrNoInput is returned when there is nothing to parse: no image selected,
	// no QR scanned, empty text.
	ErrNoInput = errors.New("no input to parse")

	// ErrNothingExtracted is returned when parsing ran but found no usable field.
	ErrNothingExtracted = errors.New("no bill fields found")

	// ErrTooFewFields is returned when a recognized format has fewer fields than it requires.
	ErrTooFewFields = errors.New("too few fields")

	// ErrInvalidAmount is returned when an amount field is present but not a non-negative number.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDate is returned when a date field is present but not a calendar date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrUnknownFormat is returned when no extractor is registered for a format.
	ErrUnknownFormat = errors.New("unknown format")
)

// ParseError wraps a parse failure with the format that produced it.
type ParseError struct {
	// Format is the extractor that failed.
	Format Format

	// Err is the underlying sentinel error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("extract: %s: %s: %v", e.Format, e.Details, e.Err)
	}
	return fmt.Sprintf("extract: %s: %v", e.Format, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is reports whether the underlying error matches target.
func (e *ParseError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newParseError(format Format, err error, details string) *ParseError {
	return &ParseError{Format: format, Err: err, Details: details}
}
