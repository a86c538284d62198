package id

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the one-letter prefix that says what an ID refers to.
type Kind string

const (
	KindBill    Kind = "B"
	KindPayment Kind = "P"
)

const (
	dateFormat = "20060102"
	suffixLen  = 8
)

// Format returns an ID like "B-20250115-1f2e3d4c".
// The suffix is the first 8 hex digits of u.
func Format(kind Kind, at time.Time, u uuid.UUID) string {
	hex := strings.ReplaceAll(u.String(), "-", "")
	return fmt.Sprintf("%s-%s-%s", kind, at.UTC().Format(dateFormat), hex[:suffixLen])
}

// NewBill returns a fresh bill ID stamped with at.
func NewBill(at time.Time) string {
	return Format(KindBill, at, uuid.New())
}

// NewPayment returns a fresh payment ID stamped with at.
func NewPayment(at time.Time) string {
	return Format(KindPayment, at, uuid.New())
}

// ErrInvalid is wrapped by every error Parse returns.
var ErrInvalid = errors.New("invalid ID")

// Parse splits an ID into its kind and capture date.
func Parse(s string) (Kind, time.Time, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	kind := Kind(parts[0])
	if kind != KindBill && kind != KindPayment {
		return "", time.Time{}, fmt.Errorf("%w: unknown kind %q in %q", ErrInvalid, parts[0], s)
	}

	at, err := time.Parse(dateFormat, parts[1])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: bad date in %q", ErrInvalid, s)
	}

	if len(parts[2]) != suffixLen {
		return "", time.Time{}, fmt.Errorf("%w: bad suffix in %q", ErrInvalid, s)
	}

	return kind, at, nil
}
