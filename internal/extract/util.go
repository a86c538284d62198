package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const isoDateFormat = "2006-01-02"

// parseAmount converts "85,50", "85.50", "1.200,00", "1,200.00" or "€ 12" to a decimal.
// When both separators appear the last one is the decimal separator; a lone
// separator is always decimal unless it repeats.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "EUR")
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00A0", "")
	s = strings.TrimRight(s, ".,")

	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative %s", ErrInvalidAmount, d)
	}
	return d, nil
}

// parseDayMonthYear builds a date from day, month and year strings.
// Two-digit years are taken as 20YY.
func parseDayMonthYear(day, month, year string) (time.Time, error) {
	if len(year) == 2 {
		year = "20" + year
	}
	d, errD := strconv.Atoi(day)
	m, errM := strconv.Atoi(month)
	if errD != nil || errM != nil || len(year) != 4 {
		return time.Time{}, fmt.Errorf("%w: %s/%s/%s", ErrInvalidDate, day, month, year)
	}

	// Zero-pad and round-trip through time.Parse to reject 31/02 and friends.
	s := fmt.Sprintf("%02d/%02d/%s", d, m, year)
	t, err := time.Parse("02/01/2006", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	return t, nil
}

// truncate returns the first n runes of s, appending "..." when s was longer.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
