package id

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func TestFormat(t *testing.T) {
	u := uuid.MustParse("1f2e3d4c-5b6a-4978-8877-665544332211")

	tests := []struct {
		kind Kind
		want string
	}{
		{KindBill, "B-20250115-1f2e3d4c"},
		{KindPayment, "P-20250115-1f2e3d4c"},
	}
	for _, tt := range tests {
		got := Format(tt.kind, testTime, u)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewBill_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		got := NewBill(testTime)
		assert.False(t, seen[got], "duplicate ID %s", got)
		seen[got] = true
	}
}

func TestParse(t *testing.T) {
	kind, at, err := Parse(NewPayment(testTime))
	require.NoError(t, err)
	assert.Equal(t, KindPayment, kind)
	assert.Equal(t, 2025, at.Year())
	assert.Equal(t, time.January, at.Month())
	assert.Equal(t, 15, at.Day())
}

func TestParse_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"not-valid",
		"X-20250115-1f2e3d4c",
		"B-2025011-1f2e3d4c",
		"B-20250115-1f2e",
	}
	for _, input := range badInputs {
		_, _, err := Parse(input)
		assert.ErrorIs(t, err, ErrInvalid, "input: %s", input)
	}
}
