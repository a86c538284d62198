package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cleared-dev/billbox/internal/model"
)

// ErrValidation is wrapped by every error returned for a bill that fails validation.
var ErrValidation = errors.New("validation failed")

// ValidationError describes a single problem with a bill.
type ValidationError struct {
	BillID      string
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.BillID, e.Field, e.Description)
}

var structValidator = validator.New()

// ValidateBill checks a bill before it enters the ledger: required fields,
// lengths, a non-negative amount and known enum values.
func ValidateBill(b model.Bill) []ValidationError {
	var errs []ValidationError

	if err := structValidator.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, ValidationError{
					BillID:      b.ID,
					Field:       fe.Field(),
					Description: describeTag(fe),
				})
			}
		} else {
			errs = append(errs, ValidationError{BillID: b.ID, Field: "bill", Description: err.Error()})
		}
	}

	if b.Amount.IsNegative() {
		errs = append(errs, ValidationError{
			BillID:      b.ID,
			Field:       "Amount",
			Description: fmt.Sprintf("amount %s is negative", b.Amount),
		})
	}
	if b.Category != "" && !b.Category.Valid() {
		errs = append(errs, ValidationError{
			BillID:      b.ID,
			Field:       "Category",
			Description: fmt.Sprintf("unknown category %q", b.Category),
		})
	}
	if b.Status != "" && !b.Status.Valid() {
		errs = append(errs, ValidationError{
			BillID:      b.ID,
			Field:       "Status",
			Description: fmt.Sprintf("unknown status %q", b.Status),
		})
	}
	if b.Source != "" && !b.Source.Valid() {
		errs = append(errs, ValidationError{
			BillID:      b.ID,
			Field:       "Source",
			Description: fmt.Sprintf("unknown source %q", b.Source),
		})
	}

	return errs
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("longer than %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// joinErrors folds validation errors into one error wrapping ErrValidation.
func joinErrors(verrs []ValidationError) error {
	msgs := make([]string, len(verrs))
	for i, ve := range verrs {
		msgs[i] = ve.Error()
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}
