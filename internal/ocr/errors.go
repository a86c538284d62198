package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrNoImage is returned when a capture carries no image bytes.
	ErrNoImage = errors.New("no image selected")

	// ErrImageTooLarge is returned for images over MaxImageBytes.
	ErrImageTooLarge = errors.New("image exceeds the maximum size (20MB)")

	// ErrUnsupportedImage is returned when the bytes are not a known image format.
	ErrUnsupportedImage = errors.New("unsupported image format")

	// ErrOCRFailed is returned when the Vision API call fails.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when no Google Cloud credentials can be found.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")

	// ErrEmptyDocument is returned when the image contains no readable text.
	ErrEmptyDocument = errors.New("image contains no readable text")
)

// OCRError wraps errors with the operation that failed.
type OCRError struct {
	Op      string
	Err     error
	Details string
}

func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

func (e *OCRError) Unwrap() error {
	return e.Err
}

func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps err as an OCRError unless it already is one.
func wrapError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}
	return &OCRError{Op: op, Err: err, Details: details}
}
