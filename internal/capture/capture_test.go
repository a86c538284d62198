package capture

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/billbox/internal/extract"
	"github.com/cleared-dev/billbox/internal/id"
	"github.com/cleared-dev/billbox/internal/model"
	"github.com/cleared-dev/billbox/internal/ocr"
)

var testNow = time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

const pagoPA = "PAGOPA|002|301000000012345678|IT60X0542811101000000123456|Comune di Milano|Piazza della Scala 2|EUR|150.75|2025-04-30|Tassa rifiuti 2025|01199250158"

type fakeText struct {
	text string
	err  error
}

func (f fakeText) ImageText(_ context.Context, r io.Reader) (*ocr.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.Result{Text: f.text}, nil
}

func newService(text ocr.TextSource) *Service {
	return NewService(nil, text, clock, zerolog.Nop())
}

func TestScanQR(t *testing.T) {
	c, err := newService(nil).ScanQR("  " + pagoPA + "\n")
	require.NoError(t, err)
	assert.Equal(t, extract.FormatPagoPA, c.Format)
	assert.Equal(t, model.CategoryTax, c.Category)
	assert.True(t, c.Amount.Equal(dec("150.75")))
}

func TestScanQR_Malformed(t *testing.T) {
	_, err := newService(nil).ScanQR("PAGOPA|002|short")
	assert.ErrorIs(t, err, extract.ErrTooFewFields)
}

func TestScanText(t *testing.T) {
	c, err := newService(nil).ScanText("Fornitore: Acquedotto Pugliese\nTotale € 42,10\nscadenza 15/04/2025")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryWater, c.Category)
	assert.Equal(t, "Acquedotto Pugliese", c.Creditor)
	assert.False(t, c.NeedsConfirmation())
}

func TestScanImage(t *testing.T) {
	svc := newService(fakeText{text: "Fornitore: Enel Energia\nImporto € 85,50\nData scadenza: 05/04/2025"})
	c, err := svc.ScanImage(context.Background(), strings.NewReader("img"))
	require.NoError(t, err)
	assert.Equal(t, model.SourceOCR, c.Source)
	assert.Equal(t, model.CategoryElectricity, c.Category)
	assert.True(t, c.Amount.Equal(dec("85.50")))
}

func TestScanImage_Errors(t *testing.T) {
	_, err := newService(nil).ScanImage(context.Background(), strings.NewReader("img"))
	assert.ErrorIs(t, err, ErrNoOCR)

	_, err = newService(fakeText{err: ocr.ErrNoImage}).ScanImage(context.Background(), nil)
	assert.ErrorIs(t, err, ocr.ErrNoImage)
}

func TestConfirm(t *testing.T) {
	svc := newService(nil)
	c, err := svc.ScanQR(pagoPA)
	require.NoError(t, err)

	b, err := svc.Confirm(c, Overrides{Note: "TARI"})
	require.NoError(t, err)

	kind, at, err := id.Parse(b.ID)
	require.NoError(t, err)
	assert.Equal(t, id.KindBill, kind)
	assert.Equal(t, 2025, at.Year())
	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, model.SourceQR, b.Source)
	assert.Equal(t, "Comune di Milano", b.Creditor)
	assert.Equal(t, "TARI", b.Note)
	assert.Equal(t, pagoPA, b.RawPayload)
	assert.Equal(t, testNow, b.CreatedAt)
}

func TestConfirm_ZeroAmountNeedsOverride(t *testing.T) {
	svc := newService(nil)
	c, err := svc.ScanText("Fornitore: Condominio Via Roma\nscadenza 30/04/2025")
	require.NoError(t, err)
	require.True(t, c.NeedsConfirmation())

	_, err = svc.Confirm(c, Overrides{})
	assert.ErrorIs(t, err, ErrNeedsConfirmation)

	amount := dec("310.00")
	due := time.Date(2025, 5, 2, 15, 0, 0, 0, time.UTC)
	b, err := svc.Confirm(c, Overrides{Amount: &amount, DueDate: &due, Category: model.CategoryCondominium, Description: "Rata condominio"})
	require.NoError(t, err)
	assert.True(t, b.Amount.Equal(amount))
	assert.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), b.DueDate)
	assert.Equal(t, model.CategoryCondominium, b.Category)
	assert.Equal(t, "Rata condominio", b.Description)
}

func TestConfirm_DefaultedDueDateAccepted(t *testing.T) {
	svc := newService(nil)
	c, err := svc.ScanText("Totale € 19,99")
	require.NoError(t, err)
	require.True(t, c.DueDateDefaulted)

	b, err := svc.Confirm(c, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, model.DateOf(testNow), b.DueDate)
}

func TestOverrides_Apply(t *testing.T) {
	b := model.Bill{
		ID:          "B-20250310-00000001",
		Category:    model.CategoryGas,
		Amount:      dec("60"),
		DueDate:     time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Creditor:    "Hera",
		Description: "Gas marzo",
		Note:        "old",
	}

	assert.Equal(t, b, Overrides{}.Apply(b), "empty overrides keep every field")

	amount := dec("64.20")
	due := time.Date(2025, 4, 12, 18, 30, 0, 0, time.UTC)
	got := Overrides{Amount: &amount, DueDate: &due, Note: "conguaglio"}.Apply(b)
	assert.True(t, got.Amount.Equal(amount))
	assert.Equal(t, time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC), got.DueDate)
	assert.Equal(t, "conguaglio", got.Note)
	assert.Equal(t, "Hera", got.Creditor)
	assert.Equal(t, model.CategoryGas, got.Category)
	assert.Equal(t, b.ID, got.ID)
}

func TestManual(t *testing.T) {
	svc := newService(nil)

	b, err := svc.Manual(ManualParams{
		Amount:      dec("1200"),
		DueDate:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Creditor:    "Mario Rossi",
		Description: "Affitto aprile",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryRent, b.Category)
	assert.Equal(t, model.SourceManual, b.Source)

	b, err = svc.Manual(ManualParams{
		Amount:      dec("50"),
		DueDate:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Description: "Affitto box",
		Category:    model.CategoryMaintenance,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryMaintenance, b.Category)

	_, err = svc.Manual(ManualParams{Amount: dec("1")})
	assert.Error(t, err)
}
