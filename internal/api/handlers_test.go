package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/billbox/internal/app"
	"github.com/cleared-dev/billbox/internal/config"
	"github.com/cleared-dev/billbox/internal/ocr"
	"github.com/cleared-dev/billbox/internal/reconcile"
)

const pagoPA = "PAGOPA|002|301000000012345678|IT60X0542811101000000123456|Comune di Milano|Piazza della Scala 2|EUR|150.75|2025-04-30|Tassa rifiuti 2025|01199250158"

func clock() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }

type fakeText struct{ text string }

func (f fakeText) ImageText(_ context.Context, r io.Reader) (*ocr.Result, error) {
	data, _ := io.ReadAll(r)
	if len(data) == 0 {
		return nil, ocr.ErrNoImage
	}
	return &ocr.Result{Text: f.text}, nil
}

func setupRouter(t *testing.T, opts ...app.Option) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	opts = append([]app.Option{app.WithClock(clock)}, opts...)
	a, err := app.Open(config.Default("alice"), t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return NewRouter(a, zerolog.Nop())
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, user string) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewBuffer(data)
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createRent(t *testing.T, router *gin.Engine, user string) BillResponse {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/bills", CreateBillRequest{
		Amount:      "1200.00",
		DueDate:     "2025-04-01",
		Creditor:    "Mario Rossi",
		Description: "Affitto aprile",
	}, user)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[BillResponse](t, w)
}

func TestHealth(t *testing.T) {
	router := setupRouter(t)
	w := doJSON(t, router, "GET", "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestScanQR(t *testing.T) {
	router := setupRouter(t)

	t.Run("Preview", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/bills/scan/qr", ScanQRRequest{Payload: pagoPA}, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[ScanResponse](t, w)
		assert.Equal(t, "pagopa", resp.Candidate.Format)
		assert.Equal(t, "tax", resp.Candidate.Category)
		assert.Equal(t, "150.75", resp.Candidate.Amount)
		assert.Equal(t, "2025-04-30", resp.Candidate.DueDate)
		assert.Nil(t, resp.Bill)
	})

	t.Run("Confirm", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/bills/scan/qr", ScanQRRequest{
			Payload:          pagoPA,
			Confirm:          true,
			OverridesRequest: OverridesRequest{Note: "TARI"},
		}, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		resp := decode[ScanResponse](t, w)
		require.NotNil(t, resp.Bill)
		assert.Equal(t, "pending", resp.Bill.Status)
		assert.Equal(t, "TARI", resp.Bill.Note)
	})

	t.Run("Malformed", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/bills/scan/qr", ScanQRRequest{Payload: "PAGOPA|002|short"}, "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Missing Payload", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/bills/scan/qr", gin.H{}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestScanText_NeedsAmount(t *testing.T) {
	router := setupRouter(t)
	text := "Fornitore: Condominio Via Roma\nscadenza 30/04/2025"

	w := doJSON(t, router, "POST", "/api/v1/bills/scan/text", ScanTextRequest{Text: text, Confirm: true}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/bills/scan/text", ScanTextRequest{
		Text:             text,
		Confirm:          true,
		OverridesRequest: OverridesRequest{Amount: "310.00", Category: "condominium"},
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[ScanResponse](t, w)
	assert.Equal(t, "310.00", resp.Bill.Amount)
	assert.Equal(t, "condominium", resp.Bill.Category)

	w = doJSON(t, router, "POST", "/api/v1/bills/scan/text", ScanTextRequest{
		Text:             text,
		Confirm:          true,
		OverridesRequest: OverridesRequest{Amount: "abc"},
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanImage(t *testing.T) {
	router := setupRouter(t, app.WithTextSource(fakeText{text: "Fornitore: Enel Energia\nImporto € 85,50\nData scadenza: 05/04/2025"}))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "bill.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("fake image bytes"))
	require.NoError(t, mw.WriteField("confirm", "true"))
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("POST", "/api/v1/bills/scan/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[ScanResponse](t, w)
	assert.Equal(t, "electricity", resp.Candidate.Category)
	assert.Equal(t, "ocr", resp.Bill.Source)
}

func TestScanImage_NoOCR(t *testing.T) {
	router := setupRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("image", "bill.png")
	_, _ = fw.Write([]byte("x"))
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("POST", "/api/v1/bills/scan/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/bills/scan/image", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillsPerUser(t *testing.T) {
	router := setupRouter(t)
	createRent(t, router, "")
	createRent(t, router, "bob")
	createRent(t, router, "bob")

	w := doJSON(t, router, "GET", "/api/v1/bills", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]BillResponse](t, w)["bills"], 1)

	w = doJSON(t, router, "GET", "/api/v1/bills?category=rent&status=pending", nil, "bob")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]BillResponse](t, w)["bills"], 2)

	w = doJSON(t, router, "GET", "/api/v1/bills?status=someday", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "GET", "/api/v1/bills?category=yachts", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "GET", "/api/v1/bills", nil, "../../etc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBill_Invalid(t *testing.T) {
	router := setupRouter(t)
	tests := []struct {
		name string
		body CreateBillRequest
	}{
		{"Missing Amount", CreateBillRequest{DueDate: "2025-04-01"}},
		{"Bad Date", CreateBillRequest{Amount: "10", DueDate: "01/04/2025"}},
		{"Negative Amount", CreateBillRequest{Amount: "-10", DueDate: "2025-04-01"}},
		{"Unknown Category", CreateBillRequest{Amount: "10", DueDate: "2025-04-01", Category: "yachts"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, "POST", "/api/v1/bills", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestUpcomingAndAnalytics(t *testing.T) {
	router := setupRouter(t)
	createRent(t, router, "")
	w := doJSON(t, router, "POST", "/api/v1/bills", CreateBillRequest{
		Amount: "85.50", DueDate: "2025-03-01", Creditor: "Enel Energia", Description: "Bolletta luce",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "overdue", decode[BillResponse](t, w).EffectiveStatus)

	w = doJSON(t, router, "GET", "/api/v1/bills/upcoming", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]BillResponse](t, w)["bills"], 1)

	w = doJSON(t, router, "GET", "/api/v1/bills/upcoming?days=-3", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "GET", "/api/v1/analytics/categories", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	cats := decode[map[string]map[string]string](t, w)["categories"]
	assert.Equal(t, map[string]string{"rent": "1200.00", "electricity": "85.50"}, cats)

	w = doJSON(t, router, "GET", "/api/v1/analytics/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	statuses := decode[map[string]map[string]int](t, w)["statuses"]
	assert.Equal(t, map[string]int{"pending": 1, "paid": 0, "overdue": 1, "late": 0}, statuses)
}

func TestPayments(t *testing.T) {
	router := setupRouter(t)
	bill := createRent(t, router, "")
	path := "/api/v1/bills/" + bill.ID + "/payments"

	w := doJSON(t, router, "POST", path, PaymentRequest{Method: "card"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "amount required without charge")

	w = doJSON(t, router, "POST", path, PaymentRequest{Method: "cheque", Amount: "1200"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/bills/B-20250101-00000000/payments", PaymentRequest{Method: "card", Amount: "1"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "POST", path, PaymentRequest{Method: "bank_transfer", Amount: "1200.00"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"cashback":"24"`)

	w = doJSON(t, router, "POST", path, PaymentRequest{Method: "card", Charge: true}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, "DELETE", "/api/v1/bills/"+bill.ID, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, "GET", "/api/v1/cashback", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	cb := decode[CashbackResponse](t, w)
	assert.Equal(t, "24", cb.Balance)
	assert.Equal(t, "24.00", cb.Rounded)
	require.Len(t, cb.Payments, 1)
	assert.Equal(t, "succeeded", cb.Payments[0].Status)

	w = doJSON(t, router, "GET", "/api/v1/payments/"+cb.Payments[0].ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, bill.ID, decode[PaymentResponse](t, w).BillID)
}

func TestGetPayment_Errors(t *testing.T) {
	router := setupRouter(t)
	bill := createRent(t, router, "")

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"malformed", "nonsense", http.StatusBadRequest},
		{"bill ID", bill.ID, http.StatusBadRequest},
		{"unknown", "P-20250310-00000000", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, "GET", "/api/v1/payments/"+tt.id, nil, "")
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestUpdateBill(t *testing.T) {
	router := setupRouter(t)
	bill := createRent(t, router, "")
	path := "/api/v1/bills/" + bill.ID

	w := doJSON(t, router, "PATCH", path, OverridesRequest{Amount: "1250.00", Note: "aumento ISTAT"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[BillResponse](t, w)
	assert.Equal(t, "1250.00", got.Amount)
	assert.Equal(t, "aumento ISTAT", got.Note)
	assert.Equal(t, bill.DueDate, got.DueDate)
	assert.Equal(t, bill.Creditor, got.Creditor)

	tests := []struct {
		name string
		path string
		user string
		body OverridesRequest
		want int
	}{
		{"bad amount", path, "", OverridesRequest{Amount: "abc"}, http.StatusBadRequest},
		{"bad date", path, "", OverridesRequest{DueDate: "01/04/2025"}, http.StatusBadRequest},
		{"bad category", path, "", OverridesRequest{Category: "food"}, http.StatusBadRequest},
		{"negative amount", path, "", OverridesRequest{Amount: "-1"}, http.StatusBadRequest},
		{"unknown bill", "/api/v1/bills/B-20250101-00000000", "", OverridesRequest{Note: "x"}, http.StatusNotFound},
		{"other user", path, "bob", OverridesRequest{Note: "x"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, "PATCH", tt.path, tt.body, tt.user)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w = doJSON(t, router, "POST", path+"/payments", PaymentRequest{Method: "card", Amount: "1250"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = doJSON(t, router, "PATCH", path, OverridesRequest{Amount: "1"}, "")
	assert.Equal(t, http.StatusConflict, w.Code, "a paid amount is final")
}

func TestPayments_Charge(t *testing.T) {
	calls := 0
	gateway := reconcile.GatewayFunc(func(_ context.Context, req reconcile.ChargeRequest) (reconcile.ChargeResult, error) {
		calls++
		if calls == 1 {
			return reconcile.ChargeResult{}, errors.New("gateway timeout")
		}
		return reconcile.ChargeResult{TransactionID: "tx-" + req.PaymentID, Approved: calls > 2, Reason: "card expired"}, nil
	})
	router := setupRouter(t, app.WithGateway(gateway))
	bill := createRent(t, router, "")
	path := "/api/v1/bills/" + bill.ID + "/payments"

	w := doJSON(t, router, "POST", path, PaymentRequest{Method: "card", Charge: true}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doJSON(t, router, "POST", path, PaymentRequest{Method: "card", Charge: true}, "")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "card expired")
	assert.Contains(t, w.Body.String(), `"status":"failed"`)

	w = doJSON(t, router, "POST", path, PaymentRequest{Method: "card", Charge: true}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"paid"`)

	w = doJSON(t, router, "GET", "/api/v1/cashback", nil, "")
	cb := decode[CashbackResponse](t, w)
	assert.Equal(t, "24", cb.Balance)
	assert.Len(t, cb.Payments, 3)
}

func TestDeleteBill(t *testing.T) {
	router := setupRouter(t)
	bill := createRent(t, router, "")

	w := doJSON(t, router, "DELETE", "/api/v1/bills/"+bill.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, "DELETE", "/api/v1/bills/"+bill.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := setupRouter(t)

	req, _ := http.NewRequest("OPTIONS", "/api/v1/bills", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	req.Header.Set("Access-Control-Request-Headers", UserHeader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
