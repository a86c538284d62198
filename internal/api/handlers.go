package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/billbox/internal/app"
	"github.com/cleared-dev/billbox/internal/capture"
	"github.com/cleared-dev/billbox/internal/extract"
	"github.com/cleared-dev/billbox/internal/id"
	"github.com/cleared-dev/billbox/internal/ledger"
	"github.com/cleared-dev/billbox/internal/model"
	"github.com/cleared-dev/billbox/internal/ocr"
	"github.com/cleared-dev/billbox/internal/reconcile"
	"github.com/cleared-dev/billbox/internal/store"
)

// BillHandler serves the bill, analytics and cashback endpoints.
type BillHandler struct {
	app *app.App
	log zerolog.Logger
}

// NewBillHandler creates a BillHandler.
func NewBillHandler(a *app.App, log zerolog.Logger) *BillHandler {
	return &BillHandler{app: a, log: log}
}

func (h *BillHandler) ScanQR(c *gin.Context) {
	var req ScanQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cand, err := h.app.ScanQR(req.Payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondScan(c, cand, req.Confirm, req.OverridesRequest)
}

func (h *BillHandler) ScanText(c *gin.Context) {
	var req ScanTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cand, err := h.app.ScanText(req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondScan(c, cand, req.Confirm, req.OverridesRequest)
}

// ScanImage reads a multipart "image" file. Confirmation and overrides come
// from the other form fields.
func (h *BillHandler) ScanImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		h.fail(c, ocr.ErrNoImage)
		return
	}
	if fh.Size > ocr.MaxImageBytes {
		h.fail(c, ocr.ErrImageTooLarge)
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
		return
	}
	defer f.Close()

	cand, err := h.app.ScanImage(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	confirm, _ := strconv.ParseBool(c.PostForm("confirm"))
	h.respondScan(c, cand, confirm, OverridesRequest{
		Amount:      c.PostForm("amount"),
		DueDate:     c.PostForm("due_date"),
		Creditor:    c.PostForm("creditor"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
		Note:        c.PostForm("note"),
	})
}

func (h *BillHandler) respondScan(c *gin.Context, cand extract.Candidate, confirm bool, o OverridesRequest) {
	resp := ScanResponse{Candidate: newCandidateResponse(cand)}
	if !confirm {
		c.JSON(http.StatusOK, resp)
		return
	}
	overrides, err := o.toOverrides()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.app.Confirm(c.Request.Context(), userID(c), cand, overrides)
	if err != nil {
		h.fail(c, err)
		return
	}
	bill := newBillResponse(view)
	resp.Bill = &bill
	c.JSON(http.StatusCreated, resp)
}

func (h *BillHandler) CreateBill(c *gin.Context) {
	var req CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params, err := req.toParams()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.app.AddManual(c.Request.Context(), userID(c), params)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newBillResponse(view))
}

func (h *BillHandler) ListBills(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	bills, err := h.app.Bills(userID(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bills": newBillResponses(bills)})
}

func (h *BillHandler) UpcomingBills(c *gin.Context) {
	days := -1
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a non-negative integer"})
			return
		}
		days = n
	}
	bills, err := h.app.Upcoming(userID(c), days)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bills": newBillResponses(bills)})
}

// UpdateBill corrects the fields of a stored bill. Fields left empty are kept.
func (h *BillHandler) UpdateBill(c *gin.Context) {
	var req OverridesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	o, err := req.toOverrides()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.app.UpdateBill(c.Request.Context(), userID(c), c.Param("id"), o)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newBillResponse(view))
}

func (h *BillHandler) DeleteBill(c *gin.Context) {
	if err := h.app.DeleteBill(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BillHandler) CreatePayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	billID := c.Param("id")
	method := model.PaymentMethod(req.Method)

	var (
		res reconcile.Result
		err error
	)
	if req.Charge {
		res, err = h.app.Pay(ctx, userID(c), billID, method)
	} else {
		if req.Amount == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required unless charge is set"})
			return
		}
		amount, perr := parseAmount(req.Amount)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		res, err = h.app.RecordPayment(ctx, userID(c), billID, amount, method)
	}

	if errors.Is(err, reconcile.ErrDeclined) && res.Payment.ID != "" {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   err.Error(),
			"payment": newPaymentResponse(res.Payment),
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment": newPaymentResponse(res.Payment),
		"bill_id": res.Bill.ID,
		"status":  res.Bill.Status,
	})
}

func (h *BillHandler) GetPayment(c *gin.Context) {
	p, err := h.app.Payment(userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newPaymentResponse(p))
}

func (h *BillHandler) CategoryBreakdown(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	sum, err := h.app.Summary(userID(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	totals := make(map[string]string, len(sum.Categories))
	for cat, amount := range sum.Categories {
		totals[string(cat)] = amount.StringFixed(2)
	}
	c.JSON(http.StatusOK, gin.H{"categories": totals})
}

func (h *BillHandler) StatusBreakdown(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	sum, err := h.app.Summary(userID(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	counts := make(map[string]int, len(sum.Statuses))
	for s, n := range sum.Statuses {
		counts[string(s)] = n
	}
	c.JSON(http.StatusOK, gin.H{"statuses": counts})
}

func (h *BillHandler) Cashback(c *gin.Context) {
	balance, payments, err := h.app.Cashback(userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := CashbackResponse{
		Balance:  balance.String(),
		Rounded:  balance.StringFixed(2),
		Payments: make([]PaymentResponse, len(payments)),
	}
	for i, p := range payments {
		resp.Payments[i] = newPaymentResponse(p)
	}
	c.JSON(http.StatusOK, resp)
}

// query reads the status and category filters. It writes the error response
// itself and reports false on bad input.
func (h *BillHandler) query(c *gin.Context) (ledger.Query, bool) {
	status, err := ledger.ParseStatusFilter(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return ledger.Query{}, false
	}
	q := ledger.Query{Status: status}
	if v := c.Query("category"); v != "" && v != string(ledger.AllCategories) {
		cat, err := parseCategory(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return ledger.Query{}, false
		}
		q.Category = cat
	}
	return q, true
}

func (h *BillHandler) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var parseErr *extract.ParseError
	switch {
	case errors.As(err, &parseErr),
		errors.Is(err, capture.ErrNeedsConfirmation),
		errors.Is(err, ocr.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, reconcile.ErrBillNotFound),
		errors.Is(err, app.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrAlreadyPaid),
		errors.Is(err, app.ErrHasPayments),
		errors.Is(err, ledger.ErrPaidIsFinal):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, id.ErrInvalid),
		errors.Is(err, reconcile.ErrInvalidAmount),
		errors.Is(err, reconcile.ErrUnknownMethod),
		errors.Is(err, store.ErrInvalidUser),
		errors.Is(err, ocr.ErrNoImage):
		return http.StatusBadRequest
	case errors.Is(err, ocr.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ocr.ErrUnsupportedImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, reconcile.ErrDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, capture.ErrNoOCR), errors.Is(err, reconcile.ErrNoGateway):
		return http.StatusServiceUnavailable
	case errors.Is(err, ocr.ErrOCRFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
