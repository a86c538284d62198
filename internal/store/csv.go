package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/model"
)

// BillHeader is the CSV header for bills.csv.
const BillHeader = "id,category,amount,due_date,status,creditor,description,note,source,raw_payload,created_at"

// PaymentHeader is the CSV header for payments.csv.
const PaymentHeader = "id,bill_id,amount,method,status,timestamp,external_transaction_id,cashback"

const (
	dateFormat = "2006-01-02"

	numBillFields  = 11
	colBillID      = 0
	colCategory    = 1
	colAmount      = 2
	colDueDate     = 3
	colStatus      = 4
	colCreditor    = 5
	colDescription = 6
	colNote        = 7
	colSource      = 8
	colRawPayload  = 9
	colCreatedAt   = 10

	numPaymentFields = 8
	colPaymentID     = 0
	colPayBillID     = 1
	colPayAmount     = 2
	colMethod        = 3
	colPayStatus     = 4
	colTimestamp     = 5
	colExternalTxID  = 6
	colCashback      = 7
)

// MarshalBill converts a Bill to a CSV row.
func MarshalBill(b model.Bill) []string {
	row := make([]string, numBillFields)
	row[colBillID] = b.ID
	row[colCategory] = string(b.Category)
	row[colAmount] = formatAmount(b.Amount)
	row[colDueDate] = b.DueDate.Format(dateFormat)
	row[colStatus] = string(b.Status)
	row[colCreditor] = b.Creditor
	row[colDescription] = b.Description
	row[colNote] = b.Note
	row[colSource] = string(b.Source)
	row[colRawPayload] = b.RawPayload
	if !b.CreatedAt.IsZero() {
		row[colCreatedAt] = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// UnmarshalBill converts a CSV row to a Bill.
func UnmarshalBill(record []string) (model.Bill, error) {
	if len(record) != numBillFields {
		return model.Bill{}, fmt.Errorf("expected %d fields, got %d", numBillFields, len(record))
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Bill{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	due, err := time.Parse(dateFormat, record[colDueDate])
	if err != nil {
		return model.Bill{}, fmt.Errorf("parsing due_date %q: %w", record[colDueDate], err)
	}

	var created time.Time
	if record[colCreatedAt] != "" {
		created, err = time.Parse(time.RFC3339, record[colCreatedAt])
		if err != nil {
			return model.Bill{}, fmt.Errorf("parsing created_at %q: %w", record[colCreatedAt], err)
		}
	}

	return model.Bill{
		ID:          record[colBillID],
		Category:    model.Category(record[colCategory]),
		Amount:      amount,
		DueDate:     due,
		Status:      model.Status(record[colStatus]),
		Creditor:    record[colCreditor],
		Description: record[colDescription],
		Note:        record[colNote],
		Source:      model.Source(record[colSource]),
		RawPayload:  record[colRawPayload],
		CreatedAt:   created,
	}, nil
}

// MarshalPayment converts a Payment to a CSV row.
func MarshalPayment(p model.Payment) []string {
	row := make([]string, numPaymentFields)
	row[colPaymentID] = p.ID
	row[colPayBillID] = p.BillID
	row[colPayAmount] = formatAmount(p.Amount)
	row[colMethod] = string(p.Method)
	row[colPayStatus] = string(p.Status)
	row[colTimestamp] = p.Timestamp.UTC().Format(time.RFC3339Nano)
	row[colExternalTxID] = p.ExternalTransactionID
	if !p.Cashback.IsZero() {
		row[colCashback] = p.Cashback.String()
	}
	return row
}

// UnmarshalPayment converts a CSV row to a Payment.
func UnmarshalPayment(record []string) (model.Payment, error) {
	if len(record) != numPaymentFields {
		return model.Payment{}, fmt.Errorf("expected %d fields, got %d", numPaymentFields, len(record))
	}

	amount, err := decimal.NewFromString(record[colPayAmount])
	if err != nil {
		return model.Payment{}, fmt.Errorf("parsing amount %q: %w", record[colPayAmount], err)
	}

	ts, err := time.Parse(time.RFC3339Nano, record[colTimestamp])
	if err != nil {
		return model.Payment{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	var cashback decimal.Decimal
	if record[colCashback] != "" {
		cashback, err = decimal.NewFromString(record[colCashback])
		if err != nil {
			return model.Payment{}, fmt.Errorf("parsing cashback %q: %w", record[colCashback], err)
		}
	}

	return model.Payment{
		ID:                    record[colPaymentID],
		BillID:                record[colPayBillID],
		Amount:                amount,
		Method:                model.PaymentMethod(record[colMethod]),
		Status:                model.PaymentStatus(record[colPayStatus]),
		Timestamp:             ts,
		ExternalTransactionID: record[colExternalTxID],
		Cashback:              cashback,
	}, nil
}

// ReadBills reads all bills from a bills.csv reader.
func ReadBills(r io.Reader) ([]model.Bill, error) {
	records, err := readRecords(r, numBillFields)
	if err != nil {
		return nil, fmt.Errorf("reading bills CSV: %w", err)
	}
	var bills []model.Bill
	for i, rec := range records {
		b, err := UnmarshalBill(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		bills = append(bills, b)
	}
	return bills, nil
}

// WriteBills writes bills to a bills.csv writer (including header).
func WriteBills(w io.Writer, bills []model.Bill) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(BillHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, b := range bills {
		if err := cw.Write(MarshalBill(b)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPayments reads the payment log. A payment logged more than once (pending,
// then resolved) is returned once, in first-seen position, with its last state.
func ReadPayments(r io.Reader) ([]model.Payment, error) {
	records, err := readRecords(r, numPaymentFields)
	if err != nil {
		return nil, fmt.Errorf("reading payments CSV: %w", err)
	}
	var payments []model.Payment
	seen := make(map[string]int)
	for i, rec := range records {
		p, err := UnmarshalPayment(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if j, ok := seen[p.ID]; ok {
			payments[j] = p
			continue
		}
		seen[p.ID] = len(payments)
		payments = append(payments, p)
	}
	return payments, nil
}

// AppendPayments appends rows to a payments.csv writer (no header).
func AppendPayments(w io.Writer, payments []model.Payment) error {
	cw := csv.NewWriter(w)
	for i, p := range payments {
		if err := cw.Write(MarshalPayment(p)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatAmount writes cents, keeping extra precision when there is any.
func formatAmount(d decimal.Decimal) string {
	if !d.Equal(d.Round(2)) {
		return d.String()
	}
	return d.StringFixed(2)
}

// readRecords reads CSV records and drops the header row.
func readRecords(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}
