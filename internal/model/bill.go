package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the stored lifecycle state of a bill.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
	StatusLate    Status = "late"
)

// AllStatuses lists the statuses that always appear in a status breakdown.
var AllStatuses = []Status{StatusPending, StatusPaid, StatusOverdue, StatusLate}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusLate:
		return true
	}
	return false
}

// Source records how a bill entered the ledger. Display only.
type Source string

const (
	SourceQR     Source = "qr"
	SourceOCR    Source = "ocr"
	SourceManual Source = "manual"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceQR, SourceOCR, SourceManual:
		return true
	}
	return false
}

// Role selects the label used for unpaid bills past their due date.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
)

// OverdueStatus returns the status label a role uses for an unpaid bill past due.
func (r Role) OverdueStatus() Status {
	if r == RoleLandlord {
		return StatusLate
	}
	return StatusOverdue
}

// Bill is a single payable or receivable obligation.
type Bill struct {
	ID          string   `validate:"required"`
	Category    Category `validate:"required"`
	Amount      decimal.Decimal
	DueDate     time.Time `validate:"required"`
	Status      Status    `validate:"required"`
	Creditor    string    `validate:"max=200"`
	Description string    `validate:"max=500"`
	Note        string
	Source      Source `validate:"required"`
	RawPayload  string // original QR string or OCR text, kept verbatim
	CreatedAt   time.Time
}

// IsPaid reports whether the bill has been paid.
func (b Bill) IsPaid() bool {
	return b.Status == StatusPaid
}

// IsPastDue reports whether the bill is unpaid and its due date is before today's date.
func (b Bill) IsPastDue(today time.Time) bool {
	if b.IsPaid() {
		return false
	}
	return DateOf(b.DueDate).Before(DateOf(today))
}

// EffectiveStatus derives the status shown to a role on the given day.
// Unpaid bills past due read as overdue (tenant) or late (landlord); paid is terminal.
func (b Bill) EffectiveStatus(today time.Time, role Role) Status {
	if b.IsPaid() {
		return StatusPaid
	}
	if b.IsPastDue(today) {
		return role.OverdueStatus()
	}
	if b.Status == StatusOverdue || b.Status == StatusLate {
		return role.OverdueStatus()
	}
	return b.Status
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
