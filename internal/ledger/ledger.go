// Package ledger keeps one user's working set of bills and derives the views
// the dashboard needs: status and category filters, the upcoming-due
// timeline, and category/status breakdowns.
//
// Overdue and late are never stored transitions. They are derived from the
// due date on every query, so a Ledger always answers relative to its clock.
// A Ledger is not safe for concurrent use.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/billbox/internal/model"
)

var (
	// ErrNotFound is returned when no bill has the given ID.
	ErrNotFound = errors.New("bill not found")

	// ErrPaidIsFinal is returned when an update would move a paid bill out of paid.
	ErrPaidIsFinal = errors.New("paid bill cannot change status")
)

// Ledger is an in-memory, insertion-ordered collection of bills.
type Ledger struct {
	bills []model.Bill
	index map[string]int
	role  model.Role
	now   func() time.Time
}

// New creates an empty ledger. role picks the overdue/late label; now is the
// clock used for derived statuses (time.Now when nil).
func New(role model.Role, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	if role == "" {
		role = model.RoleTenant
	}
	return &Ledger{index: make(map[string]int), role: role, now: now}
}

// Role returns the role the ledger labels statuses for.
func (l *Ledger) Role() model.Role {
	return l.role
}

// Today returns the ledger clock's current date.
func (l *Ledger) Today() time.Time {
	return model.DateOf(l.now())
}

// Len returns the number of bills.
func (l *Ledger) Len() int {
	return len(l.bills)
}

// Insert validates and appends a bill. Bills with identical content are not
// deduplicated; only IDs must be unique.
func (l *Ledger) Insert(b model.Bill) error {
	verrs := ValidateBill(b)
	if _, dup := l.index[b.ID]; dup && b.ID != "" {
		verrs = append(verrs, ValidationError{BillID: b.ID, Field: "ID", Description: "duplicate id"})
	}
	if len(verrs) > 0 {
		return joinErrors(verrs)
	}

	b.DueDate = model.DateOf(b.DueDate)
	l.index[b.ID] = len(l.bills)
	l.bills = append(l.bills, b)
	return nil
}

// Load replaces the ledger contents, validating every bill. On error the
// ledger is left unchanged.
func (l *Ledger) Load(bills []model.Bill) error {
	fresh := New(l.role, l.now)
	for _, b := range bills {
		if err := fresh.Insert(b); err != nil {
			return fmt.Errorf("loading bill %s: %w", b.ID, err)
		}
	}
	l.bills = fresh.bills
	l.index = fresh.index
	return nil
}

// Get returns a bill by ID.
func (l *Ledger) Get(id string) (model.Bill, bool) {
	i, ok := l.index[id]
	if !ok {
		return model.Bill{}, false
	}
	return l.bills[i], true
}

// All returns a copy of every bill in insertion order.
func (l *Ledger) All() []model.Bill {
	out := make([]model.Bill, len(l.bills))
	copy(out, l.bills)
	return out
}

// Update replaces a bill with the same ID. A paid bill stays paid.
func (l *Ledger) Update(b model.Bill) error {
	i, ok := l.index[b.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, b.ID)
	}
	if l.bills[i].IsPaid() && !b.IsPaid() {
		return fmt.Errorf("%w: %s", ErrPaidIsFinal, b.ID)
	}
	if verrs := ValidateBill(b); len(verrs) > 0 {
		return joinErrors(verrs)
	}
	b.DueDate = model.DateOf(b.DueDate)
	l.bills[i] = b
	return nil
}

// MarkPaid moves a bill to paid and returns the updated bill.
func (l *Ledger) MarkPaid(id string) (model.Bill, error) {
	i, ok := l.index[id]
	if !ok {
		return model.Bill{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	l.bills[i].Status = model.StatusPaid
	return l.bills[i], nil
}

// Delete removes a bill.
func (l *Ledger) Delete(id string) error {
	i, ok := l.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	l.bills = append(l.bills[:i], l.bills[i+1:]...)
	delete(l.index, id)
	for j := i; j < len(l.bills); j++ {
		l.index[l.bills[j].ID] = j
	}
	return nil
}

// EffectiveStatus returns the status b shows today for the ledger's role.
func (l *Ledger) EffectiveStatus(b model.Bill) model.Status {
	return b.EffectiveStatus(l.now(), l.role)
}
