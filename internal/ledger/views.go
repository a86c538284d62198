package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/model"
)

// StatusFilter selects bills by derived status or due-date window.
type StatusFilter string

const (
	FilterAll           StatusFilter = "all"
	FilterPending       StatusFilter = "pending"
	FilterPaid          StatusFilter = "paid"
	FilterOverdueOrLate StatusFilter = "overdue_or_late"
	FilterThisMonth     StatusFilter = "this_month"
	FilterThisYear      StatusFilter = "this_year"
)

// ParseStatusFilter converts a string to a StatusFilter. Empty means all.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterPending, FilterPaid, FilterOverdueOrLate, FilterThisMonth, FilterThisYear:
		return f, nil
	}
	return "", fmt.Errorf("unknown status filter %q", s)
}

// AllCategories is the category filter value that matches every bill.
const AllCategories model.Category = "all"

// Query combines a status filter and a category filter with AND semantics.
// Zero values match everything.
type Query struct {
	Status   StatusFilter
	Category model.Category
}

// Query returns the bills matching q in insertion order.
// Date-window filters are evaluated against the clock at call time.
func (l *Ledger) Query(q Query) []model.Bill {
	today := l.Today()
	var out []model.Bill
	for _, b := range l.bills {
		if l.matchStatus(b, q.Status, today) && matchCategory(b, q.Category) {
			out = append(out, b)
		}
	}
	return out
}

// FilterByStatus returns bills matching a status filter.
func (l *Ledger) FilterByStatus(f StatusFilter) []model.Bill {
	return l.Query(Query{Status: f})
}

// FilterByCategory returns bills of one category, or all bills for AllCategories.
func (l *Ledger) FilterByCategory(c model.Category) []model.Bill {
	return l.Query(Query{Category: c})
}

func (l *Ledger) matchStatus(b model.Bill, f StatusFilter, today time.Time) bool {
	switch f {
	case "", FilterAll:
		return true
	case FilterPending:
		return b.EffectiveStatus(today, l.role) == model.StatusPending
	case FilterPaid:
		return b.IsPaid()
	case FilterOverdueOrLate:
		s := b.EffectiveStatus(today, l.role)
		return s == model.StatusOverdue || s == model.StatusLate
	case FilterThisMonth:
		return b.DueDate.Year() == today.Year() && b.DueDate.Month() == today.Month()
	case FilterThisYear:
		return b.DueDate.Year() == today.Year()
	}
	return false
}

func matchCategory(b model.Bill, c model.Category) bool {
	return c == "" || c == AllCategories || b.Category == c
}

// UpcomingWithinDays returns unpaid bills due between today and today+n days
// inclusive, earliest first. Bills already past due are not upcoming.
func (l *Ledger) UpcomingWithinDays(n int) []model.Bill {
	if n < 0 {
		return nil
	}
	today := l.Today()
	end := today.AddDate(0, 0, n)

	var out []model.Bill
	for _, b := range l.bills {
		if b.IsPaid() {
			continue
		}
		due := model.DateOf(b.DueDate)
		if due.Before(today) || due.After(end) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out
}

// CategoryBreakdown sums amounts per category over the bills matching q.
// Categories with no matching bill are absent, never zero-valued.
func (l *Ledger) CategoryBreakdown(q Query) map[model.Category]decimal.Decimal {
	out := make(map[model.Category]decimal.Decimal)
	for _, b := range l.Query(q) {
		out[b.Category] = out[b.Category].Add(b.Amount)
	}
	for c, sum := range out {
		if sum.IsZero() {
			delete(out, c)
		}
	}
	return out
}

// StatusBreakdown counts bills matching q per derived status. All four
// statuses are always present, zero when empty.
func (l *Ledger) StatusBreakdown(q Query) map[model.Status]int {
	out := make(map[model.Status]int, len(model.AllStatuses))
	for _, s := range model.AllStatuses {
		out[s] = 0
	}
	today := l.Today()
	for _, b := range l.Query(q) {
		out[b.EffectiveStatus(today, l.role)]++
	}
	return out
}
