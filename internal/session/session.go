// Package session holds the per-user state of the app: the bill ledger, the
// payment log and the cashback balance. Each user gets an independent
// Session; nothing is shared between them.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/ledger"
	"github.com/cleared-dev/billbox/internal/model"
)

// Session is one user's working state. It is not safe for concurrent use;
// Manager serializes access when sessions are shared across goroutines.
type Session struct {
	UserID   string
	Ledger   *ledger.Ledger
	payments []model.Payment
	cashback decimal.Decimal
}

// New creates an empty session.
func New(userID string, role model.Role, now func() time.Time) *Session {
	return &Session{
		UserID: userID,
		Ledger: ledger.New(role, now),
	}
}

// Role returns the user's role.
func (s *Session) Role() model.Role {
	return s.Ledger.Role()
}

// Cashback returns the accrued cashback balance.
func (s *Session) Cashback() decimal.Decimal {
	return s.cashback
}

// Payments returns a copy of the payment log in recording order.
func (s *Session) Payments() []model.Payment {
	out := make([]model.Payment, len(s.payments))
	copy(out, s.payments)
	return out
}

// PaymentsFor returns the payments recorded against one bill.
func (s *Session) PaymentsFor(billID string) []model.Payment {
	var out []model.Payment
	for _, p := range s.payments {
		if p.BillID == billID {
			out = append(out, p)
		}
	}
	return out
}

// Payment returns a payment by ID.
func (s *Session) Payment(id string) (model.Payment, bool) {
	for _, p := range s.payments {
		if p.ID == id {
			return p, true
		}
	}
	return model.Payment{}, false
}

// AppendPayment adds a payment to the log and credits its cashback if it
// succeeded.
func (s *Session) AppendPayment(p model.Payment) {
	s.payments = append(s.payments, p)
	if p.Status == model.PaymentSucceeded {
		s.cashback = s.cashback.Add(p.Cashback)
	}
}

// ResolvePayment moves a pending payment to a final status. A payment is
// resolved at most once.
func (s *Session) ResolvePayment(p model.Payment) error {
	for i := range s.payments {
		if s.payments[i].ID != p.ID {
			continue
		}
		if s.payments[i].Final() {
			return fmt.Errorf("payment %s already %s", p.ID, s.payments[i].Status)
		}
		s.payments[i] = p
		if p.Status == model.PaymentSucceeded {
			s.cashback = s.cashback.Add(p.Cashback)
		}
		return nil
	}
	return fmt.Errorf("payment %s not found", p.ID)
}

// Restore replaces the session contents with persisted bills and payments.
// The cashback balance is recomputed from succeeded payments.
func (s *Session) Restore(bills []model.Bill, payments []model.Payment) error {
	if err := s.Ledger.Load(bills); err != nil {
		return err
	}
	s.payments = nil
	s.cashback = decimal.Zero
	for _, p := range payments {
		s.AppendPayment(p)
	}
	return nil
}

// Factory builds a fresh session for a user.
type Factory func(userID string) (*Session, error)

// Manager keeps one session per user ID and serializes access to each.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  Factory
}

type entry struct {
	mu    sync.Mutex
	s     *Session
	stale atomic.Bool
}

// NewManager creates a Manager that builds sessions with factory on first use.
func NewManager(factory Factory) *Manager {
	return &Manager{sessions: make(map[string]*entry), factory: factory}
}

// With runs fn with exclusive access to the user's session. A session
// forgotten while the caller waited is rebuilt before fn runs.
func (m *Manager) With(userID string, fn func(*Session) error) error {
	for {
		e, err := m.get(userID)
		if err != nil {
			return err
		}
		e.mu.Lock()
		if e.stale.Load() {
			e.mu.Unlock()
			continue
		}
		err = fn(e.s)
		e.mu.Unlock()
		return err
	}
}

// Forget drops a cached session so the next access rebuilds it. Callers
// already queued on the old session are moved to the rebuilt one.
func (m *Manager) Forget(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[userID]; ok {
		e.stale.Store(true)
		delete(m.sessions, userID)
	}
}

func (m *Manager) get(userID string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[userID]; ok {
		return e, nil
	}
	s, err := m.factory(userID)
	if err != nil {
		return nil, fmt.Errorf("opening session for %s: %w", userID, err)
	}
	e := &entry{s: s}
	m.sessions[userID] = e
	return e, nil
}
