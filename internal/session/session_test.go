package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/billbox/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func clock() time.Time { return time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC) }

func TestSessionsAreIndependent(t *testing.T) {
	a := New("alice", model.RoleTenant, clock)
	b := New("bob", model.RoleLandlord, clock)

	require.NoError(t, a.Ledger.Insert(model.Bill{
		ID:       "B-1",
		Category: model.CategoryRent,
		Amount:   dec("900"),
		DueDate:  time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:   model.StatusPending,
		Source:   model.SourceManual,
	}))
	a.AppendPayment(model.Payment{ID: "P-1", BillID: "B-1", Status: model.PaymentSucceeded, Cashback: dec("18")})

	assert.Equal(t, 1, a.Ledger.Len())
	assert.Equal(t, 0, b.Ledger.Len())
	assert.True(t, a.Cashback().Equal(dec("18")))
	assert.True(t, b.Cashback().IsZero())
	assert.Equal(t, model.RoleLandlord, b.Role())
}

func TestAppendPayment_OnlySucceededCredits(t *testing.T) {
	s := New("u", model.RoleTenant, clock)
	s.AppendPayment(model.Payment{ID: "P-1", Status: model.PaymentFailed, Cashback: dec("5")})
	s.AppendPayment(model.Payment{ID: "P-2", Status: model.PaymentPending, Cashback: dec("5")})
	assert.True(t, s.Cashback().IsZero())
	assert.Len(t, s.Payments(), 2)
}

func TestResolvePayment(t *testing.T) {
	s := New("u", model.RoleTenant, clock)
	p := model.Payment{ID: "P-1", BillID: "B-1", Status: model.PaymentPending}
	s.AppendPayment(p)

	p.Status = model.PaymentSucceeded
	p.Cashback = dec("1.5")
	require.NoError(t, s.ResolvePayment(p))
	assert.True(t, s.Cashback().Equal(dec("1.5")))

	got, ok := s.Payment("P-1")
	require.True(t, ok)
	assert.Equal(t, model.PaymentSucceeded, got.Status)

	p.Status = model.PaymentRefunded
	assert.Error(t, s.ResolvePayment(p), "final payments are not resolved twice")
	assert.Error(t, s.ResolvePayment(model.Payment{ID: "P-9"}))
}

func TestRestore(t *testing.T) {
	s := New("u", model.RoleTenant, clock)
	bills := []model.Bill{{
		ID:       "B-1",
		Category: model.CategoryGas,
		Amount:   dec("40"),
		DueDate:  time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		Status:   model.StatusPaid,
		Source:   model.SourceQR,
	}}
	payments := []model.Payment{
		{ID: "P-1", BillID: "B-1", Status: model.PaymentSucceeded, Cashback: dec("0.4")},
		{ID: "P-2", BillID: "B-1", Status: model.PaymentFailed, Cashback: dec("0.4")},
	}
	require.NoError(t, s.Restore(bills, payments))

	assert.Equal(t, 1, s.Ledger.Len())
	assert.Len(t, s.PaymentsFor("B-1"), 2)
	assert.True(t, s.Cashback().Equal(dec("0.4")))
}

func TestManager(t *testing.T) {
	calls := 0
	m := NewManager(func(userID string) (*Session, error) {
		calls++
		if userID == "broken" {
			return nil, errors.New("no storage")
		}
		return New(userID, model.RoleTenant, clock), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.With("alice", func(s *Session) error {
				s.AppendPayment(model.Payment{Status: model.PaymentSucceeded, Cashback: dec("1")})
				return nil
			})
		}()
	}
	wg.Wait()

	require.NoError(t, m.With("alice", func(s *Session) error {
		assert.True(t, s.Cashback().Equal(dec("10")))
		return nil
	}))
	assert.Equal(t, 1, calls)

	err := m.With("broken", func(*Session) error { return nil })
	assert.ErrorContains(t, err, "no storage")
}

func TestManager_Forget(t *testing.T) {
	calls := 0
	m := NewManager(func(userID string) (*Session, error) {
		calls++
		return New(userID, model.RoleTenant, clock), nil
	})
	require.NoError(t, m.With("alice", func(*Session) error { return nil }))
	m.Forget("alice")
	require.NoError(t, m.With("alice", func(*Session) error { return nil }))
	assert.Equal(t, 2, calls)
}

func TestManager_ForgetWhileQueued(t *testing.T) {
	calls := 0
	m := NewManager(func(userID string) (*Session, error) {
		calls++
		return New(userID, model.RoleTenant, clock), nil
	})

	var (
		wg     sync.WaitGroup
		queued *Session
		old    *Session
	)
	require.NoError(t, m.With("alice", func(s *Session) error {
		old = s
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.With("alice", func(s *Session) error {
				queued = s
				return nil
			})
		}()
		time.Sleep(20 * time.Millisecond)
		s.AppendPayment(model.Payment{Status: model.PaymentSucceeded, Cashback: dec("5")})
		m.Forget("alice")
		return nil
	}))
	wg.Wait()

	require.NotNil(t, queued)
	assert.NotSame(t, old, queued, "a forgotten session is not handed out again")
	assert.True(t, queued.Cashback().IsZero())
	assert.Equal(t, 2, calls)
}
