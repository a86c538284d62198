// Package store persists bills and the payment log. Two backends exist: plain
// CSV files under a data directory (the default) and a relational database
// reached through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/cleared-dev/billbox/internal/model"
	"github.com/cleared-dev/billbox/internal/session"
)

// Drivers.
const (
	DriverCSV      = "csv"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrInvalidUser   = errors.New("invalid user id")
	ErrNotFound      = errors.New("record not found")
)

// Store persists one user's bills and payments.
type Store interface {
	LoadBills(ctx context.Context) ([]model.Bill, error)
	// SaveBill inserts or replaces a bill.
	SaveBill(ctx context.Context, b model.Bill) error
	DeleteBill(ctx context.Context, id string) error
	LoadPayments(ctx context.Context) ([]model.Payment, error)
	// SavePayment records a payment or a later state of it. Payments are never deleted.
	SavePayment(ctx context.Context, p model.Payment) error
	// SaveSettlement stores a succeeded payment together with the bill it
	// paid. Either both are written or neither is.
	SaveSettlement(ctx context.Context, b model.Bill, p model.Payment) error
}

// Backend hands out per-user stores over shared storage.
type Backend interface {
	ForUser(userID string) (Store, error)
	Close() error
}

// Options select and configure a backend.
type Options struct {
	Driver string
	Dir    string // data directory for the csv driver
	DSN    string // connection string or sqlite file for the sql drivers
}

// Open opens the backend named by opts.Driver. Empty means csv.
func Open(opts Options) (Backend, error) {
	switch opts.Driver {
	case "", DriverCSV:
		return NewFileBackend(opts.Dir), nil
	case DriverPostgres, DriverSQLite:
		return OpenSQL(opts.Driver, opts.DSN)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
}

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

func checkUserID(userID string) error {
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	return nil
}

// Restore loads a user's persisted bills and payments into sess.
func Restore(ctx context.Context, st Store, sess *session.Session) error {
	bills, err := st.LoadBills(ctx)
	if err != nil {
		return fmt.Errorf("loading bills: %w", err)
	}
	payments, err := st.LoadPayments(ctx)
	if err != nil {
		return fmt.Errorf("loading payments: %w", err)
	}
	if err := sess.Restore(bills, payments); err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	return nil
}
