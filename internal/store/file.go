package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cleared-dev/billbox/internal/model"
)

const (
	billsFile    = "bills.csv"
	paymentsFile = "payments.csv"
)

// FileBackend keeps each user's files in <dir>/<user id>/.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a FileBackend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// ForUser returns the file store for one user.
func (b *FileBackend) ForUser(userID string) (Store, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	return NewFileStore(filepath.Join(b.dir, userID)), nil
}

// Close is a no-op.
func (b *FileBackend) Close() error { return nil }

// FileStore stores bills in bills.csv, rewritten on every change, and
// payments in payments.csv, which is only ever appended to.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore writing to dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// LoadBills reads bills.csv. A missing file means no bills.
func (s *FileStore) LoadBills(ctx context.Context) ([]model.Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, billsFile)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening bills %s: %w", path, err)
	}
	defer f.Close()

	bills, err := ReadBills(f)
	if err != nil {
		return nil, fmt.Errorf("reading bills %s: %w", path, err)
	}
	return bills, nil
}

// SaveBill replaces the bill with the same ID or appends a new one.
func (s *FileStore) SaveBill(ctx context.Context, b model.Bill) error {
	bills, err := s.LoadBills(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range bills {
		if bills[i].ID == b.ID {
			bills[i] = b
			replaced = true
			break
		}
	}
	if !replaced {
		bills = append(bills, b)
	}
	return s.writeBills(bills)
}

// DeleteBill removes a bill. Its payments stay in the log.
func (s *FileStore) DeleteBill(ctx context.Context, id string) error {
	bills, err := s.LoadBills(ctx)
	if err != nil {
		return err
	}
	for i := range bills {
		if bills[i].ID == id {
			return s.writeBills(append(bills[:i], bills[i+1:]...))
		}
	}
	return fmt.Errorf("%w: bill %s", ErrNotFound, id)
}

// writeBills replaces bills.csv atomically via a temp file and rename.
func (s *FileStore) writeBills(bills []model.Bill) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, billsFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteBills(tmp, bills); err != nil {
		tmp.Close()
		return fmt.Errorf("writing bills: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, billsFile)); err != nil {
		return fmt.Errorf("replacing bills file: %w", err)
	}
	return nil
}

// LoadPayments reads payments.csv, collapsing repeated rows for one payment
// to its latest state.
func (s *FileStore) LoadPayments(ctx context.Context) ([]model.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, paymentsFile)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening payments %s: %w", path, err)
	}
	defer f.Close()

	payments, err := ReadPayments(f)
	if err != nil {
		return nil, fmt.Errorf("reading payments %s: %w", path, err)
	}
	return payments, nil
}

// SavePayment appends a row to payments.csv, creating the file and header if needed.
func (s *FileStore) SavePayment(ctx context.Context, p model.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	path := filepath.Join(s.dir, paymentsFile)
	needsHeader := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening payments: %w", err)
	}
	defer f.Close()

	if needsHeader {
		if _, err := fmt.Fprintln(f, PaymentHeader); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := AppendPayments(f, []model.Payment{p}); err != nil {
		return fmt.Errorf("appending payment %s: %w", p.ID, err)
	}
	return nil
}

// SaveSettlement rewrites bills.csv with b, then appends p to payments.csv.
// If the append fails, bills.csv is put back as it was.
func (s *FileStore) SaveSettlement(ctx context.Context, b model.Bill, p model.Payment) error {
	before, err := s.LoadBills(ctx)
	if err != nil {
		return err
	}
	after := make([]model.Bill, 0, len(before)+1)
	replaced := false
	for _, old := range before {
		if old.ID == b.ID {
			after = append(after, b)
			replaced = true
			continue
		}
		after = append(after, old)
	}
	if !replaced {
		after = append(after, b)
	}
	if err := s.writeBills(after); err != nil {
		return err
	}

	if err := s.SavePayment(ctx, p); err != nil {
		if rerr := s.writeBills(before); rerr != nil {
			return fmt.Errorf("%w (restoring bills: %v)", err, rerr)
		}
		return err
	}
	return nil
}
