package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/cleared-dev/billbox/internal/model"
)

// BillRow is the bills table.
type BillRow struct {
	UserID      string `gorm:"primaryKey;size:64"`
	ID          string `gorm:"primaryKey;size:64"`
	Category    string `gorm:"size:32;not null;index"`
	Amount      string `gorm:"size:32;not null"`
	DueDate     string `gorm:"size:10;not null;index"`
	Status      string `gorm:"size:16;not null"`
	Creditor    string `gorm:"size:200"`
	Description string `gorm:"size:500"`
	Note        string `gorm:"type:text"`
	Source      string `gorm:"size:16;not null"`
	RawPayload  string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the table name.
func (BillRow) TableName() string {
	return "bills"
}

// PaymentRow is the payments table.
type PaymentRow struct {
	UserID                string    `gorm:"primaryKey;size:64"`
	ID                    string    `gorm:"primaryKey;size:64"`
	BillID                string    `gorm:"size:64;not null;index"`
	Amount                string    `gorm:"size:32;not null"`
	Method                string    `gorm:"size:32;not null"`
	Status                string    `gorm:"size:16;not null;default:'pending'"`
	Timestamp             time.Time `gorm:"column:paid_at;not null"`
	ExternalTransactionID string    `gorm:"size:255"`
	Cashback              string    `gorm:"size:32"`
}

// TableName overrides the table name.
func (PaymentRow) TableName() string {
	return "payments"
}

// SQLBackend stores every user's rows in one database.
type SQLBackend struct {
	db *gorm.DB
}

// OpenSQL connects to postgres or sqlite and migrates the schema.
func OpenSQL(driver, dsn string) (*SQLBackend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s driver needs a dsn", driver)
	}
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewSQLBackend(db)
}

// NewSQLBackend wraps an open gorm connection and migrates the schema.
func NewSQLBackend(db *gorm.DB) (*SQLBackend, error) {
	if err := db.AutoMigrate(&BillRow{}, &PaymentRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLBackend{db: db}, nil
}

// ForUser returns a store scoped to one user's rows.
func (b *SQLBackend) ForUser(userID string) (Store, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	return &SQLStore{db: b.db, userID: userID}, nil
}

// Close closes the underlying connection pool.
func (b *SQLBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLStore is one user's view of a SQLBackend.
type SQLStore struct {
	db     *gorm.DB
	userID string
}

// LoadBills returns the user's bills in creation order.
func (s *SQLStore) LoadBills(ctx context.Context) ([]model.Bill, error) {
	var rows []BillRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", s.userID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying bills: %w", err)
	}

	bills := make([]model.Bill, 0, len(rows))
	for _, r := range rows {
		b, err := r.bill()
		if err != nil {
			return nil, fmt.Errorf("bill %s: %w", r.ID, err)
		}
		bills = append(bills, b)
	}
	return bills, nil
}

// SaveBill upserts a bill, keeping the original creation time on update.
func (s *SQLStore) SaveBill(ctx context.Context, b model.Bill) error {
	return s.saveBill(s.db.WithContext(ctx), b)
}

func (s *SQLStore) saveBill(tx *gorm.DB, b model.Bill) error {
	row := newBillRow(s.userID, b)
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"category", "amount", "due_date", "status", "creditor",
			"description", "note", "source", "raw_payload", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving bill %s: %w", b.ID, err)
	}
	return nil
}

// DeleteBill removes a bill row. Payments referencing it are kept.
func (s *SQLStore) DeleteBill(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", s.userID, id).
		Delete(&BillRow{})
	if res.Error != nil {
		return fmt.Errorf("deleting bill %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: bill %s", ErrNotFound, id)
	}
	return nil
}

// LoadPayments returns the user's payments in timestamp order.
func (s *SQLStore) LoadPayments(ctx context.Context) ([]model.Payment, error) {
	var rows []PaymentRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", s.userID).
		Order("paid_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying payments: %w", err)
	}

	payments := make([]model.Payment, 0, len(rows))
	for _, r := range rows {
		p, err := r.payment()
		if err != nil {
			return nil, fmt.Errorf("payment %s: %w", r.ID, err)
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// SavePayment inserts a payment or moves a pending one to its final state.
// A final payment is never overwritten.
func (s *SQLStore) SavePayment(ctx context.Context, p model.Payment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.savePayment(tx, p)
	})
}

// SaveSettlement writes the payment and the bill it settled in one
// transaction.
func (s *SQLStore) SaveSettlement(ctx context.Context, b model.Bill, p model.Payment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.savePayment(tx, p); err != nil {
			return err
		}
		return s.saveBill(tx, b)
	})
}

func (s *SQLStore) savePayment(tx *gorm.DB, p model.Payment) error {
	row := newPaymentRow(s.userID, p)
	var existing PaymentRow
	err := tx.Where("user_id = ? AND id = ?", s.userID, p.ID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("inserting payment %s: %w", p.ID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("looking up payment %s: %w", p.ID, err)
	}

	if model.PaymentStatus(existing.Status) != model.PaymentPending {
		return fmt.Errorf("payment %s already %s", p.ID, existing.Status)
	}
	err = tx.Model(&PaymentRow{}).
		Where("user_id = ? AND id = ?", s.userID, p.ID).
		Updates(map[string]any{
			"status":                  row.Status,
			"external_transaction_id": row.ExternalTransactionID,
			"cashback":                row.Cashback,
		}).Error
	if err != nil {
		return fmt.Errorf("updating payment %s: %w", p.ID, err)
	}
	return nil
}

func newBillRow(userID string, b model.Bill) BillRow {
	return BillRow{
		UserID:      userID,
		ID:          b.ID,
		Category:    string(b.Category),
		Amount:      b.Amount.String(),
		DueDate:     b.DueDate.Format(dateFormat),
		Status:      string(b.Status),
		Creditor:    b.Creditor,
		Description: b.Description,
		Note:        b.Note,
		Source:      string(b.Source),
		RawPayload:  b.RawPayload,
		CreatedAt:   b.CreatedAt.UTC(),
	}
}

func (r BillRow) bill() (model.Bill, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return model.Bill{}, fmt.Errorf("parsing amount %q: %w", r.Amount, err)
	}
	due, err := time.Parse(dateFormat, r.DueDate)
	if err != nil {
		return model.Bill{}, fmt.Errorf("parsing due_date %q: %w", r.DueDate, err)
	}
	return model.Bill{
		ID:          r.ID,
		Category:    model.Category(r.Category),
		Amount:      amount,
		DueDate:     due,
		Status:      model.Status(r.Status),
		Creditor:    r.Creditor,
		Description: r.Description,
		Note:        r.Note,
		Source:      model.Source(r.Source),
		RawPayload:  r.RawPayload,
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}

func newPaymentRow(userID string, p model.Payment) PaymentRow {
	return PaymentRow{
		UserID:                userID,
		ID:                    p.ID,
		BillID:                p.BillID,
		Amount:                p.Amount.String(),
		Method:                string(p.Method),
		Status:                string(p.Status),
		Timestamp:             p.Timestamp.UTC(),
		ExternalTransactionID: p.ExternalTransactionID,
		Cashback:              p.Cashback.String(),
	}
}

func (r PaymentRow) payment() (model.Payment, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return model.Payment{}, fmt.Errorf("parsing amount %q: %w", r.Amount, err)
	}
	var cashback decimal.Decimal
	if r.Cashback != "" {
		cashback, err = decimal.NewFromString(r.Cashback)
		if err != nil {
			return model.Payment{}, fmt.Errorf("parsing cashback %q: %w", r.Cashback, err)
		}
	}
	return model.Payment{
		ID:                    r.ID,
		BillID:                r.BillID,
		Amount:                amount,
		Method:                model.PaymentMethod(r.Method),
		Status:                model.PaymentStatus(r.Status),
		Timestamp:             r.Timestamp.UTC(),
		ExternalTransactionID: r.ExternalTransactionID,
		Cashback:              cashback,
	}, nil
}
