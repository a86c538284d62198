// Package app wires configuration, storage and the domain services into the
// operations the CLI and the HTTP API expose. Every mutating call updates the
// in-memory session and then persists the change through the user's store.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/capture"
	"github.com/cleared-dev/billbox/internal/classify"
	"github.com/cleared-dev/billbox/internal/config"
	"github.com/cleared-dev/billbox/internal/extract"
	"github.com/cleared-dev/billbox/internal/id"
	"github.com/cleared-dev/billbox/internal/ledger"
	"github.com/cleared-dev/billbox/internal/model"
	"github.com/cleared-dev/billbox/internal/ocr"
	"github.com/cleared-dev/billbox/internal/reconcile"
	"github.com/cleared-dev/billbox/internal/session"
	"github.com/cleared-dev/billbox/internal/store"
)

// App is a billbox project opened from its root directory.
type App struct {
	cfg       *config.Config
	backend   store.Backend
	sessions  *session.Manager
	capture   *capture.Service
	reconcile *reconcile.Service
	now       func() time.Time
	log       zerolog.Logger
}

// Option customizes an App.
type Option func(*options)

type options struct {
	text    ocr.TextSource
	gateway reconcile.Gateway
	now     func() time.Time
	log     zerolog.Logger
}

// WithTextSource sets the OCR text source used for image captures.
func WithTextSource(t ocr.TextSource) Option { return func(o *options) { o.text = t } }

// WithGateway sets the payment gateway. The default approves every charge
// offline.
func WithGateway(g reconcile.Gateway) Option { return func(o *options) { o.gateway = g } }

// WithClock sets the clock used for IDs, timestamps and date views.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithLogger sets the base logger.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// Open builds an App for the project at root. Relative paths in cfg are
// resolved against root.
func Open(cfg *config.Config, root string, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := options{gateway: reconcile.OfflineGateway{}, now: time.Now, log: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}

	classifier, err := loadClassifier(resolve(root, cfg.Ledger.RulesFile))
	if err != nil {
		return nil, err
	}

	storeOpts := cfg.StoreOptions()
	storeOpts.Dir = resolve(root, storeOpts.Dir)
	if storeOpts.Driver == store.DriverSQLite && storeOpts.DSN != ":memory:" {
		storeOpts.DSN = resolve(root, storeOpts.DSN)
	}
	backend, err := store.Open(storeOpts)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	a := &App{
		cfg:     cfg,
		backend: backend,
		now:     o.now,
		log:     o.log,
	}
	a.capture = capture.NewService(classifier, o.text, o.now, component(o.log, "capture"))
	a.reconcile = reconcile.NewService(
		reconcile.WithRates(cfg.Rates()),
		reconcile.WithGateway(o.gateway),
		reconcile.WithClock(o.now),
		reconcile.WithLogger(component(o.log, "reconcile")),
	)
	a.sessions = session.NewManager(a.openSession)
	return a, nil
}

func component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

func loadClassifier(path string) (*classify.Classifier, error) {
	c, err := classify.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return classify.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading category rules: %w", err)
	}
	return c, nil
}

func resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func (a *App) openSession(userID string) (*session.Session, error) {
	st, err := a.backend.ForUser(userID)
	if err != nil {
		return nil, err
	}
	sess := session.New(userID, a.cfg.User.Role, a.now)
	if err := store.Restore(context.Background(), st, sess); err != nil {
		return nil, err
	}
	a.log.Debug().Str("user_id", userID).Int("bills", sess.Ledger.Len()).Msg("session opened")
	return sess, nil
}

// Close releases the storage backend.
func (a *App) Close() error {
	return a.backend.Close()
}

// Config returns the configuration the App was opened with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// DefaultUser returns the configured local user.
func (a *App) DefaultUser() string {
	return a.cfg.User.ID
}

// ScanQR decodes a QR payload into a candidate bill.
func (a *App) ScanQR(payload string) (extract.Candidate, error) {
	return a.capture.ScanQR(payload)
}

// ScanText parses OCR text into a candidate bill.
func (a *App) ScanText(text string) (extract.Candidate, error) {
	return a.capture.ScanText(text)
}

// ScanImage runs OCR on a bill photo and parses the result.
func (a *App) ScanImage(ctx context.Context, image io.Reader) (extract.Candidate, error) {
	return a.capture.ScanImage(ctx, image)
}

// Confirm turns a candidate into a bill and adds it to the user's ledger.
func (a *App) Confirm(ctx context.Context, userID string, c extract.Candidate, o capture.Overrides) (BillView, error) {
	b, err := a.capture.Confirm(c, o)
	if err != nil {
		return BillView{}, err
	}
	return a.AddBill(ctx, userID, b)
}

// AddManual adds a bill typed in by hand.
func (a *App) AddManual(ctx context.Context, userID string, p capture.ManualParams) (BillView, error) {
	b, err := a.capture.Manual(p)
	if err != nil {
		return BillView{}, err
	}
	return a.AddBill(ctx, userID, b)
}

// AddBill inserts a bill and persists it. A bill that cannot be stored is
// taken back out of the ledger.
func (a *App) AddBill(ctx context.Context, userID string, b model.Bill) (BillView, error) {
	var view BillView
	err := a.with(userID, func(sess *session.Session, st store.Store) error {
		if err := sess.Ledger.Insert(b); err != nil {
			return err
		}
		stored, _ := sess.Ledger.Get(b.ID)
		if err := st.SaveBill(ctx, stored); err != nil {
			_ = sess.Ledger.Delete(b.ID)
			return fmt.Errorf("saving bill %s: %w", b.ID, err)
		}
		view = BillView{Bill: stored, Effective: sess.Ledger.EffectiveStatus(stored)}
		return nil
	})
	if err != nil {
		return BillView{}, err
	}
	a.log.Info().Str("user_id", userID).Str("bill_id", b.ID).Str("category", string(b.Category)).Msg("bill added")
	return view, nil
}

// DeleteBill removes a bill. Bills with recorded payments are kept.
func (a *App) DeleteBill(ctx context.Context, userID, billID string) error {
	return a.with(userID, func(sess *session.Session, st store.Store) error {
		if _, ok := sess.Ledger.Get(billID); !ok {
			return fmt.Errorf("%w: %s", ledger.ErrNotFound, billID)
		}
		if len(sess.PaymentsFor(billID)) > 0 {
			return fmt.Errorf("%w: %s", ErrHasPayments, billID)
		}
		if err := st.DeleteBill(ctx, billID); err != nil {
			return fmt.Errorf("deleting bill %s: %w", billID, err)
		}
		return sess.Ledger.Delete(billID)
	})
}

// UpdateBill applies o to one of the user's bills and persists the result.
// The amount of a paid bill cannot change.
func (a *App) UpdateBill(ctx context.Context, userID, billID string, o capture.Overrides) (BillView, error) {
	var view BillView
	err := a.with(userID, func(sess *session.Session, st store.Store) error {
		old, ok := sess.Ledger.Get(billID)
		if !ok {
			return fmt.Errorf("%w: %s", ledger.ErrNotFound, billID)
		}
		b := o.Apply(old)
		if old.IsPaid() && !b.Amount.Equal(old.Amount) {
			return fmt.Errorf("%w: %s", ledger.ErrPaidIsFinal, billID)
		}
		if err := sess.Ledger.Update(b); err != nil {
			return err
		}
		stored, _ := sess.Ledger.Get(billID)
		if err := st.SaveBill(ctx, stored); err != nil {
			_ = sess.Ledger.Update(old)
			return fmt.Errorf("saving bill %s: %w", billID, err)
		}
		view = BillView{Bill: stored, Effective: sess.Ledger.EffectiveStatus(stored)}
		return nil
	})
	if err != nil {
		return BillView{}, err
	}
	a.log.Info().Str("user_id", userID).Str("bill_id", billID).Msg("bill updated")
	return view, nil
}

var (
	// ErrHasPayments is returned when deleting a bill that payments refer to.
	ErrHasPayments = errors.New("bill has recorded payments")

	// ErrPaymentNotFound is returned when no payment has the given ID.
	ErrPaymentNotFound = errors.New("payment not found")
)

// BillView is a bill with its status as of today.
type BillView struct {
	model.Bill
	Effective model.Status
}

// Bills returns the user's bills matching q.
func (a *App) Bills(userID string, q ledger.Query) ([]BillView, error) {
	var out []BillView
	err := a.sessions.With(userID, func(sess *session.Session) error {
		out = views(sess.Ledger, sess.Ledger.Query(q))
		return nil
	})
	return out, err
}

// Upcoming returns unpaid bills due within days, soonest first. A negative
// days uses the configured window.
func (a *App) Upcoming(userID string, days int) ([]BillView, error) {
	if days < 0 {
		days = a.cfg.Ledger.UpcomingDays
	}
	var out []BillView
	err := a.sessions.With(userID, func(sess *session.Session) error {
		out = views(sess.Ledger, sess.Ledger.UpcomingWithinDays(days))
		return nil
	})
	return out, err
}

func views(l *ledger.Ledger, bills []model.Bill) []BillView {
	out := make([]BillView, len(bills))
	for i, b := range bills {
		out[i] = BillView{Bill: b, Effective: l.EffectiveStatus(b)}
	}
	return out
}

// Summary is the dashboard for one user.
type Summary struct {
	Categories map[model.Category]decimal.Decimal
	Statuses   map[model.Status]int
	Cashback   decimal.Decimal
}

// Summary returns category totals and status counts over bills matching q.
func (a *App) Summary(userID string, q ledger.Query) (Summary, error) {
	var s Summary
	err := a.sessions.With(userID, func(sess *session.Session) error {
		s = Summary{
			Categories: sess.Ledger.CategoryBreakdown(q),
			Statuses:   sess.Ledger.StatusBreakdown(q),
			Cashback:   sess.Cashback(),
		}
		return nil
	})
	return s, err
}

// Cashback returns the accrued balance and the payment log.
func (a *App) Cashback(userID string) (decimal.Decimal, []model.Payment, error) {
	var (
		balance  decimal.Decimal
		payments []model.Payment
	)
	err := a.sessions.With(userID, func(sess *session.Session) error {
		balance = sess.Cashback()
		payments = sess.Payments()
		return nil
	})
	return balance, payments, err
}

// Payment returns one entry of the user's payment log.
func (a *App) Payment(userID, paymentID string) (model.Payment, error) {
	kind, _, err := id.Parse(paymentID)
	if err != nil {
		return model.Payment{}, err
	}
	if kind != id.KindPayment {
		return model.Payment{}, fmt.Errorf("%w: %s is not a payment", id.ErrInvalid, paymentID)
	}
	var (
		p  model.Payment
		ok bool
	)
	err = a.sessions.With(userID, func(sess *session.Session) error {
		p, ok = sess.Payment(paymentID)
		return nil
	})
	if err != nil {
		return model.Payment{}, err
	}
	if !ok {
		return model.Payment{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}
	return p, nil
}

// RecordPayment records a payment made outside billbox.
func (a *App) RecordPayment(ctx context.Context, userID, billID string, amount decimal.Decimal, method model.PaymentMethod) (reconcile.Result, error) {
	var res reconcile.Result
	err := a.with(userID, func(sess *session.Session, st store.Store) error {
		var err error
		res, err = a.reconcile.RecordPayment(sess, billID, amount, method)
		if err != nil {
			return err
		}
		return a.persist(ctx, userID, st, res, true)
	})
	return res, err
}

// Pay charges a bill through the gateway. A failed charge is persisted and
// returned together with the error.
func (a *App) Pay(ctx context.Context, userID, billID string, method model.PaymentMethod) (reconcile.Result, error) {
	var res reconcile.Result
	err := a.with(userID, func(sess *session.Session, st store.Store) error {
		var payErr error
		res, payErr = a.reconcile.Pay(ctx, sess, billID, method)
		if res.Payment.ID == "" {
			return payErr
		}
		if err := a.persist(ctx, userID, st, res, payErr == nil); err != nil {
			return err
		}
		return payErr
	})
	return res, err
}

// persist writes a reconciled payment and, when it succeeded, the paid bill
// in the same settlement. On failure the cached session is dropped so the
// next call reloads what was actually stored.
func (a *App) persist(ctx context.Context, userID string, st store.Store, res reconcile.Result, paid bool) error {
	var err error
	if paid {
		err = st.SaveSettlement(ctx, res.Bill, res.Payment)
	} else {
		err = st.SavePayment(ctx, res.Payment)
	}
	if err != nil {
		a.sessions.Forget(userID)
		a.log.Error().Err(err).Str("user_id", userID).Str("payment_id", res.Payment.ID).Msg("persisting payment failed")
		return fmt.Errorf("saving payment %s: %w", res.Payment.ID, err)
	}
	return nil
}

func (a *App) with(userID string, fn func(*session.Session, store.Store) error) error {
	st, err := a.backend.ForUser(userID)
	if err != nil {
		return err
	}
	return a.sessions.With(userID, func(sess *session.Session) error {
		return fn(sess, st)
	})
}
