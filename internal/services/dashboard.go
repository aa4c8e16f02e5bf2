package services

import (
	"context"
	"errors"
	"sync"

	"finboard/internal/ledger"
	applog "finboard/internal/log"
	"finboard/internal/session"
)

// ErrNotAdmitted is returned for ledger access without an authenticated session.
var ErrNotAdmitted = errors.New("ledger not available: session not authenticated")

// EventPublisher forwards ledger mutations to an external feed
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev ledger.Event) error
}

type DashboardOption func(*Dashboard)

// WithPublisher forwards every ledger event to p from a background queue.
// Call Close to drain it.
func WithPublisher(p EventPublisher) DashboardOption {
	return func(d *Dashboard) { d.publisher = p }
}

// WithLedgerOptions configures every ledger the dashboard creates
func WithLedgerOptions(opts ...ledger.Option) DashboardOption {
	return func(d *Dashboard) { d.ledgerOpts = append(d.ledgerOpts, opts...) }
}

func WithLogger(l *applog.Logger) DashboardOption {
	return func(d *Dashboard) {
		if l != nil {
			d.logger = l.WithComponent(applog.ComponentLedger)
		}
	}
}

// Dashboard is the session-scoped context of the ledger view. It owns the
// ledger of the admitted user and hands it out only while the guard's
// session is authenticated.
type Dashboard struct {
	guard      *session.Guard
	publisher  EventPublisher
	outbox     *outbox
	ledgerOpts []ledger.Option
	logger     *applog.Logger

	mu          sync.Mutex
	store       *ledger.Store
	owner       string
	unsubscribe func()
}

func NewDashboard(guard *session.Guard, opts ...DashboardOption) *Dashboard {
	d := &Dashboard{
		guard:  guard,
		logger: applog.Default().WithComponent(applog.ComponentLedger),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.publisher != nil {
		d.outbox = newOutbox(d.publisher, outboxSize, d.logger)
	}
	return d
}

// Close waits for queued ledger events to be published, or for ctx to end.
// Events raised after Close are not published.
func (d *Dashboard) Close(ctx context.Context) error {
	if d.outbox == nil {
		return nil
	}
	return d.outbox.close(ctx)
}

// Activate resolves the session. An authenticated user gets a fresh ledger
// on first admission and keeps it on later activations; any rejection
// discards it. A canceled activation changes nothing.
func (d *Dashboard) Activate(ctx context.Context) (session.Session, error) {
	sess, err := d.guard.Resolve(ctx)
	if errors.Is(err, session.ErrCanceled) {
		return sess, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// A logout may have landed between Resolve and here.
	cur := d.guard.Current()
	if !cur.Authenticated() {
		d.discardLocked()
		if err == nil {
			err = cur.Err
		}
		return cur, err
	}

	if d.store == nil || d.owner != cur.Profile.Email {
		d.discardLocked()
		d.store = ledger.New(d.ledgerOpts...)
		d.owner = cur.Profile.Email
		d.unsubscribe = d.store.Subscribe(d.onEvent)
		d.logger.InfoContext(ctx, "Ledger opened", applog.FieldEmail, cur.Profile.Email)
	}
	return cur, nil
}

// Ledger returns the admitted user's ledger.
func (d *Dashboard) Ledger() (*ledger.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.store == nil || !d.guard.Current().Authenticated() {
		return nil, ErrNotAdmitted
	}
	return d.store, nil
}

// Logout ends the session and drops the ledger.
func (d *Dashboard) Logout(ctx context.Context) error {
	err := d.guard.Logout(ctx)

	d.mu.Lock()
	d.discardLocked()
	d.mu.Unlock()
	return err
}

func (d *Dashboard) Session() session.Session {
	return d.guard.Current()
}

func (d *Dashboard) discardLocked() {
	if d.store == nil {
		return
	}
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	d.store.Close()
	d.store = nil
	d.owner = ""
	d.logger.Debug("Ledger discarded")
}

func (d *Dashboard) onEvent(ev ledger.Event) {
	ctx := context.Background()
	op := applog.OpCreate
	if ev.Type == ledger.EventDeleted {
		op = applog.OpDelete
	}
	tx := ev.Transaction
	applog.NewStructuredLogger(d.logger).LogTransactionRecorded(ctx, op,
		tx.ID, tx.Amount.Cents, string(tx.Kind), tx.Category, ev.Balance.Cents, ev.Revision)

	if d.outbox != nil {
		d.outbox.enqueue(ev)
	}
}
