package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"finboard/internal/ledger"
	applog "finboard/internal/log"
)

const (
	publishTimeout = 5 * time.Second
	outboxSize     = 256
)

// outbox hands ledger events to a publisher on its own goroutine so broker
// latency never reaches the ledger's locks. Events are published in the
// order they were queued. When the queue is full new events are dropped and
// counted.
type outbox struct {
	pub     EventPublisher
	logger  *applog.Logger
	queue   chan ledger.Event
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.Mutex
	closed bool
}

func newOutbox(pub EventPublisher, size int, logger *applog.Logger) *outbox {
	o := &outbox{
		pub:    pub,
		logger: logger,
		queue:  make(chan ledger.Event, size),
		done:   make(chan struct{}),
	}
	go o.run()
	return o
}

// enqueue never blocks. It reports whether ev was queued.
func (o *outbox) enqueue(ev ledger.Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	select {
	case o.queue <- ev:
		return true
	default:
		n := o.dropped.Add(1)
		o.logger.Warn("Event queue full, dropping ledger event",
			applog.FieldTransactionID, ev.Transaction.ID,
			applog.FieldRevision, ev.Revision,
			"dropped", n)
		return false
	}
}

func (o *outbox) run() {
	defer close(o.done)
	for ev := range o.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := o.pub.PublishLedgerEvent(ctx, ev)
		cancel()
		if err != nil {
			o.logger.Warn("Failed to publish ledger event",
				applog.FieldOperation, applog.OpPublish,
				applog.FieldError, err,
				applog.FieldTransactionID, ev.Transaction.ID,
				applog.FieldRevision, ev.Revision)
		}
	}
}

// close stops accepting events and waits for the queued ones to be
// published, or for ctx to end.
func (o *outbox) close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()

	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
