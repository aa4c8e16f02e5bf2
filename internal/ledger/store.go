// Package ledger holds the in-memory transaction ledger of an admitted session.
//
// The ledger keeps transactions newest first and derives the balance from them
// on every mutation. It never persists anything: a Store lives exactly as long
// as the session that owns it.
package ledger

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"finboard/internal/cache"
	"finboard/internal/core"
)

// EventType names a ledger mutation.
type EventType string

const (
	EventAdded   EventType = "transaction.added"
	EventDeleted EventType = "transaction.deleted"
)

// Event describes one effective mutation. Balance and Revision are the values
// right after the mutation.
type Event struct {
	Type        EventType
	Transaction core.Transaction
	Balance     core.Money
	Revision    uint64
}

// Listener observes ledger mutations. Events arrive in revision order.
// A listener must not call back into the store; everything it needs is in
// the event.
type Listener func(Event)

// Snapshot is a consistent read of everything the display needs.
type Snapshot struct {
	Balance      core.Money         `json:"balance"`
	Transactions []core.Transaction `json:"transactions"`
	Aggregates   core.Aggregates    `json:"aggregates"`
	Revision     uint64             `json:"revision"`
}

type Option func(*Store)

// WithClock overrides the timestamp source for new transactions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the time zone used to bucket transactions by month.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// AggregateKey identifies the projections of one ledger revision.
type AggregateKey struct {
	Ledger   uint64
	Revision uint64
}

// AggregateCache memoizes projections across ledgers.
type AggregateCache = cache.LRUCache[AggregateKey, core.Aggregates]

// NewAggregateCache returns a projection cache for WithAggregateCache.
func NewAggregateCache(capacity int, ttl time.Duration) *AggregateCache {
	return cache.NewLRUCache[AggregateKey, core.Aggregates](capacity, ttl)
}

// WithAggregateCache shares a projection cache between stores.
func WithAggregateCache(c *AggregateCache) Option {
	return func(s *Store) {
		if c != nil {
			s.aggCache = c
		}
	}
}

var storeSeq atomic.Uint64

// Store is the ledger of one session. All operations are serialized.
type Store struct {
	mu       sync.Mutex
	items    []core.Transaction // newest first
	balance  core.Money
	nextID   int64
	revision uint64

	// notifyMu orders event delivery without holding mu.
	notifyMu  sync.Mutex
	listeners map[uint64]Listener
	listenSeq uint64

	now      func() time.Time
	loc      *time.Location
	aggCache *AggregateCache
	ledgerID uint64
}

// New returns an empty ledger.
func New(opts ...Option) *Store {
	s := &Store{
		nextID:    1,
		listeners: make(map[uint64]Listener),
		now:       time.Now,
		loc:       time.UTC,
		ledgerID:  storeSeq.Add(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.aggCache == nil {
		s.aggCache = NewAggregateCache(8, time.Hour)
	}
	return s
}

// Add validates the input and prepends a new transaction. On error the
// ledger is left untouched.
func (s *Store) Add(in core.TransactionInput) (core.Transaction, error) {
	amount, desc, kind, category, err := in.Normalize()
	if err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	t := core.Transaction{
		ID:          s.nextID,
		Amount:      amount,
		Description: desc,
		Kind:        kind,
		Category:    category,
		CreatedAt:   s.now(),
	}
	if err := t.Validate(); err != nil {
		s.mu.Unlock()
		return core.Transaction{}, err
	}
	s.nextID++

	items := make([]core.Transaction, 0, len(s.items)+1)
	items = append(items, t)
	s.items = append(items, s.items...)
	s.recompute()

	ev := Event{Type: EventAdded, Transaction: t, Balance: s.balance, Revision: s.revision}
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.deliver(ev)
	s.notifyMu.Unlock()

	return t, nil
}

// Delete removes the transaction with the given id. It reports whether a
// transaction was removed; unknown ids are a no-op.
func (s *Store) Delete(id int64) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.items[idx]
	items := make([]core.Transaction, 0, len(s.items)-1)
	items = append(items, s.items[:idx]...)
	s.items = append(items, s.items[idx+1:]...)
	s.recompute()

	ev := Event{Type: EventDeleted, Transaction: removed, Balance: s.balance, Revision: s.revision}
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.deliver(ev)
	s.notifyMu.Unlock()

	return true
}

// Balance returns income minus expense over the current transactions.
func (s *Store) Balance() core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Transactions returns a copy of the ledger, newest first.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItems()
}

// Get returns the transaction with the given id.
func (s *Store) Get(id int64) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.items[idx], true
	}
	return core.Transaction{}, false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Revision increases by one on every effective mutation.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Aggregates returns the category and month projections of the ledger.
func (s *Store) Aggregates() core.Aggregates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregates()
}

// Snapshot returns balance, transactions and aggregates from one revision.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Balance:      s.balance,
		Transactions: s.copyItems(),
		Aggregates:   s.aggregates(),
		Revision:     s.revision,
	}
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.listenSeq++
	id := s.listenSeq
	s.listeners[id] = l
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, id)
	}
}

// Close drops the cached projections of this ledger.
func (s *Store) Close() {
	s.aggCache.DeleteFunc(func(k AggregateKey) bool { return k.Ledger == s.ledgerID })
}

// recompute folds the sequence into the balance. Callers hold mu.
func (s *Store) recompute() {
	var total core.Money
	for _, t := range s.items {
		total = total.Add(t.Kind.Signed(t.Amount))
	}
	s.balance = total
	s.revision++
}

// deliver calls listeners in registration order. Callers hold notifyMu.
func (s *Store) deliver(ev Event) {
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s.listeners[id](ev)
	}
}

func (s *Store) indexOf(id int64) int {
	for i, t := range s.items {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) copyItems() []core.Transaction {
	out := make([]core.Transaction, len(s.items))
	copy(out, s.items)
	return out
}

// aggregates serves projections from the cache keyed by revision. Callers hold mu.
func (s *Store) aggregates() core.Aggregates {
	key := AggregateKey{Ledger: s.ledgerID, Revision: s.revision}
	agg := s.aggCache.GetOrCompute(key, func() core.Aggregates {
		return Project(s.items, s.loc)
	})
	return agg.Clone()
}
