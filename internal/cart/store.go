// Package cart holds the per-session cart state, its derived totals and the
// rules for keeping that state in sync with persisted snapshots.
package cart

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/guard"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// ChangeSource tells observers who caused a change.
type ChangeSource string

const (
	// SourceLocal is a change made through this service's own API.
	SourceLocal ChangeSource = "local"
	// SourceHost is a change applied from a host page update.
	SourceHost ChangeSource = "host"
)

// Operation names carried by Change.Op and the cart mutation metric.
const (
	// OpAdd inserts a line or raises its quantity.
	OpAdd = "add"
	// OpSetQuantity changes the quantity of an existing line.
	OpSetQuantity = "set_quantity"
	// OpRemove drops a line.
	OpRemove = "remove"
	// OpClear empties the cart.
	OpClear = "clear"
	// OpReplace swaps in a whole cart, usually from the host page.
	OpReplace = "replace"
)

// Change describes a committed mutation.
type Change struct {
	SessionID string
	Op        string
	Source    ChangeSource
	Items     []Item
	Totals    Totals
}

// Observer is called after every committed mutation, in commit order. It must
// not mutate the store it observes.
type Observer func(ctx context.Context, change Change)

// Persister writes cart snapshots. Delete is used once the cart becomes empty.
type Persister interface {
	Save(ctx context.Context, sessionID string, items []Item) error
	Delete(ctx context.Context, sessionID string) error
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPersister sends every committed snapshot to p in the background.
func WithPersister(p Persister) StoreOption {
	return func(s *Store) { s.persister = p }
}

// WithPersistTimeout bounds each snapshot write. Zero uses guard.DefaultTimeout.
func WithPersistTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.persistTimeout = d }
}

// WithLogger sets where failed snapshot writes are reported. Nil is ignored.
func WithLogger(logg *logger.Logger) StoreOption {
	return func(s *Store) {
		if logg != nil {
			s.logg = logg
		}
	}
}

// WithMetrics counts mutations and snapshot timeouts on m.
func WithMetrics(m *metrics.StorefrontMetrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// Store is the authoritative cart of one session. Mutations are serialized and
// observers see them in commit order. Snapshot writes and observer callbacks run
// outside the cart lock, so reads never wait on a slow tier or subscriber; only
// the newest pending snapshot is written.
type Store struct {
	mu        sync.Mutex
	sessionID string
	items     []Item

	persister      Persister
	persistTimeout time.Duration
	writer         *guard.Latest[[]Item]
	logg           *logger.Logger
	metrics        *metrics.StorefrontMetrics

	observers    map[uint64]Observer
	nextObserver uint64

	notifyMu sync.Mutex
	outbox   []queuedChange
}

type queuedChange struct {
	ctx       context.Context
	change    Change
	observers []Observer
}

var discardLogger = logger.New(logger.Options{ServiceName: "cart", Output: io.Discard})

// NewStore builds a store seeded with initial, which is normalized first.
func NewStore(sessionID string, initial []Item, opts ...StoreOption) *Store {
	s := &Store{
		sessionID:      sessionID,
		items:          Normalize(initial),
		persistTimeout: guard.DefaultTimeout,
		logg:           discardLogger,
		observers:      map[uint64]Observer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.persister != nil {
		s.writer = guard.NewLatest(s.persist)
	}
	return s
}

func (s *Store) SessionID() string {
	return s.sessionID
}

// Items returns a copy of the current line items.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Get returns the line item with the given identifier.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.items[idx], true
	}
	return Item{}, false
}

func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Total(s.items)
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Count(s.items)
}

func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CalculateTotals(s.items)
}

// Add inserts item, or increases the quantity of the existing line with the same
// identifier. A quantity of zero or less is treated as one.
func (s *Store) Add(ctx context.Context, item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	item = item.normalized()
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	s.mutate(ctx, SourceLocal, func() (string, bool) {
		if idx := s.indexOf(item.ID); idx >= 0 {
			s.items[idx].Quantity += item.Quantity
		} else {
			s.items = append(s.items, item)
		}
		return OpAdd, true
	})
	return nil
}

// SetQuantity sets the quantity of an existing line. Negative values are clamped
// to zero and zero removes the line. It returns false when no line has the id.
func (s *Store) SetQuantity(ctx context.Context, id string, quantity int) bool {
	return s.adjust(ctx, id, func(int) int { return quantity })
}

// Increment adds one to the quantity of an existing line.
func (s *Store) Increment(ctx context.Context, id string) bool {
	return s.adjust(ctx, id, func(q int) int { return q + 1 })
}

// Decrement subtracts one from the quantity of an existing line, removing it at zero.
func (s *Store) Decrement(ctx context.Context, id string) bool {
	return s.adjust(ctx, id, func(q int) int { return q - 1 })
}

// Remove deletes a line. Removing an absent line is a no-op that returns false.
func (s *Store) Remove(ctx context.Context, id string) bool {
	return s.mutate(ctx, SourceLocal, func() (string, bool) {
		idx := s.indexOf(id)
		if idx < 0 {
			return "", false
		}
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		return OpRemove, true
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, SourceLocal, func() (string, bool) {
		s.items = nil
		return OpClear, true
	})
}

// Replace swaps the whole cart for items after normalizing them.
func (s *Store) Replace(ctx context.Context, source ChangeSource, items []Item) {
	next := Normalize(items)
	s.mutate(ctx, source, func() (string, bool) {
		s.items = next
		return OpReplace, true
	})
}

// Subscribe registers fn for committed changes and returns a func that removes it.
func (s *Store) Subscribe(fn Observer) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Flush waits until the newest committed snapshot has been written or ctx is done.
func (s *Store) Flush(ctx context.Context) error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Wait(ctx)
}

// Idle reports whether the store has no observers and no snapshot write in
// flight, so dropping it from memory loses nothing.
func (s *Store) Idle() bool {
	s.mu.Lock()
	observed := len(s.observers) > 0
	s.mu.Unlock()
	return !observed && (s.writer == nil || !s.writer.Busy())
}

func (s *Store) adjust(ctx context.Context, id string, next func(int) int) bool {
	return s.mutate(ctx, SourceLocal, func() (string, bool) {
		idx := s.indexOf(id)
		if idx < 0 {
			return "", false
		}
		quantity := max(0, next(s.items[idx].Quantity))
		if quantity == 0 {
			s.items = append(s.items[:idx], s.items[idx+1:]...)
			return OpRemove, true
		}
		s.items[idx].Quantity = quantity
		return OpSetQuantity, true
	})
}

// mutate applies fn under the cart lock and, when fn reports a change, commits
// it and then notifies observers after the lock is released.
func (s *Store) mutate(ctx context.Context, source ChangeSource, fn func() (op string, changed bool)) bool {
	s.mu.Lock()
	op, changed := fn()
	if changed {
		s.commit(ctx, op, source)
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return changed
}

func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// commit queues the snapshot write and the observer callbacks. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, op string, source ChangeSource) {
	s.metrics.IncCartMutation(op)
	snapshot := cloneItems(s.items)
	if s.writer != nil {
		s.writer.Offer(ctx, snapshot)
	}

	if len(s.observers) == 0 {
		return
	}
	observers := make([]Observer, 0, len(s.observers))
	for _, id := range s.observerIDs() {
		observers = append(observers, s.observers[id])
	}
	s.outbox = append(s.outbox, queuedChange{
		ctx: ctx,
		change: Change{
			SessionID: s.sessionID,
			Op:        op,
			Source:    source,
			Items:     snapshot,
			Totals:    CalculateTotals(snapshot),
		},
		observers: observers,
	})
}

// notify delivers queued changes in commit order. Only one caller drains at a
// time; the cart lock is held only to pop the queue.
func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for {
		s.mu.Lock()
		if len(s.outbox) == 0 {
			s.mu.Unlock()
			return
		}
		next := s.outbox[0]
		s.outbox[0] = queuedChange{}
		s.outbox = s.outbox[1:]
		s.mu.Unlock()

		for _, fn := range next.observers {
			fn(next.ctx, next.change)
		}
	}
}

func (s *Store) persist(ctx context.Context, items []Item) {
	err := guard.Run(ctx, s.persistTimeout, func(ctx context.Context) error {
		if len(items) == 0 {
			return s.persister.Delete(ctx, s.sessionID)
		}
		return s.persister.Save(ctx, s.sessionID, items)
	})
	if err == nil {
		return
	}
	if guard.IsTimeout(err) {
		s.metrics.IncTimeout("cart_persist")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"session_id": s.sessionID,
		"error":      err.Error(),
	})
	s.logg.Warn(logCtx, "cart.persist.failed")
}

func (s *Store) observerIDs() []uint64 {
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
