package cart

import (
	"context"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/storefront-backend/internal/guard"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// SnapshotStore reads and writes persisted carts.
type SnapshotStore interface {
	Persister
	Load(ctx context.Context, sessionID string) ([]Item, error)
}

// SessionsOptions configures the registry. IdleTTL is how long an unused,
// unobserved store stays in memory; zero keeps stores until they are evicted.
type SessionsOptions struct {
	Snapshots      SnapshotStore
	LoadTimeout    time.Duration
	PersistTimeout time.Duration
	IdleTTL        time.Duration
	Logger         *logger.Logger
	Metrics        *metrics.StorefrontMetrics
}

// Sessions owns one Store per cart session, restoring each from its snapshot the
// first time it is requested. Each process assumes it is the only writer of the
// sessions it holds; a store is reloaded from its snapshot only after it has been
// dropped for idleness.
type Sessions struct {
	mu     sync.Mutex
	stores map[string]*session
	loads  singleflight.Group

	snapshots      SnapshotStore
	loadTimeout    time.Duration
	persistTimeout time.Duration
	idleTTL        time.Duration
	now            func() time.Time
	logg           *logger.Logger
	metrics        *metrics.StorefrontMetrics
}

type session struct {
	store    *Store
	lastSeen time.Time
}

func NewSessions(opts SessionsOptions) *Sessions {
	logg := opts.Logger
	if logg == nil {
		logg = discardLogger
	}
	return &Sessions{
		stores:         map[string]*session{},
		snapshots:      opts.Snapshots,
		loadTimeout:    opts.LoadTimeout,
		persistTimeout: opts.PersistTimeout,
		idleTTL:        opts.IdleTTL,
		now:            time.Now,
		logg:           logg,
		metrics:        opts.Metrics,
	}
}

// ValidateSessionID rejects identifiers that are not safe to use as storage keys.
func ValidateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid session id").
			WithDetails(map[string]string{"session_id": "must be 1-128 letters, digits, '-' or '_'"})
	}
	return nil
}

// Get returns the session's store, building it from the persisted snapshot when
// needed. A missing, unreadable or slow snapshot yields an empty cart.
func (s *Sessions) Get(ctx context.Context, sessionID string) (*Store, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if store, ok := s.touch(sessionID); ok {
		return store, nil
	}

	v, _, _ := s.loads.Do(sessionID, func() (any, error) {
		if store, ok := s.touch(sessionID); ok {
			return store, nil
		}
		store := NewStore(sessionID, s.restore(ctx, sessionID),
			WithPersister(s.persister()),
			WithPersistTimeout(s.persistTimeout),
			WithLogger(s.logg),
			WithMetrics(s.metrics),
		)
		s.mu.Lock()
		s.stores[sessionID] = &session{store: store, lastSeen: s.now()}
		s.mu.Unlock()
		return store, nil
	})
	return v.(*Store), nil
}

// Peek returns the store for sessionID if it is already loaded.
func (s *Sessions) Peek(sessionID string) (*Store, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.stores[sessionID]
	if !ok {
		return nil, false
	}
	return entry.store, true
}

// Len reports how many stores are held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stores)
}

// Evict drops the in-memory store so the next Get reloads it from the snapshot.
// A store that is still observed or writing its snapshot is kept, and Evict
// reports false.
func (s *Sessions) Evict(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.stores[sessionID]
	if !ok {
		return true
	}
	if !entry.store.Idle() {
		return false
	}
	delete(s.stores, sessionID)
	return true
}

// Sweep drops every idle store not used for IdleTTL and returns how many went.
func (s *Sessions) Sweep() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, entry := range s.stores {
		if entry.lastSeen.After(cutoff) || !entry.store.Idle() {
			continue
		}
		delete(s.stores, id)
		dropped++
	}
	return dropped
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Sessions) RunSweeper(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
					"dropped": n,
					"held":    s.Len(),
				}), "cart.sessions.swept")
			}
		}
	}
}

func (s *Sessions) touch(sessionID string) (*Store, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.stores[sessionID]
	if !ok {
		return nil, false
	}
	entry.lastSeen = s.now()
	return entry.store, true
}

func (s *Sessions) persister() Persister {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots
}

func (s *Sessions) restore(ctx context.Context, sessionID string) []Item {
	if s.snapshots == nil {
		return nil
	}
	items, err := guard.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout, func(ctx context.Context) ([]Item, error) {
		return s.snapshots.Load(ctx, sessionID)
	})
	if err != nil {
		if guard.IsTimeout(err) {
			s.metrics.IncTimeout("cart_load")
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		s.logg.Warn(logCtx, "cart.restore.failed")
		return nil
	}
	return items
}
