package snapshot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/currency"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Summary carries the derived values some tiers index alongside the payload.
type Summary struct {
	ItemCount  int
	TotalCents int64
}

// Tier is one storage backend for snapshots.
type Tier interface {
	Name() string
	Save(ctx context.Context, sessionID string, payload []byte, summary Summary) error
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Delete(ctx context.Context, sessionID string) error
}

// Store fans snapshot writes out to its tiers in order. It implements
// cart.SnapshotStore.
type Store struct {
	tiers   []Tier
	logg    *logger.Logger
	metrics *metrics.StorefrontMetrics
}

func NewStore(logg *logger.Logger, m *metrics.StorefrontMetrics, tiers ...Tier) (*Store, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if len(tiers) == 0 {
		return nil, errors.New("at least one snapshot tier required")
	}
	return &Store{tiers: tiers, logg: logg, metrics: m}, nil
}

// Save writes items to every tier. A failing tier does not stop the others; the
// combined error is returned.
func (s *Store) Save(ctx context.Context, sessionID string, items []cart.Item) error {
	payload, err := Encode(items)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	totals := cart.CalculateTotals(items)
	summary := Summary{
		ItemCount:  totals.ItemCount,
		TotalCents: currency.ToMinorUnits(totals.Total),
	}

	var errs error
	for _, tier := range s.tiers {
		if err := tier.Save(ctx, sessionID, payload, summary); err != nil {
			s.metrics.IncPersistFailure(tier.Name())
			errs = multierr.Append(errs, fmt.Errorf("%s tier: %w", tier.Name(), err))
		}
	}
	return errs
}

// Delete removes the snapshot from every tier.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	var errs error
	for _, tier := range s.tiers {
		if err := tier.Delete(ctx, sessionID); err != nil {
			s.metrics.IncPersistFailure(tier.Name())
			errs = multierr.Append(errs, fmt.Errorf("%s tier: %w", tier.Name(), err))
		}
	}
	return errs
}

// Load returns the first non-empty snapshot that decodes. Corrupt snapshots are
// logged and treated as absent. It returns nil items and a nil error when no tier
// has a snapshot, and an error only when every tier failed to answer.
func (s *Store) Load(ctx context.Context, sessionID string) ([]cart.Item, error) {
	var errs error
	answered := false
	for _, tier := range s.tiers {
		raw, err := tier.Load(ctx, sessionID)
		if errors.Is(err, ErrNotFound) {
			answered = true
			continue
		}
		if err != nil {
			s.metrics.IncPersistFailure(tier.Name())
			errs = multierr.Append(errs, fmt.Errorf("%s tier: %w", tier.Name(), err))
			continue
		}
		answered = true

		items, err := Decode(raw)
		if err != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"session_id": sessionID,
				"tier":       tier.Name(),
				"error":      err.Error(),
			})
			s.logg.Warn(logCtx, "cart.snapshot.corrupt")
			continue
		}
		if len(items) == 0 {
			continue
		}
		return items, nil
	}
	if !answered {
		return nil, errs
	}
	return nil, nil
}
