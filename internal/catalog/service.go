// Package catalog serves the promotional offers attached to a cart: order bumps
// added before payment and upsells shown after it.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type cartSessions interface {
	Get(ctx context.Context, sessionID string) (*cart.Store, error)
}

// Service exposes catalog reads and order-bump cart operations.
type Service interface {
	EligibleOrderBumps(ctx context.Context, sessionID string) ([]OrderBumpDTO, error)
	AddOrderBump(ctx context.Context, sessionID string, bumpID uuid.UUID) (cart.Item, error)
	ActiveUpsells(ctx context.Context) ([]UpsellDTO, error)
	ListOrderBumps(ctx context.Context) ([]OrderBumpDTO, error)
	ListUpsells(ctx context.Context) ([]UpsellDTO, error)
}

type service struct {
	repo     Repository
	sessions cartSessions
}

// NewService wires catalog dependencies.
func NewService(repo Repository, sessions cartSessions) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	if sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart sessions required")
	}
	return &service{repo: repo, sessions: sessions}, nil
}

func (s *service) EligibleOrderBumps(ctx context.Context, sessionID string) ([]OrderBumpDTO, error) {
	store, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	bumps, err := s.repo.ListOrderBumps(ctx, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order bumps")
	}
	return toOrderBumpDTOs(EligibleOrderBumps(bumps, store.Items())), nil
}

// AddOrderBump puts the bump in the cart once. Adding a bump already in the cart
// leaves the cart unchanged.
func (s *service) AddOrderBump(ctx context.Context, sessionID string, bumpID uuid.UUID) (cart.Item, error) {
	if bumpID == uuid.Nil {
		return cart.Item{}, pkgerrors.New(pkgerrors.CodeValidation, "order bump id required")
	}
	store, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return cart.Item{}, err
	}
	bump, err := s.repo.FindOrderBump(ctx, bumpID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cart.Item{}, pkgerrors.New(pkgerrors.CodeNotFound, "order bump not found")
	}
	if err != nil {
		return cart.Item{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order bump")
	}
	if !bump.Active {
		return cart.Item{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order bump is not active")
	}

	item := OrderBumpItem(*bump)
	if existing, ok := store.Get(item.ID); ok {
		return existing, nil
	}
	if err := store.Add(ctx, item); err != nil {
		return cart.Item{}, err
	}
	return item, nil
}

func (s *service) ActiveUpsells(ctx context.Context) ([]UpsellDTO, error) {
	rows, err := s.repo.ListUpsells(ctx, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list upsells")
	}
	return toUpsellDTOs(rows), nil
}

func (s *service) ListOrderBumps(ctx context.Context) ([]OrderBumpDTO, error) {
	rows, err := s.repo.ListOrderBumps(ctx, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order bumps")
	}
	return toOrderBumpDTOs(rows), nil
}

func (s *service) ListUpsells(ctx context.Context) ([]UpsellDTO, error) {
	rows, err := s.repo.ListUpsells(ctx, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list upsells")
	}
	return toUpsellDTOs(rows), nil
}
