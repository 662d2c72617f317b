package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository reads order bumps and upsell offers.
type Repository interface {
	ListOrderBumps(ctx context.Context, activeOnly bool) ([]models.OrderBump, error)
	FindOrderBump(ctx context.Context, id uuid.UUID) (*models.OrderBump, error)
	ListUpsells(ctx context.Context, activeOnly bool) ([]models.UpsellProduct, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListOrderBumps(ctx context.Context, activeOnly bool) ([]models.OrderBump, error) {
	var rows []models.OrderBump
	q := r.db.WithContext(ctx).Model(&models.OrderBump{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Order("display_order ASC").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOrderBump returns gorm.ErrRecordNotFound when no bump has the id.
func (r *repository) FindOrderBump(ctx context.Context, id uuid.UUID) (*models.OrderBump, error) {
	var row models.OrderBump
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListUpsells(ctx context.Context, activeOnly bool) ([]models.UpsellProduct, error) {
	var rows []models.UpsellProduct
	q := r.db.WithContext(ctx).Model(&models.UpsellProduct{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Order("display_order ASC").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
