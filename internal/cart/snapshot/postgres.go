package snapshot

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// PostgresTier keeps the durable copy of each snapshot in cart_snapshots.
type PostgresTier struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostgresTier(db *gorm.DB) (*PostgresTier, error) {
	if db == nil {
		return nil, errors.New("db required")
	}
	return &PostgresTier{db: db, now: time.Now}, nil
}

func (t *PostgresTier) Name() string { return "postgres" }

func (t *PostgresTier) Save(ctx context.Context, sessionID string, payload []byte, summary Summary) error {
	now := t.now().UTC()
	row := models.CartSnapshot{
		SessionID:  sessionID,
		Payload:    string(payload),
		ItemCount:  summary.ItemCount,
		TotalCents: summary.TotalCents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "item_count", "total_cents", "updated_at"}),
		}).
		Create(&row).Error
}

func (t *PostgresTier) Load(ctx context.Context, sessionID string) ([]byte, error) {
	var row models.CartSnapshot
	err := t.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(row.Payload), nil
}

func (t *PostgresTier) Delete(ctx context.Context, sessionID string) error {
	return t.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.CartSnapshot{}).Error
}
