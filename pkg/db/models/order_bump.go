package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderBump is a promotional add-on offered during checkout.
type OrderBump struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Title              string              `gorm:"column:title;not null"`
	Description        *string             `gorm:"column:description"`
	ImageURL           *string             `gorm:"column:image_url"`
	Price              decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountPrice      decimal.NullDecimal `gorm:"column:discount_price;type:numeric(12,2)"`
	Active             bool                `gorm:"column:active;not null"`
	DisplayOrder       int                 `gorm:"column:display_order;not null;default:0"`
	MinCartValue       decimal.NullDecimal `gorm:"column:min_cart_value;type:numeric(12,2)"`
	RequiredProductIDs []string            `gorm:"column:required_product_ids;type:jsonb;serializer:json"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderBump) TableName() string { return "order_bumps" }

func (b *OrderBump) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// EffectivePrice is the discounted price when one is set, otherwise the list price.
func (b OrderBump) EffectivePrice() decimal.Decimal {
	if b.DiscountPrice.Valid {
		return b.DiscountPrice.Decimal
	}
	return b.Price
}
