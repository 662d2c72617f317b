package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UpsellProduct is a one-click offer shown after payment on the processor's upsell page.
type UpsellProduct struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name          string              `gorm:"column:name;not null"`
	Description   *string             `gorm:"column:description"`
	ImageURL      *string             `gorm:"column:image_url"`
	CheckoutURL   *string             `gorm:"column:checkout_url"`
	Price         decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountPrice decimal.NullDecimal `gorm:"column:discount_price;type:numeric(12,2)"`
	Active        bool                `gorm:"column:active;not null"`
	DisplayOrder  int                 `gorm:"column:display_order;not null;default:0"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (UpsellProduct) TableName() string { return "upsell_products" }

func (p *UpsellProduct) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// EffectivePrice is the discounted price when one is set, otherwise the list price.
func (p UpsellProduct) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.Valid {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}
