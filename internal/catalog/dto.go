package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// OrderBumpDTO is the API shape of an order bump.
type OrderBumpDTO struct {
	ID                 uuid.UUID        `json:"id"`
	ItemID             string           `json:"item_id"`
	Title              string           `json:"title"`
	Description        *string          `json:"description,omitempty"`
	ImageURL           *string          `json:"image_url,omitempty"`
	Price              decimal.Decimal  `json:"price"`
	DiscountPrice      *decimal.Decimal `json:"discount_price,omitempty"`
	EffectivePrice     decimal.Decimal  `json:"effective_price"`
	Active             bool             `json:"active"`
	DisplayOrder       int              `json:"display_order"`
	MinCartValue       *decimal.Decimal `json:"min_cart_value,omitempty"`
	RequiredProductIDs []string         `json:"required_product_ids"`
	CreatedAt          time.Time        `json:"created_at"`
}

// UpsellDTO is the API shape of an upsell offer.
type UpsellDTO struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	Description    *string          `json:"description,omitempty"`
	ImageURL       *string          `json:"image_url,omitempty"`
	CheckoutURL    *string          `json:"checkout_url,omitempty"`
	Price          decimal.Decimal  `json:"price"`
	DiscountPrice  *decimal.Decimal `json:"discount_price,omitempty"`
	EffectivePrice decimal.Decimal  `json:"effective_price"`
	Active         bool             `json:"active"`
	DisplayOrder   int              `json:"display_order"`
	CreatedAt      time.Time        `json:"created_at"`
}

func toOrderBumpDTOs(rows []models.OrderBump) []OrderBumpDTO {
	out := make([]OrderBumpDTO, 0, len(rows))
	for _, row := range rows {
		required := row.RequiredProductIDs
		if required == nil {
			required = []string{}
		}
		out = append(out, OrderBumpDTO{
			ID:                 row.ID,
			ItemID:             OrderBumpItem(row).ID,
			Title:              row.Title,
			Description:        row.Description,
			ImageURL:           row.ImageURL,
			Price:              row.Price,
			DiscountPrice:      nullDecimal(row.DiscountPrice),
			EffectivePrice:     row.EffectivePrice(),
			Active:             row.Active,
			DisplayOrder:       row.DisplayOrder,
			MinCartValue:       nullDecimal(row.MinCartValue),
			RequiredProductIDs: required,
			CreatedAt:          row.CreatedAt,
		})
	}
	return out
}

func toUpsellDTOs(rows []models.UpsellProduct) []UpsellDTO {
	out := make([]UpsellDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, UpsellDTO{
			ID:             row.ID,
			Name:           row.Name,
			Description:    row.Description,
			ImageURL:       row.ImageURL,
			CheckoutURL:    row.CheckoutURL,
			Price:          row.Price,
			DiscountPrice:  nullDecimal(row.DiscountPrice),
			EffectivePrice: row.EffectivePrice(),
			Active:         row.Active,
			DisplayOrder:   row.DisplayOrder,
			CreatedAt:      row.CreatedAt,
		})
	}
	return out
}

func nullDecimal(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}
