package cart

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// OrderBumpPrefix marks order-bump line items by identifier. Older clients rely on
// it instead of Kind, so it is honoured alongside the explicit kind.
const OrderBumpPrefix = "order-bump-"

const maxItemIDLength = 200

// Item is a line item in a cart. Quantity zero means the item is absent.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Kind     enums.ItemKind  `json:"kind,omitempty"`
}

// OrderBumpItemID returns the cart identifier used for the given order bump.
func OrderBumpItemID(bumpID string) string {
	return OrderBumpPrefix + bumpID
}

// IsOrderBump reports whether the item counts towards the order-bump subtotal.
func (i Item) IsOrderBump() bool {
	return i.Kind == enums.ItemKindOrderBump || strings.HasPrefix(i.ID, OrderBumpPrefix)
}

// LineTotal is price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Validate checks the fields required to place the item in a cart.
func (i Item) Validate() error {
	details := map[string]string{}
	id := strings.TrimSpace(i.ID)
	switch {
	case id == "":
		details["id"] = "is required"
	case len(id) > maxItemIDLength:
		details["id"] = "is too long"
	}
	if i.Price.IsNegative() {
		details["price"] = "must be non-negative"
	}
	if i.Quantity < 0 {
		details["quantity"] = "must be non-negative"
	}
	if i.Kind != "" && !i.Kind.IsValid() {
		details["kind"] = "is invalid"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cart item").WithDetails(details)
	}
	return nil
}

func (i Item) normalized() Item {
	i.ID = strings.TrimSpace(i.ID)
	if i.Quantity < 0 {
		i.Quantity = 0
	}
	if !i.Kind.IsValid() {
		if strings.HasPrefix(i.ID, OrderBumpPrefix) {
			i.Kind = enums.ItemKindOrderBump
		} else {
			i.Kind = enums.ItemKindProduct
		}
	}
	return i
}

// Normalize fills in missing kinds, drops items with an empty identifier or a
// quantity of zero or less, and keeps only the last occurrence of a repeated
// identifier at the position of its first occurrence.
func Normalize(items []Item) []Item {
	out := make([]Item, 0, len(items))
	index := make(map[string]int, len(items))
	for _, raw := range items {
		item := raw.normalized()
		if item.ID == "" {
			continue
		}
		if pos, ok := index[item.ID]; ok {
			out[pos] = item
			continue
		}
		index[item.ID] = len(out)
		out = append(out, item)
	}

	kept := out[:0]
	for _, item := range out {
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	return kept
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
