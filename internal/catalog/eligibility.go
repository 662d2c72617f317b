package catalog

import (
	"sort"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// EligibleOrderBumps returns the active bumps that may be offered for items,
// sorted by display order. A bump qualifies when the product subtotal reaches its
// minimum, every required product is in the cart, and it is not in the cart yet.
func EligibleOrderBumps(bumps []models.OrderBump, items []cart.Item) []models.OrderBump {
	inCart := make(map[string]struct{}, len(items))
	for _, item := range items {
		inCart[item.ID] = struct{}{}
	}
	subtotal := cart.CalculateTotals(items).ProductSubtotal

	out := make([]models.OrderBump, 0, len(bumps))
	for _, bump := range bumps {
		if !bump.Active {
			continue
		}
		if _, ok := inCart[cart.OrderBumpItemID(bump.ID.String())]; ok {
			continue
		}
		if bump.MinCartValue.Valid && subtotal.LessThan(bump.MinCartValue.Decimal) {
			continue
		}
		if !containsAll(inCart, bump.RequiredProductIDs) {
			continue
		}
		out = append(out, bump)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out
}

func containsAll(set map[string]struct{}, ids []string) bool {
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// OrderBumpItem is the cart line that represents bump.
func OrderBumpItem(bump models.OrderBump) cart.Item {
	return cart.Item{
		ID:       cart.OrderBumpItemID(bump.ID.String()),
		Name:     bump.Title,
		Price:    bump.EffectivePrice(),
		Quantity: 1,
		Kind:     enums.ItemKindOrderBump,
	}
}
