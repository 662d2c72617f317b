package cart

import "github.com/shopspring/decimal"

// Totals splits a cart's value between ordinary products and order bumps.
type Totals struct {
	ProductSubtotal decimal.Decimal `json:"product_subtotal"`
	OrderBumpTotal  decimal.Decimal `json:"order_bump_total"`
	Total           decimal.Decimal `json:"total"`
	ItemCount       int             `json:"item_count"`
}

// CalculateTotals partitions items into products and order bumps and sums each side.
func CalculateTotals(items []Item) Totals {
	totals := Totals{
		ProductSubtotal: decimal.Zero,
		OrderBumpTotal:  decimal.Zero,
	}
	for _, item := range items {
		line := item.LineTotal()
		if item.IsOrderBump() {
			totals.OrderBumpTotal = totals.OrderBumpTotal.Add(line)
		} else {
			totals.ProductSubtotal = totals.ProductSubtotal.Add(line)
		}
		totals.ItemCount += item.Quantity
	}
	totals.Total = totals.ProductSubtotal.Add(totals.OrderBumpTotal)
	return totals
}

// Total is the sum of price times quantity over items.
func Total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// Count is the sum of quantities over items.
func Count(items []Item) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}
