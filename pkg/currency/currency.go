// Package currency formats and converts monetary amounts for display and for the
// payment processor, which expects integer minor units.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const minorUnitExponent = 2

type displayFormat struct {
	symbol    string
	thousands string
	decimal   string
	spaced    bool
}

var displayFormats = map[enums.Currency]displayFormat{
	enums.CurrencyBRL: {symbol: "R$", thousands: ".", decimal: ",", spaced: true},
	enums.CurrencyUSD: {symbol: "$", thousands: ",", decimal: "."},
	enums.CurrencyEUR: {symbol: "€", thousands: ".", decimal: ","},
}

// Format renders amount rounded to two places with the currency's symbol and separators.
// Unknown currencies fall back to "<CODE> 1,234.56".
func Format(amount decimal.Decimal, code enums.Currency) string {
	f, ok := displayFormats[code]
	if !ok {
		f = displayFormat{symbol: string(code), thousands: ",", decimal: ".", spaced: true}
	}

	rounded := amount.Round(minorUnitExponent)
	fixed := rounded.Abs().StringFixed(minorUnitExponent)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if rounded.IsNegative() {
		b.WriteString("-")
	}
	b.WriteString(f.symbol)
	if f.spaced {
		b.WriteString(" ")
	}
	b.WriteString(groupThousands(intPart, f.thousands))
	b.WriteString(f.decimal)
	b.WriteString(fracPart)
	return b.String()
}

// ToMinorUnits converts a major-unit amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(minorUnitExponent).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a major-unit amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorUnitExponent)
}

func groupThousands(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := len(digits) % 3
	var b strings.Builder
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
