package domain

import "fmt"

// ApplyDiscount reduces a minor-unit price by a whole-number percentage,
// rounding half up. Discounts outside 0..100 are clamped.
func ApplyDiscount(priceCents int64, discountPercent int) int64 {
	if discountPercent <= 0 {
		return priceCents
	}
	if discountPercent >= 100 {
		return 0
	}
	remaining := int64(100 - discountPercent)
	return (priceCents*remaining + 50) / 100
}

// FormatCents renders a minor-unit amount as a decimal string, e.g. 2300 -> "23.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
