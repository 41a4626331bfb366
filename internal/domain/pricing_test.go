package domain

import "testing"

func TestApplyDiscount(t *testing.T) {
	cases := []struct {
		name     string
		price    int64
		discount int
		want     int64
	}{
		{name: "no discount", price: 10000, discount: 0, want: 10000},
		{name: "ten percent", price: 10000, discount: 10, want: 9000},
		{name: "rounds half up", price: 999, discount: 15, want: 849},
		{name: "full discount", price: 5000, discount: 100, want: 0},
		{name: "clamped negative", price: 5000, discount: -5, want: 5000},
		{name: "clamped above hundred", price: 5000, discount: 150, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ApplyDiscount(tc.price, tc.discount); got != tc.want {
				t.Fatalf("ApplyDiscount(%d, %d) = %d, want %d", tc.price, tc.discount, got, tc.want)
			}
		})
	}
}

func TestProductDiscountedPrice(t *testing.T) {
	p := Product{PriceCents: 10000, DiscountPercent: 10}
	if got := p.DiscountedPriceCents(); got != 9000 {
		t.Fatalf("discounted price = %d, want 9000", got)
	}
}

func TestCartTotals(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{ProductID: "prod_a", UnitPriceCents: 10000, DiscountPercent: 10, Quantity: 2},
		{ProductID: "prod_b", UnitPriceCents: 5000, Quantity: 1},
	}}
	if got := cart.TotalItems(); got != 3 {
		t.Fatalf("total items = %d, want 3", got)
	}
	// Displayed cart total uses list prices, not discounted ones.
	if got := cart.TotalPriceCents(); got != 25000 {
		t.Fatalf("total price = %d, want 25000", got)
	}
}

func TestFormatCents(t *testing.T) {
	if got := FormatCents(23000); got != "230.00" {
		t.Fatalf("FormatCents(23000) = %q", got)
	}
	if got := FormatCents(-105); got != "-1.05" {
		t.Fatalf("FormatCents(-105) = %q", got)
	}
}
