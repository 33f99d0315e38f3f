package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bellavista-eats/api/internal/catalog"
	"github.com/bellavista-eats/api/internal/enum"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func burger() catalog.Product {
	return catalog.Product{
		ID:        uuid.New(),
		Name:      "Burger",
		BasePrice: dec("6.90"),
		Options: []catalog.Option{
			{
				Name:        "Extra",
				PricingMode: enum.PricingModeAdd,
				Choices: []catalog.Choice{
					{Code: "BACON", Label: "Bacon", Price: dec("1.20")},
				},
			},
		},
	}
}

func drink() catalog.Product {
	return catalog.Product{
		ID:            uuid.New(),
		Name:          "Cola",
		BasePrice:     dec("2.00"),
		DisableBoxFee: true,
	}
}

func TestAdd_SameConfigurationMergesLines(t *testing.T) {
	c := New()
	p := burger()

	c.Add(p, map[string]string{"Extra": "BACON"}, 1)
	c.Add(p, map[string]string{"Extra": "BACON"}, 2)

	if len(c.Lines()) != 1 {
		t.Fatalf("expected 1 line, got %d", len(c.Lines()))
	}
	if c.Lines()[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", c.Lines()[0].Quantity)
	}
}

func TestAdd_DifferentConfigurationsAreDistinctLines(t *testing.T) {
	c := New()
	p := burger()

	c.Add(p, nil, 1)
	c.Add(p, map[string]string{"Extra": "BACON"}, 1)

	if len(c.Lines()) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(c.Lines()))
	}
}

func TestDecrement_RemovesLineAtZero(t *testing.T) {
	c := New()
	p := burger()
	c.Add(p, nil, 1)
	key := c.Lines()[0].Key()

	c.Decrement(key)
	if !c.IsEmpty() {
		t.Fatal("expected empty cart")
	}

	// Decrementing a removed line must not panic or go negative.
	c.Decrement(key)
	if !c.IsEmpty() {
		t.Fatal("expected cart to stay empty")
	}
}

func TestAggregate_Subtotal(t *testing.T) {
	c := New()
	c.Add(burger(), map[string]string{"Extra": "BACON"}, 2) // 8.10 x 2
	c.Add(drink(), nil, 1)                                  // 2.00

	totals := Aggregate(c.Lines(), decimal.Zero)
	if !totals.Subtotal.Equal(dec("18.20")) {
		t.Fatalf("expected subtotal 18.20, got %s", totals.Subtotal)
	}
}

func TestAggregate_BoxFeeAppliedOncePerOrder(t *testing.T) {
	c := New()
	c.Add(burger(), nil, 3)
	c.Add(burger(), map[string]string{"Extra": "BACON"}, 2)

	totals := Aggregate(c.Lines(), dec("0.50"))
	if !totals.BoxFee.Equal(dec("0.50")) {
		t.Fatalf("expected single box fee 0.50, got %s", totals.BoxFee)
	}
}

func TestAggregate_BoxFeeSkippedWhenNoEligibleLine(t *testing.T) {
	c := New()
	c.Add(drink(), nil, 2)

	totals := Aggregate(c.Lines(), dec("0.50"))
	if !totals.BoxFee.IsZero() {
		t.Fatalf("expected no box fee, got %s", totals.BoxFee)
	}
}

func TestAggregate_BoxFeeSkippedWhenFeeIsZero(t *testing.T) {
	c := New()
	c.Add(burger(), nil, 1)

	totals := Aggregate(c.Lines(), decimal.Zero)
	if !totals.BoxFee.IsZero() {
		t.Fatalf("expected no box fee, got %s", totals.BoxFee)
	}
}

func TestLineKey_StableAcrossMapOrder(t *testing.T) {
	id := uuid.New()
	a := LineKey(id, map[string]string{"Size": "L", "Extra": "CHEESE"})
	b := LineKey(id, map[string]string{"Extra": "CHEESE", "Size": "L"})
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
}
