package cart

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bellavista-eats/api/internal/catalog"
)

// Line is one configured product in a cart. Two different
// configurations of the same product occupy distinct lines.
type Line struct {
	ProductID     uuid.UUID
	ProductName   string
	Selections    map[string]string
	UnitPrice     decimal.Decimal
	Quantity      int32
	DisableBoxFee bool
}

// Key identifies a line: product ID plus the canonical serialization of
// its selections.
func (l Line) Key() string {
	return LineKey(l.ProductID, l.Selections)
}

// LineKey serializes a product ID and its option selections into a
// stable identity string. Option names are sorted so key equality does
// not depend on map iteration order.
func LineKey(productID uuid.UUID, selections map[string]string) string {
	names := make([]string, 0, len(selections))
	for name := range selections {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(productID.String())
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(selections[name])
	}
	return b.String()
}

// Cart holds the lines of an in-progress order. It is client-session
// scoped and rebuilt on every mutation; it is not shared across
// requests.
type Cart struct {
	lines []Line
	index map[string]int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{index: make(map[string]int)}
}

// Lines returns the cart's lines in insertion order.
func (c *Cart) Lines() []Line {
	return c.lines
}

// IsEmpty reports whether no line has a positive quantity.
func (c *Cart) IsEmpty() bool {
	for _, l := range c.lines {
		if l.Quantity > 0 {
			return false
		}
	}
	return true
}

// Add puts a configured product into the cart. An existing line with
// the same configuration has its quantity increased instead.
func (c *Cart) Add(p catalog.Product, selections map[string]string, quantity int32) {
	if quantity <= 0 {
		return
	}
	key := LineKey(p.ID, selections)
	if i, ok := c.index[key]; ok {
		c.lines[i].Quantity += quantity
		return
	}
	c.lines = append(c.lines, Line{
		ProductID:     p.ID,
		ProductName:   p.Name,
		Selections:    selections,
		UnitPrice:     catalog.ResolvePrice(p, selections),
		Quantity:      quantity,
		DisableBoxFee: p.DisableBoxFee,
	})
	c.index[key] = len(c.lines) - 1
}

// Increment raises a line's quantity by one.
func (c *Cart) Increment(key string) {
	if i, ok := c.index[key]; ok {
		c.lines[i].Quantity++
	}
}

// Decrement lowers a line's quantity by one. Reaching zero removes the
// line; quantity never goes negative.
func (c *Cart) Decrement(key string) {
	i, ok := c.index[key]
	if !ok {
		return
	}
	if c.lines[i].Quantity > 1 {
		c.lines[i].Quantity--
		return
	}
	c.remove(i)
}

// Remove drops a line regardless of quantity.
func (c *Cart) Remove(key string) {
	if i, ok := c.index[key]; ok {
		c.remove(i)
	}
}

func (c *Cart) remove(i int) {
	delete(c.index, c.lines[i].Key())
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].Key()] = j
	}
}

// Totals is the aggregated checkout math for a cart.
type Totals struct {
	// Subtotal is the sum of unit price x quantity over all lines,
	// rounded to 2 decimal places. Excludes box and delivery fees.
	Subtotal decimal.Decimal

	// BoxFee is the flat packaging surcharge, zero when it does not
	// apply. It is charged once per order, never per line.
	BoxFee decimal.Decimal
}

// Total is the subtotal plus the box fee.
func (t Totals) Total() decimal.Decimal {
	return t.Subtotal.Add(t.BoxFee)
}

// Aggregate computes the cart's totals. boxFee is the restaurant's
// configured per-order surcharge; it applies once when it is non-zero
// and at least one line's product is box-fee eligible.
func Aggregate(lines []Line, boxFee decimal.Decimal) Totals {
	subtotal := decimal.Zero
	eligible := false
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)))
		if !l.DisableBoxFee {
			eligible = true
		}
	}

	fee := decimal.Zero
	if eligible && boxFee.IsPositive() {
		fee = boxFee.Round(2)
	}

	return Totals{
		Subtotal: subtotal.Round(2),
		BoxFee:   fee,
	}
}
