package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bellavista-eats/api/internal/enum"
)

// Product is the catalog aggregate used for pricing. It is assembled
// from the database rows (or a mock) by whichever store loads it.
type Product struct {
	ID             uuid.UUID
	Name           string
	BasePrice      decimal.Decimal
	DisableBoxFee  bool
	IsPromotion    bool
	OriginalPrice  decimal.Decimal
	PromotionPrice decimal.Decimal
	Options        []Option
}

// Option is a configurable aspect of a product (size, toppings, ...).
// Options are ordered; the order matters when multiple OVERRIDE options
// are present (later ones win).
type Option struct {
	ID                uuid.UUID
	Name              string
	PricingMode       string
	DefaultChoiceCode string
	Choices           []Choice
}

// Choice is one selectable value of an option. Price is absolute for
// OVERRIDE options and a delta for ADD options.
type Choice struct {
	Code     string
	Label    string
	Price    decimal.Decimal
	ImageURL string
}

// EffectiveBasePrice returns the price the resolver starts from:
// the promotion price when the product is on promotion, otherwise the
// base price.
func (p Product) EffectiveBasePrice() decimal.Decimal {
	if p.IsPromotion {
		return p.PromotionPrice
	}
	return p.BasePrice
}

// choiceByCode returns the choice with the given code, or false when
// the code does not exist within the option.
func (o Option) choiceByCode(code string) (Choice, bool) {
	for _, c := range o.Choices {
		if c.Code == code {
			return c, true
		}
	}
	return Choice{}, false
}

// selectedChoice resolves the choice a selection map picks for this
// option. A missing or unknown code falls back to the option's default
// choice; no default means no selection.
func (o Option) selectedChoice(selections map[string]string) (Choice, bool) {
	if code, ok := selections[o.Name]; ok {
		if c, found := o.choiceByCode(code); found {
			return c, true
		}
	}
	if o.DefaultChoiceCode != "" {
		if c, found := o.choiceByCode(o.DefaultChoiceCode); found {
			return c, true
		}
	}
	return Choice{}, false
}

// ResolvePrice computes the effective unit price of a product for the
// given option selections (option name -> choice code).
//
// Two-phase rule: every selected OVERRIDE option replaces the running
// price first (in product option order, later ones win), then every
// selected ADD option sums its delta onto it. An unselected override
// option with no default leaves the running price unmodified.
func ResolvePrice(p Product, selections map[string]string) decimal.Decimal {
	price := p.EffectiveBasePrice()

	for _, opt := range p.Options {
		if opt.PricingMode != enum.PricingModeOverride {
			continue
		}
		if c, ok := opt.selectedChoice(selections); ok {
			price = c.Price
		}
	}

	for _, opt := range p.Options {
		if opt.PricingMode != enum.PricingModeAdd {
			continue
		}
		if c, ok := opt.selectedChoice(selections); ok {
			price = price.Add(c.Price)
		}
	}

	return price
}

// PriceRange returns the minimum and maximum effective price across
// every combination of the product's option choices. A product with no
// options has a trivial range equal to its effective base price.
//
// Combinations are enumerated with an odometer counter rather than
// recursion so the worst case stays bounded by the product of choice
// counts.
func PriceRange(p Product) (min, max decimal.Decimal) {
	opts := make([]Option, 0, len(p.Options))
	for _, o := range p.Options {
		if len(o.Choices) > 0 {
			opts = append(opts, o)
		}
	}

	if len(opts) == 0 {
		base := p.EffectiveBasePrice()
		return base, base
	}

	idx := make([]int, len(opts))
	sel := make(map[string]string, len(opts))
	first := true

	for {
		for i, o := range opts {
			sel[o.Name] = o.Choices[idx[i]].Code
		}
		price := ResolvePrice(p, sel)
		if first {
			min, max = price, price
			first = false
		} else {
			if price.LessThan(min) {
				min = price
			}
			if price.GreaterThan(max) {
				max = price
			}
		}

		// Advance the odometer; carry right to left.
		i := len(opts) - 1
		for i >= 0 {
			idx[i]++
			if idx[i] < len(opts[i].Choices) {
				break
			}
			idx[i] = 0
			i--
		}
		if i < 0 {
			return min, max
		}
	}
}
