package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// Line carries the pricing inputs for a single cart line. Qty and UnitRate are
// nil until the corresponding field has been filled by the user or the catalog;
// a line with a missing input has no amount at all, which is distinct from an
// amount of zero.
type Line struct {
	Qty      *int64
	UnitRate *Money
}

// Amount computes the line amount (quantity times unit rate). The second
// return value reports whether the amount is defined; it is false whenever
// either input is absent.
func (l Line) Amount() (Money, bool) {
	if l.Qty == nil || l.UnitRate == nil {
		return 0, false
	}
	return Money(*l.Qty) * *l.UnitRate, true
}

// Adjustments holds the cart-level modifiers applied on top of the subtotal.
// Zero values stand in for unset fields.
type Adjustments struct {
	Discount Money
	Tax      Money
}

// Summary aggregates computed pricing components for a cart.
type Summary struct {
	Subtotal Money
	Discount Money
	Tax      Money
	Total    Money
}

// Compute derives cart totals from the given lines and adjustments. Lines
// without a defined amount are skipped. The result depends only on the inputs:
// calling Compute twice with unchanged arguments yields identical summaries,
// and line order never affects the outcome.
func Compute(lines []Line, adj Adjustments) Summary {
	var subtotal Money
	for _, l := range lines {
		amount, ok := l.Amount()
		if !ok {
			continue
		}
		subtotal += amount
	}
	return Summary{
		Subtotal: subtotal,
		Discount: adj.Discount,
		Tax:      adj.Tax,
		Total:    subtotal - adj.Discount + adj.Tax,
	}
}
