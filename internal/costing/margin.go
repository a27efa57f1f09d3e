package costing

// EditedField records which side of the margin/price pair the user touched
// last; the other side is derived from it on every recompute.
type EditedField int

const (
	EditedMargin EditedField = iota
	EditedSalePrice
)

// Pricing is the bidirectional margin/sale-price pair over one cost basis.
// The invariant sale = cost * (1 + margin/100) holds after every Solve, with
// margin clamped to non-negative: a sale price below cost reads as 0%
// margin, not a negative one.
type Pricing struct {
	Cost       float64     `json:"cost"`
	MarginPct  float64     `json:"margin_pct"`
	SalePrice  float64     `json:"sale_price"`
	LastEdited EditedField `json:"last_edited"`
}

// SalePriceFor derives the sale price for a cost and margin percentage.
func SalePriceFor(cost, marginPct float64) float64 {
	return cost * (1 + marginPct/100)
}

// MarginFor derives the margin percentage implied by a cost and sale price,
// clamped to zero. A zero cost basis yields zero margin.
func MarginFor(cost, salePrice float64) float64 {
	if cost <= 0 {
		return 0
	}
	margin := (salePrice - cost) / cost * 100
	if margin < 0 {
		return 0
	}
	return margin
}

// Solve re-establishes the margin/price invariant, driving the recompute
// from whichever field was edited last.
func (p Pricing) Solve() Pricing {
	switch p.LastEdited {
	case EditedSalePrice:
		p.MarginPct = MarginFor(p.Cost, p.SalePrice)
	default:
		if p.MarginPct < 0 {
			p.MarginPct = 0
		}
		p.SalePrice = SalePriceFor(p.Cost, p.MarginPct)
	}
	return p
}

// WithCost re-bases the pair on a new cost and re-solves from the
// last-edited field.
func (p Pricing) WithCost(cost float64) Pricing {
	p.Cost = cost
	return p.Solve()
}

// WithMargin applies a margin edit.
func (p Pricing) WithMargin(marginPct float64) Pricing {
	p.MarginPct = marginPct
	p.LastEdited = EditedMargin
	return p.Solve()
}

// WithSalePrice applies a sale-price edit.
func (p Pricing) WithSalePrice(salePrice float64) Pricing {
	p.SalePrice = salePrice
	p.LastEdited = EditedSalePrice
	return p.Solve()
}
