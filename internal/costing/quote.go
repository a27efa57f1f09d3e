package costing

// QuoteLine is one priced batch inside an in-progress client quotation.
// Volume, cost and sale price already include the batch multiplier.
type QuoteLine struct {
	RecipeID       uint    `json:"recipe_id"`
	RecipeName     string  `json:"recipe_name"`
	Volume         float64 `json:"volume"`
	Batches        int     `json:"batches"`
	CostLocal      float64 `json:"cost_local"`
	MarginPct      float64 `json:"margin_pct"`
	SaleLocal      float64 `json:"sale_local"`
	SaleForeign    float64 `json:"sale_foreign"`
	ContainerName  string  `json:"container_name"`
	ContainerUnits int     `json:"container_units"`
}

// NewQuoteLine turns a priced batch into a quotation line, multiplying
// volume, cost, sale price and container count by the batch count. The
// margin is re-derived from the multiplied figures so the line stays
// internally consistent.
func NewQuoteLine(breakdown BatchCostBreakdown, pricing Pricing, batches int) QuoteLine {
	if batches < 1 {
		batches = 1
	}
	n := float64(batches)

	line := QuoteLine{
		RecipeID:       breakdown.RecipeID,
		RecipeName:     breakdown.RecipeName,
		Volume:         breakdown.TargetVolume * n,
		Batches:        batches,
		CostLocal:      breakdown.TotalLocal * n,
		SaleLocal:      pricing.SalePrice * n,
		ContainerName:  breakdown.ContainerName,
		ContainerUnits: breakdown.ContainersNeeded * batches,
	}
	line.MarginPct = MarginFor(line.CostLocal, line.SaleLocal)
	if breakdown.ExchangeRate > 0 {
		line.SaleForeign = line.SaleLocal / breakdown.ExchangeRate
	}
	return line
}

// Reprice applies a direct sale-price edit to one quotation line,
// re-deriving only that line's margin and foreign mirror. The underlying
// cost and every other line are untouched.
func (l QuoteLine) Reprice(salePrice, currentRate float64) QuoteLine {
	l.SaleLocal = salePrice
	l.MarginPct = MarginFor(l.CostLocal, salePrice)
	if currentRate > 0 {
		l.SaleForeign = salePrice / currentRate
	} else {
		l.SaleForeign = 0
	}
	return l
}

// PricePerContainer is the sale price divided across the containers needed,
// or 0 when the line carries no containers.
func (l QuoteLine) PricePerContainer() float64 {
	if l.ContainerUnits <= 0 {
		return 0
	}
	return l.SaleLocal / float64(l.ContainerUnits)
}

// QuoteSummary aggregates an ordered collection of quotation lines into the
// totals a client quotation carries.
type QuoteSummary struct {
	TotalVolume      float64 `json:"total_volume"`
	TotalCostLocal   float64 `json:"total_cost_local"`
	TotalSaleLocal   float64 `json:"total_sale_local"`
	TotalSaleForeign float64 `json:"total_sale_foreign"`
	BlendedMarginPct float64 `json:"blended_margin_pct"`
	PricePerUnit     float64 `json:"price_per_unit"`
}

// SummarizeQuote rolls up the lines of an in-progress quotation. Zero
// totals are valid outputs; no division guard ever escapes as an error.
func SummarizeQuote(lines []QuoteLine, currentRate float64) QuoteSummary {
	var s QuoteSummary
	for _, line := range lines {
		s.TotalVolume += line.Volume
		s.TotalCostLocal += line.CostLocal
		s.TotalSaleLocal += line.SaleLocal
	}
	if currentRate > 0 {
		s.TotalSaleForeign = s.TotalSaleLocal / currentRate
	}
	s.BlendedMarginPct = MarginFor(s.TotalCostLocal, s.TotalSaleLocal)
	if s.TotalVolume > 0 {
		s.PricePerUnit = s.TotalSaleLocal / s.TotalVolume
	}
	return s
}
