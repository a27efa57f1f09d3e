// Package costing implements the recipe cost-scaling and pricing engine.
//
// Every function here is a pure, synchronous computation over its inputs.
// Persistence and presentation are external collaborators reached only
// through the narrow source interfaces declared in this package; missing
// data always degrades to zero-valued results instead of errors.
package costing

import "context"

const (
	// BaseVolume is the reference batch size, in litres, at which every
	// stored recipe quantity is defined. All scaling is linear in
	// target volume / BaseVolume.
	BaseVolume = 200.0

	// SurchargeRate is the import/logistics markup applied to the foreign
	// base price of foreign-quoted ingredients only.
	SurchargeRate = 0.03

	// DefaultMonthlyVolume is the assumed monthly production volume used
	// for overhead allocation: 8 batches per day over 20 working days at
	// BaseVolume litres each.
	DefaultMonthlyVolume = 8 * 20 * BaseVolume
)

// PriceBasis distinguishes the two ways a price observation can be
// denominated. The distinction drives currency normalization and the
// surcharge rule, so it is an explicit variant rather than a rate
// threshold comparison scattered through the math.
type PriceBasis int

const (
	// BasisFixedLocal marks a price recorded directly in local currency.
	// It is immune to exchange-rate movement.
	BasisFixedLocal PriceBasis = iota

	// BasisForeignQuoted marks a price whose amount is a foreign-currency
	// base value; it must be re-quoted at the simulation's current
	// exchange rate before use.
	BasisForeignQuoted
)

// LatestPrice mirrors the most recent persisted purchase observation for an
// ingredient. A zero value means no observation exists.
type LatestPrice struct {
	UnitPrice    float64
	QuoteRate    float64
	FreightAddon float64
	OtherAddon   float64
}

// PriceSource supplies the latest persisted purchase observation for an
// ingredient. Implementations return the zero value when nothing is
// recorded; lookup failures are the implementation's concern and must not
// surface here.
type PriceSource interface {
	LatestIngredientPrice(ctx context.Context, ingredientID uint) LatestPrice
}

// ContainerQuote mirrors the latest persisted container price entry plus the
// container's capacity. Container unit prices are foreign-currency base
// amounts, re-quoted like foreign ingredient prices.
type ContainerQuote struct {
	UnitPriceForeign float64
	Capacity         float64
}

// ContainerSource supplies the latest container price observation. A zero
// value means the container is unknown or has no recorded price.
type ContainerSource interface {
	LatestContainerPrice(ctx context.Context, containerID uint) ContainerQuote
}

// ManualOverride is a caller-supplied price that takes precedence over any
// persisted observation. A zero UnitPrice means no override. QuoteRate above
// 1.0 marks the override as a foreign base amount.
type ManualOverride struct {
	UnitPrice float64
	QuoteRate float64
}

// ResolvedPrice is the authoritative unit price for one simulation line.
// Amount is local currency for BasisFixedLocal and the foreign base amount
// for BasisForeignQuoted. The add-ons are per-unit local-currency costs that
// ride along with persisted purchase records.
type ResolvedPrice struct {
	Basis          PriceBasis
	Amount         float64
	HistoricalRate float64
	FreightAddon   float64
	OtherAddon     float64
}

// LocalBaseUnitCost expresses the resolved price in local currency at
// today's exchange rate, excluding add-ons and surcharge. A fixed-local
// price is returned unchanged regardless of the current rate; this branch
// must never re-quote a fixed-local cost.
func (p ResolvedPrice) LocalBaseUnitCost(currentRate float64) float64 {
	if p.Basis == BasisForeignQuoted {
		return p.Amount * currentRate
	}
	return p.Amount
}

// ForeignBase returns the foreign-currency base amount, or 0 for a
// fixed-local price.
func (p ResolvedPrice) ForeignBase() float64 {
	if p.Basis == BasisForeignQuoted {
		return p.Amount
	}
	return 0
}

// Addons returns the per-unit local-currency freight and other costs
// attached to the authoritative purchase record.
func (p ResolvedPrice) Addons() float64 {
	return p.FreightAddon + p.OtherAddon
}

// ResolvePrice determines the authoritative price for an ingredient.
//
// Precedence: a manual override with a positive unit price wins outright and
// skips any lookup. Otherwise a persisted ingredient (non-zero id) resolves
// to its most recent observation. An ad-hoc line with no override prices at
// zero. A recorded quote rate at or below 1.0 means fixed local currency by
// design, not bad data.
func ResolvePrice(ctx context.Context, src PriceSource, ingredientID uint, manual ManualOverride) ResolvedPrice {
	if manual.UnitPrice > 0 {
		if manual.QuoteRate > 1 {
			return ResolvedPrice{
				Basis:          BasisForeignQuoted,
				Amount:         manual.UnitPrice,
				HistoricalRate: manual.QuoteRate,
			}
		}
		return ResolvedPrice{Basis: BasisFixedLocal, Amount: manual.UnitPrice}
	}

	if ingredientID == 0 || src == nil {
		return ResolvedPrice{Basis: BasisFixedLocal}
	}

	latest := src.LatestIngredientPrice(ctx, ingredientID)
	if latest.QuoteRate > 1 {
		return ResolvedPrice{
			Basis:          BasisForeignQuoted,
			Amount:         latest.UnitPrice,
			HistoricalRate: latest.QuoteRate,
			FreightAddon:   latest.FreightAddon,
			OtherAddon:     latest.OtherAddon,
		}
	}
	return ResolvedPrice{
		Basis:        BasisFixedLocal,
		Amount:       latest.UnitPrice,
		FreightAddon: latest.FreightAddon,
		OtherAddon:   latest.OtherAddon,
	}
}
