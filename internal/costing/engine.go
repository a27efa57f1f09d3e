package costing

import (
	"context"
	"math"
)

// CostLine is the per-ingredient row of a batch cost breakdown. Local and
// foreign figures are carried side by side; foreign figures are zero for
// fixed-local lines because those costs have no foreign origin to mirror.
type CostLine struct {
	IngredientID uint    `json:"ingredient_id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	Quantity     float64 `json:"quantity"`

	Basis          PriceBasis `json:"basis"`
	HistoricalRate float64    `json:"historical_rate"`

	UnitCostLocal      float64 `json:"unit_cost_local"`
	AddonPerUnit       float64 `json:"addon_per_unit"`
	SurchargeUnitLocal float64 `json:"surcharge_unit_local"`
	UnitCostLocalTotal float64 `json:"unit_cost_local_total"`
	LineTotalLocal     float64 `json:"line_total_local"`

	UnitCostForeign      float64 `json:"unit_cost_foreign"`
	SurchargeUnitForeign float64 `json:"surcharge_unit_foreign"`
	UnitCostForeignTotal float64 `json:"unit_cost_foreign_total"`
	LineTotalForeign     float64 `json:"line_total_foreign"`
}

// BatchCostBreakdown is the full derived cost of one simulated batch. It is
// recomputed from scratch on every input change and never mutated in place.
type BatchCostBreakdown struct {
	RecipeID     uint    `json:"recipe_id"`
	RecipeName   string  `json:"recipe_name"`
	TargetVolume float64 `json:"target_volume"`
	ScaleFactor  float64 `json:"scale_factor"`
	ExchangeRate float64 `json:"exchange_rate"`

	Lines []CostLine `json:"lines"`

	MaterialsBaseLocal      float64 `json:"materials_base_local"`
	MaterialsSurchargeLocal float64 `json:"materials_surcharge_local"`
	MaterialsLocal          float64 `json:"materials_local"`
	MaterialsForeign        float64 `json:"materials_foreign"`

	FreightLocal    float64 `json:"freight_local"`
	OverheadPerUnit float64 `json:"overhead_per_unit"`
	OverheadLocal   float64 `json:"overhead_local"`

	ContainerName    string  `json:"container_name"`
	ContainersNeeded int     `json:"containers_needed"`
	PackagingLocal   float64 `json:"packaging_local"`

	TotalLocal         float64 `json:"total_local"`
	CostPerUnitLocal   float64 `json:"cost_per_unit_local"`
	TotalForeign       float64 `json:"total_foreign"`
	CostPerUnitForeign float64 `json:"cost_per_unit_foreign"`
}

// ContainersNeeded is the ceiling division of volume by container capacity.
// A non-positive capacity means no packaging and yields zero.
func ContainersNeeded(volume, capacity float64) int {
	if capacity <= 0 || volume <= 0 {
		return 0
	}
	return int(math.Ceil(volume / capacity))
}

// ComputeBatchCost runs the full costing pass for one simulation state:
// price resolution, currency normalization, surcharge, scaling and
// aggregation. Degenerate inputs (zero volume, no lines, no capacity)
// produce zero-valued figures, never an error.
func ComputeBatchCost(ctx context.Context, prices PriceSource, containers ContainerSource, state SimulationState) BatchCostBreakdown {
	out := BatchCostBreakdown{
		RecipeID:     state.RecipeID,
		RecipeName:   state.RecipeName,
		TargetVolume: state.TargetVolume,
		ScaleFactor:  state.ScaleFactor(),
		ExchangeRate: state.ExchangeRate,
	}

	for _, line := range state.ActiveLines() {
		resolved := ResolvePrice(ctx, prices, line.IngredientID, line.Manual)
		out.Lines = append(out.Lines, costLine(line, resolved, out.ScaleFactor, state.ExchangeRate))
	}

	for _, line := range out.Lines {
		out.MaterialsBaseLocal += line.Quantity * (line.UnitCostLocal + line.AddonPerUnit)
		out.MaterialsSurchargeLocal += line.Quantity * line.SurchargeUnitLocal
		out.MaterialsForeign += line.LineTotalForeign
	}
	out.MaterialsLocal = out.MaterialsBaseLocal + out.MaterialsSurchargeLocal

	out.FreightLocal = state.FreightBase * out.ScaleFactor
	out.OverheadPerUnit = state.OverheadPerUnit()
	out.OverheadLocal = out.OverheadPerUnit * state.TargetVolume

	out.ContainerName = state.Packaging.ContainerName
	out.ContainersNeeded, out.PackagingLocal = packagingCost(ctx, containers, state)

	out.TotalLocal = out.MaterialsLocal + out.FreightLocal + out.OverheadLocal + out.PackagingLocal
	if state.TargetVolume > 0 {
		out.CostPerUnitLocal = out.TotalLocal / state.TargetVolume
	}
	if state.ExchangeRate > 0 {
		out.TotalForeign = out.TotalLocal / state.ExchangeRate
		if state.TargetVolume > 0 {
			out.CostPerUnitForeign = out.TotalForeign / state.TargetVolume
		}
	}

	return out
}

func costLine(line SimulationLine, resolved ResolvedPrice, scale, currentRate float64) CostLine {
	quantity := line.BaseQuantity * scale

	out := CostLine{
		IngredientID:   line.IngredientID,
		Name:           line.Name,
		Unit:           line.Unit,
		Quantity:       quantity,
		Basis:          resolved.Basis,
		HistoricalRate: resolved.HistoricalRate,
		UnitCostLocal:  resolved.LocalBaseUnitCost(currentRate),
		AddonPerUnit:   resolved.Addons(),
	}

	if resolved.Basis == BasisForeignQuoted {
		out.UnitCostForeign = resolved.ForeignBase()
		out.SurchargeUnitForeign = out.UnitCostForeign * SurchargeRate
		out.SurchargeUnitLocal = out.SurchargeUnitForeign * currentRate
	}

	out.UnitCostLocalTotal = out.UnitCostLocal + out.SurchargeUnitLocal + out.AddonPerUnit
	out.LineTotalLocal = quantity * out.UnitCostLocalTotal
	out.UnitCostForeignTotal = out.UnitCostForeign + out.SurchargeUnitForeign
	out.LineTotalForeign = quantity * out.UnitCostForeignTotal

	return out
}

func packagingCost(ctx context.Context, containers ContainerSource, state SimulationState) (int, float64) {
	p := state.Packaging

	capacity := p.CapacityOverride
	unitLocal := p.UnitPriceOverride

	if p.ContainerID != 0 && containers != nil {
		quote := containers.LatestContainerPrice(ctx, p.ContainerID)
		if capacity <= 0 {
			capacity = quote.Capacity
		}
		if unitLocal <= 0 {
			unitLocal = quote.UnitPriceForeign * state.ExchangeRate
		}
	}

	units := ContainersNeeded(state.TargetVolume, capacity)
	if units == 0 {
		return 0, 0
	}
	perUnit := unitLocal + p.LabelPerUnit + p.BoxPerUnit
	return units, float64(units) * perUnit
}
