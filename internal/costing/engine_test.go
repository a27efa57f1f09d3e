package costing

import (
	"context"
	"math"
	"testing"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func testState() SimulationState {
	state := NewSimulation(1, "Shampoo Base", []SimulationLine{
		{IngredientID: 1, Name: "Lauril Sulfate", Unit: "kg", BaseQuantity: 10},
		{IngredientID: 2, Name: "Glycerin", Unit: "kg", BaseQuantity: 4},
	})
	return state.WithExchangeRate(1300)
}

func testPrices() stubPriceSource {
	return stubPriceSource{
		1: {UnitPrice: 2.0, QuoteRate: 1200}, // foreign-quoted
		2: {UnitPrice: 800, QuoteRate: 1},    // fixed local
	}
}

func TestComputeBatchCostEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	state := NewSimulation(1, "Shampoo Base", []SimulationLine{
		{IngredientID: 1, Name: "Ingredient X", Unit: "kg", BaseQuantity: 10},
	})
	state = state.WithExchangeRate(1300).WithTargetVolume(400)

	breakdown := ComputeBatchCost(ctx, testPrices(), nil, state)

	if !almostEqual(breakdown.ScaleFactor, 2.0) {
		t.Fatalf("expected scale factor 2.0, got %v", breakdown.ScaleFactor)
	}
	if len(breakdown.Lines) != 1 {
		t.Fatalf("expected 1 cost line, got %d", len(breakdown.Lines))
	}

	line := breakdown.Lines[0]
	if !almostEqual(line.Quantity, 20) {
		t.Fatalf("expected scaled quantity 20, got %v", line.Quantity)
	}
	if !almostEqual(line.UnitCostLocal, 2600) {
		t.Fatalf("expected base local unit cost 2600, got %v", line.UnitCostLocal)
	}
	if !almostEqual(line.SurchargeUnitForeign, 0.06) {
		t.Fatalf("expected foreign surcharge 0.06, got %v", line.SurchargeUnitForeign)
	}
	if !almostEqual(line.SurchargeUnitLocal, 78) {
		t.Fatalf("expected local surcharge 78, got %v", line.SurchargeUnitLocal)
	}
	if !almostEqual(line.UnitCostLocalTotal, 2678) {
		t.Fatalf("expected total unit cost 2678, got %v", line.UnitCostLocalTotal)
	}
	if !almostEqual(line.LineTotalLocal, 53560) {
		t.Fatalf("expected line total 53560, got %v", line.LineTotalLocal)
	}
	if !almostEqual(breakdown.MaterialsLocal, 53560) {
		t.Fatalf("expected materials total 53560, got %v", breakdown.MaterialsLocal)
	}
}

func TestLinearScalingOfMaterialsFreightAndOverhead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	base := testState().
		WithFreightBase(5000).
		WithExpenses([]ExpenseLine{{Label: "Rent", Amount: 640000}})

	one := ComputeBatchCost(ctx, testPrices(), nil, base.WithTargetVolume(200))
	three := ComputeBatchCost(ctx, testPrices(), nil, base.WithTargetVolume(600))

	if !almostEqual(three.MaterialsLocal, 3*one.MaterialsLocal) {
		t.Fatalf("materials not linear: %v vs %v", three.MaterialsLocal, one.MaterialsLocal)
	}
	if !almostEqual(three.FreightLocal, 3*one.FreightLocal) {
		t.Fatalf("freight not linear: %v vs %v", three.FreightLocal, one.FreightLocal)
	}
	if !almostEqual(three.OverheadLocal, 3*one.OverheadLocal) {
		t.Fatalf("overhead not linear: %v vs %v", three.OverheadLocal, one.OverheadLocal)
	}
	for i := range one.Lines {
		if !almostEqual(three.Lines[i].Quantity, 3*one.Lines[i].Quantity) {
			t.Fatalf("line %d quantity not linear", i)
		}
	}
}

func TestSurchargeAppliesOnlyToForeignQuotedLines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	breakdown := ComputeBatchCost(ctx, testPrices(), nil, testState())

	for _, line := range breakdown.Lines {
		switch line.Basis {
		case BasisFixedLocal:
			if line.SurchargeUnitLocal != 0 || line.SurchargeUnitForeign != 0 {
				t.Fatalf("fixed-local line %q carries a surcharge: %+v", line.Name, line)
			}
		case BasisForeignQuoted:
			if line.SurchargeUnitLocal <= 0 || line.SurchargeUnitForeign <= 0 {
				t.Fatalf("foreign line %q is missing its surcharge: %+v", line.Name, line)
			}
		}
	}
}

func TestRequoteTracksCurrentRateAndLeavesFixedLocalAlone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	state := testState().WithTargetVolume(200)

	before := ComputeBatchCost(ctx, testPrices(), nil, state.WithExchangeRate(1300))
	after := ComputeBatchCost(ctx, testPrices(), nil, state.WithExchangeRate(1500))

	if !almostEqual(before.Lines[0].UnitCostLocal, 2.0*1300) {
		t.Fatalf("expected foreign line at 2600, got %v", before.Lines[0].UnitCostLocal)
	}
	if !almostEqual(after.Lines[0].UnitCostLocal, 2.0*1500) {
		t.Fatalf("expected foreign line at 3000 after rate change, got %v", after.Lines[0].UnitCostLocal)
	}
	if before.Lines[1].UnitCostLocal != after.Lines[1].UnitCostLocal {
		t.Fatalf("fixed-local line moved with the exchange rate: %v vs %v",
			before.Lines[1].UnitCostLocal, after.Lines[1].UnitCostLocal)
	}
}

func TestContainersNeededCeiling(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		volume   float64
		capacity float64
		want     int
	}{
		{"partial container rounds up", 12.0, 5.0, 3},
		{"exact multiple", 15.0, 5.0, 3},
		{"zero capacity", 12.0, 0, 0},
		{"zero volume", 0, 5.0, 0},
		{"single unit", 4.0, 5.0, 1},
	}

	for _, tt := range cases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ContainersNeeded(tt.volume, tt.capacity); got != tt.want {
				t.Fatalf("ContainersNeeded(%v, %v) = %d, want %d", tt.volume, tt.capacity, got, tt.want)
			}
		})
	}
}

func TestPackagingCostWithContainerAndAddOns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	containers := stubContainerSource{
		3: {UnitPriceForeign: 1.0, Capacity: 5.0},
	}

	state := testState().WithTargetVolume(12).WithPackaging(PackagingInput{
		ContainerID:   3,
		ContainerName: "Bidon 5L",
		LabelPerUnit:  50,
		BoxPerUnit:    30,
	})

	breakdown := ComputeBatchCost(ctx, testPrices(), containers, state)

	if breakdown.ContainersNeeded != 3 {
		t.Fatalf("expected 3 containers, got %d", breakdown.ContainersNeeded)
	}
	// 3 units * (1 USD * 1300 + 50 + 30)
	if !almostEqual(breakdown.PackagingLocal, 3*(1300+50+30)) {
		t.Fatalf("expected packaging cost %v, got %v", 3.0*(1300+50+30), breakdown.PackagingLocal)
	}
}

func TestPackagingManualOverridesWinOverRecordedValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	containers := stubContainerSource{
		3: {UnitPriceForeign: 1.0, Capacity: 5.0},
	}

	state := testState().WithTargetVolume(20).WithPackaging(PackagingInput{
		ContainerID:       3,
		UnitPriceOverride: 900,
		CapacityOverride:  10,
	})

	breakdown := ComputeBatchCost(ctx, testPrices(), containers, state)
	if breakdown.ContainersNeeded != 2 {
		t.Fatalf("expected 2 containers under capacity override, got %d", breakdown.ContainersNeeded)
	}
	if !almostEqual(breakdown.PackagingLocal, 1800) {
		t.Fatalf("expected packaging 1800 under price override, got %v", breakdown.PackagingLocal)
	}
}

func TestZeroVolumeDegradesToZeroWithoutError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	state := testState().
		WithTargetVolume(0).
		WithFreightBase(5000).
		WithExpenses([]ExpenseLine{{Label: "Rent", Amount: 640000}}).
		WithPackaging(PackagingInput{CapacityOverride: 5, UnitPriceOverride: 100})

	breakdown := ComputeBatchCost(ctx, testPrices(), nil, state)

	if breakdown.MaterialsLocal != 0 || breakdown.FreightLocal != 0 || breakdown.OverheadLocal != 0 {
		t.Fatalf("expected all-zero scaled costs, got %+v", breakdown)
	}
	if breakdown.PackagingLocal != 0 || breakdown.ContainersNeeded != 0 {
		t.Fatalf("expected zero packaging at zero volume, got %+v", breakdown)
	}
	if breakdown.TotalLocal != 0 || breakdown.CostPerUnitLocal != 0 {
		t.Fatalf("expected zero totals, got total=%v perUnit=%v", breakdown.TotalLocal, breakdown.CostPerUnitLocal)
	}
}

func TestOverheadOverrideWinsOverComputedPool(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	state := testState().
		WithTargetVolume(100).
		WithExpenses([]ExpenseLine{{Label: "Rent", Amount: 320000}}).
		WithMonthlyVolume(32000)

	computed := ComputeBatchCost(ctx, testPrices(), nil, state)
	if !almostEqual(computed.OverheadPerUnit, 10) {
		t.Fatalf("expected computed overhead 10/L, got %v", computed.OverheadPerUnit)
	}
	if !almostEqual(computed.OverheadLocal, 1000) {
		t.Fatalf("expected overhead 1000, got %v", computed.OverheadLocal)
	}

	overridden := ComputeBatchCost(ctx, testPrices(), nil, state.WithOverheadOverride(25))
	if !almostEqual(overridden.OverheadPerUnit, 25) {
		t.Fatalf("expected overridden overhead 25/L, got %v", overridden.OverheadPerUnit)
	}
	if !almostEqual(overridden.OverheadLocal, 2500) {
		t.Fatalf("expected overhead 2500, got %v", overridden.OverheadLocal)
	}
}

func TestExcludedAndSubstitutedLines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	state := testState().WithTargetVolume(200)

	full := ComputeBatchCost(ctx, testPrices(), nil, state)
	if len(full.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(full.Lines))
	}

	trimmed := ComputeBatchCost(ctx, testPrices(), nil, state.SetLineExcluded(1, true))
	if len(trimmed.Lines) != 1 {
		t.Fatalf("expected excluded line to drop out, got %d lines", len(trimmed.Lines))
	}
	if trimmed.Lines[0].Name != "Lauril Sulfate" {
		t.Fatalf("wrong surviving line: %q", trimmed.Lines[0].Name)
	}

	substituted := state.SubstituteLine(1, SimulationLine{
		Name: "Pantenol Import", Unit: "kg", BaseQuantity: 4, AdHoc: true,
		Manual: ManualOverride{UnitPrice: 3.0, QuoteRate: 1250},
	})
	swapped := ComputeBatchCost(ctx, testPrices(), nil, substituted)
	if swapped.Lines[1].Name != "Pantenol Import" {
		t.Fatalf("substitution did not take: %q", swapped.Lines[1].Name)
	}
	if swapped.Lines[1].Basis != BasisForeignQuoted {
		t.Fatalf("ad-hoc foreign override lost its basis: %+v", swapped.Lines[1])
	}
	if !almostEqual(swapped.Lines[1].UnitCostLocal, 3.0*1300) {
		t.Fatalf("expected substituted unit cost 3900, got %v", swapped.Lines[1].UnitCostLocal)
	}
}
