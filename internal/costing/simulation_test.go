package costing

import "testing"

func TestSimulationMutatorsDoNotAliasState(t *testing.T) {
	t.Parallel()

	original := NewSimulation(1, "Shampoo Base", []SimulationLine{
		{IngredientID: 1, Name: "Lauril Sulfate", Unit: "kg", BaseQuantity: 10},
	}).WithExpenses([]ExpenseLine{{Label: "Rent", Amount: 100}})

	edited := original.
		SetLineQuantity(0, 99).
		SetLineExcluded(0, true).
		AddExpense(ExpenseLine{Label: "Power", Amount: 50}).
		WithTargetVolume(600)

	if original.Lines[0].BaseQuantity != 10 || original.Lines[0].Excluded {
		t.Fatalf("mutators leaked into the original state: %+v", original.Lines[0])
	}
	if len(original.Expenses) != 1 || original.TargetVolume != BaseVolume {
		t.Fatalf("original state changed: %+v", original)
	}
	if edited.Lines[0].BaseQuantity != 99 || !edited.Lines[0].Excluded {
		t.Fatalf("edits did not apply: %+v", edited.Lines[0])
	}
	if edited.MonthlyExpenses() != 150 {
		t.Fatalf("expected overlay total 150, got %v", edited.MonthlyExpenses())
	}
}

func TestExpenseOverlayEditing(t *testing.T) {
	t.Parallel()

	state := NewSimulation(1, "Shampoo Base", nil).
		WithExpenses([]ExpenseLine{
			{Label: "Rent", Amount: 100000},
			{Label: "Power", Amount: 40000},
		})

	state = state.UpdateExpense(1, ExpenseLine{Label: "Power", Amount: 55000})
	state = state.AddExpense(ExpenseLine{Label: "Maintenance", Amount: 5000})
	state = state.RemoveExpense(0)

	if len(state.Expenses) != 2 {
		t.Fatalf("expected 2 overlay entries, got %d", len(state.Expenses))
	}
	if state.MonthlyExpenses() != 60000 {
		t.Fatalf("expected overlay total 60000, got %v", state.MonthlyExpenses())
	}

	// Out-of-range indexes are ignored rather than panicking.
	same := state.UpdateExpense(9, ExpenseLine{}).RemoveExpense(-1).SetLineQuantity(3, 1)
	if same.MonthlyExpenses() != 60000 || len(same.Lines) != 0 {
		t.Fatalf("out-of-range edit changed the state: %+v", same)
	}
}

func TestOverheadPerUnitGuards(t *testing.T) {
	t.Parallel()

	state := NewSimulation(1, "Shampoo Base", nil).
		WithExpenses([]ExpenseLine{{Label: "Rent", Amount: 64000}}).
		WithMonthlyVolume(0)

	if got := state.OverheadPerUnit(); got != 0 {
		t.Fatalf("zero monthly volume must allocate zero overhead, got %v", got)
	}

	state = state.WithMonthlyVolume(32000)
	if got := state.OverheadPerUnit(); got != 2 {
		t.Fatalf("expected 2 per litre, got %v", got)
	}
}

func TestAppendAndRemoveAdHocLines(t *testing.T) {
	t.Parallel()

	state := NewSimulation(1, "Shampoo Base", []SimulationLine{
		{IngredientID: 1, Name: "Lauril Sulfate", Unit: "kg", BaseQuantity: 10},
	})

	state = state.AppendLine(SimulationLine{
		Name: "Fragancia Lavanda", Unit: "L", BaseQuantity: 0.5, AdHoc: true,
		Manual: ManualOverride{UnitPrice: 12, QuoteRate: 1280},
	})
	if len(state.Lines) != 2 || !state.Lines[1].AdHoc {
		t.Fatalf("append failed: %+v", state.Lines)
	}

	state = state.RemoveLine(1)
	if len(state.Lines) != 1 {
		t.Fatalf("remove failed: %+v", state.Lines)
	}
}
