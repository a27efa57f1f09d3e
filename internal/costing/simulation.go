package costing

// SimulationLine is one ingredient row inside a simulation. Recipe-backed
// lines carry the persisted ingredient id; ad-hoc lines use id 0 and exist
// only for the lifetime of the session.
type SimulationLine struct {
	IngredientID uint           `json:"ingredient_id"`
	Name         string         `json:"name"`
	Unit         string         `json:"unit"`
	BaseQuantity float64        `json:"base_quantity"`
	Excluded     bool           `json:"excluded"`
	AdHoc        bool           `json:"ad_hoc"`
	Manual       ManualOverride `json:"manual"`
}

// PackagingInput selects the container and per-unit packaging add-ons for a
// batch. Overrides win over persisted container data when positive; the
// price override is a local-currency amount.
type PackagingInput struct {
	ContainerID       uint    `json:"container_id"`
	ContainerName     string  `json:"container_name"`
	UnitPriceOverride float64 `json:"unit_price_override"`
	CapacityOverride  float64 `json:"capacity_override"`
	LabelPerUnit      float64 `json:"label_per_unit"`
	BoxPerUnit        float64 `json:"box_per_unit"`
}

// ExpenseLine is one fixed operating expense inside the session overlay.
// The overlay starts from the persisted month and may be freely edited
// before the overhead pool is recomputed; edits never write back.
type ExpenseLine struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// SimulationState is the complete input of one costing pass. It is a value:
// every mutator returns a fresh copy and the caller owns carrying the result
// into the next turn. Nothing in this package retains or shares state
// between calls.
type SimulationState struct {
	RecipeID   uint   `json:"recipe_id"`
	RecipeName string `json:"recipe_name"`

	Lines []SimulationLine `json:"lines"`

	TargetVolume float64 `json:"target_volume"`
	ExchangeRate float64 `json:"exchange_rate"`

	// FreightBase is the local-currency freight cost of one BaseVolume
	// batch; it scales linearly with volume like the recipe itself.
	FreightBase float64 `json:"freight_base"`

	Expenses                []ExpenseLine `json:"expenses"`
	MonthlyVolume           float64       `json:"monthly_volume"`
	OverheadPerUnitOverride float64       `json:"overhead_per_unit_override"`

	Packaging PackagingInput `json:"packaging"`
}

// NewSimulation builds the initial state for a recipe at the reference
// volume with the default monthly production assumption.
func NewSimulation(recipeID uint, recipeName string, lines []SimulationLine) SimulationState {
	return SimulationState{
		RecipeID:      recipeID,
		RecipeName:    recipeName,
		Lines:         lines,
		TargetVolume:  BaseVolume,
		ExchangeRate:  1,
		MonthlyVolume: DefaultMonthlyVolume,
	}
}

// ScaleFactor is target volume over the reference volume.
func (s SimulationState) ScaleFactor() float64 {
	return s.TargetVolume / BaseVolume
}

// MonthlyExpenses sums the session's expense overlay.
func (s SimulationState) MonthlyExpenses() float64 {
	total := 0.0
	for _, e := range s.Expenses {
		total += e.Amount
	}
	return total
}

// OverheadPerUnit is the fixed-cost share allocated to each litre produced.
// A positive manual override always wins over the computed pool division.
func (s SimulationState) OverheadPerUnit() float64 {
	if s.OverheadPerUnitOverride > 0 {
		return s.OverheadPerUnitOverride
	}
	if s.MonthlyVolume <= 0 {
		return 0
	}
	return s.MonthlyExpenses() / s.MonthlyVolume
}

// ActiveLines returns the lines that participate in costing, dropping any
// marked excluded.
func (s SimulationState) ActiveLines() []SimulationLine {
	active := make([]SimulationLine, 0, len(s.Lines))
	for _, line := range s.Lines {
		if line.Excluded {
			continue
		}
		active = append(active, line)
	}
	return active
}

func (s SimulationState) clone() SimulationState {
	out := s
	out.Lines = append([]SimulationLine(nil), s.Lines...)
	out.Expenses = append([]ExpenseLine(nil), s.Expenses...)
	return out
}

// WithTargetVolume returns a copy of the state for a new production volume.
// Non-positive volumes are kept as zero so the cost pass degrades to
// all-zero outputs instead of failing.
func (s SimulationState) WithTargetVolume(volume float64) SimulationState {
	out := s.clone()
	if volume < 0 {
		volume = 0
	}
	out.TargetVolume = volume
	return out
}

// WithExchangeRate returns a copy of the state quoting at today's rate.
func (s SimulationState) WithExchangeRate(rate float64) SimulationState {
	out := s.clone()
	out.ExchangeRate = rate
	return out
}

// WithFreightBase returns a copy with a new freight base cost per
// BaseVolume batch.
func (s SimulationState) WithFreightBase(cost float64) SimulationState {
	out := s.clone()
	out.FreightBase = cost
	return out
}

// WithMonthlyVolume returns a copy with a new assumed monthly production
// volume for overhead allocation.
func (s SimulationState) WithMonthlyVolume(volume float64) SimulationState {
	out := s.clone()
	out.MonthlyVolume = volume
	return out
}

// WithOverheadOverride returns a copy with a manual overhead-per-litre
// value; zero restores the computed allocation.
func (s SimulationState) WithOverheadOverride(perUnit float64) SimulationState {
	out := s.clone()
	out.OverheadPerUnitOverride = perUnit
	return out
}

// WithPackaging returns a copy with new packaging parameters.
func (s SimulationState) WithPackaging(p PackagingInput) SimulationState {
	out := s.clone()
	out.Packaging = p
	return out
}

// WithExpenses returns a copy whose expense overlay is replaced wholesale,
// typically with the persisted month's entries.
func (s SimulationState) WithExpenses(lines []ExpenseLine) SimulationState {
	out := s.clone()
	out.Expenses = append([]ExpenseLine(nil), lines...)
	return out
}

// AddExpense returns a copy with one ad-hoc expense appended to the overlay.
func (s SimulationState) AddExpense(line ExpenseLine) SimulationState {
	out := s.clone()
	out.Expenses = append(out.Expenses, line)
	return out
}

// UpdateExpense returns a copy with the overlay entry at index replaced.
// Out-of-range indexes leave the state unchanged.
func (s SimulationState) UpdateExpense(index int, line ExpenseLine) SimulationState {
	out := s.clone()
	if index >= 0 && index < len(out.Expenses) {
		out.Expenses[index] = line
	}
	return out
}

// RemoveExpense returns a copy with the overlay entry at index dropped.
func (s SimulationState) RemoveExpense(index int) SimulationState {
	out := s.clone()
	if index >= 0 && index < len(out.Expenses) {
		out.Expenses = append(out.Expenses[:index], out.Expenses[index+1:]...)
	}
	return out
}

// SetLineQuantity returns a copy with the base quantity of one line edited
// for this simulation only. The persisted recipe is never touched.
func (s SimulationState) SetLineQuantity(index int, baseQuantity float64) SimulationState {
	out := s.clone()
	if index >= 0 && index < len(out.Lines) {
		out.Lines[index].BaseQuantity = baseQuantity
	}
	return out
}

// SetLineOverride returns a copy with a manual price override on one line.
func (s SimulationState) SetLineOverride(index int, manual ManualOverride) SimulationState {
	out := s.clone()
	if index >= 0 && index < len(out.Lines) {
		out.Lines[index].Manual = manual
	}
	return out
}

// SetLineExcluded returns a copy marking one line in or out of the costing
// pass.
func (s SimulationState) SetLineExcluded(index int, excluded bool) SimulationState {
	out := s.clone()
	if index >= 0 && index < len(out.Lines) {
		out.Lines[index].Excluded = excluded
	}
	return out
}

// SubstituteLine returns a copy with one line replaced by a different
// ingredient, persisted or ad-hoc.
func (s SimulationState) SubstituteLine(index int, line SimulationLine) SimulationState {
	out := s.clone()
	if index >= 0 && index < len(out.Lines) {
		out.Lines[index] = line
	}
	return out
}

// AppendLine returns a copy with a wholly new line added to the simulation.
func (s SimulationState) AppendLine(line SimulationLine) SimulationState {
	out := s.clone()
	out.Lines = append(out.Lines, line)
	return out
}

// RemoveLine returns a copy with the line at index dropped entirely.
func (s SimulationState) RemoveLine(index int) SimulationState {
	out := s.clone()
	if index >= 0 && index < len(out.Lines) {
		out.Lines = append(out.Lines[:index], out.Lines[index+1:]...)
	}
	return out
}
