package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"

	"minerva/internal/costing"
	applog "minerva/internal/log"
)

const (
	sessionSimulationKey = "simulation:state"
	sessionPricingKey    = "simulation:pricing"
)

var simulationsComputed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "minerva",
	Name:      "batch_simulations_computed_total",
	Help:      "Number of batch cost breakdowns computed.",
})

type simulationStartRequest struct {
	RecipeID uint `json:"recipe_id"`
}

type simulationUpdateRequest struct {
	TargetVolume     *float64                `json:"target_volume"`
	ExchangeRate     *float64                `json:"exchange_rate"`
	FreightBase      *float64                `json:"freight_base"`
	MonthlyVolume    *float64                `json:"monthly_volume"`
	OverheadOverride *float64                `json:"overhead_override"`
	Packaging        *costing.PackagingInput `json:"packaging"`
	Expenses         *[]costing.ExpenseLine  `json:"expenses"`
}

type simulationLineRequest struct {
	IngredientID *uint    `json:"ingredient_id"`
	Name         string   `json:"name"`
	Unit         string   `json:"unit"`
	BaseQuantity *float64 `json:"base_quantity"`
	Excluded     *bool    `json:"excluded"`
	ManualPrice  *float64 `json:"manual_price"`
	ManualRate   *float64 `json:"manual_rate"`
}

type pricingRequest struct {
	MarginPct *float64 `json:"margin_pct"`
	SalePrice *float64 `json:"sale_price"`
}

type simulationResponse struct {
	State     costing.SimulationState    `json:"state"`
	Breakdown costing.BatchCostBreakdown `json:"breakdown"`
	Pricing   costing.Pricing            `json:"pricing"`
}

// SimulationResource manages the session-held batch simulation: starting one
// from a recipe, mutating it and reading the resulting cost breakdown.
func SimulationResource(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "simulation request without authenticated user")
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/simulation")
	path = strings.Trim(path, "/")

	switch {
	case path == "":
		switch r.Method {
		case http.MethodPost:
			startSimulation(w, r)
		case http.MethodGet:
			showSimulation(w, r)
		case http.MethodPatch:
			patchSimulation(w, r)
		case http.MethodDelete:
			clearSimulation(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case path == "lines":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		appendSimulationLine(w, r)
	case strings.HasPrefix(path, "lines/"):
		index, err := strconv.Atoi(strings.TrimPrefix(path, "lines/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodPatch:
			patchSimulationLine(w, r, index)
		case http.MethodDelete:
			removeSimulationLine(w, r, index)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case path == "expenses":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		addSimulationExpense(w, r)
	case strings.HasPrefix(path, "expenses/"):
		index, err := strconv.Atoi(strings.TrimPrefix(path, "expenses/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodPut:
			updateSimulationExpense(w, r, index)
		case http.MethodDelete:
			removeSimulationExpense(w, r, index)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case path == "pricing":
		switch r.Method {
		case http.MethodGet:
			showPricing(w, r)
		case http.MethodPut:
			updatePricing(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

func startSimulation(w http.ResponseWriter, r *http.Request) {
	if catalogStore == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	var payload simulationStartRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid simulation start payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.RecipeID == 0 {
		writeJSONError(w, http.StatusBadRequest, "recipe_id is required")
		return
	}

	name, lines, err := catalogStore.RecipeLines(r.Context(), payload.RecipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSONError(w, http.StatusNotFound, "recipe not found")
			return
		}
		applog.Error(r.Context(), "failed to load recipe for simulation", "error", err, "recipeID", payload.RecipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to start simulation")
		return
	}

	state := costing.NewSimulation(payload.RecipeID, name, lines)

	// Preload the overhead overlay from the current month's bookkeeping;
	// the session copy is editable without touching stored expenses.
	now := time.Now().UTC()
	if expenses, err := catalogStore.MonthlyExpenseLines(r.Context(), now.Year(), now.Month()); err == nil {
		state = state.WithExpenses(expenses)
	} else {
		applog.Error(r.Context(), "failed to preload expenses for simulation", "error", err)
	}

	if err := saveSimulation(r, state); err != nil {
		applog.Error(r.Context(), "failed to store simulation state", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to start simulation")
		return
	}
	savePricing(r, costing.Pricing{})

	respondWithBreakdown(w, r, state)
}

func showSimulation(w http.ResponseWriter, r *http.Request) {
	state, ok := loadSimulation(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no active simulation")
		return
	}
	respondWithBreakdown(w, r, state)
}

func patchSimulation(w http.ResponseWriter, r *http.Request) {
	state, ok := loadSimulation(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no active simulation")
		return
	}

	var payload simulationUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid simulation update payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if payload.TargetVolume != nil {
		state = state.WithTargetVolume(*payload.TargetVolume)
	}
	if payload.ExchangeRate != nil {
		state = state.WithExchangeRate(*payload.ExchangeRate)
	}
	if payload.FreightBase != nil {
		state = state.WithFreightBase(*payload.FreightBase)
	}
	if payload.MonthlyVolume != nil {
		state = state.WithMonthlyVolume(*payload.MonthlyVolume)
	}
	if payload.OverheadOverride != nil {
		state = state.WithOverheadOverride(*payload.OverheadOverride)
	}
	if payload.Packaging != nil {
		state = state.WithPackaging(*payload.Packaging)
	}
	if payload.Expenses != nil {
		state = state.WithExpenses(*payload.Expenses)
	}

	if err := saveSimulation(r, state); err != nil {
		applog.Error(r.Context(), "failed to store simulation state", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to update simulation")
		return
	}

	respondWithBreakdown(w, r, state)
}

func clearSimulation(w http.ResponseWriter, r *http.Request) {
	if sessionManager != nil {
		sessionManager.Remove(r.Context(), sessionSimulationKey)
		sessionManager.Remove(r.Context(), sessionPricingKey)
	}
	w.WriteHeader(http.StatusNoContent)
}

func appendSimulationLine(w http.ResponseWriter, r *http.Request) {
	state, ok := loadSimulation(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no active simulation")
		return
	}

	var payload simulationLineRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid simulation line payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.BaseQuantity == nil || *payload.BaseQuantity <= 0 {
		writeJSONError(w, http.StatusBadRequest, "base_quantity must be greater than zero")
		return
	}
	if strings.TrimSpace(payload.Name) == "" && (payload.IngredientID == nil || *payload.IngredientID == 0) {
		writeJSONError(w, http.StatusBadRequest, "either name or ingredient_id is required")
		return
	}

	line := costing.SimulationLine{
		Name:         strings.TrimSpace(payload.Name),
		Unit:         normalizedUnit(payload.Unit),
		BaseQuantity: *payload.BaseQuantity,
		AdHoc:        true,
	}
	if payload.IngredientID != nil {
		line.IngredientID = *payload.IngredientID
		line.AdHoc = false
	}
	if payload.ManualPrice != nil {
		line.Manual = costing.ManualOverride{UnitPrice: *payload.ManualPrice, QuoteRate: 1}
		if payload.ManualRate != nil {
			line.Manual.QuoteRate = *payload.ManualRate
		}
	}

	state = state.AppendLine(line)
	if err := saveSimulation(r, state); err != nil {
		applog.Error(r.Context(), "failed to store simulation state", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to update simulation")
		return
	}

	respondWithBreakdown(w, r, state)
}

func patchSimulationLine(w http.ResponseWriter, r *http.Request, index int) {
	state, ok := loadSimulation(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no active simulation")
		return
	}
	if index < 0 || index >= len(state.Lines) {
		http.NotFound(w, r)
		return
	}

	var payload simulationLineRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid simulation line payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if payload.IngredientID != nil && *payload.IngredientID != state.Lines[index].IngredientID {
		// Substituting the ingredient keeps the line's quantity but
		// re-resolves the price against the replacement.
		substitute := state.Lines[index]
		substitute.IngredientID = *payload.IngredientID
		substitute.Manual = costing.ManualOverride{}
		if strings.TrimSpace(payload.Name) != "" {
			substitute.Name = strings.TrimSpace(payload.Name)
		}
		if strings.TrimSpace(payload.Unit) != "" {
			substitute.Unit = strings.TrimSpace(payload.Unit)
		}
		state = state.SubstituteLine(index, substitute)
	}
	if payload.BaseQuantity != nil {
		state = state.SetLineQuantity(index, *payload.BaseQuantity)
	}
	if payload.Excluded != nil {
		state = state.SetLineExcluded(index, *payload.Excluded)
	}
	if payload.ManualPrice != nil {
		manual := costing.ManualOverride{UnitPrice: *payload.ManualPrice, QuoteRate: 1}
		if payload.ManualRate != nil {
			manual.QuoteRate = *payload.ManualRate
		}
		state = state.SetLineOverride(index, manual)
	}

	if err := saveSimulation(r, state); err != nil {
		applog.Error(r.Context(), "failed to store simulation state", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to update simulation")
		return
	}

	respondWithBreakdown(w, r, state)
}

func removeSimulationLine(w http.ResponseWriter, r *http.Request, index int) {
	state, ok := loadSimulation(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no active simulation")
		return
	}
	if index < 0 || index >= len(state.Lines) {
		http.NotFound(w, r)
		return
	}

	state = state.RemoveLine(index)
	if err := saveSimulation(r, state); err != nil {
		applog.Error(r.Context(), "failed to store simulation state", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to update simulation")
		return
	}

	respondWithBreakdown(w, r, state)
}

func addSimulationExpense(w http.ResponseWriter, r *http.Request) {
	state, ok := loadSimulation(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no active simulation")
		return
	}

	line, ok := decodeExpenseLine(w, r)
	if !ok {
		return
	}

	state = state.AddExpense(line)
	if err := saveSimulation(r, state); err != nil {
		applog.Error(r.Context(), "failed to store simulation state", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to update simulation")
		return
	}

	respondWithBreakdown(w, r, state)
}

func updateSimulationExpense(w http.ResponseWriter, r *http.Request, index int) {
	state, ok := loadSimulation(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no active simulation")
		return
	}
	if index < 0 || index >= len(state.Expenses) {
		http.NotFound(w, r)
		return
	}

	line, ok := decodeExpenseLine(w, r)
	if !ok {
		return
	}

	state = state.UpdateExpense(index, line)
	if err := saveSimulation(r, state); err != nil {
		applog.Error(r.Context(), "failed to store simulation state", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to update simulation")
		return
	}

	respondWithBreakdown(w, r, state)
}

func removeSimulationExpense(w http.ResponseWriter, r *http.Request, index int) {
	state, ok := loadSimulation(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no active simulation")
		return
	}
	if index < 0 || index >= len(state.Expenses) {
		http.NotFound(w, r)
		return
	}

	state = state.RemoveExpense(index)
	if err := saveSimulation(r, state); err != nil {
		applog.Error(r.Context(), "failed to store simulation state", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to update simulation")
		return
	}

	respondWithBreakdown(w, r, state)
}

func decodeExpenseLine(w http.ResponseWriter, r *http.Request) (costing.ExpenseLine, bool) {
	var line costing.ExpenseLine
	if err := json.NewDecoder(r.Body).Decode(&line); err != nil {
		applog.Debug(r.Context(), "invalid expense line payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return costing.ExpenseLine{}, false
	}
	line.Label = strings.TrimSpace(line.Label)
	if line.Label == "" {
		writeJSONError(w, http.StatusBadRequest, "label is required")
		return costing.ExpenseLine{}, false
	}
	if line.Amount < 0 {
		writeJSONError(w, http.StatusBadRequest, "amount must not be negative")
		return costing.ExpenseLine{}, false
	}
	return line, true
}

func showPricing(w http.ResponseWriter, r *http.Request) {
	state, ok := loadSimulation(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no active simulation")
		return
	}
	writeJSON(w, http.StatusOK, currentPricing(r, state))
}

func updatePricing(w http.ResponseWriter, r *http.Request) {
	state, ok := loadSimulation(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no active simulation")
		return
	}

	var payload pricingRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid pricing payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.MarginPct == nil && payload.SalePrice == nil {
		writeJSONError(w, http.StatusBadRequest, "either margin_pct or sale_price is required")
		return
	}

	pricing := currentPricing(r, state)
	if payload.MarginPct != nil {
		pricing = pricing.WithMargin(*payload.MarginPct)
	}
	if payload.SalePrice != nil {
		pricing = pricing.WithSalePrice(*payload.SalePrice)
	}

	savePricing(r, pricing)
	writeJSON(w, http.StatusOK, pricing)
}

// currentPricing re-solves the stored pricing against the breakdown's
// current cost, preserving whichever side the user edited last.
func currentPricing(r *http.Request, state costing.SimulationState) costing.Pricing {
	breakdown := computeBreakdown(r, state)

	pricing, ok := loadPricing(r)
	if !ok {
		pricing = costing.Pricing{}
	}
	return pricing.WithCost(breakdown.TotalLocal)
}

func computeBreakdown(r *http.Request, state costing.SimulationState) costing.BatchCostBreakdown {
	breakdown := costing.ComputeBatchCost(r.Context(), catalogStore, catalogStore, state)
	simulationsComputed.Inc()
	return breakdown
}

func respondWithBreakdown(w http.ResponseWriter, r *http.Request, state costing.SimulationState) {
	breakdown := computeBreakdown(r, state)

	pricing, ok := loadPricing(r)
	if !ok {
		pricing = costing.Pricing{}
	}
	pricing = pricing.WithCost(breakdown.TotalLocal)
	savePricing(r, pricing)

	writeJSON(w, http.StatusOK, simulationResponse{
		State:     state,
		Breakdown: breakdown,
		Pricing:   pricing,
	})
}

func loadSimulation(r *http.Request) (costing.SimulationState, bool) {
	if sessionManager == nil {
		return costing.SimulationState{}, false
	}
	payload := sessionManager.GetBytes(r.Context(), sessionSimulationKey)
	if len(payload) == 0 {
		return costing.SimulationState{}, false
	}
	var state costing.SimulationState
	if err := json.Unmarshal(payload, &state); err != nil {
		applog.Error(r.Context(), "failed to decode simulation state", "error", err)
		return costing.SimulationState{}, false
	}
	return state, true
}

func saveSimulation(r *http.Request, state costing.SimulationState) error {
	if sessionManager == nil {
		return errors.New("session manager not configured")
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	sessionManager.Put(r.Context(), sessionSimulationKey, payload)
	return nil
}

func loadPricing(r *http.Request) (costing.Pricing, bool) {
	if sessionManager == nil {
		return costing.Pricing{}, false
	}
	payload := sessionManager.GetBytes(r.Context(), sessionPricingKey)
	if len(payload) == 0 {
		return costing.Pricing{}, false
	}
	var pricing costing.Pricing
	if err := json.Unmarshal(payload, &pricing); err != nil {
		applog.Error(r.Context(), "failed to decode pricing state", "error", err)
		return costing.Pricing{}, false
	}
	return pricing, true
}

func savePricing(r *http.Request, pricing costing.Pricing) {
	if sessionManager == nil {
		return
	}
	payload, err := json.Marshal(pricing)
	if err != nil {
		applog.Error(r.Context(), "failed to encode pricing state", "error", err)
		return
	}
	sessionManager.Put(r.Context(), sessionPricingKey, payload)
}
