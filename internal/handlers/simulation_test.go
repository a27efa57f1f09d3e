package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/gorm"

	"minerva/models"
)

func seedSimulationFixtures(t *testing.T, db *gorm.DB) {
	t.Helper()

	now := time.Now().UTC()

	imported := models.Ingredient{Name: "Lauril Sulfato", Unit: "kg"}
	local := models.Ingredient{Name: "Cocoamida", Unit: "kg"}
	for _, ingredient := range []*models.Ingredient{&imported, &local} {
		if err := db.Create(ingredient).Error; err != nil {
			t.Fatalf("seed ingredient: %v", err)
		}
	}

	prices := []models.PurchasePrice{
		{IngredientID: imported.ID, UnitPrice: 2.0, QuoteRate: 1200, ObservedAt: now},
		{IngredientID: local.ID, UnitPrice: 800, QuoteRate: 1, ObservedAt: now},
	}
	for _, price := range prices {
		priceCopy := price
		if err := db.Create(&priceCopy).Error; err != nil {
			t.Fatalf("seed price: %v", err)
		}
	}

	recipe := models.Recipe{Name: "Shampoo Nutritivo"}
	if err := db.Create(&recipe).Error; err != nil {
		t.Fatalf("seed recipe: %v", err)
	}

	lines := []models.RecipeIngredient{
		{RecipeID: recipe.ID, IngredientID: imported.ID, BaseQuantity: 10},
		{RecipeID: recipe.ID, IngredientID: local.ID, BaseQuantity: 5},
	}
	for _, line := range lines {
		lineCopy := line
		if err := db.Create(&lineCopy).Error; err != nil {
			t.Fatalf("seed recipe line: %v", err)
		}
	}
}

func TestSimulationLifecycle(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)
	seedSimulationFixtures(t, db)

	startBody := `{"recipe_id":1}`
	req := authenticatedRequest(t, sm, http.MethodPost, "/api/simulation", &startBody)
	w := httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d: %s", w.Code, w.Body.String())
	}

	var resp simulationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if resp.State.RecipeName != "Shampoo Nutritivo" || len(resp.State.Lines) != 2 {
		t.Fatalf("unexpected initial state: %+v", resp.State)
	}
	if resp.Breakdown.TargetVolume != 200 || resp.Breakdown.ScaleFactor != 1 {
		t.Fatalf("expected base batch defaults, got %+v", resp.Breakdown)
	}

	// Double the volume and set the current exchange rate. The imported
	// line re-quotes (2.0 USD * 1300 plus 3% surcharge); the local one
	// stays fixed.
	patchBody := `{"target_volume":400,"exchange_rate":1300}`
	req = authenticatedRequest(t, sm, http.MethodPatch, "/api/simulation", &patchBody)
	w = httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on patch, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode patch response: %v", err)
	}
	if resp.Breakdown.ScaleFactor != 2 {
		t.Fatalf("expected scale factor 2, got %v", resp.Breakdown.ScaleFactor)
	}

	var importedLine, localLine *float64
	for i := range resp.Breakdown.Lines {
		line := resp.Breakdown.Lines[i]
		switch line.Name {
		case "Lauril Sulfato":
			importedLine = &resp.Breakdown.Lines[i].UnitCostLocalTotal
		case "Cocoamida":
			localLine = &resp.Breakdown.Lines[i].UnitCostLocal
		}
	}
	if importedLine == nil || localLine == nil {
		t.Fatalf("missing expected lines: %+v", resp.Breakdown.Lines)
	}
	if *importedLine != 2678 { // 2.0*1300 plus 3% surcharge
		t.Fatalf("expected imported unit cost 2678, got %v", *importedLine)
	}
	if *localLine != 800 {
		t.Fatalf("expected local unit cost 800, got %v", *localLine)
	}

	// Exclude the local line: totals drop accordingly.
	excludeBody := `{"excluded":true}`
	req = authenticatedRequest(t, sm, http.MethodPatch, "/api/simulation/lines/1", &excludeBody)
	w = httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on line patch, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode line patch response: %v", err)
	}
	if len(resp.Breakdown.Lines) != 1 {
		t.Fatalf("expected excluded line to leave the breakdown, got %+v", resp.Breakdown.Lines)
	}

	// Pricing: set a margin and confirm the sale price follows the cost.
	pricingBody := `{"margin_pct":25}`
	req = authenticatedRequest(t, sm, http.MethodPut, "/api/simulation/pricing", &pricingBody)
	w = httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on pricing, got %d: %s", w.Code, w.Body.String())
	}

	var pricing struct {
		Cost      float64 `json:"cost"`
		MarginPct float64 `json:"margin_pct"`
		SalePrice float64 `json:"sale_price"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &pricing); err != nil {
		t.Fatalf("decode pricing: %v", err)
	}
	if pricing.MarginPct != 25 {
		t.Fatalf("expected margin 25, got %v", pricing.MarginPct)
	}
	if want := pricing.Cost * 1.25; pricing.SalePrice != want {
		t.Fatalf("expected sale price %v, got %v", want, pricing.SalePrice)
	}

	// Clearing the simulation removes the session state.
	req = authenticatedRequest(t, sm, http.MethodDelete, "/api/simulation", nil)
	w = httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on clear, got %d", w.Code)
	}

	req = authenticatedRequest(t, sm, http.MethodGet, "/api/simulation", nil)
	w = httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", w.Code)
	}
}

func TestSimulationAdHocLine(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)
	seedSimulationFixtures(t, db)

	startBody := `{"recipe_id":1}`
	req := authenticatedRequest(t, sm, http.MethodPost, "/api/simulation", &startBody)
	w := httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d: %s", w.Code, w.Body.String())
	}

	lineBody := `{"name":"Esencia Lavanda","unit":"L","base_quantity":0.5,"manual_price":9800}`
	req = authenticatedRequest(t, sm, http.MethodPost, "/api/simulation/lines", &lineBody)
	w = httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on append, got %d: %s", w.Code, w.Body.String())
	}

	var resp simulationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode append response: %v", err)
	}
	if len(resp.State.Lines) != 3 || !resp.State.Lines[2].AdHoc {
		t.Fatalf("expected appended ad-hoc line: %+v", resp.State.Lines)
	}

	found := false
	for _, line := range resp.Breakdown.Lines {
		if line.Name == "Esencia Lavanda" && line.UnitCostLocal == 9800 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ad-hoc line costed at manual price: %+v", resp.Breakdown.Lines)
	}
}

func TestSimulationExpenseOverlay(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)
	seedSimulationFixtures(t, db)

	startBody := `{"recipe_id":1}`
	req := authenticatedRequest(t, sm, http.MethodPost, "/api/simulation", &startBody)
	w := httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d: %s", w.Code, w.Body.String())
	}

	addBody := `{"label":"Alquiler deposito","amount":120000}`
	req = authenticatedRequest(t, sm, http.MethodPost, "/api/simulation/expenses", &addBody)
	w = httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on expense add, got %d: %s", w.Code, w.Body.String())
	}

	var resp simulationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode add response: %v", err)
	}
	if len(resp.State.Expenses) != 1 || resp.State.Expenses[0].Amount != 120000 {
		t.Fatalf("expected added expense line, got %+v", resp.State.Expenses)
	}

	updateBody := `{"label":"Alquiler deposito","amount":90000}`
	req = authenticatedRequest(t, sm, http.MethodPut, "/api/simulation/expenses/0", &updateBody)
	w = httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on expense update, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode update response: %v", err)
	}
	if resp.State.Expenses[0].Amount != 90000 {
		t.Fatalf("expected amount 90000, got %+v", resp.State.Expenses)
	}
	if resp.Breakdown.OverheadLocal == 0 {
		t.Fatalf("expected overhead from expense overlay, got %+v", resp.Breakdown)
	}

	req = authenticatedRequest(t, sm, http.MethodDelete, "/api/simulation/expenses/0", nil)
	w = httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on expense remove, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode remove response: %v", err)
	}
	if len(resp.State.Expenses) != 0 {
		t.Fatalf("expected overlay emptied, got %+v", resp.State.Expenses)
	}

	missingLabel := `{"amount":100}`
	req = authenticatedRequest(t, sm, http.MethodPost, "/api/simulation/expenses", &missingLabel)
	w = httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing label, got %d", w.Code)
	}
}

func TestSimulationStartUnknownRecipe(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	_, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	startBody := `{"recipe_id":99}`
	req := authenticatedRequest(t, sm, http.MethodPost, "/api/simulation", &startBody)
	w := httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown recipe, got %d", w.Code)
	}
}
