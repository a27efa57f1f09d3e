package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xuri/excelize/v2"

	"minerva/models"
)

func TestQuoteDraftAndFinalize(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)
	seedSimulationFixtures(t, db)

	client := models.Client{Name: "Distribuidora Litoral"}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}

	startBody := `{"recipe_id":1}`
	req := authenticatedRequest(t, sm, http.MethodPost, "/api/simulation", &startBody)
	w := httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d: %s", w.Code, w.Body.String())
	}

	pricingBody := `{"margin_pct":20}`
	req = authenticatedRequest(t, sm, http.MethodPut, "/api/simulation/pricing", &pricingBody)
	w = httptest.NewRecorder()
	SimulationResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on pricing, got %d: %s", w.Code, w.Body.String())
	}

	addBody := `{"batches":2}`
	req = authenticatedRequest(t, sm, http.MethodPost, "/api/quote/lines", &addBody)
	w = httptest.NewRecorder()
	QuoteResource(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 on add line, got %d: %s", w.Code, w.Body.String())
	}

	var draft quoteDraftResponse
	if err := json.Unmarshal(w.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if len(draft.Lines) != 1 {
		t.Fatalf("expected 1 draft line, got %+v", draft.Lines)
	}
	line := draft.Lines[0]
	if line.Batches != 2 || line.Volume != 400 {
		t.Fatalf("expected batch multiplier applied, got %+v", line)
	}
	if line.MarginPct != 20 {
		t.Fatalf("expected margin carried into line, got %v", line.MarginPct)
	}

	finalizeBody := `{"client_id":1}`
	req = authenticatedRequest(t, sm, http.MethodPost, "/api/quote/finalize", &finalizeBody)
	w = httptest.NewRecorder()
	QuoteResource(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 on finalize, got %d: %s", w.Code, w.Body.String())
	}

	var persisted models.ClientQuote
	if err := json.Unmarshal(w.Body.Bytes(), &persisted); err != nil {
		t.Fatalf("decode persisted quote: %v", err)
	}
	if persisted.ID == 0 || len(persisted.Lines) != 1 {
		t.Fatalf("unexpected persisted quote: %+v", persisted)
	}

	var count int64
	if err := db.Model(&models.ClientQuoteLine{}).Count(&count).Error; err != nil || count != 1 {
		t.Fatalf("expected 1 persisted quote line, count=%d err=%v", count, err)
	}

	// Finalizing clears the draft.
	req = authenticatedRequest(t, sm, http.MethodGet, "/api/quote", nil)
	w = httptest.NewRecorder()
	QuoteResource(w, req)
	if err := json.Unmarshal(w.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode draft after finalize: %v", err)
	}
	if len(draft.Lines) != 0 {
		t.Fatalf("expected empty draft after finalize, got %+v", draft.Lines)
	}
}

func TestQuoteRepriceTouchesOnlyThatLine(t *testing.T) {
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
		t.Fatalf("expected 200 on start, got %d", w.Code)
	}

	addBody := `{"batches":1}`
	for i := 0; i < 2; i++ {
		req = authenticatedRequest(t, sm, http.MethodPost, "/api/quote/lines", &addBody)
		w = httptest.NewRecorder()
		QuoteResource(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201 on add line, got %d", w.Code)
		}
	}

	var draft quoteDraftResponse
	if err := json.Unmarshal(w.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	firstSale := draft.Lines[0].SaleLocal

	repriceBody := `{"sale_price":99999}`
	req = authenticatedRequest(t, sm, http.MethodPut, "/api/quote/lines/1", &repriceBody)
	w = httptest.NewRecorder()
	QuoteResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on reprice, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode repriced draft: %v", err)
	}
	if draft.Lines[1].SaleLocal != 99999 {
		t.Fatalf("expected line 1 repriced, got %+v", draft.Lines[1])
	}
	if draft.Lines[0].SaleLocal != firstSale {
		t.Fatalf("expected line 0 untouched, got %v want %v", draft.Lines[0].SaleLocal, firstSale)
	}
}

func TestQuoteExportWorkbook(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	client := models.Client{Name: "Distribuidora Litoral"}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	quote := models.ClientQuote{
		ClientID:     client.ID,
		MarginPct:    20,
		TotalVolume:  200,
		TotalCost:    50000,
		TotalPrice:   60000,
		ExchangeRate: 1300,
		Lines: []models.ClientQuoteLine{
			{RecipeName: "Shampoo Nutritivo", Volume: 200, Batches: 1, Cost: 50000, MarginPct: 20, SalePrice: 60000},
		},
	}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("seed quote: %v", err)
	}

	req := authenticatedRequest(t, sm, http.MethodGet, "/api/quotes/1/export", nil)
	w := httptest.NewRecorder()
	PersistedQuoteResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on export, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %q", ct)
	}

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("reopen exported workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	value, err := f.GetCellValue(sheet, "A6")
	if err != nil {
		t.Fatalf("read workbook cell: %v", err)
	}
	if value != "Shampoo Nutritivo" {
		t.Fatalf("expected recipe name in first line, got %q", value)
	}
}

func TestQuoteAddLineWithoutSimulation(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	_, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	addBody := `{"batches":1}`
	req := authenticatedRequest(t, sm, http.MethodPost, "/api/quote/lines", &addBody)
	w := httptest.NewRecorder()
	QuoteResource(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 without simulation, got %d", w.Code)
	}
}
