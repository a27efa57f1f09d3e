package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"minerva/internal/costing"
	"minerva/internal/document"
	applog "minerva/internal/log"
	"minerva/models"
)

const sessionQuoteDraftKey = "quote:draft"

type quoteLineAddRequest struct {
	Batches int `json:"batches"`
}

type quoteRepriceRequest struct {
	SalePrice float64 `json:"sale_price"`
}

type quoteFinalizeRequest struct {
	ClientID uint `json:"client_id"`
}

type quoteDraftResponse struct {
	Lines   []costing.QuoteLine  `json:"lines"`
	Summary costing.QuoteSummary `json:"summary"`
}

// QuoteResource manages the session-held quotation draft: adding the current
// simulation as a line, repricing lines and finalizing the draft to the
// database.
func QuoteResource(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "quote request without authenticated user")
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/quote")
	path = strings.Trim(path, "/")

	switch {
	case path == "":
		switch r.Method {
		case http.MethodGet:
			showQuoteDraft(w, r)
		case http.MethodDelete:
			clearQuoteDraft(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case path == "lines":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		addQuoteLine(w, r)
	case strings.HasPrefix(path, "lines/"):
		index, err := strconv.Atoi(strings.TrimPrefix(path, "lines/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodPut:
			repriceQuoteLine(w, r, index)
		case http.MethodDelete:
			removeQuoteLine(w, r, index)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case path == "finalize":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		finalizeQuote(w, r)
	default:
		http.NotFound(w, r)
	}
}

// PersistedQuoteResource serves finalized quotes and their xlsx exports.
func PersistedQuoteResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "quote request without authenticated user")
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/quotes")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		listQuotes(w, r)
		return
	}

	segments := strings.SplitN(path, "/", 2)
	idValue, err := strconv.ParseUint(segments[0], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	quoteID := uint(idValue)

	if len(segments) == 2 {
		if segments[1] != "export" || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		exportQuote(w, r, quoteID)
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	showQuote(w, r, quoteID)
}

func showQuoteDraft(w http.ResponseWriter, r *http.Request) {
	lines, _ := loadQuoteDraft(r)
	writeJSON(w, http.StatusOK, quoteDraftResponse{
		Lines:   lines,
		Summary: costing.SummarizeQuote(lines, draftExchangeRate(r)),
	})
}

func clearQuoteDraft(w http.ResponseWriter, r *http.Request) {
	if sessionManager != nil {
		sessionManager.Remove(r.Context(), sessionQuoteDraftKey)
	}
	w.WriteHeader(http.StatusNoContent)
}

func addQuoteLine(w http.ResponseWriter, r *http.Request) {
	state, ok := loadSimulation(r)
	if !ok {
		writeJSONError(w, http.StatusConflict, "no active simulation to quote")
		return
	}

	var payload quoteLineAddRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid quote line payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.Batches <= 0 {
		payload.Batches = 1
	}

	breakdown := computeBreakdown(r, state)
	pricing, ok := loadPricing(r)
	if !ok {
		pricing = costing.Pricing{}
	}
	pricing = pricing.WithCost(breakdown.TotalLocal)

	lines, _ := loadQuoteDraft(r)
	lines = append(lines, costing.NewQuoteLine(breakdown, pricing, payload.Batches))

	if err := saveQuoteDraft(r, lines); err != nil {
		applog.Error(r.Context(), "failed to store quote draft", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to update quote")
		return
	}

	writeJSON(w, http.StatusCreated, quoteDraftResponse{
		Lines:   lines,
		Summary: costing.SummarizeQuote(lines, state.ExchangeRate),
	})
}

func repriceQuoteLine(w http.ResponseWriter, r *http.Request, index int) {
	lines, ok := loadQuoteDraft(r)
	if !ok || index < 0 || index >= len(lines) {
		http.NotFound(w, r)
		return
	}

	var payload quoteRepriceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid quote reprice payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.SalePrice <= 0 {
		writeJSONError(w, http.StatusBadRequest, "sale_price must be greater than zero")
		return
	}

	rate := draftExchangeRate(r)
	lines[index] = lines[index].Reprice(payload.SalePrice, rate)

	if err := saveQuoteDraft(r, lines); err != nil {
		applog.Error(r.Context(), "failed to store quote draft", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to update quote")
		return
	}

	writeJSON(w, http.StatusOK, quoteDraftResponse{
		Lines:   lines,
		Summary: costing.SummarizeQuote(lines, rate),
	})
}

func removeQuoteLine(w http.ResponseWriter, r *http.Request, index int) {
	lines, ok := loadQuoteDraft(r)
	if !ok || index < 0 || index >= len(lines) {
		http.NotFound(w, r)
		return
	}

	lines = append(lines[:index], lines[index+1:]...)
	if err := saveQuoteDraft(r, lines); err != nil {
		applog.Error(r.Context(), "failed to store quote draft", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to update quote")
		return
	}

	writeJSON(w, http.StatusOK, quoteDraftResponse{
		Lines:   lines,
		Summary: costing.SummarizeQuote(lines, draftExchangeRate(r)),
	})
}

func finalizeQuote(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	lines, ok := loadQuoteDraft(r)
	if !ok || len(lines) == 0 {
		writeJSONError(w, http.StatusConflict, "quote draft is empty")
		return
	}

	var payload quoteFinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid quote finalize payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.ClientID == 0 {
		writeJSONError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	ctx := r.Context()
	var client models.Client
	if err := database.WithContext(ctx).First(&client, payload.ClientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSONError(w, http.StatusBadRequest, "client not found")
			return
		}
		applog.Error(ctx, "failed to load client for quote", "error", err, "clientID", payload.ClientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to finalize quote")
		return
	}

	rate := draftExchangeRate(r)
	summary := costing.SummarizeQuote(lines, rate)

	quote := models.ClientQuote{
		ClientID:     client.ID,
		MarginPct:    summary.BlendedMarginPct,
		TotalVolume:  summary.TotalVolume,
		TotalCost:    summary.TotalCostLocal,
		TotalPrice:   summary.TotalSaleLocal,
		ExchangeRate: rate,
	}
	for _, line := range lines {
		quote.Lines = append(quote.Lines, models.ClientQuoteLine{
			RecipeID:       line.RecipeID,
			RecipeName:     line.RecipeName,
			Volume:         line.Volume,
			Batches:        line.Batches,
			Cost:           line.CostLocal,
			MarginPct:      line.MarginPct,
			SalePrice:      line.SaleLocal,
			SalePriceUSD:   line.SaleForeign,
			ContainerName:  line.ContainerName,
			ContainerUnits: line.ContainerUnits,
		})
	}

	if err := database.WithContext(ctx).Create(&quote).Error; err != nil {
		applog.Error(ctx, "failed to persist quote", "error", err, "clientID", client.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to finalize quote")
		return
	}

	if sessionManager != nil {
		sessionManager.Remove(ctx, sessionQuoteDraftKey)
	}

	applog.Info(ctx, "quote finalized", "quoteID", quote.ID, "clientID", client.ID, "lines", len(quote.Lines))
	writeJSON(w, http.StatusCreated, quote)
}

func listQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var results []models.ClientQuote
	query := database.WithContext(ctx).Preload("Client").Order("id desc")

	if clientParam := strings.TrimSpace(r.URL.Query().Get("client_id")); clientParam != "" {
		if idValue, err := strconv.ParseUint(clientParam, 10, 64); err == nil {
			query = query.Where("client_id = ?", uint(idValue))
		}
	}

	if err := query.Find(&results).Error; err != nil {
		applog.Error(ctx, "failed to list quotes", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load quotes")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func showQuote(w http.ResponseWriter, r *http.Request, quoteID uint) {
	ctx := r.Context()
	quote, err := loadQuoteWithLines(r, quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load quote", "error", err, "id", quoteID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load quote")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func exportQuote(w http.ResponseWriter, r *http.Request, quoteID uint) {
	ctx := r.Context()
	quote, err := loadQuoteWithLines(r, quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load quote for export", "error", err, "id", quoteID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load quote")
		return
	}

	payload, err := document.WriteQuoteWorkbook(document.BuildQuoteDocument(quote))
	if err != nil {
		applog.Error(ctx, "failed to render quote workbook", "error", err, "id", quoteID)
		writeJSONError(w, http.StatusInternalServerError, "unable to export quote")
		return
	}

	filename := fmt.Sprintf("cotizacion_%d_%s.xlsx", quote.ID, quote.CreatedAt.Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(payload); err != nil {
		applog.Error(ctx, "failed to write quote workbook", "error", err, "id", quoteID)
	}
}

func loadQuoteWithLines(r *http.Request, quoteID uint) (models.ClientQuote, error) {
	var quote models.ClientQuote
	err := database.WithContext(r.Context()).
		Preload("Client").
		Preload("Lines").
		First(&quote, quoteID).Error
	return quote, err
}

// draftExchangeRate uses the active simulation's rate when one exists so
// dollar mirrors stay aligned with the numbers the user is looking at.
func draftExchangeRate(r *http.Request) float64 {
	if state, ok := loadSimulation(r); ok && state.ExchangeRate > 0 {
		return state.ExchangeRate
	}
	return 1
}

func loadQuoteDraft(r *http.Request) ([]costing.QuoteLine, bool) {
	if sessionManager == nil {
		return nil, false
	}
	payload := sessionManager.GetBytes(r.Context(), sessionQuoteDraftKey)
	if len(payload) == 0 {
		return nil, false
	}
	var lines []costing.QuoteLine
	if err := json.Unmarshal(payload, &lines); err != nil {
		applog.Error(r.Context(), "failed to decode quote draft", "error", err)
		return nil, false
	}
	return lines, true
}

func saveQuoteDraft(r *http.Request, lines []costing.QuoteLine) error {
	if sessionManager == nil {
		return errors.New("session manager not configured")
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	sessionManager.Put(r.Context(), sessionQuoteDraftKey, payload)
	return nil
}
