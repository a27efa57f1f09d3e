package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"minerva/internal/costing"
	applog "minerva/internal/log"
	"minerva/models"
)

type ingredientRequest struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

type purchasePriceRequest struct {
	UnitPrice   float64    `json:"unit_price"`
	QuoteRate   float64    `json:"quote_rate"`
	FreightCost float64    `json:"freight_cost"`
	OtherCosts  float64    `json:"other_costs"`
	ObservedAt  *time.Time `json:"observed_at"`
}

type componentRequest struct {
	ComponentID uint    `json:"component_id"`
	Proportion  float64 `json:"proportion"`
}

type resolvedPriceResponse struct {
	UnitPrice    float64 `json:"unit_price"`
	QuoteRate    float64 `json:"quote_rate"`
	FreightAddon float64 `json:"freight_addon"`
	OtherAddon   float64 `json:"other_addon"`
	Foreign      bool    `json:"foreign"`
}

// IngredientResource handles CRUD interactions for ingredients, their price
// observations and compound compositions.
func IngredientResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "ingredient request without database")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "ingredient request without authenticated user")
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/ingredients")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listIngredients(w, r)
		case http.MethodPost:
			createIngredient(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	segments := strings.SplitN(path, "/", 2)
	idValue, err := strconv.ParseUint(segments[0], 10, 64)
	if err != nil {
		applog.Debug(r.Context(), "invalid ingredient identifier", "identifier", segments[0], "error", err)
		http.NotFound(w, r)
		return
	}
	ingredientID := uint(idValue)

	if len(segments) == 2 {
		switch segments[1] {
		case "prices":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			createPurchasePrice(w, r, ingredientID)
		case "components":
			if r.Method != http.MethodPut {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			replaceComponents(w, r, ingredientID)
		case "price":
			if r.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			showResolvedPrice(w, r, ingredientID)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		showIngredient(w, r, ingredientID)
	case http.MethodPut:
		updateIngredient(w, r, ingredientID)
	case http.MethodDelete:
		deleteIngredient(w, r, ingredientID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listIngredients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var results []models.Ingredient
	if err := database.WithContext(ctx).Order("name asc").Find(&results).Error; err != nil {
		applog.Error(ctx, "failed to list ingredients", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredients")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func showIngredient(w http.ResponseWriter, r *http.Request, ingredientID uint) {
	ctx := r.Context()
	var ingredient models.Ingredient
	if err := database.WithContext(ctx).
		Preload("Components.Component").
		Preload("Prices", func(db *gorm.DB) *gorm.DB {
			return db.Order("observed_at DESC, id DESC")
		}).
		First(&ingredient, ingredientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load ingredient", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredient")
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}

func createIngredient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload ingredientRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid ingredient create payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	ingredient := models.Ingredient{
		Name: strings.TrimSpace(payload.Name),
		Unit: normalizedUnit(payload.Unit),
	}
	if err := database.WithContext(ctx).Create(&ingredient).Error; err != nil {
		applog.Error(ctx, "failed to create ingredient", "error", err)
		writeJSONError(w, http.StatusBadRequest, "unable to create ingredient")
		return
	}

	writeJSON(w, http.StatusCreated, ingredient)
}

func updateIngredient(w http.ResponseWriter, r *http.Request, ingredientID uint) {
	ctx := r.Context()
	var existing models.Ingredient
	if err := database.WithContext(ctx).First(&existing, ingredientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load ingredient for update", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredient")
		return
	}

	var payload ingredientRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid ingredient update payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	updates := map[string]any{
		"name": strings.TrimSpace(payload.Name),
		"unit": normalizedUnit(payload.Unit),
	}
	if err := database.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update ingredient", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusBadRequest, "unable to update ingredient")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

func deleteIngredient(w http.ResponseWriter, r *http.Request, ingredientID uint) {
	ctx := r.Context()
	if err := database.WithContext(ctx).Delete(&models.Ingredient{}, ingredientID).Error; err != nil {
		applog.Error(ctx, "failed to delete ingredient", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete ingredient")
		return
	}
	invalidateCatalog()
	w.WriteHeader(http.StatusNoContent)
}

func createPurchasePrice(w http.ResponseWriter, r *http.Request, ingredientID uint) {
	ctx := r.Context()
	var payload purchasePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid purchase price payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.UnitPrice <= 0 {
		writeJSONError(w, http.StatusBadRequest, "unit_price must be greater than zero")
		return
	}

	var ingredient models.Ingredient
	if err := database.WithContext(ctx).First(&ingredient, ingredientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load ingredient for price", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredient")
		return
	}

	observedAt := time.Now().UTC()
	if payload.ObservedAt != nil {
		observedAt = payload.ObservedAt.UTC()
	}
	quoteRate := payload.QuoteRate
	if quoteRate <= 0 {
		quoteRate = 1
	}

	price := models.PurchasePrice{
		IngredientID: ingredientID,
		UnitPrice:    payload.UnitPrice,
		QuoteRate:    quoteRate,
		FreightCost:  payload.FreightCost,
		OtherCosts:   payload.OtherCosts,
		ObservedAt:   observedAt,
	}
	if err := database.WithContext(ctx).Create(&price).Error; err != nil {
		applog.Error(ctx, "failed to create purchase price", "error", err, "ingredientID", ingredientID)
		writeJSONError(w, http.StatusBadRequest, "unable to record purchase price")
		return
	}

	invalidateCatalog()
	writeJSON(w, http.StatusCreated, price)
}

func replaceComponents(w http.ResponseWriter, r *http.Request, ingredientID uint) {
	ctx := r.Context()
	var payload []componentRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid component payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	for _, component := range payload {
		if component.ComponentID == 0 || component.ComponentID == ingredientID {
			writeJSONError(w, http.StatusBadRequest, "component_id must reference another ingredient")
			return
		}
		if component.Proportion <= 0 {
			writeJSONError(w, http.StatusBadRequest, "proportion must be greater than zero")
			return
		}
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("compound_id = ?", ingredientID).Delete(&models.IngredientComponent{}).Error; err != nil {
			return err
		}
		for _, component := range payload {
			row := models.IngredientComponent{
				CompoundID:  ingredientID,
				ComponentID: component.ComponentID,
				Proportion:  component.Proportion,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		applog.Error(ctx, "failed to replace components", "error", err, "ingredientID", ingredientID)
		writeJSONError(w, http.StatusBadRequest, "unable to update composition")
		return
	}

	invalidateCatalog()
	w.WriteHeader(http.StatusNoContent)
}

func showResolvedPrice(w http.ResponseWriter, r *http.Request, ingredientID uint) {
	if catalogStore == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	price := catalogStore.LatestIngredientPrice(r.Context(), ingredientID)
	if price == (costing.LatestPrice{}) {
		writeJSONError(w, http.StatusNotFound, "no price observations for ingredient")
		return
	}

	writeJSON(w, http.StatusOK, resolvedPriceResponse{
		UnitPrice:    price.UnitPrice,
		QuoteRate:    price.QuoteRate,
		FreightAddon: price.FreightAddon,
		OtherAddon:   price.OtherAddon,
		Foreign:      price.QuoteRate > 1,
	})
}

func invalidateCatalog() {
	if catalogStore != nil {
		catalogStore.Invalidate()
	}
}

func normalizedUnit(unit string) string {
	trimmed := strings.TrimSpace(unit)
	if trimmed == "" {
		return "kg"
	}
	return trimmed
}
