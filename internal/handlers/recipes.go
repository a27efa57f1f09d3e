package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	applog "minerva/internal/log"
	"minerva/models"
)

type recipeRequest struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

type recipeLineRequest struct {
	IngredientID uint    `json:"ingredient_id"`
	BaseQuantity float64 `json:"base_quantity"`
}

// RecipeResource handles CRUD interactions for recipes and their stored
// base-batch compositions.
func RecipeResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "recipe request without database")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "recipe request without authenticated user")
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/recipes")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listRecipes(w, r)
		case http.MethodPost:
			createRecipe(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	segments := strings.Split(path, "/")
	idValue, err := strconv.ParseUint(segments[0], 10, 64)
	if err != nil {
		applog.Debug(r.Context(), "invalid recipe identifier", "identifier", segments[0], "error", err)
		http.NotFound(w, r)
		return
	}
	recipeID := uint(idValue)

	switch len(segments) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			showRecipe(w, r, recipeID)
		case http.MethodPut:
			updateRecipe(w, r, recipeID)
		case http.MethodDelete:
			deleteRecipe(w, r, recipeID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case 2:
		if segments[1] != "lines" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		createRecipeLine(w, r, recipeID)
	case 3:
		if segments[1] != "lines" {
			http.NotFound(w, r)
			return
		}
		lineValue, err := strconv.ParseUint(segments[2], 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodPut:
			updateRecipeLine(w, r, recipeID, uint(lineValue))
		case http.MethodDelete:
			deleteRecipeLine(w, r, recipeID, uint(lineValue))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

func listRecipes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var results []models.Recipe
	if err := database.WithContext(ctx).Order("name asc").Find(&results).Error; err != nil {
		applog.Error(ctx, "failed to list recipes", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipes")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func showRecipe(w http.ResponseWriter, r *http.Request, recipeID uint) {
	ctx := r.Context()
	var recipe models.Recipe
	if err := database.WithContext(ctx).
		Preload("Ingredients.Ingredient").
		First(&recipe, recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe")
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func createRecipe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid recipe create payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	recipe := models.Recipe{
		Name:  strings.TrimSpace(payload.Name),
		Notes: strings.TrimSpace(payload.Notes),
	}
	if err := database.WithContext(ctx).Create(&recipe).Error; err != nil {
		applog.Error(ctx, "failed to create recipe", "error", err)
		writeJSONError(w, http.StatusBadRequest, "unable to create recipe")
		return
	}

	writeJSON(w, http.StatusCreated, recipe)
}

func updateRecipe(w http.ResponseWriter, r *http.Request, recipeID uint) {
	ctx := r.Context()
	var existing models.Recipe
	if err := database.WithContext(ctx).First(&existing, recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load recipe for update", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe")
		return
	}

	var payload recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid recipe update payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	updates := map[string]any{
		"name":  strings.TrimSpace(payload.Name),
		"notes": strings.TrimSpace(payload.Notes),
	}
	if err := database.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusBadRequest, "unable to update recipe")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

func deleteRecipe(w http.ResponseWriter, r *http.Request, recipeID uint) {
	ctx := r.Context()
	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Recipe{}, recipeID).Error
	})
	if err != nil {
		applog.Error(ctx, "failed to delete recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete recipe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func createRecipeLine(w http.ResponseWriter, r *http.Request, recipeID uint) {
	ctx := r.Context()
	var payload recipeLineRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid recipe line payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validateRecipeLinePayload(payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var recipe models.Recipe
	if err := database.WithContext(ctx).First(&recipe, recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load recipe for line", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe")
		return
	}

	line := models.RecipeIngredient{
		RecipeID:     recipeID,
		IngredientID: payload.IngredientID,
		BaseQuantity: payload.BaseQuantity,
	}
	if err := database.WithContext(ctx).Create(&line).Error; err != nil {
		applog.Error(ctx, "failed to create recipe line", "error", err, "recipeID", recipeID)
		writeJSONError(w, http.StatusBadRequest, "unable to add recipe line")
		return
	}

	writeJSON(w, http.StatusCreated, line)
}

func updateRecipeLine(w http.ResponseWriter, r *http.Request, recipeID, lineID uint) {
	ctx := r.Context()
	var existing models.RecipeIngredient
	if err := database.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		First(&existing, lineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load recipe line", "error", err, "id", lineID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe line")
		return
	}

	var payload recipeLineRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid recipe line update payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validateRecipeLinePayload(payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	updates := map[string]any{
		"ingredient_id": payload.IngredientID,
		"base_quantity": payload.BaseQuantity,
	}
	if err := database.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update recipe line", "error", err, "id", lineID)
		writeJSONError(w, http.StatusBadRequest, "unable to update recipe line")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

func deleteRecipeLine(w http.ResponseWriter, r *http.Request, recipeID, lineID uint) {
	ctx := r.Context()
	if err := database.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Delete(&models.RecipeIngredient{}, lineID).Error; err != nil {
		applog.Error(ctx, "failed to delete recipe line", "error", err, "id", lineID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete recipe line")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateRecipeLinePayload(payload recipeLineRequest) error {
	if payload.IngredientID == 0 {
		return errors.New("ingredient_id is required")
	}
	if payload.BaseQuantity <= 0 {
		return errors.New("base_quantity must be greater than zero")
	}
	return nil
}
