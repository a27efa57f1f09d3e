package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	applog "minerva/internal/log"
	"minerva/models"
)

type containerRequest struct {
	Description string  `json:"description"`
	Capacity    float64 `json:"capacity"`
}

type containerPriceRequest struct {
	UnitPrice  float64    `json:"unit_price"`
	ObservedAt *time.Time `json:"observed_at"`
}

// ContainerResource handles CRUD interactions for packaging containers and
// their foreign-currency price observations.
func ContainerResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "container request without database")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "container request without authenticated user")
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/containers")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listContainers(w, r)
		case http.MethodPost:
			createContainer(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	segments := strings.SplitN(path, "/", 2)
	idValue, err := strconv.ParseUint(segments[0], 10, 64)
	if err != nil {
		applog.Debug(r.Context(), "invalid container identifier", "identifier", segments[0], "error", err)
		http.NotFound(w, r)
		return
	}
	containerID := uint(idValue)

	if len(segments) == 2 {
		if segments[1] != "prices" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		createContainerPrice(w, r, containerID)
		return
	}

	switch r.Method {
	case http.MethodGet:
		showContainer(w, r, containerID)
	case http.MethodPut:
		updateContainer(w, r, containerID)
	case http.MethodDelete:
		deleteContainer(w, r, containerID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listContainers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var results []models.Container
	if err := database.WithContext(ctx).Order("description asc").Find(&results).Error; err != nil {
		applog.Error(ctx, "failed to list containers", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load containers")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func showContainer(w http.ResponseWriter, r *http.Request, containerID uint) {
	ctx := r.Context()
	var container models.Container
	if err := database.WithContext(ctx).
		Preload("Prices", func(db *gorm.DB) *gorm.DB {
			return db.Order("observed_at DESC, id DESC")
		}).
		First(&container, containerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load container", "error", err, "id", containerID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load container")
		return
	}
	writeJSON(w, http.StatusOK, container)
}

func createContainer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload containerRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid container create payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validateContainerPayload(payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	container := models.Container{
		Description: strings.TrimSpace(payload.Description),
		Capacity:    payload.Capacity,
	}
	if err := database.WithContext(ctx).Create(&container).Error; err != nil {
		applog.Error(ctx, "failed to create container", "error", err)
		writeJSONError(w, http.StatusBadRequest, "unable to create container")
		return
	}

	writeJSON(w, http.StatusCreated, container)
}

func updateContainer(w http.ResponseWriter, r *http.Request, containerID uint) {
	ctx := r.Context()
	var existing models.Container
	if err := database.WithContext(ctx).First(&existing, containerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load container for update", "error", err, "id", containerID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load container")
		return
	}

	var payload containerRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid container update payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validateContainerPayload(payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	updates := map[string]any{
		"description": strings.TrimSpace(payload.Description),
		"capacity":    payload.Capacity,
	}
	if err := database.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update container", "error", err, "id", containerID)
		writeJSONError(w, http.StatusBadRequest, "unable to update container")
		return
	}

	invalidateCatalog()
	writeJSON(w, http.StatusOK, existing)
}

func deleteContainer(w http.ResponseWriter, r *http.Request, containerID uint) {
	ctx := r.Context()
	if err := database.WithContext(ctx).Delete(&models.Container{}, containerID).Error; err != nil {
		applog.Error(ctx, "failed to delete container", "error", err, "id", containerID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete container")
		return
	}
	invalidateCatalog()
	w.WriteHeader(http.StatusNoContent)
}

func createContainerPrice(w http.ResponseWriter, r *http.Request, containerID uint) {
	ctx := r.Context()
	var payload containerPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid container price payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.UnitPrice <= 0 {
		writeJSONError(w, http.StatusBadRequest, "unit_price must be greater than zero")
		return
	}

	var container models.Container
	if err := database.WithContext(ctx).First(&container, containerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load container for price", "error", err, "id", containerID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load container")
		return
	}

	observedAt := time.Now().UTC()
	if payload.ObservedAt != nil {
		observedAt = payload.ObservedAt.UTC()
	}

	price := models.ContainerPrice{
		ContainerID: containerID,
		UnitPrice:   payload.UnitPrice,
		ObservedAt:  observedAt,
	}
	if err := database.WithContext(ctx).Create(&price).Error; err != nil {
		applog.Error(ctx, "failed to create container price", "error", err, "containerID", containerID)
		writeJSONError(w, http.StatusBadRequest, "unable to record container price")
		return
	}

	invalidateCatalog()
	writeJSON(w, http.StatusCreated, price)
}

func validateContainerPayload(payload containerRequest) error {
	if strings.TrimSpace(payload.Description) == "" {
		return errors.New("description is required")
	}
	if payload.Capacity <= 0 {
		return errors.New("capacity must be greater than zero")
	}
	return nil
}
