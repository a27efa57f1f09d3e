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

type clientRequest struct {
	Name    string `json:"name"`
	TaxID   string `json:"tax_id"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// ClientResource handles CRUD interactions for quotation clients.
func ClientResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "client request without database")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "client request without authenticated user")
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/clients")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listClients(w, r)
		case http.MethodPost:
			createClient(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	idValue, err := strconv.ParseUint(path, 10, 64)
	if err != nil {
		applog.Debug(r.Context(), "invalid client identifier", "identifier", path, "error", err)
		http.NotFound(w, r)
		return
	}
	clientID := uint(idValue)

	switch r.Method {
	case http.MethodGet:
		showClient(w, r, clientID)
	case http.MethodPut:
		updateClient(w, r, clientID)
	case http.MethodDelete:
		deleteClient(w, r, clientID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var results []models.Client
	if err := database.WithContext(ctx).Order("name asc").Find(&results).Error; err != nil {
		applog.Error(ctx, "failed to list clients", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load clients")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func showClient(w http.ResponseWriter, r *http.Request, clientID uint) {
	ctx := r.Context()
	var client models.Client
	if err := database.WithContext(ctx).First(&client, clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load client", "error", err, "id", clientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load client")
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func createClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload clientRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid client create payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	client := models.Client{
		Name:    strings.TrimSpace(payload.Name),
		TaxID:   strings.TrimSpace(payload.TaxID),
		Email:   strings.TrimSpace(payload.Email),
		Phone:   strings.TrimSpace(payload.Phone),
		Address: strings.TrimSpace(payload.Address),
	}
	if err := database.WithContext(ctx).Create(&client).Error; err != nil {
		applog.Error(ctx, "failed to create client", "error", err)
		writeJSONError(w, http.StatusBadRequest, "unable to create client")
		return
	}

	writeJSON(w, http.StatusCreated, client)
}

func updateClient(w http.ResponseWriter, r *http.Request, clientID uint) {
	ctx := r.Context()
	var existing models.Client
	if err := database.WithContext(ctx).First(&existing, clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load client for update", "error", err, "id", clientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load client")
		return
	}

	var payload clientRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid client update payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	updates := map[string]any{
		"name":    strings.TrimSpace(payload.Name),
		"tax_id":  strings.TrimSpace(payload.TaxID),
		"email":   strings.TrimSpace(payload.Email),
		"phone":   strings.TrimSpace(payload.Phone),
		"address": strings.TrimSpace(payload.Address),
	}
	if err := database.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update client", "error", err, "id", clientID)
		writeJSONError(w, http.StatusBadRequest, "unable to update client")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

func deleteClient(w http.ResponseWriter, r *http.Request, clientID uint) {
	ctx := r.Context()
	if err := database.WithContext(ctx).Delete(&models.Client{}, clientID).Error; err != nil {
		applog.Error(ctx, "failed to delete client", "error", err, "id", clientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete client")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
