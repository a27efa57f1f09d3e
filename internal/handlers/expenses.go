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

type expenseRequest struct {
	Category    string     `json:"category"`
	Beneficiary string     `json:"beneficiary"`
	Reference   string     `json:"reference"`
	Amount      float64    `json:"amount"`
	InvoiceDate time.Time  `json:"invoice_date"`
	PaymentDate *time.Time `json:"payment_date"`
	Notes       string     `json:"notes"`
}

// ExpenseResource handles CRUD interactions for fixed expenses plus the
// monthly summary used for overhead allocation.
func ExpenseResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "expense request without database")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "expense request without authenticated user")
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/expenses")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listExpenses(w, r)
		case http.MethodPost:
			createExpense(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if path == "summary" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		showExpenseSummary(w, r)
		return
	}

	idValue, err := strconv.ParseUint(path, 10, 64)
	if err != nil {
		applog.Debug(r.Context(), "invalid expense identifier", "identifier", path, "error", err)
		http.NotFound(w, r)
		return
	}
	expenseID := uint(idValue)

	switch r.Method {
	case http.MethodGet:
		showExpense(w, r, expenseID)
	case http.MethodPut:
		updateExpense(w, r, expenseID)
	case http.MethodDelete:
		deleteExpense(w, r, expenseID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var results []models.Expense
	query := database.WithContext(ctx).Order("invoice_date desc, id desc")

	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Find(&results).Error; err != nil {
		applog.Error(ctx, "failed to list expenses", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load expenses")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func showExpense(w http.ResponseWriter, r *http.Request, expenseID uint) {
	ctx := r.Context()
	var expense models.Expense
	if err := database.WithContext(ctx).First(&expense, expenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load expense", "error", err, "id", expenseID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load expense")
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func createExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid expense create payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validateExpensePayload(payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	expense := models.Expense{
		Category:    strings.TrimSpace(payload.Category),
		Beneficiary: strings.TrimSpace(payload.Beneficiary),
		Reference:   strings.TrimSpace(payload.Reference),
		Amount:      payload.Amount,
		InvoiceDate: payload.InvoiceDate.UTC(),
		PaymentDate: payload.PaymentDate,
		Notes:       strings.TrimSpace(payload.Notes),
	}
	if err := database.WithContext(ctx).Create(&expense).Error; err != nil {
		applog.Error(ctx, "failed to create expense", "error", err)
		writeJSONError(w, http.StatusBadRequest, "unable to create expense")
		return
	}

	writeJSON(w, http.StatusCreated, expense)
}

func updateExpense(w http.ResponseWriter, r *http.Request, expenseID uint) {
	ctx := r.Context()
	var existing models.Expense
	if err := database.WithContext(ctx).First(&existing, expenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load expense for update", "error", err, "id", expenseID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load expense")
		return
	}

	var payload expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid expense update payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validateExpensePayload(payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	updates := map[string]any{
		"category":     strings.TrimSpace(payload.Category),
		"beneficiary":  strings.TrimSpace(payload.Beneficiary),
		"reference":    strings.TrimSpace(payload.Reference),
		"amount":       payload.Amount,
		"invoice_date": payload.InvoiceDate.UTC(),
		"payment_date": payload.PaymentDate,
		"notes":        strings.TrimSpace(payload.Notes),
	}
	if err := database.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update expense", "error", err, "id", expenseID)
		writeJSONError(w, http.StatusBadRequest, "unable to update expense")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

func deleteExpense(w http.ResponseWriter, r *http.Request, expenseID uint) {
	ctx := r.Context()
	if err := database.WithContext(ctx).Delete(&models.Expense{}, expenseID).Error; err != nil {
		applog.Error(ctx, "failed to delete expense", "error", err, "id", expenseID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete expense")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func showExpenseSummary(w http.ResponseWriter, r *http.Request) {
	if catalogStore == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	now := time.Now().UTC()
	year := parseQueryInt(r, "year", now.Year())
	month := parseQueryInt(r, "month", int(now.Month()))
	if month < 1 || month > 12 {
		writeJSONError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	lines, err := catalogStore.MonthlyExpenseLines(r.Context(), year, time.Month(month))
	if err != nil {
		applog.Error(r.Context(), "failed to summarize expenses", "error", err, "year", year, "month", month)
		writeJSONError(w, http.StatusInternalServerError, "unable to summarize expenses")
		return
	}

	total := 0.0
	for _, line := range lines {
		total += line.Amount
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"year":  year,
		"month": month,
		"lines": lines,
		"total": total,
	})
}

func parseQueryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}

func validateExpensePayload(payload expenseRequest) error {
	if strings.TrimSpace(payload.Category) == "" {
		return errors.New("category is required")
	}
	if payload.Amount <= 0 {
		return errors.New("amount must be greater than zero")
	}
	if payload.InvoiceDate.IsZero() {
		return errors.New("invoice_date is required")
	}
	return nil
}
