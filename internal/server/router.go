package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"minerva/internal/handlers"
	applog "minerva/internal/log"
)

func newRouter(metricsEnabled bool) http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")

	mux.HandleFunc("/healthz", handlers.Health)
	mux.HandleFunc("/api/login", handlers.Login)
	mux.HandleFunc("/api/signup", handlers.Signup)
	mux.HandleFunc("/api/logout", handlers.Logout)

	protected := map[string]http.HandlerFunc{
		"/api/ingredients": handlers.IngredientResource,
		"/api/recipes":     handlers.RecipeResource,
		"/api/containers":  handlers.ContainerResource,
		"/api/clients":     handlers.ClientResource,
		"/api/expenses":    handlers.ExpenseResource,
		"/api/simulation":  handlers.SimulationResource,
		"/api/quote":       handlers.QuoteResource,
		"/api/quotes":      handlers.PersistedQuoteResource,
	}
	for path, handler := range protected {
		wrapped := handlers.RequireAuthentication(handler)
		mux.Handle(path, wrapped)
		mux.Handle(path+"/", wrapped)
		applog.Debug(context.Background(), "route registered", "path", path, "protected", true)
	}

	if metricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		applog.Debug(context.Background(), "route registered", "path", "/metrics")
	}

	return mux
}
