package api

import (
	"context"
	"fmt"

	"github.com/coalops/minesafe/internal/advice"
	"github.com/coalops/minesafe/internal/config"
	"github.com/coalops/minesafe/internal/db"
	"github.com/coalops/minesafe/internal/repository/sqlite"
	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/internal/validation"
	"github.com/gorilla/mux"
)

// SetupRoutes wires repositories, the scoring engine, and all HTTP handlers
// into one router. advisor may be nil when LLM coaching is disabled.
func SetupRoutes(ctx context.Context, cfg *config.Config, version, buildTime string, conn *db.DB, advisor *advice.Advisor) (*mux.Router, error) {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Repository
	repo := sqlite.New(conn, nil)

	// Scoring engine
	issuer := scoring.NewIssuer(repo)
	updater := scoring.NewUpdater(repo, issuer, nil)
	predictor := scoring.NewPredictor(repo)

	validator, err := validation.NewLoader(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("load event schemas: %w", err)
	}

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(repo, cfg.JWTSecret, cfg.TokenDuration)
	eventsHandler := NewEventsHandler(repo, repo, updater, validator)
	complianceHandler := NewComplianceHandler(repo, repo, repo, repo)
	alertsHandler := NewAlertsHandler(repo, issuer)
	predictHandler := NewPredictHandler(predictor, advisor)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", authHandler.Signout).Methods("POST")

	// Event ingestion and log
	apiV1.HandleFunc("/events", eventsHandler.CreateEvent).Methods("POST")
	apiV1.HandleFunc("/events", eventsHandler.ListEvents).Methods("GET")

	// Compliance
	apiV1.HandleFunc("/compliance/trend", complianceHandler.Trend).Methods("GET")
	apiV1.HandleFunc("/risk/predict", predictHandler.Predict).Methods("POST")

	// Alerts
	apiV1.HandleFunc("/alerts", alertsHandler.ListAlerts).Methods("GET")

	// Supervisory endpoints
	superV1 := apiV1.PathPrefix("").Subrouter()
	superV1.Use(RequireSupervisoryRole)
	superV1.HandleFunc("/compliance/overview", complianceHandler.Overview).Methods("GET")
	superV1.HandleFunc("/alerts/{id:[0-9]+}/acknowledge", alertsHandler.AcknowledgeAlert).Methods("POST")

	return r, nil
}
