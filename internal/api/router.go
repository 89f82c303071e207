// Package api provides the HTTP API for CropSense.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cropsense/cropsense/internal/api/handler"
	"github.com/cropsense/cropsense/internal/api/middleware"
	"github.com/cropsense/cropsense/internal/api/response"
	"github.com/cropsense/cropsense/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	// RequireTLS rejects plain HTTP requests behind a TLS-terminating proxy.
	RequireTLS bool

	Updater   handler.SensorUpdater
	State     handler.StateReader
	Predictor handler.Predictor
	Crops     handler.CropLookup

	// Languages offered by the crop information picker.
	Languages []string

	Registry           *resilience.Registry
	ClassifierLoaded   bool
	KnowledgeBaseCrops int
}

// NewRouter creates a new chi router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing()) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement

	r.NotFound(response.NotFound)
	r.MethodNotAllowed(response.MethodNotAllowed)

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:            cfg.Version,
		BuildTime:          cfg.BuildTime,
		Registry:           cfg.Registry,
		ClassifierLoaded:   cfg.ClassifierLoaded,
		KnowledgeBaseCrops: cfg.KnowledgeBaseCrops,
	})
	sensorHandler := handler.NewSensorHandler(cfg.Updater, cfg.State, cfg.Logger)
	predictionHandler := handler.NewPredictionHandler(cfg.Predictor)
	cropHandler := handler.NewCropHandler(cfg.Crops)
	pageHandler := handler.NewPageHandler(cfg.State, cfg.Languages, cfg.Version, cfg.Logger)

	// Rate limits per client IP
	updateRateLimit := middleware.RateLimitByIP(middleware.UpdateRateLimit)         // 100 req/min
	predictionRateLimit := middleware.RateLimitByIP(middleware.PredictionRateLimit) // 30 req/min

	// HTML pages and their assets
	r.Group(func(r chi.Router) {
		r.Use(middleware.PageSecurityHeaders)
		r.Get("/", pageHandler.Index)
		r.Get("/fertilizer", pageHandler.Fertilizer)
		r.Handle("/static/*", handler.Static())
	})

	// JSON endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.ContentTypeJSON)

		// Sensor updates share one limit across both paths
		r.Group(func(r chi.Router) {
			r.Use(updateRateLimit)
			r.Use(middleware.RequireJSON)
			r.Post("/update_data", sensorHandler.UpdateSensors)
			r.Post("/update_sensors", sensorHandler.UpdateSensors)
		})

		// Prediction may call the geocoding and weather providers
		r.With(predictionRateLimit, middleware.RequireJSON).Post("/get_prediction", predictionHandler.GetPrediction)

		r.Get("/get_data", sensorHandler.GetData)
		r.Get("/get_crop_info/{crop}", cropHandler.GetCropInfo)

		// Ops endpoints
		r.Route("/v1/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})
	})

	return r
}
