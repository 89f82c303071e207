// Package main provides the entrypoint for the CropSense API server.
package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cropsense/cropsense/internal/api"
	"github.com/cropsense/cropsense/internal/api/middleware"
	"github.com/cropsense/cropsense/internal/classifier"
	"github.com/cropsense/cropsense/internal/config"
	"github.com/cropsense/cropsense/internal/crop"
	"github.com/cropsense/cropsense/internal/ingest"
	"github.com/cropsense/cropsense/internal/location"
	"github.com/cropsense/cropsense/internal/location/nominatim"
	"github.com/cropsense/cropsense/internal/location/openmeteo"
	"github.com/cropsense/cropsense/internal/prediction"
	"github.com/cropsense/cropsense/internal/provider/resilience"
	"github.com/cropsense/cropsense/internal/sensor"
	"github.com/cropsense/cropsense/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "cropsense-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, _ := zerolog.ParseLevel(strings.ToLower(cfg.App.LogLevel))
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting CropSense API")

	// Initialize OpenTelemetry
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		ClassifierPath: cfg.Model.ClassifierPath,
		RangeAction:    cfg.Sensor.RangeAction,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize http metrics")
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}
	predictionMetrics, err := telemetry.NewPredictionMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize prediction metrics")
	}

	// Load the classifier; predictions fall back to the rainfall rule without it
	var model classifier.Classifier
	forest, err := classifier.Load(cfg.Model.ClassifierPath)
	switch {
	case err == nil:
		model = forest
		log.Info().
			Str("path", cfg.Model.ClassifierPath).
			Int("trees", len(forest.Trees)).
			Strs("classes", forest.Classes).
			Float64("holdout_accuracy", forest.Accuracy).
			Msg("classifier loaded")
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().
			Str("path", cfg.Model.ClassifierPath).
			Msg("classifier not found, using fallback rule")
	default:
		log.Warn().
			Err(err).
			Str("path", cfg.Model.ClassifierPath).
			Msg("classifier could not be loaded, using fallback rule")
	}

	kb, err := crop.LoadKnowledgeBase(cfg.Model.KnowledgeBasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load crop knowledge base")
	}
	log.Info().
		Int("crops", kb.Len()).
		Strs("languages", kb.Languages()).
		Msg("crop knowledge base loaded")

	// Outbound providers
	registry := resilience.NewRegistry()
	newProviderClient := func(name string, role resilience.Role, userAgent string) *resilience.Client {
		clientCfg := resilience.DefaultClientConfig(name)
		clientCfg.Role = role
		clientCfg.Timeout = cfg.Providers.Timeout
		clientCfg.MaxRetries = retries(cfg.Providers.MaxRetries)
		clientCfg.UserAgent = userAgent
		clientCfg.Registry = registry
		cbCfg := resilience.DefaultCircuitBreakerConfig(name)
		cbCfg.OnStateChange = resilience.LogStateChange(log)
		clientCfg.CircuitBreaker = &cbCfg
		return resilience.NewClient(clientCfg)
	}

	geocoder := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    cfg.Providers.NominatimBaseURL,
		HTTPClient: newProviderClient(nominatim.ProviderName, resilience.RoleGeocoder, cfg.Providers.GeocoderUserAgent()),
		Logger:     log,
	})
	weather := openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:    cfg.Providers.OpenMeteoBaseURL,
		HTTPClient: newProviderClient(openmeteo.ProviderName, resilience.RoleRainfall, cfg.Providers.UserAgent),
		Logger:     log,
	})

	enricher := location.NewEnricher(location.EnricherConfig{
		Geocoder:       geocoder,
		Rainfall:       weather,
		Cache:          location.NewCache(cfg.Sensor.LocationEpsilon),
		RainfallWindow: cfg.Sensor.RainfallWindow(),
		Metrics:        providerMetrics,
		Logger:         log,
	})

	// Sensor state, updates and prediction
	policy, err := cfg.Sensor.Policy()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid sensor policy")
	}
	store := sensor.NewStore()
	pipeline := prediction.NewPipeline(prediction.PipelineConfig{
		Classifier: model,
		Enricher:   enricher,
		Store:      store,
		Metrics:    predictionMetrics,
		Logger:     log,
	})
	updater := ingest.NewUpdater(ingest.UpdaterConfig{
		Policy:    &policy,
		Store:     store,
		Predictor: pipeline,
		Metrics:   predictionMetrics,
		Logger:    log,
	})

	// Optional message feeds share the HTTP update path
	ingestErr := startIngest(ctx, log, buildConsumers(ctx, cfg, updater, log))

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		Metrics:            httpMetrics,
		RequireTLS:         cfg.App.RequireTLS,
		Updater:            updater,
		State:              store,
		Predictor:          pipeline,
		Crops:              kb,
		Languages:          kb.Languages(),
		Registry:           registry,
		ClassifierLoaded:   pipeline.HasClassifier(),
		KnowledgeBaseCrops: kb.Len(),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for a signal, a server failure or a consumer failure
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
	case err := <-ingestErr:
		log.Error().Err(err).Msg("sensor ingestion stopped")
	}
	stop()

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// startIngest runs the consumers in the background. The returned channel only
// ever carries a consumer failure; it is nil when there is nothing to run, so
// the HTTP server keeps serving without any feed configured.
func startIngest(ctx context.Context, log zerolog.Logger, consumers []ingest.Consumer) <-chan error {
	if len(consumers) == 0 {
		log.Info().Msg("no sensor feeds configured, accepting HTTP updates only")
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		if err := ingest.Run(ctx, log, consumers...); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// buildConsumers creates the configured Kafka and Pub/Sub consumers. A feed
// that cannot be set up is logged and skipped so HTTP updates keep working.
func buildConsumers(ctx context.Context, cfg *config.Config, updater *ingest.Updater, log zerolog.Logger) []ingest.Consumer {
	var consumers []ingest.Consumer

	if cfg.Ingest.KafkaEnabled() {
		c, err := ingest.NewKafkaConsumer(ingest.KafkaConfig{
			Brokers: cfg.Ingest.KafkaBrokers,
			Topic:   cfg.Ingest.KafkaTopic,
			GroupID: cfg.Ingest.KafkaGroup,
			Updater: updater,
			Logger:  log,
		})
		if err != nil {
			log.Error().Err(err).Msg("kafka ingestion disabled")
		} else {
			consumers = append(consumers, c)
		}
	}

	if cfg.Ingest.PubSubEnabled() {
		c, err := ingest.NewPubSubConsumer(ctx, ingest.PubSubConfig{
			ProjectID:        cfg.Ingest.PubSubProject,
			SubscriptionName: cfg.Ingest.PubSubSubscription,
			Updater:          updater,
			Logger:           log,
		})
		if err != nil {
			log.Error().Err(err).Msg("pubsub ingestion disabled")
		} else {
			consumers = append(consumers, c)
		}
	}

	return consumers
}

// retries maps PROVIDER_MAX_RETRIES onto the resilient client. Zero disables
// retrying instead of selecting the client default.
func retries(n int) uint64 {
	if n <= 0 {
		return resilience.NoRetries
	}
	return uint64(n)
}
