// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/cropsense/cropsense/internal/sensor"
)

const maxPortNumber = 65535

// Config is the complete service configuration.
type Config struct {
	App       AppConfig       `split_words:"true"`
	Telemetry TelemetryConfig `split_words:"true"`
	Model     ModelConfig     `split_words:"true"`
	Sensor    SensorConfig    `split_words:"true"`
	Providers ProviderConfig  `split_words:"true"`
	Ingest    IngestConfig    `split_words:"true"`
}

type AppConfig struct {
	Port     int    `envconfig:"APP_PORT" default:"8080"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool `envconfig:"REQUIRE_TLS" default:"false"`
}

type TelemetryConfig struct {
	Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	SampleRatio  float64 `envconfig:"OTEL_SAMPLE_RATIO" default:"1.0"`
}

type ModelConfig struct {
	// ClassifierPath is the trained forest artifact. A missing file is not
	// fatal: predictions fall back to the rainfall rule.
	ClassifierPath string `envconfig:"CLASSIFIER_PATH" default:"crop_model.json"`

	// KnowledgeBasePath overrides the embedded crop knowledge base.
	KnowledgeBasePath string `envconfig:"CROP_KB_PATH"`
}

type SensorConfig struct {
	RangeAction        string  `envconfig:"SENSOR_RANGE_ACTION" default:"reject"`
	LocationEpsilon    float64 `envconfig:"LOCATION_EPSILON" default:"0.001"`
	RainfallWindowDays int     `envconfig:"RAINFALL_WINDOW_DAYS" default:"120"`
}

// Policy returns the sensor range policy selected by RangeAction.
func (s SensorConfig) Policy() (sensor.Policy, error) {
	action, err := sensor.ParseAction(s.RangeAction)
	if err != nil {
		return sensor.Policy{}, err
	}
	return sensor.DefaultPolicy().WithAction(action), nil
}

// RainfallWindow returns the trailing rainfall window as a duration.
func (s SensorConfig) RainfallWindow() time.Duration {
	return time.Duration(s.RainfallWindowDays) * 24 * time.Hour
}

type ProviderConfig struct {
	NominatimBaseURL   string        `envconfig:"NOMINATIM_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	NominatimUserAgent string        `envconfig:"NOMINATIM_USER_AGENT"`
	UserAgent          string        `envconfig:"PROVIDER_USER_AGENT" default:"cropsense/1.0"`
	OpenMeteoBaseURL   string        `envconfig:"OPEN_METEO_BASE_URL" default:"https://archive-api.open-meteo.com/v1"`
	Timeout            time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
	MaxRetries         int           `envconfig:"PROVIDER_MAX_RETRIES" default:"2"`
}

// GeocoderUserAgent is the agent sent to Nominatim. Its usage policy asks for
// an identifying agent, so operators can set one apart from PROVIDER_USER_AGENT.
func (p ProviderConfig) GeocoderUserAgent() string {
	if p.NominatimUserAgent != "" {
		return p.NominatimUserAgent
	}
	return p.UserAgent
}

type IngestConfig struct {
	KafkaBrokers       []string `envconfig:"INGEST_KAFKA_BROKERS"`
	KafkaTopic         string   `envconfig:"INGEST_KAFKA_TOPIC" default:"sensor-readings"`
	KafkaGroup         string   `envconfig:"INGEST_KAFKA_GROUP" default:"cropsense"`
	PubSubProject      string   `envconfig:"INGEST_PUBSUB_PROJECT"`
	PubSubSubscription string   `envconfig:"INGEST_PUBSUB_SUBSCRIPTION"`
}

// KafkaEnabled reports whether a Kafka consumer should run.
func (i IngestConfig) KafkaEnabled() bool {
	return len(i.KafkaBrokers) > 0
}

// PubSubEnabled reports whether a Pub/Sub consumer should run.
func (i IngestConfig) PubSubEnabled() bool {
	return i.PubSubProject != ""
}

// Load reads the given .env files (default ".env") when present, then the
// environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.App.Port < 1 || c.App.Port > maxPortNumber {
		return errors.New("APP_PORT must be between 1 and 65535")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.App.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return errors.New("OTEL_SAMPLE_RATIO must be between 0 and 1")
	}
	if _, err := sensor.ParseAction(c.Sensor.RangeAction); err != nil {
		return fmt.Errorf("SENSOR_RANGE_ACTION: %w", err)
	}
	if c.Sensor.LocationEpsilon <= 0 {
		return errors.New("LOCATION_EPSILON must be positive")
	}
	if c.Sensor.RainfallWindowDays < 1 {
		return errors.New("RAINFALL_WINDOW_DAYS must be at least 1")
	}
	for name, u := range map[string]string{
		"NOMINATIM_BASE_URL":  c.Providers.NominatimBaseURL,
		"OPEN_METEO_BASE_URL": c.Providers.OpenMeteoBaseURL,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%s must start with http:// or https://", name)
		}
	}
	if c.Providers.Timeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT must be positive")
	}
	if c.Providers.MaxRetries < 0 {
		return errors.New("PROVIDER_MAX_RETRIES cannot be negative")
	}
	if c.Ingest.KafkaEnabled() && c.Ingest.KafkaTopic == "" {
		return errors.New("INGEST_KAFKA_TOPIC is required when INGEST_KAFKA_BROKERS is set")
	}
	if c.Ingest.PubSubEnabled() && c.Ingest.PubSubSubscription == "" {
		return errors.New("INGEST_PUBSUB_SUBSCRIPTION is required when INGEST_PUBSUB_PROJECT is set")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
