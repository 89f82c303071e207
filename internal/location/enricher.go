package location

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cropsense/cropsense/internal/telemetry"
)

// DefaultRainfallWindow is the trailing period summed for seasonal rainfall.
const DefaultRainfallWindow = 120 * 24 * time.Hour

// EnricherConfig holds configuration for the location enricher.
type EnricherConfig struct {
	// Geocoder resolves coordinates to an address (required).
	Geocoder Geocoder

	// Rainfall returns historical precipitation (required).
	Rainfall RainfallProvider

	// Cache is the single-slot context cache (optional, created if nil).
	Cache *Cache

	// RainfallWindow is the trailing period to sum (default: 120 days).
	RainfallWindow time.Duration

	// Metrics records provider calls and cache hits (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for enrichment operations.
	Logger zerolog.Logger

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Enricher refreshes the location context when the device moves.
type Enricher struct {
	geocoder Geocoder
	rainfall RainfallProvider
	cache    *Cache
	window   time.Duration
	metrics  *telemetry.ProviderMetrics
	logger   zerolog.Logger
	now      func() time.Time

	// refreshMu serializes outbound refreshes so concurrent requests for the
	// same new position trigger one set of lookups.
	refreshMu sync.Mutex
}

// NewEnricher creates a new location enricher.
func NewEnricher(cfg EnricherConfig) *Enricher {
	cache := cfg.Cache
	if cache == nil {
		cache = NewCache(DefaultEpsilon)
	}

	window := cfg.RainfallWindow
	if window == 0 {
		window = DefaultRainfallWindow
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Enricher{
		geocoder: cfg.Geocoder,
		rainfall: cfg.Rainfall,
		cache:    cache,
		window:   window,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      now,
	}
}

// Current returns the cached context without refreshing.
func (e *Enricher) Current() Context {
	return e.cache.Current()
}

// Invalidate forces the next refresh to perform lookups.
func (e *Enricher) Invalidate() {
	e.cache.Invalidate()
}

// Refresh returns the location context for lat/lon. Lookups run only when
// both coordinates are non-zero and the position moved more than the cache
// epsilon. Lookup failures degrade to fallback values and are never returned.
func (e *Enricher) Refresh(ctx context.Context, lat, lon float64) (Context, Outcome) {
	if lat == 0 || lon == 0 || !ValidCoordinates(lat, lon) {
		return e.cache.Current(), Outcome{}
	}

	if cached, ok := e.cache.Get(lat, lon); ok {
		e.metrics.RecordCacheHit("location")
		return cached, Outcome{}
	}

	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	// Double-check after acquiring the refresh lock
	if cached, ok := e.cache.Get(lat, lon); ok {
		e.metrics.RecordCacheHit("location")
		return cached, Outcome{}
	}
	e.metrics.RecordCacheMiss("location")

	var (
		geo  GeocodeResult
		rain RainfallResult
	)
	var g errgroup.Group
	g.Go(func() error {
		geo = e.geocode(ctx, lat, lon)
		return nil
	})
	g.Go(func() error {
		rain = e.seasonalRainfall(ctx, lat, lon)
		return nil
	})
	_ = g.Wait() //nolint:errcheck // lookups report through their results

	next := e.cache.Current()
	next.Address = geo.Address
	next.LandType = geo.LandType
	if rain.OK {
		next.SeasonalRain = rain.Millimetres
	}

	fresh := geo.OK || rain.OK
	if fresh {
		next.Lat = lat
		next.Lon = lon
	}
	e.cache.Put(next, fresh)

	e.logger.Info().
		Float64("lat", lat).
		Float64("lon", lon).
		Bool("geocode_ok", geo.OK).
		Bool("rainfall_ok", rain.OK).
		Str("land_type", string(next.LandType)).
		Float64("seasonal_rain", next.SeasonalRain).
		Msg("location context refreshed")

	return next, Outcome{
		Refreshed:  true,
		GeocodeOK:  geo.OK,
		RainfallOK: rain.OK,
	}
}

func (e *Enricher) geocode(ctx context.Context, lat, lon float64) GeocodeResult {
	start := time.Now()
	place, err := e.geocoder.ReverseGeocode(ctx, lat, lon)
	e.metrics.RecordRequest(e.geocoder.Name(), "reverse_geocode", time.Since(start), err)
	if err != nil {
		e.logger.Warn().Err(err).
			Str("provider", e.geocoder.Name()).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("reverse geocoding failed")
		return FailedGeocode()
	}

	return GeocodeResult{
		OK:       true,
		Address:  place.DisplayName,
		LandType: ClassifyLandType(place.DisplayName),
	}
}

func (e *Enricher) seasonalRainfall(ctx context.Context, lat, lon float64) RainfallResult {
	to := e.now()
	from := to.Add(-e.window)

	start := time.Now()
	total, err := e.rainfall.PrecipitationSum(ctx, lat, lon, from, to)
	e.metrics.RecordRequest(e.rainfall.Name(), "precipitation_sum", time.Since(start), err)
	if err != nil {
		e.logger.Warn().Err(err).
			Str("provider", e.rainfall.Name()).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("rainfall lookup failed")
		return RainfallResult{}
	}

	return RainfallResult{OK: true, Millimetres: total}
}
