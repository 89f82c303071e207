// Package location enriches sensor state with geocoded place information and
// historical rainfall for the device's coordinates.
package location

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Location errors.
var (
	ErrNoPlace             = errors.New("no place found for coordinates")
	ErrNoPrecipitationData = errors.New("no precipitation data for coordinates")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// LandType classifies the land at a location.
type LandType string

const (
	LandAgricultural LandType = "Agricultural/Open Land"
	LandUrban        LandType = "Urban/Non-Cultivated"
	LandUnknown      LandType = "Unknown"
)

// Placeholder addresses.
const (
	AddressPending = "Waiting for GPS..."
	AddressUnknown = "Unknown Location"
)

// urbanTokens mark a display name as built-up land.
var urbanTokens = []string{
	"street", "road", "lane", "avenue", "nagar", "colony",
	"sector", "market", "highway", "city",
}

// ClassifyLandType derives the land type from a geocoder display name.
func ClassifyLandType(displayName string) LandType {
	name := strings.ToLower(displayName)
	if strings.TrimSpace(name) == "" {
		return LandUnknown
	}
	for _, token := range urbanTokens {
		if strings.Contains(name, token) {
			return LandUrban
		}
	}
	return LandAgricultural
}

// Context is the location-derived enrichment attached to the sensor state.
type Context struct {
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	Address      string   `json:"address"`
	LandType     LandType `json:"land_type"`
	SeasonalRain float64  `json:"seasonal_rain"`
}

// DefaultContext is the context before any coordinates are received.
func DefaultContext() Context {
	return Context{
		Address:  AddressPending,
		LandType: LandUnknown,
	}
}

// Place is a reverse geocoding hit.
type Place struct {
	DisplayName string
	Country     string
	State       string
}

// Geocoder resolves coordinates to a place.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*Place, error)

	// Name returns the provider name for logging.
	Name() string
}

// RainfallProvider returns historical precipitation.
type RainfallProvider interface {
	// PrecipitationSum returns total precipitation in millimetres over the
	// inclusive day range, ignoring days without data.
	PrecipitationSum(ctx context.Context, lat, lon float64, from, to time.Time) (float64, error)

	// Name returns the provider name for logging.
	Name() string
}

// GeocodeResult is the outcome of one reverse geocoding lookup.
type GeocodeResult struct {
	OK       bool
	Address  string
	LandType LandType
}

// FailedGeocode is the documented fallback when geocoding fails.
func FailedGeocode() GeocodeResult {
	return GeocodeResult{Address: AddressUnknown, LandType: LandUnknown}
}

// RainfallResult is the outcome of one precipitation lookup.
type RainfallResult struct {
	OK          bool
	Millimetres float64
}

// Outcome describes what a refresh did.
type Outcome struct {
	// Refreshed is true when outbound lookups were attempted.
	Refreshed  bool
	GeocodeOK  bool
	RainfallOK bool
}

// ValidCoordinates reports whether lat/lon are usable for a lookup.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
