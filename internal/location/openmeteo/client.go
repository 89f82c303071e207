// Package openmeteo reads historical daily precipitation from the Open-Meteo
// archive API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cropsense/cropsense/internal/location"
	"github.com/cropsense/cropsense/internal/provider/resilience"
)

const (
	// ProviderName identifies this weather history provider.
	ProviderName = "open-meteo"

	// DefaultBaseURL is the Open-Meteo historical archive API base URL.
	DefaultBaseURL = "https://archive-api.open-meteo.com/v1"

	dateLayout = "2006-01-02"
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the archive API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo archive API client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// PrecipitationSum returns the total daily precipitation between from and to
// (inclusive, calendar days). Days reported as null are skipped; a range with
// no reported day at all is an ErrNoPrecipitationData failure.
func (c *Client) PrecipitationSum(ctx context.Context, lat, lon float64, from, to time.Time) (float64, error) {
	if !location.ValidCoordinates(lat, lon) {
		return 0, location.ErrInvalidCoordinates
	}
	if to.Before(from) {
		return 0, fmt.Errorf("invalid date range %s..%s", from.Format(dateLayout), to.Format(dateLayout))
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("start_date", from.Format(dateLayout))
	params.Set("end_date", to.Format(dateLayout))
	params.Set("daily", "precipitation_sum")
	params.Set("timezone", "auto")

	reqURL := fmt.Sprintf("%s/archive?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Reason != "" {
			return 0, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, apiErr.Reason)
		}
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var archive archiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&archive); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}

	total, days := sumReported(archive.Daily.PrecipitationSum)
	if days == 0 {
		return 0, location.ErrNoPrecipitationData
	}

	c.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Int("days_reported", days).
		Int("days_requested", len(archive.Daily.PrecipitationSum)).
		Float64("total_mm", total).
		Msg("fetched precipitation history")

	return total, nil
}

// sumReported adds the non-null values and counts them.
func sumReported(values []*float64) (float64, int) {
	var total float64
	var days int
	for _, v := range values {
		if v == nil {
			continue
		}
		total += *v
		days++
	}
	return total, days
}

// Open-Meteo API response structures.

type archiveResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Daily     struct {
		Time             []string   `json:"time"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}
