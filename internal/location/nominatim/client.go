// Package nominatim implements reverse geocoding against the OpenStreetMap
// Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/cropsense/cropsense/internal/location"
	"github.com/cropsense/cropsense/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim API base URL.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent is sent when no agent is configured. The public
	// instance blocks anonymous agents.
	DefaultUserAgent = "cropsense/1.0"
)

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the public instance).
	BaseURL string

	// Language is sent as accept-language (optional, defaults to "en").
	Language string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults and DefaultUserAgent.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Nominatim reverse geocoding client.
type Client struct {
	baseURL    string
	language   string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	language := cfg.Language
	if language == "" {
		language = "en"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.UserAgent = DefaultUserAgent
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		language:   language,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// ReverseGeocode resolves coordinates to the closest named place.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (*location.Place, error) {
	if !location.ValidCoordinates(lat, lon) {
		return nil, location.ErrInvalidCoordinates
	}

	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("addressdetails", "1")
	params.Set("accept-language", c.language)

	reqURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var nr reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	// Nominatim answers 200 with an error body for open sea and the like
	if nr.Error != "" || nr.DisplayName == "" {
		c.logger.Debug().
			Float64("lat", lat).
			Float64("lon", lon).
			Str("error", nr.Error).
			Msg("nominatim returned no place")
		return nil, location.ErrNoPlace
	}

	return &location.Place{
		DisplayName: nr.DisplayName,
		Country:     nr.Address.Country,
		State:       nr.Address.State,
	}, nil
}

// Nominatim API response structures.

type reverseResponse struct {
	PlaceID     int64  `json:"place_id"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Address     struct {
		Village  string `json:"village"`
		Town     string `json:"town"`
		City     string `json:"city"`
		District string `json:"state_district"`
		State    string `json:"state"`
		Postcode string `json:"postcode"`
		Country  string `json:"country"`
	} `json:"address"`
	Error string `json:"error"`
}
