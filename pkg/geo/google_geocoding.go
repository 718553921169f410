package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	sharedhttp "github.com/vecto-pilot/pilot-core/pkg/shared/http"
)

// GoogleGeocodingClient reverse-geocodes a point via the Google Geocoding
// API (spec §4.H.1, egress contract in §6).
type GoogleGeocodingClient struct {
	apiKey   string
	endpoint string
	httpc    *http.Client
}

func NewGoogleGeocodingClient(apiKey string) *GoogleGeocodingClient {
	return &GoogleGeocodingClient{
		apiKey:   apiKey,
		endpoint: "https://maps.googleapis.com/maps/api/geocode/json",
		httpc:    sharedhttp.NewClient(sharedhttp.GeoClientConfig(10 * time.Second)),
	}
}

func (c *GoogleGeocodingClient) WithEndpoint(url string) *GoogleGeocodingClient {
	c.endpoint = url
	return c
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID          string `json:"place_id"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
}

// plusCodeMarkers are substrings that indicate a formatted address is a
// Plus Code rather than a street address (spec §4.H.1: "reject Plus-Code-
// shaped strings in favor of a street-address alternative when available").
var plusCodeMarkers = []string{"+", "Unnamed Road"}

func (c *GoogleGeocodingClient) ReverseGeocode(ctx context.Context, point LatLng) (Address, error) {
	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%f,%f", point.Lat, point.Lng))
	q.Set("key", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Address{}, fmt.Errorf("geocoding: request construction failed: %w", err)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Address{}, fmt.Errorf("geocoding: communication failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Address{}, fmt.Errorf("geocoding: response parsing failed: %w", err)
	}
	if decoded.Status != "OK" || len(decoded.Results) == 0 {
		return Address{}, fmt.Errorf("geocoding: no result, status %s", decoded.Status)
	}

	// Prefer the first result whose address doesn't look like a Plus Code;
	// fall back to the first result if every candidate is Plus-Code-shaped.
	for _, r := range decoded.Results {
		if !looksLikePlusCode(r.FormattedAddress) {
			return Address{PlaceID: r.PlaceID, FormattedAddress: r.FormattedAddress}, nil
		}
	}
	first := decoded.Results[0]
	return Address{PlaceID: first.PlaceID, FormattedAddress: first.FormattedAddress, IsPlusCode: true}, nil
}

func looksLikePlusCode(addr string) bool {
	head := addr
	if idx := strings.IndexByte(addr, ','); idx != -1 {
		head = addr[:idx]
	}
	for _, marker := range plusCodeMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}
