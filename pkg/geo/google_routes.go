package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedhttp "github.com/vecto-pilot/pilot-core/pkg/shared/http"
)

// GoogleRoutesClient computes traffic-aware origin-to-destination travel
// time and distance (spec §4.H.4).
type GoogleRoutesClient struct {
	apiKey   string
	endpoint string
	httpc    *http.Client
}

func NewGoogleRoutesClient(apiKey string) *GoogleRoutesClient {
	return &GoogleRoutesClient{
		apiKey:   apiKey,
		endpoint: "https://routes.googleapis.com/directions/v2:computeRoutes",
		httpc:    sharedhttp.NewClient(sharedhttp.GeoClientConfig(10 * time.Second)),
	}
}

func (c *GoogleRoutesClient) WithEndpoint(url string) *GoogleRoutesClient {
	c.endpoint = url
	return c
}

const routesFieldMask = "routes.distanceMeters,routes.duration,routes.staticDuration"

type routesRequest struct {
	Origin struct {
		Location struct {
			LatLng struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"latLng"`
		} `json:"location"`
	} `json:"origin"`
	Destination struct {
		Location struct {
			LatLng struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"latLng"`
		} `json:"location"`
	} `json:"destination"`
	RoutingPreference string `json:"routingPreference"`
	TrafficModel      string `json:"trafficModel"`
}

type routesResponse struct {
	Routes []struct {
		DistanceMeters float64 `json:"distanceMeters"`
		Duration       string  `json:"duration"`
		StaticDuration string  `json:"staticDuration"`
	} `json:"routes"`
}

func (c *GoogleRoutesClient) Route(ctx context.Context, origin, destination LatLng) (RouteEstimate, error) {
	body := routesRequest{RoutingPreference: "TRAFFIC_AWARE", TrafficModel: "BEST_GUESS"}
	body.Origin.Location.LatLng.Latitude = origin.Lat
	body.Origin.Location.LatLng.Longitude = origin.Lng
	body.Destination.Location.LatLng.Latitude = destination.Lat
	body.Destination.Location.LatLng.Longitude = destination.Lng

	encoded, err := json.Marshal(body)
	if err != nil {
		return RouteEstimate{}, fmt.Errorf("routes: request encoding failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return RouteEstimate{}, fmt.Errorf("routes: request construction failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", routesFieldMask)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return RouteEstimate{}, fmt.Errorf("routes: communication failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RouteEstimate{}, fmt.Errorf("routes: status %d", resp.StatusCode)
	}

	var decoded routesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return RouteEstimate{}, fmt.Errorf("routes: response parsing failed: %w", err)
	}
	if len(decoded.Routes) == 0 {
		return RouteEstimate{}, fmt.Errorf("routes: no route found")
	}

	r := decoded.Routes[0]
	seconds, err := parseDurationSeconds(r.Duration)
	if err != nil {
		return RouteEstimate{}, fmt.Errorf("routes: duration parsing failed: %w", err)
	}

	var delay float64
	if staticSeconds, err := parseDurationSeconds(r.StaticDuration); err == nil {
		if d := seconds - staticSeconds; d > 0 {
			delay = d
		}
	}

	return RouteEstimate{DistanceMeters: r.DistanceMeters, DurationSeconds: seconds, TrafficDelaySeconds: delay}, nil
}

// parseDurationSeconds parses a protobuf Duration string like "843s" into
// seconds; Routes API always returns this shape, never a Go-style duration.
func parseDurationSeconds(d string) (float64, error) {
	trimmed := strings.TrimSuffix(d, "s")
	return strconv.ParseFloat(trimmed, 64)
}
