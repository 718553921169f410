package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	sharedhttp "github.com/vecto-pilot/pilot-core/pkg/shared/http"
)

// TomTomClient provides incident and flow-segment traffic context (spec
// §4.H egress contract, "TomTom incidents+flow"). Venue enrichment does not
// call it; route distances come from Google Routes alone.
type TomTomClient struct {
	apiKey          string
	incidentsEndpoint string
	flowEndpoint      string
	httpc             *http.Client
}

func NewTomTomClient(apiKey string) *TomTomClient {
	return &TomTomClient{
		apiKey:            apiKey,
		incidentsEndpoint: "https://api.tomtom.com/traffic/services/5/incidentDetails",
		flowEndpoint:      "https://api.tomtom.com/traffic/services/4/flowSegmentData/absolute/10/json",
		httpc:             sharedhttp.NewClient(sharedhttp.GeoClientConfig(8 * time.Second)),
	}
}

func (c *TomTomClient) WithIncidentsEndpoint(url string) *TomTomClient {
	c.incidentsEndpoint = url
	return c
}

func (c *TomTomClient) WithFlowEndpoint(url string) *TomTomClient {
	c.flowEndpoint = url
	return c
}

type incidentsResponse struct {
	IncidentClusters []struct {
		Properties struct {
			IconCategory int     `json:"iconCategory"`
			Magnitude    int     `json:"magnitudeOfDelay"`
			DelaySeconds float64 `json:"delay"`
			RoadNumbers  []string `json:"roadNumbers"`
		} `json:"properties"`
	} `json:"incidentClusters"`
}

func (c *TomTomClient) Incidents(ctx context.Context, center LatLng, radiusMeters float64) ([]Incident, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	bbox := fmt.Sprintf("%f,%f,%f,%f", center.Lat-0.05, center.Lng-0.05, center.Lat+0.05, center.Lng+0.05)
	q.Set("bbox", bbox)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.incidentsEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("tomtom: request construction failed: %w", err)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tomtom: communication failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tomtom: status %d", resp.StatusCode)
	}

	var decoded incidentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("tomtom: response parsing failed: %w", err)
	}

	out := make([]Incident, 0, len(decoded.IncidentClusters))
	for _, ic := range decoded.IncidentClusters {
		road := ""
		if len(ic.Properties.RoadNumbers) > 0 {
			road = ic.Properties.RoadNumbers[0]
		}
		out = append(out, Incident{
			Category:     incidentCategoryName(ic.Properties.IconCategory),
			Magnitude:    ic.Properties.Magnitude,
			DelaySeconds: ic.Properties.DelaySeconds,
			RoadName:     road,
		})
	}
	return out, nil
}

type flowResponse struct {
	FlowSegmentData struct {
		CurrentSpeed  float64 `json:"currentSpeed"`
		FreeFlowSpeed float64 `json:"freeFlowSpeed"`
	} `json:"flowSegmentData"`
}

func (c *TomTomClient) Flow(ctx context.Context, point LatLng) (FlowSegment, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("point", fmt.Sprintf("%f,%f", point.Lat, point.Lng))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.flowEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return FlowSegment{}, fmt.Errorf("tomtom: request construction failed: %w", err)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return FlowSegment{}, fmt.Errorf("tomtom: communication failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FlowSegment{}, fmt.Errorf("tomtom: status %d", resp.StatusCode)
	}

	var decoded flowResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return FlowSegment{}, fmt.Errorf("tomtom: response parsing failed: %w", err)
	}

	return FlowSegment{
		CurrentSpeedKPH:  decoded.FlowSegmentData.CurrentSpeed,
		FreeFlowSpeedKPH: decoded.FlowSegmentData.FreeFlowSpeed,
	}, nil
}

// incidentCategoryName maps TomTom's numeric iconCategory to a short label;
// unmapped categories pass through as "other".
func incidentCategoryName(code int) string {
	switch code {
	case 1:
		return "accident"
	case 6:
		return "road_closed"
	case 8:
		return "road_works"
	case 9:
		return "lane_restriction"
	case 14:
		return "broken_down_vehicle"
	default:
		return "other"
	}
}
