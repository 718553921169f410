// Package geo provides the external geospatial adapters venue enrichment
// depends on (spec §4.H): reverse geocoding, nearby/text place search, route
// distance/duration with traffic, and TomTom incident/flow context. No
// first-party Go SDK is wired for Places (New) or Routes, so these adapters
// follow the same hand-rolled net/http pattern as pkg/provider's OpenAI and
// Perplexity clients.
package geo

import "context"

// LatLng is a plain coordinate pair, used at every adapter boundary in this
// package instead of pulling in a third-party geometry type.
type LatLng struct {
	Lat float64
	Lng float64
}

// Geocoder resolves coordinates to a postal address (spec §4.H.1).
type Geocoder interface {
	ReverseGeocode(ctx context.Context, point LatLng) (Address, error)
}

type Address struct {
	PlaceID          string
	FormattedAddress string
	IsPlusCode       bool
}

// PlaceSearcher resolves a venue name and approximate coordinates to a
// stable place_id plus business status and opening hours (spec §4.H.2).
type PlaceSearcher interface {
	NearbySearch(ctx context.Context, point LatLng, name string, radiusMeters float64) (Place, error)
}

type Place struct {
	PlaceID              string
	DisplayName          string
	FormattedAddress     string
	Location             LatLng
	BusinessStatus       string
	RegularOpeningHours  []string
	CurrentOpeningHours  []string
}

// RouteEstimator computes traffic-aware drive time/distance (spec §4.H.4).
type RouteEstimator interface {
	Route(ctx context.Context, origin, destination LatLng) (RouteEstimate, error)
}

type RouteEstimate struct {
	DistanceMeters        float64
	DurationSeconds        float64
	TrafficDelaySeconds    float64
}

// TrafficContext provides incident and flow data (spec §4.H egress
// contract, TomTom incidents+flow). The Enricher has no TrafficContext
// field, so route enrichment does not consult it.
type TrafficContext interface {
	Incidents(ctx context.Context, center LatLng, radiusMeters float64) ([]Incident, error)
	Flow(ctx context.Context, point LatLng) (FlowSegment, error)
}

type Incident struct {
	Category      string
	Magnitude     int
	DelaySeconds  float64
	RoadName      string
}

type FlowSegment struct {
	CurrentSpeedKPH  float64
	FreeFlowSpeedKPH float64
}
