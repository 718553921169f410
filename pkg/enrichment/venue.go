// Venue enrichment (spec §4.H): for each venue the planner proposes, fan
// out to reverse-geocoding, nearby place search, and traffic-aware
// routing, then merge the results back onto the proposal in the planner's
// original order. A venue's own lookups failing never fails the batch —
// only the pipeline decides whether an all-failed batch is fatal.
package enrichment

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vecto-pilot/pilot-core/pkg/geo"
	"github.com/vecto-pilot/pilot-core/pkg/model"
	sharedmath "github.com/vecto-pilot/pilot-core/pkg/shared/math"
	"github.com/vecto-pilot/pilot-core/pkg/store"
)

// predictiveAvgSpeedMPH is the flat average-speed assumption behind the
// haversine fallback used when Google Routes is unavailable for a venue;
// it is deliberately conservative (city-street, not highway) since the
// fallback only needs to keep candidates in a sensible relative order.
const predictiveAvgSpeedMPH = 25.0

// haversineEstimate computes great-circle distance in miles between origin
// and destination and converts it to minutes at predictiveAvgSpeedMPH. ok
// is false only when origin and destination coincide exactly (no signal).
func haversineEstimate(origin, destination geo.LatLng) (miles, minutes float64, ok bool) {
	if origin.Lat == destination.Lat && origin.Lng == destination.Lng {
		return 0, 0, false
	}
	const earthRadiusMiles = 3958.8
	lat1, lat2 := origin.Lat*math.Pi/180, destination.Lat*math.Pi/180
	dLat := (destination.Lat - origin.Lat) * math.Pi / 180
	dLng := (destination.Lng - origin.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	miles = earthRadiusMiles * c
	minutes = miles / predictiveAvgSpeedMPH * 60
	return miles, minutes, true
}

// VenueProposal is one venue as the tactical planner stage produced it,
// before any external lookup (spec §4.G step 9 output schema).
type VenueProposal struct {
	Name            string
	Lat             float64
	Lng             float64
	Category        string
	ProTips         []string
	StagingName     string
	StagingLat      *float64
	StagingLng      *float64
	StrategicTiming string
}

// EnrichedVenue is a VenueProposal merged with whatever external lookups
// succeeded. Fields stay zero-valued/empty when their lookup failed; the
// candidate's DistanceSource faithfully records which parts came through.
type EnrichedVenue struct {
	VenueProposal

	PlaceID          string
	ResolvedAddress  string
	ResolvedLat      float64
	ResolvedLng      float64
	BusinessStatus   string
	BusinessHours    []string
	IsOpenNow        bool
	ClosedReasoning  string
	NameSimilarity   float64

	DistanceMiles       *float64
	DriveMinutes        *float64
	TrafficDelaySeconds float64
	DistanceSource      model.DistanceSource
}

// nearbySearchRadiusMeters is the "tight radius" spec §4.H.2 asks for: a
// planner-proposed coordinate should resolve to the venue actually sitting
// there, not a competitor down the block.
const nearbySearchRadiusMeters = 20

// Enricher owns the external adapters venue enrichment fans out to and the
// store it caches resolved place data into.
type Enricher struct {
	Geocoder geo.Geocoder
	Places   geo.PlaceSearcher
	Routes   geo.RouteEstimator
	Store    store.Store
}

func NewEnricher(geocoder geo.Geocoder, places geo.PlaceSearcher, routes geo.RouteEstimator, st store.Store) *Enricher {
	return &Enricher{Geocoder: geocoder, Places: places, Routes: routes, Store: st}
}

// EnrichAll runs every venue's lookups concurrently via errgroup (a genuine
// all-must-finish barrier, unlike the hedged router's first-wins race) and
// returns results in the same order as proposals (spec §4.H guarantee).
func (e *Enricher) EnrichAll(ctx context.Context, origin geo.LatLng, timezone string, proposals []VenueProposal) []EnrichedVenue {
	out := make([]EnrichedVenue, len(proposals))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range proposals {
		i, p := i, p
		g.Go(func() error {
			out[i] = e.enrichOne(gctx, origin, timezone, p)
			return nil
		})
	}
	_ = g.Wait() // enrichOne never returns an error; per-venue failures are recorded on the result instead.

	return out
}

// enrichOne runs one venue's lookups. Every step is independently
// best-effort: a failure at any step leaves the corresponding fields empty
// and falls through to the next step using the planner-proposed
// coordinates, never the caller's cancellation of the whole batch.
func (e *Enricher) enrichOne(ctx context.Context, origin geo.LatLng, timezone string, p VenueProposal) EnrichedVenue {
	result := EnrichedVenue{
		VenueProposal:  p,
		ResolvedLat:    p.Lat,
		ResolvedLng:    p.Lng,
		DistanceSource: model.DistanceEnrichmentFailed,
	}

	point := geo.LatLng{Lat: p.Lat, Lng: p.Lng}

	if e.Geocoder != nil {
		if addr, err := e.Geocoder.ReverseGeocode(ctx, point); err == nil {
			result.ResolvedAddress = addr.FormattedAddress
		}
	}

	var place geo.Place
	havePlace := false
	if e.Places != nil {
		if pl, err := e.Places.NearbySearch(ctx, point, p.Name, nearbySearchRadiusMeters); err == nil {
			place = pl
			havePlace = true
		}
	}

	if havePlace {
		result.PlaceID = place.PlaceID
		result.ResolvedLat = place.Location.Lat
		result.ResolvedLng = place.Location.Lng
		result.BusinessStatus = place.BusinessStatus
		result.NameSimilarity = sharedmath.JaccardWordSimilarity(p.Name, place.DisplayName)
		if result.ResolvedAddress == "" {
			result.ResolvedAddress = place.FormattedAddress
		}

		hours := place.CurrentOpeningHours
		if len(hours) == 0 {
			hours = place.RegularOpeningHours
		}
		result.BusinessHours = hours
		if loc, err := time.LoadLocation(timezone); err == nil {
			open, reason := IsOpenNow(hours, time.Now().In(loc))
			result.IsOpenNow = open
			result.ClosedReasoning = reason
		}

		if e.Store != nil && place.PlaceID != "" {
			_ = e.Store.UpsertPlaceCache(ctx, model.PlaceCacheEntry{
				PlaceID:          place.PlaceID,
				Name:             place.DisplayName,
				FormattedAddress: place.FormattedAddress,
				Lat:              place.Location.Lat,
				Lng:              place.Location.Lng,
				BusinessStatus:   place.BusinessStatus,
				OpeningHours:     hours,
			})
		}
	}

	routeOrigin := origin
	destination := geo.LatLng{Lat: result.ResolvedLat, Lng: result.ResolvedLng}
	if e.Routes != nil && havePlace {
		// Only trust a routed distance when it resolved against a real
		// place_id; otherwise the candidate is enrichment_failed regardless
		// of whether routing itself succeeded (spec §4.G step 10).
		if est, err := e.Routes.Route(ctx, routeOrigin, destination); err == nil {
			miles := est.DistanceMeters / 1609.344
			minutes := est.DurationSeconds / 60
			result.DistanceMiles = &miles
			result.DriveMinutes = &minutes
			result.TrafficDelaySeconds = est.TrafficDelaySeconds
			result.DistanceSource = model.DistanceGoogleRoutes
		}
	}

	if result.DistanceSource == model.DistanceEnrichmentFailed && (havePlace || e.Places == nil) {
		// Routing failed (or wasn't configured) for a resolved place, or no
		// place searcher is configured at all: fall back to a straight-line
		// estimate so the candidate still sorts sensibly, but never claim an
		// external source for it (spec §4.G "route-traffic failure" policy).
		// A venue whose place lookup failed keeps its proposed coordinates
		// and stays enrichment_failed.
		if miles, minutes, ok := haversineEstimate(origin, destination); ok {
			result.DistanceMiles = &miles
			result.DriveMinutes = &minutes
			result.DistanceSource = model.DistancePredictive
		} else {
			result.ResolvedLat = p.Lat
			result.ResolvedLng = p.Lng
		}
	}

	return result
}
