package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	sharedhttp "github.com/vecto-pilot/pilot-core/pkg/shared/http"
)

// GooglePlacesClient resolves a venue to a place_id and opening-hours data
// via the Places API (New) Nearby Search endpoint, with a Text Search
// fallback when nearby search returns nothing within radius (spec §4.H.2).
type GooglePlacesClient struct {
	apiKey         string
	nearbyEndpoint string
	textEndpoint   string
	httpc          *http.Client
}

func NewGooglePlacesClient(apiKey string) *GooglePlacesClient {
	return &GooglePlacesClient{
		apiKey:         apiKey,
		nearbyEndpoint: "https://places.googleapis.com/v1/places:searchNearby",
		textEndpoint:   "https://places.googleapis.com/v1/places:searchText",
		httpc:          sharedhttp.NewClient(sharedhttp.GeoClientConfig(10 * time.Second)),
	}
}

func (c *GooglePlacesClient) WithNearbyEndpoint(url string) *GooglePlacesClient {
	c.nearbyEndpoint = url
	return c
}

func (c *GooglePlacesClient) WithTextEndpoint(url string) *GooglePlacesClient {
	c.textEndpoint = url
	return c
}

const placesFieldMask = "places.id,places.displayName,places.formattedAddress,places.location," +
	"places.businessStatus,places.regularOpeningHours,places.currentOpeningHours"

type nearbySearchRequest struct {
	LocationRestriction struct {
		Circle struct {
			Center struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationRestriction"`
}

type placesResponse struct {
	Places []placeResult `json:"places"`
}

type placeResult struct {
	ID              string `json:"id"`
	DisplayName     struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string `json:"formattedAddress"`
	Location         struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	BusinessStatus      string   `json:"businessStatus"`
	RegularOpeningHours *hoursBlock `json:"regularOpeningHours"`
	CurrentOpeningHours *hoursBlock `json:"currentOpeningHours"`
}

type hoursBlock struct {
	WeekdayDescriptions []string `json:"weekdayDescriptions"`
}

func (c *GooglePlacesClient) NearbySearch(ctx context.Context, point LatLng, name string, radiusMeters float64) (Place, error) {
	body := nearbySearchRequest{}
	body.LocationRestriction.Circle.Center.Latitude = point.Lat
	body.LocationRestriction.Circle.Center.Longitude = point.Lng
	body.LocationRestriction.Circle.Radius = radiusMeters

	result, err := c.doSearch(ctx, c.nearbyEndpoint, body)
	if err != nil {
		return Place{}, err
	}
	if result == nil {
		return c.textSearch(ctx, name, point)
	}
	return toPlace(*result), nil
}

type textSearchRequest struct {
	TextQuery    string `json:"textQuery"`
	LocationBias struct {
		Circle struct {
			Center struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationBias"`
}

func (c *GooglePlacesClient) textSearch(ctx context.Context, name string, point LatLng) (Place, error) {
	body := textSearchRequest{TextQuery: name}
	body.LocationBias.Circle.Center.Latitude = point.Lat
	body.LocationBias.Circle.Center.Longitude = point.Lng
	body.LocationBias.Circle.Radius = 200

	result, err := c.doSearch(ctx, c.textEndpoint, body)
	if err != nil {
		return Place{}, err
	}
	if result == nil {
		return Place{}, fmt.Errorf("places: no candidate found for %q", name)
	}
	return toPlace(*result), nil
}

func (c *GooglePlacesClient) doSearch(ctx context.Context, endpoint string, body interface{}) (*placeResult, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("places: request encoding failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("places: request construction failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", placesFieldMask)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("places: communication failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places: status %d", resp.StatusCode)
	}

	var decoded placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("places: response parsing failed: %w", err)
	}
	if len(decoded.Places) == 0 {
		return nil, nil
	}
	return &decoded.Places[0], nil
}

func toPlace(r placeResult) Place {
	p := Place{
		PlaceID:          r.ID,
		DisplayName:      r.DisplayName.Text,
		FormattedAddress: r.FormattedAddress,
		Location:         LatLng{Lat: r.Location.Latitude, Lng: r.Location.Longitude},
		BusinessStatus:   r.BusinessStatus,
	}
	if r.RegularOpeningHours != nil {
		p.RegularOpeningHours = r.RegularOpeningHours.WeekdayDescriptions
	}
	if r.CurrentOpeningHours != nil {
		p.CurrentOpeningHours = r.CurrentOpeningHours.WeekdayDescriptions
	}
	return p
}
