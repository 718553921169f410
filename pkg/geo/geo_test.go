package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGoogleGeocodingClient_ReverseGeocode_PrefersStreetAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "OK",
			"results": [
				{"place_id": "plus1", "formatted_address": "8Q7X+2V, Chicago, IL"},
				{"place_id": "street1", "formatted_address": "123 Main St, Chicago, IL"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewGoogleGeocodingClient("key").WithEndpoint(srv.URL)
	addr, err := c.ReverseGeocode(context.Background(), LatLng{Lat: 41.8, Lng: -87.6})
	if err != nil {
		t.Fatalf("ReverseGeocode() err = %v", err)
	}
	if addr.PlaceID != "street1" || addr.IsPlusCode {
		t.Fatalf("expected the street-address result to be preferred, got %+v", addr)
	}
}

func TestGoogleGeocodingClient_ReverseGeocode_AllPlusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","results":[{"place_id":"p1","formatted_address":"8Q7X+2V, Chicago, IL"}]}`))
	}))
	defer srv.Close()

	c := NewGoogleGeocodingClient("key").WithEndpoint(srv.URL)
	addr, err := c.ReverseGeocode(context.Background(), LatLng{Lat: 41.8, Lng: -87.6})
	if err != nil {
		t.Fatalf("ReverseGeocode() err = %v", err)
	}
	if !addr.IsPlusCode {
		t.Fatal("expected IsPlusCode=true when every candidate is Plus-Code-shaped")
	}
}

func TestGooglePlacesClient_NearbySearch_FallsBackToTextSearch(t *testing.T) {
	nearby := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"places":[]}`))
	}))
	defer nearby.Close()
	text := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"places":[{"id":"p2","displayName":{"text":"Park Cafe"},"formattedAddress":"1 Park Ave","location":{"latitude":41.9,"longitude":-87.7},"businessStatus":"OPERATIONAL","regularOpeningHours":{"weekdayDescriptions":["Monday: 8:00 AM - 6:00 PM"]}}]}`))
	}))
	defer text.Close()

	c := NewGooglePlacesClient("key").WithNearbyEndpoint(nearby.URL).WithTextEndpoint(text.URL)
	p, err := c.NearbySearch(context.Background(), LatLng{Lat: 41.9, Lng: -87.7}, "Park Cafe", 20)
	if err != nil {
		t.Fatalf("NearbySearch() err = %v", err)
	}
	if p.PlaceID != "p2" || p.DisplayName != "Park Cafe" {
		t.Fatalf("got %+v", p)
	}
	if len(p.RegularOpeningHours) != 1 {
		t.Fatalf("expected regular opening hours, got %+v", p.RegularOpeningHours)
	}
}

func TestGooglePlacesClient_NearbySearch_DirectHit(t *testing.T) {
	nearby := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"places":[{"id":"p1","displayName":{"text":"Corner Diner"},"location":{"latitude":41.8,"longitude":-87.6},"businessStatus":"OPERATIONAL"}]}`))
	}))
	defer nearby.Close()

	c := NewGooglePlacesClient("key").WithNearbyEndpoint(nearby.URL)
	p, err := c.NearbySearch(context.Background(), LatLng{Lat: 41.8, Lng: -87.6}, "Corner Diner", 20)
	if err != nil {
		t.Fatalf("NearbySearch() err = %v", err)
	}
	if p.PlaceID != "p1" {
		t.Fatalf("got %+v", p)
	}
}

func TestGoogleRoutesClient_Route_ParsesDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"routes":[{"distanceMeters":4200,"duration":"630s"}]}`))
	}))
	defer srv.Close()

	c := NewGoogleRoutesClient("key").WithEndpoint(srv.URL)
	est, err := c.Route(context.Background(), LatLng{Lat: 41.8, Lng: -87.6}, LatLng{Lat: 41.9, Lng: -87.7})
	if err != nil {
		t.Fatalf("Route() err = %v", err)
	}
	if est.DistanceMeters != 4200 || est.DurationSeconds != 630 {
		t.Fatalf("got %+v", est)
	}
}

func TestGoogleRoutesClient_Route_NoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"routes":[]}`))
	}))
	defer srv.Close()

	c := NewGoogleRoutesClient("key").WithEndpoint(srv.URL)
	_, err := c.Route(context.Background(), LatLng{}, LatLng{})
	if err == nil {
		t.Fatal("expected an error when no route is returned")
	}
}

func TestTomTomClient_Incidents_MapsCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"incidentClusters":[{"properties":{"iconCategory":1,"magnitudeOfDelay":2,"delay":120,"roadNumbers":["I-90"]}}]}`))
	}))
	defer srv.Close()

	c := NewTomTomClient("key").WithIncidentsEndpoint(srv.URL)
	incidents, err := c.Incidents(context.Background(), LatLng{Lat: 41.8, Lng: -87.6}, 500)
	if err != nil {
		t.Fatalf("Incidents() err = %v", err)
	}
	if len(incidents) != 1 || incidents[0].Category != "accident" || incidents[0].RoadName != "I-90" {
		t.Fatalf("got %+v", incidents)
	}
}

func TestTomTomClient_Flow_ParsesSpeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"flowSegmentData":{"currentSpeed":35,"freeFlowSpeed":55}}`))
	}))
	defer srv.Close()

	c := NewTomTomClient("key").WithFlowEndpoint(srv.URL)
	flow, err := c.Flow(context.Background(), LatLng{Lat: 41.8, Lng: -87.6})
	if err != nil {
		t.Fatalf("Flow() err = %v", err)
	}
	if flow.CurrentSpeedKPH != 35 || flow.FreeFlowSpeedKPH != 55 {
		t.Fatalf("got %+v", flow)
	}
}
