package geocoding

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_NoKey(t *testing.T) {
	if c := NewClient(" "); c != nil {
		t.Fatalf("expected nil client without key, got %+v", c)
	}
}

func TestGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "k" {
			t.Errorf("missing key param: %s", r.URL.RawQuery)
		}
		switch r.URL.Query().Get("address") {
		case "Les Berges du Lac, Tunis":
			io.WriteString(w, `{"status":"OK","results":[{"formatted_address":"Les Berges du Lac, Tunis, Tunisia",
				"geometry":{"location":{"lat":36.8322,"lng":10.2336}},
				"address_components":[{"long_name":"Tunis","short_name":"Tunis","types":["locality","political"]},
				{"long_name":"Tunisia","short_name":"TN","types":["country","political"]}]}]}`)
		default:
			io.WriteString(w, `{"status":"ZERO_RESULTS","results":[]}`)
		}
	}))
	defer srv.Close()

	c := NewClient("k").WithEndpoint(srv.URL)

	res, err := c.Geocode(context.Background(), "Les Berges du Lac, Tunis")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if res.City != "Tunis" || res.Country != "TN" {
		t.Errorf("unexpected components: %+v", res)
	}
	if res.Lat != 36.8322 || res.Lng != 10.2336 {
		t.Errorf("unexpected coordinates: %+v", res)
	}

	_, err = c.Geocode(context.Background(), "nowhere")
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("expected ErrNoResults, got %v", err)
	}
}
