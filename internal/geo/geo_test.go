package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDistanceMeters(t *testing.T) {
	// Amsterdam Central to Dam Square, roughly 720m.
	d := DistanceMeters(52.379189, 4.899431, 52.373055, 4.892222)
	if d < 600 || d > 900 {
		t.Errorf("distance = %.0fm, want roughly 720m", d)
	}

	if d := DistanceMeters(52.0, 5.0, 52.0, 5.0); d != 0 {
		t.Errorf("zero distance = %v", d)
	}
}

func TestHomeContains(t *testing.T) {
	home := Home{Lat: 52.0, Lon: 5.0, Radius: 100}

	if !home.Contains(52.0, 5.0) {
		t.Error("exact home position should be inside")
	}

	// ~0.0005 deg latitude is about 55m.
	if !home.Contains(52.0005, 5.0) {
		t.Error("55m away should be inside a 100m radius")
	}
	if home.Contains(52.002, 5.0) {
		t.Error("220m away should be outside a 100m radius")
	}
}

func TestReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "mgbridge-test" {
			t.Errorf("user agent = %q", ua)
		}
		if got := r.URL.Query().Get("format"); got != "jsonv2" {
			t.Errorf("format = %q", got)
		}
		fmt.Fprint(w, `{"display_name":"Dam, Amsterdam, Netherlands"}`)
	}))
	defer srv.Close()

	g := NewGeocoder("mgbridge-test")
	g.baseURL = srv.URL

	addr, err := g.ReverseGeocode(context.Background(), 52.373055, 4.892222)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if addr != "Dam, Amsterdam, Netherlands" {
		t.Errorf("address = %q", addr)
	}
}

func TestReverseGeocodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGeocoder("mgbridge-test")
	g.baseURL = srv.URL

	if _, err := g.ReverseGeocode(context.Background(), 52.0, 5.0); err == nil {
		t.Fatal("expected error on 429")
	}
}
