package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mgbridge/internal/rate"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org"

// Geocoder resolves coordinates to a human-readable address via the
// Nominatim reverse endpoint.
type Geocoder struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewGeocoder builds a geocoder. Nominatim's usage policy requires an
// identifying User-Agent and at most one request per second.
func NewGeocoder(userAgent string) *Geocoder {
	limiter := rate.NewLimiter("nominatim", time.Second, time.Minute)
	return &Geocoder{
		baseURL:   defaultNominatimURL,
		userAgent: userAgent,
		http:      rate.WrapHTTP(limiter, &http.Client{Timeout: 10 * time.Second}),
	}
}

// ReverseGeocode returns the display name for a coordinate, or an
// empty string when Nominatim has no match.
func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim http %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode nominatim response: %w", err)
	}
	return body.DisplayName, nil
}
