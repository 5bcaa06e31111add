package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoResults     = errors.New("no matching address")
	ErrEmptyQuery    = errors.New("search query is empty")
	ErrProviderError = errors.New("geocoding provider error")
)

// Geocoder resolves free-form addresses and coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) ([]Location, error)
	Reverse(ctx context.Context, lat, lon float64) (*Location, error)
	// Search geocodes query and keeps results within radiusMeters of center,
	// nearest first.
	Search(ctx context.Context, query string, center Location, radiusMeters float64) ([]Location, error)
}

// NominatimClient talks to an OpenStreetMap Nominatim compatible endpoint.
type NominatimClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limit     int
}

func NewNominatimClient(baseURL, userAgent string, httpClient *http.Client) *NominatimClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &NominatimClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      httpClient,
		limit:     10,
	}
}

type nominatimAddress struct {
	HouseNumber string `json:"house_number"`
	Road        string `json:"road"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	State       string `json:"state"`
	Postcode    string `json:"postcode"`
}

type nominatimPlace struct {
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

func (p nominatimPlace) toLocation() (Location, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Location{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Location{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}

	a := p.Address
	street := strings.TrimSpace(strings.Join([]string{a.HouseNumber, a.Road}, " "))
	if street == "" {
		street = p.DisplayName
	}

	loc := Location{Latitude: lat, Longitude: lon, Address: street}
	city := firstNonEmpty(a.City, a.Town, a.Village)
	if city != "" {
		loc.City = &city
	}
	if a.State != "" {
		state := a.State
		loc.State = &state
	}
	if a.Postcode != "" {
		zip := a.Postcode
		loc.ZipCode = &zip
	}
	return loc, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *NominatimClient) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("geocoder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrProviderError, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode geocoder response: %w", err)
	}
	return nil
}

func (c *NominatimClient) Geocode(ctx context.Context, query string) ([]Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(c.limit))

	var places []nominatimPlace
	if err := c.get(ctx, "/search", q, &places); err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, ErrNoResults
	}

	out := make([]Location, 0, len(places))
	for _, p := range places {
		loc, err := p.toLocation()
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (*Location, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinates
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	var place struct {
		nominatimPlace
		Error string `json:"error"`
	}
	if err := c.get(ctx, "/reverse", q, &place); err != nil {
		return nil, err
	}
	if place.Error != "" {
		return nil, ErrNoResults
	}

	loc, err := place.toLocation()
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (c *NominatimClient) Search(ctx context.Context, query string, center Location, radiusMeters float64) ([]Location, error) {
	all, err := c.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}
	return WithinRadius(all, center, radiusMeters), nil
}

// WithinRadius keeps locations no further than radiusMeters from center,
// sorted nearest first.
func WithinRadius(locs []Location, center Location, radiusMeters float64) []Location {
	type scored struct {
		loc  Location
		dist float64
	}
	var kept []scored
	for _, l := range locs {
		if d := DistanceMeters(center, l); d <= radiusMeters {
			kept = append(kept, scored{l, d})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].dist < kept[j].dist })

	out := make([]Location, 0, len(kept))
	for _, k := range kept {
		out = append(out, k.loc)
	}
	return out
}
