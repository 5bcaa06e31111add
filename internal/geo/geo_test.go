package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestLocation_Addresses(t *testing.T) {
	l := Location{Address: "12 Main St", City: strp("Springfield"), State: strp("IL"), ZipCode: strp("62701")}
	assert.Equal(t, "12 Main St, Springfield, IL, 62701", l.FullAddress())
	assert.Equal(t, "12 Main St, Springfield", l.ShortAddress())

	bare := Location{Address: "12 Main St"}
	assert.Equal(t, "12 Main St", bare.FullAddress())
	assert.Equal(t, "12 Main St", bare.ShortAddress())
}

func TestLocation_Validate(t *testing.T) {
	assert.NoError(t, Location{Address: "x", Latitude: 40, Longitude: -74}.Validate())
	assert.ErrorIs(t, Location{Latitude: 40}.Validate(), ErrAddressRequired)
	assert.ErrorIs(t, Location{Address: "x", Latitude: 91}.Validate(), ErrInvalidCoordinates)
}

func TestDistanceMeters(t *testing.T) {
	// Times Square to Empire State Building, roughly 1.1 km
	a := Location{Latitude: 40.7580, Longitude: -73.9855}
	b := Location{Latitude: 40.7484, Longitude: -73.9857}
	d := DistanceMeters(a, b)
	assert.InDelta(t, 1070, d, 50)
	assert.Zero(t, DistanceMeters(a, a))
}

func TestNominatim_GeocodeAndSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "main st", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"lat":"40.7484","lon":"-73.9857","display_name":"Far","address":{"house_number":"350","road":"5th Ave","city":"New York","state":"NY","postcode":"10118"}},
			{"lat":"40.7580","lon":"-73.9855","display_name":"Near","address":{"road":"Broadway","town":"Manhattan"}},
			{"lat":"34.05","lon":"-118.24","display_name":"Los Angeles","address":{}}
		]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "test-agent", srv.Client())

	all, err := c.Geocode(context.Background(), "main st")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "350 5th Ave", all[0].Address)
	assert.Equal(t, "New York", *all[0].City)
	assert.Equal(t, "10118", *all[0].ZipCode)
	assert.Equal(t, "Manhattan", *all[1].City)
	assert.Equal(t, "Los Angeles", all[2].Address)

	center := Location{Latitude: 40.7590, Longitude: -73.9850}
	near, err := c.Search(context.Background(), "main st", center, 5000)
	require.NoError(t, err)
	require.Len(t, near, 2)
	assert.Equal(t, "Broadway", near[0].Address)
}

func TestNominatim_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "ua", srv.Client())
	_, err := c.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = c.Geocode(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestNominatim_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		_, _ = w.Write([]byte(`{"lat":"40.7","lon":"-74.0","display_name":"x","address":{"road":"Wall St","city":"New York"}}`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "ua", srv.Client())
	loc, err := c.Reverse(context.Background(), 40.7, -74.0)
	require.NoError(t, err)
	assert.Equal(t, "Wall St, New York", loc.ShortAddress())

	_, err = c.Reverse(context.Background(), 100, 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestNominatim_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "ua", srv.Client())
	_, err := c.Geocode(context.Background(), "x")
	assert.ErrorIs(t, err, ErrProviderError)
}
