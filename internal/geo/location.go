package geo

import (
	"errors"
	"math"
	"strings"
)

// Location is the service address of an appointment.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	City      *string `json:"city,omitempty"`
	State     *string `json:"state,omitempty"`
	ZipCode   *string `json:"zip_code,omitempty"`
}

var (
	ErrAddressRequired    = errors.New("address is required")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

func (l Location) Validate() error {
	if strings.TrimSpace(l.Address) == "" {
		return ErrAddressRequired
	}
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// FullAddress joins address, city, state and zip with ", ", skipping blanks.
func (l Location) FullAddress() string {
	parts := []string{l.Address}
	for _, p := range []*string{l.City, l.State, l.ZipCode} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	return strings.Join(parts, ", ")
}

func (l Location) ShortAddress() string {
	if l.City != nil && *l.City != "" {
		return l.Address + ", " + *l.City
	}
	return l.Address
}

const earthRadiusMeters = 6371000.0

// DistanceMeters is the great-circle distance between two locations.
func DistanceMeters(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
