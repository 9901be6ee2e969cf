package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Found reports whether the provider matched anything.
func (r GeocodingResult) Found() bool { return r.FormattedAddress != "" }

// Geocoder resolves region names that are missing from the boundary catalog.
type Geocoder interface {
	// ForwardGeocode converts a place name, optionally restricted to the
	// country with the given ISO3 code, to coordinates.
	ForwardGeocode(ctx context.Context, name, countryISO3 string) (GeocodingResult, error)
}
