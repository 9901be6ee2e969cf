package regions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
	"github.com/couchcryptid/climate-health-dashboard/internal/observability"
)

// Resolver maps a requested region name to a domain.Region. The catalog is
// consulted first; names it does not know are forward geocoded when a
// geocoder is configured.
type Resolver struct {
	catalog  *Catalog
	geocoder domain.Geocoder
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewResolver creates a Resolver. geocoder may be nil.
func NewResolver(catalog *Catalog, geocoder domain.Geocoder, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{catalog: catalog, geocoder: geocoder, metrics: metrics, logger: logger}
}

// Resolve returns the region for name. countryISO3 is used for geocoded
// regions, which have no catalog entry to carry a country code.
func (r *Resolver) Resolve(ctx context.Context, name, countryISO3 string) (domain.Region, error) {
	if region, ok := r.catalog.Lookup(name); ok {
		r.metrics.RegionLookups.WithLabelValues("catalog", "success").Inc()
		return region, nil
	}
	r.metrics.RegionLookups.WithLabelValues("catalog", "empty").Inc()

	if r.geocoder == nil {
		return domain.Region{}, fmt.Errorf("%q: %w", name, domain.ErrUnknownRegion)
	}
	countryISO3 = strings.ToUpper(strings.TrimSpace(countryISO3))
	result, err := r.geocoder.ForwardGeocode(ctx, name, countryISO3)
	if err != nil {
		return domain.Region{}, fmt.Errorf("geocode %q: %w", name, err)
	}
	if !result.Found() {
		return domain.Region{}, fmt.Errorf("%q: %w", name, domain.ErrUnknownRegion)
	}

	r.logger.Debug("region resolved by geocoder", "region", name, "match", result.FormattedAddress)
	return domain.Region{
		Name: strings.TrimSpace(name),
		ISO3: countryISO3,
		Lat:  result.Lat,
		Lon:  result.Lon,
	}, nil
}
