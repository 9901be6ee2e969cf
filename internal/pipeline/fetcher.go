package pipeline

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

// ClimateSource fetches temperature and rainfall for a region.
type ClimateSource interface {
	FetchClimate(ctx context.Context, region domain.Region, dr domain.DateRange, res domain.Resolution) ([]domain.ClimateRecord, error)
}

// PrecipitationSource fetches area-averaged daily rainfall for a region.
type PrecipitationSource interface {
	FetchPrecipitation(ctx context.Context, region domain.Region, dr domain.DateRange) ([]domain.PrecipitationRecord, error)
}

// HealthSource fetches reported disease cases for a region.
type HealthSource interface {
	FetchHealth(ctx context.Context, region domain.Region, dr domain.DateRange) ([]domain.HealthRecord, error)
}

// Fetched is the raw data gathered for one region.
type Fetched struct {
	Region  domain.Region
	Climate []domain.ClimateRecord
	Health  []domain.HealthRecord

	// ClimateErr and HealthErr are SourceErrors from the required providers.
	ClimateErr error
	HealthErr  error
	// Warnings collects failures of optional providers. Nil if there were none.
	Warnings *multierror.Error
}

// Err combines the required-provider failures, or returns nil.
func (f Fetched) Err() error {
	var result *multierror.Error
	if f.ClimateErr != nil {
		result = multierror.Append(result, f.ClimateErr)
	}
	if f.HealthErr != nil {
		result = multierror.Append(result, f.HealthErr)
	}
	return result.ErrorOrNil()
}

// Fetcher calls the providers for one region in turn. The precipitation
// source is optional.
type Fetcher struct {
	climate ClimateSource
	precip  PrecipitationSource
	health  HealthSource
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher. precip may be nil.
func NewFetcher(climate ClimateSource, precip PrecipitationSource, health HealthSource, logger *slog.Logger) *Fetcher {
	return &Fetcher{climate: climate, precip: precip, health: health, logger: logger}
}

// Fetch gathers climate and health data for the region. Each provider is
// called even if an earlier one failed, so a health outage still leaves the
// climate records usable. When precipitation succeeds its rainfall replaces
// the climate source's; when it fails the failure is kept as a warning.
func (f *Fetcher) Fetch(ctx context.Context, region domain.Region, dr domain.DateRange, res domain.Resolution) Fetched {
	out := Fetched{Region: region}
	log := f.logger.With("region", region.Name)

	climate, err := f.climate.FetchClimate(ctx, region, dr, res)
	if err != nil {
		out.ClimateErr = asSourceError(domain.SourceNASAPower, region.Name, err)
		log.Warn("climate fetch failed", "error", err)
	} else {
		climate = domain.AggregateClimate(climate, res)
		if f.precip != nil {
			precip, perr := f.precip.FetchPrecipitation(ctx, region, dr)
			if perr != nil {
				out.Warnings = multierror.Append(out.Warnings, asSourceError(domain.SourceCHIRPS, region.Name, perr))
				log.Warn("precipitation fetch failed, keeping climate rainfall", "error", perr)
			} else {
				climate = domain.ApplyPrecipitation(climate, precip, res)
			}
		}
		out.Climate = climate
	}

	health, err := f.health.FetchHealth(ctx, region, dr)
	if err != nil {
		out.HealthErr = asSourceError(domain.SourceWHOGHO, region.Name, err)
		log.Warn("health fetch failed", "error", err)
	} else {
		out.Health = health
	}

	log.Debug("region fetched", "climate", len(out.Climate), "health", len(out.Health))
	return out
}

// asSourceError makes sure err is a SourceError, so callers can match it
// with ErrSourceUnavailable whatever the adapter returned.
func asSourceError(source, region string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*domain.SourceError); ok {
		return err
	}
	return domain.NewSourceError(source, region, err)
}
