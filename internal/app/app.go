// Package app wires the adapters, pipeline and forecaster from configuration.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/couchcryptid/climate-health-dashboard/internal/adapter/chirps"
	"github.com/couchcryptid/climate-health-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/climate-health-dashboard/internal/adapter/mapbox"
	"github.com/couchcryptid/climate-health-dashboard/internal/adapter/nasapower"
	"github.com/couchcryptid/climate-health-dashboard/internal/adapter/regions"
	"github.com/couchcryptid/climate-health-dashboard/internal/adapter/upstream"
	"github.com/couchcryptid/climate-health-dashboard/internal/adapter/whogho"
	"github.com/couchcryptid/climate-health-dashboard/internal/config"
	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
	"github.com/couchcryptid/climate-health-dashboard/internal/forecast"
	"github.com/couchcryptid/climate-health-dashboard/internal/observability"
	"github.com/couchcryptid/climate-health-dashboard/internal/pipeline"
)

// App holds the wired dashboard and the resources it owns.
type App struct {
	Dashboard *pipeline.Dashboard
	Catalog   *regions.Catalog

	closers []io.Closer
}

// New builds the dashboard described by cfg.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	catalog, err := regions.Load(cfg.RegionsGeoJSON, cfg.RegionNameProperty, cfg.RegionISOProperty)
	if err != nil {
		return nil, err
	}
	logger.Info("region catalog loaded", "regions", len(catalog.Regions()), "path", cfg.RegionsGeoJSON)

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("mapbox geocoding disabled")
	}
	resolver := regions.NewResolver(catalog, geocoder, metrics, logger)

	nasaHTTP := upstream.New(sourceSettings(cfg, domain.SourceNASAPower), logger, metrics)
	whoHTTP := upstream.New(sourceSettings(cfg, domain.SourceWHOGHO), logger, metrics)
	climate := nasapower.NewClient(cfg.NASAPowerBaseURL, cfg.NASAPowerCommunity, nasaHTTP)
	health := whogho.NewClient(cfg.WHOGHOBaseURL, cfg.WHOGHOIndicator, cfg.WHOGHODisease, whoHTTP)

	// A nil interface, not a typed nil, when CHIRPS is off.
	var precip pipeline.PrecipitationSource
	if cfg.CHIRPSEnabled {
		chirpsHTTP := upstream.New(sourceSettings(cfg, domain.SourceCHIRPS), logger, metrics)
		precip = chirps.NewClient(cfg.CHIRPSBaseURL, chirpsHTTP, catalog, cfg.CHIRPSPollInterval, cfg.CHIRPSPollTimeout)
		logger.Info("chirps rainfall enabled", "base_url", cfg.CHIRPSBaseURL)
	}

	fc, err := forecast.New(cfg.ForecastHorizon, cfg.ForecastIntervalWidth)
	if err != nil {
		return nil, fmt.Errorf("forecaster: %w", err)
	}
	logger.Info("forecaster ready", "horizon", fc.Horizon(), "interval_width", cfg.ForecastIntervalWidth)

	a := &App{Catalog: catalog}
	opts := []pipeline.Option{
		pipeline.WithBoundaries(catalog),
		pipeline.WithProbes(nasaHTTP),
	}
	if cfg.KafkaEnabled {
		publisher := kafka.NewPublisher(cfg, logger)
		a.closers = append(a.closers, publisher)
		opts = append(opts, pipeline.WithPublisher(publisher))
		logger.Info("snapshot publishing enabled", "topic", cfg.KafkaSnapshotTopic, "brokers", cfg.KafkaBrokers)
	}

	defaults := pipeline.Defaults{
		Region:       cfg.DefaultRegion,
		LookbackDays: cfg.LookbackDays,
		Resolution:   cfg.Resolution,
		Policy:       cfg.MergePolicy,
	}
	fetcher := pipeline.NewFetcher(climate, precip, health, logger)
	a.Dashboard = pipeline.New(resolver, fetcher, fc, defaults, logger, metrics, opts...)
	return a, nil
}

// Close releases every owned resource, reporting all failures.
func (a *App) Close() error {
	var result *multierror.Error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func sourceSettings(cfg *config.Config, source string) upstream.Settings {
	return upstream.Settings{
		Source:             source,
		Timeout:            cfg.SourceTimeout,
		MaxRetries:         cfg.SourceMaxRetries,
		RateLimit:          cfg.SourceRateLimit,
		BreakerFailures:    cfg.BreakerFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
	}
}
