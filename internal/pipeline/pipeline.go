// Package pipeline runs one dashboard render: resolve regions, fetch,
// merge, forecast and present.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
	"github.com/couchcryptid/climate-health-dashboard/internal/observability"
	"github.com/couchcryptid/climate-health-dashboard/internal/presenter"
)

// RegionResolver maps a requested name to a region.
type RegionResolver interface {
	Resolve(ctx context.Context, name, countryISO3 string) (domain.Region, error)
}

// Forecaster projects a case series forward.
type Forecaster interface {
	Forecast(s domain.Series) ([]domain.ForecastPoint, error)
}

// SnapshotPublisher receives the merged rows of every successful render.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// BreakerProbe exposes a provider's circuit breaker state for readiness.
type BreakerProbe interface {
	Source() string
	State() gobreaker.State
}

// Snapshot is what a render hands to the publisher.
type Snapshot struct {
	RenderID    string
	GeneratedAt time.Time
	Rows        []domain.MergedRow
}

// Request selects what to render. Zero fields take the dashboard defaults.
type Request struct {
	Regions     []string
	CountryISO3 string
	Range       domain.DateRange
	Resolution  domain.Resolution
	Policy      domain.MergePolicy
}

// Defaults fill in the parts of a Request the caller left out.
type Defaults struct {
	Region       string
	LookbackDays int
	Resolution   domain.Resolution
	Policy       domain.MergePolicy
}

// Dashboard renders views. It keeps no data between renders.
type Dashboard struct {
	resolver   RegionResolver
	fetcher    *Fetcher
	forecaster Forecaster
	boundaries presenter.Boundaries
	publisher  SnapshotPublisher
	probes     []BreakerProbe
	defaults   Defaults
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// Option configures optional Dashboard collaborators.
type Option func(*Dashboard)

// WithPublisher publishes each render's rows.
func WithPublisher(p SnapshotPublisher) Option {
	return func(d *Dashboard) { d.publisher = p }
}

// WithBoundaries shades the risk map with region shapes.
func WithBoundaries(b presenter.Boundaries) Option {
	return func(d *Dashboard) { d.boundaries = b }
}

// WithProbes makes readiness fail while any of the breakers is open.
func WithProbes(probes ...BreakerProbe) Option {
	return func(d *Dashboard) { d.probes = append(d.probes, probes...) }
}

// New creates a Dashboard with the given stages and observability.
func New(r RegionResolver, f *Fetcher, fc Forecaster, defaults Defaults, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Dashboard {
	d := &Dashboard{
		resolver:   r,
		fetcher:    f,
		forecaster: fc,
		defaults:   defaults,
		logger:     logger,
		metrics:    metrics,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CheckReadiness returns nil when the dashboard can fetch climate data, or
// an error naming the first open breaker.
func (d *Dashboard) CheckReadiness(_ context.Context) error {
	for _, p := range d.probes {
		if p.State() == gobreaker.StateOpen {
			return fmt.Errorf("%s circuit breaker is open", p.Source())
		}
	}
	return nil
}

// Normalize fills defaults into req.
func (d *Dashboard) Normalize(req Request) (Request, error) {
	req.Regions = uniqueNames(req.Regions)
	if len(req.Regions) == 0 {
		req.Regions = []string{d.defaults.Region}
	}
	if req.Range.Start.IsZero() && req.Range.End.IsZero() {
		dr, err := domain.LookbackRange(d.defaults.LookbackDays)
		if err != nil {
			return Request{}, err
		}
		req.Range = dr
	}
	if req.Resolution == "" {
		req.Resolution = d.defaults.Resolution
	}
	if req.Resolution == domain.ResolutionAnnual {
		return Request{}, errors.New("annual resolution is not supported for views")
	}
	if req.Policy == "" {
		req.Policy = d.defaults.Policy
	}
	return req, nil
}

// Render builds one view. Provider failures become banners on the view;
// only an invalid request or a presenter failure returns an error.
func (d *Dashboard) Render(ctx context.Context, req Request) (*presenter.View, error) {
	start := time.Now()
	req, err := d.Normalize(req)
	if err != nil {
		d.metrics.Renders.WithLabelValues("invalid").Inc()
		return nil, err
	}

	renderID := uuid.NewString()
	log := d.logger.With("render_id", renderID)
	log.Info("render started", "regions", req.Regions, "range", req.Range.String(),
		"resolution", string(req.Resolution), "policy", string(req.Policy))

	in := presenter.Input{
		RenderID:    renderID,
		GeneratedAt: domain.Now(),
		Range:       req.Range,
		Resolution:  req.Resolution,
		Policy:      req.Policy,
		Boundaries:  d.boundaries,
		Forecasts:   make(map[string][]domain.ForecastPoint),
	}

	for _, name := range req.Regions {
		region, err := d.resolver.Resolve(ctx, name, req.CountryISO3)
		if err != nil {
			log.Warn("region not resolved", "region", name, "error", err)
			in.Banners = append(in.Banners, presenter.ErrorBanner(err))
			continue
		}
		in.Regions = append(in.Regions, region)
		d.renderRegion(ctx, log, region, req, &in)
	}

	view, err := presenter.Build(in)
	if err != nil {
		d.metrics.Renders.WithLabelValues("error").Inc()
		return nil, err
	}

	outcome := "success"
	if len(view.Banners) > 0 {
		outcome = "degraded"
	}
	d.metrics.Renders.WithLabelValues(outcome).Inc()
	d.metrics.RenderDuration.Observe(time.Since(start).Seconds())
	d.metrics.MergedRows.Observe(float64(len(view.Rows)))

	d.publish(ctx, log, view)
	log.Info("render finished", "outcome", outcome, "rows", len(view.Rows), "banners", len(view.Banners))
	return view, nil
}

// renderRegion fetches, merges and forecasts one region into in.
func (d *Dashboard) renderRegion(ctx context.Context, log *slog.Logger, region domain.Region, req Request, in *presenter.Input) {
	fetched := d.fetcher.Fetch(ctx, region, req.Range, req.Resolution)
	if fetched.Warnings != nil {
		for _, w := range fetched.Warnings.Errors {
			in.Notices = append(in.Notices, presenter.SourceNotice(w))
		}
	}

	if err := fetched.Err(); err != nil {
		log.Warn("region degraded", "region", region.Name, "error", err)
		for _, e := range []error{fetched.ClimateErr, fetched.HealthErr} {
			if e != nil {
				in.Banners = append(in.Banners, presenter.ErrorBanner(e))
			}
		}
	}
	if fetched.ClimateErr != nil {
		return
	}
	if fetched.HealthErr != nil {
		in.Rows = append(in.Rows, domain.ClimateOnly(fetched.Climate)...)
		d.metrics.Forecasts.WithLabelValues("skipped").Inc()
		return
	}

	rows := domain.Merge(fetched.Climate, fetched.Health, req.Policy)
	in.Rows = append(in.Rows, rows...)

	points, err := d.forecaster.Forecast(domain.CaseSeries(rows, region.Name, req.Resolution))
	switch {
	case errors.Is(err, domain.ErrInsufficientHistory):
		d.metrics.Forecasts.WithLabelValues("insufficient").Inc()
		in.Notices = append(in.Notices, presenter.ForecastNotice(region.Name, err))
	case err != nil:
		d.metrics.Forecasts.WithLabelValues("error").Inc()
		log.Warn("forecast failed", "region", region.Name, "error", err)
		in.Notices = append(in.Notices, presenter.ForecastNotice(region.Name, err))
	default:
		d.metrics.Forecasts.WithLabelValues("success").Inc()
		in.Forecasts[region.Name] = points
	}
}

func (d *Dashboard) publish(ctx context.Context, log *slog.Logger, view *presenter.View) {
	if d.publisher == nil || !view.HasData() {
		return
	}
	snap := Snapshot{RenderID: view.RenderID, GeneratedAt: view.GeneratedAt, Rows: view.Rows}
	if err := d.publisher.Publish(ctx, snap); err != nil {
		d.metrics.SnapshotsPublished.WithLabelValues("error").Inc()
		log.Error("publish snapshot failed", "error", err, "rows", len(view.Rows))
		return
	}
	d.metrics.SnapshotsPublished.WithLabelValues("success").Inc()
}

// uniqueNames drops blank and repeated names, ignoring case.
func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
