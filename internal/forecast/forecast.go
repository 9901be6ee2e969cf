// Package forecast projects disease-case series forward with an additive
// trend plus seasonality model.
//
// The trend is an ordinary least squares line over period index. When the
// series spans at least two seasonal cycles, each calendar phase (month of
// year for monthly data, weekday for daily data) also gets an offset. Trend
// and offsets are fitted jointly by backfitting: the line is refitted to the
// deseasonalised values and the offsets to the detrended residuals until they
// settle. Residual spread around the fitted model sets the width of the
// prediction interval, which widens with the forecast step.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

// MinPoints is the shortest history a forecast can be fitted to.
const MinPoints = 2

// backfitIterations is the number of alternating trend and seasonal refits.
const backfitIterations = 10

// Forecaster fits and extrapolates case series.
type Forecaster struct {
	horizon int
	z       float64
}

// New creates a Forecaster producing horizon points with a central
// prediction interval of the given width, e.g. 0.8 for 80%.
func New(horizon int, intervalWidth float64) (*Forecaster, error) {
	if horizon <= 0 {
		return nil, errors.New("forecast horizon must be positive")
	}
	if intervalWidth <= 0 || intervalWidth >= 1 {
		return nil, fmt.Errorf("interval width %v outside (0, 1)", intervalWidth)
	}
	z := distuv.UnitNormal.Quantile(0.5 + intervalWidth/2)
	return &Forecaster{horizon: horizon, z: z}, nil
}

// Horizon returns the number of points each forecast has.
func (f *Forecaster) Horizon() int { return f.horizon }

// Model is a fitted series.
type Model struct {
	Intercept float64
	Slope     float64
	Sigma     float64
	// Seasonal holds the offset per phase; nil when the history is too
	// short for seasonality.
	Seasonal []float64

	res   domain.Resolution
	first time.Time
	n     int
}

// Fit estimates the model for s. Dates must be strictly increasing.
func Fit(s domain.Series) (*Model, error) {
	n := s.Len()
	if n < MinPoints {
		return nil, &domain.InsufficientHistoryError{Region: s.Region, Points: n, Required: MinPoints}
	}
	if len(s.Dates) != n {
		return nil, fmt.Errorf("series %s: %d dates for %d values", s.Region, len(s.Dates), n)
	}
	for i := 1; i < n; i++ {
		if !s.Dates[i].After(s.Dates[i-1]) {
			return nil, fmt.Errorf("series %s: dates not increasing at %s", s.Region, s.Dates[i].Format(domain.DateLayout))
		}
	}

	m := &Model{res: s.Resolution, first: s.Resolution.PeriodStart(s.Dates[0]), n: n}

	xs := make([]float64, n)
	for i, d := range s.Dates {
		xs[i] = float64(m.index(d))
	}

	ys := append([]float64(nil), s.Values...)
	m.Intercept, m.Slope = stat.LinearRegression(xs, ys, nil, false)
	if p := s.Resolution.Periodicity(); p > 1 && n >= 2*p {
		phases := make([]int, n)
		for i, d := range s.Dates {
			phases[i] = phase(d, s.Resolution)
		}
		for range backfitIterations {
			m.Seasonal = seasonalOffsets(xs, s.Values, phases, m.Intercept, m.Slope, p)
			for i := range ys {
				ys[i] = s.Values[i] - m.Seasonal[phases[i]]
			}
			m.Intercept, m.Slope = stat.LinearRegression(xs, ys, nil, false)
		}
	}

	resid := make([]float64, n)
	for i := range ys {
		resid[i] = ys[i] - (m.Intercept + m.Slope*xs[i])
	}
	if n > 2 {
		m.Sigma = stat.StdDev(resid, nil)
	}
	if math.IsNaN(m.Sigma) || math.IsInf(m.Sigma, 0) {
		m.Sigma = 0
	}
	return m, nil
}

// Forecast fits s and returns the next horizon periods after its last date.
// Predictions and interval bounds are clamped at zero.
func (f *Forecaster) Forecast(s domain.Series) ([]domain.ForecastPoint, error) {
	m, err := Fit(s)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ForecastPoint, 0, f.horizon)
	d := s.Dates[len(s.Dates)-1]
	for h := 1; h <= f.horizon; h++ {
		d = s.Resolution.Next(d)
		yhat := m.Predict(d)
		half := f.z * m.Sigma * math.Sqrt(1+float64(h)/float64(m.n))
		out = append(out, domain.ForecastPoint{
			Region:             s.Region,
			Date:               d,
			PredictedCaseCount: math.Max(0, yhat),
			ConfidenceLower:    math.Max(0, yhat-half),
			ConfidenceUpper:    math.Max(0, yhat+half),
		})
	}
	return out, nil
}

// Predict evaluates the fitted trend and seasonality at t, unclamped.
func (m *Model) Predict(t time.Time) float64 {
	y := m.Intercept + m.Slope*float64(m.index(t))
	if m.Seasonal != nil {
		y += m.Seasonal[phase(t, m.res)]
	}
	return y
}

// index counts whole periods from the first observation to t.
func (m *Model) index(t time.Time) int {
	t = m.res.PeriodStart(t)
	switch m.res {
	case domain.ResolutionMonthly:
		return (t.Year()-m.first.Year())*12 + int(t.Month()) - int(m.first.Month())
	case domain.ResolutionAnnual:
		return t.Year() - m.first.Year()
	default:
		return int(math.Round(t.Sub(m.first).Hours() / 24))
	}
}

// phase is the position of t within its seasonal cycle.
func phase(t time.Time, res domain.Resolution) int {
	t = t.UTC()
	switch res {
	case domain.ResolutionMonthly:
		return int(t.Month()) - 1
	case domain.ResolutionDaily:
		return int(t.Weekday())
	default:
		return 0
	}
}

// seasonalOffsets averages the residuals of values around the trend line by
// phase. The offsets are centred so they sum to zero; a phase with no
// observations gets zero before centring.
func seasonalOffsets(xs, values []float64, phases []int, intercept, slope float64, periodicity int) []float64 {
	sums := make([]float64, periodicity)
	counts := make([]float64, periodicity)
	for i, v := range values {
		sums[phases[i]] += v - (intercept + slope*xs[i])
		counts[phases[i]]++
	}
	offsets := make([]float64, periodicity)
	for p := range offsets {
		if counts[p] > 0 {
			offsets[p] = sums[p] / counts[p]
		}
	}
	floats.AddConst(-floats.Sum(offsets)/float64(periodicity), offsets)
	return offsets
}
