package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

func monthlySeries(start time.Time, values ...float64) domain.Series {
	s := domain.Series{Region: "Kenya", Resolution: domain.ResolutionMonthly, Values: values}
	for i := range values {
		s.Dates = append(s.Dates, start.AddDate(0, i, 0))
	}
	return s
}

var jan2020 = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

func newForecaster(t *testing.T, horizon int) *Forecaster {
	t.Helper()
	f, err := New(horizon, 0.8)
	require.NoError(t, err)
	return f
}

func TestForecast_InsufficientHistory(t *testing.T) {
	f := newForecaster(t, 14)

	for _, s := range []domain.Series{
		{Region: "Kenya", Resolution: domain.ResolutionMonthly},
		monthlySeries(jan2020, 5),
	} {
		_, err := f.Forecast(s)
		require.ErrorIs(t, err, domain.ErrInsufficientHistory)

		var ih *domain.InsufficientHistoryError
		require.ErrorAs(t, err, &ih)
		assert.Equal(t, s.Len(), ih.Points)
		assert.Equal(t, MinPoints, ih.Required)
	}
}

func TestForecast_DatesStrictlyAfterHistory(t *testing.T) {
	f := newForecaster(t, 14)
	s := monthlySeries(jan2020, 3, 5, 4, 6, 8, 7)

	points, err := f.Forecast(s)
	require.NoError(t, err)

	require.Len(t, points, 14)
	last := s.Dates[len(s.Dates)-1]
	for i, p := range points {
		assert.True(t, p.Date.After(last), "point %d at %s not after %s", i, p.Date, last)
		assert.Equal(t, "Kenya", p.Region)
		if i > 0 {
			assert.True(t, p.Date.After(points[i-1].Date))
		}
	}
	assert.Equal(t, time.Date(2020, time.July, 1, 0, 0, 0, 0, time.UTC), points[0].Date)
}

func TestForecast_TwoPointsExtrapolateLine(t *testing.T) {
	f := newForecaster(t, 3)

	points, err := f.Forecast(monthlySeries(jan2020, 10, 20))
	require.NoError(t, err)

	want := []float64{30, 40, 50}
	for i, p := range points {
		assert.InDelta(t, want[i], p.PredictedCaseCount, 1e-6)
		assert.InDelta(t, want[i], p.ConfidenceLower, 1e-6, "exact fit has no spread")
		assert.InDelta(t, want[i], p.ConfidenceUpper, 1e-6)
	}
}

func TestForecast_ClampsAtZero(t *testing.T) {
	f := newForecaster(t, 4)

	points, err := f.Forecast(monthlySeries(jan2020, 30, 20, 12, 1))
	require.NoError(t, err)

	for _, p := range points {
		assert.GreaterOrEqual(t, p.PredictedCaseCount, 0.0)
		assert.GreaterOrEqual(t, p.ConfidenceLower, 0.0)
		assert.GreaterOrEqual(t, p.ConfidenceUpper, 0.0)
	}
	assert.InDelta(t, 0, points[len(points)-1].PredictedCaseCount, 1e-9)
}

func TestForecast_IntervalWidensWithHorizon(t *testing.T) {
	f := newForecaster(t, 6)

	points, err := f.Forecast(monthlySeries(jan2020, 100, 112, 104, 121, 113, 129, 118, 135))
	require.NoError(t, err)

	prevWidth := 0.0
	for i, p := range points {
		assert.LessOrEqual(t, p.ConfidenceLower, p.PredictedCaseCount)
		assert.GreaterOrEqual(t, p.ConfidenceUpper, p.PredictedCaseCount)
		width := p.ConfidenceUpper - p.ConfidenceLower
		assert.Greater(t, width, prevWidth, "interval at step %d should be wider", i+1)
		prevWidth = width
	}
}

func TestForecast_CarriesMonthlySeasonality(t *testing.T) {
	values := make([]float64, 36)
	for i := range values {
		values[i] = 100 + 30*math.Sin(2*math.Pi*float64(i)/12)
	}
	s := monthlySeries(jan2020, values...)

	m, err := Fit(s)
	require.NoError(t, err)
	require.NotNil(t, m.Seasonal, "three full cycles enable seasonality")
	require.Len(t, m.Seasonal, 12)
	assert.InDelta(t, 30, m.Seasonal[3], 1e-3, "April offset")
	assert.InDelta(t, -30, m.Seasonal[9], 1e-3, "October offset")
	assert.InDelta(t, 0, m.Seasonal[0], 1e-3)
	assert.InDelta(t, 0, m.Slope, 1e-3, "the cycle is not absorbed by the trend")
	assert.InDelta(t, 100, m.Intercept, 1e-3)

	points, err := newForecaster(t, 12).Forecast(s)
	require.NoError(t, err)

	// Peak in April (sin at a quarter cycle), trough in October.
	april, october := points[3], points[9]
	require.Equal(t, time.April, april.Date.Month())
	require.Equal(t, time.October, october.Date.Month())
	assert.Greater(t, april.PredictedCaseCount-october.PredictedCaseCount, 20.0)
}

func TestFit_SeparatesTrendFromSeasonality(t *testing.T) {
	values := make([]float64, 24)
	for i := range values {
		values[i] = 10 + 2*float64(i) + 5*math.Sin(2*math.Pi*float64(i)/12)
	}

	m, err := Fit(monthlySeries(jan2020, values...))
	require.NoError(t, err)
	require.Len(t, m.Seasonal, 12)
	assert.InDelta(t, 2, m.Slope, 1e-3)
	assert.InDelta(t, 10, m.Intercept, 1e-3)
	assert.InDelta(t, 5, m.Seasonal[3], 1e-3)
	assert.InDelta(t, 0, floats.Sum(m.Seasonal), 1e-9, "offsets are centred")
	assert.InDelta(t, 0, m.Sigma, 1e-3, "model reproduces the series")
}

func TestFit_ShortSeriesHasNoSeasonality(t *testing.T) {
	m, err := Fit(monthlySeries(jan2020, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13))
	require.NoError(t, err)
	assert.Nil(t, m.Seasonal)
	assert.InDelta(t, 1, m.Slope, 1e-9)
	assert.InDelta(t, 1, m.Intercept, 1e-9)
}

func TestFit_RejectsUnorderedDates(t *testing.T) {
	s := monthlySeries(jan2020, 1, 2, 3)
	s.Dates[2] = s.Dates[0]

	_, err := Fit(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not increasing")
}

func TestForecast_DailyAndAnnual(t *testing.T) {
	daily := domain.Series{
		Region:     "Uganda",
		Resolution: domain.ResolutionDaily,
		Dates:      []time.Time{jan2020, jan2020.AddDate(0, 0, 1), jan2020.AddDate(0, 0, 3)},
		Values:     []float64{1, 2, 4},
	}
	points, err := newForecaster(t, 2).Forecast(daily)
	require.NoError(t, err)
	assert.Equal(t, jan2020.AddDate(0, 0, 4), points[0].Date)
	assert.InDelta(t, 5, points[0].PredictedCaseCount, 1e-6, "gaps are measured in days")

	annual := domain.Series{
		Region:     "Uganda",
		Resolution: domain.ResolutionAnnual,
		Dates:      []time.Time{jan2020, jan2020.AddDate(1, 0, 0)},
		Values:     []float64{100, 90},
	}
	points, err = newForecaster(t, 1).Forecast(annual)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC), points[0].Date)
	assert.InDelta(t, 80, points[0].PredictedCaseCount, 1e-6)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0, 0.8)
	require.Error(t, err)
	_, err = New(14, 1)
	require.Error(t, err)

	f, err := New(14, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 1.96, f.z, 0.001)
	assert.Equal(t, 14, f.Horizon())
}
