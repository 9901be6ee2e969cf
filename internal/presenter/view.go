// Package presenter turns merged rows and forecasts into the dashboard view:
// summary metrics, chart series, a risk map and user-facing messages.
package presenter

import (
	"encoding/json"
	"time"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

// Input is everything one render produced.
type Input struct {
	RenderID    string
	GeneratedAt time.Time
	Range       domain.DateRange
	Resolution  domain.Resolution
	Policy      domain.MergePolicy
	Regions     []domain.Region
	Rows        []domain.MergedRow
	Forecasts   map[string][]domain.ForecastPoint
	Boundaries  Boundaries
	Banners     []Message
	Notices     []Message
}

// View is the rendered dashboard.
type View struct {
	RenderID    string             `json:"render_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Range       domain.DateRange   `json:"range"`
	Resolution  domain.Resolution  `json:"resolution"`
	Policy      domain.MergePolicy `json:"merge_policy"`
	Regions     []domain.Region    `json:"regions"`
	Summary     Summary            `json:"summary"`
	Rows        []domain.MergedRow `json:"rows"`
	Series      []RegionSeries     `json:"series"`
	Map         json.RawMessage    `json:"map"`
	Banners     []Message          `json:"banners"`
	Notices     []Message          `json:"notices"`
}

// Summary holds the headline averages over every row in the view. A nil
// average means no row had the measurement.
type Summary struct {
	AvgTemperature *float64 `json:"avg_temperature"`
	AvgRainfall    *float64 `json:"avg_rainfall"`
	AvgCaseCount   *float64 `json:"avg_case_count"`
}

// RegionSeries is one region's trend chart, with its forecast overlay if any.
type RegionSeries struct {
	Region      string                 `json:"region"`
	Dates       []time.Time            `json:"dates"`
	Temperature []*float64             `json:"temperature"`
	Rainfall    []*float64             `json:"rainfall"`
	CaseCount   []*float64             `json:"case_count"`
	RiskIndex   []*float64             `json:"risk_index"`
	Forecast    []domain.ForecastPoint `json:"forecast,omitempty"`
}

// HasData reports whether the view has any rows.
func (v *View) HasData() bool { return len(v.Rows) > 0 }

// Build assembles the view. Rows are sorted by (region, date) first.
func Build(in Input) (*View, error) {
	rows := append([]domain.MergedRow(nil), in.Rows...)
	domain.SortRows(rows)
	risk := RiskIndex(rows)

	mapJSON, err := Choropleth(in.Boundaries, in.Regions, latestRisk(rows, risk))
	if err != nil {
		return nil, err
	}

	v := &View{
		RenderID:    in.RenderID,
		GeneratedAt: in.GeneratedAt,
		Range:       in.Range,
		Resolution:  in.Resolution,
		Policy:      in.Policy,
		Regions:     nonNil(in.Regions),
		Summary: Summary{
			AvgTemperature: mean(rows, func(r domain.MergedRow) *float64 { return r.Temperature }),
			AvgRainfall:    mean(rows, func(r domain.MergedRow) *float64 { return r.Rainfall }),
			AvgCaseCount:   mean(rows, func(r domain.MergedRow) *float64 { return r.CaseCount }),
		},
		Rows:    nonNil(rows),
		Series:  series(rows, risk, in.Forecasts),
		Map:     mapJSON,
		Banners: nonNil(in.Banners),
		Notices: nonNil(in.Notices),
	}
	return v, nil
}

func series(rows []domain.MergedRow, risk []*float64, forecasts map[string][]domain.ForecastPoint) []RegionSeries {
	out := []RegionSeries{}
	for i, r := range rows {
		if len(out) == 0 || out[len(out)-1].Region != r.Region {
			out = append(out, RegionSeries{Region: r.Region, Forecast: forecasts[r.Region]})
		}
		s := &out[len(out)-1]
		s.Dates = append(s.Dates, r.Date)
		s.Temperature = append(s.Temperature, r.Temperature)
		s.Rainfall = append(s.Rainfall, r.Rainfall)
		s.CaseCount = append(s.CaseCount, r.CaseCount)
		s.RiskIndex = append(s.RiskIndex, risk[i])
	}
	return out
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
