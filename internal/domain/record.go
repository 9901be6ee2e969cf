package domain

import "time"

// Provider names used in errors, logs and metric labels.
const (
	SourceNASAPower = "nasa_power"
	SourceCHIRPS    = "chirps"
	SourceWHOGHO    = "who_gho"
)

// Region is a named administrative area with the coordinates used to query
// point-based climate APIs and the ISO3 code used by WHO GHO.
type Region struct {
	Name string  `json:"name"`
	ISO3 string  `json:"iso3"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// ClimateRecord is one period of NASA POWER data for a region.
type ClimateRecord struct {
	Region      string    `json:"region"`
	Date        time.Time `json:"date"`
	Temperature *float64  `json:"temperature"` // °C
	Rainfall    *float64  `json:"rainfall"`    // mm/day
}

// PrecipitationRecord is one day of CHIRPS rainfall averaged over a region.
type PrecipitationRecord struct {
	Region   string    `json:"region"`
	Date     time.Time `json:"date"`
	Rainfall float64   `json:"rainfall"` // mm/day
}

// HealthRecord is a reported case count for a region. Coverage is the span
// the value describes, starting at Date.
type HealthRecord struct {
	Region    string     `json:"region"`
	Date      time.Time  `json:"date"`
	Coverage  Resolution `json:"coverage"`
	Disease   string     `json:"disease"`
	CaseCount float64    `json:"case_count"`
}

// covers reports whether d falls inside the record's coverage period.
func (h HealthRecord) covers(d time.Time) bool {
	return h.Coverage.PeriodStart(d).Equal(h.Coverage.PeriodStart(h.Date))
}

// MergedRow joins climate and health data for one (region, date) key.
type MergedRow struct {
	Region          string    `json:"region"`
	Date            time.Time `json:"date"`
	Temperature     *float64  `json:"temperature"`
	Rainfall        *float64  `json:"rainfall"`
	CaseCount       *float64  `json:"case_count"`
	CaseCountFilled bool      `json:"case_count_filled,omitempty"`
}

// Complete reports whether every measurement is present.
func (r MergedRow) Complete() bool {
	return r.Temperature != nil && r.Rainfall != nil && r.CaseCount != nil
}

// ForecastPoint is a projected case count with its confidence interval.
type ForecastPoint struct {
	Region             string    `json:"region"`
	Date               time.Time `json:"date"`
	PredictedCaseCount float64   `json:"predicted_case_count"`
	ConfidenceLower    float64   `json:"confidence_lower"`
	ConfidenceUpper    float64   `json:"confidence_upper"`
}

// Series is an ordered case-count history for one region.
type Series struct {
	Region     string
	Resolution Resolution
	Dates      []time.Time
	Values     []float64
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Values) }

// Float returns a pointer to v, for building optional measurements.
func Float(v float64) *float64 { return &v }
