package presenter

import (
	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

// RiskIndex scores each row as the mean of its min-max normalised
// temperature, rainfall and case count, each scaled over all rows. Missing
// measurements are left out of a row's mean; a row with none has a nil
// score. A measurement that is constant across rows scales to 0.
func RiskIndex(rows []domain.MergedRow) []*float64 {
	columns := []func(domain.MergedRow) *float64{
		func(r domain.MergedRow) *float64 { return r.Temperature },
		func(r domain.MergedRow) *float64 { return r.Rainfall },
		func(r domain.MergedRow) *float64 { return r.CaseCount },
	}

	sums := make([]float64, len(rows))
	counts := make([]int, len(rows))
	for _, col := range columns {
		lo, hi, ok := columnRange(rows, col)
		if !ok {
			continue
		}
		span := hi - lo
		for i, r := range rows {
			v := col(r)
			if v == nil {
				continue
			}
			if span > 0 {
				sums[i] += (*v - lo) / span
			}
			counts[i]++
		}
	}

	out := make([]*float64, len(rows))
	for i := range rows {
		if counts[i] > 0 {
			out[i] = domain.Float(sums[i] / float64(counts[i]))
		}
	}
	return out
}

func columnRange(rows []domain.MergedRow, col func(domain.MergedRow) *float64) (lo, hi float64, ok bool) {
	vals := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v := col(r); v != nil {
			vals = append(vals, *v)
		}
	}
	if len(vals) == 0 {
		return 0, 0, false
	}
	return floats.Min(vals), floats.Max(vals), true
}

// mean averages the non-nil values, or returns nil if there are none.
func mean(rows []domain.MergedRow, col func(domain.MergedRow) *float64) *float64 {
	vals := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v := col(r); v != nil {
			vals = append(vals, *v)
		}
	}
	if len(vals) == 0 {
		return nil
	}
	return domain.Float(floats.Sum(vals) / float64(len(vals)))
}
