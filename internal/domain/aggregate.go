package domain

import (
	"sort"
	"time"
)

type periodKey struct {
	region string
	date   time.Time
}

// mean accumulates the average of the values it sees.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	return Float(m.sum / float64(m.n))
}

// AggregateClimate averages climate records into periods of the given
// resolution. Nil measurements are ignored; a period with no values for a
// measurement keeps it nil. Output is sorted by (region, date) and has one
// record per key.
func AggregateClimate(records []ClimateRecord, res Resolution) []ClimateRecord {
	type acc struct {
		temp, rain mean
	}
	groups := make(map[periodKey]*acc)
	for _, rec := range records {
		k := periodKey{region: rec.Region, date: res.PeriodStart(rec.Date)}
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.temp.add(rec.Temperature)
		a.rain.add(rec.Rainfall)
	}

	out := make([]ClimateRecord, 0, len(groups))
	for k, a := range groups {
		out = append(out, ClimateRecord{
			Region:      k.region,
			Date:        k.date,
			Temperature: a.temp.value(),
			Rainfall:    a.rain.value(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return keyLess(out[i].Region, out[i].Date, out[j].Region, out[j].Date)
	})
	return out
}

// ApplyPrecipitation replaces climate rainfall with the CHIRPS period mean
// wherever CHIRPS has data for the same (region, period). Climate periods
// without CHIRPS coverage keep their original rainfall. The input slice is
// not modified.
func ApplyPrecipitation(climate []ClimateRecord, precip []PrecipitationRecord, res Resolution) []ClimateRecord {
	if len(precip) == 0 {
		return append([]ClimateRecord(nil), climate...)
	}
	sums := make(map[periodKey]*mean, len(precip))
	for _, p := range precip {
		k := periodKey{region: p.Region, date: res.PeriodStart(p.Date)}
		m, ok := sums[k]
		if !ok {
			m = &mean{}
			sums[k] = m
		}
		m.add(Float(p.Rainfall))
	}

	out := make([]ClimateRecord, len(climate))
	for i, rec := range climate {
		if m, ok := sums[periodKey{region: rec.Region, date: res.PeriodStart(rec.Date)}]; ok {
			rec.Rainfall = m.value()
		}
		out[i] = rec
	}
	return out
}

func keyLess(regionA string, dateA time.Time, regionB string, dateB time.Time) bool {
	if regionA != regionB {
		return regionA < regionB
	}
	return dateA.Before(dateB)
}
