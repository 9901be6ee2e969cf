package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MergePolicy decides what happens to climate rows with no covering health record.
type MergePolicy string

const (
	// MergeFill keeps every climate row and forward-fills, then back-fills,
	// missing case counts within each region.
	MergeFill MergePolicy = "fill"
	// MergeInner drops climate rows with no covering health record.
	MergeInner MergePolicy = "inner"
)

// ParseMergePolicy accepts "fill" or "inner" (case-insensitive).
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch p := MergePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case MergeFill, MergeInner:
		return p, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q", s)
	}
}

// Merge joins climate and health records on (region, date). Climate records
// define the keys; duplicates of the same day are averaged. Health records
// without any climate row are ignored. The result is sorted by (region, date)
// and contains each key once.
func Merge(climate []ClimateRecord, health []HealthRecord, policy MergePolicy) []MergedRow {
	byRegion := make(map[string][]HealthRecord)
	for _, h := range health {
		byRegion[h.Region] = append(byRegion[h.Region], h)
	}

	rows := make([]MergedRow, 0, len(climate))
	start := 0
	for _, rec := range AggregateClimate(climate, ResolutionDaily) {
		if len(rows) > 0 && rows[len(rows)-1].Region != rec.Region {
			rows = finishRegion(rows, start, policy)
			start = len(rows)
		}
		row := MergedRow{
			Region:      rec.Region,
			Date:        rec.Date,
			Temperature: rec.Temperature,
			Rainfall:    rec.Rainfall,
		}
		if h, ok := coveringRecord(byRegion[rec.Region], rec.Date); ok {
			row.CaseCount = Float(h.CaseCount)
		}
		rows = append(rows, row)
	}
	return finishRegion(rows, start, policy)
}

// ClimateOnly converts climate records into rows without case data, for
// views where the health source failed and the merge was skipped.
func ClimateOnly(climate []ClimateRecord) []MergedRow {
	agg := AggregateClimate(climate, ResolutionDaily)
	rows := make([]MergedRow, len(agg))
	for i, rec := range agg {
		rows[i] = MergedRow{
			Region:      rec.Region,
			Date:        rec.Date,
			Temperature: rec.Temperature,
			Rainfall:    rec.Rainfall,
		}
	}
	return rows
}

// CaseSeries extracts the non-missing case counts of one region in date order.
func CaseSeries(rows []MergedRow, region string, res Resolution) Series {
	s := Series{Region: region, Resolution: res}
	for _, r := range rows {
		if r.Region != region || r.CaseCount == nil {
			continue
		}
		s.Dates = append(s.Dates, r.Date)
		s.Values = append(s.Values, *r.CaseCount)
	}
	return s
}

// Regions returns the distinct region names of rows in first-seen order.
func Regions(rows []MergedRow) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		if !seen[r.Region] {
			seen[r.Region] = true
			out = append(out, r.Region)
		}
	}
	return out
}

// coveringRecord picks the finest-grained health record whose coverage
// contains d. Ties keep the first record in input order.
func coveringRecord(records []HealthRecord, d time.Time) (HealthRecord, bool) {
	var best HealthRecord
	found := false
	for _, h := range records {
		if !h.covers(d) {
			continue
		}
		if !found || h.Coverage.finer(best.Coverage) {
			best = h
			found = true
		}
	}
	return best, found
}

// finishRegion applies the merge policy to rows[start:], the rows of a
// single region in date order.
func finishRegion(rows []MergedRow, start int, policy MergePolicy) []MergedRow {
	region := rows[start:]
	if len(region) == 0 {
		return rows
	}

	if policy == MergeInner {
		kept := rows[:start]
		for _, r := range region {
			if r.CaseCount != nil {
				kept = append(kept, r)
			}
		}
		return kept
	}

	var last *float64
	for i := range region {
		if region[i].CaseCount != nil {
			last = region[i].CaseCount
			continue
		}
		if last != nil {
			region[i].CaseCount = Float(*last)
			region[i].CaseCountFilled = true
		}
	}
	var next *float64
	for i := len(region) - 1; i >= 0; i-- {
		if region[i].CaseCount != nil {
			next = region[i].CaseCount
			continue
		}
		if next != nil {
			region[i].CaseCount = Float(*next)
			region[i].CaseCountFilled = true
		}
	}
	return rows
}

// SortRows orders rows by (region, date) in place.
func SortRows(rows []MergedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return keyLess(rows[i].Region, rows[i].Date, rows[j].Region, rows[j].Date)
	})
}
