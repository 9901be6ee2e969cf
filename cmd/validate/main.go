// Command validate checks an exported dashboard CSV, and optionally the JSON
// view written alongside it by cmd/snapshot, for data integrity: rows parse,
// keys are unique and ordered, the CSV survives a round trip, and forecasts
// are well formed.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/east_africa_climate_health.csv \
//	  -view-json data/east_africa_climate_health.json
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
	"github.com/couchcryptid/climate-health-dashboard/internal/presenter"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	result *multierror.Error
}

func (p *phase) errorf(format string, args ...any) {
	p.result = multierror.Append(p.result, fmt.Errorf(format, args...))
}

func (p *phase) errors() []error {
	if p.result == nil {
		return nil
	}
	return p.result.Errors
}

func (p *phase) passed() bool { return p.result.ErrorOrNil() == nil }

func main() {
	csvPath := flag.String("csv", "", "path to an exported merged rows CSV")
	viewJSON := flag.String("view-json", "", "optional path to the matching JSON view")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *viewJSON); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, viewPath string) int {
	fmt.Println("=== Climate Health Export Validation ===")
	fmt.Println()

	data, err := os.ReadFile(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read CSV: %v\n", err)
		return 1
	}
	rows, err := domain.ReadCSV(bytes.NewReader(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse CSV: %v\n", err)
		return 1
	}

	var view *presenter.View
	if viewPath != "" {
		if view, err = loadView(viewPath); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load view JSON: %v\n", err)
			return 1
		}
	}

	phases := []*phase{
		validateKeys(rows),
		validateRoundTrip(rows),
		validateMeasurements(rows),
	}
	if view != nil {
		phases = append(phases, validateView(view, rows))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors()))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d across %d regions\n", len(rows), len(domain.Regions(rows)))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors() {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadView(path string) (*presenter.View, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v presenter.View
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

type rowKey struct {
	region string
	date   time.Time
}

// ── Phase 1: Keys ──
// Every (region, date) appears once, sorted by region then date.

func validateKeys(rows []domain.MergedRow) *phase {
	p := &phase{name: "Phase 1: Keys (unique, ordered)"}
	seen := make(map[rowKey]int, len(rows))
	for i := range rows {
		r := &rows[i]
		line := i + 2
		if r.Region == "" {
			p.errorf("line %d: region is empty", line)
		}
		k := rowKey{r.Region, r.Date}
		if prev, ok := seen[k]; ok {
			p.errorf("line %d: duplicate key %s %s (first at line %d)", line, r.Region, r.Date.Format(domain.DateLayout), prev)
		}
		seen[k] = line

		if i == 0 {
			continue
		}
		prev := &rows[i-1]
		if prev.Region > r.Region || (prev.Region == r.Region && !prev.Date.Before(r.Date)) {
			p.errorf("line %d: %s %s is out of order after %s %s", line,
				r.Region, r.Date.Format(domain.DateLayout), prev.Region, prev.Date.Format(domain.DateLayout))
		}
	}
	return p
}

// ── Phase 2: Round Trip ──
// Writing the parsed rows back produces the same rows.

func validateRoundTrip(rows []domain.MergedRow) *phase {
	p := &phase{name: "Phase 2: Round Trip (CSV)"}
	var buf bytes.Buffer
	if err := domain.WriteCSV(&buf, rows); err != nil {
		p.errorf("write: %v", err)
		return p
	}
	again, err := domain.ReadCSV(&buf)
	if err != nil {
		p.errorf("re-read: %v", err)
		return p
	}
	if diff := cmp.Diff(rows, again); diff != "" {
		p.errorf("rows changed after round trip (-first +second):\n%s", diff)
	}
	return p
}

// ── Phase 3: Measurements ──
// Case counts are non-negative and filled flags only mark present counts.

func validateMeasurements(rows []domain.MergedRow) *phase {
	p := &phase{name: "Phase 3: Measurements"}
	for i := range rows {
		r := &rows[i]
		line := i + 2
		if r.Temperature == nil && r.Rainfall == nil && r.CaseCount == nil {
			p.errorf("line %d: row has no measurements", line)
		}
		if r.CaseCount != nil && *r.CaseCount < 0 {
			p.errorf("line %d: case_count %g is negative", line, *r.CaseCount)
		}
		if r.Rainfall != nil && *r.Rainfall < 0 {
			p.errorf("line %d: rainfall %g is negative", line, *r.Rainfall)
		}
		if r.CaseCountFilled && r.CaseCount == nil {
			p.errorf("line %d: case_count_filled set without a case_count", line)
		}
	}
	return p
}

// ── Phase 4: View ──
// The JSON view carries the same rows and forecasts start after history.

func validateView(v *presenter.View, rows []domain.MergedRow) *phase {
	p := &phase{name: "Phase 4: View (rows, forecasts)"}
	if len(v.Rows) != len(rows) {
		p.errorf("view has %d rows, CSV has %d", len(v.Rows), len(rows))
	}

	last := make(map[string]time.Time)
	for i := range rows {
		if rows[i].Date.After(last[rows[i].Region]) {
			last[rows[i].Region] = rows[i].Date
		}
	}

	for _, s := range v.Series {
		end, ok := last[s.Region]
		if !ok {
			p.errorf("series %s has no rows in the CSV", s.Region)
			continue
		}
		for j, f := range s.Forecast {
			if !f.Date.After(end) {
				p.errorf("%s forecast %d: date %s is not after last observation %s",
					s.Region, j, f.Date.Format(domain.DateLayout), end.Format(domain.DateLayout))
			}
			if f.PredictedCaseCount < 0 || f.ConfidenceLower < 0 {
				p.errorf("%s forecast %d: negative case count", s.Region, j)
			}
			if f.ConfidenceLower > f.PredictedCaseCount || f.PredictedCaseCount > f.ConfidenceUpper {
				p.errorf("%s forecast %d: %g outside interval [%g, %g]",
					s.Region, j, f.PredictedCaseCount, f.ConfidenceLower, f.ConfidenceUpper)
			}
		}
	}
	return p
}
