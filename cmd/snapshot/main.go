// Command snapshot renders the dashboard once, without serving it, and
// writes the merged rows as CSV and the full view as JSON. Provider settings
// come from the same environment variables as the service.
//
// Usage:
//
//	go run ./cmd/snapshot \
//	  -region Kenya,Uganda \
//	  -start 2020-01-01 -end 2020-12-31 \
//	  -csv-out data/east_africa_climate_health.csv \
//	  -json-out data/east_africa_climate_health.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/couchcryptid/climate-health-dashboard/internal/adapter/httpadapter"
	"github.com/couchcryptid/climate-health-dashboard/internal/app"
	"github.com/couchcryptid/climate-health-dashboard/internal/config"
	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
	"github.com/couchcryptid/climate-health-dashboard/internal/observability"
	"github.com/couchcryptid/climate-health-dashboard/internal/presenter"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	region := flag.String("region", "", "comma-separated region names (default DEFAULT_REGION)")
	country := flag.String("country", "", "ISO3 country code for geocoded regions")
	start := flag.String("start", "", "start date YYYY-MM-DD (with -end)")
	end := flag.String("end", "", "end date YYYY-MM-DD (with -start)")
	resolution := flag.String("resolution", "", "monthly or daily (default RESOLUTION)")
	policy := flag.String("policy", "", "fill or inner (default MERGE_POLICY)")
	csvOut := flag.String("csv-out", "", "output path for the merged rows CSV")
	jsonOut := flag.String("json-out", "", "output path for the full view JSON")
	flag.Parse()

	if *csvOut == "" && *jsonOut == "" {
		flag.Usage()
		return fmt.Errorf("at least one of -csv-out, -json-out is required")
	}

	q := url.Values{}
	for k, v := range map[string]string{
		"region": *region, "country": *country, "start": *start, "end": *end,
		"resolution": *resolution, "policy": *policy,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	req, err := httpadapter.ParseRequest(q)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	a, err := app.New(cfg, logger, observability.NewMetricsForTesting())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	view, err := a.Dashboard.Render(ctx, req)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	for _, b := range view.Banners {
		log.Printf("warning: %s", b.Text)
	}
	for _, n := range view.Notices {
		log.Printf("note: %s", n.Text)
	}

	if *csvOut != "" {
		if err := writeCSV(*csvOut, view); err != nil {
			return fmt.Errorf("writing CSV: %w", err)
		}
		log.Printf("wrote %d rows: %s", len(view.Rows), *csvOut)
	}
	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, view); err != nil {
			return fmt.Errorf("writing JSON: %w", err)
		}
		log.Printf("wrote view %s: %s", view.RenderID, *jsonOut)
	}
	return nil
}

func writeCSV(path string, view *presenter.View) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := domain.WriteCSV(f, view.Rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
