//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-health-dashboard/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Kisumu", "KEN")
	require.NoError(t, err)

	assert.InDelta(t, -0.09, result.Lat, 0.5, "lat should be near Kisumu")
	assert.InDelta(t, 34.76, result.Lon, 0.5, "lon should be near Kisumu")
	assert.Contains(t, result.FormattedAddress, "Kenya")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ForwardGeocode_CountryFilter(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Arusha", "TZA")
	require.NoError(t, err)

	assert.Contains(t, result.FormattedAddress, "Tanzania")
}
