package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-health-dashboard/internal/adapter/httpadapter"
	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
	"github.com/couchcryptid/climate-health-dashboard/internal/pipeline"
	"github.com/couchcryptid/climate-health-dashboard/internal/presenter"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRenderer struct {
	view *presenter.View
	err  error
	got  []pipeline.Request
}

func (m *mockRenderer) Render(_ context.Context, req pipeline.Request) (*presenter.View, error) {
	m.got = append(m.got, req)
	return m.view, m.err
}

type mockRegions []domain.Region

func (m mockRegions) Regions() []domain.Region { return m }

var (
	kenya  = domain.Region{Name: "Kenya", ISO3: "KEN", Lat: 0.53, Lon: 37.73}
	uganda = domain.Region{Name: "Uganda", ISO3: "UGA", Lat: 1.28, Lon: 32.39}
)

func testRows() []domain.MergedRow {
	jan := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	return []domain.MergedRow{
		{Region: "Kenya", Date: jan, Temperature: domain.Float(24.5), Rainfall: domain.Float(3.2), CaseCount: domain.Float(120)},
		{Region: "Kenya", Date: jan.AddDate(0, 1, 0), Temperature: domain.Float(25), Rainfall: nil, CaseCount: domain.Float(120), CaseCountFilled: true},
	}
}

func testView(t *testing.T) *presenter.View {
	t.Helper()
	v, err := presenter.Build(presenter.Input{
		RenderID:    "3f2a6c1e-0000-4000-8000-000000000001",
		GeneratedAt: time.Date(2021, time.January, 15, 9, 0, 0, 0, time.UTC),
		Range: domain.DateRange{
			Start: time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2020, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		Resolution: domain.ResolutionMonthly,
		Policy:     domain.MergeFill,
		Regions:    []domain.Region{kenya},
		Rows:       testRows(),
		Notices:    []presenter.Message{{Level: presenter.LevelInfo, Text: "Not enough case history to forecast Kenya (2 of 2 points)."}},
		Banners:    []presenter.Message{{Level: presenter.LevelError, Text: "CHIRPS <rainfall> is unavailable"}},
	})
	require.NoError(t, err)
	return v
}

func newTestServer(t *testing.T, r *mockRenderer, readyErr error) *httpadapter.Server {
	t.Helper()
	if r.view == nil && r.err == nil {
		r.view = testView(t)
	}
	return httpadapter.NewServer(":0", r, mockRegions{kenya, uganda}, &mockReadiness{err: readyErr}, slog.Default())
}

func get(srv http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(t, &mockRenderer{}, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(t, &mockRenderer{}, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(t, &mockRenderer{}, fmt.Errorf("nasa_power circuit breaker is open")), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(t, &mockRenderer{}, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDashboardJSON(t *testing.T) {
	r := &mockRenderer{}
	srv := newTestServer(t, r, nil)

	rec := get(srv, "/api/dashboard?region=Kenya,Uganda&start=2020-01-01&end=2020-02-29&resolution=monthly&policy=inner&country=ken")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "3f2a6c1e-0000-4000-8000-000000000001", body["render_id"])
	assert.Len(t, body["rows"], 2)
	assert.Contains(t, body, "map")

	require.Len(t, r.got, 1)
	assert.Equal(t, []string{"Kenya", "Uganda"}, r.got[0].Regions)
	assert.Equal(t, "KEN", r.got[0].CountryISO3)
	assert.Equal(t, "2020-01-01..2020-02-29", r.got[0].Range.String())
	assert.Equal(t, domain.ResolutionMonthly, r.got[0].Resolution)
	assert.Equal(t, domain.MergeInner, r.got[0].Policy)
}

func TestDashboardJSON_InvalidQuery(t *testing.T) {
	r := &mockRenderer{}
	rec := get(newTestServer(t, r, nil), "/api/dashboard?resolution=hourly")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown resolution")
	assert.Empty(t, r.got)
}

func TestDashboardJSON_RenderError(t *testing.T) {
	r := &mockRenderer{err: errors.New("annual resolution is not supported for views")}
	rec := get(newTestServer(t, r, nil), "/api/dashboard?resolution=annual")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "annual resolution")
}

func TestDashboardCSV(t *testing.T) {
	rec := get(newTestServer(t, &mockRenderer{}, nil), "/api/dashboard.csv?region=Kenya")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="east_africa_climate_health.csv"`, rec.Header().Get("Content-Disposition"))

	rows, err := domain.ReadCSV(rec.Body)
	require.NoError(t, err)
	if diff := cmp.Diff(testRows(), rows); diff != "" {
		t.Errorf("csv rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRegions(t *testing.T) {
	rec := get(newTestServer(t, &mockRenderer{}, nil), "/api/regions")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Regions []domain.Region `json:"regions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []domain.Region{kenya, uganda}, body.Regions)
}

func TestPage(t *testing.T) {
	rec := get(newTestServer(t, &mockRenderer{}, nil), "/?region=Kenya")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	html := rec.Body.String()
	assert.Contains(t, html, "Avg Temp (°C)")
	assert.Contains(t, html, "24.75", "average temperature rounded to two places")
	assert.Contains(t, html, `<option value="Kenya" selected>Kenya</option>`)
	assert.Contains(t, html, `<option value="Uganda">Uganda</option>`)
	assert.Contains(t, html, "CHIRPS &lt;rainfall&gt; is unavailable", "banner text is escaped")
	assert.Contains(t, html, `value="2020-02-29"`)
}

func TestPage_CSVLinkPinsResolvedView(t *testing.T) {
	// No dates in the request: the link carries the range the view resolved to.
	rec := get(newTestServer(t, &mockRenderer{}, nil), "/?region=Kenya&country=ken")
	require.Equal(t, http.StatusOK, rec.Code)

	m := regexp.MustCompile(`href="(/api/dashboard\.csv\?[^"]*)"`).FindStringSubmatch(rec.Body.String())
	require.Len(t, m, 2, "download link present")
	link, err := url.Parse(html.UnescapeString(m[1]))
	require.NoError(t, err)

	q := link.Query()
	assert.Equal(t, "2020-01-01", q.Get("start"))
	assert.Equal(t, "2020-02-29", q.Get("end"))
	assert.Equal(t, string(domain.ResolutionMonthly), q.Get("resolution"))
	assert.Equal(t, string(domain.MergeFill), q.Get("policy"))
	assert.Equal(t, "Kenya", q.Get("region"))
	assert.Equal(t, "ken", q.Get("country"))

	req, err := httpadapter.ParseRequest(q)
	require.NoError(t, err, "the link is a valid dashboard query")
	assert.Equal(t, "2020-01-01..2020-02-29", req.Range.String())
}

func TestUnknownPathIs404(t *testing.T) {
	rec := get(newTestServer(t, &mockRenderer{}, nil), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr string
		check   func(t *testing.T, req pipeline.Request)
	}{
		{
			name:  "empty",
			query: "",
			check: func(t *testing.T, req pipeline.Request) {
				assert.Empty(t, req.Regions)
				assert.True(t, req.Range.Start.IsZero())
				assert.Empty(t, req.Resolution)
			},
		},
		{
			name:  "repeated regions",
			query: "region=Kenya&region=+Uganda+,,Rwanda",
			check: func(t *testing.T, req pipeline.Request) {
				assert.Equal(t, []string{"Kenya", "Uganda", "Rwanda"}, req.Regions)
			},
		},
		{name: "start without end", query: "start=2020-01-01", wantErr: "given together"},
		{name: "bad date", query: "start=2020-13-01&end=2020-12-31", wantErr: "start date"},
		{name: "reversed range", query: "start=2021-01-01&end=2020-12-31", wantErr: "before start"},
		{name: "bad policy", query: "policy=outer", wantErr: "merge policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			req, err := httpadapter.ParseRequest(q)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, req)
		})
	}
}
