package chirps

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

var kenya = domain.Region{Name: "Kenya", ISO3: "KEN", Lat: 0.5, Lon: 38}

// fakeServer simulates the three ClimateSERV endpoints. progress is
// returned one value per poll; the last value repeats.
type fakeServer struct {
	progress  []float64
	data      string
	submitErr error
	submitted url.Values
	polls     int
}

func (f *fakeServer) GetJSON(_ context.Context, raw string, dst any) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	var body string
	switch {
	case strings.HasSuffix(u.Path, "/submitDataRequest/"):
		if f.submitErr != nil {
			return f.submitErr
		}
		f.submitted = u.Query()
		body = `["job-1"]`
	case strings.HasSuffix(u.Path, "/getDataRequestProgress/"):
		i := min(f.polls, len(f.progress)-1)
		f.polls++
		b, _ := json.Marshal([]float64{f.progress[i]})
		body = string(b)
	case strings.HasSuffix(u.Path, "/getDataFromRequest/"):
		body = f.data
	default:
		return errors.New("unexpected path " + u.Path)
	}
	return json.Unmarshal([]byte(body), dst)
}

type staticAreas map[string]*geom.Polygon

func (s staticAreas) Area(name string) (*geom.Polygon, bool) {
	p, ok := s[name]
	return p, ok
}

func march(t *testing.T) domain.DateRange {
	t.Helper()
	dr, err := domain.ParseDateRange("2020-03-01", "2020-03-03")
	require.NoError(t, err)
	return dr
}

func TestFetchPrecipitation_CompletesJob(t *testing.T) {
	srv := &fakeServer{
		progress: []float64{10, 55, 100},
		data: `{"data":[
			{"date":"03/02/2020","value":{"avg":4.5}},
			{"date":"03/01/2020","value":{"avg":0}},
			{"date":"03/03/2020","value":{"avg":-9999}},
			{"date":"02/29/2020","value":{"avg":7}}
		]}`,
	}
	c := NewClient("https://cs.test/api", srv, nil, time.Millisecond, time.Second)

	recs, err := c.FetchPrecipitation(context.Background(), kenya, march(t))
	require.NoError(t, err)

	assert.Equal(t, 3, srv.polls)
	require.Len(t, recs, 2)
	assert.Equal(t, time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC), recs[0].Date)
	assert.InDelta(t, 0, recs[0].Rainfall, 1e-9)
	assert.InDelta(t, 4.5, recs[1].Rainfall, 1e-9)
	assert.Equal(t, "Kenya", recs[1].Region)

	assert.Equal(t, "0", srv.submitted.Get("datatype"))
	assert.Equal(t, "5", srv.submitted.Get("operationtype"))
	assert.Equal(t, "03/01/2020", srv.submitted.Get("begintime"))
	assert.Equal(t, "03/03/2020", srv.submitted.Get("endtime"))
	assert.Contains(t, srv.submitted.Get("geometry"), `"type":"Polygon"`)
	assert.Contains(t, srv.submitted.Get("geometry"), "[37.5,0]")
}

func TestFetchPrecipitation_UsesCatalogArea(t *testing.T) {
	area := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{34, -4}, {41, -4}, {41, 5}, {34, 5}, {34, -4},
	}})
	srv := &fakeServer{progress: []float64{100}, data: `{"data":[]}`}
	c := NewClient("https://cs.test/api", srv, staticAreas{"Kenya": area}, time.Millisecond, time.Second)

	_, err := c.FetchPrecipitation(context.Background(), kenya, march(t))
	require.NoError(t, err)
	assert.Contains(t, srv.submitted.Get("geometry"), "[41,5]")
}

func TestFetchPrecipitation_JobFailed(t *testing.T) {
	srv := &fakeServer{progress: []float64{20, -1}}
	c := NewClient("https://cs.test/api", srv, nil, time.Millisecond, time.Second)

	_, err := c.FetchPrecipitation(context.Background(), kenya, march(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "job job-1 failed")
}

func TestFetchPrecipitation_PollTimeout(t *testing.T) {
	srv := &fakeServer{progress: []float64{50}}
	c := NewClient("https://cs.test/api", srv, nil, time.Millisecond, 20*time.Millisecond)

	_, err := c.FetchPrecipitation(context.Background(), kenya, march(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not complete")
}

func TestFetchPrecipitation_SubmitError(t *testing.T) {
	srv := &fakeServer{submitErr: errors.New("chirps: unexpected status 503")}
	c := NewClient("https://cs.test/api", srv, nil, time.Millisecond, time.Second)

	_, err := c.FetchPrecipitation(context.Background(), kenya, march(t))
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "submit job")
}
