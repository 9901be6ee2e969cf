package whogho

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

var kenya = domain.Region{Name: "Kenya", ISO3: "KEN", Lat: 0.18, Lon: 37.9}

// fakeGetter serves a canned JSON body through the same decoding path as
// the real transport.
type fakeGetter struct {
	body    string
	err     error
	gotURLs []string
}

func (f *fakeGetter) GetJSON(_ context.Context, u string, dst any) error {
	f.gotURLs = append(f.gotURLs, u)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.body), dst)
}

func dateRange(t *testing.T, start, end string) domain.DateRange {
	t.Helper()
	dr, err := domain.ParseDateRange(start, end)
	require.NoError(t, err)
	return dr
}

func TestFetchHealth_AnnualRecords(t *testing.T) {
	g := &fakeGetter{body: `{"value":[
		{"SpatialDim":"KEN","TimeDimType":"YEAR","TimeDim":2020,"Dim1":"SEX_MLE","NumericValue":400},
		{"SpatialDim":"KEN","TimeDimType":"YEAR","TimeDim":2020,"Dim1":"SEX_BTSX","NumericValue":1200},
		{"SpatialDim":"KEN","TimeDimType":"YEAR","TimeDim":2019,"Dim1":null,"NumericValue":900},
		{"SpatialDim":"KEN","TimeDimType":"YEAR","TimeDim":2018,"NumericValue":null},
		{"SpatialDim":"UGA","TimeDimType":"YEAR","TimeDim":2020,"NumericValue":77}
	]}`}
	c := NewClient("https://gho.test/api", "WHS3_48", "malaria", g)

	recs, err := c.FetchHealth(context.Background(), kenya, dateRange(t, "2018-06-01", "2020-12-31"))
	require.NoError(t, err)

	require.Len(t, recs, 2)
	assert.Equal(t, time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC), recs[0].Date)
	assert.InDelta(t, 900, recs[0].CaseCount, 1e-9)
	assert.Equal(t, domain.ResolutionAnnual, recs[1].Coverage)
	assert.InDelta(t, 1200, recs[1].CaseCount, 1e-9, "both-sexes value preferred")
	assert.Equal(t, "malaria", recs[1].Disease)
	assert.Equal(t, "Kenya", recs[1].Region)

	require.Len(t, g.gotURLs, 1)
	assert.Equal(t,
		"https://gho.test/api/WHS3_48?%24filter=SpatialDim+eq+%27KEN%27+and+TimeDim+ge+2018+and+TimeDim+le+2020",
		g.gotURLs[0])
}

func TestFetchHealth_SourceUnavailable(t *testing.T) {
	c := NewClient("https://gho.test/api", "WHS3_48", "malaria", &fakeGetter{err: errors.New("dial tcp: connection refused")})

	_, err := c.FetchHealth(context.Background(), kenya, dateRange(t, "2020-01-01", "2020-12-31"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFetchHealth_MissingValueArray(t *testing.T) {
	c := NewClient("https://gho.test/api", "WHS3_48", "malaria", &fakeGetter{body: `{"error":"gone"}`})

	_, err := c.FetchHealth(context.Background(), kenya, dateRange(t, "2020-01-01", "2020-12-31"))
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestFetchHealth_EmptyResultIsNotAnError(t *testing.T) {
	c := NewClient("https://gho.test/api", "WHS3_48", "malaria", &fakeGetter{body: `{"value":[]}`})

	recs, err := c.FetchHealth(context.Background(), kenya, dateRange(t, "2020-01-01", "2020-12-31"))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFetchHealth_RegionWithoutISO(t *testing.T) {
	c := NewClient("https://gho.test/api", "WHS3_48", "malaria", &fakeGetter{})

	_, err := c.FetchHealth(context.Background(), domain.Region{Name: "Atlantis"}, dateRange(t, "2020-01-01", "2020-12-31"))
	require.ErrorIs(t, err, domain.ErrUnknownRegion)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}
