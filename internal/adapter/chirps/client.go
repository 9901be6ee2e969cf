// Package chirps fetches CHIRPS daily rainfall through the ClimateSERV job
// API: a request is submitted for a polygon, polled until complete, then
// downloaded as an area-averaged series.
package chirps

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

const (
	datasetCHIRPS    = "0"
	operationAverage = "5"
	intervalDaily    = "0"

	dateLayout = "01/02/2006"

	// missingValue marks days with no coverage in ClimateSERV output.
	missingValue = -9999.0

	// boxHalfWidth is the half side, in degrees, of the query square used
	// when a region has no boundary polygon.
	boxHalfWidth = 0.5
)

var errJobPending = errors.New("climateserv job pending")

// Getter is the transport used by the client.
type Getter interface {
	GetJSON(ctx context.Context, url string, dst any) error
}

// AreaSource supplies boundary polygons for named regions.
type AreaSource interface {
	Area(name string) (*geom.Polygon, bool)
}

// Client runs ClimateSERV CHIRPS jobs.
type Client struct {
	baseURL      string
	http         Getter
	areas        AreaSource
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewClient creates a Client. areas may be nil, in which case every query
// uses a square around the region's coordinates.
func NewClient(baseURL string, http Getter, areas AreaSource, pollInterval, pollTimeout time.Duration) *Client {
	return &Client{
		baseURL:      baseURL,
		http:         http,
		areas:        areas,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
	}
}

type dataResponse struct {
	Data []struct {
		Date  string `json:"date"`
		Value struct {
			Avg *float64 `json:"avg"`
		} `json:"value"`
	} `json:"data"`
}

// FetchPrecipitation returns daily area-mean rainfall for the region over dr.
func (c *Client) FetchPrecipitation(ctx context.Context, region domain.Region, dr domain.DateRange) ([]domain.PrecipitationRecord, error) {
	jobID, err := c.submit(ctx, region, dr)
	if err != nil {
		return nil, domain.NewSourceError(domain.SourceCHIRPS, region.Name, err)
	}
	if err := c.wait(ctx, jobID); err != nil {
		return nil, domain.NewSourceError(domain.SourceCHIRPS, region.Name, err)
	}

	var body dataResponse
	u := c.baseURL + "/getDataFromRequest/?" + url.Values{"id": {jobID}}.Encode()
	if err := c.http.GetJSON(ctx, u, &body); err != nil {
		return nil, domain.NewSourceError(domain.SourceCHIRPS, region.Name, err)
	}

	records := make([]domain.PrecipitationRecord, 0, len(body.Data))
	for _, d := range body.Data {
		if d.Value.Avg == nil || *d.Value.Avg == missingValue {
			continue
		}
		date, err := time.Parse(dateLayout, d.Date)
		if err != nil {
			return nil, domain.NewSourceError(domain.SourceCHIRPS, region.Name, fmt.Errorf("bad date %q: %w", d.Date, err))
		}
		if !dr.Contains(date) {
			continue
		}
		records = append(records, domain.PrecipitationRecord{Region: region.Name, Date: date, Rainfall: *d.Value.Avg})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (c *Client) submit(ctx context.Context, region domain.Region, dr domain.DateRange) (string, error) {
	geometry, err := geojson.Marshal(c.area(region))
	if err != nil {
		return "", fmt.Errorf("encode geometry: %w", err)
	}
	q := url.Values{}
	q.Set("datatype", datasetCHIRPS)
	q.Set("operationtype", operationAverage)
	q.Set("intervaltype", intervalDaily)
	q.Set("begintime", dr.Start.Format(dateLayout))
	q.Set("endtime", dr.End.Format(dateLayout))
	q.Set("geometry", string(geometry))

	var ids []string
	if err := c.http.GetJSON(ctx, c.baseURL+"/submitDataRequest/?"+q.Encode(), &ids); err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	if len(ids) == 0 || ids[0] == "" {
		return "", errors.New("submit job: no job id returned")
	}
	return ids[0], nil
}

// wait polls job progress until it reaches 100. A progress of -1 means the
// job failed server-side.
func (c *Client) wait(ctx context.Context, jobID string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.pollInterval
	bo.MaxInterval = 4 * c.pollInterval
	bo.MaxElapsedTime = c.pollTimeout

	u := c.baseURL + "/getDataRequestProgress/?" + url.Values{"id": {jobID}}.Encode()
	op := func() error {
		var progress []float64
		if err := c.http.GetJSON(ctx, u, &progress); err != nil {
			return backoff.Permanent(fmt.Errorf("poll job %s: %w", jobID, err))
		}
		if len(progress) == 0 {
			return backoff.Permanent(fmt.Errorf("poll job %s: empty progress", jobID))
		}
		switch p := progress[0]; {
		case p < 0:
			return backoff.Permanent(fmt.Errorf("job %s failed", jobID))
		case p < 100:
			return errJobPending
		default:
			return nil
		}
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if errors.Is(err, errJobPending) {
			return fmt.Errorf("job %s not complete after %s", jobID, c.pollTimeout)
		}
		return err
	}
	return nil
}

func (c *Client) area(region domain.Region) *geom.Polygon {
	if c.areas != nil {
		if p, ok := c.areas.Area(region.Name); ok {
			return p
		}
	}
	minX, maxX := region.Lon-boxHalfWidth, region.Lon+boxHalfWidth
	minY, maxY := region.Lat-boxHalfWidth, region.Lat+boxHalfWidth
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
}
