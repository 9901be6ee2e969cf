// Package nasapower fetches near-surface temperature and precipitation from
// the NASA POWER point API.
package nasapower

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

const (
	paramTemperature = "T2M"
	paramRainfall    = "PRECTOTCORR"
	// paramRainfallLegacy is the pre-2021 name of the corrected precipitation.
	paramRainfallLegacy = "PRECTOT"

	defaultFillValue = -999.0
)

// Getter is the transport used by the client.
type Getter interface {
	GetJSON(ctx context.Context, url string, dst any) error
}

// Client queries the POWER temporal API.
type Client struct {
	baseURL   string
	community string
	http      Getter
}

// NewClient creates a Client. baseURL points at the "temporal" API root.
func NewClient(baseURL, community string, http Getter) *Client {
	return &Client{baseURL: baseURL, community: community, http: http}
}

type response struct {
	Header struct {
		FillValue *float64 `json:"fill_value"`
	} `json:"header"`
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
	Messages []string `json:"messages"`
}

// FetchClimate returns one record per period in dr for the region's
// coordinates. Daily and monthly resolutions use the matching POWER
// endpoint; filled values are returned as nil measurements.
func (c *Client) FetchClimate(ctx context.Context, region domain.Region, dr domain.DateRange, res domain.Resolution) ([]domain.ClimateRecord, error) {
	u, err := c.buildURL(region, dr, res)
	if err != nil {
		return nil, domain.NewSourceError(domain.SourceNASAPower, region.Name, err)
	}

	var body response
	if err := c.http.GetJSON(ctx, u, &body); err != nil {
		return nil, domain.NewSourceError(domain.SourceNASAPower, region.Name, err)
	}

	records, err := parse(body, region.Name, dr, res)
	if err != nil {
		return nil, domain.NewSourceError(domain.SourceNASAPower, region.Name, err)
	}
	return records, nil
}

func (c *Client) buildURL(region domain.Region, dr domain.DateRange, res domain.Resolution) (string, error) {
	var endpoint, start, end string
	switch res {
	case domain.ResolutionDaily:
		endpoint = "daily"
		start, end = dr.Start.Format("20060102"), dr.End.Format("20060102")
	case domain.ResolutionMonthly:
		endpoint = "monthly"
		start, end = strconv.Itoa(dr.Start.Year()), strconv.Itoa(dr.End.Year())
	default:
		return "", fmt.Errorf("unsupported resolution %q", res)
	}

	q := url.Values{}
	q.Set("parameters", paramTemperature+","+paramRainfall)
	q.Set("community", c.community)
	q.Set("latitude", strconv.FormatFloat(region.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(region.Lon, 'f', 4, 64))
	q.Set("start", start)
	q.Set("end", end)
	q.Set("format", "JSON")
	return fmt.Sprintf("%s/%s/point?%s", c.baseURL, endpoint, q.Encode()), nil
}

func parse(body response, region string, dr domain.DateRange, res domain.Resolution) ([]domain.ClimateRecord, error) {
	params := body.Properties.Parameter
	if params == nil {
		if len(body.Messages) > 0 {
			return nil, fmt.Errorf("no parameter data: %s", body.Messages[0])
		}
		return nil, errors.New("no parameter data in response")
	}
	temps := params[paramTemperature]
	rain, ok := params[paramRainfall]
	if !ok {
		rain = params[paramRainfallLegacy]
	}
	if temps == nil && rain == nil {
		return nil, fmt.Errorf("response has neither %s nor %s", paramTemperature, paramRainfall)
	}

	fill := defaultFillValue
	if body.Header.FillValue != nil {
		fill = *body.Header.FillValue
	}

	keys := make(map[string]struct{}, len(temps))
	for k := range temps {
		keys[k] = struct{}{}
	}
	for k := range rain {
		keys[k] = struct{}{}
	}

	records := make([]domain.ClimateRecord, 0, len(keys))
	for k := range keys {
		date, ok, err := parseKey(k, res)
		if err != nil {
			return nil, err
		}
		if !ok || !dr.Overlaps(date, res) {
			continue
		}
		records = append(records, domain.ClimateRecord{
			Region:      region,
			Date:        date,
			Temperature: measurement(temps, k, fill),
			Rainfall:    measurement(rain, k, fill),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

// parseKey decodes a YYYYMMDD or YYYYMM key. The monthly endpoint also
// returns an annual mean under month 13, which is skipped.
func parseKey(k string, res domain.Resolution) (time.Time, bool, error) {
	switch res {
	case domain.ResolutionDaily:
		t, err := time.Parse("20060102", k)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("bad date key %q: %w", k, err)
		}
		return t, true, nil
	default:
		if len(k) != 6 {
			return time.Time{}, false, fmt.Errorf("bad month key %q", k)
		}
		if k[4:] == "13" {
			return time.Time{}, false, nil
		}
		t, err := time.Parse("200601", k)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("bad month key %q: %w", k, err)
		}
		return t, true, nil
	}
}

func measurement(values map[string]float64, key string, fill float64) *float64 {
	v, ok := values[key]
	if !ok || v == fill {
		return nil
	}
	return domain.Float(v)
}
