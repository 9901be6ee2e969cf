// Package whogho fetches country-level health indicators from the WHO Global
// Health Observatory OData API.
package whogho

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

// Getter is the transport used by the client.
type Getter interface {
	GetJSON(ctx context.Context, url string, dst any) error
}

// Client reads one GHO indicator.
type Client struct {
	baseURL   string
	indicator string
	disease   string
	http      Getter
}

// NewClient creates a Client for the given indicator code. disease labels
// the records it returns.
func NewClient(baseURL, indicator, disease string, http Getter) *Client {
	return &Client{baseURL: baseURL, indicator: indicator, disease: disease, http: http}
}

type fact struct {
	SpatialDim   string   `json:"SpatialDim"`
	TimeDimType  string   `json:"TimeDimType"`
	TimeDim      int      `json:"TimeDim"`
	Dim1         *string  `json:"Dim1"`
	NumericValue *float64 `json:"NumericValue"`
}

type response struct {
	Value []fact `json:"value"`
}

// FetchHealth returns one annual record per reported year overlapping dr.
// When a year is stratified, the both-sexes or unstratified value is used.
func (c *Client) FetchHealth(ctx context.Context, region domain.Region, dr domain.DateRange) ([]domain.HealthRecord, error) {
	if region.ISO3 == "" {
		return nil, domain.NewSourceError(domain.SourceWHOGHO, region.Name,
			fmt.Errorf("region has no ISO3 code: %w", domain.ErrUnknownRegion))
	}

	var body response
	if err := c.http.GetJSON(ctx, c.buildURL(region.ISO3, dr), &body); err != nil {
		return nil, domain.NewSourceError(domain.SourceWHOGHO, region.Name, err)
	}
	if body.Value == nil {
		return nil, domain.NewSourceError(domain.SourceWHOGHO, region.Name, errors.New("response has no value array"))
	}

	byYear := make(map[int]fact)
	for _, f := range body.Value {
		if f.NumericValue == nil || !strings.EqualFold(f.SpatialDim, region.ISO3) {
			continue
		}
		if f.TimeDimType != "" && !strings.EqualFold(f.TimeDimType, "YEAR") {
			continue
		}
		prev, seen := byYear[f.TimeDim]
		if !seen || (!aggregate(prev) && aggregate(f)) {
			byYear[f.TimeDim] = f
		}
	}

	records := make([]domain.HealthRecord, 0, len(byYear))
	for year, f := range byYear {
		date := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		if !dr.Overlaps(date, domain.ResolutionAnnual) {
			continue
		}
		records = append(records, domain.HealthRecord{
			Region:    region.Name,
			Date:      date,
			Coverage:  domain.ResolutionAnnual,
			Disease:   c.disease,
			CaseCount: *f.NumericValue,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (c *Client) buildURL(iso3 string, dr domain.DateRange) string {
	filter := fmt.Sprintf("SpatialDim eq '%s' and TimeDim ge %d and TimeDim le %d",
		strings.ToUpper(iso3), dr.Start.Year(), dr.End.Year())
	q := url.Values{}
	q.Set("$filter", filter)
	return fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(c.indicator), q.Encode())
}

// aggregate reports whether a fact is the unstratified or both-sexes value.
func aggregate(f fact) bool {
	if f.Dim1 == nil || *f.Dim1 == "" {
		return true
	}
	d := strings.ToUpper(*f.Dim1)
	return d == "BTSX" || d == "SEX_BTSX"
}
