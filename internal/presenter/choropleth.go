package presenter

import (
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

// Boundaries supplies region shapes for the risk map.
type Boundaries interface {
	Regions() []domain.Region
	Geometry(name string) (geom.T, bool)
}

// Choropleth builds a GeoJSON FeatureCollection with one feature per
// catalog region, keyed by region name. Regions in latest carry their
// risk_index; the rest have a null one. Rendered regions missing from the
// catalog, such as geocoded places, are added as points.
func Choropleth(b Boundaries, rendered []domain.Region, latest map[string]*float64) (json.RawMessage, error) {
	fc := geojson.FeatureCollection{}
	seen := make(map[string]bool)

	if b != nil {
		for _, r := range b.Regions() {
			g, ok := b.Geometry(r.Name)
			if !ok {
				continue
			}
			seen[r.Name] = true
			fc.Features = append(fc.Features, feature(r, g, latest[r.Name]))
		}
	}
	for _, r := range rendered {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		pt := geom.NewPointFlat(geom.XY, []float64{r.Lon, r.Lat})
		fc.Features = append(fc.Features, feature(r, pt, latest[r.Name]))
	}

	if fc.Features == nil {
		fc.Features = []*geojson.Feature{}
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, fmt.Errorf("marshal choropleth: %w", err)
	}
	return data, nil
}

func feature(r domain.Region, g geom.T, risk *float64) *geojson.Feature {
	props := map[string]interface{}{
		"name":       r.Name,
		"risk_index": nil,
	}
	if r.ISO3 != "" {
		props["iso3"] = r.ISO3
	}
	if risk != nil {
		props["risk_index"] = *risk
	}
	return &geojson.Feature{ID: r.Name, Geometry: g, Properties: props}
}

// latestRisk returns each region's risk index at its most recent row that
// has one. Rows are sorted by region and date.
func latestRisk(rows []domain.MergedRow, risk []*float64) map[string]*float64 {
	out := make(map[string]*float64)
	for i, r := range rows {
		if risk[i] != nil {
			out[r.Region] = risk[i]
		}
	}
	return out
}
