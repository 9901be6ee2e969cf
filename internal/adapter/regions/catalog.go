// Package regions loads administrative boundaries and resolves region names
// to the coordinates and country codes the providers are queried with.
package regions

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

//go:embed east_africa.geojson
var eastAfrica []byte

// Catalog is an immutable set of named regions with their boundaries.
type Catalog struct {
	regions []domain.Region
	shapes  map[string]geom.T
	byKey   map[string]int
}

// Load reads a FeatureCollection from path, or the embedded East Africa
// boundaries when path is empty.
func Load(path, nameProp, isoProp string) (*Catalog, error) {
	data := eastAfrica
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read regions: %w", err)
		}
		data = b
	}
	return Parse(data, nameProp, isoProp)
}

// Parse builds a Catalog from GeoJSON. Each feature needs a polygonal
// geometry and a string name property; the ISO property is optional.
// Features sharing a name are rejected.
func Parse(data []byte, nameProp, isoProp string) (*Catalog, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, errors.New("parse regions: no features")
	}

	c := &Catalog{
		shapes: make(map[string]geom.T, len(fc.Features)),
		byKey:  make(map[string]int, len(fc.Features)),
	}
	for i, f := range fc.Features {
		name, _ := f.Properties[nameProp].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("parse regions: feature %d has no %q property", i, nameProp)
		}
		key := normalize(name)
		if _, dup := c.shapes[key]; dup {
			return nil, fmt.Errorf("parse regions: duplicate region %q", name)
		}
		switch f.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
		default:
			return nil, fmt.Errorf("parse regions: %s: unsupported geometry %T", name, f.Geometry)
		}

		centroid, err := xy.Centroid(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("parse regions: %s: centroid: %w", name, err)
		}
		iso, _ := f.Properties[isoProp].(string)

		c.shapes[key] = f.Geometry
		c.regions = append(c.regions, domain.Region{
			Name: name,
			ISO3: strings.ToUpper(strings.TrimSpace(iso)),
			Lon:  centroid.X(),
			Lat:  centroid.Y(),
		})
	}

	sort.Slice(c.regions, func(i, j int) bool { return c.regions[i].Name < c.regions[j].Name })
	for i, r := range c.regions {
		c.byKey[normalize(r.Name)] = i
	}
	return c, nil
}

// Regions returns every region sorted by name.
func (c *Catalog) Regions() []domain.Region {
	return append([]domain.Region(nil), c.regions...)
}

// Lookup finds a region by name, ignoring case and surrounding space.
func (c *Catalog) Lookup(name string) (domain.Region, bool) {
	i, ok := c.byKey[normalize(name)]
	if !ok {
		return domain.Region{}, false
	}
	return c.regions[i], true
}

// Geometry returns the region's boundary.
func (c *Catalog) Geometry(name string) (geom.T, bool) {
	g, ok := c.shapes[normalize(name)]
	return g, ok
}

// Area returns the region's boundary as a single polygon. For multipart
// regions the largest part is used.
func (c *Catalog) Area(name string) (*geom.Polygon, bool) {
	switch g := c.shapes[normalize(name)].(type) {
	case *geom.Polygon:
		return g, true
	case *geom.MultiPolygon:
		var best *geom.Polygon
		for i := 0; i < g.NumPolygons(); i++ {
			if p := g.Polygon(i); best == nil || p.Area() > best.Area() {
				best = p
			}
		}
		return best, best != nil
	default:
		return nil, false
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
