package registry

import (
	"context"
	_ "embed"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
	"github.com/HansenHomeAI/RegridParcelBoundaries/pkg/regrid"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// FixtureParcel is one catalog entry. Ring holds [lon, lat] pairs.
type FixtureParcel struct {
	Key      string      `yaml:"key"`
	ParcelID string      `yaml:"parcel_id"`
	APN      string      `yaml:"apn"`
	Address  string      `yaml:"address"`
	County   string      `yaml:"county"`
	State    string      `yaml:"state"`
	Ring     [][]float64 `yaml:"ring"`
}

// Catalog is the fixture data set.
type Catalog struct {
	Parcels []FixtureParcel `yaml:"parcels"`
}

// DefaultCatalog returns the built-in demo catalog.
func DefaultCatalog() (Catalog, error) {
	return parseCatalog(defaultCatalog)
}

// LoadCatalog reads a YAML (or JSON) catalog file.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied fixture path
	if err != nil {
		return Catalog{}, eris.Wrap(err, "registry: read catalog fixture")
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, eris.Wrap(err, "registry: unmarshal catalog fixture")
	}
	for i, p := range c.Parcels {
		if p.Key == "" {
			return Catalog{}, eris.Errorf("registry: catalog parcel %d has no key", i)
		}
		if len(p.Ring) < 4 {
			return Catalog{}, eris.Errorf("registry: catalog parcel %q ring has %d points, need at least 4", p.Key, len(p.Ring))
		}
		for j, pt := range p.Ring {
			if len(pt) < 2 {
				return Catalog{}, eris.Errorf("registry: catalog parcel %q point %d is not [lon, lat]", p.Key, j)
			}
		}
	}
	return c, nil
}

// FixtureSource serves registry responses from an in-memory catalog. It
// ignores scope and matches case-insensitively on address and APN.
type FixtureSource struct {
	catalog Catalog
}

// NewFixtureSource creates a FixtureSource over c.
func NewFixtureSource(c Catalog) *FixtureSource {
	return &FixtureSource{catalog: c}
}

// ByNumber implements Source.
func (s *FixtureSource) ByNumber(ctx context.Context, number string, _ regrid.Scope) ([]byte, error) {
	return s.respond(ctx, number)
}

// ByAddress implements Source.
func (s *FixtureSource) ByAddress(ctx context.Context, address string, _ regrid.Scope) ([]byte, error) {
	return s.respond(ctx, address)
}

func (s *FixtureSource) respond(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "registry: fixture lookup")
	}

	p, ok := s.match(key)
	if !ok {
		zap.L().Debug("registry: fixture miss", zap.String("key", key))
		return emptyResponse()
	}
	return parcelResponse(p)
}

// match tries an exact key first, then the first parcel whose address or APN
// contains the key, and only then the first whose address contains any word
// of it.
func (s *FixtureSource) match(key string) (FixtureParcel, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return FixtureParcel{}, false
	}

	for _, p := range s.catalog.Parcels {
		if p.Key == key {
			return p, true
		}
	}

	fold := cases.Fold()
	needle := fold.String(key)
	words := strings.Fields(needle)
	for _, p := range s.catalog.Parcels {
		if strings.Contains(fold.String(p.Address), needle) || strings.Contains(fold.String(p.APN), needle) {
			return p, true
		}
	}
	for _, p := range s.catalog.Parcels {
		addr := fold.String(p.Address)
		for _, w := range words {
			if addr != "" && strings.Contains(addr, w) {
				return p, true
			}
		}
	}
	return FixtureParcel{}, false
}

func emptyCollection() *geojson.FeatureCollection {
	return &geojson.FeatureCollection{Features: []*geojson.Feature{}}
}

func emptyResponse() ([]byte, error) {
	return marshalResponse(emptyCollection())
}

func parcelResponse(p FixtureParcel) ([]byte, error) {
	ring := make([]geom.Coord, len(p.Ring))
	for i, pt := range p.Ring {
		ring[i] = geom.Coord{pt[0], pt[1]}
	}
	poly, err := model.NewExteriorPolygon(ring)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: fixture parcel %q", p.Key)
	}

	parcels := &geojson.FeatureCollection{Features: []*geojson.Feature{{
		Geometry: poly,
		Properties: map[string]any{
			"parcel_id": p.ParcelID,
			"apn":       p.APN,
			"address":   p.Address,
			"county":    p.County,
			"state":     p.State,
		},
	}}}
	return marshalResponse(parcels)
}

func marshalResponse(parcels *geojson.FeatureCollection) ([]byte, error) {
	out, err := json.Marshal(map[string]*geojson.FeatureCollection{
		"parcels":   parcels,
		"buildings": emptyCollection(),
		"zoning":    emptyCollection(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "registry: marshal fixture response")
	}
	return out, nil
}
