package registry

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
)

// ErrMalformedPayload is returned when a registry body cannot be decoded.
var ErrMalformedPayload = eris.New("registry: malformed upstream payload")

type featureCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

type feature struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// Normalize converts a registry response into a BoundaryRecord. Only the
// first feature of the "parcels" collection is used. It returns nil, nil when
// the payload holds no parcel feature.
//
// A feature whose geometry is missing or not a Polygon yields a record
// without Geometry or Vertices.
func Normalize(payload []byte, searchKey string, aliases AliasTable) (*model.BoundaryRecord, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, eris.Wrapf(ErrMalformedPayload, "decode envelope: %v", err)
	}

	rawParcels, ok := envelope["parcels"]
	if !ok {
		zap.L().Debug("registry: response has no parcels collection",
			zap.String("search_key", searchKey),
			zap.Int("keys", len(envelope)),
		)
		return nil, nil
	}

	var fc featureCollection
	if err := json.Unmarshal(rawParcels, &fc); err != nil || fc.Type != "FeatureCollection" {
		zap.L().Debug("registry: parcels is not a FeatureCollection", zap.String("search_key", searchKey))
		return nil, nil
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}
	if len(fc.Features) > 1 {
		zap.L().Debug("registry: multiple parcel matches, using the first",
			zap.String("search_key", searchKey),
			zap.Int("matches", len(fc.Features)),
		)
	}

	var f feature
	dec := json.NewDecoder(bytes.NewReader(fc.Features[0]))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return nil, eris.Wrapf(ErrMalformedPayload, "decode feature: %v", err)
	}

	props := propertySet{f.Properties}
	if nested, ok := f.Properties["fields"].(map[string]any); ok {
		props = append(props, nested)
	}

	rec := &model.BoundaryRecord{
		AssessorNumber: props.first(aliases.AssessorNumber),
		Address:        props.first(aliases.Address),
		County:         props.first(aliases.County),
		State:          props.first(aliases.State),
		RawPayload:     model.ClonePayload(payload),
	}
	rec.CanonicalID = canonicalID(props.first(aliases.CanonicalID), rec.AssessorNumber, searchKey)

	poly, err := exteriorPolygon(f.Geometry)
	if err != nil {
		return nil, err
	}
	if poly != nil {
		rec.Geometry = poly
		rec.Vertices = model.VerticesFromPolygon(poly)
	}

	return rec, nil
}

// exteriorPolygon decodes a GeoJSON geometry and keeps only the exterior
// ring of a Polygon. Other geometry types return nil.
func exteriorPolygon(raw json.RawMessage) (*geom.Polygon, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrapf(ErrMalformedPayload, "decode geometry: %v", err)
	}

	p, ok := g.(*geom.Polygon)
	if !ok || p.NumLinearRings() == 0 {
		zap.L().Debug("registry: feature geometry is not a polygon")
		return nil, nil
	}

	ring := p.LinearRing(0)
	coords := make([]geom.Coord, ring.NumCoords())
	for i := range coords {
		coords[i] = ring.Coord(i)
	}
	poly, err := model.NewExteriorPolygon(coords)
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedPayload, "%v", err)
	}
	return poly, nil
}

// canonicalID picks the registry id, then the assessor number, then a
// placeholder derived from the search key.
func canonicalID(registryID, assessorNumber, searchKey string) string {
	if registryID != "" {
		return registryID
	}
	if assessorNumber != "" {
		return assessorNumber
	}
	return "parcel_" + slug(searchKey)
}

func slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return "unknown"
	}
	return out
}
