package model

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Vertex is a boundary point in (latitude, longitude) order.
type Vertex struct {
	Lat float64
	Lon float64
}

// MarshalJSON encodes the vertex as a [lat, lon] pair.
func (v Vertex) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{v.Lat, v.Lon})
}

// UnmarshalJSON decodes a [lat, lon] pair.
func (v *Vertex) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return eris.Wrap(err, "model: decode vertex")
	}
	v.Lat, v.Lon = pair[0], pair[1]
	return nil
}

// BoundaryRecord is the canonical form of one registry parcel match.
//
// Geometry keeps the GeoJSON [lon, lat] axis order of the upstream polygon
// (exterior ring only) while Vertices holds the same ring as (lat, lon).
// Both are set together or both are nil.
type BoundaryRecord struct {
	CanonicalID    string          `json:"canonical_id"`
	AssessorNumber string          `json:"assessor_number,omitempty"`
	Address        string          `json:"address,omitempty"`
	County         string          `json:"county,omitempty"`
	State          string          `json:"state,omitempty"`
	Geometry       *geom.Polygon   `json:"-"`
	Vertices       []Vertex        `json:"vertices,omitempty"`
	RawPayload     json.RawMessage `json:"-"`
}

// HasGeometry reports whether the record carries a polygon.
func (b *BoundaryRecord) HasGeometry() bool {
	return b != nil && b.Geometry != nil
}

// Closed reports whether the vertex ring forms a closed polygon: at least
// four vertices with the first equal to the last.
func (b *BoundaryRecord) Closed() bool {
	if b == nil || len(b.Vertices) < 4 {
		return false
	}
	return b.Vertices[0] == b.Vertices[len(b.Vertices)-1]
}

// Properties returns the flattened feature properties written alongside the
// geometry. Absent values are nil so they encode as JSON null.
func (b *BoundaryRecord) Properties() map[string]any {
	return map[string]any{
		"canonical_id":    nullable(b.CanonicalID),
		"assessor_number": nullable(b.AssessorNumber),
		"address":         nullable(b.Address),
		"county":          nullable(b.County),
		"state":           nullable(b.State),
	}
}

// Feature wraps the boundary as a GeoJSON feature.
func (b *BoundaryRecord) Feature() *geojson.Feature {
	f := &geojson.Feature{Properties: b.Properties()}
	if b.Geometry != nil {
		f.Geometry = b.Geometry
	}
	return f
}

// MarshalJSON adds the polygon as a GeoJSON geometry object.
func (b *BoundaryRecord) MarshalJSON() ([]byte, error) {
	type plain BoundaryRecord
	out := struct {
		*plain
		Geometry *geojson.Geometry `json:"geometry,omitempty"`
	}{plain: (*plain)(b)}

	if b.Geometry != nil {
		g, err := geojson.Encode(b.Geometry)
		if err != nil {
			return nil, eris.Wrap(err, "model: encode boundary geometry")
		}
		out.Geometry = g
	}
	return json.Marshal(out)
}

// NewExteriorPolygon builds a polygon from a single [lon, lat] ring. The
// coordinates are copied so the polygon shares no memory with the caller.
func NewExteriorPolygon(ring []geom.Coord) (*geom.Polygon, error) {
	coords := make([]geom.Coord, len(ring))
	for i, c := range ring {
		if len(c) < 2 {
			return nil, eris.Errorf("model: ring coordinate %d has %d dimensions", i, len(c))
		}
		coords[i] = geom.Coord{c[0], c[1]}
	}
	p, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
	if err != nil {
		return nil, eris.Wrap(err, "model: build polygon")
	}
	return p, nil
}

// VerticesFromPolygon mirrors the exterior ring into (lat, lon) order.
func VerticesFromPolygon(p *geom.Polygon) []Vertex {
	if p == nil || p.NumLinearRings() == 0 {
		return nil
	}
	ring := p.LinearRing(0)
	out := make([]Vertex, 0, ring.NumCoords())
	for i := 0; i < ring.NumCoords(); i++ {
		c := ring.Coord(i)
		out = append(out, Vertex{Lat: c.Y(), Lon: c.X()})
	}
	return out
}

// ClonePayload returns an independent copy of an upstream payload.
func ClonePayload(raw []byte) json.RawMessage {
	if raw == nil {
		return nil
	}
	return json.RawMessage(bytes.Clone(raw))
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
