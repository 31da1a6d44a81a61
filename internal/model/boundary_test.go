package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func dolanRing() []geom.Coord {
	return []geom.Coord{
		{-122.8, 46.1},
		{-122.799, 46.1},
		{-122.799, 46.101},
		{-122.8, 46.101},
		{-122.8, 46.1},
	}
}

func TestVerticesFromPolygon_SwapsAxisOrder(t *testing.T) {
	poly, err := NewExteriorPolygon(dolanRing())
	require.NoError(t, err)

	vertices := VerticesFromPolygon(poly)
	require.Len(t, vertices, 5)

	ring := poly.LinearRing(0)
	for i, v := range vertices {
		c := ring.Coord(i)
		assert.Equal(t, c.Y(), v.Lat, "vertex %d lat", i)
		assert.Equal(t, c.X(), v.Lon, "vertex %d lon", i)
	}
	assert.Equal(t, Vertex{Lat: 46.1, Lon: -122.8}, vertices[0])
}

func TestVerticesFromPolygon_Nil(t *testing.T) {
	assert.Nil(t, VerticesFromPolygon(nil))
}

func TestNewExteriorPolygon_CopiesInput(t *testing.T) {
	ring := dolanRing()
	poly, err := NewExteriorPolygon(ring)
	require.NoError(t, err)

	ring[0][0] = 0
	assert.Equal(t, -122.8, poly.LinearRing(0).Coord(0).X())
}

func TestNewExteriorPolygon_DropsExtraDimensions(t *testing.T) {
	poly, err := NewExteriorPolygon([]geom.Coord{{1, 2, 9}, {3, 4, 9}, {5, 6, 9}, {1, 2, 9}})
	require.NoError(t, err)
	assert.Equal(t, geom.XY, poly.Layout())
}

func TestNewExteriorPolygon_RejectsShortCoordinate(t *testing.T) {
	_, err := NewExteriorPolygon([]geom.Coord{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestBoundaryRecord_Closed(t *testing.T) {
	poly, err := NewExteriorPolygon(dolanRing())
	require.NoError(t, err)

	closed := &BoundaryRecord{Geometry: poly, Vertices: VerticesFromPolygon(poly)}
	assert.True(t, closed.Closed())

	open := &BoundaryRecord{Vertices: []Vertex{{1, 2}, {3, 4}, {5, 6}, {7, 8}}}
	assert.False(t, open.Closed())

	short := &BoundaryRecord{Vertices: []Vertex{{1, 2}, {3, 4}, {1, 2}}}
	assert.False(t, short.Closed())

	var nilRecord *BoundaryRecord
	assert.False(t, nilRecord.Closed())
	assert.False(t, nilRecord.HasGeometry())
}

func TestBoundaryRecord_PropertiesUseNullForMissing(t *testing.T) {
	b := &BoundaryRecord{CanonicalID: "SKAMANIA_2006161255", AssessorNumber: "2006161255"}
	props := b.Properties()

	assert.Equal(t, "SKAMANIA_2006161255", props["canonical_id"])
	assert.Equal(t, "2006161255", props["assessor_number"])
	assert.Nil(t, props["address"])
	assert.Contains(t, props, "county")
	assert.Contains(t, props, "state")
}

func TestBoundaryRecord_MarshalJSON(t *testing.T) {
	poly, err := NewExteriorPolygon(dolanRing())
	require.NoError(t, err)

	b := &BoundaryRecord{
		CanonicalID: "324_DOLAN_RD",
		Address:     "324 Dolan Rd",
		Geometry:    poly,
		Vertices:    VerticesFromPolygon(poly),
		RawPayload:  json.RawMessage(`{"parcels":{}}`),
	}

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "324_DOLAN_RD", decoded["canonical_id"])
	assert.NotContains(t, decoded, "raw_payload")

	geometry, ok := decoded["geometry"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Polygon", geometry["type"])

	vertices, ok := decoded["vertices"].([]any)
	require.True(t, ok)
	require.Len(t, vertices, 5)
	assert.Equal(t, []any{46.1, -122.8}, vertices[0])
}

func TestVertex_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Vertex{Lat: 45.8, Lon: -121.5})
	require.NoError(t, err)
	assert.JSONEq(t, `[45.8,-121.5]`, string(data))

	var v Vertex
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, Vertex{Lat: 45.8, Lon: -121.5}, v)

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &v))
}

func TestClonePayload(t *testing.T) {
	src := []byte(`{"a":1}`)
	cp := ClonePayload(src)
	src[2] = 'b'
	assert.Equal(t, `{"a":1}`, string(cp))
	assert.Nil(t, ClonePayload(nil))
}
