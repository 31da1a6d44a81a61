package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
)

func dolanBoundary(t *testing.T) *model.BoundaryRecord {
	t.Helper()
	poly, err := model.NewExteriorPolygon([]geom.Coord{
		{-122.8, 46.1}, {-122.799, 46.1}, {-122.799, 46.101}, {-122.8, 46.101}, {-122.8, 46.1},
	})
	require.NoError(t, err)
	return &model.BoundaryRecord{
		CanonicalID:    "324_DOLAN_RD",
		AssessorNumber: "123456789",
		Address:        "324 Dolan Rd",
		County:         "Cowlitz",
		State:          "WA",
		Geometry:       poly,
		Vertices:       model.VerticesFromPolygon(poly),
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"A/B:C", "A_B_C"},
		{`<a>"b"|c?*\d`, `_a__b__c___d`},
		{"  SKAMANIA_2006161255 ", "SKAMANIA_2006161255"},
		{"", "parcel"},
		{"   ", "parcel"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Stem(tt.in), "input %q", tt.in)
	}
}

func TestWriteGeoJSON(t *testing.T) {
	dir := t.TempDir()
	b := dolanBoundary(t)
	b.Address = ""

	path, err := WriteGeoJSON(dir, b)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "324_DOLAN_RD.geojson"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"", "pretty-printed")

	var doc struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string         `json:"type"`
			Coordinates [][][2]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Feature", doc.Type)
	assert.Equal(t, "Polygon", doc.Geometry.Type)
	require.Len(t, doc.Geometry.Coordinates, 1)
	assert.Equal(t, [2]float64{-122.8, 46.1}, doc.Geometry.Coordinates[0][0], "geometry stays lon-first")

	assert.Equal(t, "324_DOLAN_RD", doc.Properties["canonical_id"])
	assert.Equal(t, "123456789", doc.Properties["assessor_number"])
	assert.Contains(t, doc.Properties, "address")
	assert.Nil(t, doc.Properties["address"])
	assert.Equal(t, "WA", doc.Properties["state"])
}

func TestWriteVertexCSV(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteVertexCSV(dir, dolanBoundary(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "324_DOLAN_RD_vertices.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := strings.Join([]string{
		"lat,lon",
		"46.1,-122.8",
		"46.1,-122.799",
		"46.101,-122.799",
		"46.101,-122.8",
		"46.1,-122.8",
	}, "\n") + "\n"
	assert.Equal(t, want, string(data))
}

func TestNoGeometryRefused(t *testing.T) {
	dir := t.TempDir()
	b := &model.BoundaryRecord{CanonicalID: "EMPTY"}

	_, err := WriteGeoJSON(dir, b)
	assert.True(t, eris.Is(err, ErrNoGeometry))
	_, err = WriteVertexCSV(dir, b)
	assert.True(t, eris.Is(err, ErrNoGeometry))
	_, err = WriteShapefile(dir, b)
	assert.True(t, eris.Is(err, ErrNoGeometry))
	_, err = NewWriter(dir, true).Persist(b)
	assert.True(t, eris.Is(err, ErrNoGeometry))
	_, err = NewWriter(dir, false).Persist(nil)
	assert.True(t, eris.Is(err, ErrNoGeometry))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing written")
}

func TestWriter_Persist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	b := dolanBoundary(t)
	b.CanonicalID = "COWLITZ/324:DOLAN"

	paths, err := NewWriter(dir, false).Persist(b)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "COWLITZ_324_DOLAN.geojson"),
		filepath.Join(dir, "COWLITZ_324_DOLAN_vertices.csv"),
	}, paths)
	for _, p := range paths {
		assert.FileExists(t, p)
	}
}

func TestWriter_PersistWithShapefile(t *testing.T) {
	dir := t.TempDir()

	paths, err := NewWriter(dir, true).Persist(dolanBoundary(t))
	require.NoError(t, err)
	require.Len(t, paths, 6)
	for _, p := range paths {
		assert.FileExists(t, p)
	}
	assert.Contains(t, paths, filepath.Join(dir, "324_DOLAN_RD.dbf"))
	assert.NoFileExists(t, filepath.Join(dir, "324_DOLAN_RDdbf"))

	reader, err := shp.Open(filepath.Join(dir, "324_DOLAN_RD.shp"))
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	attrs := map[string]int{}
	for i, f := range reader.Fields() {
		attrs[strings.TrimRight(f.String(), "\x00")] = i
	}

	require.True(t, reader.Next())
	_, shape := reader.Shape()
	poly, ok := shape.(*shp.Polygon)
	require.True(t, ok)
	require.Len(t, poly.Points, 5)
	assert.Equal(t, shp.Point{X: -122.8, Y: 46.1}, poly.Points[0])
	assert.Equal(t, shp.Point{X: -122.8, Y: 46.101}, poly.Points[1], "outer ring written clockwise")

	attr := func(name string) string {
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(attrs[name]), "\x00"))
	}
	assert.Equal(t, "324_DOLAN_RD", attr("CANON_ID"))
	assert.Equal(t, "Cowlitz", attr("COUNTY"))
	assert.False(t, reader.Next())

	prj, err := os.ReadFile(filepath.Join(dir, "324_DOLAN_RD.prj"))
	require.NoError(t, err)
	assert.Contains(t, string(prj), "WGS_1984")
}

func TestShapefileRing_KeepsClockwise(t *testing.T) {
	cw := []model.Vertex{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 0}, {Lat: 1, Lon: 1}, {Lat: 0, Lon: 1}, {Lat: 0, Lon: 0}}
	pts := shapefileRing(cw)
	assert.Equal(t, shp.Point{X: 0, Y: 1}, pts[1])
	assert.Less(t, signedArea(pts), 0.0)
}

func TestWriteMapPayload(t *testing.T) {
	b := dolanBoundary(t)
	results := []model.ParcelResult{
		model.Succeeded(0, model.IdentifierRecord{Address: "324 Dolan Rd"}, b, nil),
		model.NotFound(1, model.IdentifierRecord{}),
	}

	path := filepath.Join(t.TempDir(), "out", MapFile)
	require.NoError(t, WriteMapPayload(path, model.BuildMapPayload(results)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
		Center   []float64         `json:"center"`
		Bounds   [][2]float64      `json:"bounds"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	assert.Len(t, doc.Features, 1)
	require.Len(t, doc.Center, 2)
	assert.InDelta(t, 46.1005, doc.Center[0], 1e-9)
	assert.InDelta(t, -122.7995, doc.Center[1], 1e-9)
	assert.Len(t, doc.Bounds, 5)
}
