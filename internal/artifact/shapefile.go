package artifact

import (
	"os"
	"path/filepath"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
)

// wgs84PRJ is the ESRI WKT for EPSG:4326.
const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// shapefileFields are the dBase attribute columns, at most 10 characters each.
var shapefileFields = []shp.Field{
	shp.StringField("CANON_ID", 64),
	shp.StringField("APN", 32),
	shp.StringField("ADDRESS", 128),
	shp.StringField("COUNTY", 64),
	shp.StringField("STATE", 16),
}

// WriteShapefile writes b as a single-record polygon shapefile at
// dir/<stem>.shp (with .shx, .dbf and .prj siblings) and returns the paths.
func WriteShapefile(dir string, b *model.BoundaryRecord) ([]string, error) {
	if !b.HasGeometry() {
		return nil, ErrNoGeometry
	}

	base := filepath.Join(dir, Stem(b.CanonicalID))
	w, err := shp.Create(base+".shp", shp.POLYGON)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: create shapefile %s", base)
	}

	if err := w.SetFields(shapefileFields); err != nil {
		w.Close()
		return nil, eris.Wrapf(err, "artifact: set shapefile fields %s", base)
	}

	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{shapefileRing(b.Vertices)}))
	row := int(w.Write(&poly))

	attrs := []string{b.CanonicalID, b.AssessorNumber, b.Address, b.County, b.State}
	for i, v := range attrs {
		if err := w.WriteAttribute(row, i, v); err != nil {
			w.Close()
			return nil, eris.Wrapf(err, "artifact: write shapefile attribute %s", shapefileFields[i].String())
		}
	}
	w.Close()

	// go-shp names the attribute table "<base>dbf" without the dot.
	if err := fixDBFName(base); err != nil {
		return nil, err
	}

	if err := os.WriteFile(base+".prj", []byte(wgs84PRJ), 0o644); err != nil { //nolint:gosec // output artifacts are world-readable
		return nil, eris.Wrapf(err, "artifact: write %s.prj", base)
	}

	return []string{base + ".shp", base + ".shx", base + ".dbf", base + ".prj"}, nil
}

func fixDBFName(base string) error {
	if _, err := os.Stat(base + ".dbf"); err == nil {
		return nil
	}
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrapf(err, "artifact: rename %sdbf", base)
	}
	return nil
}

// shapefileRing converts vertices to shapefile points. Shapefile outer rings
// run clockwise, so a counter-clockwise ring is reversed.
func shapefileRing(vertices []model.Vertex) []shp.Point {
	pts := make([]shp.Point, len(vertices))
	for i, v := range vertices {
		pts[i] = shp.Point{X: v.Lon, Y: v.Lat}
	}
	if signedArea(pts) > 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	return pts
}

// signedArea is positive for counter-clockwise rings.
func signedArea(pts []shp.Point) float64 {
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}
