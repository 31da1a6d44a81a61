// Package artifact writes per-parcel output files and the batch map payload.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
)

// ErrNoGeometry is returned when asked to persist a boundary without a polygon.
var ErrNoGeometry = eris.New("artifact: boundary has no geometry")

// MapFile is the name of the batch map payload written next to the artifacts.
const MapFile = "map.json"

var stemReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_",
	`\`, "_", "|", "_", "?", "_", "*", "_",
)

// Stem derives the file-name stem for a canonical id: characters illegal in
// file names become underscores and surrounding whitespace is trimmed.
func Stem(canonicalID string) string {
	stem := strings.TrimSpace(stemReplacer.Replace(canonicalID))
	if stem == "" {
		return "parcel"
	}
	return stem
}

// WriteGeoJSON writes b as a pretty-printed GeoJSON Feature to
// dir/<stem>.geojson and returns the path.
func WriteGeoJSON(dir string, b *model.BoundaryRecord) (string, error) {
	if !b.HasGeometry() {
		return "", ErrNoGeometry
	}

	data, err := json.MarshalIndent(b.Feature(), "", "  ")
	if err != nil {
		return "", eris.Wrapf(err, "artifact: encode geojson for %s", b.CanonicalID)
	}

	path := filepath.Join(dir, Stem(b.CanonicalID)+".geojson")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // output artifacts are world-readable
		return "", eris.Wrapf(err, "artifact: write %s", path)
	}
	return path, nil
}

// WriteVertexCSV writes the boundary vertices, latitude first, to
// dir/<stem>_vertices.csv and returns the path.
func WriteVertexCSV(dir string, b *model.BoundaryRecord) (string, error) {
	if !b.HasGeometry() {
		return "", ErrNoGeometry
	}

	path := filepath.Join(dir, Stem(b.CanonicalID)+"_vertices.csv")
	f, err := os.Create(path) //nolint:gosec // path built from sanitized stem
	if err != nil {
		return "", eris.Wrapf(err, "artifact: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write([]string{"lat", "lon"}); err != nil {
		return "", eris.Wrapf(err, "artifact: write %s", path)
	}
	for _, v := range b.Vertices {
		row := []string{
			strconv.FormatFloat(v.Lat, 'f', -1, 64),
			strconv.FormatFloat(v.Lon, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return "", eris.Wrapf(err, "artifact: write %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrapf(err, "artifact: flush %s", path)
	}
	return path, nil
}

// WriteMapPayload writes the map-display document to path.
func WriteMapPayload(path string, payload model.MapPayload) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return eris.Wrap(err, "artifact: encode map payload")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // output directory
		return eris.Wrapf(err, "artifact: create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // output artifacts are world-readable
		return eris.Wrapf(err, "artifact: write %s", path)
	}
	return nil
}

// Writer persists boundaries under Dir.
type Writer struct {
	Dir       string
	Shapefile bool
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, shapefile bool) *Writer {
	return &Writer{Dir: dir, Shapefile: shapefile}
}

// Persist writes the GeoJSON and vertex CSV for b, plus a shapefile when
// enabled, and returns the written paths. The files are written one after
// another; a failure part way leaves the earlier files in place.
func (w *Writer) Persist(b *model.BoundaryRecord) ([]string, error) {
	if !b.HasGeometry() {
		return nil, ErrNoGeometry
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil { //nolint:gosec // output directory
		return nil, eris.Wrapf(err, "artifact: create %s", w.Dir)
	}

	var paths []string

	gj, err := WriteGeoJSON(w.Dir, b)
	if err != nil {
		return paths, err
	}
	paths = append(paths, gj)

	csvPath, err := WriteVertexCSV(w.Dir, b)
	if err != nil {
		return paths, err
	}
	paths = append(paths, csvPath)

	if w.Shapefile {
		shpPaths, err := WriteShapefile(w.Dir, b)
		if err != nil {
			return paths, err
		}
		paths = append(paths, shpPaths...)
	}

	zap.L().Debug("artifact: boundary persisted",
		zap.String("canonical_id", b.CanonicalID),
		zap.Strings("paths", paths),
	)
	return paths, nil
}
