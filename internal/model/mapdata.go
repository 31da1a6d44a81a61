package model

import (
	"github.com/twpayne/go-geom/encoding/geojson"
)

// MapPayload is the map-display document consumed by the web front-end.
// Center and Bounds are in (lat, lon) order.
type MapPayload struct {
	Type     string             `json:"type"`
	Features []*geojson.Feature `json:"features"`
	Center   *[2]float64        `json:"center"`
	Bounds   [][2]float64       `json:"bounds"`
}

// BuildMapPayload derives the map document from successful results. The
// center is the midpoint of the min/max latitude and longitude over every
// vertex of every successful boundary; it is nil when there are none.
func BuildMapPayload(results []ParcelResult) MapPayload {
	payload := MapPayload{
		Type:     "FeatureCollection",
		Features: []*geojson.Feature{},
		Bounds:   [][2]float64{},
	}

	for _, r := range results {
		if r.Outcome != OutcomeSuccess || !r.Boundary.HasGeometry() {
			continue
		}
		payload.Features = append(payload.Features, r.Boundary.Feature())
		for _, v := range r.Boundary.Vertices {
			payload.Bounds = append(payload.Bounds, [2]float64{v.Lat, v.Lon})
		}
	}

	if len(payload.Bounds) == 0 {
		return payload
	}

	minLat, maxLat := payload.Bounds[0][0], payload.Bounds[0][0]
	minLon, maxLon := payload.Bounds[0][1], payload.Bounds[0][1]
	for _, p := range payload.Bounds[1:] {
		minLat = min(minLat, p[0])
		maxLat = max(maxLat, p[0])
		minLon = min(minLon, p[1])
		maxLon = max(maxLon, p[1])
	}
	payload.Center = &[2]float64{(minLat + maxLat) / 2, (minLon + maxLon) / 2}

	return payload
}
