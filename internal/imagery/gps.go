package imagery

import (
	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// GPSHint is a location embedded in a photo's EXIF block. It is shown
// alongside results but never used as a registry search key.
type GPSHint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ReadGPS returns the EXIF GPS position of data, or nil when the image has
// no EXIF block or no complete latitude/longitude pair.
func ReadGPS(data []byte) *GPSHint {
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return nil
	}

	var (
		lat, lon       float64
		hasLat, hasLon bool
		latRef, lonRef string
	)
	for _, entry := range entries {
		switch entry.TagName {
		case "GPSLatitude":
			lat, hasLat = degrees(entry.Value)
		case "GPSLongitude":
			lon, hasLon = degrees(entry.Value)
		case "GPSLatitudeRef":
			latRef, _ = entry.Value.(string)
		case "GPSLongitudeRef":
			lonRef, _ = entry.Value.(string)
		}
	}
	if !hasLat || !hasLon {
		return nil
	}

	if latRef == "S" {
		lat = -lat
	}
	if lonRef == "W" {
		lon = -lon
	}
	return &GPSHint{Lat: lat, Lon: lon}
}

// degrees converts a degrees/minutes/seconds rational triple.
func degrees(v any) (float64, bool) {
	dms, ok := v.([]exifcommon.Rational)
	if !ok || len(dms) != 3 {
		return 0, false
	}

	var parts [3]float64
	for i, r := range dms {
		if r.Denominator == 0 {
			return 0, false
		}
		parts[i] = float64(r.Numerator) / float64(r.Denominator)
	}
	return parts[0] + parts[1]/60 + parts[2]/3600, true
}
