package extract

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
)

// ErrInvalidCoordinates is returned for input that is not "lat,lon".
var ErrInvalidCoordinates = eris.New("extract: invalid coordinates, expected lat,lon")

// ParseCoordinates builds an identifier record from "lat,lon" text. The
// position becomes an address-style search string.
func ParseCoordinates(text string) (model.IdentifierRecord, error) {
	parts := strings.Split(strings.TrimSpace(text), ",")
	if len(parts) != 2 {
		return model.IdentifierRecord{}, eris.Wrapf(ErrInvalidCoordinates, "got %q", text)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.IdentifierRecord{}, eris.Wrapf(ErrInvalidCoordinates, "latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.IdentifierRecord{}, eris.Wrapf(ErrInvalidCoordinates, "longitude %q", parts[1])
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return model.IdentifierRecord{}, eris.Wrapf(ErrInvalidCoordinates, "out of range: %v, %v", lat, lon)
	}

	pos := fmt.Sprintf("%s, %s", formatCoord(lat), formatCoord(lon))
	return model.IdentifierRecord{
		Address: "Coordinates: " + pos,
		RawText: "Processed coordinates: " + pos,
	}, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
