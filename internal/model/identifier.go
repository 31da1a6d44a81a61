package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// IdentifierRecord holds the parcel identifiers read from one inference
// response. Empty typed fields mean the value was not found; RawText always
// carries the text the record was built from.
type IdentifierRecord struct {
	AssessorNumber string `json:"assessor_number,omitempty"`
	Address        string `json:"address,omitempty"`
	County         string `json:"county,omitempty"`
	State          string `json:"state,omitempty"`
	Confidence     string `json:"confidence,omitempty"`
	RawText        string `json:"raw_text"`
}

// HasSearchKey reports whether the record carries an assessor number or an
// address, the only two fields the registry can be searched by.
func (r IdentifierRecord) HasSearchKey() bool {
	return r.AssessorNumber != "" || r.Address != ""
}

// CoerceString converts a decoded JSON scalar into its string form. Blank
// strings, the literal "null", nil, objects and arrays all become "".
func CoerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(val)
		if strings.EqualFold(s, "null") {
			return ""
		}
		return s
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
