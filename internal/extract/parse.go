// Package extract turns vision-model replies into parcel identifier records.
package extract

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
)

// KeyAliases lists, per record field, the reply keys accepted for it in
// priority order. Keys are matched case-insensitively.
type KeyAliases struct {
	AssessorNumber []string
	Address        []string
	County         []string
	State          []string
	Confidence     []string
}

// DefaultKeyAliases covers the prompt's own keys plus the spellings models
// drift to when they paraphrase the schema.
var DefaultKeyAliases = KeyAliases{
	AssessorNumber: []string{"apn", "assessor_number", "assessor_parcel_number", "parcel_number", "parcelnumb", "parcel_id"},
	Address:        []string{"address", "street_address", "situs_address", "site_address"},
	County:         []string{"county", "county_name"},
	State:          []string{"state", "state_abbrev", "state_code"},
	Confidence:     []string{"confidence"},
}

// Parse builds an IdentifierRecord from a model reply using DefaultKeyAliases.
// It never fails: text that does not hold a JSON object yields a record
// carrying only RawText.
func Parse(text string) model.IdentifierRecord {
	return ParseWith(text, DefaultKeyAliases)
}

// ParseWith is Parse with a custom alias table.
func ParseWith(text string, aliases KeyAliases) model.IdentifierRecord {
	rec := model.IdentifierRecord{RawText: text}

	// A Caser is stateful, so each parse gets its own.
	fold := cases.Fold()

	fields, ok := decodeObject(cleanJSON(text), fold)
	if !ok {
		return rec
	}

	rec.AssessorNumber = lookup(fields, aliases.AssessorNumber, fold)
	rec.Address = lookup(fields, aliases.Address, fold)
	rec.County = lookup(fields, aliases.County, fold)
	rec.State = lookup(fields, aliases.State, fold)
	rec.Confidence = lookup(fields, aliases.Confidence, fold)
	return rec
}

// cleanJSON strips a surrounding code fence (with any language tag) and
// narrows the text to its outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Drop the language tag, if any, up to the end of the opening line.
		if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.Contains(text[:nl], "{") {
			text = text[nl+1:]
		} else {
			text = strings.TrimLeft(text, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// decodeObject parses text as a single JSON object and indexes its members by
// case-folded key. When two spellings fold together the one sorting first
// wins.
func decodeObject(text string, fold cases.Caser) (map[string]any, bool) {
	if text == "" {
		return nil, false
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, false
	}

	fields := make(map[string]any, len(raw))
	for _, k := range slices.Sorted(maps.Keys(raw)) {
		key := fold.String(strings.TrimSpace(k))
		if _, dup := fields[key]; !dup {
			fields[key] = raw[k]
		}
	}
	return fields, true
}

func lookup(fields map[string]any, aliases []string, fold cases.Caser) string {
	for _, alias := range aliases {
		v, ok := fields[fold.String(alias)]
		if !ok {
			continue
		}
		if s := model.CoerceString(v); s != "" {
			return s
		}
	}
	return ""
}
