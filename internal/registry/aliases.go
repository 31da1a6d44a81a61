package registry

import "github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"

// AliasTable lists, per boundary field, the upstream property names that may
// carry it. The first name holding a non-empty value wins.
type AliasTable struct {
	CanonicalID    []string `yaml:"canonical_id"`
	AssessorNumber []string `yaml:"assessor_number"`
	Address        []string `yaml:"address"`
	County         []string `yaml:"county"`
	State          []string `yaml:"state"`
}

// DefaultAliases covers the property names seen across Regrid data vintages.
var DefaultAliases = AliasTable{
	CanonicalID:    []string{"parcel_id", "id", "ll_uuid"},
	AssessorNumber: []string{"apn", "parcelnumb", "parcelnumb_no_formatting"},
	Address:        []string{"address", "mail_address", "situs_address"},
	County:         []string{"county", "county_name"},
	State:          []string{"state", "state_abbrev", "state2"},
}

// propertySet is the property bags of one feature, searched in order.
type propertySet []map[string]any

func (ps propertySet) first(names []string) string {
	for _, name := range names {
		for _, props := range ps {
			if v, ok := props[name]; ok {
				if s := model.CoerceString(v); s != "" {
					return s
				}
			}
		}
	}
	return ""
}
