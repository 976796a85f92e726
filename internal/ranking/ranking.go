// Package ranking provides the static authority and jurisdiction precedence
// tables used by the resolution strategies. A Hierarchy is built once at
// resolver construction time and is read-only afterwards, so it is safe to
// share across goroutines.
package ranking

import (
	"strings"

	"normlex/pkg/types"
)

// Hierarchy maps issuing bodies and jurisdictions to precedence levels.
type Hierarchy struct {
	authorities map[string]uint8
}

// defaultAuthorities is the built-in precedence ladder for known issuing
// bodies. Lookups are case-insensitive; unknown authorities rank 0.
func defaultAuthorities() map[string]uint8 {
	return map[string]uint8{
		"constitutional court":     10,
		"supreme court":            9,
		"federal legislature":      8,
		"national regulator":       7,
		"state court":              6,
		"state legislature":        5,
		"regulatory agency":        4,
		"local government":         3,
		"municipal council":        2,
		"professional association": 1,
	}
}

// NewHierarchy builds a hierarchy with the default authority table.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{authorities: defaultAuthorities()}
}

// WithAuthority returns a copy of the hierarchy with an additional (or
// overridden) authority level. Intended for ingestion callers that know
// about issuing bodies outside the default ladder.
func (h *Hierarchy) WithAuthority(name string, level uint8) *Hierarchy {
	out := &Hierarchy{authorities: make(map[string]uint8, len(h.authorities)+1)}
	for k, v := range h.authorities {
		out.authorities[k] = v
	}
	out.authorities[strings.ToLower(strings.TrimSpace(name))] = level
	return out
}

// AuthorityLevel returns the precedence level for an issuing body name.
// Total function: unknown authorities resolve to 0.
func (h *Hierarchy) AuthorityLevel(name string) uint8 {
	return h.authorities[strings.ToLower(strings.TrimSpace(name))]
}

// JurisdictionLevel returns the precedence level for a jurisdiction.
// Total function: invalid jurisdictions resolve to 0.
func (h *Hierarchy) JurisdictionLevel(j types.Jurisdiction) uint8 {
	switch j {
	case types.JurisdictionInternational:
		return 10
	case types.JurisdictionFederal:
		return 8
	case types.JurisdictionState:
		return 6
	case types.JurisdictionRegional:
		return 4
	case types.JurisdictionSectoral:
		return 3
	case types.JurisdictionLocal:
		return 2
	case types.JurisdictionOrganizational, types.JurisdictionDepartmental:
		return 1
	default:
		return 0
	}
}
