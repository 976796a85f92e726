// Package types provides the core data structures for the normative
// conflict resolution engine: regulatory frameworks, their requirements,
// detected conflicts and resolution results.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Jurisdiction represents the territorial or organizational reach of a
// normative framework.
type Jurisdiction string

const (
	// JurisdictionInternational covers treaties and cross-border instruments
	JurisdictionInternational Jurisdiction = "international"
	// JurisdictionFederal covers national-level law
	JurisdictionFederal Jurisdiction = "federal"
	// JurisdictionState covers state or province level law
	JurisdictionState Jurisdiction = "state"
	// JurisdictionRegional covers multi-municipality regions
	JurisdictionRegional Jurisdiction = "regional"
	// JurisdictionLocal covers municipal ordinances
	JurisdictionLocal Jurisdiction = "local"
	// JurisdictionSectoral covers industry-specific regulation
	JurisdictionSectoral Jurisdiction = "sectoral"
	// JurisdictionOrganizational covers company-wide policy
	JurisdictionOrganizational Jurisdiction = "organizational"
	// JurisdictionDepartmental covers policy scoped to a single department
	JurisdictionDepartmental Jurisdiction = "departmental"
)

// Valid returns true if the jurisdiction is valid
func (j Jurisdiction) Valid() bool {
	switch j {
	case JurisdictionInternational, JurisdictionFederal, JurisdictionState,
		JurisdictionRegional, JurisdictionLocal, JurisdictionSectoral,
		JurisdictionOrganizational, JurisdictionDepartmental:
		return true
	}
	return false
}

// Requirement is a single obligation within a framework. Two requirements
// describe the same obligation when their categories match exactly and the
// similarity between their descriptions exceeds the configured threshold.
type Requirement struct {
	ID              string   `json:"id"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	Conditions      []string `json:"conditions"`
	ValidationRules []string `json:"validation_rules"`
}

// Clone returns a deep copy of the requirement.
func (r Requirement) Clone() Requirement {
	out := r
	out.Conditions = append([]string(nil), r.Conditions...)
	out.ValidationRules = append([]string(nil), r.ValidationRules...)
	return out
}

// Framework status metadata values recognized by IsActive.
const (
	StatusRepealed = "repealed"
	StatusInactive = "inactive"
)

// MetadataKeyStatus is the metadata key carrying the lifecycle status of a
// framework.
const MetadataKeyStatus = "status"

// NormativeFramework represents a regulatory instrument (law, standard,
// directive) as structured data. Frameworks are created by ingestion
// components; the resolution engine only ever clones and mutates copies.
type NormativeFramework struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Authority     string            `json:"authority"`
	Jurisdiction  Jurisdiction      `json:"jurisdiction"`
	Requirements  []Requirement     `json:"requirements"`
	Tags          []string          `json:"tags"`
	Metadata      map[string]string `json:"metadata"`
	EffectiveDate time.Time         `json:"effective_date"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewFramework creates a framework with a generated ID and both timestamps
// set to now.
func NewFramework(title, authority string, jurisdiction Jurisdiction) NormativeFramework {
	now := time.Now().UTC()
	return NormativeFramework{
		ID:            uuid.New().String(),
		Title:         title,
		Authority:     authority,
		Jurisdiction:  jurisdiction,
		Requirements:  []Requirement{},
		Tags:          []string{},
		Metadata:      map[string]string{},
		EffectiveDate: now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy of the framework. Strategies that produce
// merged or annotated results clone rather than mutate their inputs.
func (f NormativeFramework) Clone() NormativeFramework {
	out := f
	out.Requirements = make([]Requirement, len(f.Requirements))
	for i := range f.Requirements {
		out.Requirements[i] = f.Requirements[i].Clone()
	}
	out.Tags = append([]string(nil), f.Tags...)
	out.Metadata = make(map[string]string, len(f.Metadata))
	for k, v := range f.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// IsActive reports whether the framework is in force at the given time:
// its effective date is not in the future and it has not been marked
// repealed or inactive.
func (f *NormativeFramework) IsActive(now time.Time) bool {
	if f.EffectiveDate.After(now) {
		return false
	}
	switch f.Metadata[MetadataKeyStatus] {
	case StatusRepealed, StatusInactive:
		return false
	}
	return true
}

// Validate checks structural invariants on a framework supplied by an
// external caller.
func (f *NormativeFramework) Validate() error {
	if f.ID == "" {
		return ErrMissingID
	}
	if f.Title == "" {
		return ErrMissingTitle
	}
	if !f.Jurisdiction.Valid() {
		return ErrInvalidJurisdiction
	}
	return nil
}
