// Package template defines the document template model: the ordered catalog
// of sections an interview is trying to fill, and the canonical interview
// phases sections are mapped to.
package template

import "strings"

// Phase identifies one stage of the interview.
type Phase string

// Interview phases. The canonical ordering lives in PhaseOrder; these
// constants only name the members.
const (
	PhaseDiscovery          Phase = "Discovery"
	PhaseRequirements       Phase = "Requirements"
	PhaseTechnical          Phase = "Technical"
	PhaseAcceptanceCriteria Phase = "AcceptanceCriteria"
	PhaseReview             Phase = "Review"
)

// PhaseOrder is the canonical progression of interview phases. The phase
// bonus in completion scoring and the "final phase" completeness check both
// depend on this sequence, so it is exported rather than left implicit in
// declaration order.
var PhaseOrder = []Phase{
	PhaseDiscovery,
	PhaseRequirements,
	PhaseTechnical,
	PhaseAcceptanceCriteria,
	PhaseReview,
}

// FinalPhase returns the last phase in the canonical ordering.
func FinalPhase() Phase {
	return PhaseOrder[len(PhaseOrder)-1]
}

// Index returns the 0-based rank of p in PhaseOrder, or -1 if p is not a
// known phase.
func (p Phase) Index() int {
	for i, candidate := range PhaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// ParsePhase matches name against the known phases case-insensitively.
// Unrecognized names return ("", false).
func ParsePhase(name string) (Phase, bool) {
	name = strings.TrimSpace(name)
	for _, p := range PhaseOrder {
		if strings.EqualFold(string(p), name) {
			return p, true
		}
	}
	return "", false
}

// Section describes one slot of the target document.
type Section struct {
	// Key uniquely identifies the section within its template and is the
	// vocabulary the model uses in extraction blocks.
	Key         string `yaml:"key"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	// Order defines document ordering; ties keep file order.
	Order int      `yaml:"order"`
	Phase Phase    `yaml:"phase"`
	Hints []string `yaml:"hints"`
}

// Weight returns the section's weight in completion scoring.
func (s Section) Weight() float64 {
	if s.Required {
		return 2.0
	}
	return 1.0
}

// Template is an immutable, ordered catalog of document sections.
type Template struct {
	Name     string    `yaml:"name"`
	Version  string    `yaml:"version"`
	Sections []Section `yaml:"sections"`
}

// SectionByKey returns the section with the given key.
func (t *Template) SectionByKey(key string) (Section, bool) {
	for _, s := range t.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

// RequiredSections returns the required sections in document order.
func (t *Template) RequiredSections() []Section {
	var out []Section
	for _, s := range t.Sections {
		if s.Required {
			out = append(out, s)
		}
	}
	return out
}

// SectionsForPhase returns the sections mapped to the given phase, in
// document order.
func (t *Template) SectionsForPhase(phase Phase) []Section {
	var out []Section
	for _, s := range t.Sections {
		if s.Phase == phase {
			out = append(out, s)
		}
	}
	return out
}

// Keys returns every section key in document order.
func (t *Template) Keys() []string {
	keys := make([]string, 0, len(t.Sections))
	for _, s := range t.Sections {
		keys = append(keys, s.Key)
	}
	return keys
}
