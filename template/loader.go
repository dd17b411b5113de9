package template

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultTemplateName is the name of the built-in PRD template used when no
// template is requested or a requested one cannot be loaded.
const DefaultTemplateName = "prd"

// Load reads and validates a template from a YAML file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates template YAML.
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	// Document order is the section Order field; ties keep file order.
	sort.SliceStable(t.Sections, func(i, j int) bool {
		return t.Sections[i].Order < t.Sections[j].Order
	})
	return &t, nil
}

// Validate checks template invariants: a name, unique non-empty section
// keys, titles, and known phases.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	seen := make(map[string]bool, len(t.Sections))
	for i, s := range t.Sections {
		if s.Key == "" {
			return fmt.Errorf("section %d: key is required", i)
		}
		if seen[s.Key] {
			return fmt.Errorf("duplicate section key %q", s.Key)
		}
		seen[s.Key] = true
		if s.Title == "" {
			return fmt.Errorf("section %q: title is required", s.Key)
		}
		if s.Phase != "" {
			if _, ok := ParsePhase(string(s.Phase)); !ok {
				return fmt.Errorf("section %q: unknown phase %q", s.Key, s.Phase)
			}
		}
	}
	return nil
}

// DefaultTemplate returns the built-in PRD template. Callers fall back to it
// whenever a named template cannot be loaded, so a broken templates
// directory never fails a request.
func DefaultTemplate() *Template {
	return &Template{
		Name:    DefaultTemplateName,
		Version: "1",
		Sections: []Section{
			{
				Key:      "title",
				Title:    "Title",
				Required: true,
				Order:    1,
				Phase:    PhaseDiscovery,
				Hints:    []string{"A short, descriptive product or feature name"},
			},
			{
				Key:         "problem_statement",
				Title:       "Problem Statement",
				Description: "What problem is being solved and for whom",
				Required:    true,
				Order:       2,
				Phase:       PhaseDiscovery,
				Hints: []string{
					"Who is affected and how often",
					"What happens today without a solution",
				},
			},
			{
				Key:         "goals",
				Title:       "Goals",
				Description: "Measurable outcomes the product should achieve",
				Required:    true,
				Order:       3,
				Phase:       PhaseDiscovery,
				Hints:       []string{"Prefer measurable outcomes over feature lists"},
			},
			{
				Key:         "user_stories",
				Title:       "User Stories",
				Description: "As a <role>, I want <capability>, so that <benefit>",
				Required:    true,
				Order:       4,
				Phase:       PhaseRequirements,
				Hints:       []string{"One story per user role where possible"},
			},
			{
				Key:         "functional_requirements",
				Title:       "Functional Requirements",
				Description: "What the system must do",
				Required:    true,
				Order:       5,
				Phase:       PhaseRequirements,
			},
			{
				Key:         "nonfunctional_requirements",
				Title:       "Non-Functional Requirements",
				Description: "Performance, reliability, security, compliance",
				Required:    false,
				Order:       6,
				Phase:       PhaseTechnical,
			},
			{
				Key:         "technical_constraints",
				Title:       "Technical Constraints",
				Description: "Platforms, integrations, technology limits",
				Required:    false,
				Order:       7,
				Phase:       PhaseTechnical,
				Hints:       []string{"Existing systems this must integrate with"},
			},
			{
				Key:         "acceptance_criteria",
				Title:       "Acceptance Criteria",
				Description: "Verifiable conditions for calling the work done",
				Required:    true,
				Order:       8,
				Phase:       PhaseAcceptanceCriteria,
				Hints:       []string{"GIVEN/WHEN/THEN style where it fits"},
			},
			{
				Key:      "risks",
				Title:    "Risks",
				Required: false,
				Order:    9,
				Phase:    PhaseReview,
			},
			{
				Key:      "open_questions",
				Title:    "Open Questions",
				Required: false,
				Order:    10,
				Phase:    PhaseReview,
			},
		},
	}
}
