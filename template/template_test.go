package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intakekit/intakekit/template"
)

func TestPhaseOrder(t *testing.T) {
	require.Len(t, template.PhaseOrder, 5)
	assert.Equal(t, template.PhaseDiscovery, template.PhaseOrder[0])
	assert.Equal(t, template.PhaseReview, template.FinalPhase())

	assert.Equal(t, 0, template.PhaseDiscovery.Index())
	assert.Equal(t, 2, template.PhaseTechnical.Index())
	assert.Equal(t, 4, template.PhaseReview.Index())
	assert.Equal(t, -1, template.Phase("Bogus").Index())
}

func TestParsePhase(t *testing.T) {
	p, ok := template.ParsePhase("technical")
	require.True(t, ok)
	assert.Equal(t, template.PhaseTechnical, p)

	p, ok = template.ParsePhase("  Review ")
	require.True(t, ok)
	assert.Equal(t, template.PhaseReview, p)

	_, ok = template.ParsePhase("Implementation")
	assert.False(t, ok)
}

func TestParse_SortsByOrderStable(t *testing.T) {
	data := []byte(`
name: demo
version: "1"
sections:
  - key: second
    title: Second
    order: 2
  - key: first
    title: First
    order: 1
  - key: also_second
    title: Also Second
    order: 2
`)
	tmpl, err := template.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "also_second"}, tmpl.Keys())
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "sections: []"},
		{"duplicate key", "name: x\nsections:\n  - {key: a, title: A}\n  - {key: a, title: B}"},
		{"empty key", "name: x\nsections:\n  - {title: A}"},
		{"missing title", "name: x\nsections:\n  - {key: a}"},
		{"unknown phase", "name: x\nsections:\n  - {key: a, title: A, phase: Shipping}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := template.Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDefaultTemplate(t *testing.T) {
	tmpl := template.DefaultTemplate()
	require.NoError(t, tmpl.Validate())

	s, ok := tmpl.SectionByKey("problem_statement")
	require.True(t, ok)
	assert.True(t, s.Required)
	assert.Equal(t, 2.0, s.Weight())

	discovery := tmpl.SectionsForPhase(template.PhaseDiscovery)
	assert.NotEmpty(t, discovery)
	for _, s := range discovery {
		assert.Equal(t, template.PhaseDiscovery, s.Phase)
	}

	assert.NotEmpty(t, tmpl.RequiredSections())
}
