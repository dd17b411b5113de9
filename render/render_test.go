package render_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intakekit/intakekit/render"
	"github.com/intakekit/intakekit/template"
)

func testTemplate() *template.Template {
	return &template.Template{
		Name: "prd",
		Sections: []template.Section{
			{Key: "title", Title: "Title", Required: true, Phase: template.PhaseDiscovery},
			{Key: "problem_statement", Title: "Problem Statement", Required: true, Phase: template.PhaseDiscovery},
			{Key: "risks", Title: "Risks", Required: false, Phase: template.PhaseTechnical},
		},
	}
}

func TestRender_FullDocument(t *testing.T) {
	data := map[string]string{
		"title":             "Invoice Portal",
		"problem_statement": "Finance re-keys invoices by hand.",
		"risks":             "Vendor API churn.",
	}

	res := render.Render(data, testTemplate())

	assert.True(t, strings.HasPrefix(res.Markdown, "# Invoice Portal\n\n"))
	assert.Contains(t, res.Markdown, "## Problem Statement\n\nFinance re-keys invoices by hand.\n")
	assert.Contains(t, res.Markdown, "## Risks\n\nVendor API churn.\n")

	// Section fragments mirror the markdown; title is the heading, not a
	// fragment.
	assert.NotContains(t, res.Sections, "title")
	assert.Equal(t, "## Risks\n\nVendor API churn.\n", res.Sections["risks"])
}

func TestRender_MissingRequiredGetsPlaceholder(t *testing.T) {
	res := render.Render(map[string]string{"title": "X"}, testTemplate())

	assert.Contains(t, res.Markdown, "## Problem Statement\n\n_Not provided._\n")
	// Missing optional sections are omitted entirely.
	assert.NotContains(t, res.Markdown, "## Risks")
	assert.NotContains(t, res.Sections, "risks")
}

func TestRender_EmptyTitleFallsBackToTemplateName(t *testing.T) {
	res := render.Render(nil, testTemplate())
	assert.True(t, strings.HasPrefix(res.Markdown, "# prd\n\n"))
	assert.Contains(t, res.HTML, "<title>prd</title>")
}

func TestRender_HTMLEscapesContent(t *testing.T) {
	data := map[string]string{
		"title":             "A <b>bold</b> plan",
		"problem_statement": "Users & admins\ndisagree.\n\nSecond paragraph.",
	}

	res := render.Render(data, testTemplate())

	assert.Contains(t, res.HTML, "<h1>A &lt;b&gt;bold&lt;/b&gt; plan</h1>")
	assert.Contains(t, res.HTML, "<p>Users &amp; admins<br>\ndisagree.</p>")
	assert.Contains(t, res.HTML, "<p>Second paragraph.</p>")
	assert.NotContains(t, res.HTML, "<b>bold</b>")

	// Markdown keeps raw content untouched.
	assert.Contains(t, res.Markdown, "A <b>bold</b> plan")
}

func TestRender_CompletionDelegate(t *testing.T) {
	tmpl := testTemplate()
	score, missing := render.Completion(map[string]string{"title": "X"}, tmpl)

	// title filled: 2 of 5 weighted points.
	assert.InDelta(t, 40.0, score, 0.001)
	require.Len(t, missing, 1)
	assert.Equal(t, "Problem Statement", missing[0])
}
