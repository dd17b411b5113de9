package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intakekit/intakekit/protocol"
	"github.com/intakekit/intakekit/template"
)

func TestDecode_ExtractionBlock(t *testing.T) {
	raw := `Thanks, that clarifies the problem.
---EXTRACTED---
[title]
Invoice Portal
[/title]
[problem_statement]
Finance staff re-key invoices by hand.
[/problem_statement]
---/EXTRACTED---`

	res := protocol.Decode(raw)

	require.Len(t, res.Fragments, 2)
	assert.Equal(t, "title", res.Fragments[0].Key)
	assert.Equal(t, "Invoice Portal", res.Fragments[0].Content)
	assert.Equal(t, "problem_statement", res.Fragments[1].Key)
	assert.Equal(t, "Finance staff re-key invoices by hand.", res.Fragments[1].Content)
	assert.Equal(t, "Thanks, that clarifies the problem.", res.Reply)
	assert.False(t, res.HasPhase)
}

func TestDecode_RoundTrip(t *testing.T) {
	fragments := []protocol.Fragment{
		{Key: "title", Content: "Invoice Portal"},
		{Key: "problem_statement", Content: "Manual re-keying wastes hours."},
	}
	raw := protocol.Encode("Got it.", fragments, template.PhaseRequirements)

	res := protocol.Decode(raw)

	assert.Equal(t, fragments, res.Fragments)
	assert.True(t, res.HasPhase)
	assert.Equal(t, template.PhaseRequirements, res.Phase)

	clean := protocol.CleanReplyText(raw)
	assert.Equal(t, "Got it.", clean)
	assert.NotContains(t, clean, protocol.ExtractStart)
	assert.NotContains(t, clean, protocol.ExtractEnd)
	assert.NotContains(t, clean, protocol.PhasePrefix)
}

func TestDecode_UnterminatedKeySkipped(t *testing.T) {
	raw := `Noted.
---EXTRACTED---
[user_story]
As an accountant I want bulk import.
[/user_story]
[risks]
this key never closes
---/EXTRACTED---`

	res := protocol.Decode(raw)

	require.Len(t, res.Fragments, 1)
	assert.Equal(t, "user_story", res.Fragments[0].Key)
}

func TestDecode_CloseTagInOpenPositionIsArtifact(t *testing.T) {
	// After an unterminated [a], the stray [/b] must not become a key.
	raw := `x
---EXTRACTED---
[a]
no close for a
[/b]
[c]
real content
[/c]
---/EXTRACTED---`

	res := protocol.Decode(raw)

	require.Len(t, res.Fragments, 1)
	assert.Equal(t, "c", res.Fragments[0].Key)
	assert.Equal(t, "real content", res.Fragments[0].Content)
}

func TestDecode_EmptyContentDropped(t *testing.T) {
	raw := `ok
---EXTRACTED---
[title]

[/title]
[goals]
Ship it.
[/goals]
---/EXTRACTED---`

	res := protocol.Decode(raw)

	require.Len(t, res.Fragments, 1)
	assert.Equal(t, "goals", res.Fragments[0].Key)
}

func TestDecode_NoBlock(t *testing.T) {
	res := protocol.Decode("Just a normal conversational reply.")
	assert.Empty(t, res.Fragments)
	assert.False(t, res.HasPhase)
	assert.Equal(t, "Just a normal conversational reply.", res.Reply)
}

func TestDecode_MissingEndMarker(t *testing.T) {
	raw := "reply\n---EXTRACTED---\n[title]\nX\n[/title]"

	res := protocol.Decode(raw)
	assert.Empty(t, res.Fragments)

	// The dangling block must still not leak to the user.
	assert.Equal(t, "reply", res.Reply)
}

func TestDecode_PhaseDirective(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     template.Phase
		hasPhase bool
	}{
		{"recognized", "done ---PHASE:Technical---", template.PhaseTechnical, true},
		{"case insensitive", "done ---PHASE:acceptancecriteria---", template.PhaseAcceptanceCriteria, true},
		{"unrecognized ignored", "done ---PHASE:Bogus---", "", false},
		{"first occurrence wins", "---PHASE:Review--- then ---PHASE:Discovery---", template.PhaseReview, true},
		{"whitespace tolerated", "---PHASE: Requirements ---", template.PhaseRequirements, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := protocol.Decode(tt.raw)
			assert.Equal(t, tt.hasPhase, res.HasPhase)
			assert.Equal(t, tt.want, res.Phase)
		})
	}
}

func TestCleanReplyText_RemovesOneDirective(t *testing.T) {
	raw := "before ---PHASE:Technical--- after"
	assert.Equal(t, "before  after", protocol.CleanReplyText(raw))
}

func TestCleanReplyText_MarkersBetweenText(t *testing.T) {
	raw := "intro\n---EXTRACTED---\n[k]\nv\n[/k]\n---/EXTRACTED---\noutro\n---PHASE:Review---"
	clean := protocol.CleanReplyText(raw)
	assert.Equal(t, "intro\n\noutro", clean)
}
