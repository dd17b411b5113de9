// Package prompts builds the system prompts that instruct the interview
// model, including the exact extraction-block grammar the protocol package
// decodes.
package prompts

import (
	"fmt"
	"strings"

	"github.com/intakekit/intakekit/completion"
	"github.com/intakekit/intakekit/protocol"
	"github.com/intakekit/intakekit/template"
)

// Interview returns the system prompt for one interview turn. It is rebuilt
// fresh each turn: the still-missing required sections, the sections mapped
// to the current phase, and the full key catalog all depend on accumulated
// state.
func Interview(t *template.Template, phase template.Phase, data map[string]string, projectContext string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`You are a product requirements interviewer. You are conducting a structured interview to fill in a "%s" document, one conversational turn at a time.

Current interview phase: %s

`, t.Name, phase))

	if projectContext != "" {
		sb.WriteString("## Project Context\n\n")
		sb.WriteString(projectContext)
		sb.WriteString("\n\n")
	}

	writePhaseFocus(&sb, t, phase)
	writeMissing(&sb, t, data)
	writeProtocol(&sb, t)

	return sb.String()
}

// writePhaseFocus lists the sections mapped to the current phase, with their
// hints, so the model knows what to probe for right now.
func writePhaseFocus(sb *strings.Builder, t *template.Template, phase template.Phase) {
	sections := t.SectionsForPhase(phase)
	if len(sections) == 0 {
		return
	}

	sb.WriteString("## Focus For This Phase\n\n")
	for _, s := range sections {
		sb.WriteString(fmt.Sprintf("- **%s** (`%s`)", s.Title, s.Key))
		if s.Description != "" {
			sb.WriteString(": " + s.Description)
		}
		sb.WriteString("\n")
		for _, hint := range s.Hints {
			sb.WriteString("  - " + hint + "\n")
		}
	}
	sb.WriteString("\n")
}

// writeMissing enumerates the required sections still unfilled, in document
// order.
func writeMissing(sb *strings.Builder, t *template.Template, data map[string]string) {
	var missing []template.Section
	for _, s := range t.RequiredSections() {
		if !completion.Filled(data, s.Key) {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		sb.WriteString("All required sections are filled. Confirm the content with the user, refine detail where it is thin, and steer the interview toward review.\n\n")
		return
	}

	sb.WriteString("## Still Missing (required)\n\n")
	for _, s := range missing {
		sb.WriteString("- " + s.Title + "\n")
	}
	sb.WriteString("\n")
}

// writeProtocol emits the reply-format instructions, including the marker
// grammar reproduced exactly as the decoder expects it, and the full catalog
// of valid section keys.
func writeProtocol(sb *strings.Builder, t *template.Template) {
	sb.WriteString(fmt.Sprintf(`## Reply Format

Reply conversationally to the user. Then, when the conversation surfaced content for any document section, append an extraction block in EXACTLY this format:

%s
[section_key]
content...
[/section_key]
[section_key2]
content...
[/section_key2]
%s

Rules:
- Use ONLY keys from the valid key list below.
- Include a key only when you have real content for it; never emit empty entries.
- Extract cumulatively: repeat the full known content for a section, not just the latest delta.
- To move the interview to another phase, append a directive on its own line: %sPhaseName--- (valid names: %s).

Valid section keys: %s
`,
		protocol.ExtractStart,
		protocol.ExtractEnd,
		protocol.PhasePrefix,
		phaseNames(),
		strings.Join(t.Keys(), ", ")))
}

func phaseNames() string {
	names := make([]string, len(template.PhaseOrder))
	for i, p := range template.PhaseOrder {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
