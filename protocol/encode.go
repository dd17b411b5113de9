package protocol

import (
	"strings"

	"github.com/intakekit/intakekit/template"
)

// Encode renders a reply in the wire format the model is instructed to emit:
// visible text, then an extraction block for the given fragments, then a
// phase directive. Empty fragments and an empty phase are omitted. Used by
// tests and the mock provider; production replies come from the model.
func Encode(reply string, fragments []Fragment, phase template.Phase) string {
	var sb strings.Builder
	sb.WriteString(reply)

	if len(fragments) > 0 {
		sb.WriteString("\n")
		sb.WriteString(ExtractStart)
		sb.WriteString("\n")
		for _, f := range fragments {
			sb.WriteString("[" + f.Key + "]\n")
			sb.WriteString(f.Content)
			sb.WriteString("\n[/" + f.Key + "]\n")
		}
		sb.WriteString(ExtractEnd)
	}

	if phase != "" {
		sb.WriteString("\n")
		sb.WriteString(PhasePrefix)
		sb.WriteString(string(phase))
		sb.WriteString("---")
	}

	return sb.String()
}
