// Package completion scores how much of a template's document has been
// filled in by extracted interview data.
package completion

import (
	"math"
	"strings"

	"github.com/intakekit/intakekit/template"
)

// phaseBonusMax is the score share awarded for progressing through the
// interview phases, independent of data volume.
const phaseBonusMax = 10.0

// Estimate computes the document-level completeness of data against the
// template: the weighted share of filled sections scaled to 100, rounded to
// one decimal, plus the titles of required sections still missing (in
// document order). Required sections weigh 2.0, optional 1.0.
func Estimate(data map[string]string, t *template.Template) (float64, []string) {
	filled, total, missing := tally(data, t)
	if total == 0 {
		return 0, nil
	}
	return round1(filled / total * 100.0), missing
}

// EstimateWithPhase computes the session-level completeness: the weighted
// fill share scaled to 90, rounded to one decimal, plus a phase-progression
// bonus of up to 10 based on the phase's rank in template.PhaseOrder. The
// result is capped at 100.
func EstimateWithPhase(data map[string]string, t *template.Template, phase template.Phase) (float64, []string) {
	filled, total, missing := tally(data, t)
	if total == 0 {
		return 0, nil
	}

	base := round1(filled / total * 90.0)

	bonus := 0.0
	if idx := phase.Index(); idx > 0 && len(template.PhaseOrder) > 1 {
		bonus = float64(idx) / float64(len(template.PhaseOrder)-1) * phaseBonusMax
	}

	return math.Min(100.0, base+bonus), missing
}

// IsComplete reports whether a session's document counts as done: score of
// at least 90 and the interview in its final phase. High completion in an
// earlier phase is not done.
func IsComplete(score float64, phase template.Phase) bool {
	return score >= 90.0 && phase == template.FinalPhase()
}

// Filled reports whether data holds a non-blank value for key.
func Filled(data map[string]string, key string) bool {
	return strings.TrimSpace(data[key]) != ""
}

func tally(data map[string]string, t *template.Template) (filled, total float64, missing []string) {
	for _, s := range t.Sections {
		w := s.Weight()
		total += w
		if Filled(data, s.Key) {
			filled += w
		} else if s.Required {
			missing = append(missing, s.Title)
		}
	}
	return filled, total, missing
}

// round1 rounds to one decimal place, half away from zero.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
