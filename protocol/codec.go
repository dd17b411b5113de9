// Package protocol implements the embedded text protocol the interview model
// is instructed to append to its replies: an optional marker-delimited
// extraction block carrying section key/content fragments, and an optional
// phase directive. Decoding never fails; malformed markers degrade to "no
// structured data, no phase change".
package protocol

import (
	"strings"

	"github.com/intakekit/intakekit/template"
)

// Marker literals. These are part of the prompt contract with the model and
// must not change.
const (
	ExtractStart = "---EXTRACTED---"
	ExtractEnd   = "---/EXTRACTED---"
	PhasePrefix  = "---PHASE:"
	phaseSuffix  = "---"
)

// Fragment is one extracted key/content pair. Fragments preserve the order
// they were scanned in, which matters for merge semantics when a key repeats.
type Fragment struct {
	Key     string
	Content string
}

// Result is a decoded model reply.
type Result struct {
	// Reply is the visible text with all protocol markers removed.
	Reply string

	// Fragments are the extracted section entries, in scan order.
	Fragments []Fragment

	// Phase is the requested phase transition, if a recognized directive
	// was present.
	Phase template.Phase

	// HasPhase reports whether a recognized phase directive was found.
	HasPhase bool
}

// Decode parses a raw model reply into visible text, extracted fragments,
// and an optional phase directive.
func Decode(raw string) Result {
	phase, hasPhase := parsePhaseDirective(raw)
	return Result{
		Reply:     CleanReplyText(raw),
		Fragments: parseExtractionBlock(raw),
		Phase:     phase,
		HasPhase:  hasPhase,
	}
}

// parseExtractionBlock extracts key/content fragments from the first
// extraction block, if any. Entries are scanned left to right as successive
// [key]...[/key] pairs. Close tags encountered in open position are scan
// artifacts and skipped; unterminated keys are skipped; all-whitespace
// content is dropped.
func parseExtractionBlock(raw string) []Fragment {
	start := strings.Index(raw, ExtractStart)
	if start < 0 {
		return nil
	}
	rest := raw[start+len(ExtractStart):]
	end := strings.Index(rest, ExtractEnd)
	if end < 0 {
		return nil
	}
	block := rest[:end]

	var fragments []Fragment
	pos := 0
	for {
		open := strings.Index(block[pos:], "[")
		if open < 0 {
			break
		}
		open += pos
		close_ := strings.Index(block[open:], "]")
		if close_ < 0 {
			break
		}
		close_ += open

		key := block[open+1 : close_]
		if key == "" || strings.HasPrefix(key, "/") {
			// A close tag (or empty brackets) in open position is a
			// leftover from a previous scan, not a new key.
			pos = close_ + 1
			continue
		}

		closeTag := "[/" + key + "]"
		contentStart := close_ + 1
		closeIdx := strings.Index(block[contentStart:], closeTag)
		if closeIdx < 0 {
			// Unterminated key: skip the open token and keep scanning.
			pos = close_ + 1
			continue
		}
		closeIdx += contentStart

		content := strings.TrimSpace(block[contentStart:closeIdx])
		if content != "" {
			fragments = append(fragments, Fragment{Key: key, Content: content})
		}
		pos = closeIdx + len(closeTag)
	}
	return fragments
}

// parsePhaseDirective finds the first ---PHASE:Name--- directive and matches
// Name case-insensitively against the known phases. Unrecognized names yield
// no transition.
func parsePhaseDirective(raw string) (template.Phase, bool) {
	name, _, ok := locatePhaseDirective(raw)
	if !ok {
		return "", false
	}
	return template.ParsePhase(name)
}

// locatePhaseDirective returns the directive's name, the span of the full
// directive within raw, and whether a well-formed directive exists.
func locatePhaseDirective(raw string) (name string, span [2]int, ok bool) {
	start := strings.Index(raw, PhasePrefix)
	if start < 0 {
		return "", span, false
	}
	nameStart := start + len(PhasePrefix)
	end := strings.Index(raw[nameStart:], phaseSuffix)
	if end < 0 {
		return "", span, false
	}
	end += nameStart
	return raw[nameStart:end], [2]int{start, end + len(phaseSuffix)}, true
}

// CleanReplyText strips one extraction block and one phase directive from
// the reply and trims the remainder. This is the only text ever shown to the
// end user; markers must not leak into the visible transcript, so a block
// whose end marker is missing is stripped to the end of the text.
func CleanReplyText(raw string) string {
	text := raw

	if start := strings.Index(text, ExtractStart); start >= 0 {
		rest := text[start+len(ExtractStart):]
		if end := strings.Index(rest, ExtractEnd); end >= 0 {
			text = text[:start] + rest[end+len(ExtractEnd):]
		} else {
			text = text[:start]
		}
	}

	if _, span, ok := locatePhaseDirective(text); ok {
		text = text[:span[0]] + text[span[1]:]
	}

	return strings.TrimSpace(text)
}
