// Package render turns accumulated interview data into the final document
// forms: markdown, a standalone HTML page, and a per-section fragment map.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/intakekit/intakekit/completion"
	"github.com/intakekit/intakekit/template"
)

// Result is a rendered document.
type Result struct {
	// Markdown is the full document in markdown.
	Markdown string

	// HTML is a minimal standalone page with the same content.
	HTML string

	// Sections maps each filled section key to its rendered markdown
	// fragment.
	Sections map[string]string
}

// Render produces the document for the given data and template. Sections
// follow template order; required sections with no content are rendered as
// placeholders so gaps are visible in the output.
func Render(data map[string]string, t *template.Template) Result {
	var md strings.Builder
	var body strings.Builder
	sections := make(map[string]string, len(t.Sections))

	title := strings.TrimSpace(data["title"])
	if title == "" {
		title = t.Name
	}
	md.WriteString("# " + title + "\n\n")
	body.WriteString("<h1>" + html.EscapeString(title) + "</h1>\n")

	for _, s := range t.Sections {
		if s.Key == "title" {
			continue
		}
		content := strings.TrimSpace(data[s.Key])
		if content == "" {
			if !s.Required {
				continue
			}
			content = "_Not provided._"
		}

		fragment := "## " + s.Title + "\n\n" + content + "\n"
		sections[s.Key] = fragment

		md.WriteString(fragment)
		md.WriteString("\n")

		body.WriteString("<h2>" + html.EscapeString(s.Title) + "</h2>\n")
		writeHTMLParagraphs(&body, content)
	}

	return Result{
		Markdown: md.String(),
		HTML:     htmlPage(title, body.String()),
		Sections: sections,
	}
}

// Completion returns the document-level score and missing-required list for
// the rendered data. Convenience for preview endpoints.
func Completion(data map[string]string, t *template.Template) (float64, []string) {
	return completion.Estimate(data, t)
}

// writeHTMLParagraphs emits escaped content as paragraphs, splitting on
// blank lines and keeping single line breaks.
func writeHTMLParagraphs(sb *strings.Builder, content string) {
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := html.EscapeString(para)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		sb.WriteString("<p>" + escaped + "</p>\n")
	}
}

func htmlPage(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(title), body)
}
