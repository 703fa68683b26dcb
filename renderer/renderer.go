// Package renderer turns states, events and comparisons into markdown.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

//go:embed templates/*.md
var templateFS embed.FS

var templates, _ = fs.Sub(templateFS, "templates")

// RenderState renders a reconstructed state.
func RenderState(s *State) string {
	partials := map[string]string{
		"state_summary":  "state_summary.md",
		"state_holdings": "state_holdings.md",
		"state_options":  "state_options.md",
		"state_income":   "state_income.md",
		"state_journal":  "state_journal.md",
	}
	if len(s.Warnings) > 0 {
		partials["state_warnings"] = "state_warnings.md"
	} else {
		partials["state_warnings"] = ""
	}
	return renderTemplate("state", "state.md", partials, s)
}

// RenderEvents renders a list of events as a table.
func RenderEvents(e *Events) string {
	return renderTemplate("events", "events.md", nil, e)
}

// RenderComparison renders the differences between two histories.
func RenderComparison(c *Comparison) string {
	partials := map[string]string{
		"comparison_summary":     "comparison_summary.md",
		"comparison_holdings":    "comparison_holdings.md",
		"comparison_divergences": "comparison_divergences.md",
	}
	return renderTemplate("comparison", "comparison.md", partials, c)
}

// RenderHistories renders the list of alternate histories.
func RenderHistories(h *Histories) string {
	return renderTemplate("histories", "histories.md", nil, h)
}

// RenderCompaction renders a price compaction report.
func RenderCompaction(c *Compaction) string {
	return renderTemplate("compaction", "compaction.md", nil, c)
}

// renderTemplate renders a main template that depends on several partials.
// An empty partial file name is an empty template.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		if file != "" {
			content, err = fs.ReadFile(templates, file)
			if err != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, err)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
