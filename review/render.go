package review

import (
	"strings"

	"formbot/model"
)

// Render formats a suggestion for the channel and for reviewer
// previews: template title, one "title: value" line per answered
// entry, the template's closing text and the author attribution.
// Skipped entries are omitted.
func (e *Engine) Render(sug *model.Suggestion) string {
	var b strings.Builder

	if sug.TemplateIndex >= 0 && sug.TemplateIndex < len(e.catalog) {
		t := e.catalog[sug.TemplateIndex]
		b.WriteString(t.Title)
		b.WriteString("\n\n")
		for i, ans := range sug.Answers {
			if ans.Skipped || i >= len(t.Entries) {
				continue
			}
			b.WriteString(t.Entries[i].Title)
			b.WriteString(": ")
			b.WriteString(ans.Value)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(t.ToEnd)
	} else {
		for _, ans := range sug.Answers {
			if ans.Skipped {
				continue
			}
			b.WriteString(ans.Value)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\nAuthor: ")
	if sug.AuthorName != "" {
		b.WriteString("@" + sug.AuthorName)
	} else {
		b.WriteString("anonymous")
	}
	return b.String()
}
