package adapters

import (
	"html"
	"strings"

	"github.com/morgansundqvist/mbacklog/internal/domain"
	xhtml "golang.org/x/net/html"
)

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "table": true, "blockquote": true, "pre": true,
}

// stripHTML returns the text content of an HTML fragment, keeping a line break
// after block elements.
func stripHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	var b strings.Builder
	z := xhtml.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return collapseLines(b.String())
		case xhtml.TextToken:
			b.Write(z.Text())
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken, xhtml.EndTagToken:
			name, _ := z.TagName()
			if blockElements[string(name)] {
				b.WriteString("\n")
			}
		}
	}
}

func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// htmlList renders a heading followed by an unordered list.
func htmlList(heading string, items []string) string {
	var b strings.Builder
	b.WriteString("<h3>" + html.EscapeString(heading) + "</h3><ul>")
	for _, item := range items {
		b.WriteString("<li>" + html.EscapeString(item) + "</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

// storyToHTML is the Azure DevOps description of a story.
func storyToHTML(story domain.UserStory) string {
	out := htmlList("Acceptance Criteria", story.AcceptanceCriteria)
	if len(story.Dependencies) > 0 {
		out += htmlList("Dependencies", story.Dependencies)
	}
	return out
}
