package adapters

import (
	"regexp"
	"strings"

	"github.com/morgansundqvist/mbacklog/internal/domain"
)

// adfNode is a node of the Atlassian Document Format.
type adfNode struct {
	Type    string                 `json:"type"`
	Version int                    `json:"version,omitempty"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Content []adfNode              `json:"content,omitempty"`
	Text    string                 `json:"text,omitempty"`
}

func adfText(text string) adfNode {
	return adfNode{Type: "text", Text: text}
}

func adfHeading(level int, text string) adfNode {
	return adfNode{
		Type:    "heading",
		Attrs:   map[string]interface{}{"level": level},
		Content: []adfNode{adfText(text)},
	}
}

func adfBulletList(items []string) adfNode {
	list := adfNode{Type: "bulletList", Content: make([]adfNode, 0, len(items))}
	for _, item := range items {
		list.Content = append(list.Content, adfNode{
			Type: "listItem",
			Content: []adfNode{
				{Type: "paragraph", Content: []adfNode{adfText(item)}},
			},
		})
	}
	return list
}

// storyToADF renders acceptance criteria, and dependencies when present, as an ADF document.
func storyToADF(story domain.UserStory) adfNode {
	content := []adfNode{
		adfHeading(2, "Acceptance Criteria"),
		adfBulletList(story.AcceptanceCriteria),
	}
	if len(story.Dependencies) > 0 {
		content = append(content,
			adfHeading(2, "Dependencies"),
			adfBulletList(story.Dependencies),
		)
	}
	return adfNode{Version: 1, Type: "doc", Content: content}
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// adfToText flattens an ADF document into plain text, one line per block node.
func adfToText(doc *adfNode) string {
	if doc == nil {
		return ""
	}
	var result strings.Builder
	writeADFNode(*doc, &result)

	lines := strings.Split(result.String(), "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(htmlTagPattern.ReplaceAllString(line, ""))
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

func writeADFNode(node adfNode, result *strings.Builder) {
	switch node.Type {
	case "text":
		result.WriteString(node.Text)
		return
	case "hardBreak":
		result.WriteString("\n")
		return
	case "mention", "emoji":
		if text, ok := node.Attrs["text"].(string); ok {
			result.WriteString(text)
		}
		return
	case "listItem":
		result.WriteString("- ")
	}

	for _, child := range node.Content {
		writeADFNode(child, result)
	}

	switch node.Type {
	case "paragraph", "heading", "listItem", "codeBlock", "blockquote", "rule":
		result.WriteString("\n")
	case "bulletList", "orderedList", "table", "tableRow":
		result.WriteString("\n")
	case "tableCell", "tableHeader":
		result.WriteString(" ")
	}
}
