package adapters

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{3,}`)
)

// HTMLMarkdownConverter turns uploaded HTML documents into markdown so they read
// well as knowledge base text.
type HTMLMarkdownConverter struct {
	converter *md.Converter
}

func NewHTMLMarkdownConverter() *HTMLMarkdownConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &HTMLMarkdownConverter{converter: converter}
}

func (c *HTMLMarkdownConverter) ToMarkdown(html string) (string, error) {
	cleaned := scriptRe.ReplaceAllString(html, "")
	cleaned = styleRe.ReplaceAllString(cleaned, "")

	markdown, err := c.converter.ConvertString(cleaned)
	if err != nil {
		return "", err
	}
	markdown = excessiveLinesRe.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown), nil
}
