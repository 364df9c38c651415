package report

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// MarkdownConverter renders an assembled page as markdown for review
type MarkdownConverter struct {
	converter *md.Converter
}

// NewMarkdownConverter creates a converter with GitHub flavored output.
// Scripts, styles and forms carry no readable content and are dropped.
func NewMarkdownConverter() *MarkdownConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("script", "style", "form", "noscript")
	return &MarkdownConverter{converter: converter}
}

// Convert turns page HTML into markdown
func (c *MarkdownConverter) Convert(html string) (string, error) {
	out, err := c.converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert page to markdown: %w", err)
	}
	out = excessiveLinesRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out) + "\n", nil
}
