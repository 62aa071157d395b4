package extract

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// HTMLConverter reduces an HTML document to readable text. Readability
// isolates the main content area, then html-to-markdown flattens it; when
// either step fails the raw markup is stripped with a tokenizer walk.
type HTMLConverter struct {
	converter *md.Converter
}

// NewHTMLConverter creates a converter.
func NewHTMLConverter() *HTMLConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &HTMLConverter{converter: converter}
}

// Text converts HTML to plain readable text, best-effort.
func (c *HTMLConverter) Text(htmlContent string) string {
	pageURL, _ := url.Parse("file:///local")

	article, err := readability.FromReader(strings.NewReader(htmlContent), pageURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		if markdown, err := c.converter.ConvertString(article.Content); err == nil {
			return strings.TrimSpace(markdown)
		}
	}

	return stripHTML(htmlContent)
}

// stripHTML collects text nodes, skipping script and style elements.
func stripHTML(content string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(content))

	var sb strings.Builder
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
	}
}
