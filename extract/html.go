package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

var _ Extractor = HTMLExtractor{}

// HTMLExtractor extracts readable article text from HTML, dropping
// navigation, boilerplate, scripts, and styles.
type HTMLExtractor struct{}

func (HTMLExtractor) Extract(content []byte) (string, error) {
	// readability needs a base URL to resolve relative links; the pages here
	// come in as bytes, so a placeholder is enough.
	base, _ := url.Parse("http://localhost/")
	article, err := readability.FromReader(bytes.NewReader(content), base)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return collapseWhitespace(strings.TrimSpace(article.TextContent)), nil
}
