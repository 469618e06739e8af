// Package extract converts raw document bytes (Markdown, HTML, PDF, DOCX,
// plain text) into plain text suitable for chunking and indexing.
package extract

import "strings"

// Extractor converts raw content to plain text.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// ContentType identifies the MIME type of content for extraction.
type ContentType string

const (
	TypePlainText ContentType = "text/plain"
	TypeHTML      ContentType = "text/html"
	TypeMarkdown  ContentType = "text/markdown"
	TypeDOCX      ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypePDF       ContentType = "application/pdf"
)

// ContentTypeFromExtension maps file extensions (without the dot) to content
// types. Unknown extensions fall back to plain text.
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "md", "markdown":
		return TypeMarkdown
	case "html", "htm":
		return TypeHTML
	case "docx":
		return TypeDOCX
	case "pdf":
		return TypePDF
	default:
		return TypePlainText
	}
}

// ForType returns the built-in extractor for the content type.
func ForType(ct ContentType) Extractor {
	switch ct {
	case TypeMarkdown:
		return MarkdownExtractor{}
	case TypeHTML:
		return HTMLExtractor{}
	case TypeDOCX:
		return DOCXExtractor{}
	case TypePDF:
		return PDFExtractor{}
	default:
		return PlainTextExtractor{}
	}
}

// PlainTextExtractor returns content as-is.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(content []byte) (string, error) {
	return string(content), nil
}

// collapseWhitespace trims every line and squeezes runs of blank lines down
// to a single separator.
func collapseWhitespace(text string) string {
	var b strings.Builder
	blank := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			if blank > 1 {
				b.WriteByte('\n')
			}
		}
		b.WriteString(trimmed)
		blank = 0
	}
	return b.String()
}
