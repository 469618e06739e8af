package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var _ Extractor = PDFExtractor{}

// PDFExtractor extracts text from PDF documents page by page. Pages that
// fail to decode are skipped rather than failing the whole document.
type PDFExtractor struct{}

func (PDFExtractor) Extract(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty pdf content")
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageText)
	}
	return text.String(), nil
}
