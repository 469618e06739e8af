package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

var _ Extractor = DOCXExtractor{}

// maxZipEntrySize limits decompressed size of individual zip entries
// to prevent zip bomb attacks (100 MB).
const maxZipEntrySize = 100 << 20

// DOCXExtractor extracts text from DOCX documents by streaming OOXML tokens
// out of word/document.xml, without building a DOM tree.
type DOCXExtractor struct{}

func (DOCXExtractor) Extract(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty docx content")
	}
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	docXML, err := docxDocumentXML(zr)
	if err != nil {
		return "", err
	}
	return docxText(docXML)
}

// docxDocumentXML locates and reads word/document.xml from the archive.
func docxDocumentXML(zr *zip.Reader) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxZipEntrySize+1))
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		if len(data) > maxZipEntrySize {
			return nil, fmt.Errorf("document.xml exceeds %d byte limit", maxZipEntrySize)
		}
		return data, nil
	}
	return nil, fmt.Errorf("missing word/document.xml")
}

// docxText streams the OOXML token stream, collecting character data inside
// w:t runs, a space per w:tab, and a newline per paragraph end.
func docxText(docXML []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(docXML))

	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte(' ')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return collapseWhitespace(b.String()), nil
}
