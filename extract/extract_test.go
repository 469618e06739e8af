package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func TestContentTypeFromExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want ContentType
	}{
		{"md", TypeMarkdown},
		{".markdown", TypeMarkdown},
		{"HTML", TypeHTML},
		{"htm", TypeHTML},
		{"docx", TypeDOCX},
		{"pdf", TypePDF},
		{"txt", TypePlainText},
		{"", TypePlainText},
		{"xyz", TypePlainText},
	}
	for _, tt := range tests {
		if got := ContentTypeFromExtension(tt.ext); got != tt.want {
			t.Errorf("ContentTypeFromExtension(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestForType_CoversAllTypes(t *testing.T) {
	for _, ct := range []ContentType{TypePlainText, TypeMarkdown, TypeHTML, TypeDOCX, TypePDF} {
		if ForType(ct) == nil {
			t.Errorf("ForType(%q) returned nil", ct)
		}
	}
}

func TestPlainText(t *testing.T) {
	got, err := PlainTextExtractor{}.Extract([]byte("hello world"))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestMarkdown(t *testing.T) {
	md := "# Title\n\nSome **bold** and *italic* text with a [link](https://example.com).\n\n- first item\n- second item\n\n```go\nfmt.Println(\"hi\")\n```\n"

	got, err := MarkdownExtractor{}.Extract([]byte(md))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	for _, want := range []string{"Title", "bold", "italic", "link", "first item", "second item", `fmt.Println("hi")`} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"#", "**", "](", "```", "https://example.com"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("expected %q to be stripped, got:\n%s", unwanted, got)
		}
	}
}

func TestMarkdown_Empty(t *testing.T) {
	got, err := MarkdownExtractor{}.Extract(nil)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestHTML(t *testing.T) {
	html := `<html><head><title>Page</title><style>body{color:red}</style></head>
<body><script>alert(1)</script>
<article><h1>Heading</h1><p>First paragraph with enough words to count as content for the reader.</p>
<p>Second paragraph, also reasonably long so extraction keeps it around.</p></article>
</body></html>`

	got, err := HTMLExtractor{}.Extract([]byte(html))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if !strings.Contains(got, "First paragraph") || !strings.Contains(got, "Second paragraph") {
		t.Errorf("expected paragraphs in output, got:\n%s", got)
	}
	if strings.Contains(got, "alert(1)") || strings.Contains(got, "color:red") {
		t.Errorf("expected scripts and styles stripped, got:\n%s", got)
	}
}

func TestDOCX(t *testing.T) {
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:tab/></w:r><w:r><w:t>column</w:t></w:r></w:p>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(docXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := DOCXExtractor{}.Extract(buf.Bytes())
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if !strings.Contains(got, "First paragraph.") {
		t.Errorf("missing first paragraph: %q", got)
	}
	if !strings.Contains(got, "Second column") {
		t.Errorf("expected tab rendered as space: %q", got)
	}
}

func TestDOCX_Invalid(t *testing.T) {
	if _, err := (DOCXExtractor{}).Extract(nil); err == nil {
		t.Error("expected error for empty content")
	}
	if _, err := (DOCXExtractor{}).Extract([]byte("not a zip")); err == nil {
		t.Error("expected error for non-zip content")
	}

	// Valid zip without word/document.xml.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create("other.txt")
	f.Write([]byte("x"))
	zw.Close()
	if _, err := (DOCXExtractor{}).Extract(buf.Bytes()); err == nil {
		t.Error("expected error for missing document.xml")
	}
}

func TestPDF_Invalid(t *testing.T) {
	if _, err := (PDFExtractor{}).Extract(nil); err == nil {
		t.Error("expected error for empty content")
	}
	if _, err := (PDFExtractor{}).Extract([]byte("not a pdf")); err == nil {
		t.Error("expected error for non-pdf content")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := collapseWhitespace("  a  \n\n\n\nb\nc\n")
	if got != "a\n\nb\nc" {
		t.Errorf("got %q", got)
	}
}
