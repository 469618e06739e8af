package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var _ Extractor = MarkdownExtractor{}

// MarkdownExtractor renders Markdown down to plain text by walking the
// goldmark AST and keeping only text content. Formatting markers, link
// targets, and image references are dropped; code block content is kept
// verbatim.
type MarkdownExtractor struct{}

func (MarkdownExtractor) Extract(content []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(gmtext.NewReader(content))

	var b strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.TextBlock,
				*ast.Blockquote, *extast.TableRow:
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(content))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.URL(content))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(content))
			}
		case *extast.TableCell:
			if n.PreviousSibling() != nil {
				b.WriteByte(' ')
			}
		case *ast.Image:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return collapseWhitespace(b.String()), nil
}
