package server

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ironsheep/openrouter-mcp/internal/content"
)

var (
	plainMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	extraNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown renders markdown source as plain text: emphasis, headings,
// links and code fences are reduced to their text, raw HTML is dropped.
func stripMarkdown(src string) string {
	source := []byte(src)
	doc := plainMarkdown.Parser().Parse(text.NewReader(source))

	var b bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.Kind() {
			case ast.KindParagraph, ast.KindHeading, ast.KindFencedCodeBlock, ast.KindCodeBlock:
				b.WriteString("\n\n")
			case ast.KindTextBlock, east.KindTableRow, east.KindTableHeader:
				b.WriteString("\n")
			case east.KindTableCell:
				b.WriteString("\t")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	out := strings.ReplaceAll(b.String(), "\t\n", "\n")
	out = extraNewlines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// stripMarkdownParts applies stripMarkdown to every text part.
func stripMarkdownParts(parts []content.Part) []content.Part {
	out := make([]content.Part, len(parts))
	for i, p := range parts {
		if p.Kind == content.KindText {
			p.Text = stripMarkdown(p.Text)
		}
		out[i] = p
	}
	return out
}
