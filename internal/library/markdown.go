package library

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// excerptLength caps the derived listing description.
const excerptLength = 200

// plainText renders guide markdown to plain text by walking the goldmark
// AST, so listings never show raw markup.
func plainText(markdown string) string {
	md := goldmark.New()
	source := []byte(markdown)
	node := md.Parser().Parse(text.NewReader(source))

	var builder strings.Builder
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n.Kind() {
		case ast.KindText:
			textNode := n.(*ast.Text)
			builder.Write(textNode.Segment.Value(source))
			if textNode.SoftLineBreak() || textNode.HardLineBreak() {
				builder.WriteByte(' ')
			}
		case ast.KindParagraph, ast.KindHeading, ast.KindList, ast.KindTextBlock:
			// Tight list items hold their text in a TextBlock, not a
			// Paragraph; without the separator adjacent items run together.
			builder.WriteByte(' ')
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			// Code blocks make poor excerpts
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(builder.String()), " ")
}

// excerpt derives a short listing description from guide markdown.
func excerpt(markdown string) string {
	plain := plainText(markdown)
	runes := []rune(plain)
	if len(runes) <= excerptLength {
		return plain
	}
	return strings.TrimSpace(string(runes[:excerptLength])) + "…"
}
