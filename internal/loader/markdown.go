package loader

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownText strips markdown syntax and returns the first level one heading
// plus the document text with one block per line.
func MarkdownText(source []byte) (string, string) {
	reader := text.NewReader(source)
	doc := goldmark.New().Parser().Parse(reader)

	var title string
	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok && h.Level == 1 && title == "" {
			title = strings.TrimSpace(extractText(h, source))
		}
		collectBlocks(node, source, &blocks)
	}
	return title, strings.Join(blocks, "\n")
}

func collectBlocks(n ast.Node, source []byte, out *[]string) {
	switch n.Kind() {
	case ast.KindList, ast.KindListItem, ast.KindBlockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			collectBlocks(c, source, out)
		}
		return
	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		var sb strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			sb.Write(line.Value(source))
		}
		if code := strings.TrimSpace(sb.String()); code != "" {
			*out = append(*out, code)
		}
		return
	case ast.KindHTMLBlock, ast.KindThematicBreak:
		return
	}
	if txt := extractText(n, source); txt != "" {
		*out = append(*out, txt)
	}
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		case *ast.AutoLink:
			sb.Write(v.Label(source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}
