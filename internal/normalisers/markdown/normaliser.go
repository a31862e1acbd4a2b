package markdown

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
	"github.com/notedex/notedex/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles markdown page payloads by walking the goldmark AST,
// which keeps reading order and survives markup the regex approach would
// mangle (nested emphasis, tables, reference links).
type Normaliser struct {
	parser goldmark.Markdown
}

// New creates a new markdown normaliser.
func New() *Normaliser {
	return &Normaliser{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		),
	}
}

// SupportedContentTypes returns the payload shapes this normaliser handles.
func (n *Normaliser) SupportedContentTypes() []domain.ContentType {
	return []domain.ContentType{domain.ContentTypeMarkdown}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts a markdown page to canonical plain text and its hash.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawPage) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, fmt.Errorf("%w: page %s is not valid UTF-8", domain.ErrMalformedContent, raw.ID)
	}

	reader := text.NewReader(raw.Content)
	doc := n.parser.Parser().Parse(reader)

	var sb strings.Builder
	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Image:
			// Embedded references become a stable placeholder.
			alt := strings.TrimSpace(string(nodeText(v, raw.Content)))
			if alt == "" {
				sb.WriteString("[attachment]")
			} else {
				sb.WriteString("[attachment: " + alt + "]")
			}
			return ast.WalkSkipChildren, nil

		case *ast.Text:
			sb.Write(v.Segment.Value(raw.Content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte('\n')
			}

		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(raw.Content))
			}
			sb.WriteByte('\n')
			return ast.WalkSkipChildren, nil
		}

		// Block boundaries become blank lines to preserve reading order.
		if node.Type() == ast.TypeBlock && sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedContent, err)
	}

	content := collapse(sb.String())
	return &driven.NormaliseResult{
		Text:        content,
		ContentHash: normalisers.HashText(content),
	}, nil
}

// nodeText extracts the literal text under a node.
func nodeText(node ast.Node, source []byte) []byte {
	var out []byte
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			out = append(out, t.Segment.Value(source)...)
		}
	}
	return out
}

// collapse trims trailing whitespace and squeezes blank-line runs.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
