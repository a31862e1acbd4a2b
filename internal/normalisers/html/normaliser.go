package html

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
	"github.com/notedex/notedex/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML page payloads, the remote store's default
// page representation.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedContentTypes returns the payload shapes this normaliser handles.
func (n *Normaliser) SupportedContentTypes() []domain.ContentType {
	return []domain.ContentType{domain.ContentTypeHTML}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	scriptTag     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headTag       = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	objectTag     = regexp.MustCompile(`(?is)<object[^>]*>.*?</object>`)
	imgTag        = regexp.MustCompile(`(?i)<img[^>]*>`)
	attrName      = regexp.MustCompile(`(?i)(?:data-name|alt|name)\s*=\s*"([^"]*)"`)
	blockElements = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	brTags        = regexp.MustCompile(`(?i)<(?:br|hr)\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Normalise converts an HTML page to canonical plain text and its hash.
// Embedded objects and images resolve to a stable textual placeholder so
// the output stays deterministic regardless of attachment hosting.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawPage) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, fmt.Errorf("%w: page %s is not valid UTF-8", domain.ErrMalformedContent, raw.ID)
	}

	content := string(raw.Content)

	content = htmlComments.ReplaceAllString(content, "")
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")

	content = replaceEmbedded(content, objectTag)
	content = replaceEmbedded(content, imgTag)

	// Block boundaries become newlines to preserve reading order.
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")

	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	// Trim per-line whitespace, then collapse blank runs.
	lines := strings.Split(content, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	content = strings.Join(lines, "\n")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	content = strings.TrimSpace(content)

	return &driven.NormaliseResult{
		Text:        content,
		ContentHash: normalisers.HashText(content),
	}, nil
}

// replaceEmbedded rewrites embedded reference tags to a stable placeholder.
func replaceEmbedded(content string, pattern *regexp.Regexp) string {
	return pattern.ReplaceAllStringFunc(content, func(tag string) string {
		if m := attrName.FindStringSubmatch(tag); len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			return "[attachment: " + strings.TrimSpace(m[1]) + "]"
		}
		return "[attachment]"
	})
}
