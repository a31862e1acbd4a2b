package normalisers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches raw pages to the highest-priority normaliser
// registered for their content type.
type Registry struct {
	byType map[domain.ContentType][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[domain.ContentType][]driven.Normaliser),
	}
}

// Register adds a normaliser for each content type it supports.
func (r *Registry) Register(n driven.Normaliser) {
	for _, ct := range n.SupportedContentTypes() {
		list := r.byType[ct]
		// Insert keeping descending priority order.
		pos := len(list)
		for i, existing := range list {
			if n.Priority() > existing.Priority() {
				pos = i
				break
			}
		}
		list = append(list, nil)
		copy(list[pos+1:], list[pos:])
		list[pos] = n
		r.byType[ct] = list
	}
}

// Normalise routes the page to the best normaliser for its content type.
// Unrecognised content types fail with ErrMalformedContent: the payload
// shape is the explicit fallback variant for anything unknown.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawPage) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	candidates := r.byType[raw.ContentType]
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: unknown content type %q", domain.ErrMalformedContent, raw.ContentType)
	}

	var lastErr error
	for _, n := range candidates {
		result, err := n.Normalise(ctx, raw)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// HashText returns the sha256 hex fingerprint of canonical text.
// Shared by all normalisers so hashes stay comparable across formats.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
