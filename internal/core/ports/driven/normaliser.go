package driven

import (
	"context"

	"github.com/notedex/notedex/internal/core/domain"
)

// Normaliser converts a raw page payload into canonical plain text.
// Each normaliser handles specific content types. Normalisation is
// deterministic: identical input always yields identical text and hash.
type Normaliser interface {
	// SupportedContentTypes returns the payload shapes this normaliser handles.
	SupportedContentTypes() []domain.ContentType

	// Priority returns the selection priority (higher = preferred).
	Priority() int

	// Normalise transforms a raw page into canonical text plus its
	// sha256 content hash. Returns ErrMalformedContent for payloads
	// that cannot be parsed.
	Normalise(ctx context.Context, raw *domain.RawPage) (*NormaliseResult, error)
}

// NormaliseResult is the output of normalisation.
type NormaliseResult struct {
	// Text is the canonical plain text, reading order preserved.
	Text string

	// ContentHash is the sha256 hex fingerprint of Text.
	ContentHash string
}

// NormaliserRegistry selects a normaliser for a raw page.
type NormaliserRegistry interface {
	// Normalise routes the page to the highest-priority normaliser for
	// its content type. An unrecognised content type fails with
	// ErrMalformedContent.
	Normalise(ctx context.Context, raw *domain.RawPage) (*NormaliseResult, error)
}
