package lexical

import (
	"strings"
	"unicode"
)

// token is one normalised term with its ordinal position in the text.
type token struct {
	term     string
	position int
}

// tokenise lowercases the text and splits it on any non-letter,
// non-digit rune. Positions are term ordinals, not byte offsets, so
// phrase matching can check for adjacency.
func tokenise(text string) []token {
	var tokens []token
	var sb strings.Builder
	position := 0

	flush := func() {
		if sb.Len() == 0 {
			return
		}
		tokens = append(tokens, token{term: sb.String(), position: position})
		position++
		sb.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// normaliseTerm applies the same normalisation to a single query term.
func normaliseTerm(term string) string {
	var sb strings.Builder
	for _, r := range term {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}
