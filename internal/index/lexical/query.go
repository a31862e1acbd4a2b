package lexical

import (
	"strings"

	"github.com/notedex/notedex/internal/core/domain"
)

type clauseKind int

const (
	clauseTerm clauseKind = iota
	clausePrefix
	clausePhrase
)

// clause is one conjunct of a parsed query expression. All clauses
// must match for a document to be a hit.
type clause struct {
	kind  clauseKind
	term  string   // clauseTerm and clausePrefix
	terms []string // clausePhrase, in order
}

// parseQuery splits an expression into conjunctive clauses. Quoted
// spans become phrase clauses, a trailing star makes a prefix clause,
// everything else is a plain term.
func parseQuery(expr string) ([]clause, error) {
	var clauses []clause
	rest := expr

	for {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}

		if rest[0] == '"' {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				// Unterminated quote: treat the remainder as the phrase.
				end = len(rest) - 1
			}
			phrase := rest[1 : 1+end]
			rest = rest[min(1+end+1, len(rest)):]

			var terms []string
			for _, tok := range tokenise(phrase) {
				terms = append(terms, tok.term)
			}
			if len(terms) == 1 {
				clauses = append(clauses, clause{kind: clauseTerm, term: terms[0]})
			} else if len(terms) > 1 {
				clauses = append(clauses, clause{kind: clausePhrase, terms: terms})
			}
			continue
		}

		word := rest
		if i := strings.IndexAny(rest, " \t\n\""); i >= 0 {
			word = rest[:i]
			rest = rest[i:]
		} else {
			rest = ""
		}

		if strings.HasSuffix(word, "*") {
			term := normaliseTerm(strings.TrimSuffix(word, "*"))
			if term != "" {
				clauses = append(clauses, clause{kind: clausePrefix, term: term})
			}
			continue
		}
		if term := normaliseTerm(word); term != "" {
			clauses = append(clauses, clause{kind: clauseTerm, term: term})
		}
	}

	if len(clauses) == 0 {
		return nil, domain.ErrInvalidQuery
	}
	return clauses, nil
}
