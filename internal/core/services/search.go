package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
	"github.com/notedex/notedex/internal/core/ports/driving"
	"github.com/notedex/notedex/internal/logger"
)

// Ensure SearchPlanner implements the interface.
var _ driving.SearchService = (*SearchPlanner)(nil)

// Merge weights for the two local legs. Lexical scores are normalised
// to [0,1] against the best hit before weighting; cosine similarity is
// mapped from [-1,1] to [0,1].
const (
	lexicalWeight  = 0.5
	semanticWeight = 0.5
)

// candidate accumulates per-document evidence across legs before the
// final merge.
type candidate struct {
	doc        *domain.Document
	lexScore   float64 // raw term-frequency score, 0 when leg missed
	semScore   float64 // best cosine similarity, 0 when leg missed
	chunkID    string  // best semantic chunk
	provenance domain.Provenance
}

// SearchPlanner answers queries from the local indexes and escalates
// to the remote store when the cached view is insufficient or stale.
type SearchPlanner struct {
	cache    driven.CacheStore
	lexical  driven.LexicalIndex
	vector   driven.VectorIndex
	embedder driven.EmbeddingService
	remote   driven.RemoteStore
	registry driven.NormaliserRegistry
	settings domain.Settings

	// now is stubbed in tests.
	now func() time.Time
}

// NewSearchPlanner creates a search planner. The embedder is optional;
// when nil the semantic leg is skipped and queries run lexical-only.
func NewSearchPlanner(
	cache driven.CacheStore,
	lexical driven.LexicalIndex,
	vector driven.VectorIndex,
	embedder driven.EmbeddingService,
	remote driven.RemoteStore,
	registry driven.NormaliserRegistry,
	settings domain.Settings,
) *SearchPlanner {
	return &SearchPlanner{
		cache:    cache,
		lexical:  lexical,
		vector:   vector,
		embedder: embedder,
		remote:   remote,
		registry: registry,
		settings: settings.Normalise(),
		now:      time.Now,
	}
}

// Search returns ranked results within the options' latency budget.
func (p *SearchPlanner) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	logger.Section("Search")
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidQuery)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	logger.Debug("Query: %q (branch=%q, limit=%d)", query, opts.BranchID, limit)

	candidates, err := p.localLegs(ctx, query, limit, opts.BranchID)
	if err != nil {
		return nil, err
	}
	logger.Debug("Local legs: %d candidate documents", len(candidates))

	if p.shouldEscalate(ctx, candidates, opts.BranchID) {
		remote, err := p.remoteFallback(ctx, query, limit, opts.BranchID)
		switch {
		case err == nil:
			p.mergeRemote(candidates, remote)
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrRateLimited):
			// Budget spent: serve the best local-only set.
			logger.Warn("Remote fallback abandoned: %v", err)
		case errors.Is(err, context.Canceled):
			return nil, err
		default:
			logger.Warn("Remote fallback failed: %v", err)
		}
	}

	results := p.rank(ctx, candidates, query)
	if len(results) > limit {
		results = results[:limit]
	}
	logger.Info("Results: %d", len(results))
	return results, nil
}

// localLegs runs the lexical and semantic queries concurrently and
// folds the hits into per-document candidates.
func (p *SearchPlanner) localLegs(ctx context.Context, query string, limit int, branchID string) (map[string]*candidate, error) {
	// Over-fetch so branch filtering and deduplication still fill the page.
	internalLimit := limit * 3

	var (
		lexHits []driven.LexicalHit
		vecHits []driven.VectorHit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := p.lexical.Query(gctx, query, internalLimit)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidQuery) {
				return err
			}
			logger.Warn("Lexical leg failed: %v", err)
			return nil
		}
		lexHits = hits
		return nil
	})
	if p.embedder != nil {
		g.Go(func() error {
			embedding, err := p.embedder.Embed(gctx, query)
			if err != nil {
				logger.Warn("Query embedding failed, semantic leg skipped: %v", err)
				return nil
			}
			hits, err := p.vector.Search(gctx, embedding, internalLimit)
			if err != nil {
				logger.Warn("Semantic leg failed: %v", err)
				return nil
			}
			vecHits = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make(map[string]*candidate)
	for _, hit := range lexHits {
		doc, ok := p.hydrate(ctx, hit.DocumentID, branchID)
		if !ok {
			continue
		}
		candidates[hit.DocumentID] = &candidate{
			doc:        doc,
			lexScore:   hit.Score,
			provenance: domain.ProvenanceLexical,
		}
	}
	for _, hit := range vecHits {
		c, ok := candidates[hit.DocumentID]
		if !ok {
			doc, found := p.hydrate(ctx, hit.DocumentID, branchID)
			if !found {
				continue
			}
			c = &candidate{doc: doc, provenance: domain.ProvenanceSemantic}
			candidates[hit.DocumentID] = c
		}
		// Keep the best chunk per document.
		if hit.Similarity > c.semScore || c.chunkID == "" {
			c.semScore = hit.Similarity
			c.chunkID = hit.ChunkID
		}
	}
	return candidates, nil
}

// hydrate loads a hit's document and applies the searchability and
// branch-scope filters.
func (p *SearchPlanner) hydrate(ctx context.Context, documentID, branchID string) (*domain.Document, bool) {
	doc, err := p.cache.GetDocument(ctx, documentID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Failed to hydrate document %s: %v", documentID, err)
		}
		return nil, false
	}
	if !doc.Searchable() {
		return nil, false
	}
	if branchID != "" && doc.SectionID != branchID {
		return nil, false
	}
	return doc, true
}

// shouldEscalate decides whether the local result set is sufficient or
// the query must fall back to the remote store.
func (p *SearchPlanner) shouldEscalate(ctx context.Context, candidates map[string]*candidate, branchID string) bool {
	if len(candidates) < p.settings.MinLocalResults {
		logger.Debug("Escalating: %d local results below threshold %d",
			len(candidates), p.settings.MinLocalResults)
		return true
	}
	if branchID == "" {
		return false
	}

	cursor, err := p.cache.GetSyncCursor(ctx, branchID)
	if err != nil {
		// A branch the cache has never seen always goes remote.
		logger.Debug("Escalating: branch %s absent from cache", branchID)
		return true
	}
	if !cursor.FreshAt(p.now(), p.settings.FreshnessWindow) {
		logger.Debug("Escalating: branch %s cursor partial or older than %v",
			branchID, p.settings.FreshnessWindow)
		return true
	}
	return false
}

// remoteFallback fetches and scores pages directly from the remote
// store. Scoped queries walk the branch listing; unscoped queries use
// the flat listing. The number of page fetches is capped by the result
// limit to bound rate budget spend.
func (p *SearchPlanner) remoteFallback(ctx context.Context, query string, limit int, branchID string) ([]*candidate, error) {
	logger.Debug("Remote fallback (branch=%q)", branchID)

	stubs, err := p.enumerateRemote(ctx, branchID, limit*3)
	if err != nil {
		return nil, err
	}

	terms := queryTerms(query)
	var out []*candidate
	for _, stub := range stubs {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		raw, err := p.remote.FetchPage(ctx, stub.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return out, err
		}
		result, err := p.registry.Normalise(ctx, raw)
		if err != nil {
			logger.Debug("Skipping malformed remote page %s: %v", stub.ID, err)
			continue
		}

		score := termFrequency(result.Text+" "+raw.Title, terms)
		if score == 0 {
			continue
		}
		out = append(out, &candidate{
			doc: &domain.Document{
				ID:             raw.ID,
				NotebookID:     raw.NotebookID,
				SectionID:      raw.SectionID,
				Title:          raw.Title,
				Content:        result.Text,
				ContentHash:    result.ContentHash,
				RemoteModified: raw.RemoteModified,
				State:          domain.DocStateStale,
			},
			lexScore:   score,
			provenance: domain.ProvenanceRemote,
		})
	}
	logger.Debug("Remote fallback matched %d of %d fetched pages", len(out), len(stubs))
	return out, nil
}

// enumerateRemote lists up to maxStubs page stubs, newest first. An
// unscoped listing the remote store rejects for exceeding its hierarchy
// ceiling falls back to walking branches individually within the same
// stub budget.
func (p *SearchPlanner) enumerateRemote(ctx context.Context, branchID string, maxStubs int) ([]domain.PageStub, error) {
	if branchID != "" {
		return p.collectStubs(ctx, maxStubs, func(ctx context.Context, token string) (*driven.RemoteBatch, error) {
			return p.remote.EnumerateBranch(ctx, branchID, token)
		})
	}

	stubs, err := p.collectStubs(ctx, maxStubs, p.remote.EnumerateAll)
	if !errors.Is(err, domain.ErrPaginationCeiling) {
		return stubs, err
	}

	logger.Debug("Flat listing rejected, walking branches for fallback stubs")
	hierarchy, err := p.remote.FetchHierarchy(ctx)
	if err != nil {
		return nil, err
	}
	branchIDs := hierarchy.BranchIDs()
	sort.Strings(branchIDs)

	var all []domain.PageStub
	for _, id := range branchIDs {
		remaining := maxStubs - len(all)
		if remaining <= 0 {
			break
		}
		id := id
		branchStubs, err := p.collectStubs(ctx, remaining, func(ctx context.Context, token string) (*driven.RemoteBatch, error) {
			return p.remote.EnumerateBranch(ctx, id, token)
		})
		if err != nil {
			return nil, err
		}
		all = append(all, branchStubs...)
	}
	return all, nil
}

// collectStubs walks a paginated listing until the stub budget fills
// or the listing ends.
func (p *SearchPlanner) collectStubs(
	ctx context.Context,
	maxStubs int,
	list func(ctx context.Context, token string) (*driven.RemoteBatch, error),
) ([]domain.PageStub, error) {
	var stubs []domain.PageStub
	token := ""
	for len(stubs) < maxStubs {
		batch, err := list(ctx, token)
		if err != nil {
			return nil, err
		}
		stubs = append(stubs, batch.Stubs...)
		if batch.NextToken == "" {
			break
		}
		token = batch.NextToken
	}
	if len(stubs) > maxStubs {
		stubs = stubs[:maxStubs]
	}
	return stubs, nil
}

// mergeRemote folds remote candidates into the local set, deduplicating
// by document id. A locally known document keeps its local provenance
// and the higher lexical evidence.
func (p *SearchPlanner) mergeRemote(candidates map[string]*candidate, remote []*candidate) {
	for _, rc := range remote {
		if existing, ok := candidates[rc.doc.ID]; ok {
			if rc.lexScore > existing.lexScore {
				existing.lexScore = rc.lexScore
			}
			continue
		}
		candidates[rc.doc.ID] = rc
	}
}

// rank produces the final ordered result list: normalise the lexical
// scores, weight the two legs, attach chunks and highlights, and sort
// strictly by merged score. Provenance never influences the order.
func (p *SearchPlanner) rank(ctx context.Context, candidates map[string]*candidate, query string) []domain.SearchResult {
	maxLex := 0.0
	for _, c := range candidates {
		if c.lexScore > maxLex {
			maxLex = c.lexScore
		}
	}

	results := make([]domain.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		lexNorm := 0.0
		if maxLex > 0 {
			lexNorm = c.lexScore / maxLex
		}
		semNorm := 0.0
		if c.chunkID != "" {
			semNorm = (c.semScore + 1) / 2
		}
		score := lexicalWeight*lexNorm + semanticWeight*semNorm

		provenance := c.provenance
		if c.chunkID != "" && semanticWeight*semNorm > lexicalWeight*lexNorm {
			provenance = domain.ProvenanceSemantic
		}

		var chunk *domain.Chunk
		highlightSource := c.doc.Content
		if c.chunkID != "" {
			if loaded, err := p.cache.GetChunk(ctx, c.chunkID); err == nil {
				chunk = loaded
				highlightSource = loaded.Content
			}
		}

		results = append(results, domain.SearchResult{
			Document:   *c.doc,
			Chunk:      chunk,
			Score:      score,
			Provenance: provenance,
			Highlights: generateHighlights(highlightSource, query),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	return results
}

// queryTerms lowercases and splits a query for remote-side scoring.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"*`)
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

// termFrequency scores text by query term occurrences, normalised by
// text length, mirroring the lexical index's ranking scale.
func termFrequency(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	count := 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:'\"-()[]{}")
		for _, t := range terms {
			if w == t {
				count++
				break
			}
		}
	}
	return float64(count) / float64(len(words))
}

// generateHighlights returns up to three sentence snippets containing
// query terms.
func generateHighlights(content, query string) []string {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}

	var highlights []string
	for _, sentence := range splitSentences(content) {
		sentenceLower := strings.ToLower(sentence)
		for _, term := range terms {
			if strings.Contains(sentenceLower, term) {
				if len(sentence) > 200 {
					sentence = sentence[:200] + "..."
				}
				highlights = append(highlights, sentence)
				break
			}
		}
		if len(highlights) >= 3 {
			break
		}
	}
	return highlights
}

// splitSentences splits content on common terminators.
func splitSentences(content string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range content {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
