package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/notedex/notedex/internal/chunker"
	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
	"github.com/notedex/notedex/internal/core/ports/driving"
	"github.com/notedex/notedex/internal/logger"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncOrchestrator = (*SyncEngine)(nil)

// Embedding retry tuning.
const (
	embedMaxAttempts = 3
	embedBaseDelay   = 500 * time.Millisecond
)

// SyncEngine reconciles the local cache with the remote store, one
// branch at a time: enumerate, diff, fetch and normalise changes,
// reindex, tombstone vanished pages, advancing the branch cursor only
// after each processed listing page so an interrupted pass can resume.
type SyncEngine struct {
	remote   driven.RemoteStore
	cache    driven.CacheStore
	registry driven.NormaliserRegistry
	chunker  *chunker.Chunker
	lexical  driven.LexicalIndex
	vector   driven.VectorIndex
	embedder driven.EmbeddingService
	settings domain.Settings

	// hierarchy is the last fetched notebook/section tree.
	hmu       sync.RWMutex
	hierarchy *domain.Hierarchy

	// Per-branch status tracking. A branch in activeSyncs is mid-pass;
	// a second SyncBranch for it fails with ErrSyncInProgress, which
	// also serialises reindexing per document.
	mu          sync.RWMutex
	activeSyncs map[string]*driving.SyncStatus
}

// NewSyncEngine creates a sync engine. The embedder is optional; when
// nil, chunks are stored without embeddings and semantic search is
// disabled.
func NewSyncEngine(
	remote driven.RemoteStore,
	cache driven.CacheStore,
	registry driven.NormaliserRegistry,
	ck *chunker.Chunker,
	lexical driven.LexicalIndex,
	vector driven.VectorIndex,
	embedder driven.EmbeddingService,
	settings domain.Settings,
) *SyncEngine {
	return &SyncEngine{
		remote:      remote,
		cache:       cache,
		registry:    registry,
		chunker:     ck,
		lexical:     lexical,
		vector:      vector,
		embedder:    embedder,
		settings:    settings.Normalise(),
		activeSyncs: make(map[string]*driving.SyncStatus),
	}
}

// RebuildIndexes repopulates the in-memory indexes from the cache
// store. Called once at startup before serving queries.
func (e *SyncEngine) RebuildIndexes(ctx context.Context) error {
	docs, err := e.cache.AllDocuments(ctx)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}

	for i := range docs {
		doc := &docs[i]
		if !doc.Searchable() {
			continue
		}
		if err := e.lexical.IndexDocument(ctx, doc); err != nil {
			return fmt.Errorf("index document %s: %w", doc.ID, err)
		}
		chunks, err := e.cache.GetChunks(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("load chunks for %s: %w", doc.ID, err)
		}
		for _, chunk := range chunks {
			if chunk.State != domain.ChunkStateOK || len(chunk.Embedding) == 0 {
				continue
			}
			if err := e.vector.Add(ctx, doc.ID, chunk.ID, chunk.Embedding); err != nil {
				return fmt.Errorf("add vector for chunk %s: %w", chunk.ID, err)
			}
		}
	}

	logger.Debug("Rebuilt indexes from %d cached documents", len(docs))
	return nil
}

// SyncBranch runs one sync pass for a single branch.
func (e *SyncEngine) SyncBranch(ctx context.Context, branchID string) error {
	hierarchy, err := e.loadHierarchy(ctx)
	if err != nil {
		return err
	}
	if _, ok := hierarchy.Branches[branchID]; !ok {
		return fmt.Errorf("%w: unknown branch %s", domain.ErrNotFound, branchID)
	}

	status, err := e.beginPass(branchID)
	if err != nil {
		return err
	}
	defer e.endPass(branchID)

	return e.syncBranchPass(ctx, branchID, status)
}

// syncBranchPass walks the branch listing page by page. After each
// fully processed page the cursor advances with the continuation
// token, so a crash mid-pass resumes without a full re-pull.
func (e *SyncEngine) syncBranchPass(ctx context.Context, branchID string, status *driving.SyncStatus) error {
	token := ""
	resumed := false
	if cursor, err := e.cache.GetSyncCursor(ctx, branchID); err == nil && cursor.Token != "" {
		token = cursor.Token
		resumed = true
		logger.Debug("Resuming branch %s from saved continuation token", branchID)
	}

	seen := make(map[string]bool)
	changes := 0

	for {
		batch, err := e.remote.EnumerateBranch(ctx, branchID, token)
		if err != nil {
			// Cursor untouched: the pass restarts from the same
			// checkpoint on the next cycle.
			return fmt.Errorf("enumerate branch %s: %w", branchID, err)
		}

		processed, err := e.processStubs(ctx, branchID, batch.Stubs, seen, status)
		changes += processed
		if err != nil {
			// Error limit exceeded mid-page. Persist the token that
			// re-fetches this page so the retry picks up here.
			if advErr := e.persistCursor(ctx, branchID, token, true); advErr != nil {
				return errors.Join(err, advErr)
			}
			return err
		}

		if batch.NextToken == "" {
			break
		}
		// Page done, checkpoint mid-listing. Partial until the
		// enumeration completes.
		if err := e.persistCursor(ctx, branchID, batch.NextToken, true); err != nil {
			return err
		}
		token = batch.NextToken
	}

	// Deletions can only be inferred from a listing walked start to
	// end within this pass.
	if !resumed {
		deleted, err := e.tombstoneMissing(ctx, branchID, seen, status)
		if err != nil {
			return err
		}
		changes += deleted
	}

	return e.finishPass(ctx, branchID, changes, resumed, status)
}

// SyncAll discovers the hierarchy and syncs every branch. It tries the
// flat whole-hierarchy listing first; when the remote store rejects it
// for having too many branches, it falls back to per-branch
// enumeration capped at MaxBranchesPerSync, stalest branches first.
func (e *SyncEngine) SyncAll(ctx context.Context) error {
	hierarchy, err := e.fetchHierarchy(ctx)
	if err != nil {
		return fmt.Errorf("fetch hierarchy: %w", err)
	}
	logger.Section("Sync")
	logger.Info("Syncing %d branches across %d notebooks",
		len(hierarchy.Branches), len(hierarchy.Notebooks))

	stubsByBranch, err := e.enumerateFlat(ctx)
	if err == nil {
		return e.syncFromFlatListing(ctx, hierarchy, stubsByBranch)
	}
	if !errors.Is(err, domain.ErrPaginationCeiling) {
		return fmt.Errorf("enumerate hierarchy: %w", err)
	}

	logger.Info("Flat listing rejected, walking branches individually")
	return e.syncPerBranch(ctx, hierarchy)
}

// Status reports progress for a branch sync in flight.
func (e *SyncEngine) Status(_ context.Context, branchID string) (*driving.SyncStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if status, ok := e.activeSyncs[branchID]; ok {
		copied := *status
		return &copied, nil
	}
	return &driving.SyncStatus{BranchID: branchID, Running: false}, nil
}

// syncFromFlatListing reconciles every branch against the grouped flat
// listing. Branches absent from the listing had all their pages
// removed remotely.
func (e *SyncEngine) syncFromFlatListing(
	ctx context.Context,
	hierarchy *domain.Hierarchy,
	stubsByBranch map[string][]domain.PageStub,
) error {
	branchIDs := hierarchy.BranchIDs()
	sort.Strings(branchIDs)

	return e.runBranchPool(ctx, branchIDs, func(ctx context.Context, branchID string) error {
		status, err := e.beginPass(branchID)
		if err != nil {
			return err
		}
		defer e.endPass(branchID)

		seen := make(map[string]bool)
		changes, err := e.processStubs(ctx, branchID, stubsByBranch[branchID], seen, status)
		if err != nil {
			if advErr := e.persistCursor(ctx, branchID, "", true); advErr != nil {
				return errors.Join(err, advErr)
			}
			return err
		}
		deleted, err := e.tombstoneMissing(ctx, branchID, seen, status)
		if err != nil {
			return err
		}
		return e.finishPass(ctx, branchID, changes+deleted, false, status)
	})
}

// syncPerBranch walks branches individually, stalest first, up to the
// configured ceiling. Deferred branches keep their old cursor and are
// picked up next cycle.
func (e *SyncEngine) syncPerBranch(ctx context.Context, hierarchy *domain.Hierarchy) error {
	branchIDs := e.branchesByStaleness(ctx, hierarchy)

	deferred := 0
	if len(branchIDs) > e.settings.MaxBranchesPerSync {
		deferred = len(branchIDs) - e.settings.MaxBranchesPerSync
		branchIDs = branchIDs[:e.settings.MaxBranchesPerSync]
	}

	err := e.runBranchPool(ctx, branchIDs, e.SyncBranch)
	if deferred > 0 {
		logger.Warn("Branch ceiling reached: %d branches deferred to the next cycle", deferred)
		err = errors.Join(err, fmt.Errorf("%w: %d branches deferred", domain.ErrPartialSync, deferred))
	}
	return err
}

// runBranchPool executes fn for each branch on a bounded worker pool.
func (e *SyncEngine) runBranchPool(
	ctx context.Context,
	branchIDs []string,
	fn func(ctx context.Context, branchID string) error,
) error {
	pool, err := ants.NewPool(e.settings.SyncWorkers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		emu  sync.Mutex
		errs []error
	)
	for _, branchID := range branchIDs {
		branchID := branchID
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := fn(ctx, branchID); err != nil {
				emu.Lock()
				errs = append(errs, fmt.Errorf("branch %s: %w", branchID, err))
				emu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			emu.Lock()
			errs = append(errs, fmt.Errorf("submit branch %s: %w", branchID, submitErr))
			emu.Unlock()
		}
	}
	wg.Wait()

	return errors.Join(errs...)
}

// branchesByStaleness orders branch ids by cursor checkpoint, oldest
// first. Branches with no cursor sort before everything.
func (e *SyncEngine) branchesByStaleness(ctx context.Context, hierarchy *domain.Hierarchy) []string {
	type staleness struct {
		id         string
		checkpoint time.Time
	}

	branches := make([]staleness, 0, len(hierarchy.Branches))
	for _, id := range hierarchy.BranchIDs() {
		entry := staleness{id: id}
		if cursor, err := e.cache.GetSyncCursor(ctx, id); err == nil {
			entry.checkpoint = cursor.Checkpoint
		}
		branches = append(branches, entry)
	}

	sort.Slice(branches, func(i, j int) bool {
		if !branches[i].checkpoint.Equal(branches[j].checkpoint) {
			return branches[i].checkpoint.Before(branches[j].checkpoint)
		}
		return branches[i].id < branches[j].id
	})

	ids := make([]string, len(branches))
	for i, b := range branches {
		ids[i] = b.id
	}
	return ids
}

// enumerateFlat lists the whole hierarchy through the flat endpoint
// and groups the stubs by branch. Continuation tokens are held
// in-memory only: an aborted flat pass advances no cursors.
func (e *SyncEngine) enumerateFlat(ctx context.Context) (map[string][]domain.PageStub, error) {
	stubsByBranch := make(map[string][]domain.PageStub)
	token := ""
	for {
		batch, err := e.remote.EnumerateAll(ctx, token)
		if err != nil {
			return nil, err
		}
		for _, stub := range batch.Stubs {
			stubsByBranch[stub.SectionID] = append(stubsByBranch[stub.SectionID], stub)
		}
		if batch.NextToken == "" {
			return stubsByBranch, nil
		}
		token = batch.NextToken
	}
}

// processStubs diffs one listing page against the cache and syncs the
// new and changed pages sequentially. Returns the number of documents
// written. Exceeding the branch error limit stops the pass with
// ErrPartialSync.
func (e *SyncEngine) processStubs(
	ctx context.Context,
	branchID string,
	stubs []domain.PageStub,
	seen map[string]bool,
	status *driving.SyncStatus,
) (int, error) {
	changes := 0
	for _, stub := range stubs {
		seen[stub.ID] = true
		if ctx.Err() != nil {
			return changes, ctx.Err()
		}

		existing, err := e.cache.GetDocument(ctx, stub.ID)
		if err == nil && !e.changed(existing, stub) {
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return changes, fmt.Errorf("get cached document %s: %w", stub.ID, err)
		}

		if err := e.processPage(ctx, stub); err != nil {
			errCount := e.recordError(status)
			logger.Warn("Failed to sync page %s: %v", stub.ID, err)
			if errCount > e.settings.BranchErrorLimit {
				return changes, fmt.Errorf("%w: branch %s stopped after %d errors",
					domain.ErrPartialSync, branchID, errCount)
			}
			continue
		}
		e.recordProcessed(status)
		changes++
	}
	return changes, nil
}

// changed reports whether a stub is newer than the cached document.
// A remote content hash decides when present; otherwise the
// last-modified timestamps do.
func (e *SyncEngine) changed(local *domain.Document, stub domain.PageStub) bool {
	if local.State == domain.DocStateError || local.State == domain.DocStateDeleted {
		return true
	}
	if stub.ContentHash != "" {
		return stub.ContentHash != local.ContentHash
	}
	return stub.RemoteModified.After(local.RemoteModified)
}

// processPage fetches, normalises, stores and indexes one page.
func (e *SyncEngine) processPage(ctx context.Context, stub domain.PageStub) error {
	raw, err := e.remote.FetchPage(ctx, stub.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Listed but gone by fetch time.
			return e.tombstone(ctx, stub.ID)
		}
		return fmt.Errorf("fetch page: %w", err)
	}

	result, err := e.registry.Normalise(ctx, raw)
	if err != nil {
		// Per-document failure: record and move on.
		if markErr := e.markError(ctx, raw); markErr != nil {
			logger.Warn("Failed to record error state for %s: %v", raw.ID, markErr)
		}
		return fmt.Errorf("normalise page: %w", err)
	}

	doc := e.buildDocument(raw, result)

	// Content-addressed short-circuit: identical hash means the chunk
	// set and embeddings are already current.
	if existing, err := e.cache.GetDocument(ctx, doc.ID); err == nil &&
		existing.ContentHash == doc.ContentHash && existing.Searchable() {
		doc.State = domain.DocStateFresh
		if err := e.cache.UpsertDocument(ctx, doc); err != nil {
			return fmt.Errorf("upsert document: %w", err)
		}
		return nil
	}

	chunks := e.chunker.Split(doc)
	e.embedChunks(ctx, doc.ID, chunks)

	// Two-phase write: stage the document in error state, replace the
	// chunks, then promote to fresh. If the chunk write fails the
	// document stays in error state and the next pass re-syncs it;
	// upserting the new hash as fresh first would strand stale chunks
	// behind a hash that never diffs again.
	staged := *doc
	staged.State = domain.DocStateError
	if err := e.cache.UpsertDocument(ctx, &staged); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if err := e.cache.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}
	if err := e.cache.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	if err := e.lexical.IndexDocument(ctx, doc); err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	if err := e.vector.RemoveDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("clear vectors: %w", err)
	}
	for _, chunk := range chunks {
		if chunk.State != domain.ChunkStateOK || len(chunk.Embedding) == 0 {
			continue
		}
		if err := e.vector.Add(ctx, doc.ID, chunk.ID, chunk.Embedding); err != nil {
			return fmt.Errorf("add vector: %w", err)
		}
	}
	return nil
}

// embedChunks generates embeddings with bounded retries. A chunk that
// still fails is marked embedding-error and stays reachable through
// lexical search; the sync continues.
func (e *SyncEngine) embedChunks(ctx context.Context, documentID string, chunks []domain.Chunk) {
	if e.embedder == nil || len(chunks) == 0 {
		return
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	var embeddings [][]float32
	err := retryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = e.embedder.EmbedBatch(ctx, texts)
		return err
	}, embedMaxAttempts, embedBaseDelay)

	if err != nil || len(embeddings) != len(chunks) {
		logger.Warn("Embedding failed for document %s after %d attempts: %v",
			documentID, embedMaxAttempts, err)
		for i := range chunks {
			chunks[i].State = domain.ChunkStateEmbeddingError
		}
		return
	}

	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
		chunks[i].State = domain.ChunkStateOK
	}
}

// buildDocument assembles the canonical document from a raw page and
// its normalisation result.
func (e *SyncEngine) buildDocument(raw *domain.RawPage, result *driven.NormaliseResult) *domain.Document {
	path := raw.Title
	e.hmu.RLock()
	if e.hierarchy != nil {
		if prefix, ok := e.hierarchy.Resolve(raw.SectionID); ok {
			path = prefix + "/" + raw.Title
		}
	}
	e.hmu.RUnlock()

	return &domain.Document{
		ID:             raw.ID,
		NotebookID:     raw.NotebookID,
		SectionID:      raw.SectionID,
		Path:           path,
		Title:          raw.Title,
		Content:        result.Text,
		ContentHash:    result.ContentHash,
		RemoteModified: raw.RemoteModified,
		LastSynced:     time.Now().UTC(),
		State:          domain.DocStateFresh,
	}
}

// markError records a per-document failure without losing the prior
// cached content.
func (e *SyncEngine) markError(ctx context.Context, raw *domain.RawPage) error {
	doc, err := e.cache.GetDocument(ctx, raw.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		doc = &domain.Document{
			ID:         raw.ID,
			NotebookID: raw.NotebookID,
			SectionID:  raw.SectionID,
			Title:      raw.Title,
		}
	}
	doc.State = domain.DocStateError
	doc.RemoteModified = raw.RemoteModified
	doc.LastSynced = time.Now().UTC()
	return e.cache.UpsertDocument(ctx, doc)
}

// tombstoneMissing soft-deletes cached documents that vanished from a
// fully enumerated branch listing.
func (e *SyncEngine) tombstoneMissing(
	ctx context.Context,
	branchID string,
	seen map[string]bool,
	status *driving.SyncStatus,
) (int, error) {
	local, err := e.cache.ListByBranch(ctx, branchID)
	if err != nil {
		return 0, fmt.Errorf("list cached branch %s: %w", branchID, err)
	}

	deleted := 0
	for i := range local {
		doc := &local[i]
		if seen[doc.ID] || doc.State == domain.DocStateDeleted {
			continue
		}
		if err := e.tombstone(ctx, doc.ID); err != nil {
			e.recordError(status)
			logger.Warn("Failed to tombstone page %s: %v", doc.ID, err)
			continue
		}
		e.recordProcessed(status)
		deleted++
	}
	return deleted, nil
}

// tombstone soft-deletes a page and unindexes it.
func (e *SyncEngine) tombstone(ctx context.Context, id string) error {
	if err := e.cache.MarkDeleted(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("mark deleted: %w", err)
	}
	if err := e.lexical.RemoveDocument(ctx, id); err != nil {
		return fmt.Errorf("remove postings: %w", err)
	}
	if err := e.vector.RemoveDocument(ctx, id); err != nil {
		return fmt.Errorf("remove vectors: %w", err)
	}
	return nil
}

// finishPass seals a completed branch pass. A no-op pass over an
// already complete, non-partial branch leaves the cursor untouched so
// repeated syncs stay idempotent.
func (e *SyncEngine) finishPass(ctx context.Context, branchID string, changes int, resumed bool, status *driving.SyncStatus) error {
	cursor, err := e.cache.GetSyncCursor(ctx, branchID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("get cursor: %w", err)
	}
	if err == nil && changes == 0 && status.ErrorCount == 0 &&
		!resumed && !cursor.Partial && cursor.Token == "" {
		logger.Debug("Branch %s unchanged, cursor stays at generation %d", branchID, cursor.Generation)
		return nil
	}
	return e.persistCursor(ctx, branchID, "", false)
}

// persistCursor advances the branch cursor to the next generation with
// the given continuation token and partial flag.
func (e *SyncEngine) persistCursor(ctx context.Context, branchID, token string, partial bool) error {
	cursor, err := e.cache.GetSyncCursor(ctx, branchID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get cursor: %w", err)
		}
		cursor = &domain.SyncCursor{BranchID: branchID}
	}
	next := cursor.Advance(token, partial, time.Now().UTC())
	if err := e.cache.SetSyncCursor(ctx, next); err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}

// loadHierarchy returns the cached hierarchy, fetching it on first use.
func (e *SyncEngine) loadHierarchy(ctx context.Context) (*domain.Hierarchy, error) {
	e.hmu.RLock()
	h := e.hierarchy
	e.hmu.RUnlock()
	if h != nil {
		return h, nil
	}
	return e.fetchHierarchy(ctx)
}

// fetchHierarchy refreshes the notebook/section tree from the remote.
func (e *SyncEngine) fetchHierarchy(ctx context.Context) (*domain.Hierarchy, error) {
	h, err := e.remote.FetchHierarchy(ctx)
	if err != nil {
		return nil, err
	}
	e.hmu.Lock()
	e.hierarchy = h
	e.hmu.Unlock()
	return h, nil
}

// beginPass registers a branch pass, rejecting concurrent passes for
// the same branch.
func (e *SyncEngine) beginPass(branchID string) (*driving.SyncStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.activeSyncs[branchID]; ok {
		return nil, fmt.Errorf("%w: branch %s", domain.ErrSyncInProgress, branchID)
	}
	status := &driving.SyncStatus{BranchID: branchID, Running: true}
	e.activeSyncs[branchID] = status
	return status, nil
}

func (e *SyncEngine) endPass(branchID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.activeSyncs, branchID)
}

// recordProcessed and recordError mutate pass counters under the lock
// Status copies them with.
func (e *SyncEngine) recordProcessed(status *driving.SyncStatus) {
	e.mu.Lock()
	status.DocumentsProcessed++
	e.mu.Unlock()
}

func (e *SyncEngine) recordError(status *driving.SyncStatus) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	status.ErrorCount++
	return status.ErrorCount
}
