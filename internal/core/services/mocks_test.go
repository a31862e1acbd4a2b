package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
)

// fakeRemote is an in-memory remote store with adjustable behaviour.
type fakeRemote struct {
	mu        sync.Mutex
	hierarchy *domain.Hierarchy
	pages     map[string]*domain.RawPage

	// pageSize bounds enumeration batches; 0 means everything at once.
	pageSize int

	// flatCeiling makes the flat listing fail with ErrPaginationCeiling.
	flatCeiling bool

	// fetchDelay simulates a slow remote store.
	fetchDelay time.Duration

	// enumerateErr fails branch enumeration when set.
	enumerateErr error

	fetchCalls int
	enumCalls  int
}

var _ driven.RemoteStore = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		hierarchy: domain.NewHierarchy(),
		pages:     make(map[string]*domain.RawPage),
	}
}

func (r *fakeRemote) addBranch(notebookID, branchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hierarchy.Notebooks[notebookID] = domain.Notebook{ID: notebookID, Name: "nb-" + notebookID}
	r.hierarchy.Branches[branchID] = domain.Branch{ID: branchID, NotebookID: notebookID, Name: "sec-" + branchID}
}

func (r *fakeRemote) putPage(id, branchID, content string, modified time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[id] = &domain.RawPage{
		ID:             id,
		NotebookID:     "nb1",
		SectionID:      branchID,
		Title:          "title-" + id,
		ContentType:    domain.ContentTypeMarkdown,
		Content:        []byte(content),
		RemoteModified: modified,
	}
}

func (r *fakeRemote) removePage(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pages, id)
}

func (r *fakeRemote) fetchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetchCalls
}

func (r *fakeRemote) FetchHierarchy(_ context.Context) (*domain.Hierarchy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := domain.NewHierarchy()
	for id, nb := range r.hierarchy.Notebooks {
		copied.Notebooks[id] = nb
	}
	for id, br := range r.hierarchy.Branches {
		copied.Branches[id] = br
	}
	return copied, nil
}

func (r *fakeRemote) EnumerateAll(_ context.Context, pageToken string) (*driven.RemoteBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enumCalls++
	if r.flatCeiling {
		return nil, domain.ErrPaginationCeiling
	}
	return r.paginate(r.stubsLocked(""), pageToken)
}

func (r *fakeRemote) EnumerateBranch(_ context.Context, branchID, pageToken string) (*driven.RemoteBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enumCalls++
	if r.enumerateErr != nil {
		return nil, r.enumerateErr
	}
	return r.paginate(r.stubsLocked(branchID), pageToken)
}

func (r *fakeRemote) FetchPage(ctx context.Context, id string) (*domain.RawPage, error) {
	r.mu.Lock()
	r.fetchCalls++
	page, ok := r.pages[id]
	delay := r.fetchDelay
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *page
	return &copied, nil
}

// stubsLocked lists stubs newest first; empty branchID means all.
func (r *fakeRemote) stubsLocked(branchID string) []domain.PageStub {
	var stubs []domain.PageStub
	for _, page := range r.pages {
		if branchID != "" && page.SectionID != branchID {
			continue
		}
		stubs = append(stubs, domain.PageStub{
			ID:             page.ID,
			SectionID:      page.SectionID,
			Title:          page.Title,
			RemoteModified: page.RemoteModified,
		})
	}
	sort.Slice(stubs, func(i, j int) bool {
		if !stubs[i].RemoteModified.Equal(stubs[j].RemoteModified) {
			return stubs[i].RemoteModified.After(stubs[j].RemoteModified)
		}
		return stubs[i].ID < stubs[j].ID
	})
	return stubs
}

func (r *fakeRemote) paginate(stubs []domain.PageStub, pageToken string) (*driven.RemoteBatch, error) {
	offset := 0
	if pageToken != "" {
		var err error
		offset, err = strconv.Atoi(pageToken)
		if err != nil {
			return nil, fmt.Errorf("%w: bad page token %q", domain.ErrInvalidInput, pageToken)
		}
	}
	if offset >= len(stubs) {
		return &driven.RemoteBatch{}, nil
	}

	size := r.pageSize
	if size <= 0 {
		size = len(stubs)
	}
	end := offset + size
	next := ""
	if end < len(stubs) {
		next = strconv.Itoa(end)
	} else {
		end = len(stubs)
	}
	return &driven.RemoteBatch{Stubs: stubs[offset:end], NextToken: next}, nil
}

// stubRegistry normalises raw pages to their literal content. Pages
// whose content is "MALFORMED" fail.
type stubRegistry struct{}

var _ driven.NormaliserRegistry = (*stubRegistry)(nil)

func (stubRegistry) Normalise(_ context.Context, raw *domain.RawPage) (*driven.NormaliseResult, error) {
	text := string(raw.Content)
	if text == "MALFORMED" {
		return nil, fmt.Errorf("%w: unparseable payload", domain.ErrMalformedContent)
	}
	sum := sha256.Sum256([]byte(text))
	return &driven.NormaliseResult{Text: text, ContentHash: hex.EncodeToString(sum[:])}, nil
}

// fakeEmbedder produces deterministic vectors from character counts.
type fakeEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int
}

var _ driven.EmbeddingService = (*fakeEmbedder)(nil)

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 8)
		for _, r := range text {
			vec[int(r)%8]++
		}
		out[i] = vec
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int              { return 8 }
func (e *fakeEmbedder) ModelName() string            { return "fake-embed" }
func (e *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (e *fakeEmbedder) Close() error                 { return nil }
