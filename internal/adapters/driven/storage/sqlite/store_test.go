package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDoc(id, branch string, modified time.Time) *domain.Document {
	return &domain.Document{
		ID:             id,
		NotebookID:     "nb-1",
		SectionID:      branch,
		Path:           "Work/Planning/" + id,
		Title:          id,
		Content:        "content of " + id,
		ContentHash:    "hash-" + id,
		RemoteModified: modified,
		LastSynced:     modified,
		State:          domain.DocStateFresh,
	}
}

func TestUpsertAndGetDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	modified := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	doc := testDoc("p1", "sec-1", modified)
	require.NoError(t, store.UpsertDocument(ctx, doc))

	got, err := store.GetDocument(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.ContentHash, got.ContentHash)
	assert.True(t, got.RemoteModified.Equal(modified))
	assert.Equal(t, domain.DocStateFresh, got.State)

	// Upsert replaces in place.
	doc.Content = "updated"
	doc.ContentHash = "hash-2"
	require.NoError(t, store.UpsertDocument(ctx, doc))

	got, err = store.GetDocument(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Content)

	_, err = store.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByBranchOrderedByPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"b-page", "a-page", "c-page"} {
		doc := testDoc(id, "sec-1", now)
		doc.Path = "Work/Planning/" + id
		require.NoError(t, store.UpsertDocument(ctx, doc))
	}
	require.NoError(t, store.UpsertDocument(ctx, testDoc("other", "sec-2", now)))

	docs, err := store.ListByBranch(ctx, "sec-1")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a-page", docs[0].ID)
	assert.Equal(t, "b-page", docs[1].ID)
	assert.Equal(t, "c-page", docs[2].ID)
}

func TestListRecentlyModified(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertDocument(ctx, testDoc("old", "sec-1", base)))
	require.NoError(t, store.UpsertDocument(ctx, testDoc("new", "sec-1", base.Add(2*time.Hour))))
	require.NoError(t, store.UpsertDocument(ctx, testDoc("mid", "sec-1", base.Add(time.Hour))))

	// Tombstones never appear.
	require.NoError(t, store.UpsertDocument(ctx, testDoc("gone", "sec-1", base.Add(3*time.Hour))))
	require.NoError(t, store.MarkDeleted(ctx, "gone"))

	docs, err := store.ListRecentlyModified(ctx, 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "new", docs[0].ID)
	assert.Equal(t, "mid", docs[1].ID)
}

func TestMarkDeletedKeepsTombstone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := testDoc("p1", "sec-1", time.Now().UTC())
	require.NoError(t, store.UpsertDocument(ctx, doc))
	require.NoError(t, store.ReplaceChunks(ctx, "p1", []domain.Chunk{
		{ID: "c1", DocumentID: "p1", Content: "x", State: domain.ChunkStateOK},
	}))

	require.NoError(t, store.MarkDeleted(ctx, "p1"))

	got, err := store.GetDocument(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.DocStateDeleted, got.State)
	assert.Empty(t, got.Content)

	chunks, err := store.GetChunks(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	assert.ErrorIs(t, store.MarkDeleted(ctx, "missing"), domain.ErrNotFound)
}

func TestReplaceChunksRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, testDoc("p1", "sec-1", time.Now().UTC())))

	chunks := []domain.Chunk{
		{ID: "c1", DocumentID: "p1", Position: 0, StartOffset: 0, EndOffset: 5,
			Content: "hello", Embedding: []float32{0.1, 0.2, 0.3}, State: domain.ChunkStateOK},
		{ID: "c2", DocumentID: "p1", Position: 1, StartOffset: 3, EndOffset: 8,
			Content: "lo wo", State: domain.ChunkStateEmbeddingError},
	}
	require.NoError(t, store.ReplaceChunks(ctx, "p1", chunks))

	got, err := store.GetChunks(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got[0].Embedding)
	assert.Nil(t, got[1].Embedding)
	assert.Equal(t, domain.ChunkStateEmbeddingError, got[1].State)

	one, err := store.GetChunk(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hello", one.Content)

	// Mismatched ownership is rejected.
	err = store.ReplaceChunks(ctx, "p1", []domain.Chunk{{ID: "cx", DocumentID: "p2"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReplaceChunksAtomicUnderConcurrentReads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, testDoc("p1", "sec-1", time.Now().UTC())))

	oldSet := []domain.Chunk{
		{ID: "old-0", DocumentID: "p1", Position: 0, Content: "old", State: domain.ChunkStateOK},
		{ID: "old-1", DocumentID: "p1", Position: 1, Content: "old", State: domain.ChunkStateOK},
	}
	newSet := []domain.Chunk{
		{ID: "new-0", DocumentID: "p1", Position: 0, Content: "new", State: domain.ChunkStateOK},
		{ID: "new-1", DocumentID: "p1", Position: 1, Content: "new", State: domain.ChunkStateOK},
	}
	require.NoError(t, store.ReplaceChunks(ctx, "p1", oldSet))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			chunks, err := store.GetChunks(ctx, "p1")
			assert.NoError(t, err)
			// The swap runs in one transaction, so readers never see an
			// empty or mixed set.
			if !assert.Len(t, chunks, 2) {
				continue
			}
			want := chunks[0].Content
			for _, ch := range chunks {
				assert.Equal(t, want, ch.Content)
			}
		}
	}()

	for i := 0; i < 25; i++ {
		set := oldSet
		if i%2 == 1 {
			set = newSet
		}
		require.NoError(t, store.ReplaceChunks(ctx, "p1", set))
	}
	close(done)
	wg.Wait()
}

func TestSyncCursorMonotonicAdvance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetSyncCursor(ctx, "sec-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first := domain.SyncCursor{
		BranchID:   "sec-1",
		Token:      "tok-1",
		Checkpoint: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Generation: 1,
	}
	require.NoError(t, store.SetSyncCursor(ctx, first))

	second := first.Advance("", false, first.Checkpoint.Add(time.Hour))
	require.NoError(t, store.SetSyncCursor(ctx, second))

	// A stale writer trying to regress is dropped silently.
	require.NoError(t, store.SetSyncCursor(ctx, first))

	got, err := store.GetSyncCursor(ctx, "sec-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Generation)
	assert.Empty(t, got.Token)
	assert.False(t, got.Partial)
}

func TestSyncCursorPartialFlag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cursor := domain.SyncCursor{
		BranchID:   "sec-1",
		Token:      "resume-here",
		Checkpoint: time.Now().UTC(),
		Generation: 1,
		Partial:    true,
	}
	require.NoError(t, store.SetSyncCursor(ctx, cursor))

	got, err := store.GetSyncCursor(ctx, "sec-1")
	require.NoError(t, err)
	assert.True(t, got.Partial)
	assert.Equal(t, "resume-here", got.Token)
}

func TestListStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	stale := testDoc("stale", "sec-1", base)
	stale.LastSynced = base
	require.NoError(t, store.UpsertDocument(ctx, stale))

	fresh := testDoc("fresh", "sec-1", base)
	fresh.LastSynced = base.Add(48 * time.Hour)
	require.NoError(t, store.UpsertDocument(ctx, fresh))

	docs, err := store.ListStale(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "stale", docs[0].ID)
}
