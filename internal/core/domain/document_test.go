package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentSearchable(t *testing.T) {
	tests := []struct {
		state DocState
		want  bool
	}{
		{DocStateFresh, true},
		{DocStateStale, true},
		{DocStateDeleted, false},
		{DocStateError, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			doc := Document{ID: "p1", State: tt.state}
			assert.Equal(t, tt.want, doc.Searchable())
		})
	}
}

func TestHierarchyResolve(t *testing.T) {
	h := NewHierarchy()
	h.Notebooks["nb-1"] = Notebook{ID: "nb-1", Name: "Work"}
	h.Branches["sec-1"] = Branch{ID: "sec-1", NotebookID: "nb-1", Name: "Planning"}
	h.Branches["sec-orphan"] = Branch{ID: "sec-orphan", NotebookID: "nb-gone", Name: "Orphan"}

	path, ok := h.Resolve("sec-1")
	assert.True(t, ok)
	assert.Equal(t, "Work/Planning", path)

	// A branch whose notebook is unknown cannot be resolved.
	_, ok = h.Resolve("sec-orphan")
	assert.False(t, ok)

	_, ok = h.Resolve("nope")
	assert.False(t, ok)
}

func TestSettingsNormalise(t *testing.T) {
	s := Settings{}.Normalise()

	assert.Equal(t, DefaultFreshnessWindow, s.FreshnessWindow)
	assert.Equal(t, DefaultMinLocalResults, s.MinLocalResults)
	assert.Equal(t, DefaultSyncWorkers, s.SyncWorkers)
	assert.Equal(t, DefaultChunkSize, s.ChunkSize)

	// Overlap must stay below chunk size.
	s = Settings{ChunkSize: 100, ChunkOverlap: 150}.Normalise()
	assert.Equal(t, 20, s.ChunkOverlap)
}
