package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driving"
)

// mockSearchService returns canned results.
type mockSearchService struct {
	results []domain.SearchResult
	err     error

	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastQuery = query
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// mockSyncOrchestrator records invocations.
type mockSyncOrchestrator struct {
	syncAllErr    error
	syncBranchErr error
	status        *driving.SyncStatus

	syncAllCalls int
	syncedBranch string
}

func (m *mockSyncOrchestrator) SyncAll(context.Context) error {
	m.syncAllCalls++
	return m.syncAllErr
}

func (m *mockSyncOrchestrator) SyncBranch(_ context.Context, branchID string) error {
	m.syncedBranch = branchID
	return m.syncBranchErr
}

func (m *mockSyncOrchestrator) RebuildIndexes(context.Context) error { return nil }

func (m *mockSyncOrchestrator) Status(_ context.Context, branchID string) (*driving.SyncStatus, error) {
	if m.status != nil {
		return m.status, nil
	}
	return &driving.SyncStatus{BranchID: branchID}, nil
}

// mockDocumentService serves a fixed document set.
type mockDocumentService struct {
	docs map[string]*domain.Document
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: page %s", domain.ErrNotFound, id)
	}
	return doc, nil
}

func (m *mockDocumentService) ListRecentlyModified(_ context.Context, limit int) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range m.docs {
		out = append(out, *doc)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// setupTestServices installs mocks for every service handle and
// returns a cleanup that restores the previous wiring.
func setupTestServices() func() {
	oldSearch := searchService
	oldSync := syncOrchestrator
	oldDocument := documentService

	searchService = &mockSearchService{
		results: []domain.SearchResult{
			{
				Document: domain.Document{
					ID:    "page-1",
					Title: "Team offsite notes",
					Path:  "Work/Planning/Team offsite notes",
				},
				Score:      0.9,
				Provenance: domain.ProvenanceLexical,
				Highlights: []string{"Discussed the team offsite agenda."},
			},
		},
	}
	syncOrchestrator = &mockSyncOrchestrator{}
	documentService = &mockDocumentService{
		docs: map[string]*domain.Document{
			"page-1": {
				ID:             "page-1",
				Title:          "Team offsite notes",
				Path:           "Work/Planning/Team offsite notes",
				SectionID:      "sec-1",
				Content:        "Discussed the team offsite agenda.",
				State:          domain.DocStateFresh,
				RemoteModified: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				LastSynced:     time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC),
			},
		},
	}

	return func() {
		searchService = oldSearch
		syncOrchestrator = oldSync
		documentService = oldDocument
	}
}
