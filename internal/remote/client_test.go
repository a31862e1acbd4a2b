package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/notedex/notedex/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-1"})
	return NewClient(srv.URL, ts, NewRateLimiter(1000, 1000))
}

func TestFetchHierarchy(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/hierarchy", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"notebooks": [{"id": "nb-1", "name": "Work"}],
			"sections": [{"id": "sec-1", "notebookId": "nb-1", "name": "Planning"}]
		}`))
	}))

	h, err := client.FetchHierarchy(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.Notebooks, 1)
	require.Len(t, h.Branches, 1)
	assert.Equal(t, "nb-1", h.Branches["sec-1"].NotebookID)
}

func TestEnumerateBranchPagination(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sections/sec-1/pages", r.URL.Path)
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{"pages": [{"id": "p1", "sectionId": "sec-1", "title": "One"}], "nextToken": "t2"}`))
			return
		}
		assert.Equal(t, "t2", r.URL.Query().Get("pageToken"))
		w.Write([]byte(`{"pages": [{"id": "p2", "sectionId": "sec-1", "title": "Two"}]}`))
	}))

	ctx := context.Background()
	first, err := client.EnumerateBranch(ctx, "sec-1", "")
	require.NoError(t, err)
	require.Len(t, first.Stubs, 1)
	assert.Equal(t, "t2", first.NextToken)

	second, err := client.EnumerateBranch(ctx, "sec-1", first.NextToken)
	require.NoError(t, err)
	require.Len(t, second.Stubs, 1)
	assert.Empty(t, second.NextToken)
	assert.Equal(t, "p2", second.Stubs[0].ID)
}

func TestEnumerateAllCeiling(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		w.Write([]byte(`{"error": {"code": "pagination_ceiling", "message": "too many sections"}}`))
	}))

	_, err := client.EnumerateAll(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrPaginationCeiling)
}

func TestFetchPageNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"code": "not_found", "message": "gone"}}`))
	}))

	_, err := client.FetchPage(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchPagePayload(t *testing.T) {
	modified := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/pages/p1", r.URL.Path)
		w.Write([]byte(`{
			"id": "p1", "notebookId": "nb-1", "sectionId": "sec-1",
			"title": "Budget", "contentType": "text/html",
			"content": "<p>hello</p>", "lastModified": "2026-02-10T09:30:00Z"
		}`))
	}))

	page, err := client.FetchPage(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.ContentTypeHTML, page.ContentType)
	assert.Equal(t, []byte("<p>hello</p>"), page.Content)
	assert.True(t, page.RemoteModified.Equal(modified))
}

func TestUnauthorizedRefreshOnce(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"pages": []}`))
	}))

	_, err := client.EnumerateAll(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestUnauthorizedSurfacedAfterRetry(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.EnumerateAll(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRateLimitedResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderRetryAfter, "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.EnumerateAll(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.True(t, client.limiter.HoldOffUntil().After(time.Now()))
}

func TestLimiterDeadline(t *testing.T) {
	// Bucket with no burst capacity left: second acquire must wait ~1s,
	// but the context only allows 10ms.
	limiter := NewRateLimiter(1, 1)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
