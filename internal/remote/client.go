package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
	"github.com/notedex/notedex/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// ceilingErrorCode is the remote error code for a flat listing
	// rejected because the hierarchy has too many branches.
	ceilingErrorCode = "pagination_ceiling"
)

// Ensure Client implements the interface.
var _ driven.RemoteStore = (*Client)(nil)

// Client is the HTTP client for the notebook API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	limiter     *RateLimiter
}

// NewClient creates a client for the notebook API at baseURL. The token
// source supplies bearer credentials (refreshed transparently by the
// oauth2 layer); the rate limiter is shared process-wide and must be the
// same instance for every component that reaches the network.
func NewClient(baseURL string, tokenSource oauth2.TokenSource, limiter *RateLimiter) *Client {
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		tokenSource: tokenSource,
		limiter:     limiter,
	}
}

// --- wire types ---

type hierarchyResponse struct {
	Notebooks []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"notebooks"`
	Sections []struct {
		ID         string `json:"id"`
		NotebookID string `json:"notebookId"`
		Name       string `json:"name"`
	} `json:"sections"`
}

type pageStub struct {
	ID           string    `json:"id"`
	SectionID    string    `json:"sectionId"`
	Title        string    `json:"title"`
	LastModified time.Time `json:"lastModified"`
	ContentHash  string    `json:"contentHash,omitempty"`
}

type listResponse struct {
	Pages     []pageStub `json:"pages"`
	NextToken string     `json:"nextToken,omitempty"`
}

type pageResponse struct {
	ID           string    `json:"id"`
	NotebookID   string    `json:"notebookId"`
	SectionID    string    `json:"sectionId"`
	Title        string    `json:"title"`
	ContentType  string    `json:"contentType"`
	Content      string    `json:"content"`
	LastModified time.Time `json:"lastModified"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchHierarchy returns the notebook/section tree.
func (c *Client) FetchHierarchy(ctx context.Context) (*domain.Hierarchy, error) {
	var resp hierarchyResponse
	if err := c.getJSON(ctx, "/v1/hierarchy", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch hierarchy: %w", err)
	}

	h := domain.NewHierarchy()
	for _, nb := range resp.Notebooks {
		h.Notebooks[nb.ID] = domain.Notebook{ID: nb.ID, Name: nb.Name}
	}
	for _, sec := range resp.Sections {
		h.Branches[sec.ID] = domain.Branch{ID: sec.ID, NotebookID: sec.NotebookID, Name: sec.Name}
	}
	return h, nil
}

// EnumerateAll lists page stubs across the whole hierarchy.
func (c *Client) EnumerateAll(ctx context.Context, pageToken string) (*driven.RemoteBatch, error) {
	query := url.Values{}
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	var resp listResponse
	if err := c.getJSON(ctx, "/v1/pages", query, &resp); err != nil {
		return nil, fmt.Errorf("enumerate all: %w", err)
	}
	return toBatch(&resp), nil
}

// EnumerateBranch lists page stubs for one section.
func (c *Client) EnumerateBranch(ctx context.Context, branchID, pageToken string) (*driven.RemoteBatch, error) {
	query := url.Values{}
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	var resp listResponse
	if err := c.getJSON(ctx, "/v1/sections/"+url.PathEscape(branchID)+"/pages", query, &resp); err != nil {
		return nil, fmt.Errorf("enumerate branch %s: %w", branchID, err)
	}
	return toBatch(&resp), nil
}

// FetchPage fetches one raw page payload by id.
func (c *Client) FetchPage(ctx context.Context, id string) (*domain.RawPage, error) {
	var resp pageResponse
	if err := c.getJSON(ctx, "/v1/pages/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", id, err)
	}

	return &domain.RawPage{
		ID:             resp.ID,
		NotebookID:     resp.NotebookID,
		SectionID:      resp.SectionID,
		Title:          resp.Title,
		ContentType:    domain.ContentType(resp.ContentType),
		Content:        []byte(resp.Content),
		RemoteModified: resp.LastModified,
	}, nil
}

func toBatch(resp *listResponse) *driven.RemoteBatch {
	batch := &driven.RemoteBatch{NextToken: resp.NextToken}
	for _, p := range resp.Pages {
		batch.Stubs = append(batch.Stubs, domain.PageStub{
			ID:             p.ID,
			SectionID:      p.SectionID,
			Title:          p.Title,
			RemoteModified: p.LastModified,
			ContentHash:    p.ContentHash,
		})
	}
	return batch
}

// getJSON performs a rate-governed authenticated GET and decodes the body.
// A 401 triggers one fresh credential fetch and a single retry.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.send(ctx, path, query)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		logger.Debug("401 from %s, refreshing credential", path)

		resp, err = c.send(ctx, path, query)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return domain.ErrUnauthorized
		}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, c.limiter); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send waits for rate capacity, attaches the bearer credential and
// performs the request.
func (c *Client) send(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}

// checkStatus maps non-2xx responses to domain errors.
func checkStatus(resp *http.Response, limiter *RateLimiter) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ae apiError
	_ = json.Unmarshal(body, &ae)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		limiter.UpdateFromResponse(resp)
		return domain.ErrRateLimited
	case http.StatusRequestEntityTooLarge, http.StatusBadRequest:
		if ae.Error.Code == ceilingErrorCode {
			return domain.ErrPaginationCeiling
		}
	}

	if ae.Error.Message != "" {
		return fmt.Errorf("remote error (status %d): %s", resp.StatusCode, ae.Error.Message)
	}
	return fmt.Errorf("remote error (status %d)", resp.StatusCode)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
