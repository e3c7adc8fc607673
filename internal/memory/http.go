package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds every backend call.
	DefaultTimeout = 30 * time.Second

	// DefaultApp tags stored memories with the application that wrote
	// them.
	DefaultApp = "parley-voice"

	// searchLimit caps results per tool-initiated search.
	searchLimit = 10
)

// Client is a direct HTTP client for an agent-memory-server-compatible
// backend.
type Client struct {
	baseURL string
	app     string
	token   string
	client  *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithApp sets the application tag attached to stored memories.
func WithApp(app string) ClientOption {
	return func(c *Client) {
		if app != "" {
			c.app = app
		}
	}
}

// WithAuthToken sets a bearer token sent on every request.
func WithAuthToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a memory backend client.
// baseURL should be like "http://localhost:8000".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL: baseURL,
		app:     DefaultApp,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries long-term memory with semantic search, scoped to userID.
func (c *Client) Search(ctx context.Context, query, userID string) ([]Record, error) {
	req := searchRequest{
		Text:   query,
		UserID: idFilter{Eq: userID},
		Limit:  searchLimit,
	}

	var resp searchResponse
	if err := c.post(ctx, "/v1/long-term-memory/search", req, &resp); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(resp.Memories))
	for _, m := range resp.Memories {
		records = append(records, Record{
			ID:        m.ID,
			Content:   m.Text,
			Score:     1 - m.Dist,
			Topics:    m.Topics,
			CreatedAt: m.CreatedAt,
		})
	}
	return records, nil
}

// Add stores one fact for userID. The backend answers 409 Conflict when
// it deduplicates the fact against an existing memory; that maps to a
// (nil, nil) return.
func (c *Client) Add(ctx context.Context, text, userID string) (*Record, error) {
	id := newMemoryID()
	req := createRequest{
		Memories: []createMemory{{
			ID:         id,
			Text:       text,
			MemoryType: "semantic",
			UserID:     userID,
			Topics:     []string{c.app},
		}},
	}

	if err := c.post(ctx, "/v1/long-term-memory/", req, nil); err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.status == http.StatusConflict {
			return nil, nil
		}
		return nil, err
	}

	return &Record{ID: id, Content: text, Topics: []string{c.app}}, nil
}

// ListRecent returns up to limit memories for userID. The backend has no
// listing endpoint, so this is an empty-text search.
func (c *Client) ListRecent(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = searchLimit
	}
	req := searchRequest{
		Text:   "",
		UserID: idFilter{Eq: userID},
		Limit:  limit,
	}

	var resp searchResponse
	if err := c.post(ctx, "/v1/long-term-memory/search", req, &resp); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(resp.Memories))
	for _, m := range resp.Memories {
		records = append(records, Record{
			ID:        m.ID,
			Content:   m.Text,
			Topics:    m.Topics,
			CreatedAt: m.CreatedAt,
		})
	}
	return records, nil
}

// DeleteAll removes every memory for userID.
func (c *Client) DeleteAll(ctx context.Context, userID string) (int, error) {
	req := forgetRequest{UserID: userID, DryRun: false}

	var resp forgetResponse
	if err := c.post(ctx, "/v1/long-term-memory/forget", req, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// post sends a JSON request and decodes the response into out (skipped
// when out is nil).
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{status: resp.StatusCode, body: string(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func newMemoryID() string {
	return "parley-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// apiError is a non-2xx backend response.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.status, e.body)
}

// API request/response structures

type createRequest struct {
	Memories []createMemory `json:"memories"`
}

type createMemory struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	MemoryType string   `json:"memory_type"`
	UserID     string   `json:"user_id"`
	Topics     []string `json:"topics"`
}

type searchRequest struct {
	Text   string   `json:"text"`
	UserID idFilter `json:"user_id"`
	Limit  int      `json:"limit"`
}

type idFilter struct {
	Eq string `json:"eq"`
}

type searchResponse struct {
	Memories []resultMemory `json:"memories"`
}

type resultMemory struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Dist      float64  `json:"dist"`
	Topics    []string `json:"topics"`
	CreatedAt string   `json:"created_at"`
}

type forgetRequest struct {
	UserID string `json:"user_id"`
	DryRun bool   `json:"dry_run"`
}

type forgetResponse struct {
	Deleted int `json:"deleted"`
}
