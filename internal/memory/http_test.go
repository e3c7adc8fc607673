package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchMapsResults(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"memories":[
			{"id":"m1","text":"likes jazz","dist":0.2,"topics":["parley-voice"],"created_at":"2026-01-10T12:00:00Z"},
			{"id":"m2","text":"has a dog","dist":0.4}
		]}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	records, err := c.Search(context.Background(), "music", "alice")
	require.NoError(t, err)

	assert.Equal(t, "/v1/long-term-memory/search", gotPath)
	assert.Equal(t, "music", gotBody["text"])
	assert.Equal(t, map[string]any{"eq": "alice"}, gotBody["user_id"])
	assert.Equal(t, float64(10), gotBody["limit"])

	require.Len(t, records, 2)
	assert.Equal(t, "m1", records[0].ID)
	assert.Equal(t, "likes jazz", records[0].Content)
	assert.InDelta(t, 0.8, records[0].Score, 1e-9)
	assert.Equal(t, []string{"parley-voice"}, records[0].Topics)
	assert.Equal(t, "2026-01-10T12:00:00Z", records[0].CreatedAt)
	assert.InDelta(t, 0.6, records[1].Score, 1e-9)
}

func TestSearchBackendError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	_, err := c.Search(context.Background(), "music", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (500)")
}

func TestSearchTimesOut(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, WithTimeout(50*time.Millisecond))
	_, err := c.Search(context.Background(), "music", "alice")
	require.Error(t, err)
}

func TestAddCreatesSemanticMemory(t *testing.T) {
	var gotPath string
	var gotBody createRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	rec, err := c.Add(context.Background(), "prefers window seats", "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "/v1/long-term-memory/", gotPath)
	require.Len(t, gotBody.Memories, 1)
	sent := gotBody.Memories[0]
	assert.True(t, strings.HasPrefix(sent.ID, "parley-"), "id %q", sent.ID)
	assert.Len(t, strings.TrimPrefix(sent.ID, "parley-"), 12)
	assert.Equal(t, "prefers window seats", sent.Text)
	assert.Equal(t, "semantic", sent.MemoryType)
	assert.Equal(t, "alice", sent.UserID)
	assert.Equal(t, []string{DefaultApp}, sent.Topics)

	assert.Equal(t, sent.ID, rec.ID)
	assert.Equal(t, "prefers window seats", rec.Content)
}

func TestAddDeduplicatedFact(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "duplicate", http.StatusConflict)
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	rec, err := c.Add(context.Background(), "prefers window seats", "alice")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAddBackendError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	rec, err := c.Add(context.Background(), "prefers window seats", "alice")
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.Contains(t, err.Error(), "API error (502)")
}

func TestListRecentUsesEmptySearch(t *testing.T) {
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"memories":[{"id":"m1","text":"likes jazz"}]}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	records, err := c.ListRecent(context.Background(), "alice", 25)
	require.NoError(t, err)

	assert.Equal(t, "", gotBody["text"])
	assert.Equal(t, float64(25), gotBody["limit"])
	require.Len(t, records, 1)
	assert.Equal(t, "likes jazz", records[0].Content)
	assert.Zero(t, records[0].Score)
}

func TestListRecentDefaultLimit(t *testing.T) {
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"memories":[]}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	_, err := c.ListRecent(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, float64(10), gotBody["limit"])
}

func TestDeleteAll(t *testing.T) {
	var gotPath string
	var gotBody forgetRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"deleted":3}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	n, err := c.DeleteAll(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "/v1/long-term-memory/forget", gotPath)
	assert.Equal(t, "alice", gotBody.UserID)
	assert.False(t, gotBody.DryRun)
	assert.Equal(t, 3, n)
}

func TestAuthTokenHeader(t *testing.T) {
	var gotAuth string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"memories":[]}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, WithAuthToken("secret"))
	_, err := c.Search(context.Background(), "music", "alice")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://localhost:8000/")
	assert.Equal(t, "http://localhost:8000", c.baseURL)
}

func TestDisabledBridge(t *testing.T) {
	var b Bridge = Disabled{}
	ctx := context.Background()

	records, err := b.Search(ctx, "music", "alice")
	assert.NoError(t, err)
	assert.Empty(t, records)

	rec, err := b.Add(ctx, "fact", "alice")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Nil(t, rec)

	records, err = b.ListRecent(ctx, "alice", 5)
	assert.NoError(t, err)
	assert.Empty(t, records)

	n, err := b.DeleteAll(ctx, "alice")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Zero(t, n)
}
