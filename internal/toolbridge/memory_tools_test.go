package toolbridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/parley/internal/logging"
	"github.com/soyeahso/parley/internal/memory"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent", "console")
}

// fakeBackend is a scriptable memory.Bridge.
type fakeBackend struct {
	searchRecords []memory.Record
	searchErr     error
	addRecord     *memory.Record
	addErr        error

	gotQuery  string
	gotText   string
	gotUserID string

	block bool
}

func (f *fakeBackend) Search(ctx context.Context, query, userID string) ([]memory.Record, error) {
	f.gotQuery, f.gotUserID = query, userID
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.searchRecords, f.searchErr
}

func (f *fakeBackend) Add(ctx context.Context, text, userID string) (*memory.Record, error) {
	f.gotText, f.gotUserID = text, userID
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.addRecord, f.addErr
}

func (f *fakeBackend) ListRecent(ctx context.Context, userID string, limit int) ([]memory.Record, error) {
	return f.searchRecords, f.searchErr
}

func (f *fakeBackend) DeleteAll(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func newSearchTool(backend memory.Bridge) Tool {
	return &searchTool{backend: backend, log: testLogger()}
}

func newAddTool(backend memory.Bridge) Tool {
	return &addTool{backend: backend, log: testLogger()}
}

func TestSearchToolSuccess(t *testing.T) {
	backend := &fakeBackend{searchRecords: []memory.Record{
		{ID: "m1", Content: "likes jazz", Score: 0.9},
		{ID: "m2", Content: "has a dog", Score: 0.7},
	}}

	res := newSearchTool(backend).Execute(context.Background(), map[string]any{
		"query":   "music",
		"user_id": "alice",
	})

	assert.Equal(t, true, res["success"])
	assert.Equal(t, 2, res["count"])
	assert.Equal(t, backend.searchRecords, res["memories"])
	assert.Equal(t, "music", backend.gotQuery)
	assert.Equal(t, "alice", backend.gotUserID)
}

func TestSearchToolNoMatches(t *testing.T) {
	res := newSearchTool(&fakeBackend{}).Execute(context.Background(), map[string]any{
		"query":   "music",
		"user_id": "alice",
	})

	assert.Equal(t, true, res["success"])
	assert.Equal(t, 0, res["count"])
	assert.Equal(t, []memory.Record{}, res["memories"])
}

func TestSearchToolMissingArguments(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"no arguments", map[string]any{}},
		{"empty query", map[string]any{"query": "", "user_id": "alice"}},
		{"missing user", map[string]any{"query": "music"}},
		{"null query", map[string]any{"query": nil, "user_id": "alice"}},
		{"zero query", map[string]any{"query": float64(0), "user_id": "alice"}},
		{"false query", map[string]any{"query": false, "user_id": "alice"}},
		{"empty list query", map[string]any{"query": []any{}, "user_id": "alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newSearchTool(&fakeBackend{}).Execute(context.Background(), tt.args)
			assert.Equal(t, false, res["success"])
			assert.Equal(t, "Missing required arguments: query and user_id", res["error"])
		})
	}
}

func TestSearchToolNonStringArguments(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"numeric query", map[string]any{"query": float64(5), "user_id": "alice"}},
		{"true query", map[string]any{"query": true, "user_id": "alice"}},
		{"list query", map[string]any{"query": []any{"jazz"}, "user_id": "alice"}},
		{"numeric user", map[string]any{"query": "music", "user_id": float64(7)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newSearchTool(&fakeBackend{}).Execute(context.Background(), tt.args)
			assert.Equal(t, false, res["success"])
			assert.Equal(t, "Arguments query and user_id must be strings", res["error"])
		})
	}
}

func TestSearchToolBackendFailureDegradesToEmpty(t *testing.T) {
	backend := &fakeBackend{searchErr: errors.New("connection refused")}

	res := newSearchTool(backend).Execute(context.Background(), map[string]any{
		"query":   "music",
		"user_id": "alice",
	})

	assert.Equal(t, true, res["success"])
	assert.Equal(t, 0, res["count"])
	assert.Equal(t, []memory.Record{}, res["memories"])
	assert.NotContains(t, res, "error")
}

func TestAddToolSuccess(t *testing.T) {
	rec := &memory.Record{ID: "parley-abc123def456", Content: "prefers window seats"}
	backend := &fakeBackend{addRecord: rec}

	res := newAddTool(backend).Execute(context.Background(), map[string]any{
		"text":    "prefers window seats",
		"user_id": "alice",
	})

	assert.Equal(t, true, res["success"])
	assert.Equal(t, rec, res["memory"])
	assert.Equal(t, "prefers window seats", backend.gotText)
}

func TestAddToolDeduplicated(t *testing.T) {
	backend := &fakeBackend{addRecord: nil}

	res := newAddTool(backend).Execute(context.Background(), map[string]any{
		"text":    "prefers window seats",
		"user_id": "alice",
	})

	assert.Equal(t, true, res["success"])
	v, ok := res["memory"]
	require.True(t, ok, "memory key must be present")
	assert.Nil(t, v)
}

func TestAddToolBackendFailure(t *testing.T) {
	backend := &fakeBackend{addErr: errors.New("connection refused")}

	res := newAddTool(backend).Execute(context.Background(), map[string]any{
		"text":    "prefers window seats",
		"user_id": "alice",
	})

	assert.Equal(t, false, res["success"])
	assert.Equal(t, "Failed to add memory", res["error"])
}

func TestAddToolDisabledBackend(t *testing.T) {
	res := newAddTool(memory.Disabled{}).Execute(context.Background(), map[string]any{
		"text":    "prefers window seats",
		"user_id": "alice",
	})

	assert.Equal(t, false, res["success"])
	assert.Equal(t, "Failed to add memory", res["error"])
}

func TestAddToolValidation(t *testing.T) {
	res := newAddTool(&fakeBackend{}).Execute(context.Background(), map[string]any{
		"user_id": "alice",
	})
	assert.Equal(t, "Missing required arguments: text and user_id", res["error"])

	res = newAddTool(&fakeBackend{}).Execute(context.Background(), map[string]any{
		"text":    float64(1),
		"user_id": "alice",
	})
	assert.Equal(t, "Arguments text and user_id must be strings", res["error"])
}

func TestFalsy(t *testing.T) {
	assert.True(t, falsy(nil))
	assert.True(t, falsy(""))
	assert.True(t, falsy(false))
	assert.True(t, falsy(float64(0)))
	assert.True(t, falsy([]any{}))
	assert.True(t, falsy(map[string]any{}))

	assert.False(t, falsy("x"))
	assert.False(t, falsy(true))
	assert.False(t, falsy(float64(1)))
	assert.False(t, falsy([]any{1}))
	assert.False(t, falsy(map[string]any{"k": 1}))
}
