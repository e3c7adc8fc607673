// Package memory talks to a long-term memory backend on behalf of the
// voice assistant. The wire protocol is the Redis agent-memory-server
// HTTP API; everything above this package works against the Bridge
// interface so the backend can be swapped or switched off.
package memory

import "context"

// Record is one long-term memory entry as surfaced to tools and the CLI.
type Record struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Score     float64  `json:"score,omitempty"`
	Topics    []string `json:"topics,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// Bridge is the long-term memory backend.
type Bridge interface {
	// Search returns memories semantically matching query for userID,
	// best first.
	Search(ctx context.Context, query, userID string) ([]Record, error)

	// Add stores one fact about userID. A (nil, nil) return means the
	// backend deduplicated the fact and stored nothing new.
	Add(ctx context.Context, text, userID string) (*Record, error)

	// ListRecent returns up to limit recent memories for userID.
	ListRecent(ctx context.Context, userID string, limit int) ([]Record, error)

	// DeleteAll removes every memory for userID and returns how many
	// were deleted.
	DeleteAll(ctx context.Context, userID string) (int, error)
}
