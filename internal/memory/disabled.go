package memory

import (
	"context"
	"errors"
)

// ErrDisabled is returned by write operations when the memory feature is
// switched off.
var ErrDisabled = errors.New("memory is disabled")

// Disabled is the Bridge used when the memory feature is switched off.
// Reads return empty results; writes return ErrDisabled.
type Disabled struct{}

func (Disabled) Search(ctx context.Context, query, userID string) ([]Record, error) {
	return []Record{}, nil
}

func (Disabled) Add(ctx context.Context, text, userID string) (*Record, error) {
	return nil, ErrDisabled
}

func (Disabled) ListRecent(ctx context.Context, userID string, limit int) ([]Record, error) {
	return []Record{}, nil
}

func (Disabled) DeleteAll(ctx context.Context, userID string) (int, error) {
	return 0, ErrDisabled
}
