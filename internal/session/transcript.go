package session

import (
	"strings"
	"sync"

	"github.com/soyeahso/parley/internal/logging"
)

// transcriptLog accumulates assistant transcript deltas and logs the
// assembled utterance once per response.
type transcriptLog struct {
	log *logging.Logger

	mu  sync.Mutex
	buf strings.Builder
}

func newTranscriptLog(log *logging.Logger) *transcriptLog {
	return &transcriptLog{log: log}
}

// Add appends one delta.
func (t *transcriptLog) Add(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.WriteString(text)
}

// Flush logs the assembled utterance, if any, and clears the buffer.
func (t *transcriptLog) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	text := strings.TrimSpace(t.buf.String())
	t.buf.Reset()
	if text == "" {
		return
	}
	t.log.Info().Str("text", text).Msg("assistant transcript")
}

// Reset discards any partial transcript without logging it.
func (t *transcriptLog) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Reset()
}
