package audio

import (
	"sync"
	"sync/atomic"
)

// frame is one enqueued payload. A partially consumed frame keeps its
// sequence number so a later skip discards the unrendered tail.
type frame struct {
	seq  int64
	data []byte
	off  int
}

// Buffer is a sequence-numbered playback queue for PCM16 audio.
//
// Producers append frames with Enqueue; a render loop pulls fixed-size
// chunks with NextChunk. Every frame carries a monotonically increasing
// sequence number, and frames with seq below the base cursor are never
// rendered. SkipPending advances the cursor past everything already
// issued, which makes barge-in an O(1) operation regardless of how much
// audio is queued.
//
// All methods are safe for concurrent use.
type Buffer struct {
	nextSeq atomic.Int64 // next sequence number to assign
	base    atomic.Int64 // frames with seq < base are stale
	dropped atomic.Int64 // bytes discarded by overflow

	mu       sync.Mutex
	frames   []frame
	buffered int

	maxBytes int
}

// NewBuffer returns a buffer bounded to maxBytes of queued audio.
// On overflow the oldest frames are dropped. maxBytes <= 0 means
// unbounded.
func NewBuffer(maxBytes int) *Buffer {
	return &Buffer{maxBytes: maxBytes}
}

// Enqueue assigns the next sequence number to p, queues a copy of it and
// returns the assigned number. It never blocks on a consumer. The slice
// is not retained.
func (b *Buffer) Enqueue(p []byte) int64 {
	seq := b.nextSeq.Add(1) - 1
	if len(p) == 0 {
		return seq
	}
	data := make([]byte, len(p))
	copy(data, p)

	b.mu.Lock()
	b.reapStaleLocked()
	b.frames = append(b.frames, frame{seq: seq, data: data})
	b.buffered += len(data)
	for b.maxBytes > 0 && b.buffered > b.maxBytes && len(b.frames) > 1 {
		head := b.frames[0]
		n := len(head.data) - head.off
		b.buffered -= n
		b.dropped.Add(int64(n))
		b.frames = b.frames[1:]
	}
	b.mu.Unlock()
	return seq
}

// NextChunk returns exactly n bytes of audio, pulling queued frames in
// sequence order and zero-padding on underrun. Zero bytes are PCM16
// silence, so the render clock never stalls. Frames made stale by a skip
// are dropped here without being rendered; a partially consumed frame
// whose tail went stale is cut mid-frame.
func (b *Buffer) NextChunk(n int) []byte {
	out := make([]byte, n)
	if n <= 0 {
		return out
	}

	b.mu.Lock()
	filled := 0
	for filled < n && len(b.frames) > 0 {
		f := &b.frames[0]
		if f.seq < b.base.Load() {
			b.buffered -= len(f.data) - f.off
			b.frames = b.frames[1:]
			continue
		}
		c := copy(out[filled:], f.data[f.off:])
		filled += c
		f.off += c
		b.buffered -= c
		if f.off == len(f.data) {
			b.frames = b.frames[1:]
		}
	}
	b.mu.Unlock()
	return out
}

// SkipPending advances the base cursor to the next sequence number to be
// issued and returns the new cursor. Every frame already assigned a
// number is discarded before rendering, including the unconsumed tail of
// a frame mid-render. The cursor never regresses, so concurrent skips
// and enqueues always resolve to a consistent cut point. O(1): the
// queued bytes are reaped lazily by Enqueue and NextChunk.
func (b *Buffer) SkipPending() int64 {
	next := b.nextSeq.Load()
	for {
		old := b.base.Load()
		if next <= old {
			return old
		}
		if b.base.CompareAndSwap(old, next) {
			return next
		}
	}
}

// Reset skips everything pending and releases the queued frames. Used
// when a session (re)connects so stale audio from a previous response
// can never play.
func (b *Buffer) Reset() {
	b.SkipPending()
	b.mu.Lock()
	b.frames = nil
	b.buffered = 0
	b.mu.Unlock()
}

// Buffered returns the number of live queued bytes.
func (b *Buffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reapStaleLocked()
	return b.buffered
}

// Dropped returns the cumulative number of bytes discarded by overflow.
// Bytes discarded by SkipPending are not counted.
func (b *Buffer) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Buffer) reapStaleLocked() {
	base := b.base.Load()
	for len(b.frames) > 0 && b.frames[0].seq < base {
		b.buffered -= len(b.frames[0].data) - b.frames[0].off
		b.frames = b.frames[1:]
	}
}
