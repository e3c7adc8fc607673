// Package media owns the host audio devices for terminal chat: a malgo
// microphone feeding the session and an oto speaker draining its playback
// buffer.
package media

import (
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/soyeahso/parley/internal/audio"
)

// Speaker renders a playback buffer on the default output device.
//
// The buffer pads underruns with silence, so the player free-runs at the
// device rate; a barge-in cut simply leaves it reading zeros until the next
// response streams in. oto supports one context per process, so only one
// Speaker may be created.
type Speaker struct {
	player *oto.Player
}

// NewSpeaker opens the default output device and starts rendering buf.
func NewSpeaker(buf *audio.Buffer, sampleRate int) (*Speaker, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("opening speaker: %w", err)
	}
	<-ready

	player := ctx.NewPlayer(&bufferSource{buf: buf})
	player.Play()
	return &Speaker{player: player}, nil
}

// Close stops playback.
func (s *Speaker) Close() error {
	return s.player.Close()
}

// bufferSource adapts audio.Buffer to the io.Reader oto pulls from.
type bufferSource struct {
	buf *audio.Buffer
}

func (src *bufferSource) Read(p []byte) (int, error) {
	return copy(p, src.buf.NextChunk(len(p))), nil
}
