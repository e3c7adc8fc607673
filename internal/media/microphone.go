package media

import (
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/soyeahso/parley/internal/audio"
)

// Microphone captures PCM16 mono from the default input device. Captured
// periods are appended to an internal buffer off the realtime callback and
// Read drains it, so callers can cut fixed-size chunks with io.ReadFull.
type Microphone struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

// NewMicrophone opens and starts the default capture device.
func NewMicrophone(sampleRate, chunkMS int) (*Microphone, error) {
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	mctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing capture context: %w", err)
	}

	m := &Microphone{
		ctx: mctx,
		buf: make([]byte, 0, audio.BytesPerSecond(sampleRate)),
	}
	m.cond = sync.NewCond(&m.mu)

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInMilliseconds = uint32(chunkMS)

	callbacks := malgo.DeviceCallbacks{
		// The input slice is only valid for the duration of the callback.
		Data: func(_, input []byte, _ uint32) {
			m.mu.Lock()
			if !m.closed {
				m.buf = append(m.buf, input...)
			}
			m.mu.Unlock()
			m.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("initializing microphone: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("starting microphone: %w", err)
	}

	return m, nil
}

// Read blocks until captured audio is available and drains up to len(p)
// bytes of it. Returns io.EOF after Close.
func (m *Microphone) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.buf) == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed && len(m.buf) == 0 {
		return 0, io.EOF
	}

	n := copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

// Close stops the capture device and unblocks any pending Read.
func (m *Microphone) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()

	m.device.Stop()
	m.device.Uninit()
	m.ctx.Uninit()
	m.ctx.Free()
}
