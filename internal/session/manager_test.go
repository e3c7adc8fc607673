package session

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/parley/internal/config"
	"github.com/soyeahso/parley/internal/logging"
	"github.com/soyeahso/parley/internal/metrics"
	"github.com/soyeahso/parley/internal/realtime"
	"github.com/soyeahso/parley/internal/toolbridge"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent", "console")
}

func speechConfig() config.SpeechConfig {
	return config.SpeechConfig{
		Model:        "gpt-4o-mini-realtime-preview",
		Voice:        config.VoiceConfig{Name: "en-US-AvaNeural", Type: "azure-standard"},
		Instructions: "You are a test assistant.",
		VAD: config.VADConfig{
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 500,
		},
		ConnectTimeoutSeconds: 5,
	}
}

// fakeConn scripts the server side of a session. Tests push events into the
// stream; client writes are recorded for assertions.
type fakeConn struct {
	stream      chan realtime.ServerEvent
	ackOnUpdate bool
	rejectWith  string

	mu        sync.Mutex
	updates   []realtime.SessionConfig
	audio     []string
	outputs   []functionOutput
	responses int
	closed    bool
}

type functionOutput struct {
	previousItemID string
	callID         string
	output         string
}

func newFakeConn() *fakeConn {
	return &fakeConn{stream: make(chan realtime.ServerEvent, 64), ackOnUpdate: true}
}

func (c *fakeConn) push(ev realtime.ServerEvent) { c.stream <- ev }

func (c *fakeConn) UpdateSession(cfg realtime.SessionConfig) error {
	c.mu.Lock()
	c.updates = append(c.updates, cfg)
	c.mu.Unlock()
	if c.rejectWith != "" {
		c.push(&realtime.ServerError{Error: realtime.ErrorDetail{
			Type:    "invalid_request_error",
			Message: c.rejectWith,
		}})
	} else if c.ackOnUpdate {
		c.push(&realtime.SessionUpdated{})
	}
	return nil
}

func (c *fakeConn) AppendAudio(audioB64 string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return realtime.ErrConnClosed
	}
	c.audio = append(c.audio, audioB64)
	return nil
}

func (c *fakeConn) CreateFunctionOutput(previousItemID, callID, output string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return realtime.ErrConnClosed
	}
	c.outputs = append(c.outputs, functionOutput{previousItemID, callID, output})
	return nil
}

func (c *fakeConn) CreateResponse() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return realtime.ErrConnClosed
	}
	c.responses++
	return nil
}

func (c *fakeConn) ReadEvent() (realtime.ServerEvent, error) {
	ev, ok := <-c.stream
	if !ok {
		return nil, realtime.ErrConnClosed
	}
	return ev, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stream)
	return nil
}

func (c *fakeConn) sentUpdates() []realtime.SessionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]realtime.SessionConfig(nil), c.updates...)
}

func (c *fakeConn) sentAudio() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.audio...)
}

func (c *fakeConn) sentOutputs() []functionOutput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]functionOutput(nil), c.outputs...)
}

func (c *fakeConn) sentResponses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responses
}

// fakeDialer hands out a fresh fakeConn per Dial.
type fakeDialer struct {
	err         error
	ackOnUpdate bool
	rejectWith  string

	mu    sync.Mutex
	conns []*fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{ackOnUpdate: true}
}

func (d *fakeDialer) Dial(ctx context.Context) (realtime.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	c.ackOnUpdate = d.ackOnUpdate
	c.rejectWith = d.rejectWith
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) conn(t *testing.T) *fakeConn {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.conns, "no connection was dialed")
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// recordingHandlers captures every event for assertions.
type recordingHandlers struct {
	mu          sync.Mutex
	statuses    []State
	audio       [][]byte
	transcripts []string
	speech      int
	errs        []string
}

func (h *recordingHandlers) OnStatus(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, s)
}

func (h *recordingHandlers) OnAudio(pcm []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.audio = append(h.audio, append([]byte(nil), pcm...))
}

func (h *recordingHandlers) OnTranscript(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transcripts = append(h.transcripts, text)
}

func (h *recordingHandlers) OnSpeechStarted() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.speech++
}

func (h *recordingHandlers) OnError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, msg)
}

func (h *recordingHandlers) snapshotStatuses() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.statuses...)
}

func (h *recordingHandlers) snapshotTranscripts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.transcripts...)
}

func (h *recordingHandlers) snapshotErrors() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.errs...)
}

func (h *recordingHandlers) audioCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.audio)
}

func (h *recordingHandlers) transcriptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.transcripts)
}

func (h *recordingHandlers) speechCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.speech
}

func (h *recordingHandlers) errorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errs)
}

// stubTool is a scriptable toolbridge.Tool.
type stubTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) toolbridge.Result
}

func (s *stubTool) Name() string               { return s.name }
func (s *stubTool) Description() string        { return "test tool" }
func (s *stubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (s *stubTool) Execute(ctx context.Context, args map[string]any) toolbridge.Result {
	return s.fn(ctx, args)
}

func okResult(context.Context, map[string]any) toolbridge.Result {
	return toolbridge.Result{"success": true}
}

func newTestManager(t *testing.T, d *fakeDialer, tools ...toolbridge.Tool) (*Manager, *recordingHandlers) {
	t.Helper()
	reg := toolbridge.NewRegistry()
	for _, tool := range tools {
		reg.Register(tool)
	}
	bridge := toolbridge.New(reg, "alice", testLogger())
	h := &recordingHandlers{}
	m := NewManager(speechConfig(), d, bridge, reg.Definitions(), h, testLogger())
	t.Cleanup(m.Disconnect)
	return m, h
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, what)
}

func TestConnectEstablishesSession(t *testing.T) {
	d := newFakeDialer()
	m, h := newTestManager(t, d, &stubTool{name: "search_memory", fn: okResult})

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StateReady, m.State())

	updates := d.conn(t).sentUpdates()
	require.Len(t, updates, 1)
	cfg := updates[0]
	assert.Equal(t, []string{"text", "audio"}, cfg.Modalities)
	assert.Equal(t, "You are a test assistant.", cfg.Instructions)
	assert.Equal(t, "en-US-AvaNeural", cfg.Voice.Name)
	assert.Equal(t, "pcm16", cfg.InputAudioFormat)
	assert.Equal(t, "pcm16", cfg.OutputAudioFormat)
	require.NotNil(t, cfg.TurnDetection)
	assert.Equal(t, "server_vad", cfg.TurnDetection.Type)
	assert.InDelta(t, 0.5, cfg.TurnDetection.Threshold, 1e-9)
	require.NotNil(t, cfg.InputAudioEchoCancellation)
	require.NotNil(t, cfg.InputAudioNoiseReduction)
	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "search_memory", cfg.Tools[0].Name)
	assert.Equal(t, "auto", cfg.ToolChoice)

	assert.Equal(t, []State{StateConnecting, StateConfiguring, StateReady}, h.snapshotStatuses())
}

func TestConnectIsIdempotent(t *testing.T) {
	d := newFakeDialer()
	m, _ := newTestManager(t, d)

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Connect(context.Background()))

	assert.Equal(t, 1, d.dialCount())
	assert.Len(t, d.conn(t).sentUpdates(), 1)
}

func TestConnectDialFailure(t *testing.T) {
	d := newFakeDialer()
	d.err = errors.New("no route to host")
	m, _ := newTestManager(t, d)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to speech service")
	assert.Equal(t, StateError, m.State())
}

func TestConnectRejectedByService(t *testing.T) {
	d := newFakeDialer()
	d.rejectWith = "model not available"
	m, _ := newTestManager(t, d)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session configuration rejected")
	assert.Contains(t, err.Error(), "model not available")
	assert.Equal(t, StateError, m.State())
}

func TestConnectAfterErrorStartsFresh(t *testing.T) {
	d := newFakeDialer()
	d.err = errors.New("offline")
	m, _ := newTestManager(t, d)

	require.Error(t, m.Connect(context.Background()))
	require.Equal(t, StateError, m.State())

	d.err = nil
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StateReady, m.State())
}

func TestReconnectStartsFresh(t *testing.T) {
	d := newFakeDialer()
	m, h := newTestManager(t, d, &stubTool{name: "search_memory", fn: okResult})
	require.NoError(t, m.Connect(context.Background()))
	c1 := d.conn(t)

	// Announce a call and queue audio, then drop the session with both live.
	c1.push(&realtime.ItemCreated{Item: realtime.ConversationItem{
		ID: "item_1", Type: realtime.ItemTypeFunctionCall, Name: "search_memory", CallID: "call_1",
	}})
	c1.push(&realtime.AudioDelta{Delta: base64.StdEncoding.EncodeToString([]byte{9, 9, 9, 9})})
	waitFor(t, func() bool { return h.audioCount() == 1 }, "audio delta never dispatched")
	assert.Positive(t, m.Playback().Buffered())

	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())

	require.NoError(t, m.Connect(context.Background()))
	c2 := d.conn(t)
	assert.NotSame(t, c1, c2)
	assert.Zero(t, m.Playback().Buffered())

	// Arguments for the call announced on the old session find no pending slot.
	c2.push(&realtime.FunctionCallArgumentsDone{CallID: "call_1", Name: "search_memory", Arguments: `{}`})
	c2.push(&realtime.TranscriptDelta{Delta: "fence"})
	waitFor(t, func() bool { return h.transcriptCount() == 1 }, "dispatch stalled")
	assert.Empty(t, c2.sentOutputs())
}

func TestBargeInCutsQueuedPlayback(t *testing.T) {
	d := newFakeDialer()
	m, h := newTestManager(t, d)
	require.NoError(t, m.Connect(context.Background()))
	c := d.conn(t)

	pcm := []byte{1, 2, 3, 4, 5, 6}
	c.push(&realtime.AudioDelta{Delta: base64.StdEncoding.EncodeToString(pcm)})
	waitFor(t, func() bool { return m.Playback().Buffered() == len(pcm) }, "audio never queued")
	assert.Equal(t, StateSpeaking, m.State())

	c.push(&realtime.SpeechStarted{})
	waitFor(t, func() bool { return h.speechCount() == 1 }, "speech start never dispatched")
	assert.Equal(t, StateListening, m.State())
	assert.Zero(t, m.Playback().Buffered())
	assert.Equal(t, make([]byte, 4), m.Playback().NextChunk(4))
}

func TestStatusTransitions(t *testing.T) {
	d := newFakeDialer()
	m, h := newTestManager(t, d)
	require.NoError(t, m.Connect(context.Background()))
	c := d.conn(t)

	c.push(&realtime.SpeechStarted{})
	c.push(&realtime.SpeechStopped{})
	c.push(&realtime.AudioDelta{Delta: base64.StdEncoding.EncodeToString([]byte{1, 2})})
	c.push(&realtime.ResponseDone{})

	want := []State{
		StateConnecting, StateConfiguring, StateReady,
		StateListening, StateProcessing, StateSpeaking, StateReady,
	}
	waitFor(t, func() bool { return len(h.snapshotStatuses()) == len(want) }, "missing status transitions")
	assert.Equal(t, want, h.snapshotStatuses())
}

func TestTranscriptDeltasReachHandler(t *testing.T) {
	d := newFakeDialer()
	m, h := newTestManager(t, d)
	require.NoError(t, m.Connect(context.Background()))
	c := d.conn(t)

	c.push(&realtime.TranscriptDelta{Delta: "Hel"})
	c.push(&realtime.TranscriptDelta{Delta: "lo"})
	c.push(&realtime.ResponseDone{})

	waitFor(t, func() bool { return h.transcriptCount() == 2 }, "transcript deltas never dispatched")
	assert.Equal(t, []string{"Hel", "lo"}, h.snapshotTranscripts())
}

func TestFunctionCallRoundTrip(t *testing.T) {
	argsCh := make(chan map[string]any, 1)
	tool := &stubTool{name: "search_memory", fn: func(_ context.Context, args map[string]any) toolbridge.Result {
		argsCh <- args
		return toolbridge.Result{"success": true, "count": 0}
	}}

	d := newFakeDialer()
	m, _ := newTestManager(t, d, tool)
	require.NoError(t, m.Connect(context.Background()))
	c := d.conn(t)

	c.push(&realtime.ItemCreated{Item: realtime.ConversationItem{
		ID: "item_7", Type: realtime.ItemTypeFunctionCall, Name: "search_memory", CallID: "call_1",
	}})
	c.push(&realtime.FunctionCallArgumentsDone{
		ItemID: "item_7", CallID: "call_1", Name: "search_memory", Arguments: `{"query":"tea"}`,
	})

	select {
	case args := <-argsCh:
		assert.Equal(t, "tea", args["query"])
		assert.Equal(t, "alice", args["user_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("tool was never invoked")
	}

	waitFor(t, func() bool { return len(c.sentOutputs()) == 1 }, "tool result never delivered")
	out := c.sentOutputs()[0]
	assert.Equal(t, "item_7", out.previousItemID)
	assert.Equal(t, "call_1", out.callID)
	assert.Contains(t, out.output, `"success":true`)
	waitFor(t, func() bool { return c.sentResponses() == 1 }, "response never resumed")
}

func TestFunctionCallRejectedWhileExecuting(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	tool := &stubTool{name: "slow_tool", fn: func(ctx context.Context, _ map[string]any) toolbridge.Result {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return toolbridge.Result{"success": true}
	}}

	d := newFakeDialer()
	m, h := newTestManager(t, d, tool)
	require.NoError(t, m.Connect(context.Background()))
	c := d.conn(t)

	c.push(&realtime.ItemCreated{Item: realtime.ConversationItem{
		ID: "item_1", Type: realtime.ItemTypeFunctionCall, Name: "slow_tool", CallID: "call_1",
	}})
	c.push(&realtime.FunctionCallArgumentsDone{ItemID: "item_1", CallID: "call_1", Name: "slow_tool", Arguments: `{}`})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("tool never started")
	}

	// A second announcement while the first call executes is dropped.
	c.push(&realtime.ItemCreated{Item: realtime.ConversationItem{
		ID: "item_2", Type: realtime.ItemTypeFunctionCall, Name: "slow_tool", CallID: "call_2",
	}})
	c.push(&realtime.TranscriptDelta{Delta: "fence"})
	waitFor(t, func() bool { return h.transcriptCount() == 1 }, "dispatch stalled behind tool call")

	close(release)
	waitFor(t, func() bool { return len(c.sentOutputs()) == 1 }, "first tool result never delivered")

	// Arguments for the rejected call find no pending slot.
	c.push(&realtime.FunctionCallArgumentsDone{ItemID: "item_2", CallID: "call_2", Name: "slow_tool", Arguments: `{}`})
	c.push(&realtime.TranscriptDelta{Delta: "fence"})
	waitFor(t, func() bool { return h.transcriptCount() == 2 }, "dispatch stalled")
	assert.Len(t, c.sentOutputs(), 1)
	assert.Equal(t, 1, c.sentResponses())
}

func TestArgumentsWithoutAnnouncementIgnored(t *testing.T) {
	d := newFakeDialer()
	m, h := newTestManager(t, d, &stubTool{name: "search_memory", fn: okResult})
	require.NoError(t, m.Connect(context.Background()))
	c := d.conn(t)

	c.push(&realtime.FunctionCallArgumentsDone{CallID: "call_9", Name: "search_memory", Arguments: `{}`})
	c.push(&realtime.TranscriptDelta{Delta: "fence"})
	waitFor(t, func() bool { return h.transcriptCount() == 1 }, "dispatch stalled")
	assert.Empty(t, c.sentOutputs())
}

func TestNonFunctionItemsIgnored(t *testing.T) {
	d := newFakeDialer()
	m, h := newTestManager(t, d, &stubTool{name: "search_memory", fn: okResult})
	require.NoError(t, m.Connect(context.Background()))
	c := d.conn(t)

	c.push(&realtime.ItemCreated{Item: realtime.ConversationItem{ID: "item_1", Type: "message"}})
	c.push(&realtime.FunctionCallArgumentsDone{ItemID: "item_1", CallID: "call_1", Name: "search_memory", Arguments: `{}`})
	c.push(&realtime.TranscriptDelta{Delta: "fence"})
	waitFor(t, func() bool { return h.transcriptCount() == 1 }, "dispatch stalled")
	assert.Empty(t, c.sentOutputs())
}

func TestSendAudio(t *testing.T) {
	d := newFakeDialer()
	m, _ := newTestManager(t, d)

	assert.ErrorIs(t, m.SendAudio([]byte{1}), ErrNotConnected)

	require.NoError(t, m.Connect(context.Background()))
	pcm := []byte{0x01, 0x02, 0x03}
	require.NoError(t, m.SendAudio(pcm))

	sent := d.conn(t).sentAudio()
	require.Len(t, sent, 1)
	decoded, err := base64.StdEncoding.DecodeString(sent[0])
	require.NoError(t, err)
	assert.Equal(t, pcm, decoded)

	m.Disconnect()
	assert.ErrorIs(t, m.SendAudio(pcm), ErrNotConnected)
}

func TestTransportFailureSurfacesError(t *testing.T) {
	d := newFakeDialer()
	m, h := newTestManager(t, d)
	require.NoError(t, m.Connect(context.Background()))

	d.conn(t).Close()
	waitFor(t, func() bool { return m.State() == StateError }, "transport failure never surfaced")
	assert.Equal(t, []string{"connection to speech service lost"}, h.snapshotErrors())

	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())
}

func TestServerErrorKeepsSessionAlive(t *testing.T) {
	d := newFakeDialer()
	m, h := newTestManager(t, d)
	require.NoError(t, m.Connect(context.Background()))
	c := d.conn(t)

	c.push(&realtime.ServerError{Error: realtime.ErrorDetail{Code: "rate_limited", Message: "slow down"}})
	waitFor(t, func() bool { return h.errorCount() == 1 }, "error event never dispatched")
	assert.Equal(t, []string{"slow down"}, h.snapshotErrors())
	assert.Equal(t, StateReady, m.State())
	assert.NoError(t, m.SendAudio([]byte{1, 2}))
}

func TestUnknownEventsIgnored(t *testing.T) {
	d := newFakeDialer()
	m, h := newTestManager(t, d)
	require.NoError(t, m.Connect(context.Background()))
	c := d.conn(t)

	c.push(&realtime.UnknownEvent{Type: "rate_limits.updated"})
	c.push(&realtime.AudioDone{})
	c.push(&realtime.TranscriptDelta{Delta: "still here"})
	waitFor(t, func() bool { return h.transcriptCount() == 1 }, "dispatch stalled on unknown event")
}

func TestDisconnectIsIdempotent(t *testing.T) {
	d := newFakeDialer()
	m, _ := newTestManager(t, d)

	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()
	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())
}

func TestPlaybackBudgetDropsOldest(t *testing.T) {
	d := newFakeDialer()
	reg := toolbridge.NewRegistry()
	bridge := toolbridge.New(reg, "alice", testLogger())
	m := NewManager(speechConfig(), d, bridge, nil, &recordingHandlers{}, testLogger(),
		WithPlaybackBudget(4))
	t.Cleanup(m.Disconnect)

	require.NoError(t, m.Connect(context.Background()))
	c := d.conn(t)
	c.push(&realtime.AudioDelta{Delta: base64.StdEncoding.EncodeToString([]byte{1, 1, 1, 1})})
	c.push(&realtime.AudioDelta{Delta: base64.StdEncoding.EncodeToString([]byte{2, 2, 2, 2})})

	waitFor(t, func() bool { return m.Playback().Dropped() == 4 }, "overflow never dropped")
	assert.Equal(t, 4, m.Playback().Buffered())
	assert.Equal(t, []byte{2, 2, 2, 2}, m.Playback().NextChunk(4))
}

func TestSessionMetrics(t *testing.T) {
	mx := metrics.New("test")
	d := newFakeDialer()
	reg := toolbridge.NewRegistry()
	bridge := toolbridge.New(reg, "alice", testLogger())
	h := &recordingHandlers{}
	m := NewManager(speechConfig(), d, bridge, nil, h, testLogger(), WithMetrics(mx))
	t.Cleanup(m.Disconnect)

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.SessionsActive))

	require.NoError(t, m.SendAudio([]byte{1, 2, 3, 4}))
	assert.Equal(t, 4.0, testutil.ToFloat64(mx.AudioBytesTotal.WithLabelValues("in")))

	c := d.conn(t)
	c.push(&realtime.AudioDelta{Delta: base64.StdEncoding.EncodeToString([]byte{5, 6})})
	waitFor(t, func() bool { return h.audioCount() == 1 }, "audio delta never dispatched")
	assert.Equal(t, 2.0, testutil.ToFloat64(mx.AudioBytesTotal.WithLabelValues("out")))

	c.push(&realtime.SpeechStarted{})
	waitFor(t, func() bool { return h.speechCount() == 1 }, "speech start never dispatched")
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.BargeInsTotal))

	m.Disconnect()
	assert.Equal(t, 0.0, testutil.ToFloat64(mx.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.SessionsTotal.WithLabelValues("ok")))
}

func TestStateActive(t *testing.T) {
	active := []State{StateReady, StateListening, StateProcessing, StateSpeaking}
	for _, s := range active {
		assert.True(t, s.Active(), s)
	}
	inactive := []State{StateDisconnected, StateConnecting, StateConfiguring, StateError}
	for _, s := range inactive {
		assert.False(t, s.Active(), s)
	}
}
