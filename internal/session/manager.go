// Package session drives one realtime speech session: it owns the transport
// connection, demultiplexes the server event stream into audio, transcript,
// and status signals, and bridges function calls to the tool registry.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/parley/internal/audio"
	"github.com/soyeahso/parley/internal/config"
	"github.com/soyeahso/parley/internal/logging"
	"github.com/soyeahso/parley/internal/metrics"
	"github.com/soyeahso/parley/internal/realtime"
	"github.com/soyeahso/parley/internal/toolbridge"
)

// ErrNotConnected is returned by SendAudio when no session is established.
var ErrNotConnected = errors.New("session not connected")

// Dialer opens a connection to the remote speech service.
type Dialer interface {
	Dial(ctx context.Context) (realtime.Conn, error)
}

// pendingPhase tracks the one function call a session may carry at a time.
type pendingPhase int

const (
	pendingIdle pendingPhase = iota
	pendingAwaitingArguments
	pendingExecuting
)

type pendingCall struct {
	phase  pendingPhase
	name   string
	callID string
	itemID string
}

// Manager owns one connection to the remote speech service and drives its
// event stream: audio deltas into the playback buffer, transcripts and
// status changes out through EventHandlers, function calls through the tool
// bridge. One dispatch goroutine runs per connection; tool calls run on
// their own goroutine so audio keeps flowing while a tool executes.
type Manager struct {
	cfg      config.SpeechConfig
	dialer   Dialer
	bridge   *toolbridge.Bridge
	tools    []realtime.FunctionTool
	handlers EventHandlers
	playback *audio.Buffer
	log      *logging.Logger
	metrics  *metrics.Metrics

	transcript *transcriptLog

	mu      sync.Mutex
	state   State
	conn    realtime.Conn
	pending pendingCall
	ackCh   chan error
	done    chan struct{}
	cancel  context.CancelFunc
	closing bool
	started time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithMetrics attaches collectors for session, audio, and barge-in counts.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithPlaybackBudget bounds the playback queue to maxBytes; the oldest
// queued audio is dropped on overflow.
func WithPlaybackBudget(maxBytes int) Option {
	return func(m *Manager) { m.playback = audio.NewBuffer(maxBytes) }
}

// NewManager builds a session manager for one caller. The bridge executes
// any function calls the model issues; tools is the schema list advertised
// in the session configuration and should match the bridge's registry.
func NewManager(cfg config.SpeechConfig, dialer Dialer, bridge *toolbridge.Bridge, tools []realtime.FunctionTool, handlers EventHandlers, log *logging.Logger, opts ...Option) *Manager {
	if handlers == nil {
		handlers = NoopHandlers{}
	}
	m := &Manager{
		cfg:      cfg,
		dialer:   dialer,
		bridge:   bridge,
		tools:    tools,
		handlers: handlers,
		log:      log.Sub("session"),
		state:    StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.playback == nil {
		m.playback = audio.NewBuffer(0)
	}
	m.transcript = newTranscriptLog(m.log)
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Playback exposes the playback buffer for a rendering consumer.
func (m *Manager) Playback() *audio.Buffer { return m.playback }

// Connect dials the speech service, sends the session configuration, and
// starts the dispatch loop. It blocks until the service acknowledges the
// configuration or the acknowledge timeout expires. Connecting a live
// session is a no-op; connecting after an error starts fresh.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateDisconnected, StateError:
	default:
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.pending = pendingCall{}
	m.mu.Unlock()

	m.playback.Reset()
	m.transcript.Reset()
	m.handlers.OnStatus(StateConnecting)

	conn, err := m.dialer.Dial(ctx)
	if err != nil {
		m.setState(StateError)
		return fmt.Errorf("failed to connect to speech service: %w", err)
	}

	ack := make(chan error, 1)
	sessCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.conn = conn
	m.ackCh = ack
	m.cancel = cancel
	m.state = StateConfiguring
	m.mu.Unlock()
	m.handlers.OnStatus(StateConfiguring)

	if err := conn.UpdateSession(m.sessionConfig()); err != nil {
		cancel()
		conn.Close()
		m.mu.Lock()
		m.conn, m.ackCh, m.cancel = nil, nil, nil
		m.mu.Unlock()
		m.setState(StateError)
		return fmt.Errorf("failed to configure session: %w", err)
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.done = done
	m.mu.Unlock()
	go m.dispatch(sessCtx, conn, done)

	select {
	case err := <-ack:
		if err != nil {
			m.teardown()
			m.setState(StateError)
			return fmt.Errorf("session configuration rejected: %w", err)
		}
	case <-time.After(m.ackTimeout()):
		m.teardown()
		m.setState(StateError)
		return errors.New("timed out waiting for session acknowledgement")
	case <-ctx.Done():
		m.teardown()
		m.setState(StateError)
		return ctx.Err()
	}

	m.mu.Lock()
	m.started = time.Now()
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.RecordSessionStart()
	}
	m.log.Info().Str("model", m.cfg.Model).Msg("session established")
	return nil
}

// Disconnect stops the dispatch loop, tears down the transport, and drops
// queued playback and any pending function call. Safe to call from any
// state and more than once.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	started := m.started
	m.started = time.Time{}
	m.mu.Unlock()

	m.teardown()
	m.playback.Reset()
	m.transcript.Reset()

	if m.metrics != nil && !started.IsZero() {
		m.metrics.RecordSessionEnd("ok", time.Since(started))
	}
	m.setState(StateDisconnected)
	m.log.Info().Msg("session closed")
}

// SendAudio forwards one chunk of caller PCM16 audio to the service.
func (m *Manager) SendAudio(pcm []byte) error {
	m.mu.Lock()
	conn := m.conn
	active := m.state.Active()
	m.mu.Unlock()

	if !active || conn == nil {
		return ErrNotConnected
	}
	if err := conn.AppendAudio(base64.StdEncoding.EncodeToString(pcm)); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	if m.metrics != nil {
		m.metrics.RecordAudio("in", len(pcm))
	}
	return nil
}

// teardown closes the transport and waits for the dispatch goroutine to
// exit. Read errors caused by the close are treated as clean shutdown.
func (m *Manager) teardown() {
	m.mu.Lock()
	conn := m.conn
	done := m.done
	cancel := m.cancel
	m.conn, m.done, m.cancel, m.ackCh = nil, nil, nil, nil
	m.closing = true
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}

	m.mu.Lock()
	m.closing = false
	m.pending = pendingCall{}
	m.mu.Unlock()
}

func (m *Manager) dispatch(ctx context.Context, conn realtime.Conn, done chan struct{}) {
	defer close(done)
	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			m.readFailed(err)
			return
		}
		m.handleEvent(ctx, conn, ev)
	}
}

// readFailed ends the dispatch loop. While configuring, the error is handed
// to the blocked Connect; during Disconnect it is clean shutdown; otherwise
// the transport died under a live session.
func (m *Manager) readFailed(err error) {
	m.mu.Lock()
	closing := m.closing
	ack := m.ackCh
	m.ackCh = nil
	started := m.started
	if !closing {
		m.started = time.Time{}
	}
	m.mu.Unlock()

	if ack != nil {
		ack <- err
		return
	}
	if closing {
		m.log.Debug().Msg("dispatch loop stopped")
		return
	}

	m.log.Error().Err(err).Msg("speech transport failed")
	if m.metrics != nil && !started.IsZero() {
		m.metrics.RecordSessionEnd("error", time.Since(started))
	}
	m.setState(StateError)
	m.handlers.OnError("connection to speech service lost")
}

func (m *Manager) handleEvent(ctx context.Context, conn realtime.Conn, ev realtime.ServerEvent) {
	switch ev := ev.(type) {
	case *realtime.SessionUpdated:
		m.handleSessionUpdated()
	case *realtime.SpeechStarted:
		m.handleSpeechStarted()
	case *realtime.SpeechStopped:
		m.setState(StateProcessing)
	case *realtime.AudioDelta:
		m.handleAudioDelta(ev)
	case *realtime.TranscriptDelta:
		m.transcript.Add(ev.Delta)
		m.handlers.OnTranscript(ev.Delta)
	case *realtime.ResponseDone:
		m.transcript.Flush()
		m.setState(StateReady)
	case *realtime.ItemCreated:
		m.handleItemCreated(ev)
	case *realtime.FunctionCallArgumentsDone:
		m.handleArgumentsDone(ctx, conn, ev)
	case *realtime.ServerError:
		m.handleServerError(ev)
	default:
		m.log.Debug().Str("event", ev.EventType()).Msg("ignoring event")
	}
}

// handleSessionUpdated marks the session ready. The first one releases the
// Connect call blocked on the configuration acknowledgement.
func (m *Manager) handleSessionUpdated() {
	m.setState(StateReady)
	m.mu.Lock()
	ack := m.ackCh
	m.ackCh = nil
	m.mu.Unlock()
	if ack != nil {
		ack <- nil
	}
}

// handleSpeechStarted cuts queued assistant playback before anything else:
// frames enqueued before this point are stale, whatever the consumer is
// doing.
func (m *Manager) handleSpeechStarted() {
	if m.metrics != nil && m.playback.Buffered() > 0 {
		m.metrics.RecordBargeIn()
	}
	cut := m.playback.SkipPending()
	m.log.Debug().Int64("cursor", cut).Msg("caller speech started, pending playback skipped")
	m.handlers.OnSpeechStarted()
	m.setState(StateListening)
}

func (m *Manager) handleAudioDelta(ev *realtime.AudioDelta) {
	pcm, err := ev.Decode()
	if err != nil {
		m.log.Warn().Err(err).Msg("dropping undecodable audio delta")
		return
	}
	m.playback.Enqueue(pcm)
	if m.metrics != nil {
		m.metrics.RecordAudio("out", len(pcm))
	}
	m.handlers.OnAudio(pcm)
	m.setState(StateSpeaking)
}

// handleItemCreated notes an announced function call. A new announcement is
// rejected while a call is executing; one still waiting for arguments is
// superseded.
func (m *Manager) handleItemCreated(ev *realtime.ItemCreated) {
	if ev.Item.Type != realtime.ItemTypeFunctionCall {
		return
	}
	m.mu.Lock()
	if m.pending.phase == pendingExecuting {
		m.mu.Unlock()
		m.log.Warn().
			Str("tool", ev.Item.Name).
			Str("callId", ev.Item.CallID).
			Msg("function call announced while another is executing, ignoring")
		return
	}
	m.pending = pendingCall{
		phase:  pendingAwaitingArguments,
		name:   ev.Item.Name,
		callID: ev.Item.CallID,
		itemID: ev.Item.ID,
	}
	m.mu.Unlock()
	m.log.Debug().
		Str("tool", ev.Item.Name).
		Str("callId", ev.Item.CallID).
		Msg("function call announced")
}

func (m *Manager) handleArgumentsDone(ctx context.Context, conn realtime.Conn, ev *realtime.FunctionCallArgumentsDone) {
	m.mu.Lock()
	if m.pending.phase != pendingAwaitingArguments || m.pending.callID != ev.CallID {
		pendingID := m.pending.callID
		m.mu.Unlock()
		m.log.Warn().
			Str("callId", ev.CallID).
			Str("pendingCallId", pendingID).
			Msg("arguments for unexpected function call, ignoring")
		return
	}
	call := m.pending
	call.phase = pendingExecuting
	m.pending = call
	m.mu.Unlock()

	go m.runToolCall(ctx, conn, call, ev.Arguments)
}

// runToolCall executes one function call off the dispatch goroutine, then
// reports the result and asks the service to continue the response.
func (m *Manager) runToolCall(ctx context.Context, conn realtime.Conn, call pendingCall, rawArgs string) {
	result := m.bridge.Execute(ctx, call.name, rawArgs)

	if err := conn.CreateFunctionOutput(call.itemID, call.callID, result.JSON()); err != nil {
		m.log.Warn().Err(err).Str("tool", call.name).Msg("failed to deliver tool result")
	} else if err := conn.CreateResponse(); err != nil {
		m.log.Warn().Err(err).Str("tool", call.name).Msg("failed to resume response")
	}

	m.mu.Lock()
	if m.pending.phase == pendingExecuting && m.pending.callID == call.callID {
		m.pending = pendingCall{}
	}
	m.mu.Unlock()
}

// handleServerError surfaces a service error event. While configuring it
// becomes the Connect error; on a live session it is reported and the
// session carries on.
func (m *Manager) handleServerError(ev *realtime.ServerError) {
	m.mu.Lock()
	ack := m.ackCh
	m.ackCh = nil
	m.mu.Unlock()

	if ack != nil {
		ack <- errors.New(ev.Error.Message)
		return
	}
	m.log.Warn().
		Str("code", ev.Error.Code).
		Str("type", ev.Error.Type).
		Str("message", ev.Error.Message).
		Msg("service error")
	m.handlers.OnError(ev.Error.Message)
}

// setState changes the lifecycle state and notifies the handler. Repeated
// transitions to the current state are dropped, so per-delta speaking
// updates fire the handler once.
func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()
	m.handlers.OnStatus(s)
}

func (m *Manager) sessionConfig() realtime.SessionConfig {
	cfg := realtime.SessionConfig{
		Modalities:        []string{"text", "audio"},
		Instructions:      m.cfg.Instructions,
		Voice:             realtime.Voice{Name: m.cfg.Voice.Name, Type: m.cfg.Voice.Type},
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		TurnDetection: &realtime.TurnDetection{
			Type:              "server_vad",
			Threshold:         m.cfg.VAD.Threshold,
			PrefixPaddingMS:   m.cfg.VAD.PrefixPaddingMS,
			SilenceDurationMS: m.cfg.VAD.SilenceDurationMS,
		},
	}
	if m.cfg.EchoCancellationEnabled() {
		cfg.InputAudioEchoCancellation = &realtime.EchoCancellation{Type: "server_echo_cancellation"}
	}
	if m.cfg.NoiseSuppressionEnabled() {
		cfg.InputAudioNoiseReduction = &realtime.NoiseReduction{Type: "azure_deep_noise_suppression"}
	}
	if len(m.tools) > 0 {
		cfg.Tools = m.tools
		cfg.ToolChoice = "auto"
	}
	return cfg
}

func (m *Manager) ackTimeout() time.Duration {
	if m.cfg.ConnectTimeoutSeconds > 0 {
		return time.Duration(m.cfg.ConnectTimeoutSeconds) * time.Second
	}
	return 15 * time.Second
}
