// Package relay serves the WebSocket endpoint that bridges voice clients to
// the realtime speech service. Each client connection gets its own speech
// session; the relay forwards microphone audio upstream and synthesized
// audio, transcripts and state changes back down as JSON frames.
package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/parley/internal/audio"
	"github.com/soyeahso/parley/internal/config"
	"github.com/soyeahso/parley/internal/logging"
	"github.com/soyeahso/parley/internal/memory"
	"github.com/soyeahso/parley/internal/metrics"
	"github.com/soyeahso/parley/internal/realtime"
	"github.com/soyeahso/parley/internal/session"
	"github.com/soyeahso/parley/internal/toolbridge"
)

// maxFrameBytes bounds one client frame. Audio frames carry ~100ms of base64
// PCM16, far below this.
const maxFrameBytes = 1 << 20

// VoiceSession is the part of a speech session the relay drives. Satisfied
// by *session.Manager.
type VoiceSession interface {
	Connect(ctx context.Context) error
	Disconnect()
	SendAudio(pcm []byte) error
}

// SessionFactory builds the speech session backing one client connection.
type SessionFactory func(userID string, handlers session.EventHandlers, log *logging.Logger) VoiceSession

// Server bridges WebSocket voice clients to the realtime speech service.
type Server struct {
	cfg       config.Config
	log       *logging.Logger
	clients   *ClientRegistry
	metrics   *metrics.Metrics
	sessions  SessionFactory
	startedAt time.Time

	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// Option configures the relay server.
type Option func(*Server)

// WithSessionFactory overrides how speech sessions are built. Tests use this
// to substitute fakes.
func WithSessionFactory(f SessionFactory) Option {
	return func(s *Server) {
		s.sessions = f
	}
}

// WithMetrics shares an existing metrics instance instead of creating one.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a relay server.
func New(cfg config.Config, log *logging.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log.Sub("relay"),
		clients: NewClientRegistry(log.Sub("clients")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The browser client is served from file:// or another port,
			// so the Origin header never matches. The token check in
			// handleVoice is the real gate.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil && cfg.Server.Metrics {
		s.metrics = metrics.New("parley")
	}
	if s.sessions == nil {
		s.sessions = s.defaultSessionFactory()
	}
	if cfg.Server.AuthToken != "" {
		s.authLimiter = newAuthRateLimiter()
	}
	return s
}

// defaultSessionFactory wires real speech sessions. The dialer, memory
// backend and tool registry are shared across connections; each connection
// gets its own bridge carrying the client's user ID.
func (s *Server) defaultSessionFactory() SessionFactory {
	dialer := realtime.NewDialer(s.cfg.Speech)

	var backend memory.Bridge = memory.Disabled{}
	if s.cfg.MemoryEnabled() && s.cfg.Memory.BaseURL != "" {
		var copts []memory.ClientOption
		if s.cfg.Memory.TimeoutSeconds > 0 {
			copts = append(copts, memory.WithTimeout(time.Duration(s.cfg.Memory.TimeoutSeconds)*time.Second))
		}
		if s.cfg.Memory.App != "" {
			copts = append(copts, memory.WithApp(s.cfg.Memory.App))
		}
		if s.cfg.Memory.AuthToken != "" {
			copts = append(copts, memory.WithAuthToken(s.cfg.Memory.AuthToken))
		}
		backend = memory.NewClient(s.cfg.Memory.BaseURL, copts...)
	}

	registry := toolbridge.NewRegistry()
	toolbridge.RegisterMemoryTools(registry, backend, s.log)
	tools := registry.Definitions()

	budget := 0
	if s.cfg.Audio.MaxBufferSeconds > 0 {
		budget = audio.BytesPerSecond(s.cfg.Audio.SampleRate) * s.cfg.Audio.MaxBufferSeconds
	}

	return func(userID string, handlers session.EventHandlers, log *logging.Logger) VoiceSession {
		var bopts []toolbridge.Option
		if s.cfg.Memory.TimeoutSeconds > 0 {
			bopts = append(bopts, toolbridge.WithTimeout(time.Duration(s.cfg.Memory.TimeoutSeconds)*time.Second))
		}
		if s.metrics != nil {
			bopts = append(bopts, toolbridge.WithMetrics(s.metrics))
		}
		bridge := toolbridge.New(registry, userID, log, bopts...)

		var sopts []session.Option
		if budget > 0 {
			sopts = append(sopts, session.WithPlaybackBudget(budget))
		}
		if s.metrics != nil {
			sopts = append(sopts, session.WithMetrics(s.metrics))
		}
		return session.NewManager(s.cfg.Speech, dialer, bridge, tools, handlers, log, sopts...)
	}
}

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws/voice", s.handleVoice)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      withMiddleware(mux, s.log),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Bool("auth", s.cfg.Server.AuthToken != "").
		Bool("metrics", s.metrics != nil).
		Msg("relay server ready")

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		s.log.Info().Dur("uptime", time.Since(s.startedAt)).Msg("shutting down relay server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleVoice upgrades the connection and is the whole lifetime of one voice
// client: speech session up, frames pumped, everything torn down on return.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if s.authLimiter != nil && !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited, too many failed auth attempts")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	if !authorize(s.cfg.Server.AuthToken, r) {
		if s.authLimiter != nil {
			s.authLimiter.recordFailure(r.RemoteAddr)
		}
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("unauthorized voice connection")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = s.cfg.Server.DefaultUserID
	}
	if userID == "" {
		userID = "anonymous_user"
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	connID := uuid.NewString()
	log := s.log.WithSession(connID)
	client := newClient(connID, conn, userID, log)

	log.Info().
		Str("user_id", userID).
		Str("remote", r.RemoteAddr).
		Msg("voice client connected")

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
		log.Info().Msg("voice client disconnected")
	}()

	sess := s.sessions(userID, &clientHandlers{client: client, log: log}, log)
	defer sess.Disconnect()

	if err := sess.Connect(r.Context()); err != nil {
		log.Error().Err(err).Msg("speech session failed to start")
		client.SendError("failed to start speech session")
		return
	}

	if err := client.SendConnected(); err != nil {
		log.Debug().Err(err).Msg("connected frame dropped")
		return
	}

	s.readLoop(client, sess)
}

// readLoop pumps frames from the client until the socket closes. Malformed
// frames are skipped, not fatal.
func (s *Server) readLoop(client *Client, sess VoiceSession) {
	for {
		payload, err := client.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				client.log.Debug().Msg("client closed connection")
			} else {
				client.log.Warn().Err(err).Msg("client read failed")
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			client.log.Debug().Err(err).Msg("ignoring malformed frame")
			continue
		}

		s.handleFrame(client, sess, frame)
	}
}

func (s *Server) handleFrame(client *Client, sess VoiceSession, frame ClientFrame) {
	switch frame.Type {
	case FrameAudio:
		if client.Muted() {
			return
		}
		pcm, err := base64.StdEncoding.DecodeString(frame.Data)
		if err != nil {
			client.log.Debug().Err(err).Msg("dropping undecodable audio frame")
			return
		}
		if err := sess.SendAudio(pcm); err != nil {
			if errors.Is(err, session.ErrNotConnected) {
				client.log.Debug().Msg("dropping audio, session not ready")
				return
			}
			client.log.Warn().Err(err).Msg("failed to forward audio")
		}

	case FrameMute:
		client.SetMuted(frame.Muted)
		client.log.Debug().Bool("muted", frame.Muted).Msg("mute toggled")
		if err := client.SendMuteStatus(frame.Muted); err != nil {
			client.log.Debug().Err(err).Msg("mute_status frame dropped")
		}

	default:
		client.log.Debug().Str("type", frame.Type).Msg("ignoring unknown frame")
	}
}
