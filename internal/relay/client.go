package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/parley/internal/logging"
)

// ErrClientClosed is returned when sending to a closed client.
var ErrClientClosed = errors.New("client connection closed")

// Client is one connected voice client. Writes are serialized; gorilla
// websocket connections do not tolerate concurrent writers.
type Client struct {
	ConnID      string
	UserID      string
	ConnectedAt time.Time

	socket *websocket.Conn
	log    *logging.Logger

	mu     sync.Mutex
	closed bool
	muted  bool
}

func newClient(connID string, socket *websocket.Conn, userID string, log *logging.Logger) *Client {
	return &Client{
		ConnID:      connID,
		UserID:      userID,
		ConnectedAt: time.Now(),
		socket:      socket,
		log:         log,
	}
}

// ReadMessage blocks for the next raw frame from the client.
func (c *Client) ReadMessage() ([]byte, error) {
	_, payload, err := c.socket.ReadMessage()
	return payload, err
}

func (c *Client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return c.socket.WriteJSON(v)
}

// SendConnected tells the client its speech session is live.
func (c *Client) SendConnected() error {
	return c.send(connectedFrame{Type: FrameConnected})
}

// SendAudio forwards one base64 PCM16 chunk to the client.
func (c *Client) SendAudio(data string) error {
	return c.send(audioFrame{Type: FrameAudio, Data: data})
}

// SendTranscript forwards one transcript fragment.
func (c *Client) SendTranscript(text string) error {
	return c.send(transcriptFrame{Type: FrameTranscript, Text: text})
}

// SendClearAudio tells the client to drop any audio it has queued locally.
func (c *Client) SendClearAudio() error {
	return c.send(clearAudioFrame{Type: FrameClearAudio})
}

// SendStatus reports a session state change.
func (c *Client) SendStatus(state string) error {
	return c.send(statusFrame{Type: FrameStatus, State: state})
}

// SendMuteStatus confirms the client's mute state.
func (c *Client) SendMuteStatus(muted bool) error {
	return c.send(muteStatusFrame{Type: FrameMuteStatus, Muted: muted})
}

// SendError reports a failure the client should surface.
func (c *Client) SendError(message string) error {
	return c.send(errorFrame{Type: FrameError, Message: message})
}

// SetMuted flips whether inbound audio from this client is dropped.
func (c *Client) SetMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = muted
}

// Muted reports whether inbound audio is currently dropped.
func (c *Client) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Close shuts the underlying socket. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.socket.Close()
}

// ClientRegistry tracks connected voice clients by connection ID.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.log.Debug().
		Str("conn_id", c.ConnID).
		Str("user_id", c.UserID).
		Int("total", len(r.clients)).
		Msg("client registered")
}

// Remove drops a client from the registry.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[connID]; !ok {
		return
	}
	delete(r.clients, connID)
	r.log.Debug().
		Str("conn_id", connID).
		Int("total", len(r.clients)).
		Msg("client removed")
}

// Get looks up a client by connection ID.
func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll closes every connected client. Used during shutdown.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		if err := c.Close(); err != nil {
			r.log.Debug().Err(err).Str("conn_id", id).Msg("close failed")
		}
		delete(r.clients, id)
	}
}
