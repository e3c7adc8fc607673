package realtime

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned when writing to a closed connection.
var ErrConnClosed = errors.New("realtime connection closed")

// Conn is a live connection to the speech service. Writes are safe for
// concurrent use; ReadEvent must be called from a single goroutine.
type Conn interface {
	// UpdateSession sends the session configuration.
	UpdateSession(cfg SessionConfig) error

	// AppendAudio streams one base64-encoded PCM16 chunk of caller audio.
	AppendAudio(audioB64 string) error

	// CreateFunctionOutput reports a tool result for callID, inserted
	// after previousItemID. output is the JSON-encoded result envelope.
	CreateFunctionOutput(previousItemID, callID, output string) error

	// CreateResponse asks the model to continue the conversation.
	CreateResponse() error

	// ReadEvent blocks for the next server event.
	ReadEvent() (ServerEvent, error)

	// Close tears down the connection. Safe to call more than once.
	Close() error
}

// wsConn implements Conn over a WebSocket.
type wsConn struct {
	sock *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// NewConn wraps an established WebSocket in a Conn.
func NewConn(sock *websocket.Conn) Conn {
	return &wsConn{sock: sock}
}

func (c *wsConn) UpdateSession(cfg SessionConfig) error {
	return c.send(sessionUpdateEvent{Type: "session.update", Session: cfg})
}

func (c *wsConn) AppendAudio(audioB64 string) error {
	return c.send(audioAppendEvent{Type: "input_audio_buffer.append", Audio: audioB64})
}

func (c *wsConn) CreateFunctionOutput(previousItemID, callID, output string) error {
	return c.send(itemCreateEvent{
		Type:           "conversation.item.create",
		PreviousItemID: previousItemID,
		Item: functionOutputItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	})
}

func (c *wsConn) CreateResponse() error {
	return c.send(responseCreateEvent{Type: "response.create"})
}

func (c *wsConn) ReadEvent() (ServerEvent, error) {
	_, msg, err := c.sock.ReadMessage()
	if err != nil {
		return nil, err
	}
	return ParseServerEvent(msg)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}

// send serializes writes; the dispatch goroutine and the tool executor
// both write to the same socket.
func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.sock.WriteJSON(v)
}

// Client event structures

type sessionUpdateEvent struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type audioAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type itemCreateEvent struct {
	Type           string             `json:"type"`
	PreviousItemID string             `json:"previous_item_id,omitempty"`
	Item           functionOutputItem `json:"item"`
}

type functionOutputItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

type responseCreateEvent struct {
	Type string `json:"type"`
}
