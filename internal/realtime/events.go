// Package realtime is the wire layer for the remote speech service: a
// WebSocket connection speaking the realtime JSON event protocol, typed
// decoding of server events, and authenticated dialing.
package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ServerEvent is a decoded event from the speech service.
type ServerEvent interface {
	// EventType returns the wire event type string.
	EventType() string
}

// SessionCreated is sent once after the connection is established.
type SessionCreated struct {
	Session json.RawMessage `json:"session"`
}

func (e *SessionCreated) EventType() string { return "session.created" }

// SessionUpdated acknowledges a session.update.
type SessionUpdated struct {
	Session json.RawMessage `json:"session"`
}

func (e *SessionUpdated) EventType() string { return "session.updated" }

// SpeechStarted is emitted by server VAD when the user starts talking.
type SpeechStarted struct {
	AudioStartMS int64  `json:"audio_start_ms"`
	ItemID       string `json:"item_id"`
}

func (e *SpeechStarted) EventType() string { return "input_audio_buffer.speech_started" }

// SpeechStopped is emitted by server VAD when the user stops talking.
type SpeechStopped struct {
	AudioEndMS int64  `json:"audio_end_ms"`
	ItemID     string `json:"item_id"`
}

func (e *SpeechStopped) EventType() string { return "input_audio_buffer.speech_stopped" }

// AudioDelta carries one base64-encoded chunk of synthesized audio.
type AudioDelta struct {
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
}

func (e *AudioDelta) EventType() string { return "response.audio.delta" }

// Decode returns the raw PCM16 bytes of the chunk.
func (e *AudioDelta) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.Delta)
}

// TranscriptDelta carries one increment of the spoken response text.
type TranscriptDelta struct {
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
}

func (e *TranscriptDelta) EventType() string { return "response.audio_transcript.delta" }

// AudioDone marks the end of synthesized audio for a response.
type AudioDone struct {
	ResponseID string `json:"response_id"`
}

func (e *AudioDone) EventType() string { return "response.audio.done" }

// ResponseDone marks the end of a model response turn.
type ResponseDone struct {
	Response json.RawMessage `json:"response"`
}

func (e *ResponseDone) EventType() string { return "response.done" }

// ItemCreated is emitted when a conversation item is added server-side.
// Function call announcements arrive as items of type "function_call".
type ItemCreated struct {
	PreviousItemID string           `json:"previous_item_id"`
	Item           ConversationItem `json:"item"`
}

func (e *ItemCreated) EventType() string { return "conversation.item.created" }

// ConversationItem is the item payload inside conversation events.
type ConversationItem struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	CallID string `json:"call_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// ItemTypeFunctionCall identifies a function call announcement item.
const ItemTypeFunctionCall = "function_call"

// FunctionCallArgumentsDone delivers the complete argument text for a
// previously announced function call.
type FunctionCallArgumentsDone struct {
	ItemID    string `json:"item_id"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (e *FunctionCallArgumentsDone) EventType() string {
	return "response.function_call_arguments.done"
}

// ServerError is an error reported by the speech service.
type ServerError struct {
	Error ErrorDetail `json:"error"`
}

func (e *ServerError) EventType() string { return "error" }

// ErrorDetail describes a service error.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnknownEvent preserves events this client does not handle.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e *UnknownEvent) EventType() string { return e.Type }

// ParseServerEvent decodes one wire message into a typed server event.
// Unrecognized event types decode to *UnknownEvent so the protocol can
// grow without breaking this client.
func ParseServerEvent(data []byte) (ServerEvent, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}

	var ev ServerEvent
	switch head.Type {
	case "session.created":
		ev = &SessionCreated{}
	case "session.updated":
		ev = &SessionUpdated{}
	case "input_audio_buffer.speech_started":
		ev = &SpeechStarted{}
	case "input_audio_buffer.speech_stopped":
		ev = &SpeechStopped{}
	case "response.audio.delta":
		ev = &AudioDelta{}
	case "response.audio_transcript.delta":
		ev = &TranscriptDelta{}
	case "response.audio.done":
		ev = &AudioDone{}
	case "response.done":
		ev = &ResponseDone{}
	case "conversation.item.created":
		ev = &ItemCreated{}
	case "response.function_call_arguments.done":
		ev = &FunctionCallArgumentsDone{}
	case "error":
		ev = &ServerError{}
	default:
		return &UnknownEvent{Type: head.Type, Raw: data}, nil
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("failed to parse %s event: %w", head.Type, err)
	}
	return ev, nil
}

// SessionConfig is the session.update payload that configures voice,
// instructions, audio formats, turn detection and tools.
type SessionConfig struct {
	Modalities                 []string          `json:"modalities"`
	Instructions               string            `json:"instructions"`
	Voice                      Voice             `json:"voice"`
	InputAudioFormat           string            `json:"input_audio_format"`
	OutputAudioFormat          string            `json:"output_audio_format"`
	TurnDetection              *TurnDetection    `json:"turn_detection,omitempty"`
	InputAudioEchoCancellation *EchoCancellation `json:"input_audio_echo_cancellation,omitempty"`
	InputAudioNoiseReduction   *NoiseReduction   `json:"input_audio_noise_reduction,omitempty"`
	Tools                      []FunctionTool    `json:"tools,omitempty"`
	ToolChoice                 string            `json:"tool_choice,omitempty"`
}

// Voice selects the synthesis voice.
type Voice struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// TurnDetection configures server-side VAD.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

// EchoCancellation enables server-side echo cancellation.
type EchoCancellation struct {
	Type string `json:"type"`
}

// NoiseReduction enables server-side noise reduction.
type NoiseReduction struct {
	Type string `json:"type"`
}

// FunctionTool declares one callable tool to the model.
type FunctionTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
