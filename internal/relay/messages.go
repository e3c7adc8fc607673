package relay

// Frame types received from voice clients.
const (
	FrameAudio = "audio"
	FrameMute  = "mute"
)

// Frame types sent to voice clients.
const (
	FrameConnected  = "connected"
	FrameTranscript = "transcript"
	FrameClearAudio = "clear_audio"
	FrameStatus     = "status"
	FrameMuteStatus = "mute_status"
	FrameError      = "error"
)

// ClientFrame is one JSON message received from a voice client. Data carries
// base64 PCM16 for audio frames; Muted applies to mute frames. Unknown types
// are ignored.
type ClientFrame struct {
	Type  string `json:"type"`
	Data  string `json:"data,omitempty"`
	Muted bool   `json:"muted,omitempty"`
}

// Outbound frame shapes. Each carries only the fields its type defines.

type connectedFrame struct {
	Type string `json:"type"`
}

type audioFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type transcriptFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type clearAudioFrame struct {
	Type string `json:"type"`
}

type statusFrame struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

type muteStatusFrame struct {
	Type  string `json:"type"`
	Muted bool   `json:"muted"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
