package session

// EventHandlers receives session events. Methods are called from the
// dispatch goroutine or from the goroutine driving Connect/Disconnect, one
// at a time per event; implementations should hand off slow work instead of
// blocking the stream.
type EventHandlers interface {
	// OnStatus fires on every lifecycle state change.
	OnStatus(state State)

	// OnAudio receives one decoded PCM16 chunk of assistant audio.
	OnAudio(pcm []byte)

	// OnTranscript receives an incremental assistant transcript delta.
	OnTranscript(text string)

	// OnSpeechStarted fires when the service detects caller speech, after
	// queued assistant playback has been cut.
	OnSpeechStarted()

	// OnError reports a service error event or a fatal transport failure.
	OnError(message string)
}

// NoopHandlers implements EventHandlers with no-ops. Embed it to override
// only the events a caller cares about.
type NoopHandlers struct{}

func (NoopHandlers) OnStatus(State)      {}
func (NoopHandlers) OnAudio([]byte)      {}
func (NoopHandlers) OnTranscript(string) {}
func (NoopHandlers) OnSpeechStarted()    {}
func (NoopHandlers) OnError(string)      {}
