package config

import "fmt"

// DefaultInstructions is the assistant persona sent when the config does not
// override it. The memory-tool guidance matters: without it models rarely
// call search_memory unprompted.
const DefaultInstructions = `You are Parley, a helpful voice assistant with long-term memory.
You can remember facts about the user across sessions.
Use search_memory before answering personal questions like "what's my favorite..." or "do you remember...".
Use add_memory when the user shares personal information, preferences, or important details.
Be conversational, concise, and helpful.`

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          8080,
			DefaultUserID: "anonymous_user",
			Metrics:       true,
		},
		Speech: SpeechConfig{
			Model:      "gpt-4o-mini-realtime-preview",
			APIVersion: "2025-05-01-preview",
			Voice: VoiceConfig{
				Name: "en-US-AvaNeural",
				Type: "azure-standard",
			},
			Instructions: DefaultInstructions,
			VAD: VADConfig{
				Threshold:         0.5,
				PrefixPaddingMS:   300,
				SilenceDurationMS: 500,
			},
			ConnectTimeoutSeconds: 15,
		},
		Memory: MemoryConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
			App:            "parley-voice",
		},
		Audio: AudioConfig{
			SampleRate:       24000,
			ChunkMS:          50,
			MaxBufferSeconds: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
