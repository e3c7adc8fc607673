package config

// Config is the root configuration for parley.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Speech  SpeechConfig  `yaml:"speech,omitempty"`
	Memory  MemoryConfig  `yaml:"memory,omitempty"`
	Audio   AudioConfig   `yaml:"audio,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig controls the relay HTTP/WebSocket server.
type ServerConfig struct {
	Host          string `yaml:"host,omitempty"`
	Port          int    `yaml:"port,omitempty"`
	AuthToken     string `yaml:"authToken,omitempty"` // optional bearer token for /ws/voice; empty disables auth
	DefaultUserID string `yaml:"defaultUserId,omitempty"`
	Metrics       bool   `yaml:"metrics,omitempty"` // expose /metrics
}

// SpeechConfig selects and tunes the remote realtime speech service.
type SpeechConfig struct {
	Endpoint              string       `yaml:"endpoint,omitempty"` // e.g. wss://myres.cognitiveservices.azure.com
	Model                 string       `yaml:"model,omitempty"`
	APIVersion            string       `yaml:"apiVersion,omitempty"`
	APIKey                string       `yaml:"apiKey,omitempty"` // supports ${VAR} references
	Entra                 *EntraConfig `yaml:"entra,omitempty"`  // client-credential auth; used when apiKey is empty
	Voice                 VoiceConfig  `yaml:"voice,omitempty"`
	Instructions          string       `yaml:"instructions,omitempty"`
	VAD                   VADConfig    `yaml:"vad,omitempty"`
	NoiseSuppression      *bool        `yaml:"noiseSuppression,omitempty"` // deep noise suppression; default on
	EchoCancellation      *bool        `yaml:"echoCancellation,omitempty"` // default on
	ConnectTimeoutSeconds int          `yaml:"connectTimeoutSeconds,omitempty"`
}

// EntraConfig holds Entra ID client-credential settings for bearer auth.
type EntraConfig struct {
	TenantID     string `yaml:"tenantId"`
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"` // supports ${VAR} references
}

// VoiceConfig selects the assistant voice.
type VoiceConfig struct {
	Name string `yaml:"name,omitempty"`
	Type string `yaml:"type,omitempty"`
}

// VADConfig tunes server-side voice activity detection.
type VADConfig struct {
	Threshold         float64 `yaml:"threshold,omitempty"`
	PrefixPaddingMS   int     `yaml:"prefixPaddingMs,omitempty"`
	SilenceDurationMS int     `yaml:"silenceDurationMs,omitempty"`
}

// MemoryConfig configures the long-term-memory backend.
type MemoryConfig struct {
	Enabled        *bool  `yaml:"enabled,omitempty"`
	BaseURL        string `yaml:"baseUrl,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
	App            string `yaml:"app,omitempty"`       // topic tag attached to stored memories
	AuthToken      string `yaml:"authToken,omitempty"` // supports ${VAR} references
}

// AudioConfig describes the PCM stream both transports speak.
type AudioConfig struct {
	SampleRate       int `yaml:"sampleRate,omitempty"`
	ChunkMS          int `yaml:"chunkMs,omitempty"`
	MaxBufferSeconds int `yaml:"maxBufferSeconds,omitempty"` // playback queue byte budget
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Format string `yaml:"format,omitempty"` // "console" | "json"
}

// MemoryEnabled reports the effective enabled state (default true).
func (c *Config) MemoryEnabled() bool {
	return c.Memory.Enabled == nil || *c.Memory.Enabled
}

// NoiseSuppressionEnabled reports the effective state (default true).
func (c *SpeechConfig) NoiseSuppressionEnabled() bool {
	return c.NoiseSuppression == nil || *c.NoiseSuppression
}

// EchoCancellationEnabled reports the effective state (default true).
func (c *SpeechConfig) EchoCancellationEnabled() bool {
	return c.EchoCancellation == nil || *c.EchoCancellation
}
