package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	if cfg.Speech.Endpoint != "" && !hasScheme(cfg.Speech.Endpoint) {
		issues = append(issues, ValidationIssue{
			Path:    "speech.endpoint",
			Message: fmt.Sprintf("must be a ws(s):// or http(s):// URL, got %q", cfg.Speech.Endpoint),
		})
	}

	if cfg.Speech.VAD.Threshold < 0 || cfg.Speech.VAD.Threshold > 1 {
		issues = append(issues, ValidationIssue{
			Path:    "speech.vad.threshold",
			Message: fmt.Sprintf("must be within [0, 1], got %v", cfg.Speech.VAD.Threshold),
		})
	}
	if cfg.Speech.VAD.PrefixPaddingMS < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "speech.vad.prefixPaddingMs",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Speech.VAD.PrefixPaddingMS),
		})
	}
	if cfg.Speech.VAD.SilenceDurationMS < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "speech.vad.silenceDurationMs",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Speech.VAD.SilenceDurationMS),
		})
	}

	if e := cfg.Speech.Entra; e != nil {
		if e.TenantID == "" {
			issues = append(issues, ValidationIssue{Path: "speech.entra.tenantId", Message: "tenantId is required"})
		}
		if e.ClientID == "" {
			issues = append(issues, ValidationIssue{Path: "speech.entra.clientId", Message: "clientId is required"})
		}
		if e.ClientSecret == "" {
			issues = append(issues, ValidationIssue{Path: "speech.entra.clientSecret", Message: "clientSecret is required"})
		}
	}

	if cfg.Memory.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "memory.timeoutSeconds",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Memory.TimeoutSeconds),
		})
	}
	if cfg.MemoryEnabled() && cfg.Memory.BaseURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "memory.baseUrl",
			Message: "required while memory is enabled",
		})
	}

	if cfg.Audio.SampleRate <= 0 {
		issues = append(issues, ValidationIssue{
			Path:    "audio.sampleRate",
			Message: fmt.Sprintf("must be > 0, got %d", cfg.Audio.SampleRate),
		})
	}
	if cfg.Audio.ChunkMS <= 0 {
		issues = append(issues, ValidationIssue{
			Path:    "audio.chunkMs",
			Message: fmt.Sprintf("must be > 0, got %d", cfg.Audio.ChunkMS),
		})
	}
	if cfg.Audio.MaxBufferSeconds <= 0 {
		issues = append(issues, ValidationIssue{
			Path:    "audio.maxBufferSeconds",
			Message: fmt.Sprintf("must be > 0, got %d", cfg.Audio.MaxBufferSeconds),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validLogFormats := []string{"console", "json"}
	if cfg.Logging.Format != "" && !slices.Contains(validLogFormats, cfg.Logging.Format) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.format",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogFormats, cfg.Logging.Format),
		})
	}

	return issues
}

// ValidateForSpeech reports issues that prevent connecting to the speech
// service. Separate from Validate because the relay keeps serving mute
// toggles when speech is unconfigured instead of refusing to start.
func ValidateForSpeech(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	if cfg.Speech.Endpoint == "" {
		issues = append(issues, ValidationIssue{
			Path:    "speech.endpoint",
			Message: "endpoint is required to reach the speech service",
		})
	}
	if cfg.Speech.APIKey == "" && cfg.Speech.Entra == nil {
		issues = append(issues, ValidationIssue{
			Path:    "speech.apiKey",
			Message: "set apiKey or configure entra client credentials",
		})
	}
	return issues
}

func hasScheme(u string) bool {
	for _, p := range []string{"ws://", "wss://", "http://", "https://"} {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}
