package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Server.AuthToken = expandEnvVars(cfg.Server.AuthToken)
	cfg.Speech.APIKey = expandEnvVars(cfg.Speech.APIKey)
	cfg.Memory.AuthToken = expandEnvVars(cfg.Memory.AuthToken)
	if cfg.Speech.Entra != nil {
		cfg.Speech.Entra.ClientSecret = expandEnvVars(cfg.Speech.Entra.ClientSecret)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults. Unmarshal
// overwrites whole structs, so re-fill anything the file left empty.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.DefaultUserID == "" {
		cfg.Server.DefaultUserID = "anonymous_user"
	}
	if cfg.Speech.Model == "" {
		cfg.Speech.Model = "gpt-4o-mini-realtime-preview"
	}
	if cfg.Speech.APIVersion == "" {
		cfg.Speech.APIVersion = "2025-05-01-preview"
	}
	if cfg.Speech.Voice.Name == "" {
		cfg.Speech.Voice.Name = "en-US-AvaNeural"
	}
	if cfg.Speech.Voice.Type == "" {
		cfg.Speech.Voice.Type = "azure-standard"
	}
	if cfg.Speech.Instructions == "" {
		cfg.Speech.Instructions = DefaultInstructions
	}
	if cfg.Speech.VAD.Threshold == 0 {
		cfg.Speech.VAD.Threshold = 0.5
	}
	if cfg.Speech.VAD.PrefixPaddingMS == 0 {
		cfg.Speech.VAD.PrefixPaddingMS = 300
	}
	if cfg.Speech.VAD.SilenceDurationMS == 0 {
		cfg.Speech.VAD.SilenceDurationMS = 500
	}
	if cfg.Speech.ConnectTimeoutSeconds == 0 {
		cfg.Speech.ConnectTimeoutSeconds = 15
	}
	if cfg.Memory.BaseURL == "" {
		cfg.Memory.BaseURL = "http://localhost:8000"
	}
	if cfg.Memory.TimeoutSeconds == 0 {
		cfg.Memory.TimeoutSeconds = 30
	}
	if cfg.Memory.App == "" {
		cfg.Memory.App = "parley-voice"
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 24000
	}
	if cfg.Audio.ChunkMS == 0 {
		cfg.Audio.ChunkMS = 50
	}
	if cfg.Audio.MaxBufferSeconds == 0 {
		cfg.Audio.MaxBufferSeconds = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// applyEnvOverrides reads PARLEY_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PARLEY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PARLEY_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("PARLEY_SPEECH_ENDPOINT"); v != "" {
		cfg.Speech.Endpoint = v
	}
	if v := os.Getenv("PARLEY_SPEECH_API_KEY"); v != "" {
		cfg.Speech.APIKey = v
	}
	if v := os.Getenv("PARLEY_SPEECH_MODEL"); v != "" {
		cfg.Speech.Model = v
	}
	if v := os.Getenv("PARLEY_MEMORY_URL"); v != "" {
		cfg.Memory.BaseURL = v
	}
	if v := os.Getenv("PARLEY_MEMORY_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Memory.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("PARLEY_MEMORY_ENABLED"); v != "" {
		enabled := parseBool(v)
		cfg.Memory.Enabled = &enabled
	}
}

// parseBool accepts the usual spellings of truth.
func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
