// Package config provides unified configuration for central.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (CENTRAL_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for central.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Engine        EngineConfig        `yaml:"engine"`
	Session       SessionConfig       `yaml:"session"`
	Auth          AuthConfig          `yaml:"auth"`
	Instruments   []InstrumentConfig  `yaml:"instruments"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP façade settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 120s
}

// LLMConfig holds the inference endpoint and generation tuning.
// The endpoint mode (generate, chat, openai_compatible) is derived from
// the URL path, never configured separately.
type LLMConfig struct {
	URL           string        `yaml:"url"`            // required
	Model         string        `yaml:"model"`          // configured model identifier
	ModelOverride string        `yaml:"model_override"` // takes priority over aliasing
	APIKey        string        `yaml:"api_key"`
	APIKeyFile    string        `yaml:"api_key_file"` // _file variant for api_key
	Stream        bool          `yaml:"stream"`       // default: true
	Timeout       time.Duration `yaml:"timeout"`      // non-streaming exchange timeout, default: 120s

	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
	NumThread   *int     `yaml:"num_thread,omitempty"`
	NumCtx      *int     `yaml:"num_ctx,omitempty"`
	NumBatch    *int     `yaml:"num_batch,omitempty"`
	KeepAlive   string   `yaml:"keep_alive,omitempty"`
}

// EngineConfig holds conversation engine behavior settings.
type EngineConfig struct {
	HelperLabel   string `yaml:"helper_label"`   // default: "HELPER"
	KeepReasoning bool   `yaml:"keep_reasoning"` // default: false
	Sanitize      bool   `yaml:"sanitize"`       // default: false
}

// SessionConfig holds session recording settings.
type SessionConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory", "jsonl", or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory recorder, default: 10000
	Dir      string         `yaml:"dir"`      // for jsonl recorder, default: "sessions"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds façade authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none", "apikey", or "jwt", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
	JWT     JWTConfig      `yaml:"jwt"`      // settings for type=jwt
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"` // _file variant for key
	Subject string `yaml:"subject"`
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`      // expected issuer, empty = not checked
}

// InstrumentConfig describes one configured instrument.
type InstrumentConfig struct {
	Name      string            `yaml:"name"`
	Kind      string            `yaml:"kind"` // "endpoint" or "mcp"
	URL       string            `yaml:"url"`
	Model     string            `yaml:"model,omitempty"`
	APIKey    string            `yaml:"api_key,omitempty"`
	Tool      string            `yaml:"tool,omitempty"`
	Transport string            `yaml:"transport,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		LLM: LLMConfig{
			Stream:  true,
			Timeout: 120 * time.Second,
		},
		Engine: EngineConfig{
			HelperLabel: "HELPER",
		},
		Session: SessionConfig{
			Type:    "memory",
			MaxSize: 10000,
			Dir:     "sessions",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
