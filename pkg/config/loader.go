package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, CENTRAL_CONFIG env, ./central.yaml, /etc/central/central.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. CENTRAL_CONFIG environment variable
// 3. ./central.yaml in the current directory
// 4. /etc/central/central.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("CENTRAL_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"central.yaml",
		"/etc/central/central.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. The
// OPENAI_API_KEY fallback keeps hosted-endpoint setups working without
// any central-specific configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CENTRAL_LLM_URL"); v != "" {
		cfg.LLM.URL = v
	}
	if v := os.Getenv("CENTRAL_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("CENTRAL_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("CENTRAL_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}
	if v := os.Getenv("CENTRAL_STREAM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LLM.Stream = b
		}
	}
	if v := os.Getenv("CENTRAL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CENTRAL_HELPER_LABEL"); v != "" {
		cfg.Engine.HelperLabel = v
	}
	if v := os.Getenv("CENTRAL_KEEP_REASONING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Engine.KeepReasoning = b
		}
	}
	if v := os.Getenv("CENTRAL_SANITIZE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Engine.Sanitize = b
		}
	}
	if v := os.Getenv("CENTRAL_SESSION"); v != "" {
		cfg.Session.Type = v
	}
	if v := os.Getenv("CENTRAL_SESSION_DIR"); v != "" {
		cfg.Session.Dir = v
	}
	if v := os.Getenv("CENTRAL_SESSION_DSN"); v != "" {
		cfg.Session.Postgres.DSN = v
	}
	if v := os.Getenv("CENTRAL_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// llm.api_key_file -> llm.api_key
	if cfg.LLM.APIKeyFile != "" && cfg.LLM.APIKey == "" {
		val, err := readSecretFile(cfg.LLM.APIKeyFile)
		if err != nil {
			return fmt.Errorf("llm.api_key_file: %w", err)
		}
		cfg.LLM.APIKey = val
	}

	// session.postgres.dsn_file -> session.postgres.dsn
	if cfg.Session.Postgres.DSNFile != "" && cfg.Session.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Session.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("session.postgres.dsn_file: %w", err)
		}
		cfg.Session.Postgres.DSN = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	// auth.jwt.secret_file -> auth.jwt.secret
	if cfg.Auth.JWT.SecretFile != "" && cfg.Auth.JWT.Secret == "" {
		val, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
