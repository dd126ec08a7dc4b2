package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// llm.url is required.
	if c.LLM.URL == "" {
		errs = append(errs, fmt.Errorf("llm.url is required"))
	}

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// engine.helper_label must not be empty.
	if c.Engine.HelperLabel == "" {
		errs = append(errs, fmt.Errorf("engine.helper_label must not be empty"))
	}

	// session.type must be a known value.
	switch c.Session.Type {
	case "none", "memory", "jsonl", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("session.type must be \"none\", \"memory\", \"jsonl\", or \"postgres\", got %q", c.Session.Type))
	}

	// If session.type is "postgres", DSN or DSNFile must be set.
	if c.Session.Type == "postgres" {
		if c.Session.Postgres.DSN == "" && c.Session.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("session.postgres.dsn or session.postgres.dsn_file is required when session.type is \"postgres\""))
		}
	}

	// If session.type is "jsonl", a directory must be set.
	if c.Session.Type == "jsonl" && c.Session.Dir == "" {
		errs = append(errs, fmt.Errorf("session.dir is required when session.type is \"jsonl\""))
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.Auth.Type == "jwt" && c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.type is \"jwt\""))
	}

	// Instrument entries are validated here only for shape; each kind's
	// constructor applies its own checks when the registry is built.
	seen := make(map[string]bool)
	for i, inst := range c.Instruments {
		if inst.Name == "" {
			errs = append(errs, fmt.Errorf("instruments[%d].name is required", i))
			continue
		}
		if seen[inst.Name] {
			errs = append(errs, fmt.Errorf("instruments[%d]: duplicate name %q", i, inst.Name))
		}
		seen[inst.Name] = true
		switch inst.Kind {
		case "endpoint", "mcp":
			// valid
		default:
			errs = append(errs, fmt.Errorf("instruments[%d].kind must be \"endpoint\" or \"mcp\", got %q", i, inst.Kind))
		}
	}

	return errors.Join(errs...)
}
