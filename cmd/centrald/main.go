// Command centrald runs the central conversation daemon: one engine, one
// conversation, exposed over HTTP.
//
// Configuration is layered: defaults, then a YAML file (CENTRAL_CONFIG,
// ./central.yaml, /etc/central/central.yaml), then environment overrides
// such as CENTRAL_LLM_URL and CENTRAL_LLM_MODEL.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/noctics/central/pkg/auth"
	"github.com/noctics/central/pkg/auth/apikey"
	"github.com/noctics/central/pkg/auth/jwt"
	"github.com/noctics/central/pkg/backend"
	"github.com/noctics/central/pkg/config"
	"github.com/noctics/central/pkg/debug"
	"github.com/noctics/central/pkg/engine"
	"github.com/noctics/central/pkg/instrument"
	"github.com/noctics/central/pkg/sanitize"
	"github.com/noctics/central/pkg/server"
	"github.com/noctics/central/pkg/session/jsonl"
	"github.com/noctics/central/pkg/session/memory"
	"github.com/noctics/central/pkg/session/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("centrald failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Categories and level come from CENTRAL_DEBUG and CENTRAL_LOG_LEVEL.
	debug.Init("", "")

	cfg, err := config.Load(os.Getenv("CENTRAL_CONFIG"))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	endpoint := backend.ResolveEndpoint(cfg.LLM.URL)
	slog.Info("backend resolved",
		"url", endpoint.URL,
		"mode", endpoint.Mode,
		"model", cfg.LLM.Model,
		"stream", cfg.LLM.Stream,
	)

	recorder, cleanup, err := buildRecorder(cfg)
	if err != nil {
		return fmt.Errorf("creating session recorder: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	engCfg := engine.Config{
		Endpoint:      endpoint,
		Options:       buildOptions(cfg),
		HelperLabel:   cfg.Engine.HelperLabel,
		KeepReasoning: cfg.Engine.KeepReasoning,
		Recorder:      recorder,
		Timeout:       cfg.LLM.Timeout,
	}
	if cfg.Engine.Sanitize {
		engCfg.Sanitize = sanitize.Redact
	}
	eng := engine.New(engCfg)
	defer eng.Close()

	registry, err := instrument.NewRegistry(instrumentConfigs(cfg))
	if err != nil {
		return fmt.Errorf("creating instrument registry: %w", err)
	}
	defer registry.Close()
	if names := registry.Names(); len(names) > 0 {
		slog.Info("instruments configured", "names", names)
	}

	opts := []server.ServerOption{
		server.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, server.WithMetricsPath(cfg.Observability.Metrics.Path))
	} else {
		opts = append(opts, server.WithMetricsPath(""))
	}
	if chain := buildAuthChain(cfg); chain != nil {
		opts = append(opts, server.WithAuth(chain))
		slog.Info("authentication enabled", "type", cfg.Auth.Type)
	}

	srv := server.NewServer(server.NewHandlers(eng, registry), opts...)
	return srv.ListenAndServe()
}

// buildOptions maps the LLM configuration onto transport options.
func buildOptions(cfg *config.Config) backend.Options {
	return backend.Options{
		Model:         cfg.LLM.Model,
		ModelOverride: cfg.LLM.ModelOverride,
		APIKey:        cfg.LLM.APIKey,
		Stream:        cfg.LLM.Stream,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		NumThread:     cfg.LLM.NumThread,
		NumCtx:        cfg.LLM.NumCtx,
		NumBatch:      cfg.LLM.NumBatch,
		KeepAlive:     cfg.LLM.KeepAlive,
	}
}

// buildRecorder creates the configured session recorder. The returned
// cleanup closes the recorder and, for file-backed sessions, removes the
// files again when nothing was recorded.
func buildRecorder(cfg *config.Config) (engine.Recorder, func(), error) {
	sanitized := cfg.Engine.Sanitize
	switch cfg.Session.Type {
	case "none":
		return nil, nil, nil

	case "memory":
		rec := memory.New(cfg.LLM.Model, sanitized, cfg.Session.MaxSize)
		return rec, func() { rec.Close() }, nil

	case "jsonl":
		rec, err := jsonl.New(cfg.Session.Dir, cfg.LLM.Model, sanitized)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("session recording enabled", "type", "jsonl", "path", rec.Path())
		cleanup := func() {
			rec.Close()
			if removed, _ := rec.DeleteIfEmpty(); removed {
				slog.Info("removed empty session", "path", rec.Path())
			}
		}
		return rec, cleanup, nil

	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Session.Postgres.DSN,
			MaxConns:       cfg.Session.Postgres.MaxConns,
			MigrateOnStart: cfg.Session.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, nil, err
		}
		rec, err := store.NewRecorder(ctx, cfg.LLM.Model, sanitized)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		slog.Info("session recording enabled", "type", "postgres", "session_id", rec.SessionID())
		return rec, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown session type %q", cfg.Session.Type)
	}
}

// instrumentConfigs converts configuration entries to registry configs.
func instrumentConfigs(cfg *config.Config) []instrument.Config {
	out := make([]instrument.Config, 0, len(cfg.Instruments))
	for _, ic := range cfg.Instruments {
		out = append(out, instrument.Config{
			Name:      ic.Name,
			Kind:      ic.Kind,
			URL:       ic.URL,
			Model:     ic.Model,
			APIKey:    ic.APIKey,
			Tool:      ic.Tool,
			Transport: ic.Transport,
			Headers:   ic.Headers,
		})
	}
	return out
}

// buildAuthChain assembles the authenticator chain, or nil when the
// façade runs open.
func buildAuthChain(cfg *config.Config) *auth.AuthChain {
	switch cfg.Auth.Type {
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: k.Subject},
			})
		}
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{apikey.New(entries)},
			DefaultDecision: auth.No,
		}
	case "jwt":
		return &auth.AuthChain{
			Authenticators: []auth.Authenticator{jwt.New(jwt.Config{
				Secret: cfg.Auth.JWT.Secret,
				Issuer: cfg.Auth.JWT.Issuer,
			})},
			DefaultDecision: auth.No,
		}
	default:
		return nil
	}
}
