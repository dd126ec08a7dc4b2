// Package postgres provides a PostgreSQL-backed session recorder. It
// uses pgx/v5 for connection pooling. A single Store (one pool) serves
// any number of per-session Recorders.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noctics/central/pkg/api"
	"github.com/noctics/central/pkg/engine"
	"github.com/noctics/central/pkg/session"
)

// Store owns the connection pool shared by session recorders.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// NewRecorder creates a session row and returns a recorder bound to it.
func (s *Store) NewRecorder(ctx context.Context, model string, sanitized bool) (*Recorder, error) {
	id := api.NewSessionID()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, model, sanitized)
		VALUES ($1, $2, $3)`,
		id, model, sanitized,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Recorder{store: s, id: id}, nil
}

// Messages returns the recorded messages of a session in commit order.
// Returns session.ErrNotFound if the session does not exist.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]api.Message, error) {
	if _, err := s.Meta(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT role, content
		FROM session_messages
		WHERE session_id = $1
		ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying session messages: %w", err)
	}
	defer rows.Close()

	var msgs []api.Message
	for rows.Next() {
		var m api.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scanning session message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session messages: %w", err)
	}

	return msgs, nil
}

// Meta returns the metadata of a session. Returns session.ErrNotFound
// if the session does not exist.
func (s *Store) Meta(ctx context.Context, sessionID string) (session.Meta, error) {
	var m session.Meta
	err := s.pool.QueryRow(ctx, `
		SELECT id, model, sanitized, title, title_custom, turns, created_at, updated_at
		FROM sessions
		WHERE id = $1`,
		sessionID,
	).Scan(&m.ID, &m.Model, &m.Sanitized, &m.Title, &m.TitleCustom, &m.Turns, &m.Created, &m.Updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Meta{}, session.ErrNotFound
	}
	if err != nil {
		return session.Meta{}, fmt.Errorf("querying session: %w", err)
	}
	return m, nil
}

// Recent returns metadata for the most recently updated sessions.
func (s *Store) Recent(ctx context.Context, limit int) ([]session.Meta, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, model, sanitized, title, title_custom, turns, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var metas []session.Meta
	for rows.Next() {
		var m session.Meta
		if err := rows.Scan(&m.ID, &m.Model, &m.Sanitized, &m.Title, &m.TitleCustom,
			&m.Turns, &m.Created, &m.Updated); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return metas, nil
}

// Recorder appends committed messages to one session.
type Recorder struct {
	store *Store
	id    string
}

// Ensure Recorder implements engine.Recorder at compile time.
var _ engine.Recorder = (*Recorder)(nil)

// SessionID returns the ID of the session this recorder writes to.
func (r *Recorder) SessionID() string {
	return r.id
}

// Record inserts one message and bumps the session's turn counter when
// the message is an assistant reply. Both writes happen in one
// transaction so the counter never drifts from the message log.
func (r *Recorder) Record(ctx context.Context, msg api.Message) error {
	tx, err := r.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO session_messages (session_id, role, content)
		VALUES ($1, $2, $3)`,
		r.id, msg.Role, msg.Content,
	); err != nil {
		return fmt.Errorf("inserting session message: %w", err)
	}

	turnBump := 0
	if msg.Role == api.RoleAssistant {
		turnBump = 1
	}
	if _, err := tx.Exec(ctx, `
		UPDATE sessions
		SET turns = turns + $2, updated_at = $3
		WHERE id = $1`,
		r.id, turnBump, time.Now(),
	); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing session record: %w", err)
	}
	return nil
}

// SetTitle updates the session title. A custom title never gets
// overwritten by a derived one.
func (r *Recorder) SetTitle(ctx context.Context, title string, custom bool) error {
	_, err := r.store.pool.Exec(ctx, `
		UPDATE sessions
		SET title = $2, title_custom = $3, updated_at = $4
		WHERE id = $1 AND NOT (title_custom AND NOT $3)`,
		r.id, title, custom, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("updating session title: %w", err)
	}
	return nil
}
