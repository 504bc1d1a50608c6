// Package postgres provides PostgreSQL storage for chatbot sessions.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/parentpass/chatbot-api/pkg/chat"
	"github.com/parentpass/chatbot-api/pkg/session"
)

// Store implements session.Store using PostgreSQL. Expiry follows the same
// rule as the in-memory store: sessions are swept a fixed TTL after creation,
// and writes never move the expiry anchor.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

// Config configures the PostgreSQL session store.
type Config struct {
	TTL time.Duration
}

// New creates a new PostgreSQL session store.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = session.DefaultTTL
	}
	return &Store{
		db:  db,
		ttl: cfg.TTL,
	}
}

// GetState returns the state for a session, creating a welcome-seeded one if
// the identifier is unknown. Expired rows are swept first.
func (s *Store) GetState(ctx context.Context, id string) (*chat.State, error) {
	if err := s.Cleanup(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT state FROM sessions WHERE id = $1`, id)

	var raw []byte
	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		state := session.InitialState()
		if err := s.insert(ctx, id, state); err != nil {
			return nil, err
		}
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting session: %w", err)
	}

	var state chat.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decoding session state: %w", err)
	}
	return &state, nil
}

// SetState replaces or inserts the state for an identifier. Updates keep the
// original creation time.
func (s *Store) SetState(ctx context.Context, id string, state *chat.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, state)
		VALUES ($1, NOW(), $2)
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state
	`, id, raw)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting an absent session is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Cleanup removes sessions older than the TTL.
func (s *Store) Cleanup(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE created_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(s.ttl.Seconds())))
	if err != nil {
		return fmt.Errorf("cleaning up sessions: %w", err)
	}
	return nil
}

func (s *Store) insert(ctx context.Context, id string, state *chat.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, state)
		VALUES ($1, NOW(), $2)
		ON CONFLICT (id) DO NOTHING
	`, id, raw)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// StartCleanupRoutine starts a background goroutine that periodically removes
// expired sessions. The goroutine is stopped when Close is called.
func (s *Store) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.Cleanup(ctx)
			}
		}
	}()
}

// Close stops the cleanup goroutine. The *sql.DB is owned by the caller and
// is not closed here.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ session.Store = (*Store)(nil)
