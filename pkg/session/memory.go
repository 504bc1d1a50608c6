package session

import (
	"context"
	"sync"
	"time"

	"github.com/parentpass/chatbot-api/pkg/chat"
)

// MemoryStore implements Store using an in-memory map with TTL-based
// expiration measured from session creation. The sweep on every GetState is
// O(n) over live sessions, which is fine for an administrative tool with a
// handful of concurrent conversations.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryStore creates a new in-memory session store. A non-positive ttl
// falls back to DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// GetState returns the state for a session, creating a welcome-seeded one if
// the identifier is unknown. Expired sessions are swept first, so a known but
// expired identifier also yields a fresh session.
func (s *MemoryStore) GetState(_ context.Context, id string) (*chat.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(time.Now())

	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{
			ID:        id,
			CreatedAt: time.Now(),
			State:     InitialState(),
		}
		s.sessions[id] = sess
	}
	return sess.State, nil
}

// SetState replaces or inserts the state for an identifier. Inserting keeps
// the original creation time when the session already exists, so a SetState
// never extends the expiry window.
func (s *MemoryStore) SetState(_ context.Context, id string, state *chat.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.State = state
		return nil
	}
	s.sessions[id] = &Session{
		ID:        id,
		CreatedAt: time.Now(),
		State:     state,
	}
	return nil
}

// Delete removes a session. Deleting an absent session is a no-op.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Cleanup removes expired sessions.
func (s *MemoryStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(time.Now())
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if sess.Expired(now, s.ttl) {
			delete(s.sessions, id)
		}
	}
}

// StartCleanupRoutine starts a background goroutine that periodically removes
// expired sessions. The goroutine is stopped when Close is called.
func (s *MemoryStore) StartCleanupRoutine(interval time.Duration) {
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

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call Close even if StartCleanupRoutine was never called.
func (s *MemoryStore) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
