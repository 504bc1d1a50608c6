// Package session provides conversation session management for the chatbot
// API. It defines the Store interface for session persistence and the Session
// type that wraps one conversation's state.
package session

import (
	"context"
	"time"

	"github.com/parentpass/chatbot-api/pkg/chat"
)

// DefaultTTL is how long a session lives before it is swept.
//
// Expiry is measured from creation, not from last activity: a conversation
// expires at a fixed wall-clock point four hours after it started, no matter
// how recently it was used.
const DefaultTTL = 4 * time.Hour

// WelcomeContent is the assistant message seeded into every new session.
const WelcomeContent = "Hello! I'm the ParentPass administrative assistant. " +
	"How can I help you analyze the platform today?"

// Session wraps one conversation's state with its lifecycle metadata.
type Session struct {
	// ID is the opaque session identifier, caller-supplied or
	// server-generated.
	ID string

	// CreatedAt anchors the expiry window.
	CreatedAt time.Time

	// State is the conversation history.
	State *chat.State
}

// Expired reports whether the session has outlived the given TTL at now.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// InitialState creates a fresh conversation state seeded with the welcome
// message.
func InitialState() *chat.State {
	state := chat.NewState()
	state.Append(chat.AssistantMessage(WelcomeContent))
	return state
}

// Store defines the interface for session persistence.
type Store interface {
	// GetState returns the state for a session, creating a welcome-seeded
	// one if the identifier is unknown or expired. Expired entries are
	// swept before lookup.
	GetState(ctx context.Context, id string) (*chat.State, error)

	// SetState replaces or inserts the state for an identifier.
	SetState(ctx context.Context, id string, state *chat.State) error

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions.
	Cleanup(ctx context.Context) error

	// Close stops background routines and releases resources.
	Close() error
}
