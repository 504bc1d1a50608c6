// Package chat defines the conversation data model shared by the session
// store, the dispatcher, and the LLM client.
package chat

// Message roles. The set is closed: every turn in a conversation is either
// something the administrator said or something the assistant answered.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn. Messages are immutable once
// constructed; they are appended to a State's history and never edited.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage constructs a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage constructs an assistant turn.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// State holds one conversation's history in insertion order.
type State struct {
	RecentMessages []Message `json:"recent_messages"`
}

// NewState creates an empty conversation state.
func NewState() *State {
	return &State{RecentMessages: []Message{}}
}

// Append adds a message to the history.
func (s *State) Append(m Message) {
	s.RecentMessages = append(s.RecentMessages, m)
}

// Last returns the most recent message and true, or a zero Message and false
// for an empty history.
func (s *State) Last() (Message, bool) {
	if len(s.RecentMessages) == 0 {
		return Message{}, false
	}
	return s.RecentMessages[len(s.RecentMessages)-1], true
}

// Clone returns a deep copy of the state. Handlers serialize clones so a
// concurrent append cannot race the JSON encoder.
func (s *State) Clone() *State {
	msgs := make([]Message, len(s.RecentMessages))
	copy(msgs, s.RecentMessages)
	return &State{RecentMessages: msgs}
}
