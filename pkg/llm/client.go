// Package llm defines the chatbot's LLM client contract and its typed reply
// model. The model is asked to answer with a small tagged JSON object; the
// parser maps that object onto a closed set of reply variants so the
// dispatcher can branch exhaustively instead of falling through a default.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/parentpass/chatbot-api/pkg/analytics"
	"github.com/parentpass/chatbot-api/pkg/chat"
)

// ReplyKind enumerates the closed set of reply variants.
type ReplyKind int

const (
	// ReplyUnrecognized is anything the parser could not classify. The
	// zero value, so a zero Reply is already the safe variant.
	ReplyUnrecognized ReplyKind = iota

	// ReplyDirect carries a ready assistant message.
	ReplyDirect

	// ReplyAnalytics asks for analytics grounding before answering.
	ReplyAnalytics
)

// Reply is the outcome of a Chat call.
type Reply struct {
	Kind ReplyKind

	// Message is set for ReplyDirect.
	Message chat.Message

	// Category and Question are set for ReplyAnalytics. Category is the
	// model's tag as-is (lowercased); the resolver decides whether it is
	// part of the known set.
	Category analytics.Category
	Question string
}

// Client is the conversational model behind the chatbot.
type Client interface {
	// Chat turns the conversation so far into a Reply. The last message
	// in state is the user's pending question.
	Chat(ctx context.Context, state *chat.State) (Reply, error)

	// AnswerAnalyticsQuestion answers the pending question grounded in
	// the given analytics report text.
	AnswerAnalyticsQuestion(ctx context.Context, state *chat.State, analyticsText string) (chat.Message, error)

	// Summarize condenses one raw query result into report prose. Used by
	// the report generator, not the query path.
	Summarize(ctx context.Context, name, description, data string) (string, error)
}

// replyEnvelope is the tagged JSON shape the model is instructed to emit.
type replyEnvelope struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Category string `json:"category"`
	Question string `json:"question"`
}

const (
	envelopeTypeMessage   = "message"
	envelopeTypeAnalytics = "analytics_question"
)

// ParseReply classifies raw model output. Output that is not the expected
// tagged JSON is ReplyUnrecognized — shape problems are a variant, not an
// error.
func ParseReply(raw string) Reply {
	trimmed := stripCodeFence(strings.TrimSpace(raw))

	var env replyEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Reply{Kind: ReplyUnrecognized}
	}

	switch env.Type {
	case envelopeTypeMessage:
		if env.Content == "" {
			return Reply{Kind: ReplyUnrecognized}
		}
		return Reply{
			Kind:    ReplyDirect,
			Message: chat.AssistantMessage(env.Content),
		}
	case envelopeTypeAnalytics:
		if env.Category == "" {
			return Reply{Kind: ReplyUnrecognized}
		}
		return Reply{
			Kind:     ReplyAnalytics,
			Category: analytics.Category(strings.ToLower(strings.TrimSpace(env.Category))),
			Question: env.Question,
		}
	default:
		return Reply{Kind: ReplyUnrecognized}
	}
}

// stripCodeFence removes a surrounding markdown code fence, which chat models
// routinely wrap JSON in despite instructions.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
