// Package dispatch turns one inbound user message into one outbound assistant
// message using at most two LLM calls, grounding analytics questions in
// pre-generated report text.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/parentpass/chatbot-api/pkg/analytics"
	"github.com/parentpass/chatbot-api/pkg/chat"
	"github.com/parentpass/chatbot-api/pkg/llm"
	"github.com/parentpass/chatbot-api/pkg/session"
)

// Fixed user-facing fallback texts. These stand in for failures; the query
// path never surfaces an internal error to the caller.
const (
	// FallbackUnrecognized is returned when the model's reply has an
	// unexpected shape.
	FallbackUnrecognized = "I'm having trouble processing your request right now. " +
		"Please try rephrasing your question or try again later."

	// FallbackNoData is returned when a requested analytics category has
	// no grounding text.
	FallbackNoData = "I don't have access to the analytics data needed to answer " +
		"your question right now. Please try again later or contact support if " +
		"this issue persists."

	// FallbackError is returned when the LLM client or the store fails.
	FallbackError = "I'm having trouble processing your request right now. " +
		"Please try again."
)

// Dispatcher coordinates the session store, the LLM client, and the analytics
// resolver for the query path.
type Dispatcher struct {
	store    session.Store
	client   llm.Client
	resolver *analytics.Resolver
}

// New creates a dispatcher.
func New(store session.Store, client llm.Client, resolver *analytics.Resolver) *Dispatcher {
	return &Dispatcher{
		store:    store,
		client:   client,
		resolver: resolver,
	}
}

// Process appends the user message to the session, produces the assistant's
// answer, records it in history, and returns its content. Downstream failures
// degrade to a fixed fallback message; Process never returns an error string
// other than those fallbacks, and it always leaves the exchange in history
// when the store is reachable.
func (d *Dispatcher) Process(ctx context.Context, sessionID, text string) string {
	state, err := d.store.GetState(ctx, sessionID)
	if err != nil {
		slog.Error("dispatch: loading session failed", "session_id", sessionID, "error", err)
		return FallbackError
	}

	state.Append(chat.UserMessage(text))

	answer := d.answer(ctx, state)

	state.Append(answer)
	if err := d.store.SetState(ctx, sessionID, state); err != nil {
		slog.Error("dispatch: persisting session failed", "session_id", sessionID, "error", err)
	}

	return answer.Content
}

// answer runs the two-step LLM exchange for the pending user message.
func (d *Dispatcher) answer(ctx context.Context, state *chat.State) chat.Message {
	reply, err := d.client.Chat(ctx, state)
	if err != nil {
		slog.Error("dispatch: chat call failed", "error", err)
		return chat.AssistantMessage(FallbackError)
	}

	switch reply.Kind {
	case llm.ReplyDirect:
		return reply.Message

	case llm.ReplyAnalytics:
		return d.answerWithAnalytics(ctx, state, reply)

	case llm.ReplyUnrecognized:
		return chat.AssistantMessage(FallbackUnrecognized)

	default:
		return chat.AssistantMessage(FallbackUnrecognized)
	}
}

func (d *Dispatcher) answerWithAnalytics(ctx context.Context, state *chat.State, reply llm.Reply) chat.Message {
	res := d.resolver.Resolve(reply.Category)
	if !res.Available() {
		slog.Warn("dispatch: no analytics data for category",
			"category", string(reply.Category), "status", res.Status)
		return chat.AssistantMessage(FallbackNoData)
	}

	answer, err := d.client.AnswerAnalyticsQuestion(ctx, state, res.Text)
	if err != nil {
		slog.Error("dispatch: analytics answer call failed",
			"category", string(reply.Category), "error", err)
		return chat.AssistantMessage(FallbackError)
	}
	return answer
}
