package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parentpass/chatbot-api/pkg/analytics"
	"github.com/parentpass/chatbot-api/pkg/chat"
	"github.com/parentpass/chatbot-api/pkg/llm"
	"github.com/parentpass/chatbot-api/pkg/session"
)

const dispatchTestSession = "sess-1"

// fakeClient scripts the LLM client for one request.
type fakeClient struct {
	chatReply  llm.Reply
	chatErr    error
	answer     chat.Message
	answerErr  error
	chatCalls  int
	answerText string
}

func (f *fakeClient) Chat(_ context.Context, _ *chat.State) (llm.Reply, error) {
	f.chatCalls++
	return f.chatReply, f.chatErr
}

func (f *fakeClient) AnswerAnalyticsQuestion(_ context.Context, _ *chat.State, text string) (chat.Message, error) {
	f.answerText = text
	return f.answer, f.answerErr
}

func (f *fakeClient) Summarize(_ context.Context, _, _, _ string) (string, error) {
	return "", errors.New("not used")
}

func newDispatcher(t *testing.T, client llm.Client, reports map[string]string) (*Dispatcher, session.Store) {
	t.Helper()

	dir := t.TempDir()
	for name, content := range reports {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	store := session.NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	return New(store, client, analytics.NewResolver(dir)), store
}

func history(t *testing.T, store session.Store) []chat.Message {
	t.Helper()
	state, err := store.GetState(context.Background(), dispatchTestSession)
	require.NoError(t, err)
	return state.RecentMessages
}

func TestProcess_DirectAnswer(t *testing.T) {
	client := &fakeClient{
		chatReply: llm.Reply{Kind: llm.ReplyDirect, Message: chat.AssistantMessage("hi")},
	}
	d, store := newDispatcher(t, client, nil)

	got := d.Process(context.Background(), dispatchTestSession, "hello")
	assert.Equal(t, "hi", got)

	msgs := history(t, store)
	require.Len(t, msgs, 3)
	assert.Equal(t, session.WelcomeContent, msgs[0].Content)
	assert.Equal(t, chat.UserMessage("hello"), msgs[1])
	assert.Equal(t, chat.AssistantMessage("hi"), msgs[2])
}

func TestProcess_AnalyticsAnswered(t *testing.T) {
	client := &fakeClient{
		chatReply: llm.Reply{Kind: llm.ReplyAnalytics, Category: analytics.CategoryContent},
		answer:    chat.AssistantMessage("42 posts this week"),
	}
	d, store := newDispatcher(t, client, map[string]string{
		"content_creation.md": "posts: 42",
	})

	got := d.Process(context.Background(), dispatchTestSession, "how much content?")
	assert.Equal(t, "42 posts this week", got)
	assert.Equal(t, "posts: 42", client.answerText, "resolved report should ground the answer")

	msgs := history(t, store)
	require.Len(t, msgs, 3)
	assert.Equal(t, "42 posts this week", msgs[2].Content)
}

func TestProcess_AnalyticsDataMissing(t *testing.T) {
	client := &fakeClient{
		chatReply: llm.Reply{Kind: llm.ReplyAnalytics, Category: analytics.CategoryUsers},
	}
	d, store := newDispatcher(t, client, nil)

	got := d.Process(context.Background(), dispatchTestSession, "active users?")
	assert.Equal(t, FallbackNoData, got)

	msgs := history(t, store)
	require.Len(t, msgs, 3)
	assert.Equal(t, FallbackNoData, msgs[2].Content, "fallback must be recorded in history")
}

func TestProcess_UnknownCategoryFallsBack(t *testing.T) {
	client := &fakeClient{
		chatReply: llm.Reply{Kind: llm.ReplyAnalytics, Category: analytics.Category("finance")},
	}
	d, _ := newDispatcher(t, client, nil)

	got := d.Process(context.Background(), dispatchTestSession, "revenue?")
	assert.Equal(t, FallbackNoData, got)
}

func TestProcess_UnrecognizedReply(t *testing.T) {
	client := &fakeClient{chatReply: llm.Reply{Kind: llm.ReplyUnrecognized}}
	d, store := newDispatcher(t, client, nil)

	got := d.Process(context.Background(), dispatchTestSession, "???")
	assert.Equal(t, FallbackUnrecognized, got)

	msgs := history(t, store)
	assert.Equal(t, FallbackUnrecognized, msgs[len(msgs)-1].Content)
}

func TestProcess_ChatErrorRecovered(t *testing.T) {
	client := &fakeClient{chatErr: errors.New("model unavailable")}
	d, store := newDispatcher(t, client, nil)

	got := d.Process(context.Background(), dispatchTestSession, "hello")
	assert.Equal(t, FallbackError, got)

	msgs := history(t, store)
	require.Len(t, msgs, 3)
	assert.Equal(t, FallbackError, msgs[2].Content)
}

func TestProcess_AnswerErrorRecovered(t *testing.T) {
	client := &fakeClient{
		chatReply: llm.Reply{Kind: llm.ReplyAnalytics, Category: analytics.CategoryContent},
		answerErr: errors.New("timeout"),
	}
	d, _ := newDispatcher(t, client, map[string]string{
		"content_creation.md": "posts: 42",
	})

	got := d.Process(context.Background(), dispatchTestSession, "content?")
	assert.Equal(t, FallbackError, got)
}

func TestProcess_RepeatedQueriesAppendIndependently(t *testing.T) {
	client := &fakeClient{
		chatReply: llm.Reply{Kind: llm.ReplyDirect, Message: chat.AssistantMessage("hi")},
	}
	d, store := newDispatcher(t, client, nil)

	first := d.Process(context.Background(), dispatchTestSession, "hello")
	second := d.Process(context.Background(), dispatchTestSession, "hello")
	assert.Equal(t, first, second)
	assert.Equal(t, 2, client.chatCalls)

	msgs := history(t, store)
	assert.Len(t, msgs, 5, "welcome plus two full exchanges")
}
