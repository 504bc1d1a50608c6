package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/parentpass/chatbot-api/pkg/chat"
)

const chatSystemPrompt = `You are the ParentPass administrative assistant. You answer questions
from platform administrators about the ParentPass consumer app.

Reply with exactly one JSON object, no surrounding prose:
- {"type": "message", "content": "<your answer>"} for greetings, follow-ups,
  and anything you can answer from the conversation alone.
- {"type": "analytics_question", "category": "<category>", "question": "<restated question>"}
  when the question needs platform analytics data. Category must be one of:
  content, events, registrations, neighborhoods, engagement, users.`

const answerSystemPrompt = `You are the ParentPass administrative assistant. Answer the
administrator's last question using the analytics report below. Be concrete:
quote the relevant numbers. If the report does not cover the question, say so.

Analytics report:
`

const summarizeSystemPrompt = `You summarize raw analytics query results into short markdown
report sections for platform administrators. Keep every figure from the data;
do not invent numbers.`

// Config holds Ark chat model settings.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float32
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c Config) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// ArkClient implements Client over an Ark chat model through an eino chain.
type ArkClient struct {
	chain compose.Runnable[[]*schema.Message, *schema.Message]
}

// NewArkClient builds the chat model and compiles the inference chain.
func NewArkClient(ctx context.Context, cfg Config) (*ArkClient, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("llm api key and model are required")
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.Region,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat model: %w", err)
	}

	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compiling chat chain: %w", err)
	}

	return &ArkClient{chain: runnable}, nil
}

// Chat classifies the pending user question into a typed reply.
func (c *ArkClient) Chat(ctx context.Context, state *chat.State) (Reply, error) {
	messages := append(
		[]*schema.Message{schema.SystemMessage(chatSystemPrompt)},
		historyMessages(state)...,
	)

	out, err := c.chain.Invoke(ctx, messages)
	if err != nil {
		return Reply{}, fmt.Errorf("invoking chat chain: %w", err)
	}
	return ParseReply(out.Content), nil
}

// AnswerAnalyticsQuestion answers the pending question grounded in report text.
func (c *ArkClient) AnswerAnalyticsQuestion(ctx context.Context, state *chat.State, analyticsText string) (chat.Message, error) {
	messages := append(
		[]*schema.Message{schema.SystemMessage(answerSystemPrompt + analyticsText)},
		historyMessages(state)...,
	)

	out, err := c.chain.Invoke(ctx, messages)
	if err != nil {
		return chat.Message{}, fmt.Errorf("invoking answer chain: %w", err)
	}
	return chat.AssistantMessage(strings.TrimSpace(out.Content)), nil
}

// Summarize condenses one query result into a report section.
func (c *ArkClient) Summarize(ctx context.Context, name, description, data string) (string, error) {
	prompt := fmt.Sprintf("Query: %s\nDescription: %s\n\nData:\n%s", name, description, data)
	messages := []*schema.Message{
		schema.SystemMessage(summarizeSystemPrompt),
		schema.UserMessage(prompt),
	}

	out, err := c.chain.Invoke(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("invoking summarize chain: %w", err)
	}
	return strings.TrimSpace(out.Content), nil
}

// historyMessages converts conversation state to model messages, keeping the
// most recent turns.
func historyMessages(state *chat.State) []*schema.Message {
	const historyLimit = 20

	msgs := state.RecentMessages
	if len(msgs) > historyLimit {
		msgs = msgs[len(msgs)-historyLimit:]
	}

	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case chat.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}

// Verify interface compliance.
var _ Client = (*ArkClient)(nil)
