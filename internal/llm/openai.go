package llm

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig selects credentials and models for the OpenAI backend.
type OpenAIConfig struct {
	APIKey       string
	ChatModel    string
	SummaryModel string
	// BaseURL overrides the API endpoint, e.g. for a proxy.
	BaseURL string
	Timeout time.Duration
}

// OpenAIClient calls the chat completion API.  Structured requests go to the
// summary model, everything else to the chat model.  The chat API has no web
// search, so grounded requests return no sources.
type OpenAIClient struct {
	client       *openai.Client
	chatModel    string
	summaryModel string
	timeout      time.Duration
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}
	summaryModel := cfg.SummaryModel
	if summaryModel == "" {
		summaryModel = chatModel
	}

	c := &OpenAIClient{
		chatModel:    chatModel,
		summaryModel: summaryModel,
		timeout:      cfg.Timeout,
	}
	if cfg.APIKey != "" {
		c.client = openai.NewClientWithConfig(oc)
	}
	return c
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.client == nil {
		return nil, ErrNotConfigured
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	ccr := openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    msgs,
		Temperature: 0.2,
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		ccr.Model = c.summaryModel
		ccr.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: req.Schema,
				Strict: true,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return &Response{}, nil
	}
	return &Response{Text: resp.Choices[0].Message.Content}, nil
}
