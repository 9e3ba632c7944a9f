package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// GroqConfig configures the Groq-backed provider. Groq exposes an
// OpenAI-compatible chat completions API, so the OpenAI SDK drives it with
// a custom base URL. Any other OpenAI-compatible endpoint works too.
type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// GroqProvider implements Provider against Groq's OpenAI-compatible API.
type GroqProvider struct {
	client *openai.Client
	model  string
}

// NewGroqProvider creates the provider. The API key is required.
func NewGroqProvider(cfg GroqConfig) (*GroqProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("groq API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &GroqProvider{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}, nil
}

func (p *GroqProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	// Ask for native JSON mode when the caller expects an object. The reply
	// is still defensively extracted below: JSON mode does not stop every
	// model from wrapping the object in prose or fences.
	if req.Schema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, mapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ErrInvalidResponse{Err: errors.New("no choices in response")}
	}

	content := resp.Choices[0].Message.Content
	out := &Response{
		Text:  content,
		Model: resp.Model,
	}

	if req.Schema != nil {
		extracted, err := ExtractJSONObject(content)
		if err != nil {
			return nil, &ErrInvalidResponse{Content: content, Err: err}
		}
		raw := json.RawMessage(extracted)
		if err := validateJSON(req.Schema, raw); err != nil {
			return nil, err
		}
		out.JSON = raw
	}

	return out, nil
}

func (p *GroqProvider) ModelID() string {
	return p.model
}

func mapAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return &ErrRateLimit{Err: err}
		case apiErr.HTTPStatusCode == http.StatusUnauthorized,
			apiErr.HTTPStatusCode == http.StatusForbidden:
			return &ErrProviderUnavailable{Err: fmt.Errorf("auth rejected: %w", err)}
		case apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500:
			// Other client errors are permanent; retrying the same request
			// cannot fix them.
			return &ErrInvalidRequest{Err: err}
		}
	}
	return &ErrProviderUnavailable{Err: err}
}
