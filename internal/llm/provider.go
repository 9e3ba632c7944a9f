package llm

import (
	"context"
	"encoding/json"
)

// Provider is the abstraction over the generative model connection. It is
// constructed once at startup with explicit configuration and passed by
// reference to each generator component.
type Provider interface {
	// Generate sends a prompt to the model and returns its response. When
	// the request carries a Schema, the returned JSON field holds an object
	// extracted from the reply and validated against that schema.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes one model call.
type Request struct {
	// System is the system prompt.
	System string

	// Prompt is the user message. Generation here is single-turn.
	Prompt string

	// Schema, when set, asks the provider for JSON-shaped output and
	// validates the extracted object against it. When nil the raw text is
	// returned untouched.
	Schema *Schema

	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int

	// Temperature controls sampling randomness, 0.0-1.0.
	Temperature float32
}

// Schema names a JSON Schema the response object must conform to.
type Schema struct {
	Name       string
	Definition map[string]any
}

// Response holds the model's output.
type Response struct {
	// Text is the raw message content as returned by the model.
	Text string

	// JSON is the extracted, schema-validated object. Set only when the
	// request carried a Schema.
	JSON json.RawMessage

	// Model is the model that actually served the request.
	Model string
}
