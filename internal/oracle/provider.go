// Package oracle abstracts the language model behind the professor. Callers
// hand it a prompt pair and an expected JSON shape; providers return
// validated JSON regardless of vendor.
package oracle

import (
	"context"
	"encoding/json"
)

// Provider generates a structured completion for a single prompt exchange.
type Provider interface {
	// Generate sends the request and returns the model's JSON output.
	// When req.Schema is set the content is validated against it before
	// being returned.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the configured model identifier.
	ModelID() string
}

// Request is a single-turn prompt. Conversation context is folded into the
// User prompt by the caller, so providers never track state.
type Request struct {
	// System sets the professor persona and output constraints.
	System string

	// User is the full user prompt, including any transcript context.
	User string

	// Schema, when set, is the JSON shape the response must satisfy.
	Schema *Schema

	// Temperature controls randomness, 0.0 to 1.0.
	Temperature float64

	// MaxTokens caps the response length. Zero means provider default.
	MaxTokens int
}

// Schema names a JSON Schema the response must conform to.
type Schema struct {
	// Name identifies the schema, kebab-case, e.g. "slide-explanation".
	Name string

	// Description tells the model what the schema represents.
	Description string

	// Definition is the JSON Schema document as a map.
	Definition map[string]any
}

// Response is the model's output.
type Response struct {
	// Content is the generated JSON. Validated when the request carried
	// a Schema.
	Content json.RawMessage

	// Model is the model that actually served the request.
	Model string
}
