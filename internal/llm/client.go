package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"carepath/pkg"
)

// DefaultTimeout bounds a single generation call when none is configured.
const DefaultTimeout = 30 * time.Second

// ErrNotConfigured is returned by a backend that has no API key.
var ErrNotConfigured = errors.New("llm client not configured")

// Message is a minimal chat message.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// Request describes one generation.  Messages, when present, are sent
// before Prompt, which always becomes the final user turn.
type Request struct {
	System   string
	Messages []Message
	Prompt   string
	// Schema constrains the response to JSON matching the definition.
	Schema *jsonschema.Definition
	// SchemaName names the schema for backends that require one.
	SchemaName string
	// Grounded asks the backend to search the web and report its sources.
	Grounded bool
}

// Response is the generated text and, for grounded requests, the pages the
// answer was based on.
type Response struct {
	Text    string
	Sources []pkg.Source
}

// Client is implemented by every generative backend.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// New returns the backend named by provider.
func New(provider string, oa OpenAIConfig, gm GeminiConfig) (Client, error) {
	switch provider {
	case "", "openai":
		return NewOpenAIClient(oa), nil
	case "gemini":
		return NewGeminiClient(gm), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", provider)
}

// keepSources drops sources that lack a title or a URI.
func keepSources(in []pkg.Source) []pkg.Source {
	out := make([]pkg.Source, 0, len(in))
	for _, s := range in {
		if s.Title != "" && s.URI != "" {
			out = append(out, s)
		}
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
