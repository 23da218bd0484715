// Package llm abstracts the language-model providers behind one chat-shaped
// client. The pulse engine drives it in two modes: JSON mode for structured
// decisions and plain mode for free-form utterances.
package llm

import (
	"context"
)

type ChatMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request carries one generation call. When JSONMode is set the provider is
// asked to emit a single JSON object; providers without a native JSON switch
// rely on the prompt plus ParseJSON's brace-window extraction.
type Request struct {
	System      string
	Messages    []ChatMessage
	Temperature float32
	JSONMode    bool
}

type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
