// Package provider implements the completion provider contract and
// an OpenAI-compatible streaming client.
package provider

import (
	"context"
	"fmt"
)

// CompletionProvider is the interface for language-model backends.
type CompletionProvider interface {
	// Invoke sends a completion request and streams partial output
	// through the callbacks until the call completes or fails. The
	// returned result holds the consolidated output.
	Invoke(ctx context.Context, req *CompletionRequest, cb StreamCallbacks) (*CompletionResult, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// Message represents a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest contains the parameters for one completion call.
type CompletionRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// StreamCallbacks receive partial output as it arrives. Any callback
// may be nil. Callbacks are invoked from the provider's read loop and
// must not block.
type StreamCallbacks struct {
	OnProgress  func(status string)
	OnText      func(chunk string)
	OnReasoning func(chunk string)
	OnAnalysis  func(a Analysis)
}

// Analysis carries the signals a model extracted from the exchange.
type Analysis struct {
	Keywords    []string `json:"keywords"`
	Description string   `json:"description,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// Empty reports whether the analysis carries no signals.
func (a Analysis) Empty() bool {
	return len(a.Keywords) == 0 && a.Description == "" && a.Summary == ""
}

// CompletionResult contains the consolidated output of one call.
type CompletionResult struct {
	Text      string
	Reasoning string
	Analysis  *Analysis
	Usage     Usage
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderError is returned when a provider call cannot be made or
// fails with a non-retryable condition.
type ProviderError struct {
	Provider string
	Hint     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Hint)
}
