package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider implements CompletionProvider over the OpenAI-compatible
// streaming chat API. It works against OpenAI, OpenRouter, Anthropic's
// compatibility endpoint, DeepSeek, and local vLLM servers.
type OpenAIProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	httpClient   *http.Client
}

// NewOpenAIProvider creates a new OpenAI-compatible provider. The
// timeout bounds a full streaming round trip.
func NewOpenAIProvider(apiKey, apiBase, defaultModel string, timeout time.Duration) *OpenAIProvider {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	if defaultModel == "" {
		defaultModel = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &OpenAIProvider{
		apiKey:       apiKey,
		apiBase:      strings.TrimSuffix(apiBase, "/"),
		defaultModel: defaultModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// DefaultModel returns the configured default model.
func (p *OpenAIProvider) DefaultModel() string {
	return p.defaultModel
}

// Invoke sends a streaming completion request, forwarding deltas to the
// callbacks and returning the consolidated result.
func (p *OpenAIProvider) Invoke(ctx context.Context, req *CompletionRequest, cb StreamCallbacks) (*CompletionResult, error) {
	if p.apiKey == "" {
		return nil, &ProviderError{Provider: "openai", Hint: "API key not configured (set PARLEY_PROVIDER_API_KEY or provider.apiKey in config)"}
	}
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := map[string]any{
		"model":          model,
		"messages":       p.convertMessages(req.Messages),
		"stream":         true,
		"stream_options": map[string]any{"include_usage": true},
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	if cb.OnProgress != nil {
		cb.OnProgress("connecting")
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return p.consumeStream(resp.Body, cb)
}

// consumeStream reads SSE "data:" lines until [DONE] or EOF.
func (p *OpenAIProvider) consumeStream(r io.Reader, cb StreamCallbacks) (*CompletionResult, error) {
	var (
		text      strings.Builder
		reasoning strings.Builder
		usage     Usage
		gotFirst  bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Malformed chunks are skipped; the terminal accounting
			// happens on the consolidated result, not per chunk.
			continue
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			if !gotFirst {
				gotFirst = true
				if cb.OnProgress != nil {
					cb.OnProgress("streaming")
				}
			}
			text.WriteString(delta.Content)
			if cb.OnText != nil {
				cb.OnText(delta.Content)
			}
		}
		if delta.ReasoningContent != "" {
			reasoning.WriteString(delta.ReasoningContent)
			if cb.OnReasoning != nil {
				cb.OnReasoning(delta.ReasoningContent)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	finalText, analysis := ExtractAnalysis(text.String())
	if analysis != nil && cb.OnAnalysis != nil {
		cb.OnAnalysis(*analysis)
	}

	return &CompletionResult{
		Text:      finalText,
		Reasoning: reasoning.String(),
		Analysis:  analysis,
		Usage:     usage,
	}, nil
}

// convertMessages converts our Message type to OpenAI API format.
func (p *OpenAIProvider) convertMessages(messages []Message) []map[string]any {
	result := make([]map[string]any, len(messages))
	for i, msg := range messages {
		result[i] = map[string]any{
			"role":    msg.Role,
			"content": msg.Content,
		}
	}
	return result
}

const (
	analysisOpen  = "<analysis>"
	analysisClose = "</analysis>"
)

// ExtractAnalysis strips a trailing <analysis>{json}</analysis> block
// from the model output and parses it. Returns the cleaned text and
// the parsed analysis, or nil when no well-formed block is present.
func ExtractAnalysis(text string) (string, *Analysis) {
	start := strings.LastIndex(text, analysisOpen)
	if start < 0 {
		return text, nil
	}
	rest := text[start+len(analysisOpen):]
	end := strings.Index(rest, analysisClose)
	if end < 0 {
		return text, nil
	}
	var a Analysis
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), &a); err != nil {
		return text, nil
	}
	cleaned := text[:start] + rest[end+len(analysisClose):]
	cleaned = strings.TrimSpace(cleaned)
	if a.Empty() {
		return cleaned, nil
	}
	return cleaned, &a
}

// Streaming response chunk types.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}
