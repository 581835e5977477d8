package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// ExtractAnalysis
// ---------------------------------------------------------------------------

func TestExtractAnalysis(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		wantText     string
		wantAnalysis bool
		wantKeywords int
	}{
		{
			name:         "trailing block",
			in:           "Goroutines are cheap.\n<analysis>{\"keywords\":[\"go\",\"goroutines\"],\"description\":\"go concurrency\"}</analysis>",
			wantText:     "Goroutines are cheap.",
			wantAnalysis: true,
			wantKeywords: 2,
		},
		{
			name:     "no block",
			in:       "Just a plain answer.",
			wantText: "Just a plain answer.",
		},
		{
			name:     "unterminated block left intact",
			in:       "Answer <analysis>{\"keywords\":[\"go\"]}",
			wantText: "Answer <analysis>{\"keywords\":[\"go\"]}",
		},
		{
			name:     "malformed json left intact",
			in:       "Answer <analysis>not json</analysis>",
			wantText: "Answer <analysis>not json</analysis>",
		},
		{
			name:     "empty analysis dropped but text cleaned",
			in:       "Answer <analysis>{}</analysis>",
			wantText: "Answer",
		},
		{
			name:         "last block wins when text mentions the tag",
			in:           "The <analysis> tag is literal here.\n<analysis>{\"keywords\":[\"tags\"]}</analysis>",
			wantText:     "The <analysis> tag is literal here.",
			wantAnalysis: true,
			wantKeywords: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotText, gotAnalysis := ExtractAnalysis(tt.in)
			if gotText != tt.wantText {
				t.Errorf("text = %q, want %q", gotText, tt.wantText)
			}
			if (gotAnalysis != nil) != tt.wantAnalysis {
				t.Fatalf("analysis presence = %v, want %v", gotAnalysis != nil, tt.wantAnalysis)
			}
			if gotAnalysis != nil && len(gotAnalysis.Keywords) != tt.wantKeywords {
				t.Errorf("keywords = %v, want %d entries", gotAnalysis.Keywords, tt.wantKeywords)
			}
		})
	}
}

func TestAnalysisEmpty(t *testing.T) {
	if !(Analysis{}).Empty() {
		t.Error("zero analysis should be empty")
	}
	if (Analysis{Keywords: []string{"go"}}).Empty() {
		t.Error("analysis with keywords should not be empty")
	}
	if (Analysis{Summary: "prose"}).Empty() {
		t.Error("analysis with summary should not be empty")
	}
}

// ---------------------------------------------------------------------------
// streaming
// ---------------------------------------------------------------------------

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
		}
	}))
}

func deltaLine(content, reasoning string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q,"reasoning_content":%q}}]}`, content, reasoning)
}

func TestInvoke_StreamsAndConsolidates(t *testing.T) {
	srv := sseServer(t, []string{
		deltaLine("Hello", ""),
		deltaLine(", world", ""),
		deltaLine("", "thinking about greetings"),
		`data: {"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":4,"total_tokens":14}}`,
		"data: [DONE]",
	})
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "test-model", 10*time.Second)

	var textChunks, reasoningChunks []string
	var progress []string
	res, err := p.Invoke(context.Background(), &CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, StreamCallbacks{
		OnProgress:  func(s string) { progress = append(progress, s) },
		OnText:      func(c string) { textChunks = append(textChunks, c) },
		OnReasoning: func(c string) { reasoningChunks = append(reasoningChunks, c) },
	})
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}

	if res.Text != "Hello, world" {
		t.Errorf("Text = %q, want %q", res.Text, "Hello, world")
	}
	if res.Reasoning != "thinking about greetings" {
		t.Errorf("Reasoning = %q", res.Reasoning)
	}
	if res.Usage.TotalTokens != 14 {
		t.Errorf("TotalTokens = %d, want 14", res.Usage.TotalTokens)
	}
	if len(textChunks) != 2 {
		t.Errorf("text chunks = %v, want 2 deltas", textChunks)
	}
	if len(reasoningChunks) != 1 {
		t.Errorf("reasoning chunks = %v, want 1 delta", reasoningChunks)
	}
	if len(progress) < 2 || progress[0] != "connecting" || progress[1] != "streaming" {
		t.Errorf("progress = %v, want [connecting streaming ...]", progress)
	}
}

func TestInvoke_ExtractsTrailingAnalysis(t *testing.T) {
	srv := sseServer(t, []string{
		deltaLine("The answer.", ""),
		deltaLine("\n<analysis>{\"keywords\":[\"go\",\"testing\"],\"description\":\"test tooling\"}</analysis>", ""),
		"data: [DONE]",
	})
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "test-model", 10*time.Second)

	var gotAnalysis *Analysis
	res, err := p.Invoke(context.Background(), &CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, StreamCallbacks{
		OnAnalysis: func(a Analysis) { gotAnalysis = &a },
	})
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}

	if res.Text != "The answer." {
		t.Errorf("Text = %q, want cleaned text", res.Text)
	}
	if res.Analysis == nil || res.Analysis.Description != "test tooling" {
		t.Fatalf("Analysis = %+v", res.Analysis)
	}
	if gotAnalysis == nil || len(gotAnalysis.Keywords) != 2 {
		t.Errorf("OnAnalysis callback got %+v", gotAnalysis)
	}
}

func TestInvoke_SkipsMalformedChunks(t *testing.T) {
	srv := sseServer(t, []string{
		deltaLine("ok", ""),
		"data: {not json",
		": comment line",
		deltaLine(" fine", ""),
		"data: [DONE]",
	})
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "test-model", 10*time.Second)
	res, err := p.Invoke(context.Background(), &CompletionRequest{}, StreamCallbacks{})
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if res.Text != "ok fine" {
		t.Errorf("Text = %q, want %q", res.Text, "ok fine")
	}
}

func TestInvoke_MissingAPIKey(t *testing.T) {
	p := NewOpenAIProvider("", "http://unused", "test-model", time.Second)

	_, err := p.Invoke(context.Background(), &CompletionRequest{}, StreamCallbacks{})
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
}

func TestInvoke_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model overloaded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "test-model", time.Second)
	_, err := p.Invoke(context.Background(), &CompletionRequest{}, StreamCallbacks{})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("error = %v, want status 429 surfaced", err)
	}
}

func TestDefaults(t *testing.T) {
	p := NewOpenAIProvider("k", "", "", 0)
	if p.apiBase != "https://api.openai.com/v1" {
		t.Errorf("apiBase = %q", p.apiBase)
	}
	if p.DefaultModel() == "" {
		t.Error("default model should be set")
	}
	p2 := NewOpenAIProvider("k", "http://host/v1/", "m", time.Second)
	if p2.apiBase != "http://host/v1" {
		t.Errorf("apiBase = %q, want trailing slash trimmed", p2.apiBase)
	}
}
