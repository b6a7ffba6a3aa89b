package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lazypower/memorylayer/internal/config"
)

func TestNewClientClaudeCLI(t *testing.T) {
	cfg := config.LLMConfig{Provider: "claude-cli", Model: "haiku"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*ClaudeCLI); !ok {
		t.Errorf("expected *ClaudeCLI, got %T", client)
	}
}

func TestNewClientAnthropic(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic", AnthropicKey: "test-key"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Anthropic); !ok {
		t.Errorf("expected *Anthropic, got %T", client)
	}
}

func TestNewClientAnthropicMissingKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "anthropic"})
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClientOllama(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "ollama", Model: "llama3.2"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Ollama); !ok {
		t.Errorf("expected *Ollama, got %T", client)
	}
}

func TestNewClientOpenAI(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "openai", OpenAIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*OpenAI); !ok {
		t.Errorf("expected *OpenAI, got %T", client)
	}

	if _, err := NewClient(config.LLMConfig{Provider: "openai"}); err == nil {
		t.Error("expected error for missing OpenAI key")
	}
}

func TestNewClientUnconfigured(t *testing.T) {
	for _, p := range []string{"", "gpt"} {
		if _, err := NewClient(config.LLMConfig{Provider: p}); err == nil {
			t.Errorf("provider %q: expected error", p)
		}
	}
}

func TestChildEnv(t *testing.T) {
	env := []string{
		"HOME=/home/user",
		"CLAUDE_SESSION_ID=abc123",
		"CLAUDE_TRANSCRIPT=/tmp/t.jsonl",
		"PATH=/usr/bin",
	}
	got := childEnv(env)
	if len(got) != 3 {
		t.Fatalf("expected 3 vars, got %d: %v", len(got), got)
	}
	for _, e := range got {
		if strings.HasPrefix(e, "CLAUDE_") {
			t.Errorf("CLAUDE_ var not filtered: %s", e)
		}
	}
	if got[len(got)-1] != "MEMORYLAYER_INTERNAL=1" {
		t.Errorf("last var = %q, want internal marker", got[len(got)-1])
	}
}

func TestSummaryPrompt(t *testing.T) {
	p := SummaryPrompt("tool:Read", "package main")
	if !strings.HasPrefix(p, InternalSentinel) {
		t.Errorf("prompt should start with sentinel, got %q", p[:min(len(p), 40)])
	}
	if !strings.Contains(p, "tool:Read") || !strings.Contains(p, "package main") {
		t.Error("prompt should embed source and content")
	}

	long := SummaryPrompt("", strings.Repeat("x", maxPromptContent*2))
	if len(long) > maxPromptContent+1000 {
		t.Errorf("prompt not truncated: %d bytes", len(long))
	}
	if !strings.Contains(long, "SOURCE: unknown") {
		t.Error("empty source should render as unknown")
	}
}

func TestAnthropicComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{
				{"type": "text", "text": "Short "},
				{"type": "text", "text": "summary."},
			},
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 4},
		})
	}))
	defer ts.Close()

	a := NewAnthropic("k", "m")
	a.endpoint = ts.URL
	resp, err := a.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Short summary." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.TokensUsed != 14 {
		t.Errorf("tokens = %d, want 14", resp.TokensUsed)
	}
}

func TestOllamaComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"response":          "ok",
			"prompt_eval_count": 3,
			"eval_count":        1,
		})
	}))
	defer ts.Close()

	resp, err := NewOllama(ts.URL, "llama3.2").Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "ok" || resp.TokensUsed != 4 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOllamaErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer ts.Close()

	if _, err := NewOllama(ts.URL, "missing").Complete(context.Background(), "p"); err == nil {
		t.Error("expected error on non-200 status")
	}
}

func TestMockClient(t *testing.T) {
	mock := &MockClient{
		Response: &Response{Content: "test response", Provider: "mock"},
	}

	resp, err := mock.Complete(context.Background(), "test prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "test response" {
		t.Errorf("content = %q, want %q", resp.Content, "test response")
	}
	if len(mock.Calls) != 1 || mock.Calls[0] != "test prompt" {
		t.Errorf("calls = %v", mock.Calls)
	}
}

func TestOllamaRequestBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream || req.Model != "llama3.2" || req.Options.NumPredict != maxOutputTokens {
			t.Errorf("request = %+v", req)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		json.NewEncoder(w).Encode(ollamaResponse{Response: "  padded  "})
	}))
	defer ts.Close()

	resp, err := NewOllama(ts.URL+"/", "llama3.2").Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "padded" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestPostJSONDecodeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer ts.Close()

	var out anthropicResponse
	err := postJSON(context.Background(), ts.Client(), "anthropic", ts.URL, nil, struct{}{}, &out)
	if err == nil || !strings.Contains(err.Error(), "anthropic: decode response") {
		t.Errorf("err = %v", err)
	}
}
