package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"ollama", "*llm.ollamaProvider"},
		{"lmstudio", "*llm.lmStudioProvider"},
		{"openrouter", "*llm.openRouterProvider"},
		{"openai", "*llm.openAIProvider"},
		{"groq", "*llm.groqProvider"},
		{"gemini", "*llm.geminiProvider"},
		{"custom", "*llm.openAICompatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "test-model"})
			if err != nil {
				t.Fatalf("NewProvider(%q) returned error: %v", tt.provider, err)
			}
			if gotType := fmt.Sprintf("%T", p); gotType != tt.wantType {
				t.Errorf("NewProvider(%q) type = %s, want %s", tt.provider, gotType, tt.wantType)
			}
		})
	}
}

func TestNewProviderErrors(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"doesnotexist", "unknown llm provider: doesnotexist"},
		{"", "llm provider not specified"},
	}
	for _, tt := range tests {
		_, err := NewProvider(Config{Provider: tt.provider})
		if err == nil || err.Error() != tt.want {
			t.Errorf("NewProvider(%q) error = %v, want %q", tt.provider, err, tt.want)
		}
	}
}

// baseConfig reaches the client config inside a provider.
func baseConfig(t *testing.T, p Provider) reflect.Value {
	t.Helper()
	return reflect.ValueOf(p).Elem().FieldByName("base").FieldByName("cfg")
}

func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		provider string
		wantURL  string
	}{
		{"ollama", "http://localhost:11434"},
		{"lmstudio", "http://localhost:1234"},
		{"openrouter", "https://openrouter.ai/api"},
		{"groq", "https://api.groq.com/openai"},
		{"custom", ""},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "test-model"})
			if err != nil {
				t.Fatalf("NewProvider(%q): %v", tt.provider, err)
			}
			if got := baseConfig(t, p).FieldByName("BaseURL").String(); got != tt.wantURL {
				t.Errorf("default BaseURL for %q = %q, want %q", tt.provider, got, tt.wantURL)
			}
		})
	}
}

func TestExplicitConfigPreserved(t *testing.T) {
	for _, provider := range []string{"ollama", "lmstudio", "openrouter", "custom"} {
		t.Run(provider, func(t *testing.T) {
			p, err := NewProvider(Config{
				Provider: provider,
				Model:    "gemma3:4b",
				BaseURL:  "http://my-server:9999",
				APIKey:   "sk-test",
			})
			if err != nil {
				t.Fatalf("NewProvider(%q): %v", provider, err)
			}
			cfg := baseConfig(t, p)
			if got := cfg.FieldByName("BaseURL").String(); got != "http://my-server:9999" {
				t.Errorf("BaseURL = %q", got)
			}
			if got := cfg.FieldByName("Model").String(); got != "gemma3:4b" {
				t.Errorf("Model = %q", got)
			}
			if got := cfg.FieldByName("APIKey").String(); got != "sk-test" {
				t.Errorf("APIKey = %q", got)
			}
		})
	}
}

func TestChatJSONMode(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"model":"gemma3:4b","choices":[{"message":{"content":"{\"output\":[]}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Model: "gemma3:4b", BaseURL: srv.URL, APIKey: "key"})
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages:       []Message{{Role: "user", Content: "hi"}},
		ResponseFormat: "json_object",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != `{"output":[]}` || resp.TotalTokens != 5 {
		t.Errorf("unexpected response %+v", resp)
	}
	if got.Model != "gemma3:4b" {
		t.Errorf("request model = %q, want config default", got.Model)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v", got.ResponseFormat)
	}
}

func TestChatRetriesTransientErrors(t *testing.T) {
	oldDelay := baseRetryDelay
	baseRetryDelay = time.Millisecond
	t.Cleanup(func() { baseRetryDelay = oldDelay })

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	p := NewOllama(Config{Model: "m", BaseURL: srv.URL})
	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "ok" || calls.Load() != 2 {
		t.Errorf("content = %q after %d calls", resp.Content, calls.Load())
	}
}

func TestChatClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllama(Config{Model: "missing", BaseURL: srv.URL})
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL})
	if _, err := p.Chat(context.Background(), ChatRequest{}); !errors.Is(err, ErrNoChoices) {
		t.Errorf("expected ErrNoChoices, got %v", err)
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"embeddings":[[0.5,1],[0,0.25]]}`)
	}))
	defer srv.Close()

	p := NewOllama(Config{Model: "nomic-embed-text", BaseURL: srv.URL})
	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	want := [][]float32{{0.5, 1}, {0, 0.25}}
	if !reflect.DeepEqual(vecs, want) {
		t.Errorf("Embed = %v, want %v", vecs, want)
	}

	if _, err := p.Embed(context.Background(), []string{"only one"}); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose", "Here you go: {\"a\":1} hope it helps", `{"a":1}`, false},
		{"none", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	oldBase, oldRate := baseRetryDelay, minRateLimitDelay
	baseRetryDelay, minRateLimitDelay = time.Second, 5*time.Second
	t.Cleanup(func() { baseRetryDelay, minRateLimitDelay = oldBase, oldRate })

	tests := []struct {
		name       string
		attempt    int
		status     int
		retryAfter string
		want       time.Duration
	}{
		{"network error", 1, 0, "", time.Second},
		{"backoff doubles", 3, http.StatusBadGateway, "", 4 * time.Second},
		{"rate limited", 1, http.StatusTooManyRequests, "", 5 * time.Second},
		{"rate limited later", 2, http.StatusTooManyRequests, "", 10 * time.Second},
		{"retry-after wins", 1, http.StatusTooManyRequests, "30", 30 * time.Second},
		{"short retry-after ignored", 2, http.StatusTooManyRequests, "1", 10 * time.Second},
		{"bad retry-after", 1, http.StatusTooManyRequests, "soon", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryDelay(tt.attempt, tt.status, tt.retryAfter); got != tt.want {
				t.Errorf("retryDelay = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientTimeout(t *testing.T) {
	c := newOpenAICompatClient(Config{BaseURL: "http://localhost"})
	if c.client.Timeout != defaultTimeout {
		t.Errorf("default timeout = %v", c.client.Timeout)
	}
	c = newOpenAICompatClient(Config{BaseURL: "http://localhost", Timeout: 30 * time.Second})
	if c.client.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", c.client.Timeout)
	}
}
