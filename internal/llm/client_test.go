package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestChat verifies the request shape and reply extraction against a fake
// chat-completions endpoint.
func TestChat(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello back"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model")
	reply, err := c.Chat(context.Background(), "be nice", "hello")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "hello back" {
		t.Errorf("reply = %q", reply)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

// TestChatAPIError verifies non-200 responses and embedded error objects
// both surface as errors.
func TestChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "")
	if _, err := c.Chat(context.Background(), "s", "u"); err == nil {
		t.Error("expected error for 429 response")
	}

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "bad model"}}`))
	}))
	defer srv2.Close()

	c2 := NewClient(srv2.URL, "k", "")
	if _, err := c2.Chat(context.Background(), "s", "u"); err == nil {
		t.Error("expected error for embedded error object")
	}
}

// TestDefaultModel verifies the model fallback.
func TestDefaultModel(t *testing.T) {
	c := NewClient("http://example.com", "k", "")
	if c.Model() != DefaultModel {
		t.Errorf("Model = %q, want %q", c.Model(), DefaultModel)
	}
}

// TestExtractJSON verifies fence stripping variants.
func TestExtractJSON(t *testing.T) {
	cases := []struct{ in, want string }{
		{`[{"a":1}]`, `[{"a":1}]`},
		{"```json\n[1,2]\n```", "[1,2]"},
		{"```\n[1,2]\n```", "[1,2]"},
		{"  [1,2]  ", "[1,2]"},
	}
	for _, c := range cases {
		if got := ExtractJSON(c.in); got != c.want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
