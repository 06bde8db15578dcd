package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompleteJSON_SingleRequest(t *testing.T) {
	var calls int
	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `{"decisions":[]}`}},
			},
		})
	}))
	defer server.Close()

	c := NewHTTPClient(Config{Endpoint: server.URL, APIKey: "test-key", Model: "gpt-4o-mini"})
	content, err := c.CompleteJSON(context.Background(), Request{
		System:      "extract",
		User:        "thread text",
		Temperature: 0.2,
		MaxTokens:   2000,
	})
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"decisions":[]}` {
		t.Errorf("content = %q", content)
	}
	if calls != 1 {
		t.Errorf("made %d requests, want exactly 1", calls)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", got.Model)
	}
	if got.Temperature != 0.2 || got.MaxTokens != 2000 {
		t.Errorf("temperature/max_tokens = %v/%v", got.Temperature, got.MaxTokens)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v", got.ResponseFormat)
	}
}

func TestCompleteJSON_NoRetryOnServerError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewHTTPClient(Config{Endpoint: server.URL, Model: "m"})
	_, err := c.CompleteJSON(context.Background(), Request{User: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	if httpErr.StatusCode != 429 {
		t.Errorf("status = %d", httpErr.StatusCode)
	}
	if calls != 1 {
		t.Errorf("made %d requests, the client must not retry", calls)
	}
}

func TestCompleteJSON_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	c := NewHTTPClient(Config{Endpoint: server.URL, Model: "m"})
	if _, err := c.CompleteJSON(context.Background(), Request{User: "x"}); err == nil {
		t.Error("expected error for empty choices")
	}
}
