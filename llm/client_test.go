package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestChatCompletion(t *testing.T) {
	var gotReq chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Error(err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "hi there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3}
		}`))
	}))
	defer ts.Close()

	c := NewClient()
	cfg := ProviderConfig{BaseURL: ts.URL, APIKey: "sk-test", Model: "test-model"}
	resp, err := c.ChatCompletion(context.Background(), cfg,
		[]Message{{Role: RoleUser, Content: "hello"}},
		[]ToolSchema{{Name: "wave", Description: "wave back"}},
	)
	if err != nil {
		t.Fatal(err)
	}

	if resp.Content != "hi there" || resp.FinishReason != "stop" {
		t.Errorf("response = %+v", resp)
	}
	if resp.InputTokens != 10 || resp.OutputTokens != 3 {
		t.Errorf("token counts = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("request model = %q", gotReq.Model)
	}
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].Type != "function" || gotReq.Tools[0].Function.Name != "wave" {
		t.Errorf("request tools = %+v", gotReq.Tools)
	}
	if gotReq.ToolChoice != "auto" {
		t.Errorf("tool_choice = %q", gotReq.ToolChoice)
	}
}

func TestChatCompletionToolCalls(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"choices": [{
				"message": {
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "chat", "arguments": "{\"message\":\"hi\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer ts.Close()

	c := NewClient()
	resp, err := c.ChatCompletion(context.Background(),
		ProviderConfig{BaseURL: ts.URL, Model: "m"},
		[]Message{{Role: RoleUser, Content: "x"}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !resp.HasToolCalls() {
		t.Fatal("HasToolCalls = false")
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_1" || call.Function.Name != "chat" {
		t.Errorf("tool call = %+v", call)
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || args["message"] != "hi" {
		t.Errorf("arguments = %q", call.Function.Arguments)
	}
}

func TestChatCompletionRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("retry-after", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}, "finish_reason": "stop"}]}`))
	}))
	defer ts.Close()

	c := NewClient()
	resp, err := c.ChatCompletion(context.Background(),
		ProviderConfig{BaseURL: ts.URL, Model: "m"},
		[]Message{{Role: RoleUser, Content: "x"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q", resp.Content)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("%d requests, want 2", got)
	}
}

func TestChatCompletionProviderError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model not found", "type": "invalid_request_error"}}`))
	}))
	defer ts.Close()

	c := NewClient()
	_, err := c.ChatCompletion(context.Background(),
		ProviderConfig{BaseURL: ts.URL, Model: "nope"},
		[]Message{{Role: RoleUser, Content: "x"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("err = %v", err)
	}
}

func TestChatCompletionHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := NewClient()
	_, err := c.ChatCompletion(context.Background(),
		ProviderConfig{BaseURL: ts.URL, Model: "m"},
		[]Message{{Role: RoleUser, Content: "x"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v", err)
	}
}

func TestValidateKey(t *testing.T) {
	c := NewClient()
	if err := c.ValidateKey(context.Background(), ProviderConfig{}); err == nil {
		t.Error("empty key validated")
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer ts.Close()
	err := c.ValidateKey(context.Background(), ProviderConfig{BaseURL: ts.URL, APIKey: "bad", Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "invalid API key") {
		t.Errorf("err = %v", err)
	}
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"", "https://api.openai.com/v1/chat/completions"},
		{"https://example.com/v1", "https://example.com/v1/chat/completions"},
		{"https://example.com/v1/", "https://example.com/v1/chat/completions"},
	}
	for _, tt := range tests {
		if got := endpoint(ProviderConfig{BaseURL: tt.base}); got != tt.want {
			t.Errorf("endpoint(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
