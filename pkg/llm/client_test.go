package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxhall/meetbot/pkg/conversation"
)

func TestCompleteMapsTurnsAndTools(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "It's noon"}},
			},
		})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, APIKey: "sk-test", Model: "test-model"})
	turns := []conversation.Turn{
		conversation.System("sys"),
		conversation.User("alice: what time"),
		conversation.Assistant("", conversation.ToolRequest{
			ID: "t1", Name: "get_time", Arguments: map[string]any{"tz": "UTC"},
		}),
		conversation.ToolResult("t1", "12:00"),
	}
	tools := []ToolDef{{Name: "get_time", Description: "current time", Parameters: map[string]any{"type": "object"}}}

	out, err := c.Complete(context.Background(), turns, tools)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if out.Text != "It's noon" {
		t.Errorf("expected final text, got %q", out.Text)
	}
	if len(out.Requests) != 0 {
		t.Errorf("expected no tool requests, got %v", out.Requests)
	}

	if captured.Model != "test-model" {
		t.Errorf("expected model test-model, got %s", captured.Model)
	}
	if len(captured.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(captured.Messages))
	}
	assistant := captured.Messages[2]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "t1" {
		t.Fatalf("expected assistant tool_calls, got %+v", assistant.ToolCalls)
	}
	if assistant.ToolCalls[0].Function.Arguments != `{"tz":"UTC"}` {
		t.Errorf("expected JSON-string arguments, got %q", assistant.ToolCalls[0].Function.Arguments)
	}
	toolMsg := captured.Messages[3]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "t1" {
		t.Errorf("expected tool message bound to t1, got %+v", toolMsg)
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Function.Name != "get_time" {
		t.Errorf("expected tool catalog forwarded, got %+v", captured.Tools)
	}
	if captured.ToolChoice != "auto" {
		t.Errorf("expected tool_choice auto, got %q", captured.ToolChoice)
	}
}

func TestCompleteParsesToolRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"role":    "assistant",
					"content": "",
					"tool_calls": []map[string]any{
						{"id": "t1", "type": "function", "function": map[string]any{
							"name": "get_time", "arguments": `{"tz":"UTC"}`,
						}},
						{"id": "t2", "type": "function", "function": map[string]any{
							"name": "speak_text", "arguments": `not json`,
						}},
					},
				}},
			},
		})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, APIKey: "sk-test"})
	out, err := c.Complete(context.Background(), []conversation.Turn{conversation.User("hi")}, nil)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if len(out.Requests) != 2 {
		t.Fatalf("expected 2 requests in listed order, got %d", len(out.Requests))
	}
	if out.Requests[0].Name != "get_time" || out.Requests[1].Name != "speak_text" {
		t.Errorf("expected listed order preserved, got %v", out.Requests)
	}
	if out.Requests[0].Arguments["tz"] != "UTC" {
		t.Errorf("expected parsed arguments, got %v", out.Requests[0].Arguments)
	}
	// Malformed arguments degrade to an empty map rather than failing the call.
	if len(out.Requests[1].Arguments) != 0 {
		t.Errorf("expected empty arguments for malformed JSON, got %v", out.Requests[1].Arguments)
	}
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "messages with role 'tool' must be a response to a preceding message with 'tool_calls'"},
		})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, APIKey: "sk-test"})
	_, err := c.Complete(context.Background(), []conversation.Turn{conversation.User("hi")}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", apiErr.Status)
	}
	if !apiErr.RoleSequence() {
		t.Error("expected role-sequence classification")
	}
}

func TestRoleSequenceClassification(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"messages with role 'tool' must follow tool_calls", true},
		{"Invalid parameter: tool_call_id not found", true},
		{"rate limit exceeded", false},
		{"internal server error", false},
	}
	for _, tt := range tests {
		e := &APIError{Status: 400, Message: tt.message}
		if got := e.RoleSequence(); got != tt.want {
			t.Errorf("RoleSequence(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(Config{APIKey: "sk-test"})
	if c.cfg.BaseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %s", c.cfg.BaseURL)
	}
	if c.cfg.Model != DefaultModel {
		t.Errorf("expected default model, got %s", c.cfg.Model)
	}
}
