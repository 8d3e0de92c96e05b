// Package llm is a minimal client for an OpenAI-compatible chat-completions
// endpoint with tool calling. It maps the conversation log onto wire
// messages and surfaces tool requests in the order the model listed them.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/voxhall/meetbot/internal/httpc"
	"github.com/voxhall/meetbot/pkg/conversation"
)

// DefaultBaseURL targets the public OpenAI API; point it elsewhere for any
// compatible endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// DefaultModel is the completion model used when none is configured.
const DefaultModel = "gpt-4o"

// ToolDef describes one tool in the catalog submitted with each request.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Completion is the model's reply: final text and zero or more tool
// requests. An empty Requests slice means the turn is final.
type Completion struct {
	Text     string
	Requests []conversation.ToolRequest
}

// APIError is a non-2xx response from the model endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model endpoint: %s (status %d)", e.Message, e.Status)
}

// RoleSequence reports whether the error message indicates an invalid role
// or message ordering in the submitted log. The driver responds to these
// with a catastrophic conversation reset.
func (e *APIError) RoleSequence() bool {
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "role") || strings.Contains(msg, "tool_call")
}

// Config holds the model endpoint knobs.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// Client talks to the chat-completions endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a client, applying defaults for base URL and model.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Client{cfg: cfg, http: httpc.Client}
}

// Wire types for the chat-completions protocol.

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete submits the conversation log plus tool catalog and returns the
// model's reply. The log must already be valid; orphan repair is the
// caller's job.
func (c *Client) Complete(ctx context.Context, turns []conversation.Turn, tools []ToolDef) (*Completion, error) {
	req := chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages:    toMessages(turns),
	}
	if len(tools) > 0 {
		req.Tools = toWireTools(tools)
		req.ToolChoice = "auto"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model endpoint request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	msg := parsed.Choices[0].Message
	out := &Completion{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			// Malformed arguments degrade to an empty map; the tool itself
			// reports the missing parameters back to the model.
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		out.Requests = append(out.Requests, conversation.ToolRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

// toMessages maps the turn log onto wire messages.
func toMessages(turns []conversation.Turn) []chatMessage {
	msgs := make([]chatMessage, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleSystem:
			msgs = append(msgs, chatMessage{Role: "system", Content: t.Content})
		case conversation.RoleUser:
			msgs = append(msgs, chatMessage{Role: "user", Content: t.Content})
		case conversation.RoleAssistant:
			m := chatMessage{Role: "assistant", Content: t.Content}
			for _, req := range t.Requests {
				args, err := json.Marshal(req.Arguments)
				if err != nil {
					args = []byte("{}")
				}
				m.ToolCalls = append(m.ToolCalls, toolCall{
					ID:   req.ID,
					Type: "function",
					Function: functionCall{
						Name:      req.Name,
						Arguments: string(args),
					},
				})
			}
			msgs = append(msgs, m)
		case conversation.RoleTool:
			msgs = append(msgs, chatMessage{
				Role:       "tool",
				Content:    t.Content,
				ToolCallID: t.RequestID,
			})
		}
	}
	return msgs
}

func toWireTools(tools []ToolDef) []chatTool {
	out := make([]chatTool, len(tools))
	for i, t := range tools {
		out[i] = chatTool{
			Type: "function",
			Function: toolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}
