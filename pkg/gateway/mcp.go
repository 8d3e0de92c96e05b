// Package gateway wraps the MCP client that fronts the meeting: tool
// discovery and invocation, plus reads of the live transcript resource.
// The catalog is discovered once at connect time and treated as static for
// the session.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/voxhall/meetbot/internal/log"
	"github.com/voxhall/meetbot/pkg/llm"
)

// Well-known tool names on the meeting server.
const (
	ToolSpeak = "speak_text"
	ToolJoin  = "join_meeting"
	ToolLeave = "leave_meeting"
)

// Caller invokes one tool against the gateway. The tool-call driver depends
// on this narrow contract so tests can fake the gateway.
type Caller interface {
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// ResourceReader reads one resource snapshot by URI.
type ResourceReader interface {
	ReadResource(ctx context.Context, uri string) ([]byte, error)
}

// Gateway is an MCP client connected to the meeting server.
type Gateway struct {
	client *client.Client
	tools  []mcp.Tool
}

// Connect dials the MCP server over streamable HTTP, runs the initialize
// handshake, and discovers the tool catalog.
func Connect(ctx context.Context, serverURL, clientName string) (*Gateway, error) {
	c, err := client.NewStreamableHttpClient(serverURL)
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: "0.1.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}

	listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("list tools: %w", err)
	}

	g := &Gateway{client: c, tools: listed.Tools}
	log.Info("connected to meeting server", "url", serverURL, "tools", len(g.tools))
	return g, nil
}

// Tools returns the discovered catalog in the model client's shape.
func (g *Gateway) Tools() []llm.ToolDef {
	defs := make([]llm.ToolDef, len(g.tools))
	for i, t := range g.tools {
		params := map[string]any{
			"type":       t.InputSchema.Type,
			"properties": t.InputSchema.Properties,
		}
		if len(t.InputSchema.Required) > 0 {
			params["required"] = t.InputSchema.Required
		}
		defs[i] = llm.ToolDef{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		}
	}
	return defs
}

// HasTool reports whether the catalog contains the named tool.
func (g *Gateway) HasTool(name string) bool {
	for _, t := range g.tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Call invokes one tool and returns the concatenated text content of the
// result. A result flagged IsError comes back as a Go error so the driver
// can fold it into a structured tool-error turn.
func (g *Gateway) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := g.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call tool %s: %w", name, err)
	}

	text := textContent(res.Content)
	if res.IsError {
		return "", fmt.Errorf("tool %s failed: %s", name, text)
	}
	return text, nil
}

// ReadResource fetches one resource snapshot and returns its text content
// as raw bytes, ready for JSON decoding.
func (g *Gateway) ReadResource(ctx context.Context, uri string) ([]byte, error) {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri

	res, err := g.client.ReadResource(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("read resource %s: %w", uri, err)
	}

	for _, content := range res.Contents {
		switch c := content.(type) {
		case mcp.TextResourceContents:
			return []byte(c.Text), nil
		case *mcp.TextResourceContents:
			return []byte(c.Text), nil
		}
	}
	return nil, fmt.Errorf("resource %s has no text content", uri)
}

// Close shuts down the MCP transport.
func (g *Gateway) Close() error {
	return g.client.Close()
}

// textContent joins all text blocks in a tool result.
func textContent(contents []mcp.Content) string {
	var parts []string
	for _, content := range contents {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}
