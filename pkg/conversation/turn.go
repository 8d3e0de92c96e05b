// Package conversation maintains the model-facing turn log for one meeting
// session. The log interleaves user turns, assistant turns, and tool-call /
// tool-result pairs, and must stay structurally valid for the model API at
// all times: a tool result without its requesting assistant turn in the
// current user-turn window is orphaned and must never reach the endpoint.
package conversation

// Role tags the variant of a Turn.
type Role string

// Turn roles, matching the chat-completions wire roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolRequest is one tool invocation requested by an assistant turn.
// The ID is unique within the assistant turn that produced it and pairs the
// request with its eventual result.
type ToolRequest struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Turn is one entry in the conversation log.
type Turn struct {
	Role    Role
	Content string

	// Requests is set on assistant turns that asked for tool calls.
	Requests []ToolRequest

	// RequestID pairs a tool-result turn with the request that produced it.
	RequestID string

	// IsError marks a tool-result turn that carries a structured error
	// payload instead of a successful result.
	IsError bool
}

// System builds the fixed instruction turn. Exactly one exists per session,
// always at index 0.
func System(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

// User builds a user turn from aggregated speaker text.
func User(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// Assistant builds an assistant turn, possibly requesting tool calls.
func Assistant(content string, requests ...ToolRequest) Turn {
	return Turn{Role: RoleAssistant, Content: content, Requests: requests}
}

// ToolResult builds a successful tool-result turn.
func ToolResult(requestID, content string) Turn {
	return Turn{Role: RoleTool, RequestID: requestID, Content: content}
}

// ToolError builds a tool-result turn carrying a structured error payload.
// Failures are fed back to the model this way instead of crashing the cycle.
func ToolError(requestID, content string) Turn {
	return Turn{Role: RoleTool, RequestID: requestID, Content: content, IsError: true}
}
