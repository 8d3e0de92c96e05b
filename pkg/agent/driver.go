package agent

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/voxhall/meetbot/internal/log"
	"github.com/voxhall/meetbot/pkg/conversation"
	"github.com/voxhall/meetbot/pkg/gateway"
	"github.com/voxhall/meetbot/pkg/llm"
)

// DefaultMaxSteps caps the model round-trips within one cycle, counting the
// initial call and every tool-call follow-up.
const DefaultMaxSteps = 10

// DefaultHistoryKeep bounds the turn log submitted to the model (system turn
// excluded from the count).
const DefaultHistoryKeep = 40

// ErrStepBudget is returned when a cycle exhausts its model round-trips
// before the model produces a final answer.
var ErrStepBudget = errors.New("agent: model cycle exceeded step budget")

// Model is the completion endpoint contract the driver depends on.
type Model interface {
	Complete(ctx context.Context, turns []conversation.Turn, tools []llm.ToolDef) (*llm.Completion, error)
}

// Speaker forwards final text into the meeting.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Driver runs one model cycle to completion: submit the log, execute any
// requested tools strictly in order, feed the results back, and recurse
// until the model answers with no further tool requests or the step budget
// runs out.
type Driver struct {
	model    Model
	tools    gateway.Caller
	speaker  Speaker
	store    *conversation.Store
	catalog  []llm.ToolDef
	maxSteps int
	keepLast int

	// OnFinal, when set, observes the final spoken text (dashboard feed).
	OnFinal func(text string)
}

// NewDriver wires the driver. Non-positive budgets fall back to defaults.
func NewDriver(model Model, tools gateway.Caller, speaker Speaker, store *conversation.Store, catalog []llm.ToolDef, maxSteps, keepLast int) *Driver {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if keepLast <= 0 {
		keepLast = DefaultHistoryKeep
	}
	return &Driver{
		model:    model,
		tools:    tools,
		speaker:  speaker,
		store:    store,
		catalog:  catalog,
		maxSteps: maxSteps,
		keepLast: keepLast,
	}
}

// RunCycle executes one full model cycle. The user turn that triggered the
// cycle must already be appended to the store. Errors abandon the cycle but
// leave the log consistent: every appended tool request has its paired
// result before the next model call is ever made.
func (d *Driver) RunCycle(ctx context.Context) error {
	lastText := ""
	resetDone := false
	usedIDs := map[string]bool{}

	for step := 0; step < d.maxSteps; step++ {
		if !d.store.Validate() {
			removed := d.store.Repair()
			log.Warn("repaired conversation log", "removed", removed)
		}
		d.store.Truncate(d.keepLast)

		completion, err := d.model.Complete(ctx, d.store.Turns(), d.catalog)
		if err != nil {
			var apiErr *llm.APIError
			if errors.As(err, &apiErr) && apiErr.RoleSequence() && !resetDone {
				// The endpoint rejected the payload outright; repair was
				// not enough. Last resort: reduce to system + last user.
				log.Warn("model rejected conversation, resetting", "error", apiErr.Message)
				d.store.Reset()
				resetDone = true
				continue
			}
			return err
		}

		if len(completion.Requests) == 0 {
			d.store.Append(conversation.Assistant(completion.Text))
			if completion.Text != "" {
				d.speak(ctx, completion.Text)
			}
			return nil
		}

		// Request IDs only pair within this cycle's window, and some models
		// reuse the same ID on consecutive steps. A reused ID would make the
		// earlier pair ambiguous, so duplicates are rewritten like empty ones.
		requests := completion.Requests
		for i := range requests {
			if requests[i].ID == "" || usedIDs[requests[i].ID] {
				requests[i].ID = uuid.NewString()
			}
			usedIDs[requests[i].ID] = true
		}

		// The assistant turn is appended before any tool runs, and every
		// request gets a result before the next model call, so the model
		// never sees a request without its pair.
		d.store.Append(conversation.Assistant(completion.Text, requests...))
		if completion.Text != "" {
			lastText = completion.Text
		}

		for _, req := range requests {
			result, err := d.tools.Call(ctx, req.Name, req.Arguments)
			if err != nil {
				log.Warn("tool execution failed", "tool", req.Name, "error", err)
				d.store.Append(conversation.ToolError(req.ID, errorPayload(req.Name, err)))
				continue
			}
			log.Debug("tool executed", "tool", req.Name, "result_len", len(result))
			d.store.Append(conversation.ToolResult(req.ID, result))
		}
	}

	log.Warn("model cycle exceeded step budget", "max_steps", d.maxSteps)
	if lastText != "" {
		d.speak(ctx, lastText+" (response truncated)")
	}
	return ErrStepBudget
}

// speak forwards final text to the meeting exactly once per cycle. Speak
// failures degrade gracefully: the bot just stays silent for this turn.
func (d *Driver) speak(ctx context.Context, text string) {
	if err := d.speaker.Speak(ctx, text); err != nil {
		log.Error("speak failed", "error", err)
		return
	}
	if d.OnFinal != nil {
		d.OnFinal(text)
	}
}

// errorPayload renders a tool failure as structured JSON the model can react
// to in its next turn.
func errorPayload(tool string, err error) string {
	payload, merr := json.Marshal(map[string]string{
		"error": err.Error(),
		"tool":  tool,
	})
	if merr != nil {
		return `{"error":"tool execution failed"}`
	}
	return string(payload)
}
