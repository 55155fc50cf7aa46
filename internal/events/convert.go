package events

import (
	"time"

	"github.com/ralph2/kernel/internal/agent"
)

// ConvertParams holds parameters for event conversion.
type ConvertParams struct {
	SessionID string
	Iteration int
	Adapter   string
	Timestamp time.Time // Optional: defaults to time.Now() if zero
}

// FromAgentEvents converts the stream of agent.Event values C8 observed
// during one invocation into unified AgentEvents for logging, generalized
// from the teacher's per-adapter (Claude Code / Codex) conversion
// functions to the single normalized agent.Event shape every adapter now
// emits through internal/agentshim (spec §4.8.3's three event kinds).
func FromAgentEvents(evts []agent.Event, params ConvertParams) []AgentEvent {
	if len(evts) == 0 {
		return nil
	}

	ts := params.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	out := make([]AgentEvent, 0, len(evts))
	for _, e := range evts {
		converted := fromAgentEvent(e, params, ts)
		if converted != nil {
			out = append(out, *converted)
		}
	}
	return out
}

func fromAgentEvent(e agent.Event, params ConvertParams, ts time.Time) *AgentEvent {
	event := &AgentEvent{
		Timestamp: ts,
		SessionID: params.SessionID,
		Iteration: params.Iteration,
		Adapter:   params.Adapter,
	}

	switch e.Kind {
	case agent.EventText:
		event.Type = EventText
		event.Content = e.Text
		event.Summary = truncate(e.Text, 100)

	case agent.EventToolCall:
		event.Type = EventToolUse
		event.ToolName = e.ToolName
		event.ToolInput = e.Input
		event.Summary = "Tool: " + e.ToolName

	case agent.EventToolResult:
		event.Type = EventToolResult
		event.ToolName = e.ToolName
		if !e.Success {
			event.Type = EventError
			event.Content = e.ErrText
			event.Summary = "Tool failed: " + e.ToolName
		} else {
			event.Summary = "Tool ok: " + e.ToolName
		}

	default:
		return nil
	}

	return event
}

// truncate shortens a string to the specified maximum length, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
