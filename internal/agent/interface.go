// Package agent defines the Agent interface and a factory registry kept
// from the teacher's internal/agent (andymwolf-agentium), trimmed to the
// boundary spec §1 draws: "language-model agents... described only by the
// inputs they receive and the structured outputs they must produce". The
// kernel never implements an Agent, only invokes one through
// internal/agentshim.
package agent

import "context"

// Request is everything an Agent invocation needs: a prompt, the working
// directory it should operate in (an executor's worktree, or the repo
// root for planner/verifier/specialist), and the JSON schema its
// structured output must validate against.
type Request struct {
	Kind       string // "planner" | "executor" | "verifier" | "specialist"
	WorkDir    string
	Prompt     string
	SchemaJSON []byte
}

// Event is one streamed observability event, emitted in order as an
// invocation progresses (spec §4.8.3).
type Event struct {
	Kind     EventKind
	ToolName string
	Input    string
	Success  bool
	ErrText  string
	Text     string
}

// EventKind enumerates the three streamed event shapes spec §4.8.3 names.
type EventKind string

const (
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventText       EventKind = "text"
)

// EventCallback receives streamed events in order; tool_result always
// follows its matching tool_call for a given tool call.
type EventCallback func(Event)

// Response is the raw result of one Agent invocation, before C8's schema
// validation.
type Response struct {
	RawOutput string // the agent's raw structured-output payload, as text
}

// Agent is the interface every language-model adapter (planner, executor,
// verifier, specialist) implements. The kernel treats it as a black box:
// it supplies a prompt and a schema, and observes events and a raw
// output.
type Agent interface {
	Name() string
	Invoke(ctx context.Context, req Request, onEvent EventCallback) (Response, error)
}
