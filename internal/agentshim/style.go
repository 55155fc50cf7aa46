package agentshim

// InvocationStyle is the prompt-assembly strategy for one agent call,
// orthogonal to agent kind (supplemented from original_source/src/soda/
// agents/{bookended,narrow,walked}.py per SPEC_FULL.md): bookended brackets
// a rolling transcript with system+user messages, narrow is a single-shot
// minimal-context call, walked is a stepwise tool-call loop. The shim only
// cares about schema-in/schema-out; style only changes how Shim.Invoke
// assembles the prompt text handed to the underlying agent.Agent.
type InvocationStyle string

const (
	StyleBookended InvocationStyle = "bookended"
	StyleNarrow    InvocationStyle = "narrow"
	StyleWalked    InvocationStyle = "walked"
)

// DefaultStyle returns the default invocation style for an agent kind:
// Walked for executors (stepwise tool use over a real codebase), Narrow
// for planner/verifier/specialist (single-shot judgment calls).
func DefaultStyle(kind string) InvocationStyle {
	if kind == "executor" {
		return StyleWalked
	}
	return StyleNarrow
}
