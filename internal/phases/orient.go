package phases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ralph2/kernel/internal/agent"
	"github.com/ralph2/kernel/internal/agentshim"
	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/retry"
)

// OrientFeedback carries the prior iteration's outcomes into this
// iteration's planner call (spec §4.9: "the prior iteration's executor
// summary, verifier assessment, and specialist feedback if any").
type OrientFeedback struct {
	ExecutorSummary     string
	VerifierAssessment  string
	SpecialistFeedback  string
}

// OrientPrompt assembles the planner's prompt text from spec content,
// memory, SENSE claims, and the prior iteration's feedback. Kept as its
// own function so tests can assert its shape without invoking an agent.
func OrientPrompt(specContent string, claims *Claims, feedback OrientFeedback) string {
	var b strings.Builder
	b.WriteString("# Spec\n")
	b.WriteString(specContent)
	b.WriteString("\n\n# Memory\n")
	b.WriteString(claims.Memory)
	if claims.MemoryWarning != "" {
		b.WriteString("\n(")
		b.WriteString(claims.MemoryWarning)
		b.WriteString(")")
	}
	b.WriteString("\n\n# Current state\n")
	fmt.Fprintf(&b, "branch: %s (dirty=%v)\n", claims.CurrentBranch, claims.Dirty)
	fmt.Fprintf(&b, "ready: %d, blocked: %d, closed: %d\n", len(claims.ReadyItems), len(claims.BlockedItems), len(claims.ClosedItems))
	for _, it := range claims.ReadyItems {
		fmt.Fprintf(&b, "- [ready] %s: %s\n", it.ID, it.Title)
	}
	for _, it := range claims.BlockedItems {
		fmt.Fprintf(&b, "- [blocked] %s: %s\n", it.ID, it.Title)
	}
	if feedback.ExecutorSummary != "" || feedback.VerifierAssessment != "" || feedback.SpecialistFeedback != "" {
		b.WriteString("\n# Prior iteration\n")
		if feedback.ExecutorSummary != "" {
			b.WriteString("executor summary: " + feedback.ExecutorSummary + "\n")
		}
		if feedback.VerifierAssessment != "" {
			b.WriteString("verifier assessment: " + feedback.VerifierAssessment + "\n")
		}
		if feedback.SpecialistFeedback != "" {
			b.WriteString("specialist feedback: " + feedback.SpecialistFeedback + "\n")
		}
	}
	return b.String()
}

// Orient invokes the planner agent through shim with C7 retry (attempts=3,
// spec §4.9), returning its parsed PlannerOutput.
func Orient(ctx context.Context, shim *agentshim.Shim, specContent string, claims *Claims, feedback OrientFeedback) (*kernel.PlannerOutput, error) {
	prompt := OrientPrompt(specContent, claims, feedback)

	var payload json.RawMessage
	err := retry.Execute(ctx, retry.Options{MaxAttempts: 3}, func(ctx context.Context) error {
		p, invokeErr := shim.Invoke(ctx, agent.Request{
			Kind:       string(kernel.AgentPlanner),
			Prompt:     prompt,
			SchemaJSON: []byte(kernel.PlannerOutputSchema),
		}, nil)
		if invokeErr != nil {
			return invokeErr
		}
		payload = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("phases: orient: %w", err)
	}

	var out kernel.PlannerOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("phases: orient: decode planner output: %w", err)
	}
	return &out, nil
}
