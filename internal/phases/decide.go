package phases

import "github.com/ralph2/kernel/internal/kernel"

// Outcome is DECIDE's routing verdict, covering the three terminal
// branches the runner acts on (spec §4.9, §4.10).
type Outcome struct {
	Kind    kernel.IterationOutcome
	Summary string // set for Done
	Reason  string // set for Stuck
}

// Decide is pure and deterministic: the same Decision always yields the
// same Outcome (spec §4.9 "side-effect-free so replaying the same
// Decision always yields the same outcome").
func Decide(d kernel.Decision, plan *kernel.IterationPlan) Outcome {
	switch d.Decision {
	case kernel.DecisionDone:
		// spec §3: "Validation rejects DONE without summary." The schema
		// (kernel.PlannerOutputSchema) already enforces this on the
		// planner's structured output; this is the Go-level backstop so
		// Decide stays total and correct even if that validation is ever
		// bypassed.
		if d.Reason == "" {
			return Outcome{Kind: kernel.OutcomeStuck, Reason: "DONE decision missing required summary"}
		}
		return Outcome{Kind: kernel.OutcomeDone, Summary: d.Reason}
	case kernel.DecisionStuck:
		// spec §3: "Validation rejects ... STUCK without reason."
		if d.Reason == "" {
			return Outcome{Kind: kernel.OutcomeStuck, Reason: "STUCK decision missing required reason"}
		}
		return Outcome{Kind: kernel.OutcomeStuck, Reason: d.Reason}
	case kernel.DecisionContinue:
		if plan.Empty() {
			return Outcome{Kind: kernel.OutcomeStuck, Reason: "no actionable work"}
		}
		return Outcome{Kind: kernel.OutcomeContinue}
	default:
		// An unrecognized decision tag is itself "no actionable work": DECIDE
		// must be total, so every input — including a malformed one — maps
		// to exactly one outcome rather than panicking.
		return Outcome{Kind: kernel.OutcomeStuck, Reason: "unrecognized decision: " + string(d.Decision)}
	}
}
