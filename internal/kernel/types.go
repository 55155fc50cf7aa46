// Package kernel holds the data types shared across the orchestration
// kernel: runs, iterations, agent outputs, human inputs, work items, and
// the structured planner/executor contracts. It has no behavior of its own
// — every operation on these types lives in the package that owns the
// corresponding component (state, phases, runner, milestone).
package kernel

import "time"

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunStuck   RunStatus = "stuck"
	RunPaused  RunStatus = "paused"
	RunAborted RunStatus = "aborted"
)

// IterationOutcome is the terminal classification DECIDE assigns to an
// iteration.
type IterationOutcome string

const (
	OutcomeContinue IterationOutcome = "continue"
	OutcomeDone     IterationOutcome = "done"
	OutcomeStuck    IterationOutcome = "stuck"
)

// AgentKind identifies which role in the cognitive cycle produced an
// AgentOutput.
type AgentKind string

const (
	AgentPlanner    AgentKind = "planner"
	AgentExecutor   AgentKind = "executor"
	AgentVerifier   AgentKind = "verifier"
	AgentSpecialist AgentKind = "specialist"
)

// HumanInputKind is the kind of out-of-band instruction a human can queue
// against a run.
type HumanInputKind string

const (
	InputComment HumanInputKind = "comment"
	InputPause   HumanInputKind = "pause"
	InputResume  HumanInputKind = "resume"
	InputAbort   HumanInputKind = "abort"
)

// Run is one attempt to drive a spec to a terminal outcome.
type Run struct {
	ID              string
	SpecPath        string
	SpecContent     string
	Status          RunStatus
	ConfigJSON      string
	StartedAt       time.Time
	EndedAt         *time.Time
	RootWorkItemID  *string
	MilestoneBranch *string
}

// Iteration is one SENSE->ORIENT->DECIDE->ACT pass.
type Iteration struct {
	ID        int64
	RunID     string
	Number    int
	Intent    string
	Outcome   IterationOutcome
	StartedAt time.Time
	EndedAt   *time.Time
}

// AgentOutput is an immutable pointer to one agent invocation's raw output.
type AgentOutput struct {
	ID            int64
	IterationID   int64
	AgentType     AgentKind
	RawOutputPath string
	Summary       string
}

// HumanInput is a queued out-of-band instruction for a run.
type HumanInput struct {
	ID         int64
	RunID      string
	InputType  HumanInputKind
	Content    string
	CreatedAt  time.Time
	ConsumedAt *time.Time
}

// WorkItemStatus mirrors the external tracker's two-state lifecycle.
type WorkItemStatus string

const (
	WorkItemOpen   WorkItemStatus = "open"
	WorkItemClosed WorkItemStatus = "closed"
)

// WorkItem mirrors a unit of work tracked by the external `trc` tracker.
// The tracker owns its lifecycle; the kernel only issues create/close/
// comment operations against it (see internal/tracker).
type WorkItem struct {
	ID          string
	Title       string
	Status      WorkItemStatus
	Priority    int
	Description string
	ParentID    string
}

// Comment is one tracker comment on a work item, in tracker-assigned order.
type Comment struct {
	Timestamp time.Time
	Source    string
	Text      string
}

// ExecutorAssignment is one work item routed to one executor within an
// IterationPlan.
type ExecutorAssignment struct {
	WorkItemID     string `json:"work_item_id"`
	Description    string `json:"description"`
	ExecutorNumber int    `json:"executor_number"`
}

// IterationPlan is the planner's proposed fan-out for the next ACT phase.
type IterationPlan struct {
	ExecutorCount int                  `json:"executor_count"`
	WorkItems     []ExecutorAssignment `json:"work_items"`
}

// Empty reports whether the plan has no actionable work, per DECIDE's
// STUCK("no actionable work") rule.
func (p *IterationPlan) Empty() bool {
	return p == nil || p.ExecutorCount <= 0 || len(p.WorkItems) == 0
}

// DecisionKind is the tag of the planner's Decision sum type.
type DecisionKind string

const (
	DecisionContinue DecisionKind = "CONTINUE"
	DecisionDone     DecisionKind = "DONE"
	DecisionStuck    DecisionKind = "STUCK"
)

// Decision is the planner's structured signal for DECIDE to route on.
type Decision struct {
	Decision DecisionKind `json:"decision"`
	Reason   string       `json:"reason,omitempty"`
	Blocker  string       `json:"blocker,omitempty"`
}

// PlannerOutput is the full structured payload the planner agent must
// produce, validated against PlannerOutputSchema (see internal/agentshim).
type PlannerOutput struct {
	Intent        string         `json:"intent"`
	Decision      Decision       `json:"decision"`
	IterationPlan *IterationPlan `json:"iteration_plan"`
	Messages      []string       `json:"messages,omitempty"`
}

// ExecutorStatus is the executor agent's self-reported completion state.
type ExecutorStatus string

const (
	ExecutorCompleted ExecutorStatus = "Completed"
	ExecutorBlocked   ExecutorStatus = "Blocked"
)

// ExecutorOutput is the structured payload an executor agent must produce.
type ExecutorOutput struct {
	Status          ExecutorStatus `json:"status"`
	WhatWasDone     string         `json:"what_was_done"`
	Blockers        string         `json:"blockers,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	EfficiencyNotes string         `json:"efficiency_notes,omitempty"`
	WorkCommitted   bool           `json:"work_committed"`
	TracesUpdated   bool           `json:"traces_updated"`
}

// VerifierOutcome is the verifier's judgment of the iteration as a whole.
type VerifierOutcome string

const (
	VerifierDone       VerifierOutcome = "DONE"
	VerifierContinue   VerifierOutcome = "CONTINUE"
	VerifierUncertain  VerifierOutcome = "UNCERTAIN"
)

// VerifierOutput is the structured payload the verifier agent must produce.
type VerifierOutput struct {
	Outcome VerifierOutcome `json:"outcome"`
	Summary string          `json:"summary"`
}

// SpecialistFeedback is one recommended follow-up item from a specialist
// agent, filed as a new work item after the duplicate check in ACT step 7.
type SpecialistFeedback struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SpecialistOutput is the structured payload a specialist agent must
// produce.
type SpecialistOutput struct {
	Feedback []SpecialistFeedback `json:"feedback"`
}

// ExecutorResult is the ACT-phase-internal record of one executor's run,
// aggregated before iteration persistence.
type ExecutorResult struct {
	WorkItemID string
	Assignment ExecutorAssignment
	Output     *ExecutorOutput
	Branch     string
	Merged     bool
	Err        error
}
