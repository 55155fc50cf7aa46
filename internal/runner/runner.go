// Package runner implements the outer iteration loop (C10, spec §4.10):
// startup (health check, orphan sweep, resume-or-create, milestone setup,
// root work item), then the per-iteration SENSE->ORIENT->DECIDE->ACT pass
// until a terminal outcome or the iteration budget is exhausted.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ralph2/kernel/internal/agentshim"
	"github.com/ralph2/kernel/internal/gitrepo"
	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/memory"
	"github.com/ralph2/kernel/internal/milestone"
	"github.com/ralph2/kernel/internal/observability"
	"github.com/ralph2/kernel/internal/phases"
	"github.com/ralph2/kernel/internal/project"
	"github.com/ralph2/kernel/internal/state"
	"github.com/ralph2/kernel/internal/tracker"
	"github.com/ralph2/kernel/internal/worktree"
)

// Runner wires together every collaborator one run needs. Construction is
// the caller's job (cmd/ralph2/main.go); Runner itself holds no process
// lifecycle concerns beyond the run it is driving.
type Runner struct {
	Store     *state.Store
	Repo      *gitrepo.Repo
	Tracker   *tracker.Tracker
	Worktree  *worktree.Manager
	Project   *project.Context

	PlannerShim     *agentshim.Shim
	ExecutorShim    *agentshim.Shim
	VerifierShim    *agentshim.Shim
	SpecialistShims []*agentshim.Shim

	// MemoryStore accumulates RALPH2_MEMORY signals scraped from executor
	// and verifier raw text across iterations, feeding a digest into the
	// next ORIENT's feedback alongside the plain executor/verifier summary
	// (see internal/memory; distinct from project.Context's memory.md).
	// A nil MemoryStore disables digest-building.
	MemoryStore *memory.Store

	// Tracer records each iteration as a span within one trace per run,
	// adapted from the teacher's Langfuse-shaped observability.Tracer
	// interface (task/phase/generation) to ralph2's run/iteration shape.
	// A nil Tracer uses observability.NoOpTracer.
	Tracer observability.Tracer

	SystemPrefix  string
	MaxIterations int

	// ResumeRunID, when set, forces Run to resume this specific run
	// (spec §6 CLI surface "resume [--run-id <id>]") instead of the
	// default rule of resuming whichever run is currently Running or
	// starting a new one. The named run must exist and must not already
	// be Running (a second process racing against a live run would
	// corrupt its iteration sequence).
	ResumeRunID string
}

// HealthCheckError reports a pre-flight failure (spec §4.10 "perform
// pre-flight health check"); distinct from kernel.TrackerError so the CLI
// can map it to exit code 1 ("bootstrap / environment error", spec §6).
type HealthCheckError struct {
	Reason string
	Cause  error
}

func (e *HealthCheckError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("runner: health check failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("runner: health check failed: %s", e.Reason)
}

func (e *HealthCheckError) Unwrap() error { return e.Cause }

// tracer returns r.Tracer, or a no-op if none was configured.
func (r *Runner) tracer() observability.Tracer {
	if r.Tracer == nil {
		return &observability.NoOpTracer{}
	}
	return r.Tracer
}

// healthCheck verifies git is usable against Repo.Root and the tracker
// responds, before any run state is touched.
func (r *Runner) healthCheck(ctx context.Context) error {
	if _, err := r.Repo.CurrentBranch(ctx, r.Repo.Root); err != nil {
		return &HealthCheckError{Reason: "git repository not usable", Cause: err}
	}
	if _, err := r.Tracker.ListReady(ctx, ""); err != nil {
		return &HealthCheckError{Reason: "tracker not initialized", Cause: err}
	}
	return nil
}

// Outcome is the terminal result of Run, mirroring spec §6's exit-code
// taxonomy (0 DONE/max-iterations, 2 aborted, 3 stuck — bootstrap errors
// are returned as a Go error instead, mapping to exit code 1).
type Outcome struct {
	Run            kernel.Run
	IterationCount int
}

// Run drives the outer loop for one run, resuming an existing running run
// for this project or starting a new one from specPath/specContent. It
// guarantees the run's persisted status is never left as "running" when
// Run returns, regardless of how it returns (spec §4.10 "on exit: persist
// run status; never leave a run stranded in running").
func (r *Runner) Run(ctx context.Context, specPath, specContent string, maxIterations int) (*Outcome, error) {
	if maxIterations <= 0 {
		maxIterations = r.MaxIterations
	}
	if maxIterations <= 0 {
		maxIterations = kernel.DefaultMaxIterations
	}

	if err := r.healthCheck(ctx); err != nil {
		return nil, err
	}

	swept, err := r.Worktree.Sweep(ctx, map[string]bool{}, map[string]bool{})
	if err != nil {
		return nil, fmt.Errorf("runner: orphan sweep: %w", err)
	}
	_ = swept // surfaced via logging by the caller, not fatal to startup

	run, isNew, err := r.resumeOrCreateRun(ctx, specPath, specContent)
	if err != nil {
		return nil, err
	}

	// From this point on, every return path must persist a terminal
	// status unless the loop below already did so (DONE/STUCK set it
	// explicitly); the deferred guard below is the backstop for paths
	// that return early due to an unexpected error.
	finalStatus := kernel.RunRunning
	defer func() {
		if finalStatus == kernel.RunRunning {
			_ = r.Store.UpdateStatus(ctx, run.ID, kernel.RunAborted)
		}
	}()

	trace := r.tracer().StartTrace(run.ID, observability.TraceOptions{
		Workflow:   "ralph2",
		Repository: r.Repo.Root,
		SessionID:  run.ID,
	})
	defer func() {
		r.tracer().CompleteTrace(trace, observability.CompleteOptions{Status: traceStatus(finalStatus)})
	}()

	if isNew {
		if err := r.setUpMilestone(ctx, run, specContent); err != nil {
			finalStatus = kernel.RunAborted
			return nil, err
		}
	}

	if err := r.ensureRootWorkItem(ctx, run, specContent); err != nil {
		finalStatus = kernel.RunAborted
		return nil, err
	}

	iterationCount, err := r.Store.NextIterationNumber(ctx, run.ID)
	if err != nil {
		finalStatus = kernel.RunAborted
		return nil, fmt.Errorf("runner: read iteration count: %w", err)
	}
	iterationCount-- // NextIterationNumber returns the *next* number; count already run so far

	var feedback phases.OrientFeedback

	for iterationCount < maxIterations {
		inputs, err := r.Store.PopUnconsumedHumanInputs(ctx, run.ID)
		if err != nil {
			finalStatus = kernel.RunAborted
			return nil, fmt.Errorf("runner: pop human inputs: %w", err)
		}
		if aborted := handleHumanInputs(inputs); aborted {
			finalStatus = kernel.RunAborted
			if err := r.Store.UpdateStatus(ctx, run.ID, kernel.RunAborted); err != nil {
				return nil, err
			}
			run.Status = kernel.RunAborted
			return &Outcome{Run: *run, IterationCount: iterationCount}, nil
		}

		number, err := r.Store.NextIterationNumber(ctx, run.ID)
		if err != nil {
			finalStatus = kernel.RunAborted
			return nil, fmt.Errorf("runner: next iteration number: %w", err)
		}

		iterationID, err := r.Store.CreateIteration(ctx, kernel.Iteration{
			RunID:     run.ID,
			Number:    number,
			Intent:    "",
			Outcome:   kernel.OutcomeContinue,
			StartedAt: time.Now(),
		})
		if err != nil {
			finalStatus = kernel.RunAborted
			return nil, fmt.Errorf("runner: create iteration: %w", err)
		}

		span := r.tracer().StartPhase(trace, "iteration", observability.SpanOptions{
			Iteration:     number,
			MaxIterations: maxIterations,
		})

		outcome, planOutput, actOutput, err := r.runOneIteration(ctx, run, specContent, feedback)
		if err != nil {
			// A protocol violation or agent error fails this iteration but
			// is not run-terminal (spec §7): finalize as continue and let
			// the next ORIENT see the failure in feedback.
			r.tracer().EndPhase(span, "error", 0)
			_ = r.Store.FinalizeIteration(ctx, iterationID, kernel.OutcomeContinue, time.Now())
			feedback = phases.OrientFeedback{ExecutorSummary: fmt.Sprintf("iteration failed: %v", err)}
			iterationCount = number
			continue
		}
		r.tracer().EndPhase(span, "completed", 0)

		if err := r.Store.FinalizeIteration(ctx, iterationID, outcome.Kind, time.Now()); err != nil {
			finalStatus = kernel.RunAborted
			return nil, fmt.Errorf("runner: finalize iteration: %w", err)
		}
		iterationCount = number

		switch outcome.Kind {
		case kernel.OutcomeDone:
			if err := milestone.Complete(ctx, r.Tracker, valueOrEmpty(run.RootWorkItemID)); err != nil {
				// Logged by the caller; milestone cleanup failure must not
				// prevent the run from completing (spec §4.11 step 5).
				_ = err
			}
			finalStatus = kernel.RunDone
			if err := r.Store.UpdateStatus(ctx, run.ID, kernel.RunDone); err != nil {
				return nil, err
			}
			run.Status = kernel.RunDone
			return &Outcome{Run: *run, IterationCount: iterationCount}, nil

		case kernel.OutcomeStuck:
			finalStatus = kernel.RunStuck
			if err := r.Store.UpdateStatus(ctx, run.ID, kernel.RunStuck); err != nil {
				return nil, err
			}
			run.Status = kernel.RunStuck
			return &Outcome{Run: *run, IterationCount: iterationCount}, nil

		default: // OutcomeContinue
			feedback = r.buildFeedback(actOutput, number)
			_ = planOutput
		}
	}

	// Iteration budget exhausted: terminates normally, per spec §6 exit
	// code 0 ("DONE or max iterations").
	finalStatus = kernel.RunDone
	if err := r.Store.UpdateStatus(ctx, run.ID, kernel.RunDone); err != nil {
		return nil, err
	}
	run.Status = kernel.RunDone
	return &Outcome{Run: *run, IterationCount: iterationCount}, nil
}

// runOneIteration runs SENSE -> ORIENT -> DECIDE -> (ACT if continuing).
func (r *Runner) runOneIteration(ctx context.Context, run *kernel.Run, specContent string, feedback phases.OrientFeedback) (phases.Outcome, *kernel.PlannerOutput, *phases.ActOutput, error) {
	claims, err := phases.Sense(ctx, r.Repo, r.Tracker, r.Project, valueOrEmpty(run.MilestoneBranch), valueOrEmpty(run.RootWorkItemID))
	if err != nil {
		return phases.Outcome{}, nil, nil, fmt.Errorf("sense: %w", err)
	}

	planOutput, err := phases.Orient(ctx, r.PlannerShim, specContent, claims, feedback)
	if err != nil {
		return phases.Outcome{}, nil, nil, fmt.Errorf("orient: %w", err)
	}

	outcome := phases.Decide(planOutput.Decision, planOutput.IterationPlan)
	if outcome.Kind != kernel.OutcomeContinue {
		return outcome, planOutput, nil, nil
	}

	actOutput, err := phases.Act(ctx, r.Worktree, r.ExecutorShim, r.VerifierShim, r.SpecialistShims, r.Tracker, phases.ActInput{
		RunID:           run.ID,
		MilestoneBranch: valueOrEmpty(run.MilestoneBranch),
		RootWorkItemID:  valueOrEmpty(run.RootWorkItemID),
		Plan:            planOutput.IterationPlan,
	})
	if err != nil {
		return phases.Outcome{}, planOutput, nil, fmt.Errorf("act: %w", err)
	}

	return outcome, planOutput, actOutput, nil
}

// buildFeedback turns one ACT pass into the next ORIENT's feedback. When
// MemoryStore is set, it also scrapes RALPH2_MEMORY signal lines out of
// the executors' and verifier's raw text, accumulates them, and prepends
// a budget-aware digest to the executor summary so recurring key facts
// and pending steps survive across iterations even when the planner's
// own memory.md curation lags behind.
func (r *Runner) buildFeedback(out *phases.ActOutput, iteration int) phases.OrientFeedback {
	if out == nil {
		return phases.OrientFeedback{}
	}
	var executorSummary string
	var rawText string
	for _, er := range out.Executors {
		if er.Output != nil {
			executorSummary += string(er.Output.Status) + ": " + er.Output.WhatWasDone + "\n"
			rawText += er.Output.WhatWasDone + "\n" + er.Output.Notes + "\n" + er.Output.EfficiencyNotes + "\n"
		}
	}
	rawText += out.Verifier.Summary

	if r.MemoryStore != nil {
		signals := memory.ParseSignals(rawText)
		if len(signals) > 0 {
			r.MemoryStore.Update(signals, iteration, "")
		}
		if digest := r.MemoryStore.BuildContext(""); digest != "" {
			executorSummary = digest + "\n" + executorSummary
		}
	}

	specialistSummary := ""
	if len(out.Filed) > 0 {
		specialistSummary = fmt.Sprintf("%d new work items filed", len(out.Filed))
	}
	return phases.OrientFeedback{
		ExecutorSummary:    executorSummary,
		VerifierAssessment: string(out.Verifier.Outcome) + ": " + out.Verifier.Summary,
		SpecialistFeedback: specialistSummary,
	}
}

// handleHumanInputs reports whether an abort was observed (spec §4.10
// "abort -> terminate"). Pause/resume are consumed but otherwise
// transparent to this pass: a bare pause with no later resume leaves the
// run eligible to continue next invocation, since the kernel has no
// long-lived in-process wait loop to block inside (the CLI's `run`
// process is itself the unit of suspension).
func handleHumanInputs(inputs []kernel.HumanInput) (aborted bool) {
	for _, in := range inputs {
		if in.InputType == kernel.InputAbort {
			return true
		}
	}
	return false
}

func (r *Runner) resumeOrCreateRun(ctx context.Context, specPath, specContent string) (*kernel.Run, bool, error) {
	if r.ResumeRunID != "" {
		run, err := r.Store.GetRun(ctx, r.ResumeRunID)
		if err != nil {
			return nil, false, fmt.Errorf("runner: get run %s: %w", r.ResumeRunID, err)
		}
		if run == nil {
			return nil, false, fmt.Errorf("runner: run %s not found", r.ResumeRunID)
		}
		if run.Status == kernel.RunRunning {
			return nil, false, fmt.Errorf("runner: run %s is already running", r.ResumeRunID)
		}
		if err := r.Store.UpdateStatus(ctx, run.ID, kernel.RunRunning); err != nil {
			return nil, false, fmt.Errorf("runner: resume run %s: %w", r.ResumeRunID, err)
		}
		run.Status = kernel.RunRunning
		return run, false, nil
	}

	latest, err := r.Store.LatestRun(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("runner: latest run: %w", err)
	}
	if latest != nil && latest.Status == kernel.RunRunning {
		return latest, false, nil
	}

	run := kernel.Run{
		ID:          uuid.NewString(),
		SpecPath:    specPath,
		SpecContent: specContent,
		Status:      kernel.RunRunning,
		StartedAt:   time.Now(),
	}
	if err := r.Store.CreateRun(ctx, run); err != nil {
		return nil, false, fmt.Errorf("runner: create run: %w", err)
	}
	return &run, true, nil
}

func (r *Runner) setUpMilestone(ctx context.Context, run *kernel.Run, specContent string) error {
	slug := milestone.SlugFromSpec(specContent)
	branchName := milestone.BranchName(slug)

	created, err := r.Repo.CreateBranch(ctx, r.Repo.Root, branchName, "")
	if err != nil {
		return fmt.Errorf("runner: create milestone branch: %w", err)
	}

	if err := r.Store.UpdateMilestoneBranch(ctx, run.ID, created); err != nil {
		return fmt.Errorf("runner: persist milestone branch: %w", err)
	}
	run.MilestoneBranch = &created
	return nil
}

func (r *Runner) ensureRootWorkItem(ctx context.Context, run *kernel.Run, specContent string) error {
	if run.RootWorkItemID != nil && *run.RootWorkItemID != "" {
		show, err := r.Tracker.Show(ctx, *run.RootWorkItemID)
		if err != nil {
			return fmt.Errorf("runner: verify root work item: %w", err)
		}
		if show != nil {
			return nil
		}
		// Stale: the tracker no longer knows this id. Fall through to
		// recreate and rehome.
	}

	slug := milestone.SlugFromSpec(specContent)
	id, err := r.Tracker.Create(ctx, slug, "root work item for this run", "", 1)
	if err != nil {
		return fmt.Errorf("runner: create root work item: %w", err)
	}
	if err := r.Store.UpdateRootWorkItem(ctx, run.ID, id); err != nil {
		return fmt.Errorf("runner: persist root work item: %w", err)
	}
	run.RootWorkItemID = &id
	return nil
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// traceStatus maps a run's terminal kernel.RunStatus to the
// observability.Tracer's status vocabulary.
func traceStatus(status kernel.RunStatus) string {
	switch status {
	case kernel.RunDone:
		return "completed"
	case kernel.RunStuck:
		return "blocked"
	default:
		return "failed"
	}
}
