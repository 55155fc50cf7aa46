package phases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ralph2/kernel/internal/agent"
	"github.com/ralph2/kernel/internal/agentshim"
	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/retry"
	"github.com/ralph2/kernel/internal/tracker"
	"github.com/ralph2/kernel/internal/worktree"
)

// ActInput bundles everything ACT needs for one fan-out, kept as a single
// struct so Act's signature does not grow every time a collaborator is
// added.
type ActInput struct {
	RunID           string
	MilestoneBranch string
	RootWorkItemID  string
	Plan            *kernel.IterationPlan
}

// ActOutput is ACT's full result: per-work-item executor results, the
// verifier's assessment, and any specialist feedback items filed as new
// work items.
type ActOutput struct {
	Executors []kernel.ExecutorResult
	Verifier  kernel.VerifierOutput
	Filed     []string // ids of new work items created from specialist feedback
}

// Act orchestrates executor fan-out, the serial verifier pass, and
// optional specialist follow-up, per spec §4.9 steps 1-7.
func Act(
	ctx context.Context,
	wt *worktree.Manager,
	executorShim *agentshim.Shim,
	verifierShim *agentshim.Shim,
	specialistShims []*agentshim.Shim,
	trk *tracker.Tracker,
	in ActInput,
) (*ActOutput, error) {
	results, err := runExecutors(ctx, wt, executorShim, in)
	if err != nil {
		return nil, err
	}

	verifier := runVerifier(ctx, verifierShim, results)

	out := &ActOutput{Executors: results, Verifier: verifier}

	for _, s := range specialistShims {
		filed, err := runSpecialist(ctx, s, trk, in.RootWorkItemID, results, verifier)
		if err != nil {
			// A specialist is advisory; its failure does not fail ACT, but
			// is worth surfacing to the caller for logging.
			continue
		}
		out.Filed = append(out.Filed, filed...)
	}

	return out, nil
}

// runExecutors spawns one concurrent task per work item (spec §4.9 steps
// 1-5). errgroup.Group's Wait never short-circuits on the first task
// error in the sense that matters here: each task itself never returns
// an error from the group function, since every exit path — success,
// merge failure, agent failure — must still release its worktree scope
// and record a result rather than abort the sibling tasks.
func runExecutors(ctx context.Context, wt *worktree.Manager, executorShim *agentshim.Shim, in ActInput) ([]kernel.ExecutorResult, error) {
	results := make([]kernel.ExecutorResult, len(in.Plan.WorkItems))

	g, gctx := errgroup.WithContext(context.Background())
	_ = gctx // each executor uses the outer ctx directly; cancellation of one must not cancel its siblings

	for i, assignment := range in.Plan.WorkItems {
		i, assignment := i, assignment
		g.Go(func() error {
			results[i] = runOneExecutor(ctx, wt, executorShim, in.RunID, in.MilestoneBranch, assignment)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("phases: act executor fan-out: %w", err)
	}
	return results, nil
}

func runOneExecutor(ctx context.Context, wt *worktree.Manager, shim *agentshim.Shim, runID, milestoneBranch string, assignment kernel.ExecutorAssignment) kernel.ExecutorResult {
	result := kernel.ExecutorResult{WorkItemID: assignment.WorkItemID, Assignment: assignment}

	scope, err := wt.Acquire(ctx, runID, assignment.WorkItemID, milestoneBranch)
	if err != nil {
		result.Err = fmt.Errorf("acquire worktree: %w", err)
		return result
	}
	result.Branch = scope.Branch
	// Guaranteed release on every exit path (spec §4.9 step 5, §4.4).
	defer func() { _ = scope.Release(ctx) }()

	output, err := invokeExecutor(ctx, shim, scope.Path, assignment.Description)
	if err != nil {
		result.Err = fmt.Errorf("invoke executor: %w", err)
		return result
	}
	result.Output = output

	if output.Status != kernel.ExecutorCompleted {
		// Blocked: discard the branch without merging (spec §4.9 step 4).
		return result
	}

	ok, conflictText := scope.MergeToTarget(ctx, milestoneBranch)
	if !ok {
		// One agent-assisted resolution attempt, then retry the merge
		// (spec §4.9 step 3).
		_, retryErr := invokeExecutor(ctx, shim, scope.Path, conflictResolutionPrompt(assignment.Description, conflictText))
		if retryErr == nil {
			ok, _ = scope.MergeToTarget(ctx, milestoneBranch)
		}
	}

	if !ok {
		output.Status = kernel.ExecutorBlocked
		result.Output = output
		return result
	}

	result.Merged = true
	return result
}

func conflictResolutionPrompt(description, conflictText string) string {
	return fmt.Sprintf("The previous change conflicts when merging into the milestone branch. Resolve the conflict and recommit.\n\nOriginal task: %s\n\nConflict detail:\n%s", description, conflictText)
}

func invokeExecutor(ctx context.Context, shim *agentshim.Shim, workDir, prompt string) (*kernel.ExecutorOutput, error) {
	payload, err := shim.Invoke(ctx, agent.Request{
		Kind:       string(kernel.AgentExecutor),
		WorkDir:    workDir,
		Prompt:     prompt,
		SchemaJSON: []byte(kernel.ExecutorOutputSchema),
	}, nil)
	if err != nil {
		return nil, err
	}
	var out kernel.ExecutorOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode executor output: %w", err)
	}
	return &out, nil
}

// runVerifier invokes the verifier agent via C7 retry (spec §4.9 step 6).
// If retries are exhausted the result is synthesized as UNCERTAIN — the
// iteration must never silently continue as if nothing went wrong.
func runVerifier(ctx context.Context, verifierShim *agentshim.Shim, results []kernel.ExecutorResult) kernel.VerifierOutput {
	var payload json.RawMessage
	err := retry.Execute(ctx, retry.Options{}, func(ctx context.Context) error {
		p, invokeErr := verifierShim.Invoke(ctx, agent.Request{
			Kind:       string(kernel.AgentVerifier),
			Prompt:     verifierPrompt(results),
			SchemaJSON: []byte(kernel.VerifierOutputSchema),
		}, nil)
		if invokeErr != nil {
			return invokeErr
		}
		payload = p
		return nil
	})
	if err != nil {
		return kernel.VerifierOutput{
			Outcome: kernel.VerifierUncertain,
			Summary: fmt.Sprintf("verifier could not complete after retries: %v", err),
		}
	}

	var out kernel.VerifierOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return kernel.VerifierOutput{
			Outcome: kernel.VerifierUncertain,
			Summary: fmt.Sprintf("verifier returned unparsable output: %v", err),
		}
	}
	return out
}

func verifierPrompt(results []kernel.ExecutorResult) string {
	var b strings.Builder
	b.WriteString("Executor results for this iteration:\n")
	for _, r := range results {
		status := "error"
		if r.Output != nil {
			status = string(r.Output.Status)
		}
		fmt.Fprintf(&b, "- %s: status=%s merged=%v\n", r.WorkItemID, status, r.Merged)
		if r.Output != nil && r.Output.WhatWasDone != "" {
			fmt.Fprintf(&b, "  done: %s\n", r.Output.WhatWasDone)
		}
		if r.Err != nil {
			fmt.Fprintf(&b, "  error: %v\n", r.Err)
		}
	}
	return b.String()
}

// runSpecialist invokes one specialist agent and files its feedback as new
// work items, skipping any whose title case-insensitively substring-
// matches an existing child of rootWorkItemID (spec §4.9 step 7). A
// tracker-listing failure fails open: every feedback item is created
// rather than silently dropped.
func runSpecialist(ctx context.Context, shim *agentshim.Shim, trk *tracker.Tracker, rootWorkItemID string, results []kernel.ExecutorResult, verifier kernel.VerifierOutput) ([]string, error) {
	payload, err := shim.Invoke(ctx, agent.Request{
		Kind:       "specialist",
		Prompt:     verifierPrompt(results) + "\nverifier outcome: " + string(verifier.Outcome) + "\n" + verifier.Summary,
		SchemaJSON: []byte(kernel.SpecialistOutputSchema),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("invoke specialist: %w", err)
	}

	var out kernel.SpecialistOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode specialist output: %w", err)
	}

	existing, listErr := trk.ListChildren(ctx, rootWorkItemID)
	failOpen := listErr != nil

	var filed []string
	for _, fb := range out.Feedback {
		if !failOpen && isDuplicateTitle(fb.Title, existing) {
			continue
		}
		id, createErr := trk.Create(ctx, fb.Title, fb.Description, rootWorkItemID, 3)
		if createErr != nil {
			continue
		}
		filed = append(filed, id)
	}
	return filed, nil
}

func isDuplicateTitle(title string, existing []kernel.WorkItem) bool {
	needle := strings.ToLower(strings.TrimSpace(title))
	if needle == "" {
		return false
	}
	for _, it := range existing {
		hay := strings.ToLower(it.Title)
		if strings.Contains(hay, needle) || strings.Contains(needle, hay) {
			return true
		}
	}
	return false
}
