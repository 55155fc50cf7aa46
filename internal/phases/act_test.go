package phases

import (
	"context"
	"testing"

	"github.com/ralph2/kernel/internal/agentshim"
	"github.com/ralph2/kernel/internal/gitrepo"
	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/procexec"
	"github.com/ralph2/kernel/internal/tracker"
	"github.com/ralph2/kernel/internal/worktree"
)

func TestAct_SingleExecutorHappyPath(t *testing.T) {
	fake := &procexec.Fake{
		Results: []procexec.Result{
			{},              // branch create
			{},              // worktree add
			{},              // merge: checkout
			{},              // merge: merge --no-edit
			{},              // release: worktree remove
			{},              // release: branch delete
		},
	}
	repo := &gitrepo.Repo{Root: "/repo", Runner: fake}
	wt := worktree.New(repo, "ralph2")

	executorAgent := &scriptedAgent{name: "executor", raws: []string{
		`{"status":"Completed","what_was_done":"fixed it","work_committed":true,"traces_updated":true}`,
	}}
	verifierAgent := &scriptedAgent{name: "verifier", raws: []string{
		`{"outcome":"DONE","summary":"all good"}`,
	}}

	out, err := Act(context.Background(), wt, agentshim.New(executorAgent, nil), agentshim.New(verifierAgent, nil), nil, nil, ActInput{
		RunID:           "run-1",
		MilestoneBranch: "milestone",
		RootWorkItemID:  "root-item",
		Plan: &kernel.IterationPlan{
			ExecutorCount: 1,
			WorkItems:     []kernel.ExecutorAssignment{{WorkItemID: "fix-bug", Description: "fix it", ExecutorNumber: 1}},
		},
	})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}

	if len(out.Executors) != 1 {
		t.Fatalf("got %d executor results", len(out.Executors))
	}
	r := out.Executors[0]
	if r.Err != nil {
		t.Fatalf("executor error: %v", r.Err)
	}
	if !r.Merged {
		t.Fatalf("expected merged=true")
	}
	if r.Output.Status != kernel.ExecutorCompleted {
		t.Fatalf("status = %v", r.Output.Status)
	}
	if out.Verifier.Outcome != kernel.VerifierDone {
		t.Fatalf("verifier outcome = %v", out.Verifier.Outcome)
	}
}

func TestAct_MergeConflictThenResolved(t *testing.T) {
	fake := &procexec.Fake{
		Results: []procexec.Result{
			{},                                        // branch create
			{},                                        // worktree add
			{},                                        // first merge: checkout
			{ExitCode: 1, Stderr: "CONFLICT"},          // first merge: merge --no-edit fails
			{},                                        // second merge: checkout
			{},                                        // second merge: merge --no-edit succeeds
			{},                                        // release: worktree remove
			{},                                        // release: branch delete
		},
	}
	repo := &gitrepo.Repo{Root: "/repo", Runner: fake}
	wt := worktree.New(repo, "ralph2")

	executorAgent := &scriptedAgent{name: "executor", raws: []string{
		`{"status":"Completed","what_was_done":"fixed it","work_committed":true,"traces_updated":true}`,
		`{"status":"Completed","what_was_done":"resolved conflict","work_committed":true,"traces_updated":true}`,
	}}
	verifierAgent := &scriptedAgent{name: "verifier", raws: []string{`{"outcome":"CONTINUE","summary":"more to do"}`}}

	out, err := Act(context.Background(), wt, agentshim.New(executorAgent, nil), agentshim.New(verifierAgent, nil), nil, nil, ActInput{
		RunID:           "run-1",
		MilestoneBranch: "milestone",
		Plan: &kernel.IterationPlan{
			ExecutorCount: 1,
			WorkItems:     []kernel.ExecutorAssignment{{WorkItemID: "fix-bug", Description: "fix it"}},
		},
	})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if !out.Executors[0].Merged {
		t.Fatalf("expected eventual merge success after conflict resolution")
	}
	if executorAgent.n != 2 {
		t.Fatalf("expected 2 executor invocations (original + conflict-resolution), got %d", executorAgent.n)
	}
}

func TestAct_VerifierExhaustionSynthesizesUncertain(t *testing.T) {
	fake := &procexec.Fake{}
	repo := &gitrepo.Repo{Root: "/repo", Runner: fake}
	wt := worktree.New(repo, "ralph2")

	verifierAgent := &scriptedAgent{name: "verifier", errs: []error{
		errTransient{}, errTransient{}, errTransient{},
	}}

	out, err := Act(context.Background(), wt, agentshim.New(&scriptedAgent{name: "executor"}, nil), agentshim.New(verifierAgent, nil), nil, nil, ActInput{
		Plan: &kernel.IterationPlan{ExecutorCount: 0, WorkItems: nil},
	})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if out.Verifier.Outcome != kernel.VerifierUncertain {
		t.Fatalf("expected UNCERTAIN, got %v", out.Verifier.Outcome)
	}
}

func TestAct_SpecialistSkipsDuplicateTitles(t *testing.T) {
	trackerFake := &procexec.Fake{
		Results: []procexec.Result{
			{Stdout: "existing-item\topen\t3\tImprove test coverage\n"}, // list-children
			{Stdout: "CREATED\tnew-item\n"},                             // create (the non-duplicate)
		},
	}
	trk := tracker.New("trc", "/repo", trackerFake)

	specialistAgent := &scriptedAgent{name: "specialist", raws: []string{
		`{"feedback":[{"title":"improve test coverage further","description":"dup"},{"title":"add retry metrics","description":"new"}]}`,
	}}

	out, err := Act(context.Background(), worktree.New(&gitrepo.Repo{Root: "/repo", Runner: &procexec.Fake{}}, "ralph2"),
		agentshim.New(&scriptedAgent{name: "executor"}, nil),
		agentshim.New(&scriptedAgent{name: "verifier", raws: []string{`{"outcome":"CONTINUE","summary":"ok"}`}}, nil),
		[]*agentshim.Shim{agentshim.New(specialistAgent, nil)},
		trk,
		ActInput{RootWorkItemID: "root-item", Plan: &kernel.IterationPlan{}},
	)
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if len(out.Filed) != 1 || out.Filed[0] != "new-item" {
		t.Fatalf("Filed = %v, want exactly [new-item]", out.Filed)
	}
}
