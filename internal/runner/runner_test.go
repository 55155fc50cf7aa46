package runner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ralph2/kernel/internal/agent"
	"github.com/ralph2/kernel/internal/agentshim"
	"github.com/ralph2/kernel/internal/gitrepo"
	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/procexec"
	"github.com/ralph2/kernel/internal/project"
	"github.com/ralph2/kernel/internal/state"
	"github.com/ralph2/kernel/internal/tracker"
	"github.com/ralph2/kernel/internal/worktree"
)

type plannerDoneAgent struct{}

func (plannerDoneAgent) Name() string { return "planner" }

func (plannerDoneAgent) Invoke(ctx context.Context, req agent.Request, onEvent agent.EventCallback) (agent.Response, error) {
	return agent.Response{RawOutput: `{"intent":"finish up","decision":{"decision":"DONE","reason":"all work complete"}}`}, nil
}

func TestRunner_NewRunReachesDoneInOneIteration(t *testing.T) {
	repoDir := t.TempDir()
	home := t.TempDir()

	gitFake := &procexec.Fake{
		Results: []procexec.Result{
			{Stdout: "main\n"},  // health check: current branch
			{Stdout: ""},         // sweep: worktree list --porcelain
			{},                   // milestone: create branch
			{Stdout: "feature/ralph2-kernel\n"}, // sense: current branch
			{Stdout: ""},         // sense: status --porcelain
			{Stdout: ""},         // sense: log --oneline
		},
	}
	repo := &gitrepo.Repo{Root: repoDir, Runner: gitFake}

	trackerFake := &procexec.Fake{
		Results: []procexec.Result{
			{Stdout: ""},                                  // health check: list ready
			{Stdout: "CREATED\troot-item\n"},                // ensure root: create
			{Stdout: "root-item\topen\t1\troot item\n"},     // sense: list ready
			{Stdout: ""},                                    // sense: list blocked
			{Stdout: ""},                                    // sense: list closed
			{Stdout: "root-item\topen\t1\troot item\n"},     // sense: show root
			{Stdout: ""},                                    // milestone complete: list children
			{},                                              // milestone complete: close root
		},
	}
	trk := tracker.New("trc", repoDir, trackerFake)

	proj, err := project.Resolve(repoDir, "ralph2", home)
	if err != nil {
		t.Fatalf("project.Resolve: %v", err)
	}

	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	r := &Runner{
		Store:       store,
		Repo:        repo,
		Tracker:     trk,
		Worktree:    worktree.New(repo, "ralph2"),
		Project:     proj,
		PlannerShim: agentshim.New(plannerDoneAgent{}, nil),
		SystemPrefix: "ralph2",
		MaxIterations: 10,
	}

	out, err := r.Run(context.Background(), "spec.md", "# Ralph2 Kernel\n\nbuild the thing", 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Run.Status != kernel.RunDone {
		t.Fatalf("status = %v, want done", out.Run.Status)
	}
	if out.IterationCount != 1 {
		t.Fatalf("IterationCount = %d, want 1", out.IterationCount)
	}

	persisted, err := store.GetRun(context.Background(), out.Run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if persisted.Status != kernel.RunDone {
		t.Fatalf("persisted status = %v, want done", persisted.Status)
	}
}
