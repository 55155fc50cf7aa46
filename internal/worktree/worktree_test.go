package worktree

import (
	"context"
	"testing"

	"github.com/ralph2/kernel/internal/gitrepo"
	"github.com/ralph2/kernel/internal/procexec"
)

func newManager(fake *procexec.Fake) *Manager {
	repo := &gitrepo.Repo{Root: "/repo", Runner: fake}
	return New(repo, "ralph2")
}

func TestAcquire_CreatesBranchAndWorktree(t *testing.T) {
	fake := &procexec.Fake{Results: []procexec.Result{{ExitCode: 0}, {ExitCode: 0}}}
	m := newManager(fake)

	scope, err := m.Acquire(context.Background(), "r1", "task-a", "feature/x")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if scope.Branch != "ralph2/r1/task-a" {
		t.Errorf("Branch = %q", scope.Branch)
	}
	if scope.Path == "" {
		t.Error("Path should be set")
	}
}

func TestAcquire_BranchAlreadyExistsIsRecoverable(t *testing.T) {
	fake := &procexec.Fake{
		Results: []procexec.Result{
			{ExitCode: 128, Stderr: "fatal: a branch named 'ralph2/r1/task-a' already exists"},
			{ExitCode: 0}, // worktree add succeeds with the reused branch
		},
	}
	m := newManager(fake)

	_, err := m.Acquire(context.Background(), "r1", "task-a", "feature/x")
	if err != nil {
		t.Fatalf("expected reuse of existing branch to succeed, got %v", err)
	}
}

func TestAcquire_WorktreeFailureRollsBackBranch(t *testing.T) {
	fake := &procexec.Fake{
		Results: []procexec.Result{
			{ExitCode: 0},                                     // branch create ok
			{ExitCode: 128, Stderr: "fatal: already exists"},  // worktree add fails
			{ExitCode: 0},                                     // branch delete rollback
		},
	}
	m := newManager(fake)

	_, err := m.Acquire(context.Background(), "r1", "task-a", "feature/x")
	if err == nil {
		t.Fatal("expected worktree-add failure to propagate")
	}
	if len(fake.Calls) != 3 {
		t.Fatalf("expected branch create, worktree add, branch delete rollback; got %d calls", len(fake.Calls))
	}
	if fake.Calls[2].Argv[1] != "branch" {
		t.Errorf("expected rollback branch delete, got %v", fake.Calls[2].Argv)
	}
}

func TestScope_ReleaseIsIdempotent(t *testing.T) {
	fake := &procexec.Fake{Results: []procexec.Result{{ExitCode: 0}, {ExitCode: 0}}}
	scope := &Scope{manager: newManager(fake), Branch: "ralph2/r1/task-a", Path: "/repo-executor-r1-task-a"}

	if err := scope.Release(context.Background()); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := scope.Release(context.Background()); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
	if len(fake.Calls) != 2 {
		t.Fatalf("release should only run adapter calls once, got %d calls", len(fake.Calls))
	}
}

func TestSweep_SkipsLivePathsAndLiveBranches(t *testing.T) {
	porcelain := "worktree /repo\nbranch refs/heads/main\n\n" +
		"worktree /repo-executor-r1-live\nbranch refs/heads/ralph2/r1/live\n\n" +
		"worktree /repo-executor-r1-orphan\nbranch refs/heads/ralph2/r1/orphan\n\n" +
		"worktree /unrelated-dir\nbranch refs/heads/main\n\n"
	fake := &procexec.Fake{
		Results: []procexec.Result{
			{ExitCode: 0, Stdout: porcelain}, // list
			{ExitCode: 0},                    // remove orphan worktree
			{ExitCode: 0},                    // delete orphan branch
		},
	}
	m := newManager(fake)

	swept, err := m.Sweep(context.Background(),
		map[string]bool{"/repo-executor-r1-live": true},
		map[string]bool{},
	)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(swept) != 1 || swept[0] != "/repo-executor-r1-orphan" {
		t.Fatalf("swept = %v, want only the orphan path", swept)
	}
}
