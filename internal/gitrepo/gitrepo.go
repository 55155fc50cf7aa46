// Package gitrepo wraps the git CLI: branch, worktree, merge, and conflict
// detection, every operation parameterized by a working directory and a
// base/target branch (spec §4.3). It is the sole caller of
// internal/procexec that needs to know git's argv shapes.
package gitrepo

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ralph2/kernel/internal/procexec"
)

// Repo is a git adapter bound to one repository root. Merge is guarded by
// a mutex so concurrent executor scopes merging into the same milestone
// branch (spec §5: "concurrent merges into the same target are serialized
// by a process-wide mutex guarding the git adapter's merge operation")
// never race against each other.
type Repo struct {
	Root   string
	Runner procexec.Runner

	mergeMu sync.Mutex
}

// New constructs a Repo rooted at root using the real process adapter.
func New(root string) *Repo {
	return &Repo{Root: root, Runner: procexec.New()}
}

func (r *Repo) run(ctx context.Context, dir string, args ...string) (procexec.Result, error) {
	if dir == "" {
		dir = r.Root
	}
	argv := append([]string{"git"}, args...)
	return r.Runner.Run(ctx, dir, argv...)
}

// gitError turns a non-zero git exit into a Go error carrying stderr.
func gitError(op string, res procexec.Result) error {
	return fmt.Errorf("git %s failed (exit %d): %s", op, res.ExitCode, strings.TrimSpace(res.Stderr))
}

// CurrentBranch returns the checked-out branch name in dir.
func (r *Repo) CurrentBranch(ctx context.Context, dir string) (string, error) {
	res, err := r.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", gitError("rev-parse --abbrev-ref HEAD", res)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// IsDirty reports whether dir's working tree has uncommitted changes.
func (r *Repo) IsDirty(ctx context.Context, dir string) (bool, error) {
	res, err := r.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	if res.ExitCode != 0 {
		return false, gitError("status --porcelain", res)
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// CommitsSince returns the one-line subjects of commits reachable from
// HEAD but not from base.
func (r *Repo) CommitsSince(ctx context.Context, dir, base string) ([]string, error) {
	res, err := r.run(ctx, dir, "log", "--oneline", base+"..HEAD")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, gitError("log --oneline "+base+"..HEAD", res)
	}
	return splitNonEmptyLines(res.Stdout), nil
}

// DiffStatSince returns `git diff --stat base...HEAD`'s raw text.
func (r *Repo) DiffStatSince(ctx context.Context, dir, base string) (string, error) {
	res, err := r.run(ctx, dir, "diff", "--stat", base+"...HEAD")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", gitError("diff --stat "+base+"...HEAD", res)
	}
	return res.Stdout, nil
}

// CreateBranch creates name from base (empty base means current HEAD),
// with automatic numeric-suffix collision avoidance: if name already
// exists, name-2, name-3, ... are tried until one succeeds.
func (r *Repo) CreateBranch(ctx context.Context, dir, name, base string) (string, error) {
	candidate := name
	for attempt := 1; attempt <= 1000; attempt++ {
		args := []string{"branch", candidate}
		if base != "" {
			args = append(args, base)
		}
		res, err := r.run(ctx, dir, args...)
		if err != nil {
			return "", err
		}
		if res.ExitCode == 0 {
			return candidate, nil
		}
		if !strings.Contains(strings.ToLower(res.Stderr), "already exists") {
			return "", gitError("branch "+candidate, res)
		}
		candidate = nextSuffix(name, attempt+1)
	}
	return "", fmt.Errorf("git branch %s: exhausted collision-avoidance suffixes", name)
}

func nextSuffix(base string, n int) string {
	return fmt.Sprintf("%s-%d", base, n)
}

// Checkout checks out branch in dir.
func (r *Repo) Checkout(ctx context.Context, dir, branch string) error {
	res, err := r.run(ctx, dir, "checkout", branch)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return gitError("checkout "+branch, res)
	}
	return nil
}

// Merge merges source into target (target must be checked out in dir) with
// --no-edit. Returns (success, errorText); on failure the working tree is
// left in whatever state git left it — callers must treat this as a
// conflict and decide whether to abort, resolve, or discard (spec §4.3).
// Concurrent calls into the same Repo are serialized.
func (r *Repo) Merge(ctx context.Context, dir, target, source string) (bool, string) {
	r.mergeMu.Lock()
	defer r.mergeMu.Unlock()

	if err := r.Checkout(ctx, dir, target); err != nil {
		return false, err.Error()
	}
	res, err := r.run(ctx, dir, "merge", "--no-edit", source)
	if err != nil {
		return false, err.Error()
	}
	if res.ExitCode != 0 {
		return false, strings.TrimSpace(res.Stderr) + strings.TrimSpace(res.Stdout)
	}
	return true, ""
}

// AbortMerge runs `git merge --abort`, used by callers that decide to
// discard a conflicted merge attempt rather than resolve it.
func (r *Repo) AbortMerge(ctx context.Context, dir string) error {
	res, err := r.run(ctx, dir, "merge", "--abort")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return gitError("merge --abort", res)
	}
	return nil
}

// DeleteBranch deletes branch. force uses -D instead of -d.
func (r *Repo) DeleteBranch(ctx context.Context, dir, branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	res, err := r.run(ctx, dir, "branch", flag, branch)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		// Deleting a branch that never existed (e.g. worktree creation
		// failed before any commits landed on it) is not worth failing
		// the caller's cleanup path over.
		if strings.Contains(strings.ToLower(res.Stderr), "not found") {
			return nil
		}
		return gitError("branch "+flag+" "+branch, res)
	}
	return nil
}

// WorktreeAdd adds a worktree at path checked out to branch.
func (r *Repo) WorktreeAdd(ctx context.Context, path, branch string) error {
	res, err := r.run(ctx, r.Root, "worktree", "add", path, branch)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return gitError("worktree add "+path+" "+branch, res)
	}
	return nil
}

// WorktreeRemove force-removes the worktree at path.
func (r *Repo) WorktreeRemove(ctx context.Context, path string) error {
	res, err := r.run(ctx, r.Root, "worktree", "remove", "--force", path)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		if strings.Contains(strings.ToLower(res.Stderr), "not a working tree") ||
			strings.Contains(strings.ToLower(res.Stderr), "no such file or directory") {
			return nil
		}
		return gitError("worktree remove "+path, res)
	}
	return nil
}

// WorktreeEntry is one entry from `git worktree list --porcelain`.
type WorktreeEntry struct {
	Path   string
	Branch string
}

// ListWorktrees parses `git worktree list --porcelain` into entries.
func (r *Repo) ListWorktrees(ctx context.Context) ([]WorktreeEntry, error) {
	res, err := r.run(ctx, r.Root, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, gitError("worktree list --porcelain", res)
	}

	var entries []WorktreeEntry
	var cur WorktreeEntry
	for _, line := range strings.Split(res.Stdout, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if cur.Path != "" {
				entries = append(entries, cur)
			}
			cur = WorktreeEntry{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			cur.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "":
			if cur.Path != "" {
				entries = append(entries, cur)
				cur = WorktreeEntry{}
			}
		}
	}
	if cur.Path != "" {
		entries = append(entries, cur)
	}
	return entries, nil
}

// StageAll runs `git add -A` in dir.
func (r *Repo) StageAll(ctx context.Context, dir string) error {
	res, err := r.run(ctx, dir, "add", "-A")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return gitError("add -A", res)
	}
	return nil
}

// Commit commits staged changes in dir with message, returning the new
// HEAD sha.
func (r *Repo) Commit(ctx context.Context, dir, message string) (string, error) {
	res, err := r.run(ctx, dir, "commit", "-m", message)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", gitError("commit -m", res)
	}
	shaRes, err := r.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	if shaRes.ExitCode != 0 {
		return "", gitError("rev-parse HEAD", shaRes)
	}
	return strings.TrimSpace(shaRes.Stdout), nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
