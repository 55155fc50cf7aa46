// Package worktree implements the scoped acquisition of a
// {branch, worktree_path} pair keyed by (run_id, work_item_id), per spec
// §4.4. It is the Go "acquire-use-release with guaranteed release on all
// exits" pattern (spec §9): Acquire returns a *Scope whose Release runs on
// every exit path, mirroring the teacher's container-lifecycle helpers in
// internal/controller/docker.go (cleanup always attempted, errors logged
// not panicked).
package worktree

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ralph2/kernel/internal/gitrepo"
)

// Manager creates and releases worktree scopes against one repository.
type Manager struct {
	Repo         *gitrepo.Repo
	SystemPrefix string
}

// New constructs a Manager for repo using systemPrefix for branch and
// worktree directory naming.
func New(repo *gitrepo.Repo, systemPrefix string) *Manager {
	return &Manager{Repo: repo, SystemPrefix: systemPrefix}
}

// BranchName returns "<prefix>/<runID>/<workItemID>".
func (m *Manager) BranchName(runID, workItemID string) string {
	return fmt.Sprintf("%s/%s/%s", m.SystemPrefix, runID, workItemID)
}

// WorktreePath returns a sibling directory of the repo root named
// "<prefix>-executor-<runID>-<workItemID>".
func (m *Manager) WorktreePath(runID, workItemID string) string {
	dirName := fmt.Sprintf("%s-executor-%s-%s", m.SystemPrefix, runID, workItemID)
	return filepath.Join(filepath.Dir(m.Repo.Root), dirName)
}

// Scope is one acquired {branch, worktree_path} pair. Merged and released
// track whether MergeToTarget and Release have run, so Release is safe to
// call more than once and from a defer after an early return.
type Scope struct {
	manager    *Manager
	RunID      string
	WorkItemID string
	Branch     string
	Path       string
	released   bool
}

// Acquire creates branch (from baseBranch, or current HEAD if empty) and
// adds a worktree at the naming-convention path. If branch creation fails
// with "already exists" the existing branch is reused (recoverable); any
// other branch-creation failure is fatal. If worktree creation then fails,
// the branch is deleted before the error is propagated (spec §4.4).
func (m *Manager) Acquire(ctx context.Context, runID, workItemID, baseBranch string) (*Scope, error) {
	branch := m.BranchName(runID, workItemID)
	path := m.WorktreePath(runID, workItemID)

	_, err := m.Repo.CreateBranch(ctx, m.Repo.Root, branch, baseBranch)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return nil, fmt.Errorf("worktree: create branch %s: %w", branch, err)
	}

	if err := m.Repo.WorktreeAdd(ctx, path, branch); err != nil {
		// Roll back the branch we just created (or reused) before
		// propagating — partial state must not survive a failed Acquire.
		_ = m.Repo.DeleteBranch(ctx, m.Repo.Root, branch, true)
		return nil, fmt.Errorf("worktree: add worktree at %s for branch %s: %w", path, branch, err)
	}

	return &Scope{manager: m, RunID: runID, WorkItemID: workItemID, Branch: branch, Path: path}, nil
}

// MergeToTarget merges the scope's branch into target. Call before
// Release when the caller is satisfied with the executor's work; Release
// itself never merges.
func (s *Scope) MergeToTarget(ctx context.Context, target string) (bool, string) {
	return s.manager.Repo.Merge(ctx, s.manager.Repo.Root, target, s.Branch)
}

// Release always runs worktree-remove --force then branch delete, on
// every exit path including error paths. The force delete is intentional:
// the branch may be unmerged on abandonment (spec §4.4). Safe to call
// more than once.
func (s *Scope) Release(ctx context.Context) error {
	if s.released {
		return nil
	}
	s.released = true

	removeErr := s.manager.Repo.WorktreeRemove(ctx, s.Path)
	deleteErr := s.manager.Repo.DeleteBranch(ctx, s.manager.Repo.Root, s.Branch, true)
	if removeErr != nil {
		return removeErr
	}
	return deleteErr
}

// Sweep removes worktrees whose path matches "<prefix>-executor-*" but
// that are not in liveManagedPaths (worktrees this process's active
// Manager instances currently own), per spec §4.4's orphan sweep and
// §3's abandoned-worktree rule (also checked against liveBranches, the
// set of branches with an open work item still referencing them, so a
// branch mid-executor-run is never swept out from under it — see
// original_source/tests/test_executor_git_isolation.go grounding noted in
// SPEC_FULL.md).
func (m *Manager) Sweep(ctx context.Context, liveManagedPaths map[string]bool, liveBranches map[string]bool) ([]string, error) {
	entries, err := m.Repo.ListWorktrees(ctx)
	if err != nil {
		return nil, err
	}

	prefix := m.SystemPrefix + "-executor-"
	var swept []string
	for _, e := range entries {
		base := filepath.Base(e.Path)
		if !strings.HasPrefix(base, prefix) {
			continue
		}
		if liveManagedPaths[e.Path] {
			continue
		}
		if liveBranches[e.Branch] {
			continue
		}
		if err := m.Repo.WorktreeRemove(ctx, e.Path); err != nil {
			return swept, fmt.Errorf("worktree: sweep remove %s: %w", e.Path, err)
		}
		if e.Branch != "" {
			if err := m.Repo.DeleteBranch(ctx, m.Repo.Root, e.Branch, true); err != nil {
				return swept, fmt.Errorf("worktree: sweep delete branch %s: %w", e.Branch, err)
			}
		}
		swept = append(swept, e.Path)
	}
	return swept, nil
}
