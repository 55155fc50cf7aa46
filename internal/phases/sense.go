// Package phases implements the SENSE, ORIENT, DECIDE, and ACT drivers of
// the cognitive cycle (C9, spec §4.9), generalizing the teacher's
// controller loop (andymwolf-agentium/internal/controller) from a single
// docker-exec step into the kernel's four-phase pass.
package phases

import (
	"context"
	"fmt"

	"github.com/ralph2/kernel/internal/gitrepo"
	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/project"
	"github.com/ralph2/kernel/internal/tracker"
)

// Claims is SENSE's pure, serializable read-only snapshot of the world:
// git state, tracker state, and memory content (spec §4.9). It carries no
// judgment — ORIENT alone decides what any of this means.
type Claims struct {
	CurrentBranch         string
	Dirty                 bool
	CommitsSinceMilestone []string
	ReadyItems            []kernel.WorkItem
	BlockedItems          []kernel.WorkItem
	ClosedItems           []kernel.WorkItem
	RootComments          []kernel.Comment
	Memory                string
	MemoryWarning         string
}

// Sense collects Claims. It performs no writes anywhere: not to git, not
// to the tracker, not to the state store.
func Sense(ctx context.Context, repo *gitrepo.Repo, trk *tracker.Tracker, proj *project.Context, milestoneBranch, rootWorkItemID string) (*Claims, error) {
	c := &Claims{}

	branch, err := repo.CurrentBranch(ctx, repo.Root)
	if err != nil {
		return nil, fmt.Errorf("phases: sense current branch: %w", err)
	}
	c.CurrentBranch = branch

	dirty, err := repo.IsDirty(ctx, repo.Root)
	if err != nil {
		return nil, fmt.Errorf("phases: sense dirty check: %w", err)
	}
	c.Dirty = dirty

	if milestoneBranch != "" {
		commits, err := repo.CommitsSince(ctx, repo.Root, milestoneBranch)
		if err != nil {
			return nil, fmt.Errorf("phases: sense commits since milestone: %w", err)
		}
		c.CommitsSinceMilestone = commits
	}

	ready, err := trk.ListReady(ctx, rootWorkItemID)
	if err != nil {
		return nil, fmt.Errorf("phases: sense ready items: %w", err)
	}
	c.ReadyItems = ready

	blocked, err := trk.ListBlocked(ctx, rootWorkItemID)
	if err != nil {
		return nil, fmt.Errorf("phases: sense blocked items: %w", err)
	}
	c.BlockedItems = blocked

	closed, err := trk.ListClosed(ctx, rootWorkItemID)
	if err != nil {
		return nil, fmt.Errorf("phases: sense closed items: %w", err)
	}
	c.ClosedItems = closed

	if rootWorkItemID != "" {
		show, err := trk.Show(ctx, rootWorkItemID)
		if err != nil {
			return nil, fmt.Errorf("phases: sense root comments: %w", err)
		}
		if show != nil {
			c.RootComments = show.Comments
		}
	}

	memory, err := proj.ReadMemory()
	if err != nil {
		return nil, fmt.Errorf("phases: sense memory: %w", err)
	}
	c.Memory = memory

	warning, err := proj.MemoryWarning()
	if err != nil {
		return nil, fmt.Errorf("phases: sense memory warning: %w", err)
	}
	c.MemoryWarning = warning

	return c, nil
}
