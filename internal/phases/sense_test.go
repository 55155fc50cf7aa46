package phases

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ralph2/kernel/internal/gitrepo"
	"github.com/ralph2/kernel/internal/procexec"
	"github.com/ralph2/kernel/internal/project"
	"github.com/ralph2/kernel/internal/tracker"
)

func TestSense_CollectsClaimsWithoutMutating(t *testing.T) {
	repoDir := t.TempDir()
	fake := &procexec.Fake{
		Results: []procexec.Result{
			{Stdout: "ralph2/run-1/milestone\n"},       // rev-parse --abbrev-ref HEAD
			{Stdout: ""},                                 // status --porcelain (clean)
			{Stdout: "abc123 did a thing\n"},              // log --oneline
			{Stdout: "fix-bug\topen\t3\tfix the bug\n"},   // list --status=ready
			{Stdout: ""},                                  // list --status=blocked
			{Stdout: "old-item\tclosed\t3\tdone already\n"}, // list --status=closed
			{Stdout: "root-item\topen\t1\troot\n"},        // show root
		},
	}
	repo := &gitrepo.Repo{Root: repoDir, Runner: fake}
	trk := tracker.New("trc", repoDir, fake)

	home := t.TempDir()
	proj, err := project.Resolve(repoDir, "ralph2", home)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := os.WriteFile(proj.MemoryPath, []byte("remembered fact"), 0o644); err != nil {
		t.Fatalf("write memory: %v", err)
	}

	claims, err := Sense(context.Background(), repo, trk, proj, "milestone-base", "root-item")
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}

	if claims.CurrentBranch != "ralph2/run-1/milestone" {
		t.Errorf("CurrentBranch = %q", claims.CurrentBranch)
	}
	if claims.Dirty {
		t.Errorf("expected clean working tree")
	}
	if len(claims.CommitsSinceMilestone) != 1 {
		t.Errorf("CommitsSinceMilestone = %v", claims.CommitsSinceMilestone)
	}
	if len(claims.ReadyItems) != 1 || claims.ReadyItems[0].ID != "fix-bug" {
		t.Errorf("ReadyItems = %+v", claims.ReadyItems)
	}
	if len(claims.ClosedItems) != 1 {
		t.Errorf("ClosedItems = %+v", claims.ClosedItems)
	}
	if claims.Memory != "remembered fact" {
		t.Errorf("Memory = %q", claims.Memory)
	}

	for _, call := range fake.Calls {
		if call.Argv[0] == "git" {
			for _, a := range call.Argv {
				if a == "commit" || a == "push" || a == "merge" {
					t.Fatalf("SENSE must not mutate: saw %v", call.Argv)
				}
			}
		}
	}

	// MarkerFileName must exist (Resolve created it) and nothing under
	// proj's outputs dir should have been touched by Sense.
	entries, err := os.ReadDir(filepath.Dir(proj.OutputsDir))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	_ = entries
}
