package milestone

import (
	"context"
	"testing"

	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/procexec"
	"github.com/ralph2/kernel/internal/tracker"
)

func TestSlugFromSpec(t *testing.T) {
	cases := []struct {
		spec string
		want string
	}{
		{"# Ralph2 Orchestration Kernel\n\nbody", "ralph2-orchestration-kernel"},
		{"intro line\n# Second Heading\nbody", "second-heading"},
		{"no heading at all", "milestone"},
		{"# !!! weird ___ chars ???\n", "weird-chars"},
	}
	for _, c := range cases {
		if got := SlugFromSpec(c.spec); got != c.want {
			t.Errorf("SlugFromSpec(%q) = %q, want %q", c.spec, got, c.want)
		}
	}
}

func TestBranchName(t *testing.T) {
	if got := BranchName("my-slug"); got != "feature/my-slug" {
		t.Fatalf("got %q", got)
	}
}

func TestComplete_NoOpenChildrenJustCloses(t *testing.T) {
	fake := &procexec.Fake{
		Results: []procexec.Result{
			{Stdout: ""},   // list-children: none
			{Stdout: ""},   // close
		},
	}
	trk := tracker.New("trc", "/repo", fake)

	if err := Complete(context.Background(), trk, "root-item"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(fake.Calls) != 2 {
		t.Fatalf("expected list-children + close only, got %d calls: %+v", len(fake.Calls), fake.Calls)
	}
}

func TestComplete_BucketsAndReparentsThenCloses(t *testing.T) {
	fake := &procexec.Fake{
		Results: []procexec.Result{
			{Stdout: "fix-1\topen\t3\tfix the crash\n" +
				"feat-1\topen\t3\tadd new widget\n" +
				"weird-1\topen\t3\tsomething unclassifiable\n"}, // list-children
			{Stdout: "CREATED\tbug-bucket\n"},    // create "Bug"
			{},                                   // reparent fix-1
			{Stdout: "CREATED\tfeature-bucket\n"}, // create "Feature"
			{},                                   // reparent feat-1
			{Stdout: "CREATED\tbacklog-bucket\n"}, // create "Backlog"
			{},                                   // reparent weird-1
			{},                                   // close root
		},
	}
	trk := tracker.New("trc", "/repo", fake)

	if err := Complete(context.Background(), trk, "root-item"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var createCalls, reparentCalls, closeCalls int
	for _, call := range fake.Calls {
		if len(call.Argv) > 1 {
			switch call.Argv[1] {
			case "create":
				createCalls++
			case "reparent":
				reparentCalls++
			case "close":
				closeCalls++
			}
		}
	}
	if createCalls != 3 {
		t.Errorf("createCalls = %d, want 3", createCalls)
	}
	if reparentCalls != 3 {
		t.Errorf("reparentCalls = %d, want 3", reparentCalls)
	}
	if closeCalls != 1 {
		t.Errorf("closeCalls = %d, want 1", closeCalls)
	}
}

// TestComplete_CapsAtFiveCategoriesWithBacklogReserved drives all 5 named
// keyword groups (feature/bug/refactor/docs/tests) plus an unclassifiable
// item. Since backlog must always have a reserved slot in the 5-category
// cap (spec §4.11 step 2), only 4 of the 5 named groups get their own
// bucket; the 5th group's item is redirected into backlog alongside the
// unclassifiable one, keeping the total at exactly 5 buckets.
func TestComplete_CapsAtFiveCategoriesWithBacklogReserved(t *testing.T) {
	fake := &procexec.Fake{
		Results: []procexec.Result{
			{Stdout: "" +
				"item-1\topen\t3\timplement feature X\n" +
				"item-2\topen\t3\tfix crash bug\n" +
				"item-3\topen\t3\trefactor old module\n" +
				"item-4\topen\t3\tupdate readme docs\n" +
				"item-5\topen\t3\tincrease coverage metrics\n" +
				"item-6\topen\t3\tsomething totally unclassifiable\n"}, // list-children
			{Stdout: "CREATED\tfeature-bucket\n"}, // create "Feature"
			{},                                    // reparent item-1
			{Stdout: "CREATED\tbug-bucket\n"},      // create "Bug"
			{},                                     // reparent item-2
			{Stdout: "CREATED\trefactor-bucket\n"}, // create "Refactor"
			{},                                     // reparent item-3
			{Stdout: "CREATED\tdocs-bucket\n"},     // create "Docs"
			{},                                     // reparent item-4
			{Stdout: "CREATED\tbacklog-bucket\n"},  // create "Backlog"
			{},                                     // reparent item-5
			{},                                     // reparent item-6
			{},                                     // close root
		},
	}
	trk := tracker.New("trc", "/repo", fake)

	if err := Complete(context.Background(), trk, "root-item"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var createCalls, reparentCalls, closeCalls int
	for _, call := range fake.Calls {
		if len(call.Argv) > 1 {
			switch call.Argv[1] {
			case "create":
				createCalls++
			case "reparent":
				reparentCalls++
			case "close":
				closeCalls++
			}
		}
	}
	if createCalls != kernel.MaxMilestoneCategories {
		t.Errorf("createCalls = %d, want %d (cap, including backlog)", createCalls, kernel.MaxMilestoneCategories)
	}
	if reparentCalls != 6 {
		t.Errorf("reparentCalls = %d, want 6", reparentCalls)
	}
	if closeCalls != 1 {
		t.Errorf("closeCalls = %d, want 1", closeCalls)
	}
}
