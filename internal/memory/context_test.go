package memory

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuildContext_Empty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "digest.json"), Config{})
	ctx := s.BuildContext("")
	if ctx != "" {
		t.Errorf("expected empty context for empty store, got %q", ctx)
	}
}

func TestBuildContext_GroupsByType(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "digest.json"), Config{ContextBudget: 5000})
	s.data.Entries = []Entry{
		{Type: KeyFact, Content: "fact one", Iteration: 1, Timestamp: time.Now()},
		{Type: KeyFact, Content: "fact two", Iteration: 1, Timestamp: time.Now()},
		{Type: StepDone, Content: "implemented auth", Iteration: 1, Timestamp: time.Now()},
		{Type: StepPending, Content: "write tests", Iteration: 1, Timestamp: time.Now()},
		{Type: Decision, Content: "use JWT", Iteration: 1, Timestamp: time.Now()},
	}

	ctx := s.BuildContext("")

	if !strings.Contains(ctx, "## Memory from Previous Iterations") {
		t.Error("missing header")
	}

	if !strings.Contains(ctx, "### Pending Steps") {
		t.Error("missing Pending Steps section")
	}
	if !strings.Contains(ctx, "### Key Facts") {
		t.Error("missing Key Facts section")
	}
	if !strings.Contains(ctx, "### Decisions") {
		t.Error("missing Decisions section")
	}
	if !strings.Contains(ctx, "### Completed Steps") {
		t.Error("missing Completed Steps section")
	}

	pendingIdx := strings.Index(ctx, "### Pending Steps")
	factsIdx := strings.Index(ctx, "### Key Facts")
	decisionsIdx := strings.Index(ctx, "### Decisions")
	doneIdx := strings.Index(ctx, "### Completed Steps")

	if pendingIdx > factsIdx {
		t.Error("Pending Steps should come before Key Facts")
	}
	if factsIdx > decisionsIdx {
		t.Error("Key Facts should come before Decisions")
	}
	if decisionsIdx > doneIdx {
		t.Error("Decisions should come before Completed Steps")
	}
}

func TestBuildContext_RespectsBudget(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "digest.json"), Config{ContextBudget: 150})
	s.data.Entries = []Entry{
		{Type: StepPending, Content: "short task", Iteration: 1, Timestamp: time.Now()},
		{Type: KeyFact, Content: strings.Repeat("x", 200), Iteration: 1, Timestamp: time.Now()},
		{Type: Decision, Content: "should not appear", Iteration: 1, Timestamp: time.Now()},
	}

	ctx := s.BuildContext("")

	if !strings.Contains(ctx, "### Pending Steps") {
		t.Error("Pending Steps should fit within budget")
	}
	if strings.Contains(ctx, "### Decisions") {
		t.Error("Decisions should be cut by budget")
	}
	if len(ctx) > 200 {
		t.Errorf("context should be within budget range, got %d chars", len(ctx))
	}
}

func TestBuildContext_AllEntriesExceedBudget(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "digest.json"), Config{ContextBudget: 50})
	s.data.Entries = []Entry{
		{Type: StepPending, Content: strings.Repeat("x", 200), Iteration: 1, Timestamp: time.Now()},
	}

	ctx := s.BuildContext("")
	if ctx != "" {
		t.Errorf("expected empty context when no section fits budget, got %q", ctx)
	}
}

func TestBuildContext_FiltersByTaskID(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "digest.json"), Config{ContextBudget: 5000})
	s.data.Entries = []Entry{
		{Type: KeyFact, Content: "task one fact", TaskID: "issue:1", Iteration: 1, Timestamp: time.Now()},
		{Type: KeyFact, Content: "task two fact", TaskID: "issue:2", Iteration: 1, Timestamp: time.Now()},
	}

	ctx := s.BuildContext("issue:1")

	if !strings.Contains(ctx, "task one fact") {
		t.Error("expected task one's fact in filtered context")
	}
	if strings.Contains(ctx, "task two fact") {
		t.Error("did not expect task two's fact in filtered context")
	}
}
