package cli

import (
	"fmt"
	"os"

	"github.com/ralph2/kernel/internal/agent"
	"github.com/ralph2/kernel/internal/agentshim"
	"github.com/ralph2/kernel/internal/config"
	"github.com/ralph2/kernel/internal/gitrepo"
	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/memory"
	"github.com/ralph2/kernel/internal/procexec"
	"github.com/ralph2/kernel/internal/project"
	"github.com/ralph2/kernel/internal/runner"
	"github.com/ralph2/kernel/internal/state"
	"github.com/ralph2/kernel/internal/tracker"
	"github.com/ralph2/kernel/internal/worktree"
)

// buildRunner wires every collaborator a Runner needs from cfg, rooted at
// the current working directory. Concrete agent.Agent implementations
// (the planner/executor/verifier/specialist adapters themselves) are
// outside this kernel's scope (spec §1) and are resolved from
// internal/agent's registry by kernel.AgentKind name; a project wires its
// own adapters into that registry from its own main package before
// calling ralph2, so an unregistered kind surfaces as a bootstrap error
// here (exit code 1), not a panic deep in the run loop.
func buildRunner(cfg *config.Config) (*runner.Runner, error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cli: resolve working directory: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cli: resolve user home: %w", err)
	}

	proj, err := project.Resolve(repoRoot, cfg.Run.SystemPrefix, home)
	if err != nil {
		return nil, fmt.Errorf("cli: resolve project: %w", err)
	}

	store, err := state.Open(proj.StateDBPath)
	if err != nil {
		return nil, fmt.Errorf("cli: open state store: %w", err)
	}

	repo := gitrepo.New(repoRoot)
	wt := worktree.New(repo, cfg.Run.SystemPrefix)

	trackerDir := cfg.Tracker.Dir
	if trackerDir == "" {
		trackerDir = repoRoot
	}
	trk := tracker.New(cfg.Tracker.Bin, trackerDir, procexec.New())

	capture := agentshim.NewCapture(proj.OutputsDir)

	plannerAgent, err := agent.Get(string(kernel.AgentPlanner))
	if err != nil {
		return nil, fmt.Errorf("cli: resolve planner agent: %w", err)
	}
	executorAgent, err := agent.Get(string(kernel.AgentExecutor))
	if err != nil {
		return nil, fmt.Errorf("cli: resolve executor agent: %w", err)
	}
	verifierAgent, err := agent.Get(string(kernel.AgentVerifier))
	if err != nil {
		return nil, fmt.Errorf("cli: resolve verifier agent: %w", err)
	}

	var specialistShims []*agentshim.Shim
	if specialistAgent, err := agent.Get(string(kernel.AgentSpecialist)); err == nil {
		specialistShims = append(specialistShims, agentshim.New(specialistAgent, capture))
	}

	return &runner.Runner{
		Store:           store,
		Repo:            repo,
		Tracker:         trk,
		Worktree:        wt,
		Project:         proj,
		PlannerShim:     agentshim.New(plannerAgent, capture),
		ExecutorShim:    agentshim.New(executorAgent, capture),
		VerifierShim:    agentshim.New(verifierAgent, capture),
		SpecialistShims: specialistShims,
		MemoryStore:     memory.NewStore(proj.DigestPath, memory.Config{}),
		SystemPrefix:    cfg.Run.SystemPrefix,
		MaxIterations:   cfg.Run.MaxIterations,
	}, nil
}

// exitCodeFor maps a Runner.Run outcome/error to spec §6's exit-code
// taxonomy: 0 normal termination (DONE or max iterations), 1 bootstrap /
// environment error, 2 aborted, 3 stuck.
func exitCodeFor(out *runner.Outcome, err error) int {
	if err != nil {
		return 1
	}
	switch out.Run.Status {
	case kernel.RunStuck:
		return 3
	case kernel.RunAborted:
		return 2
	default:
		return 0
	}
}
