// Package project resolves a stable per-project identity and the
// per-user paths derived from it (spec §4.6, §6): a state database file,
// an outputs directory, a summaries directory, and a single memory file.
// Identity is a UUID marker file at the repo root, created atomically the
// first time a project is touched.
package project

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/ralph2/kernel/internal/kernel"
)

// MarkerFileName is the per-repo marker, "<repo-root>/.<system>-id".
func MarkerFileName(systemPrefix string) string {
	return "." + systemPrefix + "-id"
}

// Context is the resolved set of paths for one project.
type Context struct {
	ID           string
	RepoRoot     string
	StateDBPath  string
	OutputsDir   string
	SummariesDir string
	MemoryPath   string
	DigestPath   string
}

// Resolve ensures the project marker exists (creating it if this is the
// first touch) and returns the derived Context, creating the per-project
// state directory tree under userHome/<systemPrefix>/projects/<uuid>.
// It also ensures a .gitignore entry for the marker file.
func Resolve(repoRoot, systemPrefix, userHome string) (*Context, error) {
	id, err := ensureMarker(repoRoot, systemPrefix)
	if err != nil {
		return nil, err
	}

	if err := ensureGitignoreEntry(repoRoot, systemPrefix); err != nil {
		return nil, err
	}

	base := filepath.Join(userHome, systemPrefix, "projects", id)
	outputs := filepath.Join(base, "outputs")
	summaries := filepath.Join(base, "summaries")
	if err := os.MkdirAll(outputs, 0o755); err != nil {
		return nil, fmt.Errorf("project: create outputs dir: %w", err)
	}
	if err := os.MkdirAll(summaries, 0o755); err != nil {
		return nil, fmt.Errorf("project: create summaries dir: %w", err)
	}

	return &Context{
		ID:           id,
		RepoRoot:     repoRoot,
		StateDBPath:  filepath.Join(base, "state.db"),
		OutputsDir:   outputs,
		SummariesDir: summaries,
		MemoryPath:   filepath.Join(base, "memory.md"),
		DigestPath:   filepath.Join(base, "digest.json"),
	}, nil
}

// ensureMarker implements spec §4.6's atomic-creation protocol: write to a
// temp file in the same directory, then hard-link into place; on
// link-exists, read the existing file (another process raced and won);
// if hard-link is unsupported, fall back to rename, then re-read.
func ensureMarker(repoRoot, systemPrefix string) (string, error) {
	markerPath := filepath.Join(repoRoot, MarkerFileName(systemPrefix))

	if existing, err := readMarker(markerPath); err == nil {
		return existing, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("project: read marker: %w", err)
	}

	id := uuid.NewString()

	// Write the new id to a temp file in the same directory using
	// renameio (crash-safe write: the temp file is fsynced before we ever
	// try to publish it), then publish with a hard link rather than
	// renameio's own atomic-replace — a hard link fails with ErrExist if
	// another process already published first, giving first-writer-wins
	// semantics instead of last-writer-wins (spec §4.6).
	tmp, err := renameio.TempFile(repoRoot, markerPath)
	if err != nil {
		return "", fmt.Errorf("project: create temp marker: %w", err)
	}
	defer tmp.Cleanup()

	if _, err := io.WriteString(tmp, id+"\n"); err != nil {
		return "", fmt.Errorf("project: write temp marker: %w", err)
	}

	if err := os.Link(tmp.Name(), markerPath); err != nil {
		if os.IsExist(err) {
			// Another process raced and won: use its id.
			existing, rerr := readMarker(markerPath)
			if rerr == nil {
				return existing, nil
			}
			return "", fmt.Errorf("project: marker exists but unreadable: %w", rerr)
		}
		// Hard link unsupported on this filesystem (e.g. cross-device
		// temp dir): fall back to rename, then re-read to confirm the
		// id that ended up on disk.
		if err := os.Rename(tmp.Name(), markerPath); err != nil {
			return "", fmt.Errorf("project: rename fallback marker: %w", err)
		}
		existing, rerr := readMarker(markerPath)
		if rerr != nil {
			return "", fmt.Errorf("project: reread after rename: %w", rerr)
		}
		return existing, nil
	}

	return id, nil
}

func readMarker(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ensureGitignoreEntry adds the marker filename to repoRoot/.gitignore if
// it is not already present (spec §4.6 "A git-ignore entry for the marker
// file is ensured on startup").
func ensureGitignoreEntry(repoRoot, systemPrefix string) error {
	entry := MarkerFileName(systemPrefix)
	path := filepath.Join(repoRoot, ".gitignore")

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("project: read .gitignore: %w", err)
	}
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("project: open .gitignore: %w", err)
	}
	defer func() { _ = f.Close() }()

	prefix := ""
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		prefix = "\n"
	}
	if _, err := f.WriteString(prefix + entry + "\n"); err != nil {
		return fmt.Errorf("project: append .gitignore: %w", err)
	}
	return nil
}

// ReadMemory returns the free-form memory.md content, or "" if it does
// not exist yet.
func (c *Context) ReadMemory() (string, error) {
	data, err := os.ReadFile(c.MemoryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("project: read memory: %w", err)
	}
	return string(data), nil
}

// MemoryWarning reports a non-fatal warning string if memory.md exceeds
// kernel.MemoryWarnBytes, indicating curation is overdue (spec §4.6). It
// returns "" when no warning applies.
func (c *Context) MemoryWarning() (string, error) {
	info, err := os.Stat(c.MemoryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("project: stat memory: %w", err)
	}
	if info.Size() > kernel.MemoryWarnBytes {
		return fmt.Sprintf("memory file is %d bytes, past the %d byte curation threshold", info.Size(), kernel.MemoryWarnBytes), nil
	}
	return "", nil
}
