// Package tracker adapts the external `trc` work-item tracker CLI (spec
// §4.2). Every operation is stateless and re-invokes the CLI; output is
// parsed against trc's documented line format with regexes, and malformed
// lines are skipped rather than treated as fatal.
package tracker

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/procexec"
)

// Tracker talks to one `trc` binary against one repository.
type Tracker struct {
	Bin    string // path to the trc binary, default "trc"
	Dir    string // repository root passed as trc's working directory
	Runner procexec.Runner
}

// New constructs a Tracker. If bin is empty, "trc" is used (resolved via
// PATH by the process adapter).
func New(bin, dir string, runner procexec.Runner) *Tracker {
	if bin == "" {
		bin = "trc"
	}
	return &Tracker{Bin: bin, Dir: dir, Runner: runner}
}

func (t *Tracker) run(ctx context.Context, args ...string) (procexec.Result, error) {
	return t.Runner.Run(ctx, t.Dir, append([]string{t.Bin}, args...)...)
}

// softNotFound implements spec §4.2's error policy: a non-zero exit whose
// stderr contains "not found" produces a soft empty/None result rather
// than a TrackerError.
func softNotFound(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "not found")
}

func (t *Tracker) checkedRun(ctx context.Context, op string, args ...string) (procexec.Result, bool, error) {
	res, err := t.run(ctx, args...)
	if err != nil {
		return res, false, err
	}
	if res.ExitCode == 0 {
		return res, true, nil
	}
	if softNotFound(res.Stderr) {
		return res, false, nil
	}
	return res, false, &kernel.TrackerError{Op: op, Stderr: res.Stderr}
}

// itemLinePattern matches trc's documented one-line-per-item list format:
//
//	<id>\t<status>\t<priority>\t<title>[\t<parent-id>]
var itemLinePattern = regexp.MustCompile(`^([a-z][a-z0-9-]*)\t(open|closed)\t(\d)\t([^\t]*)(?:\t(\S+))?$`)

func parseItemLines(output string) []kernel.WorkItem {
	var items []kernel.WorkItem
	for _, line := range strings.Split(output, "\n") {
		m := itemLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue // malformed lines are skipped, not fatal (spec §4.2)
		}
		priority, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		items = append(items, kernel.WorkItem{
			ID:       m[1],
			Status:   kernel.WorkItemStatus(m[2]),
			Priority: priority,
			Title:    m[4],
			ParentID: m[5],
		})
	}
	return items
}

// ListReady returns open, unblocked items, optionally filtered to children
// of rootID (empty rootID means unfiltered).
func (t *Tracker) ListReady(ctx context.Context, rootID string) ([]kernel.WorkItem, error) {
	args := []string{"list", "--status=ready"}
	if rootID != "" {
		args = append(args, "--parent="+rootID)
	}
	res, ok, err := t.checkedRun(ctx, "list-ready", args...)
	if err != nil || !ok {
		return nil, err
	}
	return parseItemLines(res.Stdout), nil
}

// ListBlocked returns open items blocked on other open items.
func (t *Tracker) ListBlocked(ctx context.Context, rootID string) ([]kernel.WorkItem, error) {
	args := []string{"list", "--status=blocked"}
	if rootID != "" {
		args = append(args, "--parent="+rootID)
	}
	res, ok, err := t.checkedRun(ctx, "list-blocked", args...)
	if err != nil || !ok {
		return nil, err
	}
	return parseItemLines(res.Stdout), nil
}

// ListClosed returns closed items.
func (t *Tracker) ListClosed(ctx context.Context, rootID string) ([]kernel.WorkItem, error) {
	args := []string{"list", "--status=closed"}
	if rootID != "" {
		args = append(args, "--parent="+rootID)
	}
	res, ok, err := t.checkedRun(ctx, "list-closed", args...)
	if err != nil || !ok {
		return nil, err
	}
	return parseItemLines(res.Stdout), nil
}

// ListChildren returns every direct child of parentID, regardless of status.
func (t *Tracker) ListChildren(ctx context.Context, parentID string) ([]kernel.WorkItem, error) {
	res, ok, err := t.checkedRun(ctx, "list-children", "list", "--parent="+parentID)
	if err != nil || !ok {
		return nil, err
	}
	return parseItemLines(res.Stdout), nil
}

// commentLinePattern matches trc's show-command comment lines:
//
//	COMMENT\t<RFC3339-timestamp>\t<source>\t<text>
var commentLinePattern = regexp.MustCompile(`^COMMENT\t([^\t]+)\t([^\t]+)\t(.*)$`)

// ShowResult is the parsed output of `trc show <id>`.
type ShowResult struct {
	Item     kernel.WorkItem
	Comments []kernel.Comment
}

// Show returns an item's full detail plus ordered comments. Returns
// (nil, nil) if the tracker reports the item as not found.
func (t *Tracker) Show(ctx context.Context, id string) (*ShowResult, error) {
	res, ok, err := t.checkedRun(ctx, "show", "show", id)
	if err != nil || !ok {
		return nil, err
	}

	var result ShowResult
	for _, line := range strings.Split(res.Stdout, "\n") {
		if m := itemLinePattern.FindStringSubmatch(line); m != nil {
			items := parseItemLines(line)
			if len(items) == 1 {
				result.Item = items[0]
			}
			continue
		}
		if m := commentLinePattern.FindStringSubmatch(line); m != nil {
			ts, err := time.Parse(time.RFC3339, m[1])
			if err != nil {
				continue
			}
			result.Comments = append(result.Comments, kernel.Comment{
				Timestamp: ts,
				Source:    m[2],
				Text:      m[3],
			})
		}
	}
	if result.Item.ID == "" {
		return nil, nil
	}
	return &result, nil
}

var createdIDPattern = regexp.MustCompile(`(?m)^CREATED\t(\S+)$`)

// Create files a new work item, returning its tracker-assigned id.
func (t *Tracker) Create(ctx context.Context, title, description, parentID string, priority int) (string, error) {
	args := []string{"create", "--title=" + title, "--priority=" + strconv.Itoa(priority)}
	if description != "" {
		args = append(args, "--description="+description)
	}
	if parentID != "" {
		args = append(args, "--parent="+parentID)
	}
	res, ok, err := t.checkedRun(ctx, "create", args...)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("tracker: create %q: item disappeared before id could be read", title)
	}
	m := createdIDPattern.FindStringSubmatch(res.Stdout)
	if m == nil {
		return "", fmt.Errorf("tracker: create %q: could not parse assigned id from output %q", title, res.Stdout)
	}
	return m[1], nil
}

// Close closes id. Idempotent: closing an already-closed item is not an
// error (spec §4.2).
func (t *Tracker) Close(ctx context.Context, id string) error {
	res, err := t.run(ctx, "close", id)
	if err != nil {
		return err
	}
	if res.ExitCode == 0 {
		return nil
	}
	if softNotFound(res.Stderr) || strings.Contains(strings.ToLower(res.Stderr), "already closed") {
		return nil
	}
	return &kernel.TrackerError{Op: "close", Stderr: res.Stderr}
}

// Comment posts body to id, attributed to source. Comment ordering is
// tracker-assigned, not caller-assigned.
func (t *Tracker) Comment(ctx context.Context, id, body, source string) error {
	res, ok, err := t.checkedRun(ctx, "comment", "comment", id, "--source="+source, "--body="+body)
	if err != nil {
		return err
	}
	if !ok {
		return nil // soft not-found: commenting on a vanished item is not fatal
	}
	return nil
}

// Reparent sets id's parent to newParentID, used by milestone completion
// (spec §4.11 step 3) to reparent surviving open children into category
// buckets.
func (t *Tracker) Reparent(ctx context.Context, id, newParentID string) error {
	res, ok, err := t.checkedRun(ctx, "reparent", "reparent", id, "--parent="+newParentID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return nil
}
