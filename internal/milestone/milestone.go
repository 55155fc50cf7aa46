// Package milestone implements the milestone-branch lifecycle (C11, spec
// §4.11): naming the milestone branch from the spec's title, and, on
// DONE, fanning open children of the root work item out into category
// buckets before closing the root.
package milestone

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/tracker"
)

// SlugFromSpec derives a branch-name-safe slug from specContent's first
// "# " heading (spec §4.10: "derived from the spec's first `# ` heading:
// slugified, lower-cased"). Falls back to "milestone" if no heading is
// found.
func SlugFromSpec(specContent string) string {
	scanner := bufio.NewScanner(strings.NewReader(specContent))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "# ") {
			return slugify(strings.TrimPrefix(line, "# "))
		}
	}
	return "milestone"
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "milestone"
	}
	return s
}

// BranchName returns the milestone branch name for slug: "feature/<slug>"
// (spec §6). Numeric-suffix collision resolution happens inside C3's
// CreateBranch, not here.
func BranchName(slug string) string {
	return "feature/" + slug
}

// category is one of the fixed keyword buckets spec §4.11 step 2 names,
// plus the backlog fallback.
type category struct {
	name     string
	keywords []string
}

var categories = []category{
	{name: "feature", keywords: []string{"feature", "add", "implement", "support"}},
	{name: "bug", keywords: []string{"bug", "fix", "error", "crash", "regression"}},
	{name: "refactor", keywords: []string{"refactor", "cleanup", "restructure", "rename"}},
	{name: "docs", keywords: []string{"doc", "readme", "comment"}},
	{name: "tests", keywords: []string{"test", "coverage", "flaky"}},
}

// classify returns the first matching category's name, or
// kernel.BacklogCategory if none match.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func classify(item kernel.WorkItem) string {
	text := strings.ToLower(item.Title + " " + item.Description)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				return c.name
			}
		}
	}
	return kernel.BacklogCategory
}

// Complete runs C11's DONE-time cleanup: list the root's open children,
// bucket them into at most kernel.MaxMilestoneCategories categories
// (backlog is always included in the cap), create one new top-level work
// item per non-empty bucket, reparent every child into its bucket, then
// close the root. Errors in this flow are logged by the caller but never
// prevent the run from completing (spec §4.11 step 5) — Complete itself
// returns an error so the caller can decide how to log it, but the
// runner must not propagate it as a run failure.
func Complete(ctx context.Context, trk *tracker.Tracker, rootWorkItemID string) error {
	if rootWorkItemID == "" {
		return nil
	}

	children, err := trk.ListChildren(ctx, rootWorkItemID)
	if err != nil {
		return fmt.Errorf("milestone: list children: %w", err)
	}

	var open []kernel.WorkItem
	for _, c := range children {
		if c.Status == kernel.WorkItemOpen {
			open = append(open, c)
		}
	}
	if len(open) == 0 {
		return trk.Close(ctx, rootWorkItemID)
	}

	// bucketOrder always reserves one of the MaxMilestoneCategories slots
	// for backlog, so an unseen keyword group discovered after the
	// non-backlog buckets fill up overflows into backlog rather than
	// becoming a 6th bucket alongside it.
	buckets := make(map[string][]kernel.WorkItem)
	var bucketOrder []string
	nonBacklogSeen := 0
	for _, item := range open {
		cat := classify(item)
		if cat != kernel.BacklogCategory {
			if _, seen := buckets[cat]; !seen && nonBacklogSeen >= kernel.MaxMilestoneCategories-1 {
				cat = kernel.BacklogCategory
			}
		}
		if _, seen := buckets[cat]; !seen {
			bucketOrder = append(bucketOrder, cat)
			if cat != kernel.BacklogCategory {
				nonBacklogSeen++
			}
		}
		buckets[cat] = append(buckets[cat], item)
	}

	for _, cat := range bucketOrder {
		items := buckets[cat]
		if len(items) == 0 {
			continue
		}
		newParentID, err := trk.Create(ctx, capitalize(cat), fmt.Sprintf("%d items carried over from the completed milestone", len(items)), "", 3)
		if err != nil {
			return fmt.Errorf("milestone: create category %q: %w", cat, err)
		}
		for _, item := range items {
			if err := trk.Reparent(ctx, item.ID, newParentID); err != nil {
				return fmt.Errorf("milestone: reparent %s into %q: %w", item.ID, cat, err)
			}
		}
	}

	return trk.Close(ctx, rootWorkItemID)
}
