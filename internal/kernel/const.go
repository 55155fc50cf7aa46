package kernel

// Supplemented from original_source/src/ralph2/constants.py: the Python
// implementation this kernel generalizes fixes a branch prefix and a
// default iteration ceiling; both are carried forward unchanged.
const (
	// DefaultSystemPrefix names branches, worktree directories, and the
	// per-repo project marker file.
	DefaultSystemPrefix = "ralph2"

	// DefaultMaxIterations is the hard per-run iteration ceiling (spec §5).
	DefaultMaxIterations = 50

	// DefaultRetryMaxAttempts is C7's default max_attempts.
	DefaultRetryMaxAttempts = 3

	// MemoryWarnBytes is the heuristic threshold (spec §4.6) past which the
	// memory file is flagged as overdue for curation. Not a hard cap.
	MemoryWarnBytes = 50 * 1024

	// MaxMilestoneCategories caps C11 step 2's category buckets (spec §4.11).
	MaxMilestoneCategories = 5

	// BacklogCategory is the fallback bucket for unclassifiable children.
	BacklogCategory = "backlog"
)
