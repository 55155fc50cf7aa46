package kernel

import (
	"fmt"
	"regexp"
)

// workItemIDPattern is spec §6's format, validated before any shell
// interpolation: lowercase, starts with a letter, at least one hyphenated
// segment, no leading/trailing hyphen, no shell metacharacters.
//
// Grounded on the teacher's internal/security.CommandValidator identifier
// pattern (an allowlist regex applied before any exec.Command argument is
// built), generalized to the exact work-item-id grammar the spec requires.
var workItemIDPattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)+$`)

// ValidateWorkItemID rejects empty ids, leading-hyphen/leading-digit ids,
// trailing-hyphen ids, and any id containing a shell metacharacter, per
// spec §6. It is called at every boundary where an id crosses from agent
// or human input into a shelled-out `trc`/`git` argument.
func ValidateWorkItemID(id string) error {
	if !workItemIDPattern.MatchString(id) {
		return &ValidationError{
			Field:   "work_item_id",
			Message: fmt.Sprintf("Invalid work item ID format: %q", id),
		}
	}
	return nil
}
