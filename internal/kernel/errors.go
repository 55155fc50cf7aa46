package kernel

import "fmt"

// TrackerError wraps a non-zero `trc` CLI exit whose stderr did not match
// the soft "not found" pattern (spec §4.2).
type TrackerError struct {
	Op     string
	Stderr string
}

func (e *TrackerError) Error() string {
	return fmt.Sprintf("tracker: %s: %s", e.Op, e.Stderr)
}

// MaxRetriesExhausted is raised by C7 when a retried operation never
// succeeds within max_attempts (spec §4.7, §7).
type MaxRetriesExhausted struct {
	Attempts int
	LastErr  error
}

func (e *MaxRetriesExhausted) Error() string {
	return fmt.Sprintf("exhausted %d attempts, last error: %v", e.Attempts, e.LastErr)
}

func (e *MaxRetriesExhausted) Unwrap() error {
	return e.LastErr
}

// ValidationError marks a boundary validation failure raised before any
// external effect (spec §7 "Validation").
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
