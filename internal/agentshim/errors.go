package agentshim

import (
	"fmt"

	"github.com/ralph2/kernel/internal/retry"
)

// NoStructuredOutput is returned when an agent invocation completed but
// emitted no structured-output payload at all (spec §4.8.2). Fatal — not
// retried, via the structural-code override (see internal/retry.Classifier).
type NoStructuredOutput struct {
	AgentKind string
}

func (e *NoStructuredOutput) Error() string {
	return fmt.Sprintf("agentshim: %s emitted no structured output", e.AgentKind)
}

func (e *NoStructuredOutput) RetryClassification() retry.Classification { return retry.Fatal }

// SchemaValidationFailed is returned when an agent's structured-output
// payload does not conform to the schema it was asked to produce (spec
// §4.8.2). Fatal for the same reason: retrying the same prompt against
// the same schema is unlikely to change the outcome.
type SchemaValidationFailed struct {
	AgentKind string
	Payload   string
	Cause     error
}

func (e *SchemaValidationFailed) Error() string {
	return fmt.Sprintf("agentshim: %s payload failed schema validation: %v", e.AgentKind, e.Cause)
}

func (e *SchemaValidationFailed) Unwrap() error { return e.Cause }

func (e *SchemaValidationFailed) RetryClassification() retry.Classification { return retry.Fatal }
