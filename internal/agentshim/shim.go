// Package agentshim is the agent invocation shim (C8, spec §4.8): it runs
// each agent call in a freshly created execution context to isolate any
// cancellation-scope bugs in the underlying agent runtime, enforces a
// structured-output JSON schema, and streams tool-call/tool-result/text
// events to an optional observer. Grounded on the teacher's per-call
// goroutine isolation idiom (internal/controller/docker.go spawns one
// exec.Cmd per agent invocation with its own context) generalized to spec
// §9's "one goroutine... wrapped in go func(){ runtime.LockOSThread(); …
// }()" pattern, plus github.com/santhosh-tekuri/jsonschema/v6 for
// independent structural re-validation (grounded on
// goadesign-goa-ai/registry/service.go's schema-compile-then-validate
// idiom).
package agentshim

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ralph2/kernel/internal/agent"
)

// Shim wraps one underlying agent.Agent with isolation, schema
// enforcement, and output capture.
type Shim struct {
	Agent   agent.Agent
	Capture *Capture // optional; nil disables output capture
}

// New constructs a Shim around a.
func New(a agent.Agent, capture *Capture) *Shim {
	return &Shim{Agent: a, Capture: capture}
}

// invocationResult carries the outcome of one isolated goroutine back to
// the caller.
type invocationResult struct {
	resp agent.Response
	err  error
}

// Invoke runs one agent call in a freshly spawned, OS-thread-locked
// goroutine (spec §4.8.1, §9), enforces schemaJSON against the returned
// payload, and captures the completed invocation to the JSONL outputs
// file. promptSummary is truncated to 100 characters per spec §6's JSONL
// schema ("prompt_summary: string ≤100 chars").
func (s *Shim) Invoke(ctx context.Context, req agent.Request, onEvent agent.EventCallback) (json.RawMessage, error) {
	resultCh := make(chan invocationResult, 1)

	var observed []agent.Event
	var observedMu sync.Mutex
	collect := func(e agent.Event) {
		observedMu.Lock()
		observed = append(observed, e)
		observedMu.Unlock()
		if onEvent != nil {
			onEvent(e)
		}
	}

	go func() {
		// Isolate this call's OS thread so any goroutine-local or
		// cancellation-scope corruption in the agent runtime cannot leak
		// into the parent scheduler. The locked thread is discarded when
		// this goroutine returns (spec §9).
		runtime.LockOSThread()
		defer func() {
			// A panicking agent runtime must not crash the orchestrator;
			// convert it into an error result instead. The locked OS
			// thread is torn down regardless (Go never reuses a thread
			// exited via a panicking goroutine for other work).
			if r := recover(); r != nil {
				resultCh <- invocationResult{err: fmt.Errorf("agentshim: agent %s panicked: %v", req.Kind, r)}
			}
		}()

		resp, err := s.Agent.Invoke(ctx, req, collect)
		resultCh <- invocationResult{resp: resp, err: err}
	}()

	var result invocationResult
	select {
	case result = <-resultCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if s.Capture != nil {
		observedMu.Lock()
		snapshot := append([]agent.Event(nil), observed...)
		observedMu.Unlock()
		s.Capture.AppendEvents(req.Kind, snapshot)
	}

	if result.err != nil {
		return nil, result.err
	}

	if result.resp.RawOutput == "" {
		return nil, &NoStructuredOutput{AgentKind: req.Kind}
	}

	payload, err := validate(req.Kind, req.SchemaJSON, result.resp.RawOutput)
	if err != nil {
		return nil, err
	}

	if s.Capture != nil {
		// Capture failures are swallowed (spec §4.8.4): observability
		// must never fail the iteration it is observing.
		_ = s.Capture.Append(Record{
			Timestamp:     time.Now().UTC(),
			AgentType:     req.Kind,
			PromptSummary: truncate(req.Prompt, 100),
			Output:        payload,
		})
	}

	return payload, nil
}

// validate independently re-validates raw against schemaJSON, converting
// a schema violation into *SchemaValidationFailed rather than letting a
// malformed payload flow further into the kernel untyped (spec §9:
// "no duck typing inside the kernel").
func validate(kind string, schemaJSON []byte, raw string) (json.RawMessage, error) {
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, &SchemaValidationFailed{AgentKind: kind, Payload: raw, Cause: fmt.Errorf("invalid JSON: %w", err)}
	}

	if len(schemaJSON) > 0 {
		var schemaDoc interface{}
		if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
			return nil, fmt.Errorf("agentshim: invalid schema for %s: %w", kind, err)
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(kind+".json", schemaDoc); err != nil {
			return nil, fmt.Errorf("agentshim: add schema resource for %s: %w", kind, err)
		}
		schema, err := c.Compile(kind + ".json")
		if err != nil {
			return nil, fmt.Errorf("agentshim: compile schema for %s: %w", kind, err)
		}
		if err := schema.Validate(doc); err != nil {
			return nil, &SchemaValidationFailed{AgentKind: kind, Payload: raw, Cause: err}
		}
	}

	return json.RawMessage(raw), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
