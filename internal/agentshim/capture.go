package agentshim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ralph2/kernel/internal/agent"
	"github.com/ralph2/kernel/internal/events"
	"github.com/ralph2/kernel/internal/security"
)

// Record is one captured agent invocation, appended as a line of JSON to
// the date-named output file (spec §4.8.4, §6's JSONL schema).
type Record struct {
	Timestamp     time.Time       `json:"timestamp"`
	AgentType     string          `json:"agent_type"`
	PromptSummary string          `json:"prompt_summary"`
	Output        json.RawMessage `json:"output"`
}

// Capture appends invocation Records as JSONL to date-named files under a
// directory (project.Context.OutputsDir), matching spec §4.8.4/§6's
// mandated `agent_outputs_YYYY-MM-DD.jsonl` schema, with secret scrubbing
// via internal/security before anything is written. It also runs an
// internal/events.FileSink alongside the Record files, capturing the
// finer-grained tool_call/tool_result/text event stream an invocation
// emits — a supplementary debugging log, not part of spec §6's external
// interfaces, adapted from the teacher's internal/events/filesink.go.
type Capture struct {
	dir       string
	scrubber  *security.Scrubber
	eventSink *events.FileSink // optional; nil if it could not be opened
	mu        sync.Mutex
}

// NewCapture returns a Capture writing under dir, one file per UTC day
// named "<YYYY-MM-DD>.jsonl", plus an events.jsonl event-stream log. A
// failure to open the event-stream log is swallowed (spec §4.8.4:
// observability must never prevent capture of the invocation itself).
func NewCapture(dir string) *Capture {
	sink, _ := events.NewFileSink(dir)
	return &Capture{dir: dir, scrubber: security.NewScrubber(), eventSink: sink}
}

// AppendEvents converts the stream of agent.Event values one invocation
// emitted into the unified events.AgentEvent shape and writes them to the
// event-stream log. Errors are swallowed, same as Append.
func (c *Capture) AppendEvents(agentKind string, evts []agent.Event) {
	if c.eventSink == nil || len(evts) == 0 {
		return
	}
	converted := events.FromAgentEvents(evts, events.ConvertParams{Adapter: agentKind, Timestamp: time.Now().UTC()})
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.eventSink.Write(converted)
}

// Append scrubs and writes one Record to today's capture file, creating
// the outputs directory and file as needed.
func (c *Capture) Append(rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	scrubbed := c.scrubber.Scrub(string(rec.Output))
	rec.Output = json.RawMessage(scrubbed)

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("agentshim: marshal capture record: %w", err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("agentshim: create capture dir: %w", err)
	}

	name := rec.Timestamp.Format("2006-01-02") + ".jsonl"
	path := filepath.Join(c.dir, name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("agentshim: open capture file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("agentshim: write capture record: %w", err)
	}
	return nil
}
