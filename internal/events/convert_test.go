package events

import (
	"testing"
	"time"

	"github.com/ralph2/kernel/internal/agent"
)

func TestFromAgentEvents(t *testing.T) {
	now := time.Now()
	params := ConvertParams{
		SessionID: "test-run",
		Iteration: 1,
		Adapter:   "executor",
		Timestamp: now,
	}

	tests := []struct {
		name     string
		input    []agent.Event
		expected []AgentEvent
	}{
		{
			name:  "text event",
			input: []agent.Event{{Kind: agent.EventText, Text: "Hello world"}},
			expected: []AgentEvent{
				{Timestamp: now, SessionID: "test-run", Iteration: 1, Adapter: "executor",
					Type: EventText, Content: "Hello world", Summary: "Hello world"},
			},
		},
		{
			name:  "tool call event",
			input: []agent.Event{{Kind: agent.EventToolCall, ToolName: "Bash", Input: `{"command":"ls -la"}`}},
			expected: []AgentEvent{
				{Timestamp: now, SessionID: "test-run", Iteration: 1, Adapter: "executor",
					Type: EventToolUse, ToolName: "Bash", ToolInput: `{"command":"ls -la"}`, Summary: "Tool: Bash"},
			},
		},
		{
			name:  "successful tool result event",
			input: []agent.Event{{Kind: agent.EventToolResult, ToolName: "Bash", Success: true}},
			expected: []AgentEvent{
				{Timestamp: now, SessionID: "test-run", Iteration: 1, Adapter: "executor",
					Type: EventToolResult, ToolName: "Bash", Summary: "Tool ok: Bash"},
			},
		},
		{
			name:  "failed tool result event becomes an error",
			input: []agent.Event{{Kind: agent.EventToolResult, ToolName: "Bash", Success: false, ErrText: "exit 1"}},
			expected: []AgentEvent{
				{Timestamp: now, SessionID: "test-run", Iteration: 1, Adapter: "executor",
					Type: EventError, ToolName: "Bash", Content: "exit 1", Summary: "Tool failed: Bash"},
			},
		},
		{
			name:     "empty input",
			input:    []agent.Event{},
			expected: nil,
		},
		{
			name:     "nil input",
			input:    nil,
			expected: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := FromAgentEvents(tc.input, params)

			if tc.expected == nil {
				if result != nil {
					t.Errorf("expected nil, got %v", result)
				}
				return
			}

			if len(result) != len(tc.expected) {
				t.Fatalf("expected %d events, got %d", len(tc.expected), len(result))
			}

			for i, exp := range tc.expected {
				got := result[i]
				if got != exp {
					t.Errorf("event[%d] = %+v, want %+v", i, got, exp)
				}
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"", 10, ""},
		{"hello", 0, ""},
	}

	for _, tc := range tests {
		result := truncate(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}
